package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/harrow-ircd/harrowd/internal/proto"
	"github.com/harrow-ircd/harrowd/internal/rfc"
)

// channelMember is one entry in a Channel's membership table.
type channelMember struct {
	user *User
	op   bool
}

// Channel holds everything to do with one channel: its canonical name,
// topic, and membership. Grounded on the teacher's channel.go, but
// keyed on the stable user id rather than the nick — exactly the
// strategy spec §9 ("Nick as key") prescribes to keep nick changes from
// requiring a racy member-map rekey. nickIndex is the secondary
// nick->id lookup spec §9 describes: kept in step with the member map
// on add/remove, and the only thing UpdateNick rekeys.
type Channel struct {
	Name string

	mu        sync.Mutex
	topic     string
	members   map[uint64]*channelMember
	nickIndex map[string]uint64 // case-folded nick -> user id
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:      name,
		members:   make(map[uint64]*channelMember),
		nickIndex: make(map[string]uint64),
	}
}

// AddMember adds user to the channel with the given operator flag. The
// caller (Namespace.JoinChannel) is responsible for checking IsJoined
// first — this always (re-)inserts.
func (ch *Channel) AddMember(user *User, op bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.members[user.ID] = &channelMember{user: user, op: op}
	ch.nickIndex[rfc.FoldCase(user.Nick())] = user.ID
}

// IsJoined reports whether the given user id is currently a member.
func (ch *Channel) IsJoined(id uint64) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	_, ok := ch.members[id]
	return ok
}

// IsJoinedNick reports whether the given nick currently names a
// member, via the secondary index.
func (ch *Channel) IsJoinedNick(nick string) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	id, ok := ch.nickIndex[rfc.FoldCase(nick)]
	if !ok {
		return false
	}
	_, ok = ch.members[id]
	return ok
}

// IsOp reports whether the given user id holds channel-operator flags.
func (ch *Channel) IsOp(id uint64) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	m, ok := ch.members[id]
	return ok && m.op
}

// RemoveMember removes a member by id and reports whether the channel
// still has other members afterward.
func (ch *Channel) RemoveMember(id uint64) (stillHasMembers bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if m, ok := ch.members[id]; ok {
		delete(ch.nickIndex, rfc.FoldCase(m.user.Nick()))
		delete(ch.members, id)
	}
	return len(ch.members) > 0
}

// RemoveMemberByNick is the nick-keyed equivalent used by
// Namespace.SearchUserChansPurge, mirroring the teacher/original's
// get_user_key-then-rm_key pattern for cleanup paths that only have a
// bare nick string to go on.
func (ch *Channel) RemoveMemberByNick(nick string) (stillHasMembers bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	id, ok := ch.nickIndex[rfc.FoldCase(nick)]
	if ok {
		delete(ch.members, id)
		delete(ch.nickIndex, rfc.FoldCase(nick))
	}
	return len(ch.members) > 0
}

// IsEmpty reports whether the channel currently has zero members.
func (ch *Channel) IsEmpty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.members) == 0
}

// Topic returns the current topic (may be blank).
func (ch *Channel) Topic() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.topic
}

// SetTopic replaces the current topic.
func (ch *Channel) SetTopic(topic string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.topic = topic
}

// UpdateNick rekeys the secondary nick index when a member changes
// nick. The primary members map, keyed on user id, never needs
// touching — that's the whole point of keying on id (spec §9).
func (ch *Channel) UpdateNick(oldNick, newNick string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	id, ok := ch.nickIndex[rfc.FoldCase(oldNick)]
	if !ok {
		return
	}
	delete(ch.nickIndex, rfc.FoldCase(oldNick))
	ch.nickIndex[rfc.FoldCase(newNick)] = id
}

// snapshot clones the member list under the channel lock so broadcasts
// never hold the lock across a send (spec §5 "Broadcasts without held
// locks").
func (ch *Channel) snapshot() []*channelMember {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]*channelMember, 0, len(ch.members))
	for _, m := range ch.members {
		out = append(out, m)
	}
	return out
}

// SortedNickList returns the channel's membership as a lexicographically
// ordered nick list, each operator's nick prefixed with '@' (spec §4.5
// gen_sorted_nick_list).
func (ch *Channel) SortedNickList() []string {
	members := ch.snapshot()

	type entry struct {
		nick string
		op   bool
	}
	entries := make([]entry, 0, len(members))
	for _, m := range members {
		entries = append(entries, entry{nick: m.user.Nick(), op: m.op})
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].nick) < strings.ToLower(entries[j].nick)
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		if e.op {
			out[i] = "@" + e.nick
		} else {
			out[i] = e.nick
		}
	}
	return out
}

// notifyAll formats a single line and fans it out to every current
// member (including the originator, if present, to match RFC's JOIN
// semantics). Callers that want to exclude the originator pass its id
// as skipID with skip set.
func (ch *Channel) notifyAll(line string, skipID uint64, skip bool) {
	for _, m := range ch.snapshot() {
		if skip && m.user.ID == skipID {
			continue
		}
		if c, err := m.user.FetchClient(); err == nil {
			_ = c.SendLine(line)
		}
	}
}

// NotifyJoin broadcasts a JOIN message to every member, including the
// joiner themselves (RFC 2812 requires the joining client see its own
// JOIN echoed back via the channel, spec §4.5).
func (ch *Channel) NotifyJoin(joiner *User) {
	msg := &proto.Message{Prefix: joiner.Prefix(), Command: "JOIN", Params: []string{ch.Name}}
	ch.notifyAll(msg.Format(), 0, false)
}

// NotifyPart broadcasts a PART message to every current member.
// Namespace.PartChannel calls it before removing the leaver, so the
// leaver receives its own PART echo too.
func (ch *Channel) NotifyPart(leaver *User, partMsg string) {
	params := []string{ch.Name}
	trailing := partMsg != ""
	if trailing {
		params = append(params, partMsg)
	}
	msg := &proto.Message{Prefix: leaver.Prefix(), Command: "PART", Params: params, Trailing: trailing}
	ch.notifyAll(msg.Format(), 0, false)
}

// NotifyQuit broadcasts a QUIT message to the remaining (witness)
// members of a channel the departing user was torn down from.
func (ch *Channel) NotifyQuit(leaver *User, quitMsg string) {
	params := []string{}
	trailing := quitMsg != ""
	if trailing {
		params = []string{quitMsg}
	}
	msg := &proto.Message{Prefix: leaver.Prefix(), Command: "QUIT", Params: params, Trailing: trailing}
	ch.notifyAll(msg.Format(), 0, false)
}

// NotifyNickChange broadcasts a NICK message to every member (including
// the renaming user, who remains a member under their new nick).
func (ch *Channel) NotifyNickChange(user *User, newNick string) {
	msg := &proto.Message{Prefix: user.Prefix(), Command: "NICK", Params: []string{newNick}}
	ch.notifyAll(msg.Format(), 0, false)
}

// NotifyTopic broadcasts a TOPIC change to every member, including the
// setter.
func (ch *Channel) NotifyTopic(setter *User, topic string) {
	msg := &proto.Message{Prefix: setter.Prefix(), Command: "TOPIC", Params: []string{ch.Name, topic}, Trailing: true}
	ch.notifyAll(msg.Format(), 0, false)
}

// SendMsg fans a PRIVMSG/NOTICE out to every member except the sender.
func (ch *Channel) SendMsg(sender *User, cmd, target, text string) {
	msg := &proto.Message{Prefix: sender.Prefix(), Command: cmd, Params: []string{target, text}, Trailing: true}
	ch.notifyAll(msg.Format(), sender.ID, true)
}
