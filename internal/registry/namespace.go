package registry

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/harrow-ircd/harrowd/internal/ircerr"
	"github.com/harrow-ircd/harrowd/internal/proto"
	"github.com/harrow-ircd/harrowd/internal/rfc"
)

// entityKind tags what a namedEntity holds, since nicks and channel
// names share one case-folded namespace (spec §3 Namespace).
type entityKind int

const (
	entityUser entityKind = iota
	entityChannel
)

// namedEntity is a Go sum type (tagged struct, no ADTs available) for
// the single name table covering both nicks and channels.
type namedEntity struct {
	kind    entityKind
	user    *User
	channel *Channel
}

// Namespace is the one shared, concurrency-safe registry of every live
// nick, channel, and connected client on the server (spec §3/§4.4).
// Grounded on original_source/src/irc.rs's Core/Namespace split, and on
// the teacher's server.go for the single-mutex-guarded-map shape.
type Namespace struct {
	hostname string
	nextID   uint64

	mu    sync.Mutex
	names map[string]*namedEntity

	clientsMu sync.Mutex
	clients   map[uint64]*Client
}

// NewNamespace creates an empty registry advertising hostname as the
// server name in message prefixes and replies.
func NewNamespace(hostname string) *Namespace {
	return &Namespace{
		hostname: hostname,
		names:    make(map[string]*namedEntity),
		clients:  make(map[uint64]*Client),
	}
}

// Hostname returns the server name used as the prefix on server-origin
// messages.
func (ns *Namespace) Hostname() string {
	return ns.hostname
}

// AssignID hands out the next globally unique client/user id.
func (ns *Namespace) AssignID() uint64 {
	return atomic.AddUint64(&ns.nextID, 1)
}

// InsertClient registers a connection handle so it can be looked up by
// id (e.g. by server-side accounting or administrative commands).
func (ns *Namespace) InsertClient(c *Client) {
	ns.clientsMu.Lock()
	defer ns.clientsMu.Unlock()
	ns.clients[c.ID] = c
}

// RemoveClient drops a connection handle once it has fully disconnected.
func (ns *Namespace) RemoveClient(id uint64) {
	ns.clientsMu.Lock()
	defer ns.clientsMu.Unlock()
	delete(ns.clients, id)
}

// GetClient looks up a connection handle by id.
func (ns *Namespace) GetClient(id uint64) (*Client, bool) {
	ns.clientsMu.Lock()
	defer ns.clientsMu.Unlock()
	c, ok := ns.clients[id]
	return c, ok
}

// GetNick resolves a nickname to its live User, if any.
func (ns *Namespace) GetNick(nick string) (*User, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ent, ok := ns.names[rfc.FoldCase(nick)]
	if !ok || ent.kind != entityUser {
		return nil, false
	}
	return ent.user, true
}

// GetChan resolves a channel name to its live Channel, if any.
func (ns *Namespace) GetChan(name string) (*Channel, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ent, ok := ns.names[rfc.FoldCase(name)]
	if !ok || ent.kind != entityChannel {
		return nil, false
	}
	return ent.channel, true
}

// Register completes the handshake for client: claims nick in the
// namespace, creates its User, and attaches it to client. Fails with
// NicknameInUse if the folded nick is already taken by anyone.
func (ns *Namespace) Register(client *Client, nick, username, realName, host string) (*User, error) {
	folded := rfc.FoldCase(nick)

	ns.mu.Lock()
	if _, taken := ns.names[folded]; taken {
		ns.mu.Unlock()
		return nil, ircerr.NicknameInUse(nick)
	}
	u := newUser(ns, client.ID, nick, username, realName, host, client)
	ns.names[folded] = &namedEntity{kind: entityUser, user: u}
	ns.mu.Unlock()

	client.CompleteRegistration(u)
	return u, nil
}

// TryNickChange attempts to rename u to newNick, rekeying both the
// namespace's name table and every channel's secondary nick index it
// currently belongs to. Lock order is namespace-then-channel-list, per
// spec §5 — here that means the whole rekey (including walking u's
// channel list and each channel's own UpdateNick) happens with ns.mu
// held, so there is no window where another goroutine could observe a
// half-renamed user.
func (ns *Namespace) TryNickChange(u *User, newNick string) error {
	if !rfc.ValidNick(newNick) {
		return ircerr.ErroneusNickname(newNick)
	}

	oldNick := u.Nick()
	oldFolded := rfc.FoldCase(oldNick)
	newFolded := rfc.FoldCase(newNick)

	if oldFolded == newFolded {
		// Pure case-change: same identity, nothing to rekey.
		u.setNick(newNick)
		return nil
	}

	ns.mu.Lock()
	if ent, ok := ns.names[newFolded]; ok && !(ent.kind == entityUser && ent.user.ID == u.ID) {
		ns.mu.Unlock()
		return ircerr.NicknameInUse(newNick)
	}

	delete(ns.names, oldFolded)
	ns.names[newFolded] = &namedEntity{kind: entityUser, user: u}
	u.setNick(newNick)

	var toNotify []*Channel
	for _, chName := range u.ChannelList() {
		if ent, ok := ns.names[rfc.FoldCase(chName)]; ok && ent.kind == entityChannel {
			ent.channel.UpdateNick(oldNick, newNick)
			toNotify = append(toNotify, ent.channel)
		}
	}
	ns.mu.Unlock()

	for _, ch := range toNotify {
		ch.NotifyNickChange(u, newNick)
	}
	return nil
}

// JoinChannel gets-or-creates the named channel, adds u as a member
// (granting op if u created it), and emits the JOIN broadcast followed
// by the TOPIC/NAMES/ENDOFNAMES replies to u (spec §4.4/§4.5). Joining
// a channel u is already a member of is a no-op.
func (ns *Namespace) JoinChannel(u *User, name string) error {
	if !rfc.ValidChannel(name) {
		return ircerr.NoSuchChannel(name)
	}
	folded := rfc.FoldCase(name)

	ns.mu.Lock()
	ent, ok := ns.names[folded]
	var ch *Channel
	created := false
	if ok {
		if ent.kind != entityChannel {
			ns.mu.Unlock()
			return ircerr.NoSuchChannel(name)
		}
		ch = ent.channel
	} else {
		ch = newChannel(name)
		ns.names[folded] = &namedEntity{kind: entityChannel, channel: ch}
		created = true
	}

	if ch.IsJoined(u.ID) {
		ns.mu.Unlock()
		return nil
	}

	ch.AddMember(u, created)
	ns.mu.Unlock()
	u.addChannel(ch.Name)
	ch.NotifyJoin(u)

	return ns.sendJoinReplies(u, ch)
}

// sendJoinReplies sends the TOPIC, NAMES, and ENDOFNAMES replies a
// successful join owes the joiner. The 332 reply is sent unconditionally
// — with an empty trailing parameter when no topic is set — matching
// the literal end-to-end join scenario this is grounded on.
func (ns *Namespace) sendJoinReplies(u *User, ch *Channel) error {
	if err := u.SendRpl("332", ch.Name, ch.Topic()); err != nil {
		return err
	}
	return ns.sendNamesReplies(u, ch)
}

// sendNamesReplies emits one or more 353 (NAMES) lines followed by a
// 366 (ENDOFNAMES), splitting the nick list across lines so that no
// single formatted line exceeds the 510-byte pre-CRLF budget spec §6
// imposes on every reply (the same 512-byte frame limit msgbuf enforces
// on incoming lines).
func (ns *Namespace) sendNamesReplies(u *User, ch *Channel) error {
	const chanType = "=" // public channel; harrowd doesn't model +s/+p modes

	nicks := ch.SortedNickList()
	var lines [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, current)
			current = nil
		}
	}

	for _, nick := range nicks {
		candidate := append(append([]string{}, current...), nick)
		probe := &proto.Message{
			Prefix:   &proto.Prefix{Kind: proto.PrefixHost, Host: ns.hostname},
			Command:  "353",
			Params:   []string{u.Nick(), chanType, ch.Name, strings.Join(candidate, " ")},
			Trailing: true,
		}
		if len(probe.Format()) > rfc.MaxMsgSize-2 && len(current) > 0 {
			flush()
			current = []string{nick}
		} else {
			current = candidate
		}
	}
	flush()

	for _, line := range lines {
		if err := u.SendRpl("353", chanType, ch.Name, strings.Join(line, " ")); err != nil {
			return err
		}
	}
	return u.SendRpl("366", ch.Name, "End of /NAMES list")
}

// PartChannel removes u from the named channel, broadcasting PART
// (including back to u) before the member table is actually updated so
// the leaving client still sees its own echo.
func (ns *Namespace) PartChannel(u *User, name, partMsg string) error {
	ch, ok := ns.GetChan(name)
	if !ok {
		return ircerr.NoSuchChannel(name)
	}
	if !ch.IsJoined(u.ID) {
		return ircerr.NotOnChannel(name)
	}

	ch.NotifyPart(u, partMsg)

	stillHasMembers := ch.RemoveMember(u.ID)
	u.removeChannel(ch.Name)
	if !stillHasMembers {
		ns.removeChannelIfEmpty(ch)
	}
	return nil
}

// removeChannelIfEmpty garbage-collects ch from the name table if it
// has no members. The empty check is re-done under ns.mu rather than
// trusted from the caller's earlier snapshot. JoinChannel adds its
// member while holding ns.mu, so a racing join either lands first (the
// channel is no longer empty and is kept) or finds the name gone and
// creates a fresh channel.
func (ns *Namespace) removeChannelIfEmpty(ch *Channel) {
	folded := rfc.FoldCase(ch.Name)

	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ent, ok := ns.names[folded]; ok && ent.kind == entityChannel && ent.channel == ch && ch.IsEmpty() {
		delete(ns.names, folded)
	}
}

// removeUserName drops nick from the name table, but only if it still
// resolves to the given user id — guarding against clobbering a nick
// some other user has since claimed.
func (ns *Namespace) removeUserName(nick string, id uint64) {
	folded := rfc.FoldCase(nick)

	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ent, ok := ns.names[folded]; ok && ent.kind == entityUser && ent.user.ID == id {
		delete(ns.names, folded)
	}
}

// SearchUserChans scans every channel for one carrying nick in its
// member index. It's the fallback, nick-keyed lookup used by cleanup
// paths that only have a bare nick (not a *User) to work from,
// mirroring original_source/src/irc.rs's linear _search_user_chans.
func (ns *Namespace) SearchUserChans(nick string) []string {
	ns.mu.Lock()
	var chans []*Channel
	for _, ent := range ns.names {
		if ent.kind == entityChannel {
			chans = append(chans, ent.channel)
		}
	}
	ns.mu.Unlock()

	var out []string
	for _, ch := range chans {
		if ch.IsJoinedNick(nick) {
			out = append(out, ch.Name)
		}
	}
	return out
}

// SearchUserChansPurge is SearchUserChans followed by removal of nick
// from every channel it was found in, garbage-collecting any channel
// left empty. It returns the channels that still had other members
// (the QUIT witnesses).
func (ns *Namespace) SearchUserChansPurge(nick string) []string {
	names := ns.SearchUserChans(nick)

	var witnesses []string
	for _, name := range names {
		ch, ok := ns.GetChan(name)
		if !ok {
			continue
		}
		if ch.RemoveMemberByNick(nick) {
			witnesses = append(witnesses, ch.Name)
		} else {
			ns.removeChannelIfEmpty(ch)
		}
	}
	return witnesses
}
