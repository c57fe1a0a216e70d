package registry

import (
	"fmt"
	"sync"

	"github.com/harrow-ircd/harrowd/internal/ircerr"
	"github.com/harrow-ircd/harrowd/internal/proto"
)

// User is the in-memory state of a registered client: id, username,
// host, and realname, fixed at registration and not lock-guarded; and
// the guarded nick and channel list. It carries no user flags.
// Grounded on original_source/src/irc.rs's User struct, with the
// Arc<Client>-via-Weak ownership described in spec §3/§9 substituted by
// a plain *Client guarded by clientMu — liveness is established by
// checking Client.State(), not by a weak-pointer upgrade.
type User struct {
	ID       uint64
	Username string
	Host     string
	RealName string

	ns *Namespace

	nickMu sync.RWMutex
	nick   string

	chMu     sync.RWMutex
	channels map[string]struct{} // canonical channel names

	clientMu sync.Mutex
	client   *Client
}

func newUser(ns *Namespace, id uint64, nick, username, realName, host string, client *Client) *User {
	return &User{
		ID:       id,
		Username: username,
		Host:     host,
		RealName: realName,
		ns:       ns,
		nick:     nick,
		channels: make(map[string]struct{}),
		client:   client,
	}
}

// Nick returns the user's current display nickname.
func (u *User) Nick() string {
	u.nickMu.RLock()
	defer u.nickMu.RUnlock()
	return u.nick
}

func (u *User) setNick(nick string) {
	u.nickMu.Lock()
	defer u.nickMu.Unlock()
	u.nick = nick
}

// Prefix formats the canonical nick!user@host prefix used on messages
// this user originates.
func (u *User) Prefix() *proto.Prefix {
	return &proto.Prefix{
		Kind: proto.PrefixNickUserHost,
		Nick: u.Nick(),
		User: u.Username,
		Host: u.Host,
	}
}

func (u *User) String() string {
	return fmt.Sprintf("%d:%s!%s@%s", u.ID, u.Nick(), u.Username, u.Host)
}

// addChannel records that the user joined a channel (back-reference,
// spec §4.5).
func (u *User) addChannel(name string) {
	u.chMu.Lock()
	defer u.chMu.Unlock()
	u.channels[name] = struct{}{}
}

// removeChannel drops a channel from the user's membership list.
func (u *User) removeChannel(name string) {
	u.chMu.Lock()
	defer u.chMu.Unlock()
	delete(u.channels, name)
}

// ChannelList returns a snapshot of the canonical channel names this
// user currently believes it is a member of.
func (u *User) ChannelList() []string {
	u.chMu.RLock()
	defer u.chMu.RUnlock()
	out := make([]string, 0, len(u.channels))
	for name := range u.channels {
		out = append(out, name)
	}
	return out
}

// setClient attaches (or clears, with nil) the owning client.
func (u *User) setClient(c *Client) {
	u.clientMu.Lock()
	defer u.clientMu.Unlock()
	u.client = c
}

// FetchClient upgrades the user's reference to its owning Client. If
// the client is gone (disconnected), this ensures the user has been
// torn down — unlinking it from every channel, once, however many
// callers race to discover the client is dead — and returns a
// DeadClient error. This is the Go substitute for Weak::upgrade in
// original_source/src/irc.rs's User::fetch_client.
func (u *User) FetchClient() (*Client, error) {
	u.clientMu.Lock()
	c := u.client
	u.clientMu.Unlock()

	if c != nil && c.State() != StateDead {
		return c, nil
	}

	if c != nil {
		c.teardownUser(u, "")
	} else {
		u.Teardown("")
	}
	return nil, &ircerr.DeadClient{Nick: u.Nick()}
}

// Teardown unlinks the user from every channel it believes it is a
// member of, broadcasting QUIT with quitMsg to any channel left with
// other members and garbage-collecting any channel left empty, then
// removes its own nick from the namespace. It returns the names of the
// witness channels QUIT was broadcast to. Teardown is idempotent —
// calling it again on an already torn-down user is a no-op.
func (u *User) Teardown(quitMsg string) []string {
	channels := u.ChannelList()

	var witnesses []string
	for _, name := range channels {
		ch, ok := u.ns.GetChan(name)
		if !ok {
			u.removeChannel(name)
			continue
		}

		stillHasMembers := ch.RemoveMember(u.ID)
		u.removeChannel(name)
		if stillHasMembers {
			witnesses = append(witnesses, ch.Name)
			ch.NotifyQuit(u, quitMsg)
		} else {
			u.ns.removeChannelIfEmpty(ch)
		}
	}

	u.ns.removeUserName(u.Nick(), u.ID)
	u.setClient(nil)

	return witnesses
}

// --- outbound message helpers (spec §4.5) ---

// SendLine pushes a pre-formatted line straight to the client's write
// side.
func (u *User) SendLine(line string) error {
	c, err := u.FetchClient()
	if err != nil {
		return err
	}
	return c.SendLine(line)
}

// sendFromServer builds and sends a message with the server as prefix,
// the user's nick as the first parameter (the conventional numeric
// reply target), and the given code/params as the rest. trailing marks
// the last param as free text (always colon-prefixed on the wire) as
// opposed to a bare token like 004's user/channel mode letters.
func (u *User) sendFromServer(code string, trailing bool, params ...string) error {
	msg := &proto.Message{
		Prefix:   &proto.Prefix{Kind: proto.PrefixHost, Host: u.ns.Hostname()},
		Command:  code,
		Params:   append([]string{u.Nick()}, params...),
		Trailing: trailing,
	}
	return u.SendLine(msg.Format())
}

// SendRpl sends a successful numeric reply (331, 332, 353, 366, ...)
// whose last parameter is free text, e.g. a topic or a NAMES line.
func (u *User) SendRpl(code string, params ...string) error {
	return u.sendFromServer(code, true, params...)
}

// SendRplTokens sends a successful numeric reply whose params are all
// bare tokens rather than free text, e.g. 004's mode-letter list, so
// the last one is never colon-prefixed.
func (u *User) SendRplTokens(code string, params ...string) error {
	return u.sendFromServer(code, false, params...)
}

// SendErr sends a Protocol error as its numeric reply.
func (u *User) SendErr(err *ircerr.Protocol) error {
	if err.Target == "" {
		return u.sendFromServer(err.Code, true, err.Text)
	}
	return u.sendFromServer(err.Code, true, err.Target, err.Text)
}

// SendMsg delivers a peer-originated PRIVMSG/NOTICE-shaped message from
// sender to this user.
func (u *User) SendMsg(sender *User, cmd, target, text string) error {
	msg := &proto.Message{
		Prefix:   sender.Prefix(),
		Command:  cmd,
		Params:   []string{target, text},
		Trailing: true,
	}
	return u.SendLine(msg.Format())
}
