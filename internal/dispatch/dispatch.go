package dispatch

import (
	"strings"

	"github.com/harrow-ircd/harrowd/internal/ircerr"
	"github.com/harrow-ircd/harrowd/internal/proto"
	"github.com/harrow-ircd/harrowd/internal/registry"
	"github.com/harrow-ircd/harrowd/internal/rfc"
)

// Dispatcher executes parsed messages against a Namespace, driving
// each connection's registration handshake and, once registered, the
// channel/message command set. One Dispatcher is shared by every
// connection; all per-connection state lives in the registry.Client it
// is handed.
type Dispatcher struct {
	ns      *registry.Namespace
	version string
	created string
}

// New creates a Dispatcher serving ns. version and created are cosmetic
// fields echoed in the 002/003 welcome replies, mirroring the teacher's
// Config.Version/Config.CreatedDate.
func New(ns *registry.Namespace, version, created string) *Dispatcher {
	return &Dispatcher{ns: ns, version: version, created: created}
}

// Command executes one parsed message against c's current state. Per
// spec, JOIN/PART/PRIVMSG/NOTICE targets are comma-separated and each
// is handled independently so that one bad target doesn't block the
// others.
func (d *Dispatcher) Command(c *registry.Client, msg *proto.Message) {
	if c.State() == registry.StateRegistered {
		d.commandRegistered(c, msg)
		return
	}
	d.commandUnregistered(c, msg)
}

// commandUnregistered handles the only commands meaningful before
// registration completes: NICK, USER, and (a connection is always
// allowed to leave) QUIT. Anything else gets NotRegistered, except
// NOTICE, which RFC says never gets an error reply.
func (d *Dispatcher) commandUnregistered(c *registry.Client, msg *proto.Message) {
	switch msg.Command {
	case "NICK":
		d.handleNickUnregistered(c, msg)
	case "USER":
		d.handleUserUnregistered(c, msg)
	case "QUIT":
		c.Close()
	case "NOTICE":
		// silently dropped per RFC
	default:
		d.sendUnregisteredErr(c, ircerr.NotRegistered())
	}
}

func (d *Dispatcher) sendUnregisteredErr(c *registry.Client, err *ircerr.Protocol) {
	params := []string{"*", err.Target, err.Text}
	if err.Target == "" {
		params = []string{"*", err.Text}
	}
	reply := &proto.Message{
		Prefix:   &proto.Prefix{Kind: proto.PrefixHost, Host: d.ns.Hostname()},
		Command:  err.Code,
		Params:   params,
		Trailing: true,
	}
	_ = c.SendLine(reply.Format())
}

func (d *Dispatcher) handleNickUnregistered(c *registry.Client, msg *proto.Message) {
	if len(msg.Params) < 1 {
		d.sendUnregisteredErr(c, ircerr.NeedMoreParams("NICK"))
		return
	}
	nick := msg.Params[0]
	if !rfc.ValidNick(nick) {
		d.sendUnregisteredErr(c, ircerr.ErroneusNickname(nick))
		return
	}
	if _, taken := d.ns.GetNick(nick); taken {
		d.sendUnregisteredErr(c, ircerr.NicknameInUse(nick))
		return
	}

	if c.State() == registry.StateProtoUser {
		if _, user, _ := c.ProtoState(); user != "" {
			d.completeRegistration(c, msg, nick)
			return
		}
	}
	c.SetProtoNick(nick)
}

func (d *Dispatcher) handleUserUnregistered(c *registry.Client, msg *proto.Message) {
	if len(msg.Params) < 4 {
		d.sendUnregisteredErr(c, ircerr.NeedMoreParams("USER"))
		return
	}
	username, realName := msg.Params[0], msg.Params[3]
	if !rfc.ValidUser(username) {
		d.sendUnregisteredErr(c, ircerr.NeedMoreParams("USER"))
		return
	}

	nick, _, _ := c.ProtoState()
	if nick != "" {
		d.completeRegistration(c, msg, nick)
		return
	}
	c.SetProtoUser(username, realName)
}

// completeRegistration folds in whichever of NICK/USER just arrived,
// then attempts registry.Register. A nick collision discovered only
// now (the other field had already been set) is reported and the
// client stays unregistered, per spec.md's registration table.
func (d *Dispatcher) completeRegistration(c *registry.Client, msg *proto.Message, nick string) {
	var username, realName string
	if msg.Command == "USER" {
		username, realName = msg.Params[0], msg.Params[3]
	} else {
		_, username, realName = c.ProtoState()
	}

	user, err := d.ns.Register(c, nick, username, realName, d.hostFor(c))
	if err != nil {
		d.sendUnregisteredErr(c, err.(*ircerr.Protocol))
		return
	}
	d.sendWelcome(user)
}

// hostFor resolves the display hostname attributed to a connecting
// client. harrowd has no reverse-DNS/ident lookup (out of scope); the
// bare IP the listener observed stands in for it.
func (d *Dispatcher) hostFor(c *registry.Client) string {
	return c.IP
}

// sendWelcome sends the 001-004 registration burst, grounded on the
// teacher's Client.completeRegistration.
func (d *Dispatcher) sendWelcome(u *registry.User) {
	_ = u.SendRpl(ReplyWelcome, "Welcome to the Internet Relay Network "+u.Nick())
	_ = u.SendRpl(ReplyYourHost, "Your host is "+d.ns.Hostname()+", running version "+d.version)
	_ = u.SendRpl(ReplyCreated, "This server was created "+d.created)
	_ = u.SendRplTokens(ReplyMyInfo, d.ns.Hostname(), d.version, "o", "n")
}

// commandRegistered dispatches the channel/message command set
// against an already-registered user.
func (d *Dispatcher) commandRegistered(c *registry.Client, msg *proto.Message) {
	u := c.User()

	switch msg.Command {
	case "NICK":
		d.handleNick(u, msg)
	case "USER":
		_ = u.SendErr(ircerr.AlreadyRegistered())
	case "JOIN":
		d.handleJoin(u, msg)
	case "PART":
		d.handlePart(u, msg)
	case "TOPIC":
		d.handleTopic(u, msg)
	case "PRIVMSG":
		d.handleMsg(u, msg, "PRIVMSG")
	case "NOTICE":
		d.handleMsg(u, msg, "NOTICE")
	case "QUIT":
		d.handleQuit(u, msg)
	default:
		_ = u.SendErr(ircerr.UnknownCommand(msg.Command))
	}
}

func (d *Dispatcher) handleNick(u *registry.User, msg *proto.Message) {
	if len(msg.Params) < 1 {
		_ = u.SendErr(ircerr.NeedMoreParams("NICK"))
		return
	}
	if err := d.ns.TryNickChange(u, msg.Params[0]); err != nil {
		_ = u.SendErr(err.(*ircerr.Protocol))
	}
}

func (d *Dispatcher) handleJoin(u *registry.User, msg *proto.Message) {
	if len(msg.Params) < 1 {
		_ = u.SendErr(ircerr.NeedMoreParams("JOIN"))
		return
	}
	for _, name := range splitCommaList(msg.Params[0]) {
		if err := d.ns.JoinChannel(u, name); err != nil {
			_ = u.SendErr(err.(*ircerr.Protocol))
		}
	}
}

func (d *Dispatcher) handlePart(u *registry.User, msg *proto.Message) {
	if len(msg.Params) < 1 {
		_ = u.SendErr(ircerr.NeedMoreParams("PART"))
		return
	}
	partMsg := ""
	if len(msg.Params) >= 2 {
		partMsg = msg.Params[1]
	}
	for _, name := range splitCommaList(msg.Params[0]) {
		if err := d.ns.PartChannel(u, name, partMsg); err != nil {
			_ = u.SendErr(err.(*ircerr.Protocol))
		}
	}
}

func (d *Dispatcher) handleTopic(u *registry.User, msg *proto.Message) {
	if len(msg.Params) < 1 {
		_ = u.SendErr(ircerr.NeedMoreParams("TOPIC"))
		return
	}
	name := msg.Params[0]
	ch, ok := d.ns.GetChan(name)
	if !ok {
		_ = u.SendErr(ircerr.NoSuchChannel(name))
		return
	}
	if !ch.IsJoined(u.ID) {
		_ = u.SendErr(ircerr.NotOnChannel(name))
		return
	}

	if len(msg.Params) == 1 {
		_ = u.SendRpl("332", name, ch.Topic())
		return
	}

	if !ch.IsOp(u.ID) {
		_ = u.SendErr(ircerr.ChanOPrivsNeeded(name))
		return
	}
	ch.SetTopic(msg.Params[1])
	ch.NotifyTopic(u, msg.Params[1])
}

func (d *Dispatcher) handleMsg(u *registry.User, msg *proto.Message, cmd string) {
	silent := cmd == "NOTICE"

	if len(msg.Params) < 1 {
		if !silent {
			_ = u.SendErr(ircerr.NoRecipient(cmd))
		}
		return
	}
	if len(msg.Params) < 2 {
		if !silent {
			_ = u.SendErr(ircerr.NoTextToSend())
		}
		return
	}
	text := msg.Params[1]

	for _, target := range splitCommaList(msg.Params[0]) {
		if rfc.ValidChannel(target) {
			ch, ok := d.ns.GetChan(target)
			if !ok {
				if !silent {
					_ = u.SendErr(ircerr.NoSuchNick(target))
				}
				continue
			}
			ch.SendMsg(u, cmd, target, text)
			continue
		}

		recipient, ok := d.ns.GetNick(target)
		if !ok {
			if !silent {
				_ = u.SendErr(ircerr.NoSuchNick(target))
			}
			continue
		}
		if err := recipient.SendMsg(u, cmd, target, text); err != nil && !silent {
			_ = u.SendErr(ircerr.NoSuchNick(target))
		}
	}
}

// handleQuit is harrowd's supplemental explicit-QUIT command: a client
// may ask to leave rather than simply disconnecting. It drives exactly
// the same User.Teardown path a dropped connection does.
func (d *Dispatcher) handleQuit(u *registry.User, msg *proto.Message) {
	c, err := u.FetchClient()
	if err != nil {
		return
	}
	reason := ""
	if len(msg.Params) >= 1 {
		reason = msg.Params[0]
	}
	c.CloseWithReason(reason)
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
