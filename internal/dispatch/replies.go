// Package dispatch executes the registration handshake and the
// channel/message command set (NICK, USER, JOIN, PART, TOPIC, PRIVMSG,
// NOTICE, QUIT) against an internal/registry.Namespace. Grounded on the
// teacher's command.go: one method per command, a messageFromServer-
// style numeric-reply helper, and per-command parameter validation
// ahead of the registry call.
package dispatch

// Numeric reply codes a successful command can emit directly (error
// numerics live in internal/ircerr next to their constructors).
// Grounded on command.go's inline literals, generalized the way
// github.com/horgh/irc names its ReplyWelcome/ReplyYoureOper constants.
const (
	ReplyWelcome  = "001"
	ReplyYourHost = "002"
	ReplyCreated  = "003"
	ReplyMyInfo   = "004"
)
