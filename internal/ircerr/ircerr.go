// Package ircerr defines the error kinds shared by harrowd's parser,
// namespace registry, and command dispatcher: protocol errors (reported
// to the offending client as a numeric reply), parse errors (logged and
// the frame dropped), transport errors (trigger connection cleanup), and
// internal signalling errors (never sent on the wire).
package ircerr

import "fmt"

// Protocol is a command-level error that the dispatcher turns into a
// numeric reply sent back to the offending client (unless suppressed,
// as NOTICE always is).
type Protocol struct {
	Code   string // e.g. "433"
	Target string // the nick, channel, or command the error concerns
	Text   string
}

func (e *Protocol) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Code, e.Target, e.Text)
}

// Protocol error constructors, one per numeric in spec §6.
func NoSuchNick(name string) *Protocol {
	return &Protocol{Code: "401", Target: name, Text: "No such nick/channel"}
}

func NoSuchChannel(chan_ string) *Protocol {
	return &Protocol{Code: "403", Target: chan_, Text: "No such channel"}
}

func NoRecipient(cmd string) *Protocol {
	return &Protocol{Code: "411", Text: fmt.Sprintf("No recipient given (%s)", cmd)}
}

func NoTextToSend() *Protocol {
	return &Protocol{Code: "412", Text: "No text to send"}
}

func UnknownCommand(cmd string) *Protocol {
	return &Protocol{Code: "421", Target: cmd, Text: "Unknown command"}
}

func ErroneusNickname(nick string) *Protocol {
	return &Protocol{Code: "432", Target: nick, Text: "Erroneous nickname"}
}

func NicknameInUse(nick string) *Protocol {
	return &Protocol{Code: "433", Target: nick, Text: "Nickname is already in use"}
}

func NotOnChannel(chan_ string) *Protocol {
	return &Protocol{Code: "442", Target: chan_, Text: "You're not on that channel"}
}

func NotRegistered() *Protocol {
	return &Protocol{Code: "451", Text: "You have not registered"}
}

func NeedMoreParams(cmd string) *Protocol {
	return &Protocol{Code: "461", Target: cmd, Text: "Not enough parameters"}
}

func AlreadyRegistered() *Protocol {
	return &Protocol{Code: "462", Text: "Unauthorized command (already registered)"}
}

func ChanOPrivsNeeded(chan_ string) *Protocol {
	return &Protocol{Code: "482", Target: chan_, Text: "You're not channel operator"}
}

// Parse errors come out of internal/proto when a frame does not conform
// to the grammar in spec §4.3. They are logged and the frame is
// dropped; the connection is not closed for a single bad frame.
type Parse struct {
	Kind string // InvalidPrefix, NoCommand, InvalidCommand, InvalidNick, InvalidUser, InvalidHost
	Info string
}

func (e *Parse) Error() string {
	if e.Info == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Info)
}

func NewParseError(kind, info string) *Parse {
	return &Parse{Kind: kind, Info: info}
}

// Transport errors are never reported to the peer; they trigger
// connection/registry cleanup.
type Transport struct {
	Op  string
	Err error
}

func (e *Transport) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Transport) Unwrap() error { return e.Err }

// ErrOverflow is returned by the message buffer when an append would
// exceed its fixed capacity without having produced a complete frame.
var ErrOverflow = &Transport{Op: "append", Err: fmt.Errorf("message buffer overflow")}

// DeadUser signals that a nick's owning client could not be reached
// (its weak/id-based reference failed to resolve). It is internal
// plumbing, never sent on the wire.
type DeadUser struct {
	Nick string
}

func (e *DeadUser) Error() string {
	return fmt.Sprintf("dead user: %s", e.Nick)
}

// DeadClient signals that a User's owning Client is gone. Witnesses is
// a slot for the channels that still have other members; the registry's
// User.FetchClient leaves it empty, since the teardown it triggers
// broadcasts the QUIT to those channels itself.
type DeadClient struct {
	Nick      string
	Witnesses []string
}

func (e *DeadClient) Error() string {
	return fmt.Sprintf("dead client: %s", e.Nick)
}
