// Package proto implements the RFC 2812 message grammar: parsing a single
// CRLF-terminated frame into a structured Message, and formatting a
// Message back into wire bytes. It is byte-stream-free — framing is
// internal/msgbuf's job; proto only ever sees one complete frame at a
// time. Grounded on original_source/src/parser.rs for the parsing
// algorithm and on github.com/horgh/irc's decode.go/encode.go for
// idiomatic Go shape (small string-splitting helpers returning
// (before, after, ok)).
package proto

import (
	"strings"

	"github.com/harrow-ircd/harrowd/internal/ircerr"
	"github.com/harrow-ircd/harrowd/internal/rfc"
)

// PrefixKind tags which of the four RFC 2812 prefix shapes a Prefix
// holds. Name is the ambiguous case: valid as both a nickname and a
// hostname, with no syntactic way to tell which was meant (spec §9).
type PrefixKind int

const (
	PrefixName PrefixKind = iota
	PrefixNickHost
	PrefixNickUserHost
	PrefixHost
)

// Prefix is the optional ":source " preamble of a message.
type Prefix struct {
	Kind PrefixKind
	Name string // set when Kind == PrefixName
	Nick string // set when Kind == PrefixNickHost or PrefixNickUserHost
	User string // set when Kind == PrefixNickUserHost
	Host string // set when Kind == PrefixNickHost, PrefixNickUserHost, or PrefixHost
}

// String renders the prefix back to wire form, without the leading ':'.
func (p *Prefix) String() string {
	switch p.Kind {
	case PrefixName:
		return p.Name
	case PrefixNickHost:
		return p.Nick + "@" + p.Host
	case PrefixNickUserHost:
		return p.Nick + "!" + p.User + "@" + p.Host
	case PrefixHost:
		return p.Host
	default:
		return ""
	}
}

// Message is a parsed IRC protocol message: an optional prefix, a
// command, and at most 15 parameters.
type Message struct {
	Prefix  *Prefix
	Command string
	Params  []string

	// Trailing marks the last entry of Params as RFC 2812's trailing
	// parameter: free text such as a PRIVMSG body, a topic, or a NAMES
	// line, which must always be colon-prefixed on the wire even when
	// it happens to contain no space. Constructors building a message
	// to send set this; Parse never needs to, since a parsed message is
	// never re-Formatted as the message it was parsed from.
	Trailing bool
}

// Parse parses a single frame (CRLF included). It implements the
// algorithm of spec §4.3 step by step.
func Parse(frame []byte) (*Message, error) {
	line := string(frame)
	line = strings.TrimSuffix(line, "\r\n")

	if len(line) == 0 {
		return nil, ircerr.NewParseError("NoCommand", "empty frame")
	}

	if containsControlBytes(line) {
		return nil, ircerr.NewParseError("InvalidCommand", "control byte in frame")
	}

	msg := &Message{}
	body := line

	if line[0] == ':' {
		prefixStr, rest, ok := splitOnFirstSpace(line[1:])
		if !ok {
			return nil, ircerr.NewParseError("NoCommand", "prefix with no command")
		}

		prefix, err := parsePrefix(prefixStr)
		if err != nil {
			return nil, err
		}
		msg.Prefix = prefix
		body = rest
	}

	command, rest, hasRest := splitOnFirstSpace(body)
	if !hasRest {
		command = body
	}
	if !rfc.ValidCommand(command) {
		return nil, ircerr.NewParseError("InvalidCommand", command)
	}
	msg.Command = strings.ToUpper(command)

	if !hasRest {
		msg.Params = nil
		return msg, nil
	}

	msg.Params = parseParams(rest)
	if len(msg.Params) > rfc.MaxMsgParams {
		msg.Params = msg.Params[:rfc.MaxMsgParams]
	}

	return msg, nil
}

func containsControlBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 || s[i] == '\r' || s[i] == '\n' {
			return true
		}
	}
	return false
}

// splitOnFirstSpace splits s on its first SP into (before, after). ok is
// false if s contains no SP, in which case before == s.
func splitOnFirstSpace(s string) (before, after string, ok bool) {
	idx := strings.IndexByte(s, ' ')
	if idx == -1 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

// parseParams implements the <params> production of spec §4.3's
// grammar: up to 14 middle tokens plus an optional trailing parameter
// introduced by a leading ':' — either right at the start of rest (no
// middles at all) or after a SPACE — with the tie-break that a " :"
// appearing only after 14 middles are already consumed is treated as
// ordinary data.
func parseParams(rest string) []string {
	if strings.HasPrefix(rest, ":") {
		return []string{rest[1:]}
	}

	if i := strings.Index(rest, " :"); i != -1 {
		middle := rest[:i]
		trail := rest[i+2:]

		middleTokens := splitNonEmptySpaces(middle)
		if len(middleTokens) < rfc.MaxMsgParams-1 {
			params := splitN(middle, rfc.MaxMsgParams-1)
			params = append(params, trail)
			return params
		}

		// Already have 14+ middles: the " :" is data, not a separator.
		return splitN(rest, rfc.MaxMsgParams)
	}

	return splitN(rest, rfc.MaxMsgParams)
}

// splitNonEmptySpaces splits on single spaces, dropping empty tokens,
// purely to count how many middle tokens are present.
func splitNonEmptySpaces(s string) []string {
	fields := strings.Split(s, " ")
	var out []string
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// splitN splits s on SP into at most n tokens; the final token absorbs
// the remainder of the string verbatim (colon included, if any).
func splitN(s string, n int) []string {
	if s == "" {
		return nil
	}
	return strings.SplitN(s, " ", n)
}

// parsePrefix implements spec §4.3 step 5.
func parsePrefix(s string) (*Prefix, error) {
	name, host, hasHost := cutFirst(s, '@')

	if hasHost {
		nick, user, hasUser := cutFirst(name, '!')
		if hasUser {
			if !rfc.ValidUser(user) {
				return nil, ircerr.NewParseError("InvalidUser", user)
			}
			if !rfc.ValidNick(nick) {
				return nil, ircerr.NewParseError("InvalidNick", nick)
			}
			if !validHost(host) {
				return nil, ircerr.NewParseError("InvalidHost", host)
			}
			return &Prefix{Kind: PrefixNickUserHost, Nick: nick, User: user, Host: host}, nil
		}

		nick = name
		if !rfc.ValidNick(nick) {
			return nil, ircerr.NewParseError("InvalidNick", nick)
		}
		if !validHost(host) {
			return nil, ircerr.NewParseError("InvalidHost", host)
		}
		return &Prefix{Kind: PrefixNickHost, Nick: nick, Host: host}, nil
	}

	// No '@': name is ambiguous between nick and host.
	validAsHost := validHost(name)
	validAsNick := rfc.ValidNick(name)

	switch {
	case validAsHost && validAsNick:
		return &Prefix{Kind: PrefixName, Name: name}, nil
	case validAsHost:
		return &Prefix{Kind: PrefixHost, Host: name}, nil
	case validAsNick:
		// spec §3's data model has no standalone "nick only" prefix
		// variant (the Rust original referenced an undefined
		// MsgPrefix::Nick — see DESIGN.md's Open Question decisions); fold it
		// into NickHost with an empty Host, the closest of the four
		// declared variants.
		return &Prefix{Kind: PrefixNickHost, Nick: name}, nil
	default:
		return nil, ircerr.NewParseError("InvalidPrefix", name)
	}
}

// cutFirst splits s on the first occurrence of sep, RFC-prefix style:
// if sep is not present, ok is false and before == s.
func cutFirst(s string, sep byte) (before, after string, ok bool) {
	idx := strings.IndexByte(s, sep)
	if idx == -1 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}

// validHost reports whether s is a valid host literal: IPv4, then
// IPv6, then hostname, first match wins (spec §4.3 step 5).
func validHost(s string) bool {
	return rfc.ValidIPv4(s) || rfc.ValidIPv6(s) || rfc.ValidHostname(s)
}
