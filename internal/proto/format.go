package proto

import (
	"strings"

	"github.com/harrow-ircd/harrowd/internal/rfc"
)

// Format renders m back to wire form, CRLF included. It is the inverse
// of Parse and is used both by the registry/dispatcher to build
// outbound lines and by the round-trip property tests in spec §8.
//
// Grounded on github.com/horgh/irc's Message.Encode: a parameter is
// prefixed with ':' (becoming the trailing parameter) whenever it
// contains a space, starts with ':', or is empty, and that can only
// be the final parameter. A constructor that knows its final
// parameter is free text rather than a bare token sets m.Trailing to
// force the colon unconditionally, since RFC 2812 always permits
// (but doesn't require) colon-prefixing the trailing parameter.
func (m *Message) Format() string {
	var b strings.Builder

	if m.Prefix != nil {
		b.WriteByte(':')
		b.WriteString(m.Prefix.String())
		b.WriteByte(' ')
	}

	b.WriteString(m.Command)

	for i, param := range m.Params {
		isLast := i+1 == len(m.Params)
		needsColon := strings.ContainsRune(param, ' ') ||
			(param != "" && param[0] == ':') ||
			param == "" ||
			(isLast && m.Trailing)

		b.WriteByte(' ')
		if needsColon {
			b.WriteByte(':')
		}
		b.WriteString(param)

		if needsColon && i+1 != len(m.Params) {
			// A trailing parameter must be last; callers are expected to
			// never build a Message violating this. If one does, the
			// parameters after this one are dropped from the output.
			break
		}
	}

	b.WriteString("\r\n")
	return b.String()
}

// MaxLineLength re-exports rfc.MaxMsgSize for callers that only need
// the proto package.
const MaxLineLength = rfc.MaxMsgSize
