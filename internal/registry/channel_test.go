package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelSortedNickListOrdersCaseInsensitivelyAndMarksOps(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u1, _ := registerUser(t, ns, 1, "Zed")
	u2, _ := registerUser(t, ns, 2, "amy")
	u3, _ := registerUser(t, ns, 3, "Bob")

	require.NoError(t, ns.JoinChannel(u1, "#rust")) // creator, opped
	require.NoError(t, ns.JoinChannel(u2, "#rust"))
	require.NoError(t, ns.JoinChannel(u3, "#rust"))

	ch, _ := ns.GetChan("#rust")
	require.Equal(t, []string{"amy", "Bob", "@Zed"}, ch.SortedNickList())
}

func TestChannelRemoveMemberReportsRemainingMembers(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u1, _ := registerUser(t, ns, 1, "alice")
	u2, _ := registerUser(t, ns, 2, "bob")
	require.NoError(t, ns.JoinChannel(u1, "#rust"))
	require.NoError(t, ns.JoinChannel(u2, "#rust"))

	ch, _ := ns.GetChan("#rust")
	require.True(t, ch.RemoveMember(u1.ID))
	require.False(t, ch.RemoveMember(u2.ID))
}

func TestChannelSendMsgExcludesSender(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u1, c1 := registerUser(t, ns, 1, "alice")
	u2, c2 := registerUser(t, ns, 2, "bob")
	require.NoError(t, ns.JoinChannel(u1, "#rust"))
	require.NoError(t, ns.JoinChannel(u2, "#rust"))
	drain(c1)
	drain(c2)

	ch, _ := ns.GetChan("#rust")
	ch.SendMsg(u1, "PRIVMSG", "#rust", "hello there")

	require.Empty(t, drain(c1))
	lines := drain(c2)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "PRIVMSG #rust :hello there")
}

func TestChannelUpdateNickRekeysIndexNotMembers(t *testing.T) {
	ch := newChannel("#rust")
	ns := NewNamespace("irc.example.org")
	u, _ := registerUser(t, ns, 1, "alice")
	ch.AddMember(u, true)

	require.True(t, ch.IsJoinedNick("alice"))
	ch.UpdateNick("alice", "alicia")
	require.False(t, ch.IsJoinedNick("alice"))
	require.True(t, ch.IsJoinedNick("alicia"))
	require.True(t, ch.IsJoined(u.ID), "membership keyed on id survives a rename untouched")
}

func TestChannelNamesReplySplitsAcrossLinesWhenTooLong(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	creator, cc := registerUser(t, ns, 1, "creator")
	require.NoError(t, ns.JoinChannel(creator, "#rust"))
	drain(cc)

	// Add enough long nicks that a single 353 line would blow the
	// pre-CRLF budget, forcing the splitter to emit more than one.
	for i := 0; i < 80; i++ {
		u, _ := registerUser(t, ns, uint64(i+2), nickFor(i))
		require.NoError(t, ns.JoinChannel(u, "#rust"))
	}

	joiner, jc := registerUser(t, ns, 1000, "joiner")
	require.NoError(t, ns.JoinChannel(joiner, "#rust"))

	lines := drain(jc)
	namesLines := 0
	for _, l := range lines {
		if containsCode(l, "353") {
			require.LessOrEqual(t, len(l), 512, "each 353 line must fit the wire frame limit")
			namesLines++
		}
	}
	require.Greater(t, namesLines, 1, "membership should have required more than one NAMES line")
}

func nickFor(i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return "member" + string(letters[i%26]) + string(letters[(i/26)%26])
}

func containsCode(line, code string) bool {
	for i := 0; i+len(code) <= len(line); i++ {
		if line[i:i+len(code)] == code {
			return true
		}
	}
	return false
}
