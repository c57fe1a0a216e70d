package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserChannelListAndTeardownAreIdempotent(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u, _ := registerUser(t, ns, 1, "alice")
	require.NoError(t, ns.JoinChannel(u, "#rust"))
	require.NoError(t, ns.JoinChannel(u, "#go"))
	require.ElementsMatch(t, []string{"#rust", "#go"}, u.ChannelList())

	first := u.Teardown("")
	require.Empty(t, first, "solo member leaving empties both channels")
	require.Empty(t, u.ChannelList())

	second := u.Teardown("")
	require.Empty(t, second, "teardown must be safe to call twice")
}

func TestFetchClientReturnsLiveClient(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u, c := registerUser(t, ns, 1, "alice")

	got, err := u.FetchClient()
	require.NoError(t, err)
	require.Same(t, c, got)
}

func TestFetchClientOnDeadClientTearsDownAndErrors(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u, c := registerUser(t, ns, 1, "alice")
	require.NoError(t, ns.JoinChannel(u, "#rust"))

	c.Close()
	_, err := u.FetchClient()
	require.Error(t, err)

	_, ok := ns.GetChan("#rust")
	require.False(t, ok)
	_, ok = ns.GetNick("alice")
	require.False(t, ok)
}

func TestSendRplFormatsNickFirstReply(t *testing.T) {
	ns := NewNamespace("irc.example.org")
	u, c := registerUser(t, ns, 1, "alice")

	require.NoError(t, u.SendRpl("375", "message of the day"))
	lines := drain(c)
	require.Len(t, lines, 1)
	require.Equal(t, ":irc.example.org 375 alice :message of the day\r\n", lines[0])
}
