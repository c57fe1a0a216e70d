package dispatch

import (
	"testing"

	"github.com/harrow-ircd/harrowd/internal/proto"
	"github.com/harrow-ircd/harrowd/internal/registry"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) *proto.Message {
	t.Helper()
	msg, err := proto.Parse([]byte(line + "\r\n"))
	require.NoError(t, err)
	return msg
}

func drain(c *registry.Client) []string {
	var lines []string
	for {
		select {
		case b, ok := <-c.Outbound():
			if !ok {
				return lines
			}
			lines = append(lines, string(b))
		default:
			return lines
		}
	}
}

func newHarness(t *testing.T) (*Dispatcher, *registry.Namespace) {
	t.Helper()
	ns := registry.NewNamespace("irc.example.org")
	return New(ns, "harrowd-test", "2026-01-01"), ns
}

func TestRegistrationViaNickThenUser(t *testing.T) {
	d, ns := newHarness(t)
	c := registry.NewClient(1, "127.0.0.1")

	d.Command(c, mustParse(t, "NICK alice"))
	require.Equal(t, registry.StateProtoUser, c.State())

	d.Command(c, mustParse(t, "USER alice 0 * :Alice A"))
	require.Equal(t, registry.StateRegistered, c.State())

	u := c.User()
	require.Equal(t, "alice", u.Nick())
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "Alice A", u.RealName)

	found, ok := ns.GetNick("alice")
	require.True(t, ok)
	require.Same(t, u, found)

	lines := drain(c)
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "001")
}

func TestRegistrationViaUserThenNick(t *testing.T) {
	d, _ := newHarness(t)
	c := registry.NewClient(1, "127.0.0.1")

	d.Command(c, mustParse(t, "USER bob 0 * :Bob B"))
	require.Equal(t, registry.StateProtoUser, c.State())

	d.Command(c, mustParse(t, "NICK bob"))
	require.Equal(t, registry.StateRegistered, c.State())
}

func TestNickCollisionDuringRegistration(t *testing.T) {
	d, _ := newHarness(t)

	c1 := registry.NewClient(1, "127.0.0.1")
	d.Command(c1, mustParse(t, "NICK alice"))
	d.Command(c1, mustParse(t, "USER alice 0 * :Alice A"))

	c2 := registry.NewClient(2, "127.0.0.1")
	d.Command(c2, mustParse(t, "NICK alice"))
	d.Command(c2, mustParse(t, "USER alice 0 * :Someone Else"))

	require.NotEqual(t, registry.StateRegistered, c2.State())

	lines := drain(c2)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	require.Contains(t, last, "433")
	require.Contains(t, last, "alice")
}

func registerVia(t *testing.T, d *Dispatcher, id uint64, nick string) *registry.Client {
	t.Helper()
	c := registry.NewClient(id, "127.0.0.1")
	d.Command(c, mustParse(t, "NICK "+nick))
	d.Command(c, mustParse(t, "USER "+nick+" 0 * :"+nick))
	require.Equal(t, registry.StateRegistered, c.State())
	return c
}

func TestJoinTopicAndPrivmsgFanOut(t *testing.T) {
	d, _ := newHarness(t)

	c1 := registerVia(t, d, 1, "alice")
	drain(c1)
	d.Command(c1, mustParse(t, "JOIN #rust"))
	drain(c1)

	c2 := registerVia(t, d, 2, "bob")
	drain(c2)
	d.Command(c2, mustParse(t, "JOIN #rust"))
	drain(c1) // discard the JOIN broadcast alice receives when bob joins
	drain(c2)

	d.Command(c2, mustParse(t, "PRIVMSG #rust :hello"))

	lines := drain(c1)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "PRIVMSG #rust :hello")

	require.Empty(t, drain(c2), "sender does not receive its own PRIVMSG fan-out")
}

func TestTopicSetRequiresOp(t *testing.T) {
	d, _ := newHarness(t)

	c1 := registerVia(t, d, 1, "alice")
	d.Command(c1, mustParse(t, "JOIN #rust"))
	drain(c1)

	c2 := registerVia(t, d, 2, "bob")
	d.Command(c2, mustParse(t, "JOIN #rust"))
	drain(c1)
	drain(c2)

	d.Command(c2, mustParse(t, "TOPIC #rust :new topic"))
	lines := drain(c2)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "482")

	d.Command(c1, mustParse(t, "TOPIC #rust :new topic"))
	lines1 := drain(c1)
	require.Contains(t, lines1[0], "TOPIC #rust :new topic")
}

func TestQuitCommandTearsDownAndNotifiesWitnesses(t *testing.T) {
	d, ns := newHarness(t)

	c1 := registerVia(t, d, 1, "alice")
	d.Command(c1, mustParse(t, "JOIN #rust"))
	drain(c1)

	c2 := registerVia(t, d, 2, "bob")
	d.Command(c2, mustParse(t, "JOIN #rust"))
	drain(c1)
	drain(c2)

	d.Command(c1, mustParse(t, "QUIT :goodbye now"))
	require.Equal(t, registry.StateDead, c1.State())

	_, ok := ns.GetNick("alice")
	require.False(t, ok)

	lines := drain(c2)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "QUIT :goodbye now")
}
