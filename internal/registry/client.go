package registry

import (
	"fmt"
	"sync"

	"github.com/harrow-ircd/harrowd/internal/ircerr"
)

// ClientState is the registration state of a connection, per spec §3's
// ClientType and the state machine in spec §4.6.
type ClientState int

const (
	StateUnregistered ClientState = iota
	StateProtoUser
	StateRegistered
	StateDead
)

func (s ClientState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateProtoUser:
		return "proto-user"
	case StateRegistered:
		return "registered"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// sendQueueSize bounds the outbound buffer per connection. Grounded on
// local_client.go's WriteChan(32768) in the teacher — sized generously
// so only a genuinely stuck peer ever overflows it.
const sendQueueSize = 4096

// Client is a connection handle: it owns the registration handshake
// state before a User exists, and afterward the outbound write side
// that the User's weak reference resolves through (spec §3's Client /
// §9's Go substitution for Weak<Client>).
type Client struct {
	ID uint64
	IP string

	mu       sync.Mutex
	state    ClientState
	protoNick, protoUser, protoReal string
	user     *User

	teardownOnce sync.Once

	outbound chan []byte
	// queueExceeded mirrors the teacher's LocalClient.SendQueueExceeded:
	// once set, further sends are dropped rather than retried, so one
	// slow peer can never stall anyone else.
	queueExceeded bool
}

// NewClient creates a Client in the Unregistered state with a buffered
// outbound queue of sendQueueSize lines.
func NewClient(id uint64, ip string) *Client {
	return &Client{
		ID:       id,
		IP:       ip,
		state:    StateUnregistered,
		outbound: make(chan []byte, sendQueueSize),
	}
}

// State returns the client's current registration state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the registered User, or nil if not yet registered.
func (c *Client) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// ProtoState returns the in-progress NICK/USER handshake fields.
func (c *Client) ProtoState() (nick, user, real string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protoNick, c.protoUser, c.protoReal
}

// SetProtoNick records a pending NICK before registration completes.
func (c *Client) SetProtoNick(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnregistered {
		c.state = StateProtoUser
	}
	c.protoNick = nick
}

// SetProtoUser records a pending USER/realname pair before registration
// completes.
func (c *Client) SetProtoUser(user, real string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnregistered {
		c.state = StateProtoUser
	}
	c.protoUser = user
	c.protoReal = real
}

// CompleteRegistration transitions the client into StateRegistered,
// attaching the newly created User.
func (c *Client) CompleteRegistration(u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateRegistered
	c.user = u
	c.protoNick, c.protoUser, c.protoReal = "", "", ""
}

// UpdateProtoNickAfterChange implements the NICK-while-ProtoUser
// transition in spec §4.6's table: ProtoUser{n,u,r} --NICK n'-->
// ProtoUser{n',u,r}.
func (c *Client) UpdateProtoNickAfterChange(newNick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protoNick = newNick
}

// Close transitions the client to Dead and, if registration had
// completed, eagerly tears down its User (spec §9's Go substitute for
// a Drop cascade) rather than leaving cleanup to the next lazy
// FetchClient resolution. Safe to call more than once.
func (c *Client) Close() {
	c.CloseWithReason("")
}

// CloseWithReason is Close, but with an explicit QUIT message —
// exposed separately so the dispatcher's QUIT command handler can pass
// along a client-supplied reason.
func (c *Client) CloseWithReason(reason string) {
	c.mu.Lock()
	already := c.state == StateDead
	c.state = StateDead
	u := c.user
	c.mu.Unlock()

	if already {
		return
	}
	close(c.outbound)
	c.teardownUser(u, reason)
}

// teardownUser runs u.Teardown at most once per client, however it was
// triggered (an explicit Close, or a User.FetchClient finding this
// client already dead) — both paths otherwise race to tear the same
// user down twice.
func (c *Client) teardownUser(u *User, reason string) {
	if u == nil {
		return
	}
	c.teardownOnce.Do(func() {
		u.Teardown(reason)
	})
}

// Outbound returns the channel of formatted lines a connection driver
// should write to the socket. This is the external collaborator
// boundary spec §1 calls out: harrowd's core never touches net.Conn
// directly.
func (c *Client) Outbound() <-chan []byte {
	return c.outbound
}

// SendLine queues a raw formatted line (CRLF included) for delivery.
// This is the sole suspension point in spec §5: it never blocks (it
// either enqueues or fails fast), matching the teacher's
// maybeQueueMessage/SendQueueExceeded pattern in local_client.go.
func (c *Client) SendLine(line string) error {
	c.mu.Lock()
	if c.state == StateDead {
		c.mu.Unlock()
		return &ircerr.Transport{Op: "send", Err: fmt.Errorf("client %d is dead", c.ID)}
	}
	if c.queueExceeded {
		c.mu.Unlock()
		return &ircerr.Transport{Op: "send", Err: fmt.Errorf("client %d send queue exceeded", c.ID)}
	}
	c.mu.Unlock()

	select {
	case c.outbound <- []byte(line):
		return nil
	default:
		c.mu.Lock()
		c.queueExceeded = true
		c.mu.Unlock()
		return &ircerr.Transport{Op: "send", Err: fmt.Errorf("client %d send queue full", c.ID)}
	}
}
