package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// missedPongLimit is the number of consecutive unanswered pings after
// which a connection is considered dead.
const missedPongLimit = 3

// Conn is the slice of *websocket.Conn the hub needs.  Tests substitute
// an in-memory implementation.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection of one authenticated user.  Its
// liveness is a small state machine – alive with a missed-pong count,
// or dead – driven by the hub's ping and sweep tickers.  A user with
// several devices holds several Clients.
type Client struct {
	userID uint64
	conn   Conn

	mu     sync.Mutex
	missed int
	dead   bool
}

func newClient(userID uint64, conn Conn) *Client {
	return &Client{userID: userID, conn: conn}
}

// UserID returns the authenticated user this connection belongs to.
func (c *Client) UserID() uint64 { return c.userID }

// PongReceived records a pong from the peer, winding the missed
// counter back down.  A dead client stays dead; pruning is already on
// its way.
func (c *Client) PongReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.missed > 0 {
		c.missed--
	}
}

// pingSent records an outgoing ping and transitions the client to dead
// once the missed count exceeds the limit.
func (c *Client) pingSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missed++
	if c.missed > missedPongLimit {
		c.dead = true
	}
}

// alive reports whether the client may still be written to.
func (c *Client) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

// markDead flags the client for pruning without closing the transport;
// the sweep owns the close.
func (c *Client) markDead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dead = true
}

// write serialises all frame writes on this connection.  Dead clients
// are never written to.
func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return nil
	}
	return c.conn.WriteMessage(messageType, data)
}

// writeText sends one JSON text frame.
func (c *Client) writeText(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

// writePing sends one ping control frame and advances the liveness
// counter.  The counter moves even if the write fails: an unwritable
// connection should age toward dead, not linger.
func (c *Client) writePing() error {
	err := c.write(websocket.PingMessage, nil)
	c.pingSent()
	return err
}
