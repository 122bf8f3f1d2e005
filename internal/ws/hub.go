package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// Hub owns the registry of live connections keyed by user id and runs
// the two periodic tasks that keep it honest: a ping sender and a
// dead-connection sweeper, on independent intervals.  The registry is
// mutated only by admission (Attach), connection teardown (Detach) and
// the sweep; broadcasts take the lock briefly to snapshot the alive
// set and write outside it.
type Hub struct {
	logger        *zap.Logger
	pingInterval  time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	clients map[uint64][]*Client

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub constructs a Hub.  Call Start to launch the periodic tasks
// and Close to tear everything down.
func NewHub(pingInterval, sweepInterval time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		logger:        logger,
		pingInterval:  pingInterval,
		sweepInterval: sweepInterval,
		clients:       make(map[uint64][]*Client),
		done:          make(chan struct{}),
	}
}

// Start launches the ping and sweep loops.
func (h *Hub) Start() {
	h.wg.Add(2)
	go h.pingLoop()
	go h.sweepLoop()
}

// Close forcibly closes every live connection, clears the registry and
// cancels the periodic tasks.  Clients are not notified beyond the
// transport-level close.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for _, c := range conns {
			_ = c.conn.Close()
		}
	}
	h.clients = make(map[uint64][]*Client)
}

// Attach admits an authenticated connection into the registry and
// returns its Client handle.  Credential checks happen before this
// point; the hub never sees unauthenticated transports.
func (h *Hub) Attach(userID uint64, conn Conn) *Client {
	c := newClient(userID, conn)
	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], c)
	total := h.size()
	h.mu.Unlock()
	h.logger.Info("connection attached",
		zap.Uint64("user_id", userID), zap.Int("connections", total))
	return c
}

// Detach removes one connection from the registry and closes its
// transport.  Called when the connection's read loop ends.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// SeatReserved implements queue.Broadcaster: announce one confirmed
// seat to every alive connection.
func (h *Hub) SeatReserved(showtimeID uint64, seat model.SeatCoord) {
	h.broadcast(ReserveEvent{
		Action:     ActionReserve,
		ShowtimeID: showtimeID,
		Row:        seat.Row,
		Column:     seat.Col,
	})
}

// SeatsReleased implements queue.Broadcaster: announce a batch of
// freed seats in one frame.
func (h *Hub) SeatsReleased(showtimeID uint64, seats []model.SeatCoord) {
	ev := CancelEvent{
		Action:     ActionCancel,
		ShowtimeID: showtimeID,
		Rows:       make([]uint32, 0, len(seats)),
		Columns:    make([]uint32, 0, len(seats)),
	}
	for _, s := range seats {
		ev.Rows = append(ev.Rows, s.Row)
		ev.Columns = append(ev.Columns, s.Col)
	}
	h.broadcast(ev)
}

// broadcast marshals the event once and writes it to every alive
// connection.  A failed write is logged and the connection marked dead
// for the next sweep; one broken peer never aborts delivery to the
// rest.
func (h *Hub) broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("broadcast marshal failed", zap.Error(err))
		return
	}
	for _, c := range h.snapshot() {
		if err := c.writeText(data); err != nil {
			h.logger.Warn("broadcast send failed",
				zap.Uint64("user_id", c.userID), zap.Error(err))
			c.markDead()
		}
	}
}

func (h *Hub) pingLoop() {
	defer h.wg.Done()
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-t.C:
			for _, c := range h.snapshot() {
				if err := c.writePing(); err != nil {
					h.logger.Debug("ping failed",
						zap.Uint64("user_id", c.userID), zap.Error(err))
				}
			}
		}
	}
}

func (h *Hub) sweepLoop() {
	defer h.wg.Done()
	t := time.NewTicker(h.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-t.C:
			h.sweep()
		}
	}
}

// sweep prunes dead connections from the registry and closes their
// transports.
func (h *Hub) sweep() {
	var pruned []*Client
	h.mu.Lock()
	for uid, conns := range h.clients {
		kept := conns[:0]
		for _, c := range conns {
			if c.alive() {
				kept = append(kept, c)
			} else {
				pruned = append(pruned, c)
			}
		}
		if len(kept) == 0 {
			delete(h.clients, uid)
		} else {
			h.clients[uid] = kept
		}
	}
	h.mu.Unlock()

	for _, c := range pruned {
		_ = c.conn.Close()
		h.logger.Info("dead connection pruned", zap.Uint64("user_id", c.userID))
	}
}

// removeLocked drops one client from the registry.  Caller must hold
// h.mu.  Removing a client the sweep already pruned is a no-op.
func (h *Hub) removeLocked(c *Client) {
	conns := h.clients[c.userID]
	for i, existing := range conns {
		if existing == c {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	} else {
		h.clients[c.userID] = conns
	}
}

// snapshot returns the alive clients under a brief lock so writes
// happen outside it.
func (h *Hub) snapshot() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, h.size())
	for _, conns := range h.clients {
		for _, c := range conns {
			if c.alive() {
				out = append(out, c)
			}
		}
	}
	return out
}

// size counts registered connections.  Caller must hold h.mu.
func (h *Hub) size() int {
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}
