package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// fakeConn is an in-memory Conn that records every frame written to it.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte // text frames only
	pings    int
	closed   bool
	writeErr error
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	switch messageType {
	case websocket.TextMessage:
		f.frames = append(f.frames, data)
	case websocket.PingMessage:
		f.pings++
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) textFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// newIdleHub returns a hub whose tickers are effectively disabled so
// tests can drive pings and sweeps by hand.
func newIdleHub() *Hub {
	return NewHub(time.Hour, time.Hour, zap.NewNop())
}

func TestHub_BroadcastReachesEveryAliveConnection(t *testing.T) {
	h := newIdleHub()
	defer h.Close()

	c1 := &fakeConn{}
	c2 := &fakeConn{}
	c3 := &fakeConn{}
	h.Attach(1, c1)
	h.Attach(1, c2) // same user, second device
	h.Attach(2, c3)

	h.SeatReserved(12, model.SeatCoord{Row: 2, Col: 5})

	for _, fc := range []*fakeConn{c1, c2, c3} {
		frames := fc.textFrames()
		require.Len(t, frames, 1)
		var ev ReserveEvent
		require.NoError(t, json.Unmarshal(frames[0], &ev))
		assert.Equal(t, ActionReserve, ev.Action)
		assert.Equal(t, uint64(12), ev.ShowtimeID)
		assert.Equal(t, uint32(2), ev.Row)
		assert.Equal(t, uint32(5), ev.Column)
	}
}

func TestHub_CancelEventIsBatched(t *testing.T) {
	h := newIdleHub()
	defer h.Close()

	fc := &fakeConn{}
	h.Attach(1, fc)

	h.SeatsReleased(12, []model.SeatCoord{{Row: 1, Col: 1}, {Row: 1, Col: 2}})

	frames := fc.textFrames()
	require.Len(t, frames, 1)
	var ev CancelEvent
	require.NoError(t, json.Unmarshal(frames[0], &ev))
	assert.Equal(t, ActionCancel, ev.Action)
	assert.ElementsMatch(t, []uint32{1, 1}, ev.Rows)
	assert.ElementsMatch(t, []uint32{1, 2}, ev.Columns)
}

func TestHub_MissedPongsKillConnection(t *testing.T) {
	h := newIdleHub()
	defer h.Close()

	fc := &fakeConn{}
	client := h.Attach(1, fc)

	// Three unanswered pings keep the connection alive...
	for i := 0; i < missedPongLimit; i++ {
		require.NoError(t, client.writePing())
	}
	assert.True(t, client.alive())

	// ...the fourth pushes the missed count over the limit.
	require.NoError(t, client.writePing())
	assert.False(t, client.alive())

	// A dead connection receives nothing.
	h.SeatReserved(12, model.SeatCoord{Row: 1, Col: 1})
	assert.Empty(t, fc.textFrames())

	// The sweep prunes and closes it.
	h.sweep()
	assert.True(t, fc.isClosed())
	assert.Empty(t, h.snapshot())
}

func TestHub_PongWindsCounterBack(t *testing.T) {
	h := newIdleHub()
	defer h.Close()

	fc := &fakeConn{}
	client := h.Attach(1, fc)

	for i := 0; i < missedPongLimit; i++ {
		require.NoError(t, client.writePing())
	}
	client.PongReceived()
	require.NoError(t, client.writePing())
	// The pong bought one more interval; still alive.
	assert.True(t, client.alive())
}

func TestHub_WriteFailureMarksDead(t *testing.T) {
	h := newIdleHub()
	defer h.Close()

	broken := &fakeConn{writeErr: assert.AnError}
	healthy := &fakeConn{}
	h.Attach(1, broken)
	h.Attach(2, healthy)

	h.SeatReserved(12, model.SeatCoord{Row: 1, Col: 1})

	// The broken peer never aborts delivery to the rest.
	require.Len(t, healthy.textFrames(), 1)

	h.sweep()
	assert.True(t, broken.isClosed())
	require.Len(t, h.snapshot(), 1)
}

func TestHub_DetachRemovesConnection(t *testing.T) {
	h := newIdleHub()
	defer h.Close()

	fc := &fakeConn{}
	client := h.Attach(1, fc)
	h.Detach(client)

	assert.True(t, fc.isClosed())
	assert.Empty(t, h.snapshot())
}

func TestHub_CloseTearsEverythingDown(t *testing.T) {
	h := newIdleHub()
	c1 := &fakeConn{}
	c2 := &fakeConn{}
	h.Attach(1, c1)
	h.Attach(2, c2)

	h.Close()

	assert.True(t, c1.isClosed())
	assert.True(t, c2.isClosed())
	assert.Empty(t, h.snapshot())
}
