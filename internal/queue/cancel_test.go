package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/model"
)

func cancelEnvelope(t *testing.T, body string) Envelope {
	t.Helper()
	return Envelope{CorrelationID: CorrelationCancel, Body: json.RawMessage(body)}
}

func TestCancellationWorker_BulkReleaseSingleBroadcast(t *testing.T) {
	ledger := newFakeLedger()
	ledger.releaseResult = []model.SeatCoord{
		{Row: 1, Col: 1},
		{Row: 1, Col: 2},
		{Row: 4, Col: 9},
	}
	bc := &fakeBroadcast{}
	cc := &fakeCache{}
	w := NewCancellationWorker(ledger, bc, cc, zap.NewNop())

	env := cancelEnvelope(t, `{"showtimeId":"7","userIds":["3","5"]}`)
	require.NoError(t, w.Handle(context.Background(), env))

	require.Len(t, ledger.releaseCalls, 1)
	assert.Equal(t, uint64(7), ledger.releaseCalls[0].showtimeID)
	assert.Equal(t, []uint64{3, 5}, ledger.releaseCalls[0].userIDs)

	// N freed seats, exactly one broadcast carrying all of them.
	require.Len(t, bc.released, 1)
	assert.Equal(t, uint64(7), bc.released[0].showtimeID)
	assert.Len(t, bc.released[0].seats, 3)
	assert.Equal(t, []uint64{7}, cc.invalidated)
}

func TestCancellationWorker_ScalarUserID(t *testing.T) {
	ledger := newFakeLedger()
	ledger.releaseResult = []model.SeatCoord{{Row: 2, Col: 2}}
	bc := &fakeBroadcast{}
	w := NewCancellationWorker(ledger, bc, nil, zap.NewNop())

	env := cancelEnvelope(t, `{"showtimeId":"7","userIds":"3"}`)
	require.NoError(t, w.Handle(context.Background(), env))

	require.Len(t, ledger.releaseCalls, 1)
	assert.Equal(t, []uint64{3}, ledger.releaseCalls[0].userIDs)
	assert.Len(t, bc.released, 1)
}

func TestCancellationWorker_NothingToCancelAcksCleanly(t *testing.T) {
	ledger := newFakeLedger()
	ledger.releaseResult = []model.SeatCoord{}
	bc := &fakeBroadcast{}
	cc := &fakeCache{}
	w := NewCancellationWorker(ledger, bc, cc, zap.NewNop())

	env := cancelEnvelope(t, `{"showtimeId":"7","userIds":["3"]}`)
	require.NoError(t, w.Handle(context.Background(), env))

	// Zero rows deleted: no broadcast, no invalidation, still an ack.
	assert.Empty(t, bc.released)
	assert.Empty(t, cc.invalidated)
}

func TestCancellationWorker_ForeignDiscriminatorIsInert(t *testing.T) {
	ledger := newFakeLedger()
	bc := &fakeBroadcast{}
	w := NewCancellationWorker(ledger, bc, nil, zap.NewNop())

	env := Envelope{CorrelationID: CorrelationReserveConfirm, Body: json.RawMessage(`{}`)}
	require.ErrorIs(t, w.Handle(context.Background(), env), ErrUnhandled)
	assert.Empty(t, ledger.releaseCalls)
	assert.Empty(t, bc.released)
}

func TestCancellationWorker_LedgerFailurePropagates(t *testing.T) {
	ledger := newFakeLedger()
	ledger.releaseErr = errors.New("deadlock")
	bc := &fakeBroadcast{}
	w := NewCancellationWorker(ledger, bc, nil, zap.NewNop())

	env := cancelEnvelope(t, `{"showtimeId":"7","userIds":["3"]}`)
	err := w.Handle(context.Background(), env)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhandled)
	assert.Empty(t, bc.released)
}

func TestCancellationWorker_MalformedBody(t *testing.T) {
	w := NewCancellationWorker(newFakeLedger(), &fakeBroadcast{}, nil, zap.NewNop())
	env := cancelEnvelope(t, `{"userIds":{}}`)
	require.ErrorIs(t, w.Handle(context.Background(), env), ErrMalformed)
}
