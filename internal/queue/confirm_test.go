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

func confirmEnvelope(t *testing.T, reply ReserveConfirmReply) Envelope {
	t.Helper()
	body, err := json.Marshal(reply)
	require.NoError(t, err)
	return Envelope{CorrelationID: CorrelationReserveConfirm, Body: body}
}

func TestConfirmationWorker_AttachAndBroadcast(t *testing.T) {
	ledger := newFakeLedger()
	bc := &fakeBroadcast{}
	cc := &fakeCache{}
	w := NewConfirmationWorker(ledger, bc, cc, zap.NewNop())

	env := confirmEnvelope(t, ReserveConfirmReply{
		ShowtimeID:    7,
		Row:           2,
		Column:        5,
		ReservationID: 41,
		SettlementRef: "txn-1",
	})
	require.NoError(t, w.Handle(context.Background(), env))

	assert.Equal(t, "txn-1", ledger.refs[41])
	require.Len(t, bc.reserved, 1)
	assert.Equal(t, uint64(7), bc.reserved[0].showtimeID)
	assert.Equal(t, model.SeatCoord{Row: 2, Col: 5}, bc.reserved[0].seat)
	assert.Equal(t, []uint64{7}, cc.invalidated)
}

func TestConfirmationWorker_RedeliveryIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	bc := &fakeBroadcast{}
	w := NewConfirmationWorker(ledger, bc, nil, zap.NewNop())

	env := confirmEnvelope(t, ReserveConfirmReply{
		ShowtimeID: 7, Row: 2, Column: 5, ReservationID: 41, SettlementRef: "txn-1",
	})
	require.NoError(t, w.Handle(context.Background(), env))
	require.NoError(t, w.Handle(context.Background(), env))

	// The record stays confirmed with exactly one reference.
	assert.Equal(t, "txn-1", ledger.refs[41])
	assert.Len(t, ledger.refs, 1)
}

func TestConfirmationWorker_ConflictingReferenceIsDropped(t *testing.T) {
	ledger := newFakeLedger()
	ledger.refs[41] = "txn-1"
	bc := &fakeBroadcast{}
	w := NewConfirmationWorker(ledger, bc, nil, zap.NewNop())

	env := confirmEnvelope(t, ReserveConfirmReply{
		ShowtimeID: 7, Row: 2, Column: 5, ReservationID: 41, SettlementRef: "txn-2",
	})
	// Redelivery could never succeed, so the worker must ack (nil).
	require.NoError(t, w.Handle(context.Background(), env))

	assert.Equal(t, "txn-1", ledger.refs[41])
	assert.Empty(t, bc.reserved)
}

func TestConfirmationWorker_FailedSettlementFreesSeat(t *testing.T) {
	ledger := newFakeLedger()
	ledger.refs[41] = "" // pending hold
	bc := &fakeBroadcast{}
	cc := &fakeCache{}
	w := NewConfirmationWorker(ledger, bc, cc, zap.NewNop())

	env := confirmEnvelope(t, ReserveConfirmReply{
		ShowtimeID: 7, Row: 2, Column: 5, ReservationID: 41,
	})
	require.NoError(t, w.Handle(context.Background(), env))

	assert.Equal(t, []uint64{41}, ledger.deleted)
	assert.NotContains(t, ledger.refs, uint64(41))
	// The seat reverts to free silently; no broadcast on this path.
	assert.Empty(t, bc.reserved)
	assert.Equal(t, []uint64{7}, cc.invalidated)
}

func TestConfirmationWorker_ForeignDiscriminatorIsInert(t *testing.T) {
	ledger := newFakeLedger()
	bc := &fakeBroadcast{}
	w := NewConfirmationWorker(ledger, bc, nil, zap.NewNop())

	env := Envelope{CorrelationID: CorrelationCancel, Body: json.RawMessage(`{"showtimeId":"7","userIds":"3"}`)}
	err := w.Handle(context.Background(), env)
	require.ErrorIs(t, err, ErrUnhandled)

	// Zero ledger mutations, zero broadcast sends.
	assert.Empty(t, ledger.refs)
	assert.Empty(t, ledger.deleted)
	assert.Empty(t, bc.reserved)
}

func TestConfirmationWorker_LedgerFailurePropagates(t *testing.T) {
	ledger := newFakeLedger()
	ledger.attachErr = errors.New("connection reset")
	bc := &fakeBroadcast{}
	w := NewConfirmationWorker(ledger, bc, nil, zap.NewNop())

	env := confirmEnvelope(t, ReserveConfirmReply{ReservationID: 41, SettlementRef: "txn-1"})
	err := w.Handle(context.Background(), env)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhandled)
	assert.NotErrorIs(t, err, ErrMalformed)
	// No broadcast without a successful ledger write.
	assert.Empty(t, bc.reserved)
}

func TestConfirmationWorker_MalformedBody(t *testing.T) {
	w := NewConfirmationWorker(newFakeLedger(), &fakeBroadcast{}, nil, zap.NewNop())
	env := Envelope{CorrelationID: CorrelationReserveConfirm, Body: json.RawMessage(`{"row":`)}
	err := w.Handle(context.Background(), env)
	require.ErrorIs(t, err, ErrMalformed)
}
