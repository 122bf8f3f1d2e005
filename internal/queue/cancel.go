package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// CancellationWorker releases confirmed seats in bulk.  It owns the
// reservation.cancel discriminator.  The ledger only ever removes
// CONFIRMED rows on this path, so a seat mid-confirmation survives a
// concurrent cancellation untouched.  All freed seats of one message
// are announced in a single batched broadcast; one message never
// produces more than one broadcast regardless of how many seats it
// frees.  A zero-row delete is a clean acknowledgement, not an error.
type CancellationWorker struct {
	ledger    SeatLedger
	broadcast Broadcaster
	cache     SeatMapCache
	logger    *zap.Logger
}

// NewCancellationWorker wires a CancellationWorker.  cache may be nil.
func NewCancellationWorker(ledger SeatLedger, b Broadcaster, cache SeatMapCache, logger *zap.Logger) *CancellationWorker {
	return &CancellationWorker{ledger: ledger, broadcast: b, cache: cache, logger: logger}
}

// Handle implements Handler.
func (w *CancellationWorker) Handle(ctx context.Context, env Envelope) error {
	if env.CorrelationID != CorrelationCancel {
		return ErrUnhandled
	}
	var reply CancelReply
	if err := json.Unmarshal(env.Body, &reply); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	freed, err := w.ledger.ReleaseConfirmed(ctx, reply.ShowtimeID, reply.UserIDs)
	if err != nil {
		return fmt.Errorf("release confirmed seats for showtime %d: %w", reply.ShowtimeID, err)
	}
	if len(freed) == 0 {
		return nil
	}
	w.logger.Info("confirmed seats released",
		zap.Uint64("showtime_id", reply.ShowtimeID),
		zap.Int("seats", len(freed)))
	w.broadcast.SeatsReleased(reply.ShowtimeID, freed)
	if w.cache != nil {
		w.cache.Invalidate(ctx, reply.ShowtimeID)
	}
	return nil
}
