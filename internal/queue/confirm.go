package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// SeatLedger is the slice of the reservation store the workers mutate.
// Implemented by repository.ReservationRepo.
type SeatLedger interface {
	AttachSettlementRef(ctx context.Context, reservationID uint64, ref string) error
	DeleteByID(ctx context.Context, reservationID uint64) error
	ReleaseConfirmed(ctx context.Context, showtimeID uint64, userIDs []uint64) ([]model.SeatCoord, error)
}

// Broadcaster fans seat-state deltas out to live connections.
// Implementations are best-effort: delivery failures are contained
// inside the broadcast layer and never surface here.
type Broadcaster interface {
	SeatReserved(showtimeID uint64, seat model.SeatCoord)
	SeatsReleased(showtimeID uint64, seats []model.SeatCoord)
}

// SeatMapCache invalidates cached seat maps after a ledger mutation.
// Optional; a nil cache disables invalidation.
type SeatMapCache interface {
	Invalidate(ctx context.Context, showtimeID uint64)
}

// ConfirmationWorker applies settlement replies to the seat ledger.
// It owns the reservation.confirm discriminator.  Per reservation row
// the state machine is:
//
//	PENDING -> CONFIRMED   settlement reference attached
//	PENDING -> (deleted)   settlement failed, seat freed
//
// Both transitions are terminal.  Acknowledgement is gated on the
// ledger write: the worker returns an error (and the message is
// redelivered) only when the mutation itself failed, so it must be
// safe to run twice for the same message.  The compare-and-set in
// AttachSettlementRef provides that idempotency.
type ConfirmationWorker struct {
	ledger    SeatLedger
	broadcast Broadcaster
	cache     SeatMapCache
	logger    *zap.Logger
}

// NewConfirmationWorker wires a ConfirmationWorker.  cache may be nil.
func NewConfirmationWorker(ledger SeatLedger, b Broadcaster, cache SeatMapCache, logger *zap.Logger) *ConfirmationWorker {
	return &ConfirmationWorker{ledger: ledger, broadcast: b, cache: cache, logger: logger}
}

// Handle implements Handler.
func (w *ConfirmationWorker) Handle(ctx context.Context, env Envelope) error {
	if env.CorrelationID != CorrelationReserveConfirm {
		return ErrUnhandled
	}
	var reply ReserveConfirmReply
	if err := json.Unmarshal(env.Body, &reply); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if reply.SettlementRef == "" {
		// Confirmation failed upstream: release the hold.  The seat
		// reverts to free silently; no broadcast is sent.
		if err := w.ledger.DeleteByID(ctx, reply.ReservationID); err != nil {
			return fmt.Errorf("release failed hold %d: %w", reply.ReservationID, err)
		}
		w.logger.Info("hold released after failed settlement",
			zap.Uint64("reservation_id", reply.ReservationID),
			zap.Uint64("showtime_id", reply.ShowtimeID))
		w.invalidate(ctx, reply.ShowtimeID)
		return nil
	}

	err := w.ledger.AttachSettlementRef(ctx, reply.ReservationID, reply.SettlementRef)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrSettlementMismatch):
		// A second reply with a different reference can never be
		// applied; redelivery would loop forever.  Log and drop.
		w.logger.Warn("conflicting settlement reference ignored",
			zap.Uint64("reservation_id", reply.ReservationID),
			zap.String("settlement_ref", reply.SettlementRef))
		return nil
	case errors.Is(err, repository.ErrReservationNotFound):
		w.logger.Warn("settlement reply for unknown reservation",
			zap.Uint64("reservation_id", reply.ReservationID))
		return nil
	default:
		return fmt.Errorf("attach settlement ref to %d: %w", reply.ReservationID, err)
	}

	// The ledger write succeeded; everything below is best-effort and
	// must not affect acknowledgement.
	seat := model.SeatCoord{Row: reply.Row, Col: reply.Column}
	w.broadcast.SeatReserved(reply.ShowtimeID, seat)
	w.invalidate(ctx, reply.ShowtimeID)
	return nil
}

func (w *ConfirmationWorker) invalidate(ctx context.Context, showtimeID uint64) {
	if w.cache != nil {
		w.cache.Invalidate(ctx, showtimeID)
	}
}
