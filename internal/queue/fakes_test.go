package queue

import (
	"context"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// fakeLedger is an in-memory stand-in for the reservation repository.
// It mimics the compare-and-set contract of AttachSettlementRef so the
// workers' idempotency can be exercised without a database.
type fakeLedger struct {
	refs    map[uint64]string // reservation id -> attached settlement ref
	deleted []uint64

	releaseResult []model.SeatCoord
	releaseCalls  []releaseCall

	attachErr  error
	deleteErr  error
	releaseErr error
}

type releaseCall struct {
	showtimeID uint64
	userIDs    []uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{refs: make(map[uint64]string)}
}

func (f *fakeLedger) AttachSettlementRef(_ context.Context, reservationID uint64, ref string) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	// An empty stored ref models a PENDING hold; anything else is an
	// attached reference subject to the compare-and-set rule.
	existing, ok := f.refs[reservationID]
	if ok && existing != "" && existing != ref {
		return repository.ErrSettlementMismatch
	}
	f.refs[reservationID] = ref
	return nil
}

func (f *fakeLedger) DeleteByID(_ context.Context, reservationID uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, reservationID)
	delete(f.refs, reservationID)
	return nil
}

func (f *fakeLedger) ReleaseConfirmed(_ context.Context, showtimeID uint64, userIDs []uint64) ([]model.SeatCoord, error) {
	if f.releaseErr != nil {
		return nil, f.releaseErr
	}
	f.releaseCalls = append(f.releaseCalls, releaseCall{showtimeID: showtimeID, userIDs: userIDs})
	return f.releaseResult, nil
}

// fakeBroadcast records every fan-out the workers request.
type fakeBroadcast struct {
	reserved []reserveCall
	released []cancelCall
}

type reserveCall struct {
	showtimeID uint64
	seat       model.SeatCoord
}

type cancelCall struct {
	showtimeID uint64
	seats      []model.SeatCoord
}

func (f *fakeBroadcast) SeatReserved(showtimeID uint64, seat model.SeatCoord) {
	f.reserved = append(f.reserved, reserveCall{showtimeID: showtimeID, seat: seat})
}

func (f *fakeBroadcast) SeatsReleased(showtimeID uint64, seats []model.SeatCoord) {
	f.released = append(f.released, cancelCall{showtimeID: showtimeID, seats: seats})
}

// fakeCache records seat-map invalidations.
type fakeCache struct {
	invalidated []uint64
}

func (f *fakeCache) Invalidate(_ context.Context, showtimeID uint64) {
	f.invalidated = append(f.invalidated, showtimeID)
}
