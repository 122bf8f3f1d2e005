package model

import "time"

// Reservation lifecycle states.  There is no CANCELLED state: a
// cancelled or failed reservation is a deleted row, and the seat is
// free again.  A PENDING row either becomes CONFIRMED (settlement
// reference attached) or is deleted; both transitions are terminal.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
)

// SeatCoord is a (row, column) pair scoped to one showtime.  It is
// never globally unique; the owning showtime id always travels with it.
type SeatCoord struct {
	Row uint32 `json:"row"`
	Col uint32 `json:"column"`
}

// Reservation binds one seat of one showtime to the user holding it.
// At most one row exists per (showtime, seat) at any time, enforced by
// a uniqueness constraint in the reservations table.
//
// Fields:
//  ID            – primary key identifier.
//  ShowtimeID    – showtime being reserved.
//  UserID        – user holding the seat.
//  Seat          – seat coordinate within the hall grid.
//  Status        – PENDING or CONFIRMED.
//  SettlementRef – external settlement reference; nil until confirmed.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
	ID            uint64    // reservations.id
	ShowtimeID    uint64    // reservations.showtime_id
	UserID        uint64    // reservations.user_id
	Seat          SeatCoord // reservations.seat_row / seat_col
	Status        string    // reservations.status
	SettlementRef *string   // reservations.settlement_ref (nullable)
	CreatedAt     time.Time // reservations.created_at
	UpdatedAt     time.Time // reservations.updated_at
}

// SeatState is one entry of a showtime's sparse seat map as served to
// clients: the coordinate plus its current status.
type SeatState struct {
	Seat   SeatCoord `json:"seat"`
	Status string    `json:"status"`
}
