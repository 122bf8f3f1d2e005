package model

import "time"

// Showtime represents a scheduled screening of a movie in a particular
// hall.  Its reservation set – the sparse collection of held or
// confirmed seats – lives in the reservations table and is mutated only
// by the reservation and cancellation paths.  Deleting a showtime
// cascades its reservation rows; the admin layer guarantees no active
// holds exist at that point.
//
// Fields:
//  ID        – primary key identifier.
//  HallID    – hall where the screening takes place.
//  Title     – movie title shown at this screening.
//  StartsAt  – when the screening begins (UTC).
//  SeatRows  – hall grid rows, denormalised from the hall for bounds checks.
//  SeatCols  – hall grid columns, denormalised from the hall.
//  CreatedAt – creation timestamp.
type Showtime struct {
	ID        uint64    // showtimes.id
	HallID    uint64    // showtimes.hall_id
	Title     string    // showtimes.title
	StartsAt  time.Time // showtimes.starts_at
	SeatRows  uint32    // halls.seat_rows (joined)
	SeatCols  uint32    // halls.seat_cols (joined)
	CreatedAt time.Time // showtimes.created_at
}
