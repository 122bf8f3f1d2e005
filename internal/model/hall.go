package model

import "time"

// Hall represents a physical screening hall with a fixed seat grid.
// Seat coordinates used by reservations are bounded by SeatRows and
// SeatCols; the grid never changes while showtimes reference the hall.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – human readable hall name.
//  SeatRows  – number of seating rows in the grid.
//  SeatCols  – number of seats per row.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Hall struct {
	ID        uint64    // halls.id
	Name      string    // halls.name
	SeatRows  uint32    // halls.seat_rows
	SeatCols  uint32    // halls.seat_cols
	CreatedAt time.Time // halls.created_at
	UpdatedAt time.Time // halls.updated_at
}
