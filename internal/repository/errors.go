// Package repository implements durable storage for showtimes and their
// reservation sets on top of database/sql.  Sentinel errors defined here
// let higher layers distinguish failure scenarios without inspecting
// driver-specific error values: handlers translate them into HTTP
// statuses, the queue workers translate them into ack/nack decisions.
package repository

import "errors"

// ErrSeatTaken is returned when a provisional hold collides with an
// existing reservation row on the same (showtime, row, column).  The
// uniqueness constraint in the reservations table is the source of
// truth; this error is the mapped form of a duplicate-key violation.
// Handlers should translate this into an HTTP 409 response.
var ErrSeatTaken = errors.New("seat already reserved")

// ErrReservationNotFound is returned when an operation references a
// reservation id that no longer exists, e.g. attaching a settlement
// reference to a hold that was already released.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrShowtimeNotFound is returned when a showtime id does not resolve
// to a row.  Handlers should translate this into an HTTP 404 response.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrSettlementMismatch is returned when a reservation already carries
// a settlement reference different from the one being attached.  The
// attach operation is a compare-and-set; a conflicting second reference
// is rejected rather than overwritten.
var ErrSettlementMismatch = errors.New("settlement reference mismatch")
