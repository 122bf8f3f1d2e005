// Package ws implements the live broadcast channel: a process-local
// registry of authenticated websocket connections that receives seat
// state deltas from the queue workers and fans them out to every alive
// connection.  The registry is owned by the Hub and lives exactly as
// long as it; a multi-instance deployment broadcasts only to its own
// locally connected clients.
package ws

// Actions carried by outbound wire frames.
const (
	ActionReserve = "reserve"
	ActionCancel  = "cancel"
)

// ReserveEvent announces that one seat became confirmed.  Every viewer
// of the booking UI receives every seat change; filtering by showtime
// is a client-side concern.
type ReserveEvent struct {
	Action     string `json:"action"`
	ShowtimeID uint64 `json:"showtimeId,string"`
	Row        uint32 `json:"row"`
	Column     uint32 `json:"column"`
}

// CancelEvent announces a batch of freed seats on one showtime.  Rows
// and Columns are parallel arrays: (Rows[i], Columns[i]) is one freed
// seat.  Bulk cancellations always arrive as a single frame.
type CancelEvent struct {
	Action     string   `json:"action"`
	ShowtimeID uint64   `json:"showtimeId,string"`
	Rows       []uint32 `json:"rows"`
	Columns    []uint32 `json:"columns"`
}
