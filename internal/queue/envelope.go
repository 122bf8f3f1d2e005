// Package queue implements the asynchronous reservation protocol: the
// outbound settlement dispatch and the inbound confirmation and
// cancellation consumers, wired to RabbitMQ.  Every message on the wire
// is a correlation envelope: a protocol-level discriminator naming the
// logical handler that owns the message, plus an opaque body decoded by
// that handler alone.
package queue

import (
	"encoding/json"
	"errors"
	"strconv"
)

// Correlation discriminators.  A handler claims only the messages
// carrying its own discriminator; everything else is inert to it.
const (
	CorrelationReserveConfirm = "reservation.confirm"
	CorrelationCancel         = "reservation.cancel"
)

// Queue names used on the broker.
const (
	QueueSettlementRequest = "reservation.settlement.request"
	QueueConfirmReply      = "reservation.confirm.reply"
	QueueCancelReply       = "reservation.cancel.reply"
)

// ErrUnhandled is returned by a handler that does not own a message's
// discriminator.  It is a routing signal, not a processing failure: the
// dispatcher offers the message to the next handler, and if every
// handler declines, the message is acknowledged and dropped.
var ErrUnhandled = errors.New("message not handled")

// ErrMalformed is returned when a handler owns the discriminator but
// cannot decode the body.  Redelivery can never succeed for such a
// message, so the consumer rejects it without requeueing.
var ErrMalformed = errors.New("malformed message body")

// Envelope is the wire form of every message on the reservation
// queues.  The body stays raw until a handler claims the discriminator
// and decodes it into its own reply type.
type Envelope struct {
	CorrelationID string          `json:"correlationId"`
	Body          json.RawMessage `json:"body"`
}

// ReserveConfirmReply is the settlement process's answer to an
// outbound settlement request.  An empty SettlementRef means the
// confirmation failed upstream and the hold must be released.
// Identifiers are serialized as strings on the wire.
type ReserveConfirmReply struct {
	ShowtimeID    uint64 `json:"showtimeId,string"`
	Row           uint32 `json:"row"`
	Column        uint32 `json:"column"`
	ReservationID uint64 `json:"reservationId,string"`
	SettlementRef string `json:"settlementReference,omitempty"`
}

// CancelReply asks for the confirmed seats of one or more users on a
// showtime to be released in bulk.
type CancelReply struct {
	ShowtimeID uint64     `json:"showtimeId,string"`
	UserIDs    UserIDList `json:"userIds"`
}

// SettlementRequest is the outbound message the gateway dispatches to
// the external settlement process after writing a provisional hold.
type SettlementRequest struct {
	ReservationID uint64 `json:"reservationId,string"`
	ShowtimeID    uint64 `json:"showtimeId,string"`
	Row           uint32 `json:"row"`
	Column        uint32 `json:"column"`
	UserID        uint64 `json:"userId,string"`
}

// UserIDList tolerates the two shapes the cancellation reply arrives
// in: a single id or an array of ids, each either a JSON string or a
// bare number.
type UserIDList []uint64

// UnmarshalJSON implements json.Unmarshaler.
func (l *UserIDList) UnmarshalJSON(data []byte) error {
	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err == nil {
		ids := make([]uint64, 0, len(many))
		for _, raw := range many {
			id, err := decodeUserID(raw)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		*l = ids
		return nil
	}
	id, err := decodeUserID(data)
	if err != nil {
		return err
	}
	*l = []uint64{id}
	return nil
}

// MarshalJSON implements json.Marshaler; ids are always emitted as an
// array of strings.
func (l UserIDList) MarshalJSON() ([]byte, error) {
	out := make([]string, len(l))
	for i, id := range l {
		out[i] = strconv.FormatUint(id, 10)
	}
	return json.Marshal(out)
}

func decodeUserID(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseUint(s, 10, 64)
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}
