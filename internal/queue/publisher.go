package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher dispatches outbound settlement requests.  A connection is
// opened lazily and reused across publishes; on any publish failure the
// cached connection is discarded so the next attempt redials.  Messages
// are marked persistent so they survive a broker restart.
type Publisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher bound to the given broker URL.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// PublishSettlementRequest sends one settlement request for a freshly
// written provisional hold.  Every call carries a fresh correlation id;
// the settlement process echoes the reservation id back in its reply so
// the confirmation worker can match it.  The contract is exactly one
// outbound request per successful hold; on error the caller is expected
// to roll the hold back.
func (p *Publisher) PublishSettlementRequest(ctx context.Context, req SettlementRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.logger.Warn("broker connect failed", zap.Error(err))
		return err
	}
	if err := ch.PublishWithContext(ctx,
		"",                     // default exchange
		QueueSettlementRequest, // routing key = queue name
		false,                  // mandatory
		false,                  // immediate
		pub,
	); err != nil {
		p.logger.Warn("settlement request publish failed",
			zap.Uint64("reservation_id", req.ReservationID), zap.Error(err))
		p.reset()
		return err
	}
	return nil
}

// Close tears down the cached broker connection.  Safe to call when no
// connection was ever opened.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// channel returns the cached channel, dialing and declaring the
// outbound queue when needed.  Caller must hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Idempotent declare; durable so requests survive broker restarts.
	if _, err := ch.QueueDeclare(QueueSettlementRequest, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// reset drops the cached connection.  Caller must hold p.mu.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
