package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains one queue and feeds every delivery through a
// Dispatcher.  Messages are processed strictly one at a time (prefetch
// 1); ordering within the queue is whatever the broker guarantees,
// FIFO per queue and nothing more.
//
// Acknowledgement policy:
//
//	handled            -> ack
//	unclaimed envelope -> ack (inert by contract, not a failure)
//	undecodable        -> reject without requeue (poison)
//	handler failure    -> reject with requeue (broker redelivers)
//
// Redelivery makes every handler run under at-least-once semantics, so
// handlers must tolerate seeing the same message twice.
type Consumer struct {
	url        string
	queue      string
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewConsumer returns a Consumer for the named queue.
func NewConsumer(url, queueName string, d *Dispatcher, logger *zap.Logger) *Consumer {
	return &Consumer{url: url, queue: queueName, dispatcher: d, logger: logger}
}

// Run connects to the broker, declares the queue (durable) and
// consumes until ctx is cancelled.  Connection failures are retried
// with capped exponential backoff; a dropped connection restarts the
// consume loop.  Run only returns once ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("broker dial failed",
				zap.String("queue", c.queue), zap.Duration("retry_in", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := c.consumeLoop(ctx, conn); err != nil {
			c.logger.Warn("consume loop ended",
				zap.String("queue", c.queue), zap.Error(err))
		}
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		time.Sleep(2 * time.Second)
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Prefetch 1: one in-flight message per consumer instance.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	// Close the connection when ctx is cancelled so the deliveries
	// range below unblocks.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for d := range msgs {
		c.handleDelivery(ctx, d)
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.logger.Warn("undecodable envelope rejected",
			zap.String("queue", c.queue), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	err := c.dispatcher.Dispatch(ctx, env)
	switch {
	case err == nil, errors.Is(err, ErrUnhandled):
		_ = d.Ack(false)
	case errors.Is(err, ErrMalformed):
		c.logger.Warn("malformed body rejected",
			zap.String("queue", c.queue),
			zap.String("correlation_id", env.CorrelationID), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		// Leave redelivery to the broker's at-least-once guarantee.
		c.logger.Warn("message processing failed, requeueing",
			zap.String("queue", c.queue),
			zap.String("correlation_id", env.CorrelationID), zap.Error(err))
		_ = d.Nack(false, true)
	}
}
