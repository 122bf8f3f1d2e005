package queue

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Handler processes envelopes it owns.  A handler inspects the
// envelope's discriminator first and returns ErrUnhandled for messages
// that are not its own; the dispatcher then offers the envelope to the
// next handler.  Any other non-nil error means the owned message could
// not be processed.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// Dispatcher routes a decoded envelope to the first handler that
// claims it.  It replaces implicit protocol-level "not mine" retry
// signalling with an explicit in-process pass: handlers self-select by
// discriminator and unclaimed messages are inert.
type Dispatcher struct {
	handlers []Handler
	logger   *zap.Logger
}

// NewDispatcher returns a Dispatcher over the given handlers, asked in
// registration order.
func NewDispatcher(logger *zap.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{handlers: handlers, logger: logger}
}

// Dispatch offers the envelope to each handler in turn.  It returns
// nil once a handler processes the message, ErrUnhandled when every
// handler declines, and the handler's error when the owning handler
// fails.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) error {
	for _, h := range d.handlers {
		err := h.Handle(ctx, env)
		if errors.Is(err, ErrUnhandled) {
			continue
		}
		return err
	}
	d.logger.Debug("no handler claimed message", zap.String("correlation_id", env.CorrelationID))
	return ErrUnhandled
}
