package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// HandlerFunc processes the payload of one message type.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Dispatcher routes messages received from a broker channel to handlers
// registered by message type.
type Dispatcher struct {
	broker   Broker
	logger   zerolog.Logger
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewDispatcher(broker Broker, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		broker:   broker,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

func (d *Dispatcher) Handle(messageType string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageType] = h
}

// Run subscribes to channel and dispatches until ctx is done or the
// subscription closes. Handler errors are logged and do not stop the loop.
func (d *Dispatcher) Run(ctx context.Context, channel string) error {
	msgs, err := d.broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			d.dispatch(ctx, raw)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.logger.Warn().Err(err).Msg("dropping malformed message")
		return
	}

	d.mu.RLock()
	h, ok := d.handlers[msg.Type]
	d.mu.RUnlock()
	if !ok {
		d.logger.Debug().Str("type", msg.Type).Msg("no handler for message type")
		return
	}

	if err := h(ctx, msg.Payload); err != nil {
		d.logger.Error().Err(err).Str("type", msg.Type).Msg("failed to handle message")
	}
}
