package event

import (
	"context"
)

// Emitter records domain events for asynchronous delivery.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, eventType string, payload interface{}) error

func (f EmitterFunc) Emit(ctx context.Context, eventType string, payload interface{}) error {
	return f(ctx, eventType, payload)
}

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(context.Context, string, interface{}) error { return nil })
