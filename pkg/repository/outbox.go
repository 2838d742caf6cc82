package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointments-api/internal/model"
)

// OutboxRepository is the part of the outbox store the workers need.
type OutboxRepository interface {
	// GetPendingEvents claims pending events so that concurrent processors
	// never receive the same event.
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	CountPending(ctx context.Context) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
