package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointments-api/internal/model"
)

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.Status = model.OutboxStatusPending

	_, err := r.conn(ctx).ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		return wrap("create outbox event", err)
	}
	return nil
}

// claimLease is how long a claimed event stays hidden from other processors.
// An event whose processor died before updating it is picked up again
// once the lease runs out.
const claimLease = 5 * time.Minute

// GetPendingEvents claims up to limit pending events, oldest first. Rows
// locked or leased by another processor are skipped.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET locked_until = NOW() + $3 * INTERVAL '1 second'
		WHERE id IN (
			SELECT id
			FROM outbox_events
			WHERE status = $1 AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count, created_at, processed_at
	`
	events := []*model.OutboxEvent{}
	err := r.conn(ctx).SelectContext(ctx, &events, query,
		model.OutboxStatusPending, limit, int(claimLease.Seconds()))
	if err != nil {
		return nil, wrap("claim pending events", err)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (r *outboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).GetContext(ctx, &n, `SELECT COUNT(*) FROM outbox_events WHERE status = $1`, model.OutboxStatusPending); err != nil {
		return 0, wrap("count pending events", err)
	}
	return n, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = retry_count + $3,
			processed_at = COALESCE($4, processed_at)
		WHERE id = $5
	`
	var retries int
	var processedAt *time.Time
	switch status {
	case model.OutboxStatusFailed:
		retries = 1
	case model.OutboxStatusProcessed:
		now := time.Now()
		processedAt = &now
	}

	if _, err := r.conn(ctx).ExecContext(ctx, query, status, errorMessage, retries, processedAt, id); err != nil {
		return wrap("update outbox event status", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.conn(ctx).ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`,
		model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, wrap("delete processed events", err)
	}
	return result.RowsAffected()
}
