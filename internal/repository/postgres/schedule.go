package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
)

const scheduleColumns = `id, doctor_id, date, start_time, end_time`

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	query := `
		INSERT INTO schedules (doctor_id, date, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.conn(ctx).QueryRowxContext(ctx, query,
		schedule.DoctorID,
		schedule.Date,
		schedule.StartTime,
		schedule.EndTime,
	).Scan(&schedule.ID)
	if err != nil {
		return wrap("create schedule", err)
	}
	return nil
}

func (r *scheduleRepository) Get(ctx context.Context, id int64) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	var schedule model.Schedule
	if err := r.conn(ctx).GetContext(ctx, &schedule, query, id); err != nil {
		return nil, wrap("get schedule", err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) ListByDoctor(ctx context.Context, doctorID int64, date *model.Date) ([]*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE doctor_id = $1`
	args := []interface{}{doctorID}

	if date != nil {
		args = append(args, *date)
		query += fmt.Sprintf(" AND date = $%d", len(args))
	}
	query += " ORDER BY date, start_time"

	schedules := []*model.Schedule{}
	if err := r.conn(ctx).SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, wrap("list schedules", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) Update(ctx context.Context, id int64, patch model.SchedulePatch) (*model.Schedule, error) {
	var b updateBuilder
	if patch.Date != nil {
		b.set("date", *patch.Date)
	}
	if patch.StartTime != nil {
		b.set("start_time", *patch.StartTime)
	}
	if patch.EndTime != nil {
		b.set("end_time", *patch.EndTime)
	}
	if b.empty() {
		return r.Get(ctx, id)
	}

	query, args := b.build("schedules", id, false, scheduleColumns)
	var schedule model.Schedule
	if err := r.conn(ctx).QueryRowxContext(ctx, query, args...).StructScan(&schedule); err != nil {
		return nil, wrap("update schedule", err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return wrap("delete schedule", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrap("get rows affected", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetWindows returns the working windows in start order.
func (r *scheduleRepository) GetWindows(ctx context.Context, doctorID int64, date model.Date) ([]model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
	`
	windows := []model.Schedule{}
	if err := r.conn(ctx).SelectContext(ctx, &windows, query, doctorID, date); err != nil {
		return nil, wrap("get working windows", err)
	}
	return windows, nil
}
