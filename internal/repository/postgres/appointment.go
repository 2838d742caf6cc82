package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
)

const appointmentColumns = `id, patient_id, doctor_id, date, time, service, booking_type, status, created_at, updated_at`

const appointmentDetailSelect = `
	SELECT a.id, a.patient_id, a.doctor_id, a.date, a.time, a.service, a.booking_type,
		   a.status, a.created_at, a.updated_at,
		   u.first_name AS patient_first_name, u.paternal_surname AS patient_last_name,
		   d.first_name AS doctor_first_name, d.last_name AS doctor_last_name, d.specialty
	FROM appointments a
	JOIN users u ON u.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			patient_id, doctor_id, date, time, service, booking_type, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if appointment.Status == "" {
		appointment.Status = model.AppointmentStatusPending
	}
	if appointment.BookingType == "" {
		appointment.BookingType = model.BookingTypeInPerson
	}

	err := r.conn(ctx).QueryRowxContext(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.Time,
		appointment.Service,
		appointment.BookingType,
		appointment.Status,
	).Scan(&appointment.ID, &appointment.CreatedAt, &appointment.UpdatedAt)
	if err != nil {
		return wrap("create appointment", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	query := appointmentDetailSelect + ` WHERE a.id = $1`

	var detail model.AppointmentDetail
	if err := r.conn(ctx).GetContext(ctx, &detail, query, id); err != nil {
		return nil, wrap("get appointment", err)
	}
	return &detail, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter repository.AppointmentFilter) ([]*model.AppointmentDetail, error) {
	query := appointmentDetailSelect + ` WHERE 1=1`
	var args []interface{}

	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		query += fmt.Sprintf(" AND a.patient_id = $%d", len(args))
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		query += fmt.Sprintf(" AND a.doctor_id = $%d", len(args))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		query += fmt.Sprintf(" AND a.date = $%d", len(args))
	}
	query += " ORDER BY a.date, a.time"

	appointments := []*model.AppointmentDetail{}
	if err := r.conn(ctx).SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, wrap("list appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Update(ctx context.Context, id int64, patch model.AppointmentPatch) (*model.Appointment, error) {
	var b updateBuilder
	if patch.PatientID != nil {
		b.set("patient_id", *patch.PatientID)
	}
	if patch.DoctorID != nil {
		b.set("doctor_id", *patch.DoctorID)
	}
	if patch.Date != nil {
		b.set("date", *patch.Date)
	}
	if patch.Time != nil {
		b.set("time", *patch.Time)
	}
	if patch.Service != nil {
		b.set("service", *patch.Service)
	}
	if patch.BookingType != nil {
		b.set("booking_type", *patch.BookingType)
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if b.empty() {
		detail, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &detail.Appointment, nil
	}

	query, args := b.build("appointments", id, true, appointmentColumns)
	var appointment model.Appointment
	if err := r.conn(ctx).QueryRowxContext(ctx, query, args...).StructScan(&appointment); err != nil {
		return nil, wrap("update appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return wrap("delete appointment", err)
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

func (r *appointmentRepository) GetActiveAppointments(ctx context.Context, doctorID int64, date model.Date, excludeID *int64) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status IN ('pending', 'confirmed')
	`
	args := []interface{}{doctorID, date}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += " ORDER BY time"

	appointments := []model.Appointment{}
	if err := r.conn(ctx).SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, wrap("get active appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) GetBookedTimes(ctx context.Context, doctorID int64, date model.Date) (map[model.Clock]struct{}, error) {
	query := `
		SELECT time
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status NOT IN ('cancelled', 'completed')
	`
	var times []model.Clock
	if err := r.conn(ctx).SelectContext(ctx, &times, query, doctorID, date); err != nil {
		return nil, wrap("get booked times", err)
	}

	booked := make(map[model.Clock]struct{}, len(times))
	for _, t := range times {
		booked[t] = struct{}{}
	}
	return booked, nil
}
