package postgres

import (
	"context"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
)

const doctorColumns = `id, first_name, last_name, specialty`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (first_name, last_name, specialty)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := r.conn(ctx).QueryRowxContext(ctx, query, doctor.FirstName, doctor.LastName, doctor.Specialty).Scan(&doctor.ID); err != nil {
		return wrap("create doctor", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	if err := r.conn(ctx).GetContext(ctx, &doctor, query, id); err != nil {
		return nil, wrap("get doctor", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY id`

	doctors := []*model.Doctor{}
	if err := r.conn(ctx).SelectContext(ctx, &doctors, query); err != nil {
		return nil, wrap("list doctors", err)
	}
	return doctors, nil
}

func (r *doctorRepository) Update(ctx context.Context, id int64, patch model.DoctorPatch) (*model.Doctor, error) {
	var b updateBuilder
	if patch.FirstName != nil {
		b.set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		b.set("last_name", *patch.LastName)
	}
	if patch.Specialty != nil {
		b.set("specialty", *patch.Specialty)
	}
	if b.empty() {
		return r.Get(ctx, id)
	}

	query, args := b.build("doctors", id, false, doctorColumns)
	var doctor model.Doctor
	if err := r.conn(ctx).QueryRowxContext(ctx, query, args...).StructScan(&doctor); err != nil {
		return nil, wrap("update doctor", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return wrap("delete doctor", err)
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

func (r *doctorRepository) HasAppointments(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1)`
	if err := r.conn(ctx).GetContext(ctx, &exists, query, id); err != nil {
		return false, wrap("check doctor appointments", err)
	}
	return exists, nil
}
