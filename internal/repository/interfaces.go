package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointments-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrSlotTaken is returned when an insert or update would give a doctor
	// two active appointments at the same date and time.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrInUse is returned when a delete is blocked by dependent rows.
	ErrInUse = errors.New("record is referenced by other records")
)

// AppointmentFilter narrows appointment listings. Nil fields are ignored.
type AppointmentFilter struct {
	PatientID *int64
	DoctorID  *int64
	Date      *model.Date
}

// All repository interfaces in one file
type (
	// Transactor runs fn atomically. Repository calls made with the context
	// passed to fn commit or roll back together.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
		Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id int64) (*model.Doctor, error)
		List(ctx context.Context) ([]*model.Doctor, error)
		Update(ctx context.Context, id int64, patch model.DoctorPatch) (*model.Doctor, error)
		Delete(ctx context.Context, id int64) error
		HasAppointments(ctx context.Context, id int64) (bool, error)
	}

	ScheduleRepository interface {
		Create(ctx context.Context, schedule *model.Schedule) error
		Get(ctx context.Context, id int64) (*model.Schedule, error)
		ListByDoctor(ctx context.Context, doctorID int64, date *model.Date) ([]*model.Schedule, error)
		Update(ctx context.Context, id int64, patch model.SchedulePatch) (*model.Schedule, error)
		Delete(ctx context.Context, id int64) error
		GetWindows(ctx context.Context, doctorID int64, date model.Date) ([]model.Schedule, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id int64) (*model.AppointmentDetail, error)
		List(ctx context.Context, filter AppointmentFilter) ([]*model.AppointmentDetail, error)
		Update(ctx context.Context, id int64, patch model.AppointmentPatch) (*model.Appointment, error)
		Delete(ctx context.Context, id int64) error
		GetActiveAppointments(ctx context.Context, doctorID int64, date model.Date, excludeID *int64) ([]model.Appointment, error)
		GetBookedTimes(ctx context.Context, doctorID int64, date model.Date) (map[model.Clock]struct{}, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		CountPending(ctx context.Context) (int, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
