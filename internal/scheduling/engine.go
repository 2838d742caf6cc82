package scheduling

import (
	"context"
	"time"

	"github.com/jwalitptl/appointments-api/internal/model"
)

// ScheduleStore supplies a doctor's working windows.
type ScheduleStore interface {
	GetWindows(ctx context.Context, doctorID int64, date model.Date) ([]model.Schedule, error)
}

// AppointmentStore supplies existing bookings.
type AppointmentStore interface {
	// GetActiveAppointments returns pending and confirmed appointments,
	// leaving out excludeID when it is set.
	GetActiveAppointments(ctx context.Context, doctorID int64, date model.Date, excludeID *int64) ([]model.Appointment, error)
	GetBookedTimes(ctx context.Context, doctorID int64, date model.Date) (map[model.Clock]struct{}, error)
}

// Engine reads from the stores and hands the results to the pure rules.
// Listing and validation share the DefaultSlotMinutes grid.
type Engine struct {
	schedules    ScheduleStore
	appointments AppointmentStore
	loc          *time.Location
}

type Option func(*Engine)

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func NewEngine(schedules ScheduleStore, appointments AppointmentStore, opts ...Option) *Engine {
	e := &Engine{
		schedules:    schedules,
		appointments: appointments,
		loc:          time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Location() *time.Location { return e.loc }

// ListAvailableSlots returns the bookable slots for a doctor on date as seen
// at now. A doctor without windows that day has no slots.
func (e *Engine) ListAvailableSlots(ctx context.Context, doctorID int64, date model.Date, now time.Time) ([]model.TimeSlot, error) {
	windows, err := e.schedules.GetWindows(ctx, doctorID, date)
	if err != nil {
		return nil, &StoreError{Op: "get working windows", Err: err}
	}
	if len(windows) == 0 {
		return []model.TimeSlot{}, nil
	}

	booked, err := e.appointments.GetBookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, &StoreError{Op: "get booked times", Err: err}
	}

	return FilterAvailable(GenerateSlots(windows, DefaultSlotMinutes), booked, date, now, e.loc), nil
}

// ValidateAppointment loads the windows and active bookings the proposal
// depends on and validates it.
func (e *Engine) ValidateAppointment(ctx context.Context, p Proposal) error {
	windows, err := e.schedules.GetWindows(ctx, p.DoctorID, p.Date)
	if err != nil {
		return &StoreError{Op: "get working windows", Err: err}
	}
	if len(windows) == 0 {
		return NewValidationError(KindNoScheduleConfigured)
	}

	active, err := e.appointments.GetActiveAppointments(ctx, p.DoctorID, p.Date, p.ExcludeAppointmentID)
	if err != nil {
		return &StoreError{Op: "get active appointments", Err: err}
	}

	return Validate(p, windows, active)
}
