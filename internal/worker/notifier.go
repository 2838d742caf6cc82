package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/appointments-api/internal/email"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
	"github.com/jwalitptl/appointments-api/pkg/messaging"
)

var subjects = map[string]string{
	model.EventAppointmentCreated: "Your appointment has been booked",
	model.EventAppointmentUpdated: "Your appointment has changed",
	model.EventAppointmentDeleted: "Your appointment has been cancelled",
}

// AppointmentNotifier emails patients about appointment lifecycle events.
type AppointmentNotifier struct {
	users   repository.UserRepository
	doctors repository.DoctorRepository
	mailer  email.Service
	logger  zerolog.Logger
}

func NewAppointmentNotifier(users repository.UserRepository, doctors repository.DoctorRepository, mailer email.Service, logger zerolog.Logger) *AppointmentNotifier {
	return &AppointmentNotifier{
		users:   users,
		doctors: doctors,
		mailer:  mailer,
		logger:  logger,
	}
}

// Register subscribes the notifier to every appointment event type.
func (n *AppointmentNotifier) Register(d *messaging.Dispatcher) {
	for eventType := range subjects {
		eventType := eventType
		d.Handle(eventType, func(ctx context.Context, payload json.RawMessage) error {
			return n.Notify(ctx, eventType, payload)
		})
	}
}

func (n *AppointmentNotifier) Notify(ctx context.Context, eventType string, payload json.RawMessage) error {
	var evt model.AppointmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}

	patient, err := n.users.Get(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient %d: %w", evt.PatientID, err)
	}

	doctorName := fmt.Sprintf("doctor #%d", evt.DoctorID)
	if doctor, err := n.doctors.Get(ctx, evt.DoctorID); err == nil {
		doctorName = fmt.Sprintf("Dr. %s %s", doctor.FirstName, doctor.LastName)
	}

	body := fmt.Sprintf("Hello %s,\n\nAppointment #%d with %s on %s at %s (%s).\nStatus: %s\n",
		patient.FirstName, evt.AppointmentID, doctorName, evt.Date, evt.Time, evt.Service, evt.Status)

	if err := n.mailer.SendCustom(ctx, patient.Email, subjects[eventType], body); err != nil {
		return err
	}

	n.logger.Info().
		Str("event_type", eventType).
		Int64("appointment_id", evt.AppointmentID).
		Msg("appointment notification sent")
	return nil
}
