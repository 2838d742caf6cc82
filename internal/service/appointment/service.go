package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
	"github.com/jwalitptl/appointments-api/internal/scheduling"
	"github.com/jwalitptl/appointments-api/internal/service/event"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
)

type AppointmentServicer interface {
	ListAppointments(ctx context.Context, actor model.Actor) ([]*model.AppointmentDetail, error)
	ListDoctorAppointments(ctx context.Context, actor model.Actor, doctorID int64, date *model.Date) ([]*model.AppointmentDetail, error)
	GetAppointment(ctx context.Context, actor model.Actor, id int64) (*model.AppointmentDetail, error)
	CreateAppointment(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, actor model.Actor, id int64, req model.UpdateAppointmentRequest) (*model.AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, actor model.Actor, id int64) error
	AvailableSlots(ctx context.Context, doctorID int64, date model.Date) (*model.AvailableSlots, error)
}

// SlotEngine is the scheduling core as seen by the service.
type SlotEngine interface {
	ListAvailableSlots(ctx context.Context, doctorID int64, date model.Date, now time.Time) ([]model.TimeSlot, error)
	ValidateAppointment(ctx context.Context, p scheduling.Proposal) error
}

// DoctorGetter resolves a doctor, returning a not found AppError when absent.
type DoctorGetter interface {
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
}

type Service struct {
	repo    repository.AppointmentRepository
	tx      repository.Transactor
	users   repository.UserRepository
	doctors DoctorGetter
	engine  SlotEngine
	events  event.Emitter
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService builds the appointment service. Every write and its outbox
// event run in one transaction of tx.
func NewService(repo repository.AppointmentRepository, tx repository.Transactor, users repository.UserRepository,
	doctors DoctorGetter, engine SlotEngine, events event.Emitter, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		tx:      tx,
		users:   users,
		doctors: doctors,
		engine:  engine,
		events:  events,
		metrics: m,
		now:     time.Now,
	}
}

// ListAppointments returns every appointment to administrators and the
// caller's own appointments to everyone else.
func (s *Service) ListAppointments(ctx context.Context, actor model.Actor) ([]*model.AppointmentDetail, error) {
	var filter repository.AppointmentFilter
	if !actor.IsAdmin() {
		filter.PatientID = &actor.UserID
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return list, nil
}

// ListDoctorAppointments lists a doctor's appointments, optionally on one
// date. Non-administrators only see their own bookings.
func (s *Service) ListDoctorAppointments(ctx context.Context, actor model.Actor, doctorID int64, date *model.Date) ([]*model.AppointmentDetail, error) {
	filter := repository.AppointmentFilter{DoctorID: &doctorID, Date: date}
	if !actor.IsAdmin() {
		filter.PatientID = &actor.UserID
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return list, nil
}

func (s *Service) GetAppointment(ctx context.Context, actor model.Actor, id int64) (*model.AppointmentDetail, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManageAppointment(actor, a.Appointment) {
		return nil, apperrors.Forbidden("you do not have permission to view this appointment")
	}
	return a, nil
}

func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.AppointmentDetail, error) {
	bookingType := req.BookingType
	if bookingType == "" {
		bookingType = model.BookingTypeInPerson
	}
	if bookingType != model.BookingTypeInPerson {
		return nil, apperrors.BadRequest(fmt.Sprintf("booking_type must be %q", model.BookingTypeInPerson), nil)
	}

	patientID, err := resolvePatient(actor, req.PatientID)
	if err != nil {
		return nil, err
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.BadRequest("invalid date", err)
	}
	at, err := model.ParseClock(req.Time)
	if err != nil {
		return nil, apperrors.BadRequest("invalid time", err)
	}
	status := model.AppointmentStatusPending
	if req.Status != nil && *req.Status != "" {
		status = model.AppointmentStatus(*req.Status)
		if !status.Valid() {
			return nil, apperrors.BadRequest("invalid status", nil)
		}
	}

	if err := s.ensurePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	proposal := scheduling.Proposal{
		DoctorID:       req.DoctorID,
		Date:           date,
		Time:           at,
		CheckAlignment: true,
	}
	if err := s.validate(ctx, proposal); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		Date:        date,
		Time:        at,
		Service:     req.Service,
		BookingType: bookingType,
		Status:      status,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return s.writeError("create", err)
		}
		return s.emit(ctx, model.EventAppointmentCreated, *a)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AppointmentsCreated.Inc()

	log.Info().
		Int64("appointment_id", a.ID).
		Int64("patient_id", a.PatientID).
		Int64("doctor_id", a.DoctorID).
		Str("date", a.Date.String()).
		Str("time", a.Time.String()).
		Int64("actor_id", actor.UserID).
		Msg("appointment created")

	return s.get(ctx, a.ID)
}

// UpdateAppointment applies a partial update. A move to another doctor,
// date or time is validated before anything is written; the slot boundary
// rule is not applied to moves.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id int64, req model.UpdateAppointmentRequest) (*model.AppointmentDetail, error) {
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManageAppointment(actor, existing.Appointment) {
		return nil, apperrors.Forbidden("you do not have permission to update this appointment")
	}

	patch, err := buildPatch(actor, req)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.BadRequest("no data to update", nil)
	}

	if patch.PatientID != nil && *patch.PatientID != existing.PatientID {
		if err := s.ensurePatient(ctx, *patch.PatientID); err != nil {
			return nil, err
		}
	}
	if patch.DoctorID != nil && *patch.DoctorID != existing.DoctorID {
		if _, err := s.doctors.GetDoctor(ctx, *patch.DoctorID); err != nil {
			return nil, err
		}
	}

	if scheduling.Changed(existing.Appointment, patch) {
		merged := patch.Apply(existing.Appointment)
		proposal := scheduling.Proposal{
			DoctorID:             merged.DoctorID,
			Date:                 merged.Date,
			Time:                 merged.Time,
			ExcludeAppointmentID: &id,
		}
		if err := s.validate(ctx, proposal); err != nil {
			return nil, err
		}
	}

	var updated *model.Appointment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.repo.Update(ctx, id, patch); err != nil {
			return s.writeError("update", err)
		}
		return s.emit(ctx, model.EventAppointmentUpdated, *updated)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("appointment_id", id).
		Int64("actor_id", actor.UserID).
		Str("status", string(updated.Status)).
		Msg("appointment updated")

	return s.get(ctx, id)
}

func (s *Service) DeleteAppointment(ctx context.Context, actor model.Actor, id int64) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !CanManageAppointment(actor, existing.Appointment) {
		return apperrors.Forbidden("you do not have permission to delete this appointment")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound("appointment", err)
			}
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		return s.emit(ctx, model.EventAppointmentDeleted, existing.Appointment)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("appointment_id", id).
		Int64("actor_id", actor.UserID).
		Msg("appointment deleted")

	return nil
}

// AvailableSlots lists the bookable slots of a doctor on date. A doctor
// without working windows that day has none.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64, date model.Date) (*model.AvailableSlots, error) {
	slots, err := s.engine.ListAvailableSlots(ctx, doctorID, date, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.SlotQueries.Inc()

	times := make([]string, len(slots))
	for i, slot := range slots {
		times[i] = slot.Start.String()
	}
	return &model.AvailableSlots{
		DoctorID: doctorID,
		Date:     date,
		Times:    times,
		Slots:    slots,
	}, nil
}

func (s *Service) validate(ctx context.Context, p scheduling.Proposal) error {
	err := s.engine.ValidateAppointment(ctx, p)
	var ve *scheduling.ValidationError
	if errors.As(err, &ve) {
		s.metrics.ValidationRejections.WithLabelValues(string(ve.Kind)).Inc()
		log.Info().
			Int64("doctor_id", p.DoctorID).
			Str("date", p.Date.String()).
			Str("time", p.Time.String()).
			Str("reason", string(ve.Kind)).
			Msg("appointment rejected")
	}
	return err
}

// writeError translates repository failures on insert or update. A unique
// violation means another booking won the slot after validation passed.
func (s *Service) writeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		s.metrics.ValidationRejections.WithLabelValues(string(scheduling.KindSlotAlreadyBooked)).Inc()
		return scheduling.NewValidationError(scheduling.KindSlotAlreadyBooked)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("appointment", err)
	case errors.Is(err, repository.ErrInUse):
		return apperrors.NotFound("patient or doctor", err)
	}
	return fmt.Errorf("failed to %s appointment: %w", op, err)
}

func (s *Service) emit(ctx context.Context, eventType string, a model.Appointment) error {
	if err := s.events.Emit(ctx, eventType, model.NewAppointmentEvent(a, s.now())); err != nil {
		log.Error().Err(err).
			Str("event_type", eventType).
			Int64("appointment_id", a.ID).
			Msg("failed to emit appointment event")
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

func (s *Service) ensurePatient(ctx context.Context, id int64) error {
	if _, err := s.users.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("patient", err)
		}
		return fmt.Errorf("failed to get patient: %w", err)
	}
	return nil
}

// resolvePatient decides whose appointment is being booked. Patients always
// book for themselves; administrators must name the patient.
func resolvePatient(actor model.Actor, requested *int64) (int64, error) {
	switch {
	case !CanBook(actor):
		return 0, apperrors.Forbidden("your role cannot create appointments")
	case actor.IsAdmin():
		if requested == nil || *requested == 0 {
			return 0, apperrors.BadRequest("patient_id is required when booking as an administrator", nil)
		}
		return *requested, nil
	default:
		return actor.UserID, nil
	}
}

func buildPatch(actor model.Actor, req model.UpdateAppointmentRequest) (model.AppointmentPatch, error) {
	var patch model.AppointmentPatch

	if req.PatientID != nil && actor.IsAdmin() {
		patch.PatientID = req.PatientID
	}
	patch.DoctorID = req.DoctorID

	if req.Date != nil && *req.Date != "" {
		d, err := model.ParseDate(*req.Date)
		if err != nil {
			return patch, apperrors.BadRequest("invalid date", err)
		}
		patch.Date = &d
	}
	if req.Time != nil && *req.Time != "" {
		c, err := model.ParseClock(*req.Time)
		if err != nil {
			return patch, apperrors.BadRequest("invalid time", err)
		}
		patch.Time = &c
	}
	if req.Service != nil && *req.Service != "" {
		patch.Service = req.Service
	}
	if req.BookingType != nil {
		if *req.BookingType != model.BookingTypeInPerson {
			return patch, apperrors.BadRequest(fmt.Sprintf("booking_type must be %q", model.BookingTypeInPerson), nil)
		}
		patch.BookingType = req.BookingType
	}
	if req.Status != nil && *req.Status != "" {
		status := model.AppointmentStatus(*req.Status)
		if !status.Valid() {
			return patch, apperrors.BadRequest("invalid status", nil)
		}
		patch.Status = &status
	}
	return patch, nil
}
