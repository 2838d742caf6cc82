package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
)

type ScheduleServicer interface {
	ListSchedules(ctx context.Context, doctorID int64, date *model.Date) ([]*model.Schedule, error)
	CreateSchedule(ctx context.Context, req model.CreateScheduleRequest) (*model.Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, req model.UpdateScheduleRequest) (*model.Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
}

// DoctorGetter resolves a doctor, returning a not found AppError when absent.
type DoctorGetter interface {
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
}

type Service struct {
	repo    repository.ScheduleRepository
	doctors DoctorGetter
}

func NewService(repo repository.ScheduleRepository, doctors DoctorGetter) *Service {
	return &Service{
		repo:    repo,
		doctors: doctors,
	}
}

func (s *Service) ListSchedules(ctx context.Context, doctorID int64, date *model.Date) ([]*model.Schedule, error) {
	schedules, err := s.repo.ListByDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (s *Service) CreateSchedule(ctx context.Context, req model.CreateScheduleRequest) (*model.Schedule, error) {
	sch, err := parseSchedule(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.doctors.GetDoctor(ctx, sch.DoctorID); err != nil {
		return nil, err
	}
	if err := s.checkWindow(ctx, sch); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &sch); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	log.Info().
		Int64("schedule_id", sch.ID).
		Int64("doctor_id", sch.DoctorID).
		Str("date", sch.Date.String()).
		Msg("schedule created")
	return &sch, nil
}

// UpdateSchedule checks the merged window the same way CreateSchedule
// checks a new one, ignoring the window being replaced.
func (s *Service) UpdateSchedule(ctx context.Context, id int64, req model.UpdateScheduleRequest) (*model.Schedule, error) {
	patch, err := parsePatch(req)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.BadRequest("no data to update", nil)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("schedule", err)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	if err := s.checkWindow(ctx, patch.Apply(*existing)); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("schedule", err)
		}
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	log.Info().Int64("schedule_id", id).Msg("schedule updated")
	return updated, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("schedule", err)
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	log.Info().Int64("schedule_id", id).Msg("schedule deleted")
	return nil
}

// checkWindow rejects inverted windows and windows overlapping another
// window of the same doctor on the same date.
func (s *Service) checkWindow(ctx context.Context, sch model.Schedule) error {
	if !sch.StartTime.Before(sch.EndTime) {
		return apperrors.BadRequest("start_time must be before end_time", nil)
	}

	existing, err := s.repo.ListByDoctor(ctx, sch.DoctorID, &sch.Date)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}
	for _, other := range existing {
		if other.ID == sch.ID {
			continue
		}
		if sch.Overlaps(*other) {
			return apperrors.Conflict(fmt.Sprintf("schedule overlaps existing window %s-%s", other.StartTime, other.EndTime), nil)
		}
	}
	return nil
}

func parseSchedule(req model.CreateScheduleRequest) (model.Schedule, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return model.Schedule{}, apperrors.BadRequest("invalid date", err)
	}
	start, err := model.ParseClock(req.StartTime)
	if err != nil {
		return model.Schedule{}, apperrors.BadRequest("invalid start_time", err)
	}
	end, err := model.ParseClock(req.EndTime)
	if err != nil {
		return model.Schedule{}, apperrors.BadRequest("invalid end_time", err)
	}
	return model.Schedule{DoctorID: req.DoctorID, Date: date, StartTime: start, EndTime: end}, nil
}

func parsePatch(req model.UpdateScheduleRequest) (model.SchedulePatch, error) {
	var patch model.SchedulePatch
	if req.Date != nil && *req.Date != "" {
		d, err := model.ParseDate(*req.Date)
		if err != nil {
			return patch, apperrors.BadRequest("invalid date", err)
		}
		patch.Date = &d
	}
	if req.StartTime != nil && *req.StartTime != "" {
		c, err := model.ParseClock(*req.StartTime)
		if err != nil {
			return patch, apperrors.BadRequest("invalid start_time", err)
		}
		patch.StartTime = &c
	}
	if req.EndTime != nil && *req.EndTime != "" {
		c, err := model.ParseClock(*req.EndTime)
		if err != nil {
			return patch, apperrors.BadRequest("invalid end_time", err)
		}
		patch.EndTime = &c
	}
	return patch, nil
}
