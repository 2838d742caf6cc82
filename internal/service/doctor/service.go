package doctor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
)

const (
	cacheDuration   = 5 * time.Minute
	cleanupInterval = 10 * time.Minute
)

type DoctorServicer interface {
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
	CreateDoctor(ctx context.Context, req model.CreateDoctorRequest) (*model.Doctor, error)
	UpdateDoctor(ctx context.Context, id int64, req model.UpdateDoctorRequest) (*model.Doctor, error)
	DeleteDoctor(ctx context.Context, id int64) error
}

// Service manages doctors. Single-doctor reads go through an in-process
// cache that is invalidated on every write.
type Service struct {
	repo    repository.DoctorRepository
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func NewService(repo repository.DoctorRepository, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		cache:   cache.New(cacheDuration, cleanupInterval),
		metrics: m,
	}
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	key := cacheKey(id)
	if cached, found := s.cache.Get(key); found {
		s.metrics.DoctorCacheLookups.WithLabelValues("hit").Inc()
		d := *cached.(*model.Doctor)
		return &d, nil
	}
	s.metrics.DoctorCacheLookups.WithLabelValues("miss").Inc()

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	cached := *d
	s.cache.Set(key, &cached, cache.DefaultExpiration)
	return d, nil
}

func (s *Service) CreateDoctor(ctx context.Context, req model.CreateDoctorRequest) (*model.Doctor, error) {
	d := &model.Doctor{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Specialty: req.Specialty,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}

	log.Info().Int64("doctor_id", d.ID).Msg("doctor created")
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, req model.UpdateDoctorRequest) (*model.Doctor, error) {
	patch := model.DoctorPatch{
		FirstName: nonEmpty(req.FirstName),
		LastName:  nonEmpty(req.LastName),
		Specialty: nonEmpty(req.Specialty),
	}
	if patch.IsEmpty() {
		return nil, apperrors.BadRequest("no data to update", nil)
	}

	d, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to update doctor: %w", err)
	}
	s.cache.Delete(cacheKey(id))

	log.Info().Int64("doctor_id", id).Msg("doctor updated")
	return d, nil
}

// DeleteDoctor removes a doctor and their schedules. Doctors with any
// appointment on record cannot be deleted.
func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	has, err := s.repo.HasAppointments(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check doctor appointments: %w", err)
	}
	if has {
		return apperrors.Conflict("doctor has appointments and cannot be deleted", repository.ErrInUse)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NotFound("doctor", err)
		case errors.Is(err, repository.ErrInUse):
			return apperrors.Conflict("doctor has appointments and cannot be deleted", err)
		}
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	s.cache.Delete(cacheKey(id))

	log.Info().Int64("doctor_id", id).Msg("doctor deleted")
	return nil
}

func cacheKey(id int64) string {
	return "doctor:" + strconv.FormatInt(id, 10)
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
