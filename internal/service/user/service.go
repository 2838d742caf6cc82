package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/security"
)

type UserServicer interface {
	Me(ctx context.Context, actor model.Actor) (*model.User, error)
	ListUsers(ctx context.Context, actor model.Actor) ([]*model.User, error)
	GetUser(ctx context.Context, actor model.Actor, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, actor model.Actor, id int64, req model.UpdateUserRequest) (*model.User, error)
}

type Service struct {
	repo   repository.UserRepository
	hasher security.PasswordHasher
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
	}
}

func (s *Service) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	return s.get(ctx, actor.UserID)
}

func (s *Service) ListUsers(ctx context.Context, actor model.Actor) ([]*model.User, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("only administrators can list users")
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUser returns a profile to its owner or to an administrator.
func (s *Service) GetUser(ctx context.Context, actor model.Actor, id int64) (*model.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("you do not have permission to view this user")
	}
	return s.get(ctx, id)
}

// UpdateUser applies the non-empty fields of req. Only administrators may
// change roles; a role sent by anyone else is ignored.
func (s *Service) UpdateUser(ctx context.Context, actor model.Actor, id int64, req model.UpdateUserRequest) (*model.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, apperrors.Forbidden("you do not have permission to update this user")
	}

	patch, err := s.buildPatch(actor, req)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperrors.BadRequest("no data to update", nil)
	}

	user, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("user", err)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict("username or email already registered", err)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	log.Info().
		Int64("user_id", id).
		Int64("actor_id", actor.UserID).
		Msg("user updated")
	return user, nil
}

func (s *Service) buildPatch(actor model.Actor, req model.UpdateUserRequest) (model.UserPatch, error) {
	patch := model.UserPatch{
		Username:        nonEmpty(req.Username),
		FirstName:       nonEmpty(req.FirstName),
		PaternalSurname: nonEmpty(req.PaternalSurname),
		MaternalSurname: nonEmpty(req.MaternalSurname),
		Email:           nonEmpty(req.Email),
		Phone:           nonEmpty(req.Phone),
		Address:         nonEmpty(req.Address),
		Gender:          nonEmpty(req.Gender),
	}

	if pw := nonEmpty(req.Password); pw != nil {
		hash, err := s.hasher.Hash(*pw)
		if err != nil {
			if errors.Is(err, security.ErrPasswordTooShort) {
				return patch, apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
			}
			return patch, apperrors.Internal(err)
		}
		patch.PasswordHash = &hash
	}

	if bd := nonEmpty(req.BirthDate); bd != nil {
		d, err := model.ParseDate(*bd)
		if err != nil {
			return patch, apperrors.BadRequest("invalid birth_date", err)
		}
		patch.BirthDate = &d
	}

	if actor.IsAdmin() {
		patch.Role = nonEmpty(req.Role)
	}
	return patch, nil
}

func (s *Service) get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
