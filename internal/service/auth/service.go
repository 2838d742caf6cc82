package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
	"github.com/jwalitptl/appointments-api/pkg/auth"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/security"
)

const tokenType = "Bearer"

type Service struct {
	userRepo         repository.UserRepository
	hasher           security.PasswordHasher
	jwtSvc           auth.JWTService
	allowAdminSignup bool
}

type Option func(*Service)

// WithAdminSignup lets Register create admin accounts.
func WithAdminSignup(allow bool) Option {
	return func(s *Service) { s.allowAdminSignup = allow }
}

func NewService(userRepo repository.UserRepository, hasher security.PasswordHasher, jwtSvc auth.JWTService, opts ...Option) *Service {
	s := &Service{
		userRepo: userRepo,
		hasher:   hasher,
		jwtSvc:   jwtSvc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RolePatient
	}
	if role == model.RoleAdmin && !s.allowAdminSignup {
		return nil, apperrors.Forbidden("admin accounts cannot be self-registered")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Username:        strings.TrimSpace(req.Username),
		PasswordHash:    hash,
		FirstName:       req.FirstName,
		PaternalSurname: req.PaternalSurname,
		MaternalSurname: req.MaternalSurname,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           req.Phone,
		Address:         req.Address,
		Gender:          req.Gender,
		Role:            role,
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		d, err := model.ParseDate(*req.BirthDate)
		if err != nil {
			return nil, apperrors.BadRequest("invalid birth_date", err)
		}
		user.BirthDate = &d
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("username or email already registered", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Str("role", user.Role).
		Msg("user registered")

	return s.issue(user)
}

// Login verifies the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("username", req.Username).Msg("login failed: unknown user")
			return nil, apperrors.Unauthorized("invalid credentials", model.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		log.Warn().Int64("user_id", user.ID).Msg("login failed: wrong password")
		return nil, apperrors.Unauthorized("invalid credentials", model.ErrInvalidCredentials)
	}

	return s.issue(user)
}

// Authenticate resolves a bearer token to the calling actor.
func (s *Service) Authenticate(token string) (model.Actor, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.Actor{}, apperrors.Unauthorized("invalid or expired token", err)
	}
	return claims.Actor(), nil
}

func (s *Service) issue(user *model.User) (*model.TokenResponse, error) {
	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresIn:   int64(s.jwtSvc.Expiry().Seconds()),
		User:        user,
	}, nil
}
