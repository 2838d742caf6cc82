package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository/memory"
	"github.com/jwalitptl/appointments-api/pkg/auth"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/security"
)

func newTestService(opts ...Option) (*Service, *memory.Store) {
	store := memory.NewStore()
	jwtSvc := auth.NewJWTService("test-secret", time.Hour, "test")
	return NewService(store.Users(), security.NewBcryptHasher(bcrypt.MinCost), jwtSvc, opts...), store
}

func registerRequest(username string) model.RegisterRequest {
	return model.RegisterRequest{
		Username:        username,
		Password:        "s3cret-pass",
		FirstName:       "Ana",
		PaternalSurname: "Lopez",
		Email:           username + "@example.com",
		Phone:           "555-0100",
	}
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestRegister(t *testing.T) {
	svc, store := newTestService()

	resp, err := svc.Register(context.Background(), registerRequest("ana"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, model.RolePatient, resp.User.Role)

	stored, err := store.Users().GetByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), registerRequest("ana"))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registerRequest("ana"))
	assertCode(t, err, apperrors.ErrConflict)
}

func TestRegister_AdminSignup(t *testing.T) {
	req := registerRequest("boss")
	req.Role = model.RoleAdmin

	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), req)
	assertCode(t, err, apperrors.ErrForbidden)

	svc, _ = newTestService(WithAdminSignup(true))
	resp, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, resp.User.Role)
}

func TestRegister_BirthDate(t *testing.T) {
	svc, _ := newTestService()
	req := registerRequest("ana")
	bd := "1990-04-12"
	req.BirthDate = &bd

	resp, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.User.BirthDate)
	assert.Equal(t, model.MustParseDate("1990-04-12"), *resp.User.BirthDate)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), registerRequest("ana"))
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		resp, err := svc.Login(context.Background(), model.LoginRequest{Username: "ana", Password: "s3cret-pass"})
		require.NoError(t, err)

		actor, err := svc.Authenticate(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, actor.UserID)
		assert.Equal(t, "ana", actor.Username)
		assert.Equal(t, model.RolePatient, actor.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), model.LoginRequest{Username: "ana", Password: "nope-nope"})
		assertCode(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(context.Background(), model.LoginRequest{Username: "ghost", Password: "s3cret-pass"})
		assertCode(t, err, apperrors.ErrUnauthorized)
	})
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Authenticate("not-a-token")
	assertCode(t, err, apperrors.ErrUnauthorized)
}
