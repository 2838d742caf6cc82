package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointments-api/internal/model"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, "appointments-api")
	user := &model.User{Base: model.Base{ID: 42}, Username: "ana", Role: model.RoleAdmin}

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ana", claims.Username)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, model.RoleAdmin, claims.Actor().Role)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, "appointments-api")
	user := &model.User{Base: model.Base{ID: 1}, Username: "ana", Role: model.RolePatient}

	other := NewJWTService("other-secret", time.Hour, "appointments-api")
	forged, err := other.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	expiredSvc := NewJWTService("secret", time.Hour, "appointments-api").(*jwtService)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, model.TokenClaims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestJWTService_DefaultExpiry(t *testing.T) {
	assert.Equal(t, time.Hour, NewJWTService("s", 0, "").Expiry())
}
