package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func signTestToken(t *testing.T, secret, issuer string, claims models.JWTClaims, ttl time.Duration) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "campus-idp"})
	token := signTestToken(t, "secret", "campus-idp", models.JWTClaims{UserID: "f1", Role: models.RoleFaculty, DepartmentID: "cse"}, time.Hour)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "f1", claims.UserID)
	assert.Equal(t, "cse", claims.DepartmentID)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "campus-idp"})

	cases := map[string]string{
		"wrong secret": signTestToken(t, "other", "campus-idp", models.JWTClaims{UserID: "f1", Role: models.RoleFaculty}, time.Hour),
		"wrong issuer": signTestToken(t, "secret", "elsewhere", models.JWTClaims{UserID: "f1", Role: models.RoleFaculty}, time.Hour),
		"expired":      signTestToken(t, "secret", "campus-idp", models.JWTClaims{UserID: "f1", Role: models.RoleFaculty}, -time.Minute),
		"no role":      signTestToken(t, "secret", "campus-idp", models.JWTClaims{UserID: "f1"}, time.Hour),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}
