package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voltgrid/voltgrid/internal/auth"
	"github.com/voltgrid/voltgrid/internal/models"
	"github.com/voltgrid/voltgrid/pkg/crypto"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
)

func TestAuthServiceLoginSuccess(t *testing.T) {
	db := setupServiceTestDB(t)

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "voltgrid", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	svc, err := NewAuthService(db, jwtSvc, nil)
	require.NoError(t, err)

	hash, err := crypto.HashPassword("s3cret-pass")
	require.NoError(t, err)

	org := createOrg(t, db, "Acme")
	user := &models.User{
		Username:       "operator",
		Email:          "operator@example.com",
		Password:       hash,
		IsActive:       true,
		OrganizationID: strPtr(org.ID),
	}
	require.NoError(t, db.Create(user).Error)

	result, err := svc.Login(t.Context(), LoginInput{Username: "operator", Password: "s3cret-pass", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	claims, err := jwtSvc.ValidateAccessToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, org.ID, claims.OrganizationID)

	var updated models.User
	require.NoError(t, db.First(&updated, "id = ?", user.ID).Error)
	require.NotNil(t, updated.LastLoginAt)
	require.Equal(t, "10.0.0.1", updated.LastLoginIP)
}

func TestAuthServiceLoginFailuresAreUniform(t *testing.T) {
	db := setupServiceTestDB(t)

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	svc, err := NewAuthService(db, jwtSvc, nil)
	require.NoError(t, err)

	hash, err := crypto.HashPassword("right-password")
	require.NoError(t, err)
	user := &models.User{Username: "known", Email: "known@example.com", Password: hash, IsActive: true}
	require.NoError(t, db.Create(user).Error)

	_, errUnknown := svc.Login(t.Context(), LoginInput{Username: "ghost", Password: "whatever"})
	_, errWrongPass := svc.Login(t.Context(), LoginInput{Username: "known", Password: "wrong"})

	require.Equal(t, apperrors.FromError(errUnknown).Code, apperrors.FromError(errWrongPass).Code)
	require.Equal(t, apperrors.ErrInvalidCredentials.Code, apperrors.FromError(errUnknown).Code)
}

func TestAuthServiceLoginInactiveUser(t *testing.T) {
	db := setupServiceTestDB(t)

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	svc, err := NewAuthService(db, jwtSvc, nil)
	require.NoError(t, err)

	hash, err := crypto.HashPassword("s3cret-pass")
	require.NoError(t, err)
	user := &models.User{Username: "disabled", Email: "disabled@example.com", Password: hash, IsActive: false}
	require.NoError(t, db.Create(user).Error)

	_, err = svc.Login(t.Context(), LoginInput{Username: "disabled", Password: "s3cret-pass"})
	require.Error(t, err)
	require.Equal(t, apperrors.ErrInvalidCredentials.Code, apperrors.FromError(err).Code)
}

func TestAuthServiceRefresh(t *testing.T) {
	db := setupServiceTestDB(t)

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	svc, err := NewAuthService(db, jwtSvc, nil)
	require.NoError(t, err)

	user := createUser(t, db, "subject", nil, nil)

	token, err := svc.Refresh(t.Context(), user.ID)
	require.NoError(t, err)

	claims, err := jwtSvc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	_, err = svc.Refresh(t.Context(), "missing")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrUnauthorized.Code, apperrors.FromError(err).Code)
}
