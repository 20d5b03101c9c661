package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/voltgrid/voltgrid/internal/auth"
	"github.com/voltgrid/voltgrid/internal/models"
	"github.com/voltgrid/voltgrid/pkg/crypto"
	apperrors "github.com/voltgrid/voltgrid/pkg/errors"
	"github.com/voltgrid/voltgrid/pkg/metrics"
)

// AuthService authenticates users and issues access tokens.
type AuthService struct {
	db    *gorm.DB
	jwt   *auth.JWTService
	audit *AuditService
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, jwt *auth.JWTService, audit *AuditService) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{db: db, jwt: jwt, audit: audit}, nil
}

// LoginInput carries the credentials and request metadata for a login attempt.
type LoginInput struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login verifies credentials and returns a signed access token. Failures are
// reported uniformly so callers cannot distinguish an unknown username from a
// wrong password.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ? OR email = ?", username, username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordAttempt(ctx, nil, username, input, "failure")
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, input.Password) {
		s.recordAttempt(ctx, &user.ID, username, input, "failure")
		return nil, apperrors.ErrInvalidCredentials
	}

	orgID := ""
	if user.OrganizationID != nil {
		orgID = *user.OrganizationID
	}
	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID:         user.ID,
		OrganizationID: orgID,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	now := time.Now()
	_ = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"last_login_at": now,
		"last_login_ip": strings.TrimSpace(input.IPAddress),
	}).Error

	s.recordAttempt(ctx, &user.ID, username, input, "success")

	return &LoginResult{Token: token, User: &user}, nil
}

// Refresh issues a fresh token for a still-valid authenticated subject.
func (s *AuthService) Refresh(ctx context.Context, userID string) (string, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("auth service: load user: %w", err)
	}
	if !user.IsActive {
		return "", apperrors.ErrUnauthorized
	}

	orgID := ""
	if user.OrganizationID != nil {
		orgID = *user.OrganizationID
	}
	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID:         user.ID,
		OrganizationID: orgID,
	})
	if err != nil {
		return "", fmt.Errorf("auth service: issue token: %w", err)
	}
	return token, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, userID *string, username string, input LoginInput, result string) {
	metrics.AuthAttempts.WithLabelValues(result).Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    userID,
		Username:  username,
		Action:    "auth.login",
		Result:    result,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
}
