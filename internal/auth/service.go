package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/config"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/metrics"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
)

// CredentialStore loads users and persists the single active refresh token
// held on each user record.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	// SetRefreshToken overwrites the stored token; an empty token clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
}

// TokenService issues access/refresh pairs and rotates refresh tokens against
// the value stored on the user record.
type TokenService struct {
	access  *Signer
	refresh *Signer
	store   CredentialStore
}

// NewTokenService builds a TokenService from auth configuration.
func NewTokenService(cfg config.AuthConfig, store CredentialStore) (*TokenService, error) {
	if store == nil {
		return nil, errors.New("auth: credential store must not be nil")
	}
	access, err := NewSigner(cfg.AccessSecret, cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("access signer: %w", err)
	}
	refresh, err := NewSigner(cfg.RefreshSecret, cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh signer: %w", err)
	}
	return &TokenService{access: access, refresh: refresh, store: store}, nil
}

// IssueTokenPair signs a new pair for userID and stores the refresh token,
// invalidating whichever token was stored before.
func (s *TokenService) IssueTokenPair(ctx context.Context, userID string) (models.TokenPair, error) {
	pair, err := s.issue(ctx, userID)
	metrics.RecordAuthEvent("issue", err)
	return pair, err
}

func (s *TokenService) issue(ctx context.Context, userID string) (models.TokenPair, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, apperr.NotFound("User not found")
		}
		return models.TokenPair{}, apperr.Internal("Something went wrong while generating tokens", err)
	}

	accessToken, err := s.access.Sign(user)
	if err != nil {
		return models.TokenPair{}, apperr.Internal("Something went wrong while generating tokens", err)
	}
	refreshToken, err := s.refresh.Sign(user)
	if err != nil {
		return models.TokenPair{}, apperr.Internal("Something went wrong while generating tokens", err)
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return models.TokenPair{}, apperr.Internal("Something went wrong while generating tokens", err)
	}

	return models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Unauthorized request")
	}
	claims, err := s.access.Verify(token)
	if err != nil {
		metrics.RecordAuthEvent("verify", err)
		return nil, apperr.Wrap(http.StatusUnauthorized, "Invalid access token", err)
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token's signature and expiry only.
func (s *TokenService) VerifyRefreshToken(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Unauthorized request")
	}
	claims, err := s.refresh.Verify(token)
	if err != nil {
		return nil, apperr.Wrap(http.StatusUnauthorized, "Invalid refresh token", err)
	}
	return claims, nil
}

// RotateRefreshToken exchanges a refresh token for a new pair. The incoming
// token must equal the stored one, so each token rotates at most once.
func (s *TokenService) RotateRefreshToken(ctx context.Context, token string) (models.TokenPair, error) {
	claims, err := s.VerifyRefreshToken(token)
	if err != nil {
		metrics.RecordAuthEvent("rotate", err)
		return models.TokenPair{}, err
	}

	user, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		metrics.RecordAuthEvent("rotate", err)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, apperr.Unauthorized("Invalid refresh token")
		}
		return models.TokenPair{}, apperr.Internal("Something went wrong while refreshing tokens", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != token {
		metrics.RecordAuthEvent("reuse", nil)
		logging.FromContext(ctx).Warn("refresh token reuse rejected", "user_id", user.ID)
		return models.TokenPair{}, apperr.Unauthorized("Refresh token is expired or used")
	}

	pair, err := s.issue(ctx, user.ID)
	metrics.RecordAuthEvent("rotate", err)
	return pair, err
}

// Revoke clears the stored refresh token for userID.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	err := s.store.SetRefreshToken(ctx, userID, "")
	metrics.RecordAuthEvent("revoke", err)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return apperr.Internal("Something went wrong while logging out", err)
	}
	return nil
}
