package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
	"github.com/vidhub/backend/internal/response"
)

const (
	// AccessCookie and RefreshCookie name the cookies holding the token pair.
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type userKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey{}).(models.User)
	return user, ok
}

// Middleware authenticates requests with the access token. Nothing is cached
// between requests: every call verifies the token and reloads the user.
type Middleware struct {
	Tokens *TokenService
	Users  CredentialStore
}

// Require rejects requests without a valid access token for an existing user.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, err := m.authenticate(ctx, r)
		if err != nil {
			response.Error(ctx, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(ctx, user)))
	})
}

// Optional attaches the user when a valid token is present and otherwise
// serves the request anonymously.
func (m Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ExtractToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.authenticate(ctx, r)
		if err != nil {
			logging.FromContext(ctx).Debug("ignoring invalid optional credentials", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(ctx, user)))
	})
}

func (m Middleware) authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	claims, err := m.Tokens.VerifyAccessToken(ExtractToken(r))
	if err != nil {
		return models.User{}, err
	}

	user, err := m.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("Invalid access token")
		}
		return models.User{}, apperr.Internal("Something went wrong while authenticating", err)
	}
	return user.Sanitized(), nil
}

func withIdentity(ctx context.Context, user models.User) context.Context {
	ctx = WithUser(ctx, user)
	return logging.With(ctx, "user_id", user.ID)
}

// ExtractToken reads the access token from the cookie, falling back to an
// Authorization bearer header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
