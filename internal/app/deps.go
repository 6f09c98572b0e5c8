package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vidhub/backend/internal/auth"
	"github.com/vidhub/backend/internal/config"
	"github.com/vidhub/backend/internal/db"
	"github.com/vidhub/backend/internal/handlers"
	"github.com/vidhub/backend/internal/media"
	"github.com/vidhub/backend/internal/middleware"
	"github.com/vidhub/backend/internal/repositories"
	"github.com/vidhub/backend/internal/storage"
)

var _ auth.CredentialStore = (*repositories.PostgresUserRepository)(nil)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)

	tokens, err := auth.NewTokenService(cfg.Auth, users)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure token service: %w", err)
	}

	store, err := storage.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure object storage: %w", err)
	}
	prober := media.NewFFProbe(cfg.Media.FFProbePath, cfg.Media.ProbeTimeout)

	limiter := middleware.NewIPRateLimiter(
		cfg.Auth.RateLimitRequests,
		cfg.Auth.RateLimitWindow,
		cfg.Auth.RateLimitBurst,
		10*time.Minute,
	)

	deps := handlers.Dependencies{
		Users:         users,
		Profiles:      users,
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Tokens:        tokens,
		Auth:          auth.Middleware{Tokens: tokens, Users: users},
		Media:         media.NewUploader(store, prober, cfg.Media),
		Limiter:       limiter,
		Config:        cfg,
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.Health = pinger
	}
	return deps, nil
}
