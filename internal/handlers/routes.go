package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/auth"
	"github.com/vidhub/backend/internal/config"
	"github.com/vidhub/backend/internal/middleware"
	"github.com/vidhub/backend/internal/response"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Profiles      ProfileStore
	Videos        VideoStore
	Subscriptions SubscriptionStore
	Tokens        TokenIssuer
	Auth          auth.Middleware
	Media         MediaUploader
	Limiter       middleware.RateLimiter
	Health        Pinger
	Config        config.Config
	NowFunc       func() time.Time
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config

	health := HealthHandler{Database: deps.Health}
	account := AccountHandler{
		Users:  deps.Users,
		Tokens: deps.Tokens,
		Media:  deps.Media,
		Cookies: CookieSettings{
			Secure:     cfg.Auth.CookieSecure,
			AccessTTL:  cfg.Auth.AccessTTL,
			RefreshTTL: cfg.Auth.RefreshTTL,
		},
		TempDir: cfg.Media.TempDir,
		NowFunc: deps.NowFunc,
	}
	channels := ChannelHandler{Profiles: deps.Profiles}
	videos := VideoHandler{
		Videos:   deps.Videos,
		Profiles: deps.Profiles,
		Media:    deps.Media,
		TempDir:  cfg.Media.TempDir,
		NowFunc:  deps.NowFunc,
	}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Metrics)
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit, cfg.Server.UploadLimit))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(r.Context(), w, apperr.NotFound("Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(r.Context(), w, apperr.New(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	r.Get("/healthz", health.Handle)
	r.Head("/healthz", health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(cfg.Server.APIPrefix, func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RateLimit(deps.Limiter, "register")).Post("/register", account.Register)
			r.With(middleware.RateLimit(deps.Limiter, "login")).Post("/login", account.Login)
			r.Post("/refresh-token", account.Refresh)
			r.With(deps.Auth.Optional).Get("/c/{username}", channels.Profile)

			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.Require)
				r.Post("/logout", account.Logout)
				r.Post("/change-password", account.ChangePassword)
				r.Get("/current-user", account.CurrentUser)
				r.Patch("/update-account", account.UpdateAccount)
				r.Patch("/avatar", account.UpdateAvatar)
				r.Patch("/cover-image", account.UpdateCoverImage)
				r.Get("/history", channels.History)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.Use(deps.Auth.Require)
			r.Get("/", videos.List)
			r.Post("/", videos.Publish)
			r.Get("/{videoId}", videos.Get)
			r.Patch("/{videoId}", videos.Update)
			r.Delete("/{videoId}", videos.Delete)
			r.Patch("/toggle/publish/{videoId}", videos.TogglePublish)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(deps.Auth.Require)
			r.Post("/c/{channelId}", subscriptions.Toggle)
			r.Get("/c/{channelId}", subscriptions.ListSubscribers)
			r.Get("/u/{subscriberId}", subscriptions.ListSubscribedChannels)
		})
	})

	return r
}
