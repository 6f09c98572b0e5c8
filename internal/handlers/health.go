package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	Database Pinger
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		response.Error(ctx, w, apperr.New(http.StatusMethodNotAllowed, "Method not allowed"))
		return
	}

	status := healthStatus{Status: "ok"}
	if h.Database != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		if err := h.Database.Ping(pingCtx); err != nil {
			response.Error(ctx, w, apperr.Wrap(http.StatusServiceUnavailable, "database unavailable", err))
			return
		}
		status.Database = "ok"
	}

	response.JSON(ctx, w, http.StatusOK, status, "healthy")
}
