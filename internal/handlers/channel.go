package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/auth"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/response"
)

// ChannelHandler serves channel pages and watch history.
type ChannelHandler struct {
	Profiles ProfileStore
}

// Profile handles GET /users/c/{username}. Authentication is optional; it only
// affects isSubscribed.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "username")))
	if username == "" {
		response.Error(ctx, w, apperr.BadRequest("username is missing"))
		return
	}

	var viewerID string
	if viewer, ok := auth.UserFromContext(ctx); ok {
		viewerID = viewer.ID
	}

	spanCtx, span := logging.StartSpan(ctx, "channel.profile")
	profile, err := h.Profiles.ChannelProfile(spanCtx, username, viewerID)
	span.Fail(err)
	span.End()
	if err != nil {
		response.Error(ctx, w, storeError(err, "channel does not exist", ""))
		return
	}

	response.JSON(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

// History handles GET /users/history.
func (h ChannelHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	spanCtx, span := logging.StartSpan(ctx, "channel.history")
	history, err := h.Profiles.WatchHistory(spanCtx, user.ID)
	span.Fail(err)
	span.End()
	if err != nil {
		response.Error(ctx, w, storeError(err, "User not found", ""))
		return
	}

	response.JSON(ctx, w, http.StatusOK, history, "Watch history fetched successfully")
}
