package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
	"github.com/vidhub/backend/internal/response"
)

// SubscriptionHandler provides channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
}

type toggleSubscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
}

// Toggle handles POST /subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	channelID := chi.URLParam(r, "channelId")
	if !validUUID(channelID) {
		response.Error(ctx, w, apperr.NotFound("Channel not found"))
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, user.ID, channelID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfSubscription) {
			response.Error(ctx, w, apperr.BadRequest("You cannot subscribe to your own channel"))
			return
		}
		response.Error(ctx, w, storeError(err, "Channel not found", ""))
		return
	}

	logging.FromContext(ctx).Info("subscription toggled", "channel_id", channelID, "subscribed", subscribed)

	message := "Unsubscribed successfully"
	if subscribed {
		message = "Subscribed successfully"
	}
	response.JSON(ctx, w, http.StatusOK, toggleSubscriptionResponse{Subscribed: subscribed}, message)
}

// ListSubscribers handles GET /subscriptions/c/{channelId}.
func (h SubscriptionHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "channelId", h.Subscriptions.ListSubscribers, "Subscribers fetched successfully")
}

// ListSubscribedChannels handles GET /subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) ListSubscribedChannels(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "subscriberId", h.Subscriptions.ListSubscribedChannels, "Subscribed channels fetched successfully")
}

func (h SubscriptionHandler) list(w http.ResponseWriter, r *http.Request, param string, fetch func(ctx context.Context, id string) ([]models.UserSummary, error), message string) {
	ctx := r.Context()

	id := chi.URLParam(r, param)
	if !validUUID(id) {
		response.Error(ctx, w, apperr.NotFound("User not found"))
		return
	}

	users, err := fetch(ctx, id)
	if err != nil {
		response.Error(ctx, w, storeError(err, "User not found", ""))
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}

	response.JSON(ctx, w, http.StatusOK, users, message)
}
