// Package response writes the JSON envelope every API endpoint returns.
package response

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/logging"
)

// Envelope wraps successful payloads.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorBody is the body of every failed request.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ToEnvelope builds an Envelope; success is derived from the status code.
func ToEnvelope(status int, data any, message string) Envelope {
	if message == "" {
		message = "Success"
	}
	return Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	}
}

// JSON writes data wrapped in an Envelope.
func JSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	write(ctx, w, status, ToEnvelope(status, data, message))
}

// Error converts err to its status and client message. Causes are logged and
// never written to the client.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.StatusOf(err)
	body := ErrorBody{Success: false, Message: apperr.MessageOf(err)}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "error", err)
	default:
		logger.Warn("request returned client error", "status", status, "message", body.Message)
	}

	write(ctx, w, status, body)
}

func write(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
