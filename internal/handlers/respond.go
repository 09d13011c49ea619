package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vidhost/backend/internal/apperr"
	"github.com/vidhost/backend/internal/logging"
)

// envelope is the body of every API response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	payload := envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// respondError writes err in the response envelope. Only the client-safe message is sent.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := apperr.HTTPStatus(err)
	message := apperr.Message(err)

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "kind", apperr.KindOf(err).String(), "error", err)
	default:
		logger.Warn("request returned client error", "status", status, "kind", apperr.KindOf(err).String(), "error", err)
	}

	respondJSON(ctx, w, status, nil, message)
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusTooManyRequests, nil, "too many requests, try again later")
}
