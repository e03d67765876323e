// Package handler exposes the check-in endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attestra/internal/checkin"
	"attestra/internal/verification"
	dErrors "attestra/pkg/domain-errors"
	"attestra/pkg/platform/httputil"
	"attestra/pkg/requestcontext"
)

// Service defines the check-in operation the handler needs.
type Service interface {
	Register(ctx context.Context, req checkin.Request) (checkin.Outcome, error)
}

// CheckinRequest is the wire form of a check-in attempt.
type CheckinRequest struct {
	EventID      string          `json:"event_id"`
	Token        string          `json:"token"`
	Presentation json.RawMessage `json:"presentation,omitempty"`
	VerifiedBy   string          `json:"verified_by"`
	TxHash       string          `json:"tx_hash,omitempty"`
}

// CheckinResponse is the wire form of the outcome. Rejections ride inside a
// 200 envelope with their reason.
type CheckinResponse struct {
	CheckedIn bool                     `json:"checked_in"`
	Reason    string                   `json:"reason,omitempty"`
	Checks    verification.CheckVector `json:"checks"`
	CheckinID string                   `json:"checkin_id,omitempty"`
	Identity  string                   `json:"identity,omitempty"`
}

// Handler wires the check-in endpoint to the check-in service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a check-in handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the check-in endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checkins", h.HandleCheckin)
}

// HandleCheckin handles POST /checkins.
func (h *Handler) HandleCheckin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeJSON[CheckinRequest](w, r)
	if !ok {
		return
	}
	if req.EventID == "" || req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "event_id and token are required"))
		return
	}

	outcome, err := h.service.Register(ctx, checkin.Request{
		EventID:      req.EventID,
		Token:        req.Token,
		Presentation: req.Presentation,
		VerifiedBy:   req.VerifiedBy,
		TxHash:       req.TxHash,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "check-in failed",
			"request_id", requestID,
			"event_id", req.EventID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := CheckinResponse{
		CheckedIn: outcome.CheckedIn,
		Reason:    outcome.Reason,
		Checks:    outcome.Checks,
	}
	if outcome.Checkin != nil {
		resp.CheckinID = outcome.Checkin.ID
		resp.Identity = outcome.Checkin.Identity
	}

	h.logger.InfoContext(ctx, "check-in handled",
		"request_id", requestID,
		"event_id", req.EventID,
		"checked_in", outcome.CheckedIn,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}
