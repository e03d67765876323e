// Package handler exposes the operator-only reconciliation endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attestra/internal/reconcile"
	dErrors "attestra/pkg/domain-errors"
	"attestra/pkg/platform/httputil"
	"attestra/pkg/requestcontext"
)

// Service defines the reconciliation operation the handler needs.
type Service interface {
	Run(ctx context.Context, contractAddress, eventID string) (reconcile.Report, error)
}

// RunRequest names the contract and event to reconcile.
type RunRequest struct {
	ContractAddress string `json:"contract_address"`
	EventID         string `json:"event_id"`
}

// DiscrepancyResponse is the wire form of one finding.
type DiscrepancyResponse struct {
	Kind   string `json:"kind"`
	TxHash string `json:"tx_hash,omitempty"`
}

// RunResponse is the wire form of a reconciliation report.
type RunResponse struct {
	TotalOnChain  int                   `json:"total_on_chain"`
	TotalOffChain int                   `json:"total_off_chain"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
	IsValid       bool                  `json:"is_valid"`
}

// FromReport converts a report to its wire form.
func FromReport(report reconcile.Report) RunResponse {
	resp := RunResponse{
		TotalOnChain:  report.TotalOnChain,
		TotalOffChain: report.TotalOffChain,
		Discrepancies: make([]DiscrepancyResponse, 0, len(report.Discrepancies)),
		IsValid:       report.IsValid,
	}
	for _, d := range report.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, DiscrepancyResponse{
			Kind:   string(d.Kind),
			TxHash: d.TxHash,
		})
	}
	return resp
}

// Handler wires the reconciliation endpoint to the reconciliation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a reconciliation handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the reconciliation endpoint. The caller is expected to
// guard the route group with the operator JWT middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reconciliation/run", h.HandleRun)
}

// HandleRun handles POST /reconciliation/run.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeJSON[RunRequest](w, r)
	if !ok {
		return
	}
	if req.ContractAddress == "" || req.EventID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "contract_address and event_id are required"))
		return
	}

	report, err := h.service.Run(ctx, req.ContractAddress, req.EventID)
	if err != nil {
		h.logger.ErrorContext(ctx, "reconciliation run failed",
			"request_id", requestID,
			"operator", requestcontext.Operator(ctx),
			"event_id", req.EventID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeUpstream, "reconciliation could not complete", err))
		return
	}

	h.logger.InfoContext(ctx, "reconciliation run handled",
		"request_id", requestID,
		"operator", requestcontext.Operator(ctx),
		"event_id", req.EventID,
		"is_valid", report.IsValid,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromReport(report))
}
