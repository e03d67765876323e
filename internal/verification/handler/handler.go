// Package handler exposes the presentation verification endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attestra/internal/challenge"
	"attestra/internal/upstream"
	"attestra/internal/vault"
	"attestra/internal/verification"
	dErrors "attestra/pkg/domain-errors"
	"attestra/pkg/platform/audit"
	"attestra/pkg/platform/httputil"
	"attestra/pkg/platform/sentinel"
	"attestra/pkg/requestcontext"
)

// Service defines the verification operations the handler needs.
type Service interface {
	CreateChallenge(ctx context.Context) (*challenge.Session, error)
	BindPresentation(ctx context.Context, token string, raw []byte) error
	VerifyPresentation(ctx context.Context, token string, rawVP []byte) (verification.Result, error)
}

// Handler wires presentation endpoints to the verification service.
type Handler struct {
	service Service
	auditor *audit.Publisher
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, auditor *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{service: service, auditor: auditor, logger: logger}
}

// Register mounts the presentation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/presentations/challenge", h.HandleCreateChallenge)
	r.Post("/presentations/{token}", h.HandleBind)
	r.Post("/presentations/verify", h.HandleVerify)
}

// HandleCreateChallenge handles POST /presentations/challenge.
func (h *Handler) HandleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.service.CreateChallenge(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "challenge creation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if h.auditor != nil {
		h.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionChallengeIssued,
			Subject:   session.Token,
			Outcome:   "issued",
			RequestID: requestcontext.RequestID(ctx),
		})
	}
	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

// HandleBind handles POST /presentations/{token}: the wallet delivers its
// presentation ahead of the verify call.
func (h *Handler) HandleBind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	req, ok := httputil.DecodeJSON[BindRequest](w, r)
	if !ok {
		return
	}
	if len(req.Presentation) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "presentation is required"))
		return
	}

	if err := h.service.BindPresentation(ctx, token, req.Presentation); err != nil {
		httputil.WriteError(w, bindError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerify handles POST /presentations/verify. Invalid presentations are
// reported inside a 200 envelope; only infrastructure failures surface as
// transport errors.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeJSON[VerifyRequest](w, r)
	if !ok {
		return
	}
	if req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	rawVP := []byte(req.Presentation)
	if len(req.SealedPresentation) > 0 {
		if req.Secret == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "secret is required to open a sealed presentation"))
			return
		}
		plaintext, err := vault.Decrypt(req.SealedPresentation, req.Secret)
		if err != nil {
			httputil.WriteError(w, sealError(err))
			return
		}
		rawVP = []byte(plaintext)
	}

	result, err := h.service.VerifyPresentation(ctx, req.Token, rawVP)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, verifyError(err))
		return
	}

	if h.auditor != nil {
		outcome := "valid"
		if !result.Valid {
			outcome = "invalid"
		}
		h.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionPresentationVerify,
			Subject:   result.Identity,
			Outcome:   outcome,
			Reason:    result.Reason,
			RequestID: requestID,
		})
	}

	h.logger.InfoContext(ctx, "presentation verify handled",
		"request_id", requestID,
		"valid", result.Valid,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

func bindError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "unknown challenge token", err)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(dErrors.CodeConflict, "challenge already used", err)
	default:
		return err
	}
}

func sealError(err error) error {
	if errors.Is(err, vault.ErrInvalidSecret) {
		return dErrors.Wrap(dErrors.CodeUnauthorized, "vault secret rejected", err)
	}
	return dErrors.Wrap(dErrors.CodeBadRequest, "sealed presentation is malformed", err)
}

func verifyError(err error) error {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return dErrors.Wrap(dErrors.CodeUpstream, "collaborator unavailable", err)
	}
	return err
}
