// Package http assembles the service router: public presentation endpoints,
// the check-in flow, and the operator-guarded reconciliation API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	checkinhandler "attestra/internal/checkin/handler"
	reconcilehandler "attestra/internal/reconcile/handler"
	verificationhandler "attestra/internal/verification/handler"
	"attestra/pkg/platform/middleware/auth"
	"attestra/pkg/platform/middleware/metadata"
)

// Deps carries the wired handlers and middleware the router mounts.
type Deps struct {
	Verification *verificationhandler.Handler
	Checkin      *checkinhandler.Handler
	Reconcile    *reconcilehandler.Handler
	Operator     *auth.Verifier
}

// NewRouter builds the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.RequestMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	deps.Verification.Register(r)
	deps.Checkin.Register(r)

	r.Group(func(g chi.Router) {
		g.Use(deps.Operator.RequireOperator)
		deps.Reconcile.Register(g)
	})

	return r
}
