// Package metadata attaches request-scoped metadata (request ID, arrival
// time) to the context before any handler runs.
package metadata

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"attestra/pkg/requestcontext"
)

const headerRequestID = "X-Request-Id"

// RequestMetadata assigns a request ID (honoring an inbound X-Request-Id) and
// records the arrival time on the context.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
