// Package auth guards operator-only endpoints (reconciliation runs) with a
// bearer JWT. Presentation verification itself is unauthenticated; the
// credential is the authentication.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "attestra/pkg/domain-errors"
	"attestra/pkg/platform/httputil"
	"attestra/pkg/requestcontext"
)

// Claims are the operator token claims the middleware validates.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates operator bearer tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
}

// NewVerifier constructs a Verifier. The signing key is mandatory; an empty
// key is a configuration error and must fail closed at startup.
func NewVerifier(signingKey, issuer string) (*Verifier, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("operator JWT signing key is not configured")
	}
	return &Verifier{signingKey: []byte(signingKey), issuer: issuer}, nil
}

// RequireOperator rejects requests without a valid operator bearer token and
// stores the operator subject on the context for audit logging.
func (v *Verifier) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return v.signingKey, nil
		}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid bearer token"))
			return
		}
		if claims.Role != "operator" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "operator role required"))
			return
		}

		ctx := requestcontext.WithOperator(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
