package handler

import (
	"time"

	"attestra/internal/challenge"
	"attestra/internal/verification"
)

// ChallengeResponse is the wire form of a freshly minted challenge.
type ChallengeResponse struct {
	Token     string    `json:"token"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FromSession converts a session to its wire form. The bound presentation
// never leaves the server.
func FromSession(s *challenge.Session) ChallengeResponse {
	return ChallengeResponse{
		Token:     s.Token,
		Nonce:     s.Nonce,
		ExpiresAt: s.ExpiresAt,
	}
}

// VerifyResponse is the wire form of a verification verdict. Invalid results
// ride inside a 200: they are business outcomes, not transport failures.
type VerifyResponse struct {
	Valid    bool                     `json:"valid"`
	Reason   string                   `json:"reason,omitempty"`
	Checks   verification.CheckVector `json:"checks"`
	Identity string                   `json:"identity,omitempty"`
	Holder   string                   `json:"holder,omitempty"`
}

// FromResult converts a pipeline result to its wire form.
func FromResult(r verification.Result) VerifyResponse {
	return VerifyResponse{
		Valid:    r.Valid,
		Reason:   r.Reason,
		Checks:   r.Checks,
		Identity: r.Identity,
		Holder:   r.Holder.String(),
	}
}
