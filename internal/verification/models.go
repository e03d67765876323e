package verification

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"attestra/internal/domain"
	"attestra/internal/status"
)

// Check names, in pipeline order. Used as metric labels and in reasons.
const (
	CheckStructure       = "structure"
	CheckHolderSignature = "holder_signature"
	CheckIssuerSignature = "issuer_signature"
	CheckValidityWindow  = "validity_window"
	CheckOnChainStatus   = "on_chain_status"
	CheckSubjectBinding  = "subject_binding"
)

// Human-readable failure reasons. Business outcomes carry exactly one of
// these; they are never generic.
const (
	ReasonBadStructure      = "presentation is structurally invalid"
	ReasonChallengeMismatch = "presentation is not bound to the issued challenge"
	ReasonHolderSignature   = "holder signature does not match the holder's wallet"
	ReasonIssuerSignature   = "issuer signature does not match the issuer's wallet"
	ReasonOutsideValidity   = "credential is outside its validity window"
	ReasonRevoked           = "credential has been revoked"
	ReasonInactive          = "credential is not active on-chain"
	ReasonSubjectMismatch   = "credential subject does not match the presentation holder"

	ReasonChallengeNotFound = "challenge not found"
	ReasonChallengeUsed     = "challenge already used"
	ReasonChallengeExpired  = "challenge expired"
)

// CheckVector records the boolean outcome of each pipeline check. Checks
// after a failing one stay false: the vector shows exactly how far the
// pipeline got, which is what the audit trail wants.
type CheckVector struct {
	Structure       bool `json:"structure"`
	HolderSignature bool `json:"holder_signature"`
	IssuerSignature bool `json:"issuer_signature"`
	ValidityWindow  bool `json:"validity_window"`
	OnChainStatus   bool `json:"on_chain_status"`
	SubjectBinding  bool `json:"subject_binding"`
}

// Result is the verdict of a verification attempt. Invalid results are
// expected outcomes, not errors: Reason names the failing check in plain
// words and Checks shows the partial progress.
type Result struct {
	Valid    bool        `json:"valid"`
	Reason   string      `json:"reason,omitempty"`
	Checks   CheckVector `json:"checks"`
	Identity string      `json:"identity,omitempty"`
	Holder   domain.DID  `json:"holder,omitempty"`
}

func failed(reason string, checks CheckVector) Result {
	return Result{Valid: false, Reason: reason, Checks: checks}
}

// DIDResolver resolves a DID to a document snapshot.
type DIDResolver interface {
	Resolve(ctx context.Context, did domain.DID) (domain.DIDDocument, error)
}

// SignatureVerifier checks a signature against a candidate wallet address.
type SignatureVerifier interface {
	Verify(message []byte, signatureHex string, address string) (bool, error)
}

// StatusOracle reports a credential's on-chain lifecycle state.
type StatusOracle interface {
	GetCredentialStatus(ctx context.Context, credentialID string) (status.CredentialStatus, error)
}
