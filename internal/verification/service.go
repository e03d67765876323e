package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attestra/internal/challenge"
	"attestra/internal/domain"
	"attestra/internal/status"
	"attestra/internal/upstream"
	"attestra/internal/verification/metrics"
	"attestra/pkg/platform/sentinel"
	"attestra/pkg/requestcontext"
)

// Service runs the credential verification pipeline: consume the bound
// challenge, then six ordered fail-fast checks. Collaborators are injected;
// the challenge store is the only shared mutable resource the service touches.
type Service struct {
	store      challenge.Store
	resolver   DIDResolver
	signatures SignatureVerifier
	oracle     StatusOracle
	ttl        time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// New constructs the verification service.
func New(
	store challenge.Store,
	resolver DIDResolver,
	signatures SignatureVerifier,
	oracle StatusOracle,
	ttl time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:      store,
		resolver:   resolver,
		signatures: signatures,
		oracle:     oracle,
		ttl:        ttl,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer("attestra/verification"),
	}
}

// CreateChallenge mints a single-use challenge session.
func (s *Service) CreateChallenge(ctx context.Context) (*challenge.Session, error) {
	now := requestcontext.Now(ctx).UTC()
	session, err := challenge.NewSession(nil, now, s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}
	return session, nil
}

// BindPresentation attaches a raw presentation to an in-flight session.
func (s *Service) BindPresentation(ctx context.Context, token string, raw []byte) error {
	return s.store.Bind(ctx, token, raw)
}

// VerifyPresentation consumes the challenge session behind token and runs
// the pipeline on the bound presentation (or rawVP when the caller sends the
// presentation inline with the verify request).
//
// Session and credential failures are business outcomes: they come back as an
// invalid Result, not an error. Errors are reserved for collaborator and
// infrastructure failures.
func (s *Service) VerifyPresentation(ctx context.Context, token string, rawVP []byte) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyPresentation")
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx).UTC()

	session, err := s.store.VerifyAndConsume(ctx, token, now)
	if err != nil {
		if reason, ok := sessionFailureReason(err); ok {
			s.observe(ctx, Result{Valid: false, Reason: reason}, start)
			return failed(reason, CheckVector{}), nil
		}
		return Result{}, fmt.Errorf("consume challenge: %w", err)
	}

	raw := session.Presentation
	if len(rawVP) > 0 {
		raw = rawVP
	}

	result, err := s.runPipeline(ctx, raw, session.Nonce, now)
	if err != nil {
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Bool("verification.valid", result.Valid),
		attribute.String("verification.reason", result.Reason),
	)
	s.observe(ctx, result, start)
	return result, nil
}

// runPipeline executes the six ordered checks. Each check writes its bit into
// the vector before the pipeline may abort; on failure every later bit stays
// false.
func (s *Service) runPipeline(ctx context.Context, raw []byte, nonce string, now time.Time) (Result, error) {
	var checks CheckVector

	// Check 1: structure. One parse-and-validate pass at the boundary.
	vp, err := domain.ParsePresentation(raw)
	if err != nil {
		s.logger.InfoContext(ctx, "presentation rejected",
			"check", CheckStructure, "error", err)
		return failed(ReasonBadStructure, checks), nil
	}
	if vp.Proof.Challenge != nonce {
		return failed(ReasonChallengeMismatch, checks), nil
	}
	checks.Structure = true
	vc := vp.FirstCredential()

	// Check 2: holder signature. Resolve holder DID, verify the VP proof
	// against the holder's wallet.
	holderAddress, ok, err := s.verifyAgainstDID(ctx, vp.Holder, vp)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failed(ReasonHolderSignature, checks), nil
	}
	checks.HolderSignature = true

	// Check 3: issuer signature over the credential.
	_, ok, err = s.verifyAgainstDID(ctx, vc.Issuer, vc)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return failed(ReasonIssuerSignature, checks), nil
	}
	checks.IssuerSignature = true

	// Check 4: validity window.
	if !vc.InValidityWindow(now) {
		return failed(ReasonOutsideValidity, checks), nil
	}
	checks.ValidityWindow = true

	// Check 5: on-chain status. The reason distinguishes revoked from
	// merely inactive or unknown.
	credStatus, err := s.oracle.GetCredentialStatus(ctx, vc.ID)
	if err != nil {
		return Result{}, fmt.Errorf("credential status lookup: %w", err)
	}
	if credStatus != status.StatusActive {
		reason := ReasonInactive
		if credStatus == status.StatusRevoked {
			reason = ReasonRevoked
		}
		return failed(reason, checks), nil
	}
	checks.OnChainStatus = true

	// Check 6: subject-holder binding.
	if vc.CredentialSubject.ID != vp.Holder {
		return failed(ReasonSubjectMismatch, checks), nil
	}
	checks.SubjectBinding = true

	return Result{
		Valid:    true,
		Checks:   checks,
		Identity: holderAddress,
		Holder:   vp.Holder,
	}, nil
}

// signable is anything carrying a proof over a canonical payload.
type signable interface {
	SigningPayload() ([]byte, error)
}

func (s *Service) verifyAgainstDID(ctx context.Context, did domain.DID, obj signable) (string, bool, error) {
	doc, err := s.resolver.Resolve(ctx, did)
	if err != nil {
		// An unregistered DID cannot pass a signature check; that is a
		// verdict, not an infrastructure failure.
		if upstream.CategoryOf(err) == upstream.CategoryNotFound {
			s.logger.InfoContext(ctx, "DID does not resolve", "did", did.String(), "error", err)
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve %s: %w", did, err)
	}
	address, err := doc.WalletAddress()
	if err != nil {
		// A resolvable DID without a usable wallet cannot pass a signature
		// check; that is a verdict, not an infrastructure failure.
		s.logger.InfoContext(ctx, "DID document has no usable wallet", "did", did.String(), "error", err)
		return "", false, nil
	}

	payload, err := obj.SigningPayload()
	if err != nil {
		return "", false, err
	}

	proofValue := proofValueOf(obj)
	ok, err := s.signatures.Verify(payload, proofValue, address)
	if err != nil {
		// Malformed signatures fail the check rather than the request.
		s.logger.InfoContext(ctx, "malformed signature", "did", did.String(), "error", err)
		return "", false, nil
	}
	return address, ok, nil
}

func proofValueOf(obj signable) string {
	switch v := obj.(type) {
	case domain.VerifiablePresentation:
		return v.Proof.ProofValue
	case domain.VerifiableCredential:
		return v.Proof.ProofValue
	default:
		return ""
	}
}

func sessionFailureReason(err error) (string, bool) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return ReasonChallengeNotFound, true
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return ReasonChallengeUsed, true
	case errors.Is(err, sentinel.ErrExpired):
		return ReasonChallengeExpired, true
	default:
		return "", false
	}
}

func (s *Service) observe(ctx context.Context, result Result, start time.Time) {
	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
	}
	if s.metrics != nil {
		s.metrics.ObserveVerification(outcome, result.Reason, time.Since(start))
	}
	s.logger.InfoContext(ctx, "presentation verified",
		"request_id", requestcontext.RequestID(ctx),
		"valid", result.Valid,
		"reason", result.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
