package verification

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attestra/internal/challenge"
	"attestra/internal/domain"
	"attestra/internal/status"
	"attestra/internal/upstream"
	"attestra/internal/verification/mocks"
	"attestra/pkg/requestcontext"
)

const (
	holderDID    = "did:ethr:0x1111111111111111111111111111111111111111"
	issuerDID    = "did:ethr:0x2222222222222222222222222222222222222222"
	holderWallet = "0x1111111111111111111111111111111111111111"
	issuerWallet = "0x2222222222222222222222222222222222222222"
	holderSig    = "0xaaaa"
	issuerSig    = "0xbbbb"
	credentialID = "urn:uuid:7e3a6d63-1f9e-4c3e-9f3f-2b5a3d1c0001"
)

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	store      *challenge.InMemoryStore
	resolver   *mocks.MockDIDResolver
	signatures *mocks.MockSignatureVerifier
	oracle     *mocks.MockStatusOracle
	service    *Service
	now        time.Time
	ctx        context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = challenge.NewInMemoryStore()
	s.resolver = mocks.NewMockDIDResolver(s.ctrl)
	s.signatures = mocks.NewMockSignatureVerifier(s.ctrl)
	s.oracle = mocks.NewMockStatusOracle(s.ctrl)
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.store, s.resolver, s.signatures, s.oracle, 5*time.Minute, logger, nil)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func docFor(did, wallet string) domain.DIDDocument {
	return domain.DIDDocument{
		ID: domain.DID(did),
		VerificationMethod: []domain.VerificationMethod{{
			ID:                  did + "#controller",
			Type:                "EcdsaSecp256k1RecoveryMethod2020",
			Controller:          domain.DID(did),
			BlockchainAccountID: "eip155:1:" + wallet,
		}},
	}
}

func (s *ServiceSuite) fixturePresentation(nonce string, mutate func(*domain.VerifiablePresentation)) []byte {
	validFrom := s.now.Add(-24 * time.Hour)
	validUntil := s.now.Add(24 * time.Hour)
	vp := domain.VerifiablePresentation{
		Context: []string{"https://www.w3.org/ns/credentials/v2"},
		Type:    []string{"VerifiablePresentation"},
		Holder:  holderDID,
		VerifiableCredential: []domain.VerifiableCredential{{
			Context:           []string{"https://www.w3.org/ns/credentials/v2"},
			ID:                credentialID,
			Type:              []string{"VerifiableCredential", "EventTicketCredential"},
			Issuer:            issuerDID,
			CredentialSubject: domain.CredentialSubject{ID: holderDID},
			ValidFrom:         &validFrom,
			ValidUntil:        &validUntil,
			Proof: domain.Proof{
				Type:       "EcdsaSecp256k1RecoverySignature2020",
				ProofValue: issuerSig,
			},
		}},
		Proof: domain.Proof{
			Type:       "EcdsaSecp256k1RecoverySignature2020",
			ProofValue: holderSig,
			Challenge:  nonce,
		},
	}
	if mutate != nil {
		mutate(&vp)
	}
	raw, err := json.Marshal(vp)
	s.Require().NoError(err)
	return raw
}

func (s *ServiceSuite) issueChallenge() *challenge.Session {
	session, err := s.service.CreateChallenge(s.ctx)
	s.Require().NoError(err)
	return session
}

func (s *ServiceSuite) expectHolderResolution(valid bool) {
	s.resolver.EXPECT().Resolve(gomock.Any(), domain.DID(holderDID)).Return(docFor(holderDID, holderWallet), nil)
	s.signatures.EXPECT().Verify(gomock.Any(), holderSig, holderWallet).Return(valid, nil)
}

func (s *ServiceSuite) expectIssuerResolution(valid bool) {
	s.resolver.EXPECT().Resolve(gomock.Any(), domain.DID(issuerDID)).Return(docFor(issuerDID, issuerWallet), nil)
	s.signatures.EXPECT().Verify(gomock.Any(), issuerSig, issuerWallet).Return(valid, nil)
}

func (s *ServiceSuite) TestFullPass() {
	session := s.issueChallenge()
	raw := s.fixturePresentation(session.Nonce, nil)

	s.expectHolderResolution(true)
	s.expectIssuerResolution(true)
	s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusActive, nil)

	result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
	s.Require().NoError(err)

	s.True(result.Valid)
	s.Empty(result.Reason)
	s.Equal(CheckVector{
		Structure:       true,
		HolderSignature: true,
		IssuerSignature: true,
		ValidityWindow:  true,
		OnChainStatus:   true,
		SubjectBinding:  true,
	}, result.Checks)
	s.Equal(holderWallet, result.Identity)
	s.Equal(domain.DID(holderDID), result.Holder)
}

// A failing holder signature must stop the pipeline: the issuer resolver and
// the oracle have no EXPECTs here, so any call to them fails the test.
func (s *ServiceSuite) TestFailFastOrdering() {
	session := s.issueChallenge()
	raw := s.fixturePresentation(session.Nonce, nil)

	s.expectHolderResolution(false)

	result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
	s.Require().NoError(err)

	s.False(result.Valid)
	s.Equal(ReasonHolderSignature, result.Reason)
	s.Equal(CheckVector{Structure: true}, result.Checks)
}

func (s *ServiceSuite) TestStructureFailures() {
	s.Run("malformed JSON", func() {
		session := s.issueChallenge()

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, []byte(`{not json`))
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonBadStructure, result.Reason)
		s.Equal(CheckVector{}, result.Checks)
	})

	s.Run("presentation without credentials", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, func(vp *domain.VerifiablePresentation) {
			vp.VerifiableCredential = nil
		})

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.Equal(ReasonBadStructure, result.Reason)
	})

	s.Run("challenge nonce mismatch", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation("deadbeef", nil)

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.Equal(ReasonChallengeMismatch, result.Reason)
		s.Equal(CheckVector{}, result.Checks)
	})
}

func (s *ServiceSuite) TestSessionOutcomes() {
	s.Run("unknown token", func() {
		result, err := s.service.VerifyPresentation(s.ctx, "no-such-token", nil)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonChallengeNotFound, result.Reason)
	})

	s.Run("token consumed twice", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		s.expectHolderResolution(true)
		s.expectIssuerResolution(true)
		s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusActive, nil)

		_, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonChallengeUsed, result.Reason)
	})

	s.Run("expired token", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		lateCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		result, err := s.service.VerifyPresentation(lateCtx, session.Token, raw)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonChallengeExpired, result.Reason)
	})
}

func (s *ServiceSuite) TestValidityWindow() {
	session := s.issueChallenge()
	raw := s.fixturePresentation(session.Nonce, func(vp *domain.VerifiablePresentation) {
		expired := s.now.Add(-time.Hour)
		vp.VerifiableCredential[0].ValidUntil = &expired
	})

	s.expectHolderResolution(true)
	s.expectIssuerResolution(true)

	result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonOutsideValidity, result.Reason)
	s.Equal(CheckVector{Structure: true, HolderSignature: true, IssuerSignature: true}, result.Checks)
}

func (s *ServiceSuite) TestOnChainStatus() {
	s.Run("revoked credential reports revoked", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		s.expectHolderResolution(true)
		s.expectIssuerResolution(true)
		s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusRevoked, nil)

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.Equal(ReasonRevoked, result.Reason)
	})

	s.Run("suspended credential reports inactive", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		s.expectHolderResolution(true)
		s.expectIssuerResolution(true)
		s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusSuspended, nil)

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.Equal(ReasonInactive, result.Reason)
	})

	s.Run("unknown credential reports inactive", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		s.expectHolderResolution(true)
		s.expectIssuerResolution(true)
		s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusUnknown, nil)

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.Equal(ReasonInactive, result.Reason)
	})
}

func (s *ServiceSuite) TestSubjectBinding() {
	session := s.issueChallenge()
	raw := s.fixturePresentation(session.Nonce, func(vp *domain.VerifiablePresentation) {
		vp.VerifiableCredential[0].CredentialSubject.ID = "did:ethr:0x3333333333333333333333333333333333333333"
	})

	s.expectHolderResolution(true)
	s.expectIssuerResolution(true)
	s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusActive, nil)

	result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonSubjectMismatch, result.Reason)
	s.Equal(CheckVector{
		Structure:       true,
		HolderSignature: true,
		IssuerSignature: true,
		ValidityWindow:  true,
		OnChainStatus:   true,
	}, result.Checks)
}

// Collaborator failures are transport errors, never an invalid Result.
func (s *ServiceSuite) TestUpstreamFailurePropagates() {
	session := s.issueChallenge()
	raw := s.fixturePresentation(session.Nonce, nil)

	s.resolver.EXPECT().Resolve(gomock.Any(), domain.DID(holderDID)).
		Return(domain.DIDDocument{}, upstream.New(upstream.CategoryRateLimited, "did-resolver", "resolver rate limited", nil))

	_, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
	s.Require().Error(err)
	s.True(upstream.IsRetryable(err))
}

// A DID that was never registered is an invalid credential, not an outage:
// the pipeline fails the signature check instead of erroring.
func (s *ServiceSuite) TestUnresolvableDIDFailsSignatureCheck() {
	s.Run("holder", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		s.resolver.EXPECT().Resolve(gomock.Any(), domain.DID(holderDID)).
			Return(domain.DIDDocument{}, upstream.New(upstream.CategoryNotFound, "did-resolver", "did not found", nil))

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonHolderSignature, result.Reason)
		s.Equal(CheckVector{Structure: true}, result.Checks)
	})

	s.Run("issuer", func() {
		session := s.issueChallenge()
		raw := s.fixturePresentation(session.Nonce, nil)

		s.expectHolderResolution(true)
		s.resolver.EXPECT().Resolve(gomock.Any(), domain.DID(issuerDID)).
			Return(domain.DIDDocument{}, upstream.New(upstream.CategoryNotFound, "did-resolver", "did not found", nil))

		result, err := s.service.VerifyPresentation(s.ctx, session.Token, raw)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonIssuerSignature, result.Reason)
		s.Equal(CheckVector{Structure: true, HolderSignature: true}, result.Checks)
	})
}

func (s *ServiceSuite) TestBoundPresentationUsedWhenNoInlineVP() {
	session := s.issueChallenge()
	raw := s.fixturePresentation(session.Nonce, nil)
	s.Require().NoError(s.service.BindPresentation(s.ctx, session.Token, raw))

	s.expectHolderResolution(true)
	s.expectIssuerResolution(true)
	s.oracle.EXPECT().GetCredentialStatus(gomock.Any(), credentialID).Return(status.StatusActive, nil)

	result, err := s.service.VerifyPresentation(s.ctx, session.Token, nil)
	s.Require().NoError(err)
	s.True(result.Valid)
}
