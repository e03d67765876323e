// Package checkin orchestrates the check-in flow: credential verification,
// the attendance guard, then the ledger write. Identity is only trusted once
// the verifier has cryptographically established it.
package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"attestra/internal/attendance"
	"attestra/internal/verification"
	"attestra/pkg/platform/audit"
	"attestra/pkg/requestcontext"
)

// Request carries one check-in attempt. The presentation may arrive inline
// or already bound to the challenge session behind Token. TxHash is set when
// the on-chain CheckIn transaction has already landed.
type Request struct {
	EventID      string
	Token        string
	Presentation json.RawMessage
	VerifiedBy   string
	TxHash       string
}

// Outcome is the business result of a check-in attempt. A rejection is an
// outcome, not an error.
type Outcome struct {
	CheckedIn bool
	Reason    string
	Checks    verification.CheckVector
	Checkin   *attendance.Checkin
}

// Verifier is the slice of the verification service the flow needs.
type Verifier interface {
	VerifyPresentation(ctx context.Context, token string, rawVP []byte) (verification.Result, error)
}

// Service runs the check-in flow.
type Service struct {
	verifier Verifier
	guard    *attendance.Guard
	checkins attendance.CheckinStore
	auditor  *audit.Publisher
	logger   *slog.Logger
}

// New constructs the check-in service.
func New(
	verifier Verifier,
	guard *attendance.Guard,
	checkins attendance.CheckinStore,
	auditor *audit.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		verifier: verifier,
		guard:    guard,
		checkins: checkins,
		auditor:  auditor,
		logger:   logger,
	}
}

// Register verifies the presentation, applies the attendance rules, and
// appends the ledger row. Each rejection short-circuits with its reason.
func (s *Service) Register(ctx context.Context, req Request) (Outcome, error) {
	now := requestcontext.Now(ctx).UTC()

	result, err := s.verifier.VerifyPresentation(ctx, req.Token, req.Presentation)
	if err != nil {
		return Outcome{}, fmt.Errorf("verify presentation: %w", err)
	}
	if !result.Valid {
		s.audit(ctx, audit.ActionCheckinRejected, result.Identity, req.EventID, result.Reason)
		return Outcome{Reason: result.Reason, Checks: result.Checks}, nil
	}

	eligibility, err := s.guard.CheckEligibility(ctx, req.EventID, result.Identity, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("check eligibility: %w", err)
	}
	if !eligibility.IsParticipant {
		s.audit(ctx, audit.ActionCheckinRejected, result.Identity, req.EventID, attendance.ReasonNotParticipant)
		return Outcome{Reason: attendance.ReasonNotParticipant, Checks: result.Checks}, nil
	}
	if eligibility.AlreadyCheckedInToday {
		s.audit(ctx, audit.ActionCheckinRejected, result.Identity, req.EventID, attendance.ReasonAlreadyCheckedIn)
		return Outcome{Reason: attendance.ReasonAlreadyCheckedIn, Checks: result.Checks}, nil
	}

	record := &attendance.Checkin{
		ID:         uuid.NewString(),
		EventID:    req.EventID,
		Identity:   result.Identity,
		VerifiedBy: req.VerifiedBy,
		OccurredAt: now,
		TxHash:     req.TxHash,
	}
	if err := s.checkins.Record(ctx, record); err != nil {
		return Outcome{}, fmt.Errorf("record check-in: %w", err)
	}

	s.audit(ctx, audit.ActionCheckinRecorded, result.Identity, req.EventID, "")
	s.logger.InfoContext(ctx, "check-in recorded",
		"request_id", requestcontext.RequestID(ctx),
		"event_id", req.EventID,
		"identity", result.Identity,
	)
	return Outcome{CheckedIn: true, Checks: result.Checks, Checkin: record}, nil
}

func (s *Service) audit(ctx context.Context, action audit.Action, subject, eventID, reason string) {
	if s.auditor == nil {
		return
	}
	outcome := "accepted"
	if action == audit.ActionCheckinRejected {
		outcome = "rejected"
	}
	s.auditor.Emit(ctx, audit.Event{
		Action:    action,
		Subject:   subject,
		EventID:   eventID,
		Outcome:   outcome,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
}
