package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attestra/pkg/platform/sentinel"
)

// Failure reasons surfaced to the check-in flow. Like credential failures,
// these are expected business outcomes carried inside the response envelope.
const (
	ReasonNotParticipant   = "not a participant of this event"
	ReasonAlreadyCheckedIn = "already checked in today"
)

// Guard enforces membership and same-day dedup rules. It runs strictly after
// the credential verifier: identity is not trusted until cryptographically
// established.
type Guard struct {
	participants ParticipantStore
	checkins     CheckinStore
}

// NewGuard constructs the attendance guard.
func NewGuard(participants ParticipantStore, checkins CheckinStore) *Guard {
	return &Guard{participants: participants, checkins: checkins}
}

// CheckEligibility reports whether identity may check in to eventID at now.
// A prior check-in within now's UTC day makes the attempt a duplicate.
func (g *Guard) CheckEligibility(ctx context.Context, eventID, identity string, now time.Time) (Eligibility, error) {
	_, err := g.participants.Find(ctx, eventID, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Eligibility{IsParticipant: false}, nil
		}
		return Eligibility{}, fmt.Errorf("find participant: %w", err)
	}

	from, to := UTCDayWindow(now)
	_, err = g.checkins.FindInWindow(ctx, eventID, identity, from, to)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Eligibility{IsParticipant: true}, nil
		}
		return Eligibility{}, fmt.Errorf("find check-in in window: %w", err)
	}
	return Eligibility{IsParticipant: true, AlreadyCheckedInToday: true}, nil
}
