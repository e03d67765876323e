// Package audit captures an append-only trail of authorization decisions.
// Events are emitted from domain logic and fanned out through a Store, so
// sinks (memory, Kafka) can be swapped without touching the emitters.
package audit

import (
	"context"
	"time"
)

// Action names the kind of decision an event records.
type Action string

const (
	ActionChallengeIssued    Action = "challenge_issued"
	ActionPresentationVerify Action = "presentation_verified"
	ActionCheckinRecorded    Action = "checkin_recorded"
	ActionCheckinRejected    Action = "checkin_rejected"
	ActionReconciliationRun  Action = "reconciliation_run"
)

// Event is a single audit record. Subject identifies what was acted on
// (a wallet address, an event ID); Outcome and Reason carry the decision.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Subject   string    `json:"subject"`
	EventID   string    `json:"event_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Store persists audit events. Append-only: no sink ever mutates or deletes
// a recorded event.
type Store interface {
	Append(ctx context.Context, event Event) error
}
