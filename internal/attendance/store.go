package attendance

import (
	"context"
	"time"
)

// ParticipantStore looks up event registrations.
//
// Error contract: returns sentinel.ErrNotFound (wrapped) when no registration
// exists; infrastructure failures are returned wrapped with context.
type ParticipantStore interface {
	Find(ctx context.Context, eventID, identity string) (*Participant, error)
}

// CheckinStore reads and appends check-in ledger rows. Rows are append-only:
// nothing in this service ever mutates or deletes a recorded check-in.
type CheckinStore interface {
	FindInWindow(ctx context.Context, eventID, identity string, from, to time.Time) (*Checkin, error)
	Record(ctx context.Context, checkin *Checkin) error
	ListByEvent(ctx context.Context, eventID string) ([]*Checkin, error)
}
