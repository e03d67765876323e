package attendance

import "time"

// Participant is an off-chain registration row linking an identity (wallet
// address, lowercased) to an event.
type Participant struct {
	EventID      string
	Identity     string
	RegisteredAt time.Time
}

// Checkin is an off-chain ledger row recording a verified check-in. TxHash is
// filled in once the calling flow lands the corresponding on-chain
// transaction; reconciliation correlates through it.
type Checkin struct {
	ID         string
	EventID    string
	Identity   string
	VerifiedBy string
	OccurredAt time.Time
	TxHash     string
}

// Eligibility is the guard's verdict. Both fields are reported so the caller
// can phrase the failure precisely.
type Eligibility struct {
	IsParticipant         bool
	AlreadyCheckedInToday bool
}

// Eligible reports whether a check-in may proceed.
func (e Eligibility) Eligible() bool {
	return e.IsParticipant && !e.AlreadyCheckedInToday
}

// UTCDayWindow returns the inclusive bounds of the UTC calendar day
// containing t. "Today" is always computed in UTC, never the server's local
// zone.
func UTCDayWindow(t time.Time) (from, to time.Time) {
	u := t.UTC()
	from = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	to = from.Add(24*time.Hour - time.Nanosecond)
	return from, to
}
