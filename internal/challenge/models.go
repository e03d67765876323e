package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is a single-use, time-bounded challenge and the in-flight
// presentation bound to it. Used transitions false to true exactly once,
// atomically with the verify read; expired entries are purged by the sweeper
// regardless of Used.
type Session struct {
	Token        string
	Nonce        string
	Presentation []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Used         bool
	UsedAt       *time.Time
}

// NewSession mints a session with a fresh opaque token and a challenge nonce
// derived from the supplied entropy. Nil entropy draws 32 bytes from
// crypto/rand.
func NewSession(entropy []byte, now time.Time, ttl time.Duration) (*Session, error) {
	if len(entropy) == 0 {
		entropy = make([]byte, 32)
		if _, err := rand.Read(entropy); err != nil {
			return nil, fmt.Errorf("draw challenge entropy: %w", err)
		}
	}
	return &Session{
		Token:     uuid.NewString(),
		Nonce:     hex.EncodeToString(entropy),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MarkUsed flips the single-use bit. Callers must hold the store's write
// lock; the store is the only place allowed to call this.
func (s *Session) MarkUsed(now time.Time) {
	s.Used = true
	s.UsedAt = &now
}
