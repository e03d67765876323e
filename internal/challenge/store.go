package challenge

import (
	"context"
	"time"
)

// Store holds challenge sessions. It is the sole mutable shared state in the
// verification core: constructed once at process start and injected into
// every handler, never re-created per request.
//
// Error contract (sentinel errors, optionally wrapped):
//   - ErrNotFound: token was never issued or has been purged
//   - ErrAlreadyUsed: token was consumed before
//   - ErrExpired: token is past its expiry window
//
// VerifyAndConsume is linearizable: of N concurrent calls on the same token
// exactly one succeeds and the rest observe ErrAlreadyUsed.
type Store interface {
	Save(ctx context.Context, session *Session) error
	Bind(ctx context.Context, token string, presentation []byte) error
	VerifyAndConsume(ctx context.Context, token string, now time.Time) (*Session, error)
	Exists(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
