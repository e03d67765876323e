package challenge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"attestra/pkg/platform/sentinel"
)

// InMemoryStore keeps challenge sessions in a mutex-guarded map. Suitable for
// single-process deployments and tests; distributed deployments use the
// Redis-backed store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore constructs an empty in-memory challenge store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
	}
}

func (s *InMemoryStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return nil
}

func (s *InMemoryStore) Bind(_ context.Context, token string, presentation []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return fmt.Errorf("challenge %s: %w", token, sentinel.ErrNotFound)
	}
	if session.Used {
		return fmt.Errorf("challenge %s: %w", token, sentinel.ErrAlreadyUsed)
	}
	session.Presentation = presentation
	return nil
}

// VerifyAndConsume validates and consumes the session under a single write
// lock, so concurrent callers racing on one token see exactly one success.
// Expired sessions are removed on sight.
func (s *InMemoryStore) VerifyAndConsume(_ context.Context, token string, now time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", token, sentinel.ErrNotFound)
	}
	if session.Expired(now) {
		delete(s.sessions, token)
		return nil, fmt.Errorf("challenge %s: %w", token, sentinel.ErrExpired)
	}
	if session.Used {
		return nil, fmt.Errorf("challenge %s: %w", token, sentinel.ErrAlreadyUsed)
	}

	session.MarkUsed(now)
	consumed := *session
	return &consumed, nil
}

func (s *InMemoryStore) Exists(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[token]
	return ok, nil
}

// DeleteExpired removes all sessions past their expiry, used or not.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}
