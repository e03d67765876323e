package attendance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"attestra/pkg/platform/sentinel"
)

// InMemoryParticipantStore keeps registrations in memory for tests/dev.
type InMemoryParticipantStore struct {
	mu           sync.RWMutex
	participants map[string]*Participant
}

// NewInMemoryParticipantStore constructs an empty participant store.
func NewInMemoryParticipantStore() *InMemoryParticipantStore {
	return &InMemoryParticipantStore{
		participants: make(map[string]*Participant),
	}
}

func participantKey(eventID, identity string) string {
	return eventID + "|" + strings.ToLower(identity)
}

// Add registers a participant. Used by tests and seed tooling.
func (s *InMemoryParticipantStore) Add(_ context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[participantKey(p.EventID, p.Identity)] = p
	return nil
}

func (s *InMemoryParticipantStore) Find(_ context.Context, eventID, identity string) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.participants[participantKey(eventID, identity)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("participant %s in event %s: %w", identity, eventID, sentinel.ErrNotFound)
}

// InMemoryCheckinStore keeps check-in rows in memory for tests/dev.
type InMemoryCheckinStore struct {
	mu       sync.RWMutex
	checkins []*Checkin
}

// NewInMemoryCheckinStore constructs an empty check-in store.
func NewInMemoryCheckinStore() *InMemoryCheckinStore {
	return &InMemoryCheckinStore{}
}

func (s *InMemoryCheckinStore) FindInWindow(_ context.Context, eventID, identity string, from, to time.Time) (*Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.checkins {
		if c.EventID == eventID &&
			strings.EqualFold(c.Identity, identity) &&
			!c.OccurredAt.Before(from) && !c.OccurredAt.After(to) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("check-in for %s in event %s: %w", identity, eventID, sentinel.ErrNotFound)
}

func (s *InMemoryCheckinStore) Record(_ context.Context, checkin *Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkins = append(s.checkins, checkin)
	return nil
}

func (s *InMemoryCheckinStore) ListByEvent(_ context.Context, eventID string) ([]*Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Checkin
	for _, c := range s.checkins {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	return out, nil
}
