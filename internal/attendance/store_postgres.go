package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attestra/pkg/platform/sentinel"
)

// PostgresParticipantStore reads registrations from PostgreSQL.
type PostgresParticipantStore struct {
	pool *pgxpool.Pool
}

// NewPostgresParticipantStore constructs a PostgreSQL-backed participant store.
func NewPostgresParticipantStore(pool *pgxpool.Pool) *PostgresParticipantStore {
	return &PostgresParticipantStore{pool: pool}
}

func (s *PostgresParticipantStore) Find(ctx context.Context, eventID, identity string) (*Participant, error) {
	const q = `
		SELECT event_id, identity, registered_at
		FROM participants
		WHERE event_id = $1 AND lower(identity) = lower($2)`

	var p Participant
	err := s.pool.QueryRow(ctx, q, eventID, identity).Scan(&p.EventID, &p.Identity, &p.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("participant %s in event %s: %w", identity, eventID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return &p, nil
}

// PostgresCheckinStore persists check-in ledger rows in PostgreSQL.
type PostgresCheckinStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCheckinStore constructs a PostgreSQL-backed check-in store.
func NewPostgresCheckinStore(pool *pgxpool.Pool) *PostgresCheckinStore {
	return &PostgresCheckinStore{pool: pool}
}

func (s *PostgresCheckinStore) FindInWindow(ctx context.Context, eventID, identity string, from, to time.Time) (*Checkin, error) {
	const q = `
		SELECT id, event_id, identity, verified_by, occurred_at, COALESCE(tx_hash, '')
		FROM checkins
		WHERE event_id = $1 AND lower(identity) = lower($2)
		  AND occurred_at BETWEEN $3 AND $4
		LIMIT 1`

	var c Checkin
	err := s.pool.QueryRow(ctx, q, eventID, identity, from, to).
		Scan(&c.ID, &c.EventID, &c.Identity, &c.VerifiedBy, &c.OccurredAt, &c.TxHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check-in for %s in event %s: %w", identity, eventID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find check-in in window: %w", err)
	}
	return &c, nil
}

func (s *PostgresCheckinStore) Record(ctx context.Context, checkin *Checkin) error {
	const q = `
		INSERT INTO checkins (id, event_id, identity, verified_by, occurred_at, tx_hash)
		VALUES ($1, $2, lower($3), lower($4), $5, NULLIF($6, ''))`

	_, err := s.pool.Exec(ctx, q,
		checkin.ID, checkin.EventID, checkin.Identity, checkin.VerifiedBy, checkin.OccurredAt, checkin.TxHash)
	if err != nil {
		return fmt.Errorf("record check-in: %w", err)
	}
	return nil
}

func (s *PostgresCheckinStore) ListByEvent(ctx context.Context, eventID string) ([]*Checkin, error) {
	const q = `
		SELECT id, event_id, identity, verified_by, occurred_at, COALESCE(tx_hash, '')
		FROM checkins
		WHERE event_id = $1
		ORDER BY occurred_at`

	rows, err := s.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	var out []*Checkin
	for rows.Next() {
		var c Checkin
		if err := rows.Scan(&c.ID, &c.EventID, &c.Identity, &c.VerifiedBy, &c.OccurredAt, &c.TxHash); err != nil {
			return nil, fmt.Errorf("scan check-in: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check-ins: %w", err)
	}
	return out, nil
}
