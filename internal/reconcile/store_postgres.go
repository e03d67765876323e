package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPaymentStore reads payment ledger rows from PostgreSQL. Amounts
// are stored as NUMERIC and surfaced as big.Int; nothing in this path ever
// touches floating point.
type PostgresPaymentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentStore constructs a PostgreSQL-backed payment store.
func NewPostgresPaymentStore(pool *pgxpool.Pool) *PostgresPaymentStore {
	return &PostgresPaymentStore{pool: pool}
}

func (s *PostgresPaymentStore) ListByEvent(ctx context.Context, eventID string) ([]LedgerRow, error) {
	const q = `
		SELECT lower(participant), lower(approver), occurred_at, amount::text, COALESCE(tx_hash, '')
		FROM payments
		WHERE event_id = $1
		ORDER BY occurred_at`

	rows, err := s.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []LedgerRow
	for rows.Next() {
		var (
			row    LedgerRow
			amount string
		)
		if err := rows.Scan(&row.Participant, &row.Counterparty, &row.OccurredAt, &amount, &row.TxHash); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("payment amount %q is not an integer", amount)
		}
		row.Amount = value
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

var _ PaymentStore = (*PostgresPaymentStore)(nil)
