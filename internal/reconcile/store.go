package reconcile

import "context"

// PaymentStore reads the off-chain payment approval ledger. Rows are
// append-only, written by the approval flow with the transaction hash of the
// on-chain Payment event.
type PaymentStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]LedgerRow, error)
}
