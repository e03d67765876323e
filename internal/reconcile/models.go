// Package reconcile compares the off-chain authorization ledger against the
// on-chain event log and classifies every divergence. The engine is pure: a
// mismatch is a finding in the report, never an error.
package reconcile

import (
	"math/big"
	"time"

	"attestra/internal/chainlog"
)

// LedgerRow is one off-chain authorization record, either a check-in or a
// payment approval. TxHash is empty for rows written before the on-chain
// transaction landed.
type LedgerRow struct {
	Participant  string    `json:"participant"`
	Counterparty string    `json:"counterparty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Amount       *big.Int  `json:"amount,omitempty"`
	TxHash       string    `json:"tx_hash,omitempty"`
}

// DiscrepancyKind classifies a divergence between the two ledgers.
type DiscrepancyKind string

const (
	// MissingOnChain: the off-chain ledger has a row whose transaction never
	// appears in the on-chain log.
	MissingOnChain DiscrepancyKind = "MISSING_ON_CHAIN"

	// MissingOffChain: the chain carries an event with no matching ledger row.
	MissingOffChain DiscrepancyKind = "MISSING_OFF_CHAIN"

	// CounterpartyMismatch: both sides share a transaction hash but disagree
	// on who the verifier or approver was.
	CounterpartyMismatch DiscrepancyKind = "COUNTERPARTY_MISMATCH"
)

// Discrepancy pairs the two sides of a divergence. Exactly one of OnChain
// and OffChain is nil for the missing kinds; both are set for a mismatch.
type Discrepancy struct {
	Kind     DiscrepancyKind  `json:"kind"`
	TxHash   string           `json:"tx_hash,omitempty"`
	OnChain  *chainlog.Record `json:"on_chain,omitempty"`
	OffChain *LedgerRow       `json:"off_chain,omitempty"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	TotalOnChain  int           `json:"total_on_chain"`
	TotalOffChain int           `json:"total_off_chain"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	IsValid       bool          `json:"is_valid"`
}
