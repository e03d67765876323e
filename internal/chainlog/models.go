// Package chainlog retrieves and decodes authorization events from the
// chain, either through a log-index service or by scanning RPC directly. The
// on-chain log is the authoritative side of reconciliation, so a fetch either
// returns the complete requested range or fails; partial sets are never
// returned.
package chainlog

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures emitted by the authorization contract.
var (
	// TopicCheckIn is keccak256("CheckIn(address,address,uint256)"):
	// participant and verifier indexed, day indexed.
	TopicCheckIn = crypto.Keccak256Hash([]byte("CheckIn(address,address,uint256)")).Hex()

	// TopicPayment is keccak256("Payment(address,address,uint256,uint256)"):
	// participant, approver, and day indexed; amount in the data payload.
	TopicPayment = crypto.Keccak256Hash([]byte("Payment(address,address,uint256,uint256)")).Hex()
)

// Record is a decoded on-chain authorization event. Addresses and hashes are
// lowercased so comparisons elsewhere can be byte-for-byte.
type Record struct {
	Participant  string   `json:"participant"`
	Counterparty string   `json:"counterparty"`
	Day          uint64   `json:"day"`
	Amount       *big.Int `json:"amount,omitempty"`
	TxHash       string   `json:"tx_hash"`
	BlockNumber  uint64   `json:"block_number"`
	LogIndex     uint     `json:"log_index"`
}

// Fetcher retrieves decoded logs for a contract and event topic. since hints
// at how far back to scan; the indexed strategy may ignore it.
type Fetcher interface {
	FetchLogs(ctx context.Context, contractAddress, eventTopic string, since time.Time) ([]Record, error)
}
