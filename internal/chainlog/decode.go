package chainlog

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"attestra/internal/upstream"
)

// decodeLog turns a raw log into a Record. Expected topic layout:
//
//	topics[0] event signature
//	topics[1] participant address (left-padded)
//	topics[2] counterparty address (verifier or approver)
//	topics[3] day number
//
// Payment events additionally carry the amount as the first data word.
func decodeLog(l types.Log, collaborator string) (Record, error) {
	if len(l.Topics) < 4 {
		return Record{}, upstream.New(upstream.CategoryBadData, collaborator,
			"log has fewer topics than the event layout requires", nil)
	}

	record := Record{
		Participant:  strings.ToLower(common.BytesToAddress(l.Topics[1].Bytes()).Hex()),
		Counterparty: strings.ToLower(common.BytesToAddress(l.Topics[2].Bytes()).Hex()),
		Day:          new(big.Int).SetBytes(l.Topics[3].Bytes()).Uint64(),
		TxHash:       strings.ToLower(l.TxHash.Hex()),
		BlockNumber:  l.BlockNumber,
		LogIndex:     l.Index,
	}
	if len(l.Data) >= 32 {
		record.Amount = new(big.Int).SetBytes(l.Data[:32])
	}
	return record, nil
}

// sortRecords orders records deterministically by (block, log index) so both
// fetch strategies hand identical sequences to reconciliation.
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].BlockNumber != records[j].BlockNumber {
			return records[i].BlockNumber < records[j].BlockNumber
		}
		return records[i].LogIndex < records[j].LogIndex
	})
}
