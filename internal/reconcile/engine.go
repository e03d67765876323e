package reconcile

import (
	"strings"

	"attestra/internal/chainlog"
)

// Compare runs the symmetric diff between the on-chain log and the off-chain
// ledger. The transaction hash is the primary join key on both sides; rows
// without one fall back to matchByFallback. Comparing A against B and B
// against A classifies every divergence exactly once.
func Compare(onChain []chainlog.Record, offChain []LedgerRow) Report {
	report := Report{
		TotalOnChain:  len(onChain),
		TotalOffChain: len(offChain),
	}

	byHash := make(map[string]int, len(onChain))
	for i, record := range onChain {
		byHash[strings.ToLower(record.TxHash)] = i
	}
	consumed := make([]bool, len(onChain))

	for i := range offChain {
		row := &offChain[i]

		idx, ok := -1, false
		if row.TxHash != "" {
			idx, ok = lookupHash(byHash, consumed, row.TxHash)
		} else {
			idx, ok = matchByFallback(onChain, consumed, row.Participant)
		}
		if !ok {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Kind:     MissingOnChain,
				TxHash:   strings.ToLower(row.TxHash),
				OffChain: row,
			})
			continue
		}

		consumed[idx] = true
		record := &onChain[idx]
		if !strings.EqualFold(record.Counterparty, row.Counterparty) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Kind:     CounterpartyMismatch,
				TxHash:   record.TxHash,
				OnChain:  record,
				OffChain: row,
			})
		}
	}

	for i := range onChain {
		if consumed[i] {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			Kind:    MissingOffChain,
			TxHash:  onChain[i].TxHash,
			OnChain: &onChain[i],
		})
	}

	report.IsValid = len(report.Discrepancies) == 0
	return report
}

func lookupHash(byHash map[string]int, consumed []bool, txHash string) (int, bool) {
	idx, ok := byHash[strings.ToLower(txHash)]
	if !ok || consumed[idx] {
		return -1, false
	}
	return idx, true
}

// matchByFallback pairs a hashless ledger row with an unconsumed on-chain
// record for the same participant. The pairing is only trusted when it is
// unambiguous: with two or more candidates there is no way to tell which
// event the row corresponds to, so the row is reported as missing instead of
// guessed at. This is the weak point of hashless rows and the reason the
// ledger records transaction hashes at write time.
func matchByFallback(onChain []chainlog.Record, consumed []bool, participant string) (int, bool) {
	found, count := -1, 0
	for i := range onChain {
		if consumed[i] {
			continue
		}
		if strings.EqualFold(onChain[i].Participant, participant) {
			found = i
			count++
		}
	}
	if count != 1 {
		return -1, false
	}
	return found, true
}
