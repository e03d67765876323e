package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attestra/internal/attendance"
	"attestra/internal/chainlog"
	"attestra/internal/reconcile/metrics"
	"attestra/pkg/platform/audit"
	"attestra/pkg/requestcontext"
)

// Service runs full reconciliations: it loads both off-chain ledgers, fetches
// the matching on-chain logs, and diffs each pair. A discrepancy is a finding
// in the report; only a failed or partial chain fetch is an error.
type Service struct {
	checkins attendance.CheckinStore
	payments PaymentStore
	fetcher  chainlog.Fetcher
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// New constructs the reconciliation service.
func New(
	checkins attendance.CheckinStore,
	payments PaymentStore,
	fetcher chainlog.Fetcher,
	auditor *audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		checkins: checkins,
		payments: payments,
		fetcher:  fetcher,
		auditor:  auditor,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("attestra/reconcile"),
	}
}

// Run reconciles one event's ledgers against the contract's log. Check-ins
// diff against CheckIn events and payments against Payment events; the two
// reports merge into one.
func (s *Service) Run(ctx context.Context, contractAddress, eventID string) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.Run")
	defer span.End()
	start := time.Now()

	checkins, err := s.checkins.ListByEvent(ctx, eventID)
	if err != nil {
		return Report{}, fmt.Errorf("load check-in ledger: %w", err)
	}
	checkinRows := checkinLedger(checkins)

	paymentRows, err := s.payments.ListByEvent(ctx, eventID)
	if err != nil {
		return Report{}, fmt.Errorf("load payment ledger: %w", err)
	}

	since := earliestRow(checkinRows, paymentRows)

	checkinLogs, err := s.fetcher.FetchLogs(ctx, contractAddress, chainlog.TopicCheckIn, since)
	if err != nil {
		s.observe(ctx, Report{}, "failed", start)
		return Report{}, fmt.Errorf("fetch check-in log: %w", err)
	}
	paymentLogs, err := s.fetcher.FetchLogs(ctx, contractAddress, chainlog.TopicPayment, since)
	if err != nil {
		s.observe(ctx, Report{}, "failed", start)
		return Report{}, fmt.Errorf("fetch payment log: %w", err)
	}

	report := merge(
		Compare(checkinLogs, checkinRows),
		Compare(paymentLogs, paymentRows),
	)

	outcome := "clean"
	if !report.IsValid {
		outcome = "discrepant"
	}
	span.SetAttributes(
		attribute.Bool("reconcile.valid", report.IsValid),
		attribute.Int("reconcile.discrepancies", len(report.Discrepancies)),
	)
	s.observe(ctx, report, outcome, start)

	if s.auditor != nil {
		s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionReconciliationRun,
			Subject:   contractAddress,
			EventID:   eventID,
			Outcome:   outcome,
			Reason:    strconv.Itoa(len(report.Discrepancies)) + " discrepancies",
			RequestID: requestcontext.RequestID(ctx),
		})
	}
	return report, nil
}

// checkinLedger projects check-in rows into the engine's ledger shape. The
// verifier is the counterparty on the CheckIn event.
func checkinLedger(checkins []*attendance.Checkin) []LedgerRow {
	rows := make([]LedgerRow, 0, len(checkins))
	for _, c := range checkins {
		rows = append(rows, LedgerRow{
			Participant:  c.Identity,
			Counterparty: c.VerifiedBy,
			OccurredAt:   c.OccurredAt,
			TxHash:       c.TxHash,
		})
	}
	return rows
}

// earliestRow picks the oldest ledger timestamp as the scan-back hint. An
// empty ledger returns the zero time, which scans from genesis.
func earliestRow(sets ...[]LedgerRow) time.Time {
	var earliest time.Time
	for _, rows := range sets {
		for _, row := range rows {
			if earliest.IsZero() || row.OccurredAt.Before(earliest) {
				earliest = row.OccurredAt
			}
		}
	}
	return earliest
}

func merge(a, b Report) Report {
	merged := Report{
		TotalOnChain:  a.TotalOnChain + b.TotalOnChain,
		TotalOffChain: a.TotalOffChain + b.TotalOffChain,
		Discrepancies: append(a.Discrepancies, b.Discrepancies...),
	}
	merged.IsValid = len(merged.Discrepancies) == 0
	return merged
}

func (s *Service) observe(ctx context.Context, report Report, outcome string, start time.Time) {
	if s.metrics != nil {
		kinds := make(map[string]int)
		for _, d := range report.Discrepancies {
			kinds[string(d.Kind)]++
		}
		s.metrics.ObserveRun(outcome, kinds, time.Since(start))
	}
	s.logger.InfoContext(ctx, "reconciliation finished",
		"request_id", requestcontext.RequestID(ctx),
		"outcome", outcome,
		"on_chain", report.TotalOnChain,
		"off_chain", report.TotalOffChain,
		"discrepancies", len(report.Discrepancies),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
