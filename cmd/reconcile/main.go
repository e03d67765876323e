// Command reconcile runs a one-off reconciliation of an event's off-chain
// ledgers against the on-chain log and prints the report as JSON. Exit code 0
// means the ledgers agree, 2 means discrepancies were found.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"attestra/internal/attendance"
	"attestra/internal/chainlog"
	"attestra/internal/platform/config"
	"attestra/internal/platform/logger"
	"attestra/internal/platform/postgres"
	"attestra/internal/reconcile"
)

func main() {
	var (
		contract = flag.String("contract", "", "authorization contract address")
		eventID  = flag.String("event", "", "event identifier to reconcile")
		timeout  = flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	)
	flag.Parse()

	log := logger.New(slog.LevelInfo)
	if *contract == "" || *eventID == "" {
		log.Error("both -contract and -event are required")
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		log.Error("POSTGRES_DSN is required: there is no ledger to reconcile without it")
		os.Exit(1)
	}
	defer pool.Close()

	fetcher, err := newFetcher(cfg)
	if err != nil {
		log.Error("log fetcher", "error", err)
		os.Exit(1)
	}

	svc := reconcile.New(
		attendance.NewPostgresCheckinStore(pool),
		reconcile.NewPostgresPaymentStore(pool),
		fetcher,
		nil,
		log,
		nil,
	)

	report, err := svc.Run(ctx, *contract, *eventID)
	if err != nil {
		log.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error("encode report", "error", err)
		os.Exit(1)
	}
	if !report.IsValid {
		os.Exit(2)
	}
}

func newFetcher(cfg config.Config) (chainlog.Fetcher, error) {
	switch cfg.FetchStrategy {
	case config.StrategyRPC:
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, err
		}
		return chainlog.NewRPCFetcher(client, cfg.ScanChunkBlocks, cfg.AvgBlockTime, cfg.ScanSafetyBuffer)
	default:
		return chainlog.NewIndexedFetcher(cfg.LogIndexURL, cfg.LogIndexAPIKey, nil)
	}
}
