// Command server runs the credential authorization service: challenge
// issuance, presentation verification, check-ins, and the operator
// reconciliation API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"attestra/internal/attendance"
	"attestra/internal/chainlog"
	"attestra/internal/challenge"
	"attestra/internal/checkin"
	checkinhandler "attestra/internal/checkin/handler"
	httprouter "attestra/internal/http"
	"attestra/internal/platform/config"
	"attestra/internal/platform/httpserver"
	"attestra/internal/platform/logger"
	"attestra/internal/platform/postgres"
	platformredis "attestra/internal/platform/redis"
	"attestra/internal/reconcile"
	reconcilehandler "attestra/internal/reconcile/handler"
	reconcilemetrics "attestra/internal/reconcile/metrics"
	"attestra/internal/resolver"
	"attestra/internal/signature"
	"attestra/internal/status"
	"attestra/internal/verification"
	verificationhandler "attestra/internal/verification/handler"
	verificationmetrics "attestra/internal/verification/metrics"
	"attestra/pkg/platform/audit"
	"attestra/pkg/platform/middleware/auth"
)

func main() {
	log := logger.New(slog.LevelInfo)
	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Challenge store: Redis when configured, in-memory otherwise. The
	// in-memory store needs the sweeper; Redis expires keys itself.
	var challengeStore challenge.Store
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		challengeStore = challenge.NewRedisStore(redisClient.Client)
		log.Info("challenge store: redis")
	} else {
		challengeStore = challenge.NewInMemoryStore()
		log.Info("challenge store: memory")
	}

	sweeper := challenge.NewSweeper(challengeStore, cfg.ChallengeSweepEvery, log)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("challenge sweeper stopped", "error", err)
		}
	}()

	// Persistence: Postgres when configured, in-memory otherwise.
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	var (
		participants attendance.ParticipantStore
		checkins     attendance.CheckinStore
		payments     reconcile.PaymentStore
	)
	if pool != nil {
		defer pool.Close()
		participants = attendance.NewPostgresParticipantStore(pool)
		checkins = attendance.NewPostgresCheckinStore(pool)
		payments = reconcile.NewPostgresPaymentStore(pool)
		log.Info("persistence: postgres")
	} else {
		participants = attendance.NewInMemoryParticipantStore()
		checkins = attendance.NewInMemoryCheckinStore()
		payments = reconcile.NewInMemoryPaymentStore()
		log.Info("persistence: memory")
	}

	// Audit trail: Kafka when brokers are configured.
	var auditStore audit.Store = audit.NewMemoryStore()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
		log.Info("audit sink: kafka", "topic", cfg.AuditTopic)
	}
	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithLogger(log),
	)
	defer auditor.Close()

	// On-chain log fetcher per the configured strategy.
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	oracle, err := status.NewHTTPOracle(cfg.StatusOracleURL, nil)
	if err != nil {
		return err
	}

	verificationSvc := verification.New(
		challengeStore,
		resolver.New(cfg.ResolverURL, nil),
		signature.NewEthVerifier(),
		oracle,
		cfg.ChallengeTTL,
		log,
		verificationmetrics.New(),
	)
	checkinSvc := checkin.New(
		verificationSvc,
		attendance.NewGuard(participants, checkins),
		checkins,
		auditor,
		log,
	)
	reconcileSvc := reconcile.New(
		checkins,
		payments,
		fetcher,
		auditor,
		log,
		reconcilemetrics.New(),
	)

	operator, err := auth.NewVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	router := httprouter.NewRouter(httprouter.Deps{
		Verification: verificationhandler.New(verificationSvc, auditor, log),
		Checkin:      checkinhandler.New(checkinSvc, log),
		Reconcile:    reconcilehandler.New(reconcileSvc, log),
		Operator:     operator,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "strategy", string(cfg.FetchStrategy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
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
