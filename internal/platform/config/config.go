// Package config builds the process configuration from the environment so
// main stays lean. Mandatory secrets fail closed: a missing value for the
// selected strategy is a startup error, never a silent fallback.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LogFetchStrategy selects how on-chain logs are retrieved.
type LogFetchStrategy string

const (
	// StrategyIndexed queries a log-index service in a single filtered call.
	StrategyIndexed LogFetchStrategy = "indexed"
	// StrategyRPC scans the chain directly with chunked getLogs calls.
	StrategyRPC LogFetchStrategy = "rpc"
)

// Config is the full process configuration.
type Config struct {
	Addr string

	// Challenge store.
	ChallengeTTL        time.Duration
	ChallengeSweepEvery time.Duration
	RedisURL            string // empty selects the in-memory store

	// Collaborators.
	ResolverURL     string
	StatusOracleURL string

	// Persistence. Empty DSN selects in-memory stores (dev/tests).
	PostgresDSN string

	// On-chain log fetching.
	FetchStrategy    LogFetchStrategy
	RPCURL           string
	LogIndexURL      string
	LogIndexAPIKey   string
	ScanChunkBlocks  uint64
	AvgBlockTime     time.Duration
	ScanSafetyBuffer uint64

	// Operator auth.
	JWTSigningKey string
	JWTIssuer     string

	// Audit trail. Empty brokers select the in-memory audit store.
	KafkaBrokers []string
	AuditTopic   string
}

// FromEnv builds a Config from environment variables, validating that the
// selected log-fetch strategy has its credentials present.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                getenv("ATTESTRA_ADDR", ":8080"),
		ChallengeTTL:        durationEnv("CHALLENGE_TTL_MINUTES", 5) * time.Minute,
		ChallengeSweepEvery: durationEnv("CHALLENGE_SWEEP_SECONDS", 60) * time.Second,
		RedisURL:            os.Getenv("REDIS_URL"),
		ResolverURL:         os.Getenv("DID_RESOLVER_URL"),
		StatusOracleURL:     os.Getenv("STATUS_ORACLE_URL"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		FetchStrategy:       LogFetchStrategy(getenv("LOG_FETCH_STRATEGY", string(StrategyIndexed))),
		RPCURL:              os.Getenv("RPC_URL"),
		LogIndexURL:         os.Getenv("LOG_INDEX_URL"),
		LogIndexAPIKey:      os.Getenv("LOG_INDEX_API_KEY"),
		ScanChunkBlocks:     uintEnv("SCAN_CHUNK_BLOCKS", 3000),
		AvgBlockTime:        durationEnv("AVG_BLOCK_TIME_SECONDS", 12) * time.Second,
		ScanSafetyBuffer:    uintEnv("SCAN_SAFETY_BUFFER_BLOCKS", 5000),
		JWTSigningKey:       os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:           getenv("JWT_ISSUER", "attestra"),
		AuditTopic:          getenv("AUDIT_TOPIC", "attestra.audit"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	switch cfg.FetchStrategy {
	case StrategyIndexed:
		if cfg.LogIndexURL == "" || cfg.LogIndexAPIKey == "" {
			return Config{}, fmt.Errorf("indexed log fetching requires LOG_INDEX_URL and LOG_INDEX_API_KEY")
		}
	case StrategyRPC:
		if cfg.RPCURL == "" {
			return Config{}, fmt.Errorf("rpc log fetching requires RPC_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown LOG_FETCH_STRATEGY %q", cfg.FetchStrategy)
	}

	if cfg.JWTSigningKey == "" {
		return Config{}, fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(fallback)
}

func uintEnv(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
