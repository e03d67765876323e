package chainlog

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"attestra/internal/upstream"
)

// maxConcurrentChunks bounds parallel getLogs calls so the provider is not
// hammered; chunks still assemble deterministically afterwards.
const maxConcurrentChunks = 4

// EthClient is the slice of ethclient.Client the scanner needs.
type EthClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// RPCFetcher scans the chain directly with chunked getLogs calls, for
// deployments without a log-index service.
type RPCFetcher struct {
	client       EthClient
	chunkBlocks  uint64
	avgBlockTime time.Duration
	safetyBuffer uint64
	now          func() time.Time
}

// NewRPCFetcher constructs a direct-RPC log fetcher. client is mandatory:
// running without an RPC endpoint fails closed.
func NewRPCFetcher(client EthClient, chunkBlocks uint64, avgBlockTime time.Duration, safetyBuffer uint64) (*RPCFetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("rpc client is not configured")
	}
	if chunkBlocks == 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if avgBlockTime <= 0 {
		return nil, fmt.Errorf("average block time must be positive")
	}
	return &RPCFetcher{
		client:       client,
		chunkBlocks:  chunkBlocks,
		avgBlockTime: avgBlockTime,
		safetyBuffer: safetyBuffer,
		now:          time.Now,
	}, nil
}

// FetchLogs scans [estimated-from, latest] in chunks sized to stay under
// provider limits. Any chunk failure aborts the whole fetch: a partial log
// set would make reconciliation falsely report missing records.
func (f *RPCFetcher) FetchLogs(ctx context.Context, contractAddress, eventTopic string, since time.Time) ([]Record, error) {
	latest, err := f.client.BlockNumber(ctx)
	if err != nil {
		return nil, upstream.New(upstream.CategoryOutage, "rpc-node", "fetch latest block number", err)
	}

	fromBlock := f.estimateFromBlock(since, latest)
	chunks := splitRange(fromBlock, latest, f.chunkBlocks)

	address := common.HexToAddress(contractAddress)
	topic := common.HexToHash(eventTopic)

	results := make([][]types.Log, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunks)

	for i, chunk := range chunks {
		g.Go(func() error {
			logs, err := f.client.FilterLogs(gctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(chunk.from),
				ToBlock:   new(big.Int).SetUint64(chunk.to),
				Addresses: []common.Address{address},
				Topics:    [][]common.Hash{{topic}},
			})
			if err != nil {
				return classifyRPCError(chunk, err)
			}
			results[i] = logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []Record
	for _, logs := range results {
		for _, l := range logs {
			record, err := decodeLog(l, "rpc-node")
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
	}
	sortRecords(records)
	return records, nil
}

// estimateFromBlock walks back from the latest block by the elapsed time
// since the owning entity was created, divided by the average block time,
// plus a safety buffer. This avoids scanning from genesis without risking a
// missed early event.
func (f *RPCFetcher) estimateFromBlock(since time.Time, latest uint64) uint64 {
	if since.IsZero() {
		return 0
	}
	elapsed := f.now().Sub(since)
	if elapsed <= 0 {
		elapsed = 0
	}
	blocksAgo := uint64(elapsed/f.avgBlockTime) + f.safetyBuffer
	if blocksAgo >= latest {
		return 0
	}
	return latest - blocksAgo
}

type blockRange struct {
	from, to uint64
}

func splitRange(from, to, chunk uint64) []blockRange {
	var out []blockRange
	for start := from; start <= to; start += chunk {
		end := start + chunk - 1
		if end > to {
			end = to
		}
		out = append(out, blockRange{from: start, to: end})
		if end == ^uint64(0) {
			break
		}
	}
	return out
}

func classifyRPCError(chunk blockRange, err error) error {
	msg := fmt.Sprintf("getLogs [%d, %d]", chunk.from, chunk.to)
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "too many requests") || strings.Contains(lower, "rate limit"):
		return upstream.New(upstream.CategoryRateLimited, "rpc-node", msg, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return upstream.New(upstream.CategoryTimeout, "rpc-node", msg, err)
	default:
		return upstream.New(upstream.CategoryOutage, "rpc-node", msg, err)
	}
}

var _ Fetcher = (*RPCFetcher)(nil)
