package chainlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"attestra/internal/upstream"
)

// IndexedFetcher queries a log-index service (etherscan-style getLogs API)
// in a single filtered call, with no caller-side pagination.
type IndexedFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewIndexedFetcher constructs an indexed log fetcher. URL and API key are
// mandatory: missing configuration fails closed at startup rather than at
// the first reconciliation run.
func NewIndexedFetcher(baseURL, apiKey string, client *http.Client) (*IndexedFetcher, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("log-index URL is not configured")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("log-index API key is not configured")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &IndexedFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}, nil
}

type indexedLog struct {
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
}

type indexedResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (f *IndexedFetcher) FetchLogs(ctx context.Context, contractAddress, eventTopic string, _ time.Time) ([]Record, error) {
	query := url.Values{}
	query.Set("module", "logs")
	query.Set("action", "getLogs")
	query.Set("address", contractAddress)
	query.Set("topic0", eventTopic)
	query.Set("apikey", f.apiKey)

	endpoint := f.baseURL + "/api?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build log-index request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, upstream.New(upstream.CategoryTimeout, "log-index", "log query timed out", err)
		}
		return nil, upstream.New(upstream.CategoryOutage, "log-index", "log-index unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusTooManyRequests:
		return nil, upstream.New(upstream.CategoryRateLimited, "log-index", "log-index rate limited", nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, upstream.New(upstream.CategoryAuthentication, "log-index", "log-index rejected the API key", nil)
	default:
		return nil, upstream.New(upstream.CategoryOutage, "log-index",
			fmt.Sprintf("log-index returned status %d", resp.StatusCode), nil)
	}

	var body indexedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, upstream.New(upstream.CategoryBadData, "log-index", "malformed log-index response", err)
	}

	// The API reports throttling inside a 200 body.
	if body.Status == "0" && strings.Contains(strings.ToLower(body.Message), "rate limit") {
		return nil, upstream.New(upstream.CategoryRateLimited, "log-index", "log-index rate limited", nil)
	}
	// "No records found" is a valid empty result, also carried as status 0.
	if body.Status == "0" && strings.Contains(strings.ToLower(body.Message), "no records") {
		return nil, nil
	}

	var rawLogs []indexedLog
	if err := json.Unmarshal(body.Result, &rawLogs); err != nil {
		return nil, upstream.New(upstream.CategoryBadData, "log-index", "malformed log-index result", err)
	}

	records := make([]Record, 0, len(rawLogs))
	for _, raw := range rawLogs {
		l, err := raw.toLog()
		if err != nil {
			return nil, upstream.New(upstream.CategoryBadData, "log-index", "malformed log entry", err)
		}
		record, err := decodeLog(l, "log-index")
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sortRecords(records)
	return records, nil
}

func (raw indexedLog) toLog() (types.Log, error) {
	blockNumber, err := parseHexUint(raw.BlockNumber)
	if err != nil {
		return types.Log{}, fmt.Errorf("block number %q: %w", raw.BlockNumber, err)
	}
	logIndex, err := parseHexUint(raw.LogIndex)
	if err != nil {
		return types.Log{}, fmt.Errorf("log index %q: %w", raw.LogIndex, err)
	}

	topics := make([]common.Hash, len(raw.Topics))
	for i, t := range raw.Topics {
		topics[i] = common.HexToHash(t)
	}

	return types.Log{
		Topics:      topics,
		Data:        common.FromHex(raw.Data),
		BlockNumber: blockNumber,
		TxHash:      common.HexToHash(raw.TransactionHash),
		Index:       uint(logIndex),
	}, nil
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

var _ Fetcher = (*IndexedFetcher)(nil)
