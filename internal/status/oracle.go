// Package status reports the on-chain lifecycle state of a credential. State
// lives on-chain, not on the credential, so the oracle is queried fresh for
// every verification attempt.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"attestra/internal/upstream"
)

// CredentialStatus is the on-chain lifecycle state of a credential.
type CredentialStatus string

const (
	StatusActive    CredentialStatus = "ACTIVE"
	StatusSuspended CredentialStatus = "SUSPENDED"
	StatusRevoked   CredentialStatus = "REVOKED"
	StatusUnknown   CredentialStatus = "UNKNOWN"
)

// Oracle reports credential status.
type Oracle interface {
	GetCredentialStatus(ctx context.Context, credentialID string) (CredentialStatus, error)
	IsActiveOnChain(ctx context.Context, credentialID string) (bool, error)
}

// HTTPOracle queries a status-index service:
// GET {base}/credentials/{id}/status.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOracle constructs an oracle client. baseURL is mandatory.
func NewHTTPOracle(baseURL string, client *http.Client) (*HTTPOracle, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("status oracle URL is not configured")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPOracle{baseURL: strings.TrimRight(baseURL, "/"), client: client}, nil
}

func (o *HTTPOracle) GetCredentialStatus(ctx context.Context, credentialID string) (CredentialStatus, error) {
	endpoint := fmt.Sprintf("%s/credentials/%s/status", o.baseURL, url.PathEscape(credentialID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusUnknown, fmt.Errorf("build status request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusUnknown, upstream.New(upstream.CategoryTimeout, "status-oracle", "status lookup timed out", err)
		}
		return StatusUnknown, upstream.New(upstream.CategoryOutage, "status-oracle", "oracle unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		// A credential the chain has never seen is UNKNOWN, not an error;
		// the verification pipeline treats it as inactive.
		return StatusUnknown, nil
	case http.StatusTooManyRequests:
		return StatusUnknown, upstream.New(upstream.CategoryRateLimited, "status-oracle", "oracle rate limited", nil)
	default:
		return StatusUnknown, upstream.New(upstream.CategoryOutage, "status-oracle",
			fmt.Sprintf("oracle returned status %d", resp.StatusCode), nil)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StatusUnknown, upstream.New(upstream.CategoryBadData, "status-oracle", "malformed oracle response", err)
	}

	switch s := CredentialStatus(strings.ToUpper(body.Status)); s {
	case StatusActive, StatusSuspended, StatusRevoked:
		return s, nil
	default:
		return StatusUnknown, nil
	}
}

func (o *HTTPOracle) IsActiveOnChain(ctx context.Context, credentialID string) (bool, error) {
	s, err := o.GetCredentialStatus(ctx, credentialID)
	if err != nil {
		return false, err
	}
	return s == StatusActive, nil
}
