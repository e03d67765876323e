// Package resolver maps DID strings to DID documents. Documents are fetched
// fresh per verification attempt and never cached: the wallet behind a DID
// can rotate between requests.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"attestra/internal/domain"
	"attestra/internal/upstream"
)

// Resolver resolves a DID to an immutable DID document snapshot.
type Resolver interface {
	Resolve(ctx context.Context, did domain.DID) (domain.DIDDocument, error)
}

// New builds the production resolver: did:ethr is derived locally, everything
// else goes to the remote universal resolver. An empty remote URL is allowed;
// resolution of non-ethr methods then fails with a clear error.
func New(remoteURL string, client *http.Client) Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &multiResolver{
		ethr:   EthrResolver{},
		remote: &HTTPResolver{baseURL: strings.TrimRight(remoteURL, "/"), client: client},
	}
}

type multiResolver struct {
	ethr   EthrResolver
	remote *HTTPResolver
}

func (r *multiResolver) Resolve(ctx context.Context, did domain.DID) (domain.DIDDocument, error) {
	if did.Method() == "ethr" {
		return r.ethr.Resolve(ctx, did)
	}
	if r.remote.baseURL == "" {
		return domain.DIDDocument{}, upstream.New(upstream.CategoryAuthentication, "did-resolver",
			fmt.Sprintf("no resolver configured for method %q", did.Method()), nil)
	}
	return r.remote.Resolve(ctx, did)
}

// EthrResolver derives the document locally: the wallet address is embedded
// in the method-specific id (did:ethr:[<chain>:]0x...).
type EthrResolver struct{}

func (EthrResolver) Resolve(_ context.Context, did domain.DID) (domain.DIDDocument, error) {
	msid := did.MethodSpecificID()
	address := msid
	if idx := strings.LastIndexByte(msid, ':'); idx >= 0 {
		address = msid[idx+1:]
	}
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return domain.DIDDocument{}, upstream.New(upstream.CategoryNotFound, "did-resolver",
			fmt.Sprintf("did %s carries no wallet address", did), nil)
	}
	return domain.DIDDocument{
		ID: did,
		VerificationMethod: []domain.VerificationMethod{{
			ID:                  did.String() + "#controller",
			Type:                "EcdsaSecp256k1RecoveryMethod2020",
			Controller:          did,
			BlockchainAccountID: "eip155:1:" + address,
		}},
	}, nil
}

// HTTPResolver queries a universal-resolver style endpoint:
// GET {base}/1.0/identifiers/{did}.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func (r *HTTPResolver) Resolve(ctx context.Context, did domain.DID) (domain.DIDDocument, error) {
	endpoint := fmt.Sprintf("%s/1.0/identifiers/%s", r.baseURL, url.PathEscape(did.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.DIDDocument{}, fmt.Errorf("build resolver request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.DIDDocument{}, upstream.New(upstream.CategoryTimeout, "did-resolver", "resolution timed out", err)
		}
		return domain.DIDDocument{}, upstream.New(upstream.CategoryOutage, "did-resolver", "resolver unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return domain.DIDDocument{}, upstream.New(upstream.CategoryNotFound, "did-resolver",
			fmt.Sprintf("did %s not found", did), nil)
	case http.StatusTooManyRequests:
		return domain.DIDDocument{}, upstream.New(upstream.CategoryRateLimited, "did-resolver", "resolver rate limited", nil)
	default:
		return domain.DIDDocument{}, upstream.New(upstream.CategoryOutage, "did-resolver",
			fmt.Sprintf("resolver returned status %d", resp.StatusCode), nil)
	}

	var body struct {
		DIDDocument domain.DIDDocument `json:"didDocument"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.DIDDocument{}, upstream.New(upstream.CategoryBadData, "did-resolver", "malformed resolver response", err)
	}
	if body.DIDDocument.ID == "" {
		return domain.DIDDocument{}, upstream.New(upstream.CategoryBadData, "did-resolver", "resolver response carries no document", nil)
	}
	return body.DIDDocument, nil
}
