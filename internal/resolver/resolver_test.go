package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestra/internal/domain"
	"attestra/internal/upstream"
)

func TestEthrResolution(t *testing.T) {
	r := New("", nil)

	t.Run("derives the wallet from the method-specific id", func(t *testing.T) {
		doc, err := r.Resolve(context.Background(), "did:ethr:0x1111111111111111111111111111111111111111")
		require.NoError(t, err)

		address, err := doc.WalletAddress()
		require.NoError(t, err)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", address)
	})

	t.Run("handles a chain prefix", func(t *testing.T) {
		doc, err := r.Resolve(context.Background(), "did:ethr:0x5:0x1111111111111111111111111111111111111111")
		require.NoError(t, err)

		address, err := doc.WalletAddress()
		require.NoError(t, err)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", address)
	})

	t.Run("rejects an id that is not an address", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "did:ethr:bob")
		require.Error(t, err)
		assert.Equal(t, upstream.CategoryNotFound, upstream.CategoryOf(err))
	})

	t.Run("non-ethr methods need a remote resolver", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "did:web:example.com")
		require.Error(t, err)
		assert.False(t, upstream.IsRetryable(err))
	})
}

func TestRemoteResolution(t *testing.T) {
	const did = "did:web:example.com"

	t.Run("decodes the resolver document", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/1.0/identifiers/"+did, r.URL.Path)
			fmt.Fprintf(w, `{"didDocument": {
				"id": %q,
				"verificationMethod": [{
					"id": "%s#controller",
					"type": "EcdsaSecp256k1RecoveryMethod2020",
					"controller": %q,
					"blockchainAccountId": "eip155:1:0x2222222222222222222222222222222222222222"
				}]
			}}`, did, did, did)
		}))
		defer srv.Close()

		doc, err := New(srv.URL, srv.Client()).Resolve(context.Background(), did)
		require.NoError(t, err)

		assert.Equal(t, domain.DID(did), doc.ID)
		address, err := doc.WalletAddress()
		require.NoError(t, err)
		assert.Equal(t, "0x2222222222222222222222222222222222222222", address)
	})

	t.Run("404 is not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := New(srv.URL, srv.Client()).Resolve(context.Background(), did)
		require.Error(t, err)
		assert.Equal(t, upstream.CategoryNotFound, upstream.CategoryOf(err))
		assert.False(t, upstream.IsRetryable(err))
	})

	t.Run("429 is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := New(srv.URL, srv.Client()).Resolve(context.Background(), did)
		require.Error(t, err)
		assert.True(t, upstream.IsRetryable(err))
	})

	t.Run("empty document is bad data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"didDocument": {}}`)
		}))
		defer srv.Close()

		_, err := New(srv.URL, srv.Client()).Resolve(context.Background(), did)
		require.Error(t, err)
		assert.Equal(t, upstream.CategoryBadData, upstream.CategoryOf(err))
	})
}
