package status

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestra/internal/upstream"
)

const credentialID = "urn:uuid:3b4e9c8a-6a55-4f39-9aeb-0f720f15a911"

func newOracle(t *testing.T, handler http.HandlerFunc) *HTTPOracle {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	oracle, err := NewHTTPOracle(srv.URL, srv.Client())
	require.NoError(t, err)
	return oracle
}

func TestGetCredentialStatus(t *testing.T) {
	t.Run("reports the on-chain state", func(t *testing.T) {
		oracle := newOracle(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/credentials/")
			fmt.Fprint(w, `{"status":"ACTIVE"}`)
		})

		got, err := oracle.GetCredentialStatus(context.Background(), credentialID)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, got)
	})

	t.Run("unknown credential is UNKNOWN, not an error", func(t *testing.T) {
		oracle := newOracle(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		got, err := oracle.GetCredentialStatus(context.Background(), credentialID)
		require.NoError(t, err)
		assert.Equal(t, StatusUnknown, got)
	})

	t.Run("throttling is retryable", func(t *testing.T) {
		oracle := newOracle(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := oracle.GetCredentialStatus(context.Background(), credentialID)
		require.Error(t, err)
		assert.True(t, upstream.IsRetryable(err))
	})

	t.Run("missing URL fails closed", func(t *testing.T) {
		_, err := NewHTTPOracle("", nil)
		require.Error(t, err)
	})
}

func TestIsActiveOnChain(t *testing.T) {
	states := map[string]bool{
		"ACTIVE":    true,
		"SUSPENDED": false,
		"REVOKED":   false,
	}
	for state, want := range states {
		t.Run(state, func(t *testing.T) {
			oracle := newOracle(t, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprintf(w, `{"status":%q}`, state)
			})

			active, err := oracle.IsActiveOnChain(context.Background(), credentialID)
			require.NoError(t, err)
			assert.Equal(t, want, active)
		})
	}
}
