package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestra/internal/challenge"
	"attestra/internal/upstream"
	"attestra/internal/vault"
	"attestra/internal/verification"
	"attestra/pkg/platform/audit"
	"attestra/pkg/platform/sentinel"
)

type fakeService struct {
	session   *challenge.Session
	createErr error
	bindErr   error
	result    verification.Result
	verifyErr error

	boundToken  string
	boundRaw    []byte
	verifiedRaw []byte
}

func (f *fakeService) CreateChallenge(context.Context) (*challenge.Session, error) {
	return f.session, f.createErr
}

func (f *fakeService) BindPresentation(_ context.Context, token string, raw []byte) error {
	f.boundToken = token
	f.boundRaw = raw
	return f.bindErr
}

func (f *fakeService) VerifyPresentation(_ context.Context, _ string, rawVP []byte) (verification.Result, error) {
	f.verifiedRaw = rawVP
	return f.result, f.verifyErr
}

func newRouter(svc Service, sink *audit.MemoryStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, audit.NewPublisher(sink), logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateChallenge(t *testing.T) {
	expires := time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)
	sink := audit.NewMemoryStore()
	router := newRouter(&fakeService{session: &challenge.Session{
		Token:     "tok-1",
		Nonce:     "0xabcdef",
		ExpiresAt: expires,
	}}, sink)

	rec := postJSON(t, router, "/presentations/challenge", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ChallengeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "0xabcdef", resp.Nonce)
	assert.True(t, resp.ExpiresAt.Equal(expires))

	events := sink.List()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionChallengeIssued, events[0].Action)
}

func TestBindPresentation(t *testing.T) {
	t.Run("binds the raw presentation", func(t *testing.T) {
		svc := &fakeService{}
		router := newRouter(svc, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/tok-1", BindRequest{
			Presentation: json.RawMessage(`{"holder":"did:ethr:0xabc"}`),
		})

		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "tok-1", svc.boundToken)
		assert.JSONEq(t, `{"holder":"did:ethr:0xabc"}`, string(svc.boundRaw))
	})

	t.Run("unknown token maps to 404", func(t *testing.T) {
		svc := &fakeService{bindErr: sentinel.ErrNotFound}
		router := newRouter(svc, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/tok-x", BindRequest{
			Presentation: json.RawMessage(`{}`),
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("used session maps to 409", func(t *testing.T) {
		svc := &fakeService{bindErr: sentinel.ErrAlreadyUsed}
		router := newRouter(svc, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/tok-1", BindRequest{
			Presentation: json.RawMessage(`{}`),
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing presentation is a 400", func(t *testing.T) {
		router := newRouter(&fakeService{}, audit.NewMemoryStore())
		rec := postJSON(t, router, "/presentations/tok-1", BindRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerify(t *testing.T) {
	t.Run("valid result in 200 envelope", func(t *testing.T) {
		sink := audit.NewMemoryStore()
		router := newRouter(&fakeService{result: verification.Result{
			Valid:    true,
			Identity: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Holder:   "did:ethr:0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Checks: verification.CheckVector{
				Structure: true, HolderSignature: true, IssuerSignature: true,
				ValidityWindow: true, OnChainStatus: true, SubjectBinding: true,
			},
		}}, sink)

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{Token: "tok-1"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp VerifyResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Valid)
		assert.Empty(t, resp.Reason)
		assert.True(t, resp.Checks.SubjectBinding)

		events := sink.List()
		require.Len(t, events, 1)
		assert.Equal(t, "valid", events[0].Outcome)
	})

	t.Run("business failure also rides a 200", func(t *testing.T) {
		router := newRouter(&fakeService{result: verification.Result{
			Valid:  false,
			Reason: verification.ReasonHolderSignature,
			Checks: verification.CheckVector{Structure: true},
		}}, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{Token: "tok-1"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp VerifyResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Valid)
		assert.Equal(t, verification.ReasonHolderSignature, resp.Reason)
	})

	t.Run("collaborator outage is a 502", func(t *testing.T) {
		router := newRouter(&fakeService{
			verifyErr: upstream.New(upstream.CategoryOutage, "resolver", "unreachable", nil),
		}, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{Token: "tok-1"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("missing token is a 400", func(t *testing.T) {
		router := newRouter(&fakeService{}, audit.NewMemoryStore())
		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifySealedPresentation(t *testing.T) {
	const presentation = `{"holder":"did:ethr:0xabc"}`
	sealed, err := vault.Encrypt(presentation, "4815")
	require.NoError(t, err)

	t.Run("sealed presentation is opened before verification", func(t *testing.T) {
		svc := &fakeService{result: verification.Result{Valid: true}}
		router := newRouter(svc, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{
			Token:              "tok-1",
			SealedPresentation: sealed,
			Secret:             "4815",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, presentation, string(svc.verifiedRaw))
	})

	t.Run("wrong secret is a 401", func(t *testing.T) {
		svc := &fakeService{}
		router := newRouter(svc, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{
			Token:              "tok-1",
			SealedPresentation: sealed,
			Secret:             "0000",
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, svc.verifiedRaw, "nothing reaches the pipeline on a rejected secret")
	})

	t.Run("sealed without a secret is a 400", func(t *testing.T) {
		router := newRouter(&fakeService{}, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{
			Token:              "tok-1",
			SealedPresentation: sealed,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("truncated blob is a 400", func(t *testing.T) {
		router := newRouter(&fakeService{}, audit.NewMemoryStore())

		rec := postJSON(t, router, "/presentations/verify", VerifyRequest{
			Token:              "tok-1",
			SealedPresentation: sealed[:8],
			Secret:             "4815",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
