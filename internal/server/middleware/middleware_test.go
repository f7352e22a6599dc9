package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestSignatureAuth_SetsCaller(t *testing.T) {
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.NewSignerFromKey(pk)

	var gotCaller string
	var gotBody []byte
	h := SignatureAuth(crypto.NewVerifier(time.Minute), discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller, _ = Caller(r.Context())
		gotBody, _ = io.ReadAll(r.Body)
	}))

	body := []byte(`{"asset":"BTC"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/competitions/x/bets", bytes.NewReader(body))
	headers, err := signer.AuthHeaders(http.MethodPost, "/api/competitions/x/bets", body)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, signer.Address(), gotCaller)
	assert.Equal(t, body, gotBody)
}

func TestSignatureAuth_RejectsUnsigned(t *testing.T) {
	h := SignatureAuth(crypto.NewVerifier(time.Minute), discard)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authentication headers")
}

type verifierFunc func(context.Context, crypto.SignedRequest) (string, error)

func (f verifierFunc) Verify(ctx context.Context, req crypto.SignedRequest) (string, error) {
	return f(ctx, req)
}

func TestSignatureAuth_StoreOutageIsUnavailable(t *testing.T) {
	v := verifierFunc(func(context.Context, crypto.SignedRequest) (string, error) {
		return "", errors.New("crypto: record nonce: dial tcp: connection refused")
	})
	called := false
	h := SignatureAuth(v, discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ledger/deposit", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_unavailable")
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.False(t, called)
}

func TestAPIKey(t *testing.T) {
	h := APIKey("k")(http.HandlerFunc(okHandler))

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header", "X-API-Key", "k", http.StatusOK},
		{"bearer", "Authorization", "Bearer k", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	APIKey("")(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func (s *stubLimiter) Wait(context.Context, string) error { return nil }

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{}
	h := RateLimit(limiter, 10, 2*time.Second, discard)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, []string{"api:203.0.113.9"}, limiter.keys)

	limiter.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogging_RecordsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		noteCaller(r, "0xabc")
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Logging(logger)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?y=1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"caller":"0xabc"`)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"query":"y=1"`)
}
