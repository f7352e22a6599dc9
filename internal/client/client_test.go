package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
)

func TestClient_SignsRequests(t *testing.T) {
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.NewSignerFromKey(pk)
	verifier := crypto.NewVerifier(time.Minute)

	var recovered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		addr, verr := verifier.Verify(r.Context(), crypto.SignedRequest{
			Method:    r.Method,
			Path:      r.URL.RequestURI(),
			Body:      body,
			Address:   r.Header.Get(crypto.HeaderAddress),
			Timestamp: r.Header.Get(crypto.HeaderTimestamp),
			Nonce:     r.Header.Get(crypto.HeaderNonce),
			Signature: r.Header.Get(crypto.HeaderSignature),
		})
		if verr != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		recovered = addr
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"competition_id":"c1","chosen_asset":"BTC","amount":100}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", signer)
	bet, err := c.PlaceBet(context.Background(), "c1", "BTC", 100)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
	assert.Equal(t, "BTC", bet.ChosenAsset)
	assert.Equal(t, uint64(100), bet.Amount)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/competitions/gone" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found","code":"not_found"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	assert.Empty(t, c.Address())

	_, err := c.Competition(context.Background(), "gone")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)

	_, err = c.Balance(context.Background(), "0x01")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream down", apiErr.Message)
}
