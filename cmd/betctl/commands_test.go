package main

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func testKey(t *testing.T) (string, string) {
	t.Helper()
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(ethcrypto.FromECDSA(pk)), crypto.NewSignerFromKey(pk).Address()
}

func TestAddress_RawKey(t *testing.T) {
	key, addr := testKey(t)
	t.Setenv("TOKENBET_WALLET_PRIVATE_KEY", key)

	out, err := run(t, "address")
	require.NoError(t, err)
	assert.Equal(t, addr, strings.TrimSpace(out))
}

func TestKeygen_EncryptedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	out, err := run(t, "keygen", "--out", path, "--password", "hunter2")
	require.NoError(t, err)
	require.Contains(t, out, "address: 0x")
	addr := strings.TrimSpace(strings.TrimPrefix(strings.SplitN(out, "\n", 2)[0], "address:"))

	t.Setenv("TOKENBET_WALLET_PRIVATE_KEY", "")
	t.Setenv("TOKENBET_WALLET_ENCRYPTED_KEY_PATH", path)
	t.Setenv("TOKENBET_WALLET_KEY_PASSWORD", "hunter2")
	out, err = run(t, "address")
	require.NoError(t, err)
	assert.Equal(t, addr, strings.TrimSpace(out))

	_, err = run(t, "keygen", "--out", path)
	assert.Error(t, err)
}

func TestSign_PrintsHeaders(t *testing.T) {
	key, addr := testKey(t)
	t.Setenv("TOKENBET_WALLET_PRIVATE_KEY", key)

	out, err := run(t, "sign", "post", "/api/competitions/c1/claim")
	require.NoError(t, err)
	assert.Contains(t, out, crypto.HeaderAddress+": "+addr)
	assert.Contains(t, out, crypto.HeaderSignature+": 0x")
}

func TestCall_SendsSignedRequest(t *testing.T) {
	key, addr := testKey(t)
	t.Setenv("TOKENBET_WALLET_PRIVATE_KEY", key)

	var gotAddr, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddr = r.Header.Get(crypto.HeaderAddress)
		gotMethod = r.Method
		_, _ = w.Write([]byte(`{"paused":true}`))
	}))
	defer srv.Close()

	out, err := run(t, "--api", srv.URL, "call", "POST", "/api/platform/pause", `{"paused":true}`)
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, out, `"paused": true`)
}
