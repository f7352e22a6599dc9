package crypto

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var ctx = context.Background()

func signedRequest(t *testing.T, s *Signer, method, path string, body []byte) SignedRequest {
	t.Helper()
	h, err := s.AuthHeaders(method, path, body)
	require.NoError(t, err)
	return SignedRequest{
		Method:    method,
		Path:      path,
		Body:      body,
		Address:   h[HeaderAddress],
		Timestamp: h[HeaderTimestamp],
		Nonce:     h[HeaderNonce],
		Signature: h[HeaderSignature],
	}
}

func TestVerifier_AcceptsValidSignature(t *testing.T) {
	s, err := NewSigner("0x" + testKeyHex)
	require.NoError(t, err)

	v := NewVerifier(time.Minute)
	req := signedRequest(t, s, http.MethodPost, "/api/competitions", []byte(`{"id":"c1"}`))

	addr, err := v.Verify(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)
}

func TestVerifier_RejectsTamperedBody(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	v := NewVerifier(time.Minute)
	req := signedRequest(t, s, http.MethodPost, "/api/competitions/c1/bets", []byte(`{"asset":"SOL"}`))
	req.Body = []byte(`{"asset":"BONK"}`)

	_, err = v.Verify(ctx, req)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifier_RejectsImpersonation(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)
	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	v := NewVerifier(time.Minute)
	req := signedRequest(t, s, http.MethodPost, "/api/platform/pause", []byte(`{"paused":true}`))
	req.Address = ethcrypto.PubkeyToAddress(other.PublicKey).Hex()

	_, err = v.Verify(ctx, req)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifier_RejectsReplay(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	v := NewVerifier(time.Minute)
	req := signedRequest(t, s, http.MethodPost, "/api/competitions/c1/claim", nil)

	_, err = v.Verify(ctx, req)
	require.NoError(t, err)

	_, err = v.Verify(ctx, req)
	assert.ErrorIs(t, err, ErrReplayedRequest)
}

func TestVerifier_RejectsStaleTimestamp(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(-10 * time.Minute) }

	v := NewVerifier(time.Minute)
	req := signedRequest(t, s, http.MethodPost, "/api/competitions/c1/claim", nil)

	_, err = v.Verify(ctx, req)
	assert.ErrorIs(t, err, ErrStaleRequest)
}

func TestVerifier_MissingHeaders(t *testing.T) {
	v := NewVerifier(time.Minute)
	_, err := v.Verify(ctx, SignedRequest{Method: http.MethodPost, Path: "/x"})
	assert.ErrorIs(t, err, ErrMissingAuth)
}

func TestEscrowAddress_DeterministicAndDistinct(t *testing.T) {
	a1 := EscrowAddress("btc-vs-eth-w1")
	a2 := EscrowAddress("btc-vs-eth-w1")
	b := EscrowAddress("btc-vs-eth-w2")

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)

	norm, err := NormalizeAddress(a1)
	require.NoError(t, err)
	assert.Equal(t, a1, norm)
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress("0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1")
	require.NoError(t, err)
	assert.Equal(t, "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1", addr)

	_, err = NormalizeAddress("not-an-address")
	assert.True(t, errors.Is(err, domain.ErrInvalidAddress))

	_, err = NormalizeAddress("0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestReplayGuard_Expiry(t *testing.T) {
	g := NewReplayGuard()
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	claim := func(key string) bool {
		ok, err := g.Claim(ctx, key, time.Second)
		require.NoError(t, err)
		return ok
	}
	assert.True(t, claim("a"))
	assert.False(t, claim("a"))

	now = now.Add(2 * time.Second)
	assert.True(t, claim("a"))

	now = now.Add(2 * time.Second)
	g.Cleanup()
	assert.Equal(t, 0, g.Len())
}

func TestVerifier_SharedNonceStoreRejectsReplayOnOtherReplica(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	shared := NewReplayGuard()
	first := NewVerifier(time.Minute).WithNonceStore(shared)
	second := NewVerifier(time.Minute).WithNonceStore(shared)
	req := signedRequest(t, s, http.MethodPost, "/api/ledger/deposit", []byte(`{"amount":5}`))

	_, err = first.Verify(ctx, req)
	require.NoError(t, err)

	_, err = second.Verify(ctx, req)
	assert.ErrorIs(t, err, ErrReplayedRequest)
}

type failingNonces struct{}

func (failingNonces) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestVerifier_NonceStoreFailureIsNotUnauthorized(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	v := NewVerifier(time.Minute).WithNonceStore(failingNonces{})
	_, err = v.Verify(ctx, signedRequest(t, s, http.MethodPost, "/api/competitions/c1/claim", nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestKeyFile_RoundTrip(t *testing.T) {
	pk, err := ethcrypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	data, err := EncryptKey(pk, "correct horse")
	require.NoError(t, err)

	got, err := DecryptKey(data, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.FromECDSA(pk), ethcrypto.FromECDSA(got))

	_, err = DecryptKey(data, "wrong")
	assert.Error(t, err)
}

func TestLoadKey_FromFile(t *testing.T) {
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	path := t.TempDir() + "/authority.json"
	require.NoError(t, WriteKeyFile(path, pk, "pw"))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t,
		ethcrypto.PubkeyToAddress(pk.PublicKey),
		ethcrypto.PubkeyToAddress(got.PublicKey),
	)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
}
