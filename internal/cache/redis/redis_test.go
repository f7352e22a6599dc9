package redis

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestLockManager(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "competition:btc-eth", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("tokenbet:lock:competition:btc-eth"))

	_, err = lm.Acquire(ctx, "competition:btc-eth", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := lm.Acquire(ctx, "competition:sol-eth", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, mr.Exists("tokenbet:lock:competition:btc-eth"))

	again, err := lm.Acquire(ctx, "competition:btc-eth", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLockManager_ExpiredLockIsNotReleasedByStaleHolder(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "platform", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lm.Acquire(ctx, "platform", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("tokenbet:lock:platform"), "stale unlock must not drop the new holder's lock")
	fresh()
	assert.False(t, mr.Exists("tokenbet:lock:platform"))
}

func TestCompetitionCache(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCompetitionCache(c, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "btc-eth")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	comp := domain.Competition{
		ID:        "btc-eth",
		AssetA:    "BTC",
		AssetB:    "ETH",
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:    domain.CompetitionStatusActive,
		PoolTotal: 300_000_000,
		PoolA:     200_000_000,
		PoolB:     100_000_000,
	}
	require.NoError(t, cache.Set(ctx, comp))
	assert.Equal(t, time.Minute, mr.TTL("tokenbet:competition:btc-eth"))

	got, err := cache.Get(ctx, "btc-eth")
	require.NoError(t, err)
	assert.Equal(t, comp, got)

	require.NoError(t, cache.Invalidate(ctx, "btc-eth"))
	_, err = cache.Get(ctx, "btc-eth")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, cache.Set(ctx, comp))
	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, "btc-eth")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimiter_Allow(t *testing.T) {
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "ip:10.0.0.1", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "ip:10.0.0.1", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "ip:10.0.0.2", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	now = now.Add(1100 * time.Millisecond)
	ok, err = rl.Allow(ctx, "ip:10.0.0.1", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "window slid past the earlier requests")

	ok, err = rl.Allow(ctx, "ip:10.0.0.3", 0, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c).WithWaitBudget(1, time.Hour)

	require.NoError(t, rl.Wait(context.Background(), "claims"))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx, "claims")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignalBus_Stream(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c)
	ctx := context.Background()

	msgs, err := bus.StreamRead(ctx, domain.EventsStream, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, bus.StreamAppend(ctx, domain.EventsStream, []byte(`{"type":"bet_placed"}`)))
	require.NoError(t, bus.StreamAppend(ctx, domain.EventsStream, []byte(`{"type":"winnings_claimed"}`)))

	msgs, err = bus.StreamRead(ctx, domain.EventsStream, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"type":"bet_placed"}`, string(msgs[0].Payload))

	rest, err := bus.StreamRead(ctx, domain.EventsStream, msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.JSONEq(t, `{"type":"winnings_claimed"}`, string(rest[0].Payload))
}

func TestSignalBus_PublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exact, err := bus.Subscribe(ctx, domain.EventsChannel)
	require.NoError(t, err)
	pattern, err := bus.Subscribe(ctx, "competition:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.EventsChannel, []byte("a")))
	require.NoError(t, bus.Publish(ctx, domain.CompetitionChannel("btc-eth"), []byte("b")))

	select {
	case got := <-exact:
		assert.Equal(t, "a", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message on exact subscription")
	}
	select {
	case got := <-pattern:
		assert.Equal(t, "b", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message on pattern subscription")
	}

	cancel()
	select {
	case _, ok := <-exact:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed on cancel")
	}
}

func TestNonceStore_Claim(t *testing.T) {
	c, mr := newTestClient(t)
	ns := NewNonceStore(c)
	ctx := context.Background()

	ok, err := ns.Claim(ctx, "0xabc:n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("tokenbet:nonce:0xabc:n1"))

	ok, err = ns.Claim(ctx, "0xabc:n1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = ns.Claim(ctx, "0xabc:n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonceStore_ReplayRejectedAcrossReplicas(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.NewSignerFromKey(pk)
	body := []byte(`{"account":"0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1","amount":5}`)
	h, err := signer.AuthHeaders(http.MethodPost, "/api/ledger/deposit", body)
	require.NoError(t, err)
	req := crypto.SignedRequest{
		Method:    http.MethodPost,
		Path:      "/api/ledger/deposit",
		Body:      body,
		Address:   h[crypto.HeaderAddress],
		Timestamp: h[crypto.HeaderTimestamp],
		Nonce:     h[crypto.HeaderNonce],
		Signature: h[crypto.HeaderSignature],
	}

	replica1 := crypto.NewVerifier(time.Minute).WithNonceStore(NewNonceStore(c))
	replica2 := crypto.NewVerifier(time.Minute).WithNonceStore(NewNonceStore(c))

	addr, err := replica1.Verify(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)

	_, err = replica2.Verify(ctx, req)
	assert.ErrorIs(t, err, crypto.ErrReplayedRequest)

	restarted := crypto.NewVerifier(time.Minute).WithNonceStore(NewNonceStore(c))
	_, err = restarted.Verify(ctx, req)
	assert.ErrorIs(t, err, crypto.ErrReplayedRequest)
}

func TestNonceStore_PropagatesRedisError(t *testing.T) {
	c, mr := newTestClient(t)
	mr.SetError("LOADING dataset")

	_, err := NewNonceStore(c).Claim(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
