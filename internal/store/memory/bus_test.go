package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, err := b.Subscribe(ctx, domain.EventsChannel)
	require.NoError(t, err)
	comps, err := b.Subscribe(ctx, "competition:*")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, domain.EventsChannel, []byte("e1")))
	require.NoError(t, b.Publish(ctx, domain.CompetitionChannel("c1"), []byte("c1")))
	require.NoError(t, b.Publish(ctx, "other", []byte("x")))

	assert.Equal(t, "e1", string(<-all))
	assert.Equal(t, "c1", string(<-comps))
	select {
	case m := <-all:
		t.Fatalf("unexpected message %q", m)
	default:
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-all
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestBus_Stream(t *testing.T) {
	b := NewBus()
	ctx := context.Background()

	msgs, err := b.StreamRead(ctx, domain.EventsStream, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, b.StreamAppend(ctx, domain.EventsStream, []byte(p)))
	}
	msgs, err = b.StreamRead(ctx, domain.EventsStream, "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Payload))

	rest, err := b.StreamRead(ctx, domain.EventsStream, msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", string(rest[0].Payload))
}
