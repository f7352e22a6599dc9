package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestFormatAmount(t *testing.T) {
	cases := map[uint64]string{
		0:             "0",
		1:             "0.000000001",
		100_000_000:   "0.1",
		135_000_000:   "0.135",
		1_000_000_000: "1",
		2_500_000_001: "2.500000001",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(in), "units %d", in)
	}
}

func TestFormatEvent(t *testing.T) {
	evt := domain.Event{
		Type:          domain.EventWinningsClaimed,
		CompetitionID: "btc-eth-w1",
		Actor:         "0xabc",
		Data: map[string]any{
			"payout":        uint64(135_000_000),
			"fee":           float64(30_000_000),
			"fee_recipient": "0xfee",
		},
		At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	title, body := FormatEvent(evt)
	assert.Equal(t, "Winnings claimed · btc-eth-w1", title)
	assert.Equal(t, "actor: 0xabc\nfee: 0.03\nfee_recipient: 0xfee\npayout: 0.135\nat: 2026-01-02 03:04:05Z", body)

	title, _ = FormatEvent(domain.Event{Type: "custom"})
	assert.Equal(t, "custom", title)
}

func TestNotifier_Filter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"competition_resolved", " "}, testLogger)
	ctx := context.Background()

	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Type: domain.EventBetPlaced}))
	assert.Empty(t, s.titles)

	require.NoError(t, n.NotifyEvent(ctx, domain.Event{Type: domain.EventCompetitionResolved, CompetitionID: "c1"}))
	require.Len(t, s.titles, 1)
	assert.Equal(t, "Competition resolved · c1", s.titles[0])

	require.NoError(t, n.NotifyAll(ctx, "hello", "world"))
	assert.Len(t, s.titles, 2)
}

func TestNotifier_SenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger)
	assert.True(t, n.Enabled())

	err := n.Notify(context.Background(), "deposit", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, good.titles, 1)

	assert.False(t, NewNotifier(nil, nil, testLogger).Enabled())
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithBaseURL(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), "Bet placed", "fee_recipient: 0x1"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Bet placed*\nfee\\_recipient: 0x1", got["text"])
	assert.Equal(t, "telegram", s.Name())
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewTelegramSender("x", "1").WithBaseURL(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Archiver stalled", "last run: 3h ago"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Archiver stalled", got.Embeds[0].Title)
	assert.Equal(t, "last run: 3h ago", got.Embeds[0].Description)
	assert.Empty(t, got.AllowedMentions.Parse)
	assert.Equal(t, "discord", s.Name())
}

func TestDiscordSender_SendEvent(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	msg := FormatMessage(domain.Event{
		Type:          domain.EventRefundIssued,
		CompetitionID: "btc-eth-w1",
		Actor:         "0xabc",
		Data:          map[string]any{"amount": uint64(100_000_000)},
		At:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, NewDiscordSender(srv.URL).SendEvent(context.Background(), msg))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "Refund issued · btc-eth-w1", e.Title)
	assert.Equal(t, colorWarn, e.Color)
	assert.Equal(t, "2026-01-02T03:04:05Z", e.Timestamp)
	assert.Equal(t, []discordField{
		{Name: "actor", Value: "0xabc"},
		{Name: "amount", Value: "0.1", Inline: true},
	}, e.Fields)
}

type eventRecordingSender struct {
	recordingSender
	events []Message
}

func (r *eventRecordingSender) SendEvent(_ context.Context, msg Message) error {
	r.events = append(r.events, msg)
	return r.err
}

func TestNotifier_PrefersEventSender(t *testing.T) {
	rich := &eventRecordingSender{recordingSender: recordingSender{name: "rich"}}
	text := &recordingSender{name: "text"}
	n := NewNotifier([]Sender{rich, text}, nil, testLogger)

	evt := domain.Event{Type: domain.EventBetPlaced, CompetitionID: "c1", Data: map[string]any{"amount": uint64(100_000_000)}}
	require.NoError(t, n.NotifyEvent(context.Background(), evt))

	require.Len(t, rich.events, 1)
	assert.Empty(t, rich.titles)
	assert.Equal(t, []Field{{Name: "amount", Value: "0.1"}}, rich.events[0].Fields)

	assert.Equal(t, []string{"Bet placed · c1"}, text.titles)
	assert.Equal(t, []string{"amount: 0.1"}, text.bodies)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
}
