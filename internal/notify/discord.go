package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// Discord embed limits.
const (
	discordMaxFields     = 25
	discordMaxTitle      = 256
	discordMaxFieldValue = 1024
	discordMaxText       = 4096
)

// Embed colours by event severity.
const (
	colorInfo    = 0x5865F2
	colorSuccess = 0x57F287
	colorWarn    = 0xFEE75C
	colorDanger  = 0xED4245
)

// DiscordSender posts betting events to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Username        string         `json:"username"`
	Embeds          []discordEmbed `json:"embeds"`
	AllowedMentions struct {
		Parse []string `json:"parse"`
	} `json:"allowed_mentions"`
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts a free-form notice as a single embed.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return d.post(ctx, discordEmbed{
		Title:       truncate(title, discordMaxTitle),
		Description: truncate(message, discordMaxText),
		Color:       colorInfo,
	})
}

// SendEvent posts a betting event with one embed field per event field.
// Amount and address fields are shown inline.
func (d *DiscordSender) SendEvent(ctx context.Context, msg Message) error {
	embed := discordEmbed{
		Title: truncate(msg.Title, discordMaxTitle),
		Color: eventColor(msg.Event),
	}
	for i, f := range msg.Fields {
		if i == discordMaxFields {
			break
		}
		embed.Fields = append(embed.Fields, discordField{
			Name:   f.Name,
			Value:  truncate(f.Value, discordMaxFieldValue),
			Inline: amountKeys[f.Name],
		})
	}
	if !msg.At.IsZero() {
		embed.Timestamp = msg.At.UTC().Format(time.RFC3339)
	}
	return d.post(ctx, embed)
}

func (d *DiscordSender) post(ctx context.Context, embed discordEmbed) error {
	payload := discordPayload{Username: "tokenbet", Embeds: []discordEmbed{embed}}
	payload.AllowedMentions.Parse = []string{}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func eventColor(t domain.EventType) int {
	switch t {
	case domain.EventCompetitionResolved, domain.EventWinningsClaimed:
		return colorSuccess
	case domain.EventPlatformPaused, domain.EventCompetitionPaused, domain.EventRefundIssued:
		return colorWarn
	case domain.EventCompetitionCancelled:
		return colorDanger
	}
	return colorInfo
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

var _ EventSender = (*DiscordSender)(nil)
