package domain

import "time"

// EventType names a committed state change.
type EventType string

const (
	EventPlatformInitialized  EventType = "platform_initialized"
	EventPlatformPaused       EventType = "platform_paused"
	EventPlatformResumed      EventType = "platform_resumed"
	EventFeeRateUpdated       EventType = "fee_rate_updated"
	EventDeposit              EventType = "deposit"
	EventCompetitionCreated   EventType = "competition_created"
	EventCompetitionActivated EventType = "competition_activated"
	EventCompetitionClosed    EventType = "competition_closed"
	EventCompetitionResolved  EventType = "competition_resolved"
	EventCompetitionPaused    EventType = "competition_paused"
	EventCompetitionCancelled EventType = "competition_cancelled"
	EventBetPlaced            EventType = "bet_placed"
	EventWinningsClaimed      EventType = "winnings_claimed"
	EventRefundIssued         EventType = "refund_issued"
)

// Bus channels and streams carrying events.
const (
	EventsChannel = "betting:events"
	EventsStream  = "betting:log"
)

// CompetitionChannel returns the per-competition pub/sub channel.
func CompetitionChannel(id string) string {
	return "competition:" + id
}

// Event is emitted after an operation commits.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	CompetitionID string         `json:"competition_id,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	At            time.Time      `json:"at"`
}

// Clock is the trusted time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
