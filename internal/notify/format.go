package notify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// tokenDecimals is the number of decimals of the escrowed token.
const tokenDecimals = 9

// amountKeys are event data fields holding base-unit token amounts.
var amountKeys = map[string]bool{
	"amount":      true,
	"balance":     true,
	"fee":         true,
	"payout":      true,
	"pool_total":  true,
	"pool_a":      true,
	"pool_b":      true,
	"winner_pool": true,
}

var titles = map[domain.EventType]string{
	domain.EventPlatformInitialized:  "Platform initialized",
	domain.EventPlatformPaused:       "Platform paused",
	domain.EventPlatformResumed:      "Platform resumed",
	domain.EventFeeRateUpdated:       "Fee rate updated",
	domain.EventDeposit:              "Deposit",
	domain.EventCompetitionCreated:   "Competition created",
	domain.EventCompetitionActivated: "Competition active",
	domain.EventCompetitionClosed:    "Competition closed",
	domain.EventCompetitionResolved:  "Competition resolved",
	domain.EventCompetitionPaused:    "Competition paused",
	domain.EventCompetitionCancelled: "Competition cancelled",
	domain.EventBetPlaced:            "Bet placed",
	domain.EventWinningsClaimed:      "Winnings claimed",
	domain.EventRefundIssued:         "Refund issued",
}

// Field is one labelled value of a formatted event.
type Field struct {
	Name  string
	Value string
}

// Message is a betting event prepared for operator channels. Senders that
// support rich layouts render Fields themselves; the rest use Text.
type Message struct {
	Event  domain.EventType
	Title  string
	Fields []Field
	At     time.Time
}

// FormatMessage converts evt into a Message. The actor comes first, the
// data fields follow in key order, and amounts are shown in tokens.
func FormatMessage(evt domain.Event) Message {
	m := Message{Event: evt.Type, At: evt.At}

	m.Title = titles[evt.Type]
	if m.Title == "" {
		m.Title = string(evt.Type)
	}
	if evt.CompetitionID != "" {
		m.Title += " · " + evt.CompetitionID
	}

	if evt.Actor != "" {
		m.Fields = append(m.Fields, Field{Name: "actor", Value: evt.Actor})
	}
	keys := make([]string, 0, len(evt.Data))
	for k := range evt.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Fields = append(m.Fields, Field{Name: k, Value: formatValue(k, evt.Data[k])})
	}
	return m
}

// Text renders the fields as "name: value" lines, ending with the event
// time when known.
func (m Message) Text() string {
	lines := make([]string, 0, len(m.Fields)+1)
	for _, f := range m.Fields {
		lines = append(lines, f.Name+": "+f.Value)
	}
	if !m.At.IsZero() {
		lines = append(lines, "at: "+m.At.UTC().Format("2006-01-02 15:04:05Z"))
	}
	return strings.Join(lines, "\n")
}

// FormatEvent renders evt as a notification title and a plain-text body.
func FormatEvent(evt domain.Event) (string, string) {
	m := FormatMessage(evt)
	return m.Title, m.Text()
}

func formatValue(key string, v any) string {
	if amountKeys[key] {
		switch n := v.(type) {
		case uint64:
			return FormatAmount(n)
		case float64:
			if n >= 0 {
				return FormatAmount(uint64(n))
			}
		}
	}
	return fmt.Sprint(v)
}

// FormatAmount renders base units as a decimal token amount with trailing
// zeros removed, e.g. 135000000 -> "0.135".
func FormatAmount(units uint64) string {
	s := strconv.FormatUint(units, 10)
	if len(s) <= tokenDecimals {
		s = strings.Repeat("0", tokenDecimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-tokenDecimals], strings.TrimRight(s[len(s)-tokenDecimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
