package domain

import "time"

// MaxFeeRateBps is the upper bound for the platform fee (100%).
const MaxFeeRateBps = 10000

// PlatformRegistry is the deployment-wide configuration singleton. It is
// created once by Initialize and only mutated by its authority.
type PlatformRegistry struct {
	Authority        string    `json:"authority"`
	FeeRecipient     string    `json:"fee_recipient"`
	FeeRateBps       uint16    `json:"fee_rate_bps"`
	Paused           bool      `json:"paused"`
	CompetitionCount uint64    `json:"competition_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsAuthority reports whether addr is the registry authority.
func (r PlatformRegistry) IsAuthority(addr string) bool {
	return addr != "" && addr == r.Authority
}

// ValidFeeRate reports whether bps is within [0, MaxFeeRateBps].
func ValidFeeRate(bps uint16) bool {
	return bps <= MaxFeeRateBps
}
