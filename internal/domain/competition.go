package domain

import "time"

// MaxCompetitionIDLen bounds the length of a competition identifier.
const MaxCompetitionIDLen = 32

// CompetitionStatus tracks the competition lifecycle.
type CompetitionStatus string

const (
	CompetitionStatusUpcoming  CompetitionStatus = "upcoming"
	CompetitionStatusActive    CompetitionStatus = "active"
	CompetitionStatusClosed    CompetitionStatus = "closed"
	CompetitionStatusResolved  CompetitionStatus = "resolved"
	CompetitionStatusPaused    CompetitionStatus = "paused"
	CompetitionStatusCancelled CompetitionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s CompetitionStatus) Valid() bool {
	switch s {
	case CompetitionStatusUpcoming, CompetitionStatusActive, CompetitionStatusClosed,
		CompetitionStatusResolved, CompetitionStatusPaused, CompetitionStatusCancelled:
		return true
	}
	return false
}

// Competition is a single time-boxed betting event between two assets.
type Competition struct {
	ID                string            `json:"id"`
	AssetA            string            `json:"asset_a"`
	AssetB            string            `json:"asset_b"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	Status            CompetitionStatus `json:"status"`
	PoolTotal         uint64            `json:"pool_total"`
	PoolA             uint64            `json:"pool_a"`
	PoolB             uint64            `json:"pool_b"`
	Winner            string            `json:"winner,omitempty"`
	FinalPerformanceA int64             `json:"final_performance_a"` // percent * 100
	FinalPerformanceB int64             `json:"final_performance_b"` // percent * 100
	EscrowRef         string            `json:"escrow_ref"`
	FeeRateBps        uint16            `json:"fee_rate_bps"` // fixed at resolution
	FeePaid           uint64            `json:"fee_paid"`
	FeeCollected      bool              `json:"fee_collected"`
	CreatedAt         time.Time         `json:"created_at"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
}

// HasAsset reports whether asset is one of the two competing assets.
func (c Competition) HasAsset(asset string) bool {
	return asset != "" && (asset == c.AssetA || asset == c.AssetB)
}

// Pool returns the amount staked on asset, or zero for a foreign asset.
func (c Competition) Pool(asset string) uint64 {
	switch asset {
	case "":
		return 0
	case c.AssetA:
		return c.PoolA
	case c.AssetB:
		return c.PoolB
	}
	return 0
}

// IsTerminal reports whether the stored status ends the normal flow.
func (c Competition) IsTerminal() bool {
	return c.Status == CompetitionStatusResolved || c.Status == CompetitionStatusCancelled
}

// StatusAt derives the effective status of c at now. The clock-driven
// transitions (upcoming -> active -> closed) are evaluated lazily here;
// statuses set explicitly by the authority are returned unchanged.
func StatusAt(c Competition, now time.Time) CompetitionStatus {
	switch c.Status {
	case CompetitionStatusUpcoming, CompetitionStatusActive:
		if !now.Before(c.EndTime) {
			return CompetitionStatusClosed
		}
		if !now.Before(c.StartTime) {
			return CompetitionStatusActive
		}
		return CompetitionStatusUpcoming
	default:
		return c.Status
	}
}

// CompetitionFilter narrows competition listings. Zero values match all.
type CompetitionFilter struct {
	Statuses    []CompetitionStatus
	EndedBefore *time.Time
}
