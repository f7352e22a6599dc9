package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	base := Competition{ID: "c1", AssetA: "BTC", AssetB: "ETH", StartTime: start, EndTime: end}

	tests := []struct {
		name   string
		stored CompetitionStatus
		now    time.Time
		want   CompetitionStatus
	}{
		{"before start", CompetitionStatusUpcoming, start.Add(-time.Second), CompetitionStatusUpcoming},
		{"at start", CompetitionStatusUpcoming, start, CompetitionStatusActive},
		{"mid window", CompetitionStatusActive, start.Add(time.Hour), CompetitionStatusActive},
		{"one second before end", CompetitionStatusActive, end.Add(-time.Second), CompetitionStatusActive},
		{"at end", CompetitionStatusActive, end, CompetitionStatusClosed},
		{"upcoming past end", CompetitionStatusUpcoming, end.Add(time.Hour), CompetitionStatusClosed},
		{"paused ignores clock", CompetitionStatusPaused, end.Add(time.Hour), CompetitionStatusPaused},
		{"resolved ignores clock", CompetitionStatusResolved, start, CompetitionStatusResolved},
		{"cancelled ignores clock", CompetitionStatusCancelled, start, CompetitionStatusCancelled},
		{"closed stays closed", CompetitionStatusClosed, start, CompetitionStatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.Status = tt.stored
			assert.Equal(t, tt.want, StatusAt(c, tt.now))
		})
	}
}

func TestCompetition_Pool(t *testing.T) {
	c := Competition{AssetA: "SOL", AssetB: "BONK", PoolA: 300, PoolB: 700}

	assert.Equal(t, uint64(300), c.Pool("SOL"))
	assert.Equal(t, uint64(700), c.Pool("BONK"))
	assert.Equal(t, uint64(0), c.Pool("DOGE"))
	assert.Equal(t, uint64(0), c.Pool(""))
	assert.True(t, c.HasAsset("SOL"))
	assert.False(t, c.HasAsset(""))
}

func TestValidFeeRate(t *testing.T) {
	assert.True(t, ValidFeeRate(0))
	assert.True(t, ValidFeeRate(MaxFeeRateBps))
	assert.False(t, ValidFeeRate(MaxFeeRateBps+1))
}
