package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronNext(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 17, 30, 0, time.UTC) // a Friday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 5, 1, 9, 18, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)},
		{"0 9-17/4 * * *", time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"30 8 * * 1", time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, err := c.next(base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCron_Invalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "*/0 * * * *", "5-1 * * * *", "a * * * *"} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}
