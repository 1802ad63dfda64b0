package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"1", time.Minute, false},
		{"15", 15 * time.Minute, false},
		{"60", time.Hour, false},
		{"240", 4 * time.Hour, false},
		{"d", 24 * time.Hour, false},
		{"W", 7 * 24 * time.Hour, false},
		{"H1", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := IntervalDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindGaps(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) Candle { return Candle{Time: base.Add(time.Duration(h) * time.Hour)} }

	assert.Empty(t, FindGaps([]Candle{at(0), at(1), at(2)}, time.Hour))
	assert.Nil(t, FindGaps([]Candle{at(0), at(5)}, 0))

	gaps := FindGaps([]Candle{at(0), at(2), at(3), at(7)}, time.Hour)
	require.Len(t, gaps, 2)
	assert.Equal(t, Gap{After: at(0).Time, Missing: 1, Kind: "minor"}, gaps[0])
	assert.Equal(t, Gap{After: at(3).Time, Missing: 3, Kind: "suspicious"}, gaps[1])
}
