package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"1", 0},
		{"0.1", 1},
		{"0.001", 3},
		{"0.010", 2},
		{" 0.00001 ", 5},
		{"10.0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Precision(tt.in), tt.in)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		desired float64
		step    string
		min     string
		want    float64
	}{
		{"rounds down to step", 1.239, "0.01", "0.01", 1.23},
		{"never rounds up", 1.999, "0.1", "0.1", 1.9},
		{"whole step", 123.456, "1", "1", 123},
		{"below min lifts to min", 0.004, "0.01", "0.01", 0.01},
		{"zero lifts to min", 0, "0.001", "0.002", 0.002},
		{"negative lifts to min", -1, "0.1", "0.1", 0.1},
		{"step from min precision", 5.567, "", "0.1", 5.5},
		{"bad step uses min precision", 5.5678, "abc", "0.001", 5.567},
		{"no metadata uses default precision", 5.5678, "", "", 5.56},
		{"coarse step", 7.3, "0.5", "0.5", 7.0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.desired, tt.step, tt.min)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestNormalizeRejectsNonFinite(t *testing.T) {
	t.Parallel()

	_, err := Normalize(math.NaN(), "0.1", "0.1")
	assert.ErrorIs(t, err, ErrInvalidRiskInput)
	_, err = Normalize(math.Inf(1), "0.1", "0.1")
	assert.ErrorIs(t, err, ErrInvalidRiskInput)
}

func TestNormalizeIdempotentAndLegal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	lots := []struct{ step, min string }{
		{"0.1", "0.1"},
		{"0.01", "1"},
		{"0.001", "0.001"},
		{"1", "1"},
		{"0.5", "0.05"},
		{"", "0.01"},
	}

	for i := 0; i < 2000; i++ {
		lot := lots[rng.Intn(len(lots))]
		q := rng.Float64() * 1000

		once, err := Normalize(q, lot.step, lot.min)
		require.NoError(t, err)
		twice, err := Normalize(once, lot.step, lot.min)
		require.NoError(t, err)
		require.Equal(t, once, twice, "q=%v step=%q min=%q", q, lot.step, lot.min)

		min := decimal.RequireFromString(lot.min)
		got := decimal.NewFromFloat(once)
		require.True(t, got.GreaterThanOrEqual(min), "q=%v got=%v below min %v", q, once, lot.min)

		step := resolveStep(lot.step, lot.min)
		multiple := got.Mod(step).IsZero()
		require.True(t, multiple || got.Equal(min), "q=%v got=%v step=%v", q, once, step)
		require.LessOrEqual(t, once, math.Max(q, min.InexactFloat64()))
	}
}

func TestFormatQty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.23", FormatQty(1.23, "0.01", "0.01"))
	assert.Equal(t, "0.00001", FormatQty(0.00001, "0.00001", ""))
	assert.Equal(t, "12", FormatQty(12.0, "1", "1"))
	assert.Equal(t, "5.56", FormatQty(5.5678, "", ""))
}
