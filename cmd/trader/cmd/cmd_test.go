package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/broker/bybit"
	"github.com/rustyeddy/llmtrader/broker/sim"
	"github.com/rustyeddy/llmtrader/config"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseDate("2025-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), got.UTC())

	got, err = parseDate("2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Day())

	_, err = parseDate("yesterday")
	assert.Error(t, err)
}

func TestNewVenue(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Venue.Kind = "bybit"
	_, ok := newVenue(cfg).(*bybit.Client)
	assert.True(t, ok)

	cfg.Venue.Kind = "paper"
	_, ok = newVenue(cfg).(*sim.Paper)
	assert.True(t, ok)
}

func TestNewApp_Wires(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Venue.Kind = "paper"
	cfg.Journal.DBPath = filepath.Join(t.TempDir(), "trader.db")
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, cfg.Mode(), a.runner.Pipeline().Mode())
	assert.Len(t, a.handlers(), 3)
	assert.Equal(t, cfg.Risk.MarginUSD, policyFrom(cfg).MarginUSD)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
