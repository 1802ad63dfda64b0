package market

import (
	"sort"
	"time"
)

// Candle represents OHLCV candlestick data for one kline interval.
type Candle struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// SortDescending orders candles newest first.
func SortDescending(cs []Candle) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time.After(cs[j].Time) })
}

// Ascending returns a copy of cs ordered oldest first.
func Ascending(cs []Candle) []Candle {
	out := make([]Candle, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
