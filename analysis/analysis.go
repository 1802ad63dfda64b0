// Package analysis builds the market snapshot a reasoning step decides on:
// recent candles enriched with indicators plus the current position.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/indicators"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/position"
)

var ErrNoMarketData = errors.New("no market data")

// Indicator settings used for every snapshot.
const (
	RSIPeriod      = 14
	MACDFast       = 12
	MACDSlow       = 26
	MACDSignal     = 9
	BollingerLen   = 5
	BollingerK     = 2.0
	StochLength    = 5
	StochRSILength = 5
	StochK         = 3
	StochD         = 3
	ATRPeriod      = 14
	ADXPeriod      = 14

	DefaultTail = 5
)

// Row is one enriched candle. Indicator fields stay zero until their warmup
// is complete.
type Row struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	RSI        float64   `json:"rsi_14"`
	MACD       float64   `json:"macd"`
	MACDSignal float64   `json:"macd_signal"`
	MACDHist   float64   `json:"macd_hist"`
	BBLower    float64   `json:"bb_lower"`
	BBMiddle   float64   `json:"bb_middle"`
	BBUpper    float64   `json:"bb_upper"`
	StochK     float64   `json:"stochrsi_k"`
	StochD     float64   `json:"stochrsi_d"`
	ATR        float64   `json:"atr_14"`
	ADX        float64   `json:"adx_14"`
}

// Enrich computes indicator rows for candles ordered oldest first.
func Enrich(candles []market.Candle) []Row {
	rsi := indicators.NewRSI(RSIPeriod)
	macd := indicators.NewMACD(MACDFast, MACDSlow, MACDSignal)
	stoch := indicators.NewStochRSI(StochLength, StochRSILength, StochK, StochD)
	atr := indicators.NewATR(ATRPeriod)
	adx := indicators.NewADX(ADXPeriod)

	rows := make([]Row, len(candles))
	for i, c := range candles {
		rsi.Update(c)
		macd.Update(c)
		stoch.Update(c)
		atr.Update(c)
		adx.Update(c)

		r := Row{
			Time:   c.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
			RSI:    rsi.Value(),
			ATR:    atr.Value(),
			ADX:    adx.Value(),
		}
		m := macd.Reading()
		r.MACD, r.MACDSignal, r.MACDHist = m.MACD, m.Signal, m.Histogram
		s := stoch.Reading()
		r.StochK, r.StochD = s.K, s.D
		if bb, err := indicators.Bollinger(candles[:i+1], BollingerLen, BollingerK); err == nil {
			r.BBLower, r.BBMiddle, r.BBUpper = bb.Lower, bb.Middle, bb.Upper
		}
		rows[i] = r
	}
	return rows
}

// Snapshot is the ANALYZE output.
type Snapshot struct {
	Symbol   string            `json:"symbol"`
	Mode     market.Mode       `json:"mode"`
	Interval string            `json:"interval"`
	Price    float64           `json:"price"`
	Rows     []Row             `json:"rows"`
	Position position.Position `json:"position"`
	Gaps     []market.Gap      `json:"gaps,omitempty"`
	Time     time.Time         `json:"time"`
}

// Summary renders the snapshot as the text handed to the reasoning step.
func (s Snapshot) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market analysis for %s (%s mode, %s interval) at %s\n",
		s.Symbol, s.Mode, s.Interval, s.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Current price: %g\n", s.Price)
	fmt.Fprintf(&b, "Recent data (last %d periods, oldest first):\n", len(s.Rows))
	if raw, err := json.Marshal(s.Rows); err == nil {
		b.Write(raw)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Current position: %s\n", s.Position)
	if s.Position.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", s.Position.Note)
	}
	if n := missingBars(s.Gaps); n > 0 {
		fmt.Fprintf(&b, "Warning: candle history is missing %d bars\n", n)
	}
	return b.String()
}

type Options struct {
	Interval string
	Limit    int
	// Tail is how many of the newest rows go into a snapshot.
	Tail int
}

type Analyzer struct {
	venue  broker.Venue
	oracle *position.Oracle
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

func New(venue broker.Venue, oracle *position.Oracle, opts Options, log *zap.Logger) *Analyzer {
	if opts.Interval == "" {
		opts.Interval = "60"
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Tail <= 0 {
		opts.Tail = DefaultTail
	}
	return &Analyzer{venue: venue, oracle: oracle, opts: opts, log: logger.OrNop(log), now: time.Now}
}

// Analyze fetches candles for symbol, enriches them and attaches the current
// position. The price is the venue ticker, or the last close when no ticker
// is available.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, mode market.Mode) (Snapshot, error) {
	symbol = strings.ToUpper(symbol)
	category := mode.Category()

	candles, err := a.venue.GetKlines(ctx, broker.KlineRequest{
		Category: category,
		Symbol:   symbol,
		Interval: a.opts.Interval,
		Limit:    a.opts.Limit,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("klines %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return Snapshot{}, fmt.Errorf("%s: %w", symbol, ErrNoMarketData)
	}

	asc := market.Ascending(candles)
	var gaps []market.Gap
	if step, err := market.IntervalDuration(a.opts.Interval); err == nil {
		gaps = market.FindGaps(asc, step)
		if n := missingBars(gaps); n > 0 {
			a.log.Warn("gaps in candle history",
				zap.String("symbol", symbol), zap.Int("gaps", len(gaps)), zap.Int("missing", n))
		}
	}

	rows := Enrich(asc)
	if len(rows) > a.opts.Tail {
		rows = rows[len(rows)-a.opts.Tail:]
	}

	price := rows[len(rows)-1].Close
	if t, err := a.venue.GetTicker(ctx, category, symbol); err != nil {
		a.log.Warn("ticker unavailable, using last close",
			zap.String("symbol", symbol), zap.Error(err))
	} else if p := t.Price(); p > 0 {
		price = p
	}

	return Snapshot{
		Symbol:   symbol,
		Mode:     mode,
		Interval: a.opts.Interval,
		Price:    price,
		Rows:     rows,
		Position: a.oracle.Get(ctx, symbol, mode),
		Gaps:     gaps,
		Time:     a.now(),
	}, nil
}

func missingBars(gaps []market.Gap) int {
	n := 0
	for _, g := range gaps {
		n += g.Missing
	}
	return n
}
