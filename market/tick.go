package market

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNoPrice = errors.New("price not found")

// Ticker is the latest quote for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
	MarkPrice float64
	Bid       float64
	Ask       float64
	Time      time.Time
}

// Price returns the mark price when the venue reports one, else the last trade.
func (t Ticker) Price() float64 {
	if t.MarkPrice > 0 {
		return t.MarkPrice
	}
	return t.LastPrice
}

type TickerStore struct {
	mu      sync.RWMutex
	tickers map[string]Ticker
}

func NewTickerStore() *TickerStore {
	return &TickerStore{tickers: make(map[string]Ticker)}
}

func (ts *TickerStore) Set(t Ticker) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tickers[strings.ToUpper(t.Symbol)] = t
}

func (ts *TickerStore) Get(symbol string) (Ticker, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.tickers[strings.ToUpper(symbol)]
	if !ok {
		return Ticker{}, ErrNoPrice
	}
	return t, nil
}
