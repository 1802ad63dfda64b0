// Package bybit implements broker.Venue against the Bybit v5 REST API.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"
	DemoURL    = "https://api-demo.bybit.com"
)

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	RecvWindow time.Duration
	Timeout    time.Duration
}

// Client is a Bybit v5 REST client. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	signer *signer
}

var _ broker.Venue = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MainnetURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := resty.New()
	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	rc.SetTimeout(cfg.Timeout)
	rc.SetHeader("Content-Type", "application/json")

	return &Client{
		http:   rc,
		signer: newSigner(cfg.APIKey, cfg.APISecret, cfg.RecvWindow),
	}
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	qs := params.Encode()
	req := c.http.R().SetContext(ctx).SetQueryString(qs)
	if signed {
		req.SetHeaders(c.signer.headers(qs))
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return decode(path, resp, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.signer.headers(string(b))).
		SetBody(b).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return decode(path, resp, out)
}

func decode(path string, resp *resty.Response, out any) error {
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: http status %d: %s", path, resp.StatusCode(), resp.String())
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", path, err)
	}
	if env.RetCode != 0 {
		return &broker.APIError{Code: env.RetCode, Msg: env.RetMsg}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", path, err)
	}
	return nil
}

// GetKlines returns candles newest first.
func (c *Client) GetKlines(ctx context.Context, req broker.KlineRequest) ([]market.Candle, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	params := url.Values{}
	params.Set("category", string(req.Category))
	params.Set("symbol", req.Symbol)
	params.Set("interval", req.Interval)
	if req.Limit > 0 {
		if req.Limit > 1000 {
			return nil, fmt.Errorf("limit cannot exceed 1000")
		}
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	var res struct {
		List [][]string `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/kline", params, false, &res); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(res.List))
	for _, row := range res.List {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
		}
		start, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse kline start %q: %w", row[0], err)
		}
		vals := make([]float64, 6)
		for i := 1; i < len(row) && i <= 6; i++ {
			v, err := broker.Float(row[i])
			if err != nil {
				return nil, fmt.Errorf("parse kline field %d: %w", i, err)
			}
			vals[i-1] = v
		}
		candles = append(candles, market.Candle{
			Time:     time.UnixMilli(start).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
			Turnover: vals[5],
		})
	}
	market.SortDescending(candles)
	return candles, nil
}

func (c *Client) GetTicker(ctx context.Context, category market.Category, symbol string) (market.Ticker, error) {
	params := url.Values{}
	params.Set("category", string(category))
	params.Set("symbol", symbol)

	var res struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			MarkPrice string `json:"markPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/tickers", params, false, &res); err != nil {
		return market.Ticker{}, err
	}
	if len(res.List) == 0 {
		return market.Ticker{}, fmt.Errorf("no ticker for %s", symbol)
	}

	raw := res.List[0]
	t := market.Ticker{Symbol: raw.Symbol, Time: time.Now().UTC()}
	var err error
	if t.LastPrice, err = broker.Float(raw.LastPrice); err != nil {
		return market.Ticker{}, err
	}
	if t.MarkPrice, err = broker.Float(raw.MarkPrice); err != nil {
		return market.Ticker{}, err
	}
	if t.Bid, err = broker.Float(raw.Bid1Price); err != nil {
		return market.Ticker{}, err
	}
	if t.Ask, err = broker.Float(raw.Ask1Price); err != nil {
		return market.Ticker{}, err
	}
	return t, nil
}

func (c *Client) GetInstrument(ctx context.Context, category market.Category, symbol string) (market.Instrument, error) {
	params := url.Values{}
	params.Set("category", string(category))
	params.Set("symbol", symbol)

	var res struct {
		List []struct {
			Symbol        string `json:"symbol"`
			BaseCoin      string `json:"baseCoin"`
			QuoteCoin     string `json:"quoteCoin"`
			LotSizeFilter struct {
				BasePrecision string `json:"basePrecision"`
				QtyStep       string `json:"qtyStep"`
				MinOrderQty   string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/instruments-info", params, false, &res); err != nil {
		return market.Instrument{}, err
	}
	if len(res.List) == 0 {
		return market.Instrument{}, fmt.Errorf("no instrument info for %s", symbol)
	}

	raw := res.List[0]
	// Spot reports its lot step as basePrecision, derivatives as qtyStep.
	step := raw.LotSizeFilter.QtyStep
	if step == "" {
		step = raw.LotSizeFilter.BasePrecision
	}
	return market.Instrument{
		Symbol:      raw.Symbol,
		Category:    category,
		BaseCoin:    raw.BaseCoin,
		QuoteCoin:   raw.QuoteCoin,
		QtyStep:     step,
		MinOrderQty: raw.LotSizeFilter.MinOrderQty,
		TickSize:    raw.PriceFilter.TickSize,
	}, nil
}

func (c *Client) GetWalletBalance(ctx context.Context, accountType, coin string) ([]broker.WalletAccount, error) {
	params := url.Values{}
	params.Set("accountType", accountType)
	if coin != "" {
		params.Set("coin", coin)
	}

	var res struct {
		List []broker.WalletAccount `json:"list"`
	}
	if err := c.get(ctx, "/v5/account/wallet-balance", params, true, &res); err != nil {
		return nil, err
	}
	return res.List, nil
}

func (c *Client) GetPositions(ctx context.Context, category market.Category, symbol string) ([]broker.PositionRecord, error) {
	params := url.Values{}
	params.Set("category", string(category))
	params.Set("symbol", symbol)

	var res struct {
		List []broker.PositionRecord `json:"list"`
	}
	if err := c.get(ctx, "/v5/position/list", params, true, &res); err != nil {
		return nil, err
	}
	return res.List, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	if req.Symbol == "" || req.Qty == "" || req.Side == "" {
		return broker.OrderAck{}, fmt.Errorf("order needs symbol, side and qty")
	}
	if req.OrderType == "" {
		req.OrderType = "Market"
	}

	var res struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := c.post(ctx, "/v5/order/create", req, &res); err != nil {
		return broker.OrderAck{}, err
	}
	avg, err := broker.Float(res.AvgPrice)
	if err != nil {
		avg = 0
	}
	return broker.OrderAck{OrderID: res.OrderID, OrderLinkID: res.OrderLinkID, AvgPrice: avg}, nil
}

func (c *Client) GetExecutions(ctx context.Context, q broker.ExecutionQuery) (broker.ExecutionPage, error) {
	params := url.Values{}
	params.Set("category", string(q.Category))
	if q.Symbol != "" {
		params.Set("symbol", q.Symbol)
	}
	if !q.StartTime.IsZero() {
		params.Set("startTime", strconv.FormatInt(q.StartTime.UnixMilli(), 10))
	}
	if !q.EndTime.IsZero() {
		params.Set("endTime", strconv.FormatInt(q.EndTime.UnixMilli(), 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}

	var res struct {
		List           []broker.Execution `json:"list"`
		NextPageCursor string             `json:"nextPageCursor"`
	}
	if err := c.get(ctx, "/v5/execution/list", params, true, &res); err != nil {
		return broker.ExecutionPage{}, err
	}
	return broker.ExecutionPage{Executions: res.List, NextCursor: res.NextPageCursor}, nil
}
