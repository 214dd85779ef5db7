// Package crypto implements the crypto exchange provider client: price,
// ticker, and kline REST calls normalized to the shared domain types
// routed through the per-host HTTP executor.
package crypto

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/httpclient"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
)

// Config holds the crypto client's tunables.
type Config struct {
	BaseURL   string
	UserAgent string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.binance.com"
	}
	if c.UserAgent == "" {
		c.UserAgent = "marketpulse-aggregator/1.0"
	}
	return c
}

// Client is the crypto exchange REST client.
type Client struct {
	cfg      Config
	executor *httpclient.Executor
}

// New builds a crypto Client over the given executor.
func New(cfg Config, executor *httpclient.Executor) *Client {
	return &Client{cfg: cfg.withDefaults(), executor: executor}
}

// providerIntervalTable maps requested intervals to the exchange's native
// kline intervals; the exchange has no native 4h bucket so it falls back to
// the pack-wide default (1h).
var providerIntervalTable = normalize.DefaultProviderIntervalMap

type tickerResponse struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	PrevClosePrice     string `json:"prevClosePrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
}

// Quote fetches the 24h mini-ticker for a single symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Quote{}, err
	}

	u := c.cfg.BaseURL + "/api/v3/ticker/24hr?symbol=" + url.QueryEscape(sym)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Quote{}, cerrors.Wrap(cerrors.NetworkError, err)
	}

	result, err := c.executor.Do(ctx, req, 0)
	if err != nil {
		return types.Quote{}, mapExecutorError(err)
	}

	var tr tickerResponse
	if err := json.Unmarshal(result.Body, &tr); err != nil {
		return types.Quote{}, cerrors.Wrap(cerrors.ProviderError, err)
	}
	if tr.Symbol == "" {
		return types.Quote{}, cerrors.New(cerrors.SymbolNotFound, "symbol not found: "+sym)
	}

	price := parseFloat(tr.LastPrice)
	prevClose := parseFloat(tr.PrevClosePrice)
	open := parseFloat(tr.OpenPrice)
	high := parseFloat(tr.HighPrice)
	low := parseFloat(tr.LowPrice)
	volume := parseFloat(tr.Volume)

	now := time.Now().UTC()
	return types.Quote{
		Symbol:            sym,
		Exchange:          "binance",
		Currency:          "USDT",
		Price:             price,
		Change:            parseFloat(tr.PriceChange),
		ChangePercent:     parseFloat(tr.PriceChangePercent),
		PreviousClose:     &prevClose,
		Open:              &open,
		DayHigh:           &high,
		DayLow:            &low,
		Volume:            &volume,
		ProviderTimestamp: now,
		Source:            "binance",
		FetchedAt:         now,
	}, nil
}

// Klines fetches candle data for symbol/interval/range.
func (c *Client) Klines(ctx context.Context, symbol string, requested normalize.Interval, rng normalize.Range) (types.Chart, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Chart{}, err
	}

	providerInterval := normalize.ResolveInterval(requested, providerIntervalTable)
	now := time.Now().UTC()
	startAt := normalize.Period1(rng, now)

	q := url.Values{}
	q.Set("symbol", sym)
	q.Set("interval", string(providerInterval))
	q.Set("limit", "1000")
	if !startAt.IsZero() {
		q.Set("startTime", strconv.FormatInt(startAt.UnixMilli(), 10))
	}

	u := c.cfg.BaseURL + "/api/v3/klines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Chart{}, cerrors.Wrap(cerrors.NetworkError, err)
	}

	result, err := c.executor.Do(ctx, req, 0)
	if err != nil {
		return types.Chart{}, mapExecutorError(err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(result.Body, &raw); err != nil {
		return types.Chart{}, cerrors.Wrap(cerrors.ProviderError, err)
	}

	candles := make([]types.RawCandle, 0, len(raw))
	for _, row := range raw {
		candle, ok := parseKlineRow(row)
		if ok {
			candles = append(candles, candle)
		}
	}
	normalized := types.NormalizeCandles(candles)

	chart := types.Chart{
		Symbol:            sym,
		RequestedInterval: string(requested),
		ProviderInterval:  string(providerInterval),
		RequestedRange:    string(rng),
		Candles:           normalized,
		Currency:          "USDT",
		Exchange:          "binance",
		Source:            "binance",
		FetchedAt:         now,
	}
	if len(normalized) > 0 {
		first := normalized[0].Time
		last := normalized[len(normalized)-1].Time
		chart.FirstCandleTime = &first
		chart.LastCandleTime = &last
	}
	return chart, nil
}

func parseKlineRow(row []interface{}) (types.RawCandle, bool) {
	if len(row) < 6 {
		return types.RawCandle{}, false
	}
	openTimeMs, ok := row[0].(float64)
	if !ok {
		return types.RawCandle{}, false
	}
	openTimeSec := int64(openTimeMs) / 1000

	open := parseFloatAny(row[1])
	high := parseFloatAny(row[2])
	low := parseFloatAny(row[3])
	closeVal, hasClose := parseFloatAnyOK(row[4])
	volume := parseFloatAny(row[5])

	if !hasClose {
		return types.RawCandle{}, false
	}

	return types.RawCandle{
		Time:   &openTimeSec,
		Open:   &open,
		High:   &high,
		Low:    &low,
		Close:  &closeVal,
		Volume: volume,
	}, true
}

func parseFloatAny(v interface{}) float64 {
	f, _ := parseFloatAnyOK(v)
	return f
}

func parseFloatAnyOK(v interface{}) (float64, bool) {
	switch s := v.(type) {
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return s, true
	default:
		return 0, false
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func mapExecutorError(err error) error {
	var execErr *httpclient.Error
	if httpErr, ok := err.(*httpclient.Error); ok {
		execErr = httpErr
	} else {
		return cerrors.Wrap(cerrors.NetworkError, err)
	}

	switch execErr.Kind {
	case httpclient.KindTimeout, httpclient.KindTransport:
		return cerrors.Wrap(cerrors.NetworkError, err)
	case httpclient.KindCanceled:
		return cerrors.Wrap(cerrors.NetworkError, err)
	case httpclient.KindHTTPStatus:
		if execErr.Code == http.StatusTooManyRequests {
			return cerrors.New(cerrors.ProviderThrottled, fmt.Sprintf("upstream rate limited: %s", execErr.Snippet))
		}
		return cerrors.New(cerrors.ProviderError, fmt.Sprintf("upstream status %d: %s", execErr.Code, execErr.Snippet))
	default:
		return cerrors.Wrap(cerrors.ProviderError, err)
	}
}
