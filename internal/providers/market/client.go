// Package market implements the general market-data provider client:
// quote, chart, and fundamentals REST calls for equity-style symbols
// including the Turkish-equity ".IS" suffix convention.
package market

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

// Config holds the market client's tunables.
type Config struct {
	BaseURL   string
	UserAgent string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.UserAgent == "" {
		c.UserAgent = "marketpulse-aggregator/1.0"
	}
	return c
}

// Client is the general market-data provider client.
type Client struct {
	cfg      Config
	executor *httpclient.Executor
}

func New(cfg Config, executor *httpclient.Executor) *Client {
	return &Client{cfg: cfg.withDefaults(), executor: executor}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			ShortName          string  `json:"shortName"`
			LongName           string  `json:"longName"`
			FullExchangeName   string  `json:"fullExchangeName"`
			Currency           string  `json:"currency"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			RegularMarketOpen  float64 `json:"regularMarketOpen"`
			RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
			RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
			RegularMarketVolume float64 `json:"regularMarketVolume"`
			MarketCap          float64 `json:"marketCap"`
			FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
			FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// IsBIST reports whether a market tag selects Borsa Istanbul, which needs
// the upstream ".IS" suffix added before the request and stripped from the
// response.
func IsBIST(market string) bool { return market == "bist" }

// Quote fetches a single symbol's quote. market selects the suffix
// convention.
func (c *Client) Quote(ctx context.Context, symbol, market string) (types.Quote, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Quote{}, err
	}

	upstreamSymbol := sym
	if IsBIST(market) {
		upstreamSymbol = normalize.WithBISTSuffix(sym)
	}

	u := c.cfg.BaseURL + "/v7/finance/quote?symbols=" + url.QueryEscape(upstreamSymbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Quote{}, cerrors.Wrap(cerrors.NetworkError, err)
	}

	result, err := c.executor.Do(ctx, req, 0)
	if err != nil {
		return types.Quote{}, mapExecutorError(err)
	}

	var qr quoteResponse
	if err := json.Unmarshal(result.Body, &qr); err != nil {
		return types.Quote{}, cerrors.Wrap(cerrors.ProviderError, err)
	}
	if qr.QuoteResponse.Error != nil {
		return types.Quote{}, cerrors.New(cerrors.ProviderError, qr.QuoteResponse.Error.Description)
	}
	if len(qr.QuoteResponse.Result) == 0 {
		return types.Quote{}, cerrors.New(cerrors.SymbolNotFound, "symbol not found: "+sym)
	}

	r := qr.QuoteResponse.Result[0]
	now := time.Now().UTC()
	prevClose := r.RegularMarketPreviousClose
	open := r.RegularMarketOpen
	high := r.RegularMarketDayHigh
	low := r.RegularMarketDayLow
	volume := r.RegularMarketVolume
	marketCap := r.MarketCap
	high52 := r.FiftyTwoWeekHigh
	low52 := r.FiftyTwoWeekLow

	name := r.LongName
	if name == "" {
		name = r.ShortName
	}

	return types.Quote{
		Symbol:            sym,
		Name:              name,
		Exchange:          r.FullExchangeName,
		Currency:          r.Currency,
		Price:             r.RegularMarketPrice,
		Change:            r.RegularMarketChange,
		ChangePercent:     r.RegularMarketChangePercent,
		PreviousClose:     &prevClose,
		Open:              &open,
		DayHigh:           &high,
		DayLow:            &low,
		Volume:            &volume,
		MarketCap:         &marketCap,
		FiftyTwoWeekHigh:  &high52,
		FiftyTwoWeekLow:   &low52,
		ProviderTimestamp: now,
		Source:            "market-data",
		FetchedAt:         now,
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency         string  `json:"currency"`
				ExchangeName     string  `json:"exchangeName"`
				GMTOffset        int     `json:"gmtoffset"`
				Timezone         string  `json:"timezone"`
				DataGranularity  string  `json:"dataGranularity"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var providerIntervalTable = normalize.DefaultProviderIntervalMap

// Chart fetches an OHLC series for symbol/interval/range.
func (c *Client) Chart(ctx context.Context, symbol, market string, requested normalize.Interval, rng normalize.Range) (types.Chart, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Chart{}, err
	}

	upstreamSymbol := sym
	if IsBIST(market) {
		upstreamSymbol = normalize.WithBISTSuffix(sym)
	}

	providerInterval := normalize.ResolveInterval(requested, providerIntervalTable)
	now := time.Now().UTC()
	period1 := normalize.Period1(rng, now)

	q := url.Values{}
	q.Set("interval", string(providerInterval))
	if !period1.IsZero() {
		q.Set("period1", strconv.FormatInt(period1.Unix(), 10))
	}
	q.Set("period2", strconv.FormatInt(now.Unix(), 10))

	u := c.cfg.BaseURL + "/v8/finance/chart/" + url.PathEscape(upstreamSymbol) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Chart{}, cerrors.Wrap(cerrors.NetworkError, err)
	}

	result, err := c.executor.Do(ctx, req, 0)
	if err != nil {
		return types.Chart{}, mapExecutorError(err)
	}

	var cr chartResponse
	if err := json.Unmarshal(result.Body, &cr); err != nil {
		return types.Chart{}, cerrors.Wrap(cerrors.ProviderError, err)
	}
	if cr.Chart.Error != nil {
		return types.Chart{}, cerrors.New(cerrors.ProviderError, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 {
		return types.Chart{}, cerrors.New(cerrors.SymbolNotFound, "symbol not found: "+sym)
	}

	res := cr.Chart.Result[0]
	var quotes struct {
		Open, High, Low, Close, Volume []*float64
	}
	if len(res.Indicators.Quote) > 0 {
		q0 := res.Indicators.Quote[0]
		quotes.Open, quotes.High, quotes.Low, quotes.Close, quotes.Volume = q0.Open, q0.High, q0.Low, q0.Close, q0.Volume
	}

	raw := make([]types.RawCandle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		rc := types.RawCandle{Time: &ts}
		if i < len(quotes.Open) {
			rc.Open = quotes.Open[i]
		}
		if i < len(quotes.High) {
			rc.High = quotes.High[i]
		}
		if i < len(quotes.Low) {
			rc.Low = quotes.Low[i]
		}
		if i < len(quotes.Close) {
			rc.Close = quotes.Close[i]
		}
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			rc.Volume = *quotes.Volume[i]
		}
		raw = append(raw, rc)
	}
	candles := types.NormalizeCandles(raw)

	chart := types.Chart{
		Symbol:            sym,
		RequestedInterval: string(requested),
		ProviderInterval:  string(providerInterval),
		RequestedRange:    string(rng),
		Candles:           candles,
		Timezone:          res.Meta.Timezone,
		GMTOffset:         res.Meta.GMTOffset,
		Currency:          res.Meta.Currency,
		Exchange:          res.Meta.ExchangeName,
		Source:            "market-data",
		FetchedAt:         now,
	}
	if len(candles) > 0 {
		first, last := candles[0].Time, candles[len(candles)-1].Time
		chart.FirstCandleTime = &first
		chart.LastCandleTime = &last
	}
	return chart, nil
}

type fundamentalsResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
				Website  string `json:"website"`
			} `json:"summaryProfile"`
			SummaryDetail struct {
				DividendYield    *float64 `json:"dividendYield"`
				DividendRate     *float64 `json:"dividendRate"`
				TrailingPE       *float64 `json:"trailingPE"`
				PriceToBook      *float64 `json:"priceToBook"`
				FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow"`
				FiftyDayAverage  *float64 `json:"fiftyDayAverage"`
				TwoHundredDayAverage *float64 `json:"twoHundredDayAverage"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Detail fetches fundamentals for a symbol.
func (c *Client) Detail(ctx context.Context, symbol, market string) (types.Detail, error) {
	sym, err := normalize.Symbol(symbol)
	if err != nil {
		return types.Detail{}, err
	}

	upstreamSymbol := sym
	if IsBIST(market) {
		upstreamSymbol = normalize.WithBISTSuffix(sym)
	}

	u := c.cfg.BaseURL + "/v10/finance/quoteSummary/" + url.PathEscape(upstreamSymbol) +
		"?modules=summaryProfile,summaryDetail"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Detail{}, cerrors.Wrap(cerrors.NetworkError, err)
	}

	result, err := c.executor.Do(ctx, req, 0)
	if err != nil {
		return types.Detail{}, mapExecutorError(err)
	}

	var fr fundamentalsResponse
	if err := json.Unmarshal(result.Body, &fr); err != nil {
		return types.Detail{}, cerrors.Wrap(cerrors.ProviderError, err)
	}
	if fr.QuoteSummary.Error != nil {
		return types.Detail{}, cerrors.New(cerrors.ProviderError, fr.QuoteSummary.Error.Description)
	}
	if len(fr.QuoteSummary.Result) == 0 {
		return types.Detail{}, cerrors.New(cerrors.SymbolNotFound, "symbol not found: "+sym)
	}

	r := fr.QuoteSummary.Result[0]
	now := time.Now().UTC()
	detail := types.Detail{
		Symbol:               sym,
		Sector:               stringPtrOrNil(r.SummaryProfile.Sector),
		Industry:             stringPtrOrNil(r.SummaryProfile.Industry),
		Website:              stringPtrOrNil(r.SummaryProfile.Website),
		DividendYield:        r.SummaryDetail.DividendYield,
		DividendRate:         r.SummaryDetail.DividendRate,
		PERatio:              r.SummaryDetail.TrailingPE,
		PriceToBook:          r.SummaryDetail.PriceToBook,
		FiftyTwoWeekHigh:     r.SummaryDetail.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:      r.SummaryDetail.FiftyTwoWeekLow,
		FiftyDayAverage:      r.SummaryDetail.FiftyDayAverage,
		TwoHundredDayAverage: r.SummaryDetail.TwoHundredDayAverage,
		Source:               "market-data",
		FetchedAt:            now,
	}
	return detail, nil
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapExecutorError(err error) error {
	execErr, ok := err.(*httpclient.Error)
	if !ok {
		return cerrors.Wrap(cerrors.NetworkError, err)
	}

	switch execErr.Kind {
	case httpclient.KindTimeout, httpclient.KindTransport, httpclient.KindCanceled:
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
