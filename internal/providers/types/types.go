// Package types holds the normalized domain shapes shared across provider
// clients, services, and the HTTP/WebSocket surface.
package types

import "time"

// Quote is a normalized point-in-time price for a symbol.
type Quote struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name,omitempty"`
	DisplayName      string    `json:"displayName,omitempty"`
	Exchange         string    `json:"exchange,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	Price            float64   `json:"price"`
	Change           float64   `json:"change"`
	ChangePercent    float64   `json:"changePercent"`
	PreviousClose    *float64  `json:"previousClose,omitempty"`
	Open             *float64  `json:"open,omitempty"`
	DayHigh          *float64  `json:"dayHigh,omitempty"`
	DayLow           *float64  `json:"dayLow,omitempty"`
	Volume           *float64  `json:"volume,omitempty"`
	MarketCap        *float64  `json:"marketCap,omitempty"`
	FiftyTwoWeekHigh *float64  `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow  *float64  `json:"fiftyTwoWeekLow,omitempty"`
	ProviderTimestamp time.Time `json:"providerTimestamp"`
	Source           string    `json:"source"`
	Stale            bool      `json:"stale,omitempty"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// Candle is a single OHLCV sample.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Chart is a normalized OHLC series for a symbol and requested window.
type Chart struct {
	Symbol            string    `json:"symbol"`
	RequestedInterval string    `json:"requestedInterval"`
	ProviderInterval  string    `json:"providerInterval"`
	RequestedRange    string    `json:"requestedRange"`
	Candles           []Candle  `json:"candles"`
	Timezone          string    `json:"timezone,omitempty"`
	GMTOffset         int       `json:"gmtOffset,omitempty"`
	Currency          string    `json:"currency,omitempty"`
	Exchange          string    `json:"exchange,omitempty"`
	FirstCandleTime   *time.Time `json:"firstCandleTime,omitempty"`
	LastCandleTime    *time.Time `json:"lastCandleTime,omitempty"`
	Source            string    `json:"source"`
	Stale             bool      `json:"stale,omitempty"`
	FetchedAt         time.Time `json:"fetchedAt"`
}

// Detail holds fundamentals for a symbol. All fields are optional except
// Symbol; a field the provider did not supply stays nil and is omitted from
// the JSON rather than filled with a placeholder. Only the market-data
// provider builds Details; the crypto market has no detail service.
type Detail struct {
	Symbol              string     `json:"symbol"`
	Name                string     `json:"name,omitempty"`
	Sector              *string    `json:"sector,omitempty"`
	Industry            *string    `json:"industry,omitempty"`
	Website             *string    `json:"website,omitempty"`
	DividendYield       *float64   `json:"dividendYield,omitempty"`
	DividendRate        *float64   `json:"dividendRate,omitempty"`
	PERatio             *float64   `json:"peRatio,omitempty"`
	PEGRatio            *float64   `json:"pegRatio,omitempty"`
	PriceToBook         *float64   `json:"priceToBook,omitempty"`
	FiftyTwoWeekHigh    *float64   `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow     *float64   `json:"fiftyTwoWeekLow,omitempty"`
	FiftyDayAverage     *float64   `json:"fiftyDayAverage,omitempty"`
	TwoHundredDayAverage *float64  `json:"twoHundredDayAverage,omitempty"`
	ListingDate         *time.Time `json:"listingDate,omitempty"`
	Source              string     `json:"source"`
	Stale               bool       `json:"stale,omitempty"`
	FetchedAt           time.Time  `json:"fetchedAt"`
}

// NewsSource enumerates the ingestion origin of a NewsItem.
type NewsSource string

const (
	NewsSourceGDELT      NewsSource = "gdelt"
	NewsSourceSECRSS     NewsSource = "sec_rss"
	NewsSourceKAP        NewsSource = "kap"
	NewsSourceGoogleNews NewsSource = "google_news_rss"
)

// NewsItem is a normalized, canonicalized news record.
type NewsItem struct {
	ID           string          `json:"id,omitempty"`
	Source       NewsSource      `json:"source"`
	SourceID     string          `json:"sourceId,omitempty"`
	Category     string          `json:"category,omitempty"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	PublishedAt  time.Time       `json:"publishedAt"`
	Language     string          `json:"language,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Raw          map[string]any  `json:"raw,omitempty"`
	DiscoveredAt time.Time       `json:"discoveredAt"`
}

// CategoryForSource maps an ingestion collector to the broad news category
// the read surface filters by (GET /news?category=). sec_rss files are
// always US-listed issuers, kap always Borsa Istanbul, google_news_rss
// covers crypto-focused queries, and gdelt's global event feed is
// classified as economy.
func CategoryForSource(source NewsSource) string {
	switch source {
	case NewsSourceSECRSS:
		return "us"
	case NewsSourceKAP:
		return "bist"
	case NewsSourceGoogleNews:
		return "crypto"
	case NewsSourceGDELT:
		return "economy"
	default:
		return "economy"
	}
}

// Market enumerates the market a Ticker belongs to.
type Market string

const (
	MarketCrypto Market = "crypto"
	MarketBIST   Market = "bist"
	MarketUS     Market = "us"
)

// Ticker is a write-once symbol record.
type Ticker struct {
	ID     string `json:"id,omitempty"`
	Symbol string `json:"symbol"`
	Market Market `json:"market"`
	Name   string `json:"name,omitempty"`
}

// Tag is a write-once category label.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// TickerAssociation links a NewsItem to a Ticker with a confidence score.
type TickerAssociation struct {
	NewsItemID string  `json:"newsItemId"`
	TickerID   string  `json:"tickerId"`
	Confidence float64 `json:"confidence"`
}

// TagAssociation links a NewsItem to a Tag.
type TagAssociation struct {
	NewsItemID string `json:"newsItemId"`
	TagID      string `json:"tagId"`
}

// CollectorStats counts a collector's lifetime runs.
type CollectorStats struct {
	TotalRuns      int `json:"totalRuns"`
	SuccessfulRuns int `json:"successfulRuns"`
	FailedRuns     int `json:"failedRuns"`
	ItemsCollected int `json:"itemsCollected"`
}

// CollectorStatus reports a single ingestion collector's health.
type CollectorStatus struct {
	Collector     string          `json:"collector"`
	LastRunAt     *time.Time      `json:"lastRunAt,omitempty"`
	LastSuccessAt *time.Time      `json:"lastSuccessAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	IsRunning     bool            `json:"isRunning"`
	NextRunAt     *time.Time      `json:"nextRunAt,omitempty"`
	Stats         CollectorStats  `json:"stats"`
}

// BatchItemError is one failed symbol within a batch market scan.
type BatchItemError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// BatchResult is the aggregate Batch Market Service response.
type BatchResult struct {
	Count   int              `json:"count"`
	Success int              `json:"success"`
	Failed  int              `json:"failed"`
	Quotes  []Quote          `json:"quotes"`
	Errors  []BatchItemError `json:"errors"`
	Source  string           `json:"source"`
	Stale   bool             `json:"stale,omitempty"`
}
