package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketpulse/aggregator/internal/config"
	"github.com/marketpulse/aggregator/internal/health"
	"github.com/marketpulse/aggregator/internal/httpapi"
	"github.com/marketpulse/aggregator/internal/httpclient"
	"github.com/marketpulse/aggregator/internal/logging"
	"github.com/marketpulse/aggregator/internal/metrics"
	"github.com/marketpulse/aggregator/internal/news"
	"github.com/marketpulse/aggregator/internal/providers/aitext"
	"github.com/marketpulse/aggregator/internal/providers/crypto"
	"github.com/marketpulse/aggregator/internal/providers/market"
	newsprovider "github.com/marketpulse/aggregator/internal/providers/news"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
	"github.com/marketpulse/aggregator/internal/providers/types"
	"github.com/marketpulse/aggregator/internal/services"
	"github.com/marketpulse/aggregator/internal/stream"
)

func serveCmd(ctx context.Context) *cobra.Command {
	var (
		logLevel     string
		consoleLog   bool
		newsInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket aggregator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), logLevel, consoleLog, newsInterval)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().BoolVar(&consoleLog, "console-log", true, "human-readable console logging instead of JSON")
	cmd.Flags().DurationVar(&newsInterval, "news-poll-interval", 5*time.Minute, "RSS collector poll interval")
	return cmd
}

func runServe(ctx context.Context, logLevel string, consoleLog bool, newsInterval time.Duration) error {
	logging.Init(logLevel, consoleLog)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	providersCfg, err := config.LoadProvidersConfig(cfg.ProvidersConfigPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.New(reg)
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	bodyCache := httpclient.NewBodyCacheAuto()
	executor := httpclient.New(httpclient.Config{
		Timeout:               cfg.HTTPTimeout,
		MaxRetries:            cfg.HTTPRetries,
		DefaultMaxConcurrency: providersCfg.Global.MaxConcurrentPerHost,
		UserAgent:             providersCfg.Global.UserAgent,
	}, bodyCache)

	cryptoClient := crypto.New(crypto.Config{}, executor)
	marketClient := market.New(market.Config{}, executor)
	aiClient := aitext.New(aitext.Config{
		BaseURL: providerBaseURL(providersCfg, "aitext"),
	}, executor)

	tracker := health.NewTracker(cfg.NewsFreshnessThreshold)

	var newsStore *news.PostgresStore
	if cfg.DatabaseURL != "" {
		db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		newsStore = news.NewPostgresStore(db, 5*time.Second)
	}

	markets := map[string]httpapi.MarketServices{
		"crypto": {
			Quote:  services.NewQuoteService(services.QuoteServiceConfig{Mock: true, Alias: crypto.ResolveAlias}, cryptoClient.Quote),
			Chart:  services.NewChartService(services.ChartServiceConfig{}, cryptoClient.Klines),
			Detail: nil,
			Batch:  services.NewBatchMarketService(services.BatchMarketServiceConfig{}, "crypto", cryptoClient.Quote),
		},
		"us": {
			Quote: services.NewQuoteService(services.QuoteServiceConfig{}, func(ctx context.Context, symbol string) (types.Quote, error) {
				return marketClient.Quote(ctx, symbol, "us")
			}),
			Chart: services.NewChartService(services.ChartServiceConfig{}, func(ctx context.Context, symbol string, interval normalize.Interval, rng normalize.Range) (types.Chart, error) {
				return marketClient.Chart(ctx, symbol, "us", interval, rng)
			}),
			Detail: services.NewDetailService(services.DetailServiceConfig{}, func(ctx context.Context, symbol string) (types.Detail, error) {
				return marketClient.Detail(ctx, symbol, "us")
			}),
			Batch: services.NewBatchMarketService(services.BatchMarketServiceConfig{}, "us", func(ctx context.Context, symbol string) (types.Quote, error) {
				return marketClient.Quote(ctx, symbol, "us")
			}),
		},
		"bist": {
			Quote: services.NewQuoteService(services.QuoteServiceConfig{}, func(ctx context.Context, symbol string) (types.Quote, error) {
				return marketClient.Quote(ctx, symbol, "bist")
			}),
			Chart: services.NewChartService(services.ChartServiceConfig{}, func(ctx context.Context, symbol string, interval normalize.Interval, rng normalize.Range) (types.Chart, error) {
				return marketClient.Chart(ctx, symbol, "bist", interval, rng)
			}),
			Detail: services.NewDetailService(services.DetailServiceConfig{}, func(ctx context.Context, symbol string) (types.Detail, error) {
				return marketClient.Detail(ctx, symbol, "bist")
			}),
			Batch: services.NewBatchMarketService(services.BatchMarketServiceConfig{}, "bist", func(ctx context.Context, symbol string) (types.Quote, error) {
				return marketClient.Quote(ctx, symbol, "bist")
			}),
		},
	}

	priceStream := stream.NewHub(stream.Config{
		ClientSymbolCap: 50,
		MessageKind:     "price",
	}, crypto.NewStreamClient(crypto.StreamConfig{}))
	go priceStream.Run(ctx)

	tradeStream := stream.NewHub(stream.Config{
		ClientSymbolCap: 50,
		ServerSymbolCap: 200,
		MessageKind:     "trade",
	}, market.NewPollStreamClient(market.PollStreamConfig{Market: "us"}, marketClient))
	go tradeStream.Run(ctx)

	var newsReader news.Reader = emptyNewsReader{}
	if newsStore != nil {
		newsReader = newsStore
	}

	var pinger health.Pinger = noopPinger{}
	if newsStore != nil {
		pinger = newsStore
	}

	server := httpapi.NewServer(
		httpapi.ServerConfig{Port: cfg.Port},
		markets,
		newsReader,
		tracker,
		pinger,
		metricsRegistry,
		promHandler,
		priceStream,
		tradeStream,
	)

	if newsStore != nil {
		go runNewsCollectors(ctx, cfg, tracker, newsStore, aiClient, newsInterval)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if priceStream != nil {
			priceStream.Shutdown()
		}
		if tradeStream != nil {
			tradeStream.Shutdown()
		}
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func runNewsCollectors(ctx context.Context, cfg *config.AppConfig, tracker *health.Tracker, store *news.PostgresStore, aiClient *aitext.Client, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	feeds := collectorFeeds(cfg)
	client := newsprovider.New(newsprovider.Config{Feeds: feeds})

	summarizer := func(ctx context.Context, title, body string) (string, error) {
		resp, err := aiClient.Summarize(ctx, aitext.SummarizeRequest{Text: title + "\n" + body, MaxWords: 60})
		return resp.Summary, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		collectOnce(ctx, tracker, store, client, summarizer)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func collectOnce(ctx context.Context, tracker *health.Tracker, store *news.PostgresStore, client *newsprovider.Client, summarizer news.Summarizer) {
	tracker.RunStarted("news")

	items, fetchErrs := client.FetchAll(ctx)
	for _, err := range fetchErrs {
		log.Warn().Err(err).Msg("news feed fetch failed")
	}

	items = news.FillMissingSummaries(ctx, summarizer, items)

	knownSymbols, err := store.KnownSymbols(ctx)
	if err != nil {
		tracker.RunFailed("news", err)
		return
	}
	symbolSet := make(map[string]bool, len(knownSymbols))
	for _, s := range knownSymbols {
		symbolSet[s] = true
	}

	tagger := func(title, summary string) ([]string, []string) {
		tagged := news.Tag(title+" "+summary, symbolSet)
		return tagged.Tickers, tagged.Tags
	}

	result := news.Ingest(ctx, store, tagger, items)
	if len(result.Errors) > 0 {
		tracker.RunFailed("news", errString(result.Errors[0]))
		return
	}
	tracker.RunSucceeded("news", result.Inserted+result.Updated)
}

func collectorFeeds(cfg *config.AppConfig) []newsprovider.Feed {
	var feeds []newsprovider.Feed
	if cfg.GDELTEnabled {
		feeds = append(feeds, newsprovider.Feed{Source: types.NewsSourceGDELT, URL: "https://api.gdeltproject.org/api/v2/doc/doc?query=markets&format=rss"})
	}
	if cfg.SECRSSEnabled {
		feeds = append(feeds, newsprovider.Feed{Source: types.NewsSourceSECRSS, URL: "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&type=8-K&output=atom"})
	}
	if cfg.KAPEnabled {
		feeds = append(feeds, newsprovider.Feed{Source: types.NewsSourceKAP, URL: "https://www.kap.org.tr/en/rss"})
	}
	if cfg.GoogleNewsRSSEnabled {
		feeds = append(feeds, newsprovider.Feed{Source: types.NewsSourceGoogleNews, URL: "https://news.google.com/rss/search?q=crypto"})
	}
	return feeds
}

func providerBaseURL(cfg *config.ProvidersConfig, name string) string {
	tuning, ok := cfg.Get(name)
	if !ok {
		return ""
	}
	return tuning.BaseURL
}

type errString string

func (e errString) Error() string { return string(e) }

type emptyNewsReader struct{}

func (emptyNewsReader) ListByCategory(ctx context.Context, category string, limit int) ([]types.NewsItem, error) {
	return nil, nil
}

func (emptyNewsReader) GetByID(ctx context.Context, id string) (types.NewsItem, bool, error) {
	return types.NewsItem{}, false, nil
}

type noopPinger struct{}

func (noopPinger) Ping(ctx context.Context) error { return nil }
