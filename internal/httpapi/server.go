// Package httpapi is the HTTP/WebSocket surface: routing, middleware, and
// envelope-shaped handlers over the provider services, batch scanner, and
// news store.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/marketpulse/aggregator/internal/health"
	"github.com/marketpulse/aggregator/internal/metrics"
	"github.com/marketpulse/aggregator/internal/news"
	"github.com/marketpulse/aggregator/internal/services"
	"github.com/marketpulse/aggregator/internal/stream"
)

// MarketServices bundles the per-market provider services the quote/chart/
// detail/scan handlers dispatch to.
type MarketServices struct {
	Quote  *services.QuoteService
	Chart  *services.ChartService
	Detail *services.DetailService
	Batch  *services.BatchMarketService
}

// ServerConfig configures listen address and timeouts.
type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	RequestTimeout   time.Duration
	RateLimitPerMin  int
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 8 * time.Second
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = 120
	}
	return c
}

// Server is the composed HTTP server: one *mux.Router, one *http.Server,
// and the application collaborators every handler dispatches to.
type Server struct {
	cfg        ServerConfig
	router     *mux.Router
	httpServer *http.Server

	markets map[string]MarketServices
	news    news.Reader
	tracker *health.Tracker
	pinger  health.Pinger
	metrics *metrics.Registry
	promReg http.Handler

	priceStream *stream.Hub
	tradeStream *stream.Hub
}

// NewServer builds a Server and wires every route. markets maps a market
// path segment (e.g. "crypto", "bist", "us") to its services.
func NewServer(
	cfg ServerConfig,
	markets map[string]MarketServices,
	newsReader news.Reader,
	tracker *health.Tracker,
	pinger health.Pinger,
	metricsRegistry *metrics.Registry,
	promHandler http.Handler,
	priceStream *stream.Hub,
	tradeStream *stream.Hub,
) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:         cfg,
		router:      mux.NewRouter(),
		markets:     markets,
		news:        newsReader,
		tracker:     tracker,
		pinger:      pinger,
		metrics:     metricsRegistry,
		promReg:     promHandler,
		priceStream: priceStream,
		tradeStream: tradeStream,
	}
	s.routes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
	s.router.Use(corsMiddleware)

	limiter := newIPRateLimiter(s.cfg.RateLimitPerMin)

	healthRoutes := s.router.PathPrefix("/health").Subrouter()
	healthRoutes.HandleFunc("/live", s.handleLiveness).Methods(http.MethodGet)
	healthRoutes.HandleFunc("/ready", s.handleReadiness).Methods(http.MethodGet)
	healthRoutes.HandleFunc("/collectors", s.handleCollectorStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/admin/collectors", s.handleCollectorStatus).Methods(http.MethodGet)

	if s.priceStream != nil {
		s.router.HandleFunc("/ws/price-stream", s.priceStream.HandleWebSocket)
	}
	if s.tradeStream != nil {
		s.router.HandleFunc("/ws/trade-stream", s.tradeStream.HandleWebSocket)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.Use(timeoutMiddleware(s.cfg.RequestTimeout))
	api.Use(limiter.middleware)

	api.HandleFunc("/{market}/quote", s.handleQuote).Methods(http.MethodGet)
	api.HandleFunc("/{market}/quotes", s.handleQuotes).Methods(http.MethodGet)
	api.HandleFunc("/{market}/chart", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/{market}/detail", s.handleDetail).Methods(http.MethodGet)
	api.HandleFunc("/markets/{market}", s.handleMarketScan).Methods(http.MethodGet)
	api.HandleFunc("/news", s.handleNewsList).Methods(http.MethodGet)
	api.HandleFunc("/news/article/{id}", s.handleNewsArticle).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, notFoundErr())
	})
}

// Start begins serving and blocks until the listener returns.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Router exposes the underlying router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
