package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	cerrors "github.com/marketpulse/aggregator/internal/errors"
	"github.com/marketpulse/aggregator/internal/providers/normalize"
)

func notFoundErr() error {
	return cerrors.New(cerrors.NotFound, "resource not found")
}

func (s *Server) marketServices(r *http.Request) (MarketServices, error) {
	market := mux.Vars(r)["market"]
	svc, ok := s.markets[market]
	if !ok {
		return MarketServices{}, cerrors.New(cerrors.NotFound, "unknown market: "+market)
	}
	return svc, nil
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	svc, err := s.marketServices(r)
	if err != nil {
		writeError(w, err)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, cerrors.New(cerrors.MissingParam, "symbol is required"))
		return
	}
	quote, err := svc.Quote.Quote(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, quote)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	svc, err := s.marketServices(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("symbols")
	var symbols []string
	if raw != "" {
		symbols = splitCSV(raw)
	}

	type quoteOrError struct {
		Symbol string      `json:"symbol"`
		Quote  interface{} `json:"quote,omitempty"`
		Error  string      `json:"error,omitempty"`
	}
	results := make([]quoteOrError, 0, len(symbols))
	for _, sym := range symbols {
		q, err := svc.Quote.Quote(r.Context(), sym)
		if err != nil {
			results = append(results, quoteOrError{Symbol: sym, Error: err.Error()})
			continue
		}
		results = append(results, quoteOrError{Symbol: sym, Quote: q})
	}
	writeResult(w, http.StatusOK, results)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	svc, err := s.marketServices(r)
	if err != nil {
		writeError(w, err)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, cerrors.New(cerrors.MissingParam, "symbol is required"))
		return
	}
	interval, err := normalize.ParseInterval(queryOrDefault(r, "interval", string(normalize.Interval1d)))
	if err != nil {
		writeError(w, err)
		return
	}
	rng, err := resolveRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	chart, err := svc.Chart.Chart(r.Context(), symbol, interval, rng)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, chart)
}

// resolveRange accepts either `range` (an enum value) or `rangeDays` (an
// integer, mapped to the nearest enum bucket).
func resolveRange(r *http.Request) (normalize.Range, error) {
	if raw := r.URL.Query().Get("range"); raw != "" {
		return normalize.ParseRange(raw)
	}
	if raw := r.URL.Query().Get("rangeDays"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return "", cerrors.New(cerrors.InvalidRange, "rangeDays must be an integer")
		}
		return rangeDaysToEnum(days), nil
	}
	return normalize.Range1mo, nil
}

func rangeDaysToEnum(days int) normalize.Range {
	switch {
	case days <= 1:
		return normalize.Range1d
	case days <= 5:
		return normalize.Range5d
	case days <= 30:
		return normalize.Range1mo
	case days <= 90:
		return normalize.Range3mo
	case days <= 180:
		return normalize.Range6mo
	case days <= 365:
		return normalize.Range1y
	case days <= 730:
		return normalize.Range2y
	case days <= 1825:
		return normalize.Range5y
	default:
		return normalize.Range10y
	}
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	svc, err := s.marketServices(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if svc.Detail == nil {
		writeError(w, cerrors.New(cerrors.NotFound, "detail not supported for this market"))
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, cerrors.New(cerrors.MissingParam, "symbol is required"))
		return
	}
	detail, err := svc.Detail.Detail(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, detail)
}

func (s *Server) handleMarketScan(w http.ResponseWriter, r *http.Request) {
	svc, err := s.marketServices(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("symbols")
	var symbols []string
	if raw != "" {
		symbols = splitCSV(raw)
	}
	result, err := svc.Batch.Scan(r.Context(), symbols)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, result)
}

func (s *Server) handleNewsList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, cerrors.New(cerrors.MissingParam, "category is required"))
		return
	}
	if !validNewsCategory(category) {
		writeError(w, cerrors.New(cerrors.InvalidCategory, "unsupported category: "+category))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			writeError(w, cerrors.New(cerrors.InvalidLimit, "limit must be between 1 and 50"))
			return
		}
		limit = parsed
	}

	items, err := s.news.ListByCategory(r.Context(), category, limit)
	if err != nil {
		writeError(w, cerrors.Wrap(cerrors.InternalError, err))
		return
	}
	writeResult(w, http.StatusOK, items)
}

func validNewsCategory(c string) bool {
	switch c {
	case "crypto", "bist", "us", "economy":
		return true
	default:
		return false
	}
}

func (s *Server) handleNewsArticle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	item, found, err := s.news.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, cerrors.Wrap(cerrors.InternalError, err))
		return
	}
	if !found {
		writeError(w, cerrors.New(cerrors.NotFound, "article not found: "+id))
		return
	}
	writeResult(w, http.StatusOK, item)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.promReg.ServeHTTP(w, r)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryOrDefault(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
