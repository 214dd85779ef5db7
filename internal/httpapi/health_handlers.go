package httpapi

import (
	"net/http"

	"github.com/marketpulse/aggregator/internal/health"
)

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeResult(w, http.StatusOK, map[string]bool{"alive": health.Liveness()})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ready, latency := health.Readiness(r.Context(), s.pinger, 0)

	body := map[string]any{
		"ready":      ready,
		"latencyMs":  latency.Milliseconds(),
	}
	if s.tracker != nil {
		body["fresh"] = s.tracker.Fresh()
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeResult(w, status, body)
}

func (s *Server) handleCollectorStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var statuses any = []any{}
	if s.tracker != nil {
		statuses = s.tracker.Statuses()
	}
	writeResult(w, http.StatusOK, statuses)
}
