package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/middleware"
)

// ReloadHandler reloads billboards and segment memberships from Postgres and
// asks peer instances to do the same.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "reload"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	res, err := s.Reload(r.Context())
	if err != nil {
		logger.Error("reload failed", zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "reload failed", http.StatusInternalServerError)
		return
	}

	s.NotifyPeers(r.Context(), "reload")
	logger.Info("billboards reloaded",
		zap.Int("loaded", res.Loaded),
		zap.Int("rejected", res.Rejected),
		zap.Int("segments", res.Segments))
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
