package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/db"
	"github.com/patrickwarner/billboardserve/internal/geoip"
	"github.com/patrickwarner/billboardserve/internal/logic/selectors"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

// ErrNoSource is returned by Reload when no billboard source is configured.
var ErrNoSource = errors.New("billboard source unavailable")

// Source supplies billboards and segment memberships on reload. *db.Postgres implements it.
type Source interface {
	db.BillboardSource
	db.SegmentSource
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger     *zap.Logger
	Store      models.BillboardStore
	Source     Source
	Redis      *db.RedisStore
	Query      *selectors.FilteredAdsQuery
	GeoIP      *geoip.GeoIP
	DebugTrace bool
	Metrics    observability.MetricsRegistry
	reloadMu   sync.Mutex
}

// NewServer constructs a Server. source, redis and geo may be nil.
func NewServer(logger *zap.Logger, store models.BillboardStore, source Source, redis *db.RedisStore, query *selectors.FilteredAdsQuery, geo *geoip.GeoIP, debug bool, metrics observability.MetricsRegistry) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:     logger,
		Store:      store,
		Source:     source,
		Redis:      redis,
		Query:      query,
		GeoIP:      geo,
		DebugTrace: debug,
		Metrics:    metrics,
	}
}

// Reload refreshes the billboard snapshot from the source and warms the Redis
// segment cache.
func (s *Server) Reload(ctx context.Context) (db.ReloadResult, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	res, err := s.reload(ctx)
	if err != nil {
		s.Metrics.IncrementReloads("error")
		return res, err
	}
	s.Metrics.IncrementReloads("success")
	return res, nil
}

func (s *Server) reload(ctx context.Context) (db.ReloadResult, error) {
	if s.Source == nil {
		return db.ReloadResult{}, ErrNoSource
	}
	res, err := db.Init(ctx, s.Source, s.Store)
	if err != nil {
		return res, fmt.Errorf("reload billboards: %w", err)
	}
	if res.Rejected > 0 {
		s.Logger.Warn("billboards rejected during reload", zap.Int("rejected", res.Rejected))
	}

	if s.Redis == nil {
		return res, nil
	}
	if res.Segments, err = db.SyncSegments(ctx, s.Source, s.Redis); err != nil {
		return res, fmt.Errorf("sync segments: %w", err)
	}
	return res, nil
}

// NotifyPeers asks every other instance subscribed to Redis to reload.
func (s *Server) NotifyPeers(ctx context.Context, reason string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.PublishUpdate(ctx, reason); err != nil {
		s.Logger.Error("failed to publish update message", zap.Error(err))
	}
}

// RefreshFromPeers reloads the snapshot whenever another instance publishes an
// update notice. It returns when ctx is done.
func (s *Server) RefreshFromPeers(ctx context.Context) error {
	if s.Redis == nil || s.Source == nil {
		return nil
	}
	return s.Redis.SubscribeUpdates(ctx, func(reason string) {
		s.reloadMu.Lock()
		defer s.reloadMu.Unlock()
		if _, err := db.Init(ctx, s.Source, s.Store); err != nil {
			s.Logger.Error("peer reload", zap.String("reason", reason), zap.Error(err))
			s.Metrics.IncrementReloads("error")
			return
		}
		s.Metrics.IncrementReloads("peer")
	})
}
