package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/analytics"
	"github.com/patrickwarner/billboardserve/internal/api"
	"github.com/patrickwarner/billboardserve/internal/config"
	"github.com/patrickwarner/billboardserve/internal/db"
	"github.com/patrickwarner/billboardserve/internal/geoip"
	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/logic/filters"
	"github.com/patrickwarner/billboardserve/internal/logic/selectors"
	"github.com/patrickwarner/billboardserve/internal/middleware"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	collaborators := filters.Collaborators{
		Tenant:      middleware.ContextTenantScope{},
		Geolocation: logic.NewGeolocationSettings(cfg.EnabledCountries),
	}
	var store *db.RedisStore
	if cfg.RedisEnabled {
		store, err = db.InitRedis(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer store.Close()
		collaborators.Flags = store
		collaborators.Segments = store
	} else {
		collaborators.Flags = logic.NewStaticFlags(cfg.FeatureFlags)
		logger.Warn("redis disabled, audience segment billboards will not be served",
			zap.Strings("feature_flags", cfg.FeatureFlags))
	}

	var decisions analytics.AnalyticsService
	if cfg.AnalyticsEnabled {
		analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN, metricsRegistry)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer analyticsSvc.Close()
		decisions = analyticsSvc
	}

	var geoSvc *geoip.GeoIP
	if cfg.GeoIPDB != "" {
		geoSvc, err = geoip.Init(cfg.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to load geoip db: %w", err)
		}
		defer func() { _ = geoSvc.Close() }()
	}

	billboards := models.NewInMemoryBillboardStore()
	filter := filters.NewEligibilityFilter(collaborators, logger, metricsRegistry)
	query := selectors.NewFilteredAdsQuery(filter, decisions, logger, metricsRegistry)
	srvDeps := api.NewServer(logger, billboards, pg, store, query, geoSvc, cfg.DebugTrace, metricsRegistry)

	res, err := srvDeps.Reload(ctx)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	logger.Info("billboards loaded",
		zap.Int("loaded", res.Loaded),
		zap.Int("rejected", res.Rejected),
		zap.Int("segments", res.Segments))

	if store != nil {
		go func() {
			if err := srvDeps.RefreshFromPeers(ctx); err != nil {
				logger.Error("peer refresh", zap.Error(err))
			}
		}()
	}

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger), middleware.WithSubforem(cfg.SubforemDomains))
	r.HandleFunc("/billboards/{area}", srvDeps.BillboardsHandler).Methods("GET")
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", srvDeps.ReloadHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "billboardserve"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Billboard server running", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if _, err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
