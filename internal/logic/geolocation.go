package logic

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

// GeolocationMatcher decides whether a visitor location satisfies a
// billboard's target geolocations.
type GeolocationMatcher struct {
	config  GeolocationConfig
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewGeolocationMatcher returns a matcher consulting cfg for country granularity.
func NewGeolocationMatcher(cfg GeolocationConfig, logger *zap.Logger, metrics observability.MetricsRegistry) *GeolocationMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &GeolocationMatcher{config: cfg, logger: logger, metrics: metrics}
}

// Matches reports whether location satisfies targets.
//
// Untargeted billboards match everywhere. Otherwise a country-level location
// only matches a bare country target, while a regional location matches its
// exact "CC-RR" target or the bare country target covering all its regions.
// Missing or malformed locations, and countries without targeting support,
// never match.
func (m *GeolocationMatcher) Matches(ctx context.Context, targets []models.Geolocation, location string) bool {
	if len(targets) == 0 {
		return true
	}
	if location == "" {
		return false
	}
	loc, err := models.ParseGeolocation(location)
	if err != nil {
		return false
	}
	if m.granularity(ctx, loc.Country) == GranularityUnsupported {
		return false
	}

	for _, t := range targets {
		if !strings.EqualFold(t.Country, loc.Country) {
			continue
		}
		if t.Region == "" {
			// a bare country target covers the country and every region in it
			return true
		}
		if loc.HasRegion() && strings.EqualFold(t.Region, loc.Region) {
			return true
		}
	}
	return false
}

func (m *GeolocationMatcher) granularity(ctx context.Context, country string) Granularity {
	if m.config == nil {
		return GranularityUnsupported
	}
	g, err := m.config.GranularityOf(ctx, country)
	if err != nil {
		m.logger.Warn("geolocation config unavailable, treating country as unsupported",
			zap.String("country", country), zap.Error(err))
		m.metrics.IncrementCollaboratorErrors("geolocation_config")
		return GranularityUnsupported
	}
	return g
}
