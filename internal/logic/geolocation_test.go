package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

type granularities map[string]Granularity

func (g granularities) GranularityOf(_ context.Context, country string) (Granularity, error) {
	return g[country], nil
}

type brokenConfig struct{}

func (brokenConfig) GranularityOf(context.Context, string) (Granularity, error) {
	return GranularityUnsupported, errors.New("settings unavailable")
}

func targets(t *testing.T, codes ...string) []models.Geolocation {
	t.Helper()
	out := make([]models.Geolocation, 0, len(codes))
	for _, c := range codes {
		g, err := models.ParseGeolocation(c)
		if err != nil {
			t.Fatalf("parse %s: %v", c, err)
		}
		out = append(out, g)
	}
	return out
}

func TestGeolocationMatcher(t *testing.T) {
	m := NewGeolocationMatcher(granularities{
		"US": GranularityWithRegions,
		"CA": GranularityWithRegions,
		"NZ": GranularityWithoutRegions,
	}, nil, nil)

	tests := []struct {
		name     string
		targets  []string
		location string
		want     bool
	}{
		{"untargeted matches anywhere", nil, "FR-BRE", true},
		{"untargeted matches missing location", nil, "", true},
		{"missing location", []string{"CA"}, "", false},
		{"country target covers region", []string{"CA"}, "CA-NL", true},
		{"exact region", []string{"CA-QC", "CA-NL"}, "CA-NL", true},
		{"other region", []string{"CA-QC"}, "CA-NL", false},
		{"other country", []string{"CA-QC", "CA-NL"}, "US-CA", false},
		{"region target never satisfies country query", []string{"CA-QC"}, "CA", false},
		{"country target satisfies country query", []string{"CA"}, "CA", true},
		{"lower case location", []string{"US-NY"}, "us-ny", true},
		{"unsupported country", []string{"FR"}, "FR-BRE", false},
		{"country without regions", []string{"NZ"}, "NZ-AUK", true},
		{"malformed location", []string{"CA"}, "Canada", false},
		{"trailing dash", []string{"CA"}, "CA-", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Matches(context.Background(), targets(t, tt.targets...), tt.location))
		})
	}
}

func TestGeolocationMatcherFailsClosed(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	m := NewGeolocationMatcher(brokenConfig{}, nil, metrics)

	assert.False(t, m.Matches(context.Background(), targets(t, "US"), "US-CA"))
	assert.True(t, m.Matches(context.Background(), nil, "US-CA"))
	assert.Equal(t, 1, metrics.Count("collaborator_errors:geolocation_config"))

	assert.False(t, NewGeolocationMatcher(nil, nil, nil).Matches(context.Background(), targets(t, "US"), "US"))
}

func TestParseGranularity(t *testing.T) {
	assert.Equal(t, GranularityWithRegions, ParseGranularity("with_regions"))
	assert.Equal(t, GranularityWithoutRegions, ParseGranularity("without_regions"))
	assert.Equal(t, GranularityUnsupported, ParseGranularity("regions"))
	assert.Equal(t, "without_regions", GranularityWithoutRegions.String())
	assert.Equal(t, "unsupported", Granularity(42).String())
}
