package logic

import (
	"context"
	"strings"
)

// FlagLocationTargeting gates the geolocation predicate.
const FlagLocationTargeting = "billboard_location_targeting"

// FeatureFlagProvider answers boolean feature flag lookups.
type FeatureFlagProvider interface {
	Enabled(ctx context.Context, flag string) (bool, error)
}

// AudienceSegmentOracle answers audience segment membership lookups.
type AudienceSegmentOracle interface {
	MemberOf(ctx context.Context, segmentID, userID int) (bool, error)
}

// GeolocationConfig reports how targeting is evaluated for a country.
type GeolocationConfig interface {
	GranularityOf(ctx context.Context, country string) (Granularity, error)
}

// TenantScopeState exposes the subforem the current request is scoped to.
type TenantScopeState interface {
	CurrentSubforemID(ctx context.Context) (int, bool)
}

// Granularity is the level at which a country's geolocation targeting is evaluated.
type Granularity int

const (
	// GranularityUnsupported countries never match targeted billboards.
	GranularityUnsupported Granularity = iota
	// GranularityWithRegions countries are evaluated per ISO 3166-2 subdivision.
	GranularityWithRegions
	// GranularityWithoutRegions countries are evaluated only as a whole.
	GranularityWithoutRegions
)

func (g Granularity) String() string {
	switch g {
	case GranularityWithRegions:
		return "with_regions"
	case GranularityWithoutRegions:
		return "without_regions"
	default:
		return "unsupported"
	}
}

// ParseGranularity maps a settings value to a Granularity. Unknown values are unsupported.
func ParseGranularity(s string) Granularity {
	switch s {
	case "with_regions":
		return GranularityWithRegions
	case "without_regions":
		return GranularityWithoutRegions
	default:
		return GranularityUnsupported
	}
}

// GeolocationSettings is a GeolocationConfig backed by a fixed country table.
type GeolocationSettings map[string]Granularity

// NewGeolocationSettings builds settings from "CC" -> "with_regions" style
// pairs. Unknown granularities leave the country unsupported.
func NewGeolocationSettings(raw map[string]string) GeolocationSettings {
	s := make(GeolocationSettings, len(raw))
	for country, v := range raw {
		if g := ParseGranularity(strings.TrimSpace(v)); g != GranularityUnsupported {
			s[strings.ToUpper(strings.TrimSpace(country))] = g
		}
	}
	return s
}

// GranularityOf returns the configured granularity, unsupported when absent.
func (s GeolocationSettings) GranularityOf(_ context.Context, country string) (Granularity, error) {
	return s[strings.ToUpper(country)], nil
}

// StaticFlags is a FeatureFlagProvider backed by a fixed set of enabled flags.
type StaticFlags map[string]bool

// NewStaticFlags enables every named flag.
func NewStaticFlags(names []string) StaticFlags {
	f := make(StaticFlags, len(names))
	for _, n := range names {
		f[n] = true
	}
	return f
}

// Enabled reports whether flag is in the set.
func (f StaticFlags) Enabled(_ context.Context, flag string) (bool, error) {
	return f[flag], nil
}

// NoTenantScope is a TenantScopeState for requests that are never subforem scoped.
type NoTenantScope struct{}

// CurrentSubforemID always reports no subforem.
func (NoTenantScope) CurrentSubforemID(context.Context) (int, bool) {
	return 0, false
}
