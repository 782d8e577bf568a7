package selectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/billboardserve/internal/analytics"
	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/logic/filters"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

type staticGeo map[string]logic.Granularity

func (g staticGeo) GranularityOf(_ context.Context, country string) (logic.Granularity, error) {
	return g[country], nil
}

func newQuery(t *testing.T, geo staticGeo) (*FilteredAdsQuery, *observability.MockMetricsRegistry, *analytics.MockAnalytics) {
	t.Helper()
	metrics := observability.NewMockMetricsRegistry()
	a := analytics.NewMockAnalytics()
	f := filters.NewEligibilityFilter(filters.Collaborators{
		Flags:       logic.StaticFlags{logic.FlagLocationTargeting: true},
		Tenant:      logic.NoTenantScope{},
		Geolocation: geo,
	}, nil, metrics)
	return NewFilteredAdsQuery(f, a, nil, metrics), metrics, a
}

func defaultGeo() staticGeo {
	return staticGeo{"US": logic.GranularityWithRegions, "CA": logic.GranularityWithRegions}
}

func withArea(b models.Billboard, area string) models.Billboard {
	b.PlacementArea = area
	return b
}

func TestCallRejectsMissingArea(t *testing.T) {
	q, _, a := newQuery(t, defaultGeo())
	_, err := q.Call(context.Background(), models.NewFilterContext("", nil))
	assert.ErrorIs(t, err, models.ErrMissingArea)
	assert.Empty(t, a.Decisions())
}

func TestUntaggedBillboardNextToArticle(t *testing.T) {
	q, _, _ := newQuery(t, defaultGeo())
	a := withArea(sponsored(1, models.TypeInHouse, 0), models.AreaPostSidebar)
	b := withArea(sponsored(2, models.TypeInHouse, 0), models.AreaPostSidebar)
	b.Tags = []string{"career"}
	candidates := []models.Billboard{a, b}

	fc := models.NewFilterContext(models.AreaPostSidebar, candidates, models.WithArticle(11, []string{"javascript"}))
	got, err := q.Call(context.Background(), fc)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, billboardIDs(got))
}

func TestGeolocationTargeting(t *testing.T) {
	canada := sponsored(1, models.TypeInHouse, 0)
	canada.TargetGeolocations = []models.Geolocation{{Country: "CA"}}
	regions := sponsored(2, models.TypeInHouse, 0)
	regions.TargetGeolocations = []models.Geolocation{{Country: "CA", Region: "QC"}, {Country: "CA", Region: "NL"}}
	france := sponsored(3, models.TypeInHouse, 0)
	france.TargetGeolocations = []models.Geolocation{{Country: "FR"}}
	untargeted := sponsored(4, models.TypeInHouse, 0)
	candidates := []models.Billboard{canada, regions, france, untargeted}

	q, _, _ := newQuery(t, defaultGeo())
	got, err := q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft, candidates, models.WithLocation("CA-NL")))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, billboardIDs(got))

	got, err = q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft, candidates, models.WithLocation("US-CA")))
	require.NoError(t, err)
	assert.Equal(t, []int{4}, billboardIDs(got))

	got, err = q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft, candidates, models.WithLocation("FR-BRE")))
	require.NoError(t, err)
	assert.Equal(t, []int{4}, billboardIDs(got))

	geo := defaultGeo()
	geo["FR"] = logic.GranularityWithoutRegions
	q, _, _ = newQuery(t, geo)
	got, err = q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft, candidates, models.WithLocation("FR-BRE")))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, billboardIDs(got))
}

func TestNativeAppBrowserContext(t *testing.T) {
	var candidates []models.Billboard
	for i, bc := range []models.BrowserContext{models.BrowserAllBrowsers, models.BrowserMobileInApp, models.BrowserMobileWeb, models.BrowserDesktop} {
		b := sponsored(i+1, models.TypeInHouse, 0)
		b.BrowserContext = bc
		candidates = append(candidates, b)
	}
	q, _, _ := newQuery(t, defaultGeo())
	got, err := q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft, candidates, models.WithUserAgent("DEV-Native-ios")))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, billboardIDs(got))
}

func TestSponsorshipPrecedence(t *testing.T) {
	community := sponsored(1, models.TypeCommunity, orgID)
	external := sponsored(2, models.TypeExternal, orgID)
	inHouse := sponsored(3, models.TypeInHouse, 0)

	q, _, _ := newQuery(t, defaultGeo())
	got, err := q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft,
		[]models.Billboard{community, external}, models.WithOrganization(orgID)))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, billboardIDs(got))

	got, err = q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft,
		[]models.Billboard{external, inHouse}, models.WithAdjacentSponsors(false)))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, billboardIDs(got))
}

func TestCallRecordsMetricsAndDecision(t *testing.T) {
	q, metrics, a := newQuery(t, defaultGeo())
	candidates := []models.Billboard{
		sponsored(1, models.TypeInHouse, 0),
		withArea(sponsored(2, models.TypeInHouse, 0), models.AreaFooter),
	}
	ctx := WithRequestID(context.Background(), "req-1")
	fc := models.NewFilterContext(models.AreaSidebarLeft, candidates, models.WithSignedInUser(42), models.WithLocation("US-NY"))

	got, err := q.Call(ctx, fc)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.Equal(t, 2, metrics.Count("candidates:"+models.AreaSidebarLeft))
	assert.Equal(t, 1, metrics.Count("eligible:"+models.AreaSidebarLeft))
	assert.Equal(t, 1, metrics.Count("served:"+models.AreaSidebarLeft))
	assert.Equal(t, 1, metrics.Count("rejections:"+filters.PredicatePlacement))

	decisions := a.Decisions()
	require.Len(t, decisions, 1)
	d := decisions[0]
	assert.Equal(t, "req-1", d.RequestID)
	assert.Equal(t, models.AreaSidebarLeft, d.Area)
	assert.Equal(t, 2, d.CandidateCount)
	assert.Equal(t, 1, d.EligibleCount)
	assert.Equal(t, []int{1}, d.ServedIDs)
	assert.Equal(t, "US-NY", d.Location)
	assert.True(t, d.SignedIn)

	_, err = q.Call(context.Background(), fc.WithCandidates(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.Count("empty:"+models.AreaSidebarLeft))
	assert.NotEmpty(t, a.Decisions()[1].RequestID)
}

func TestCallSurvivesAnalyticsFailure(t *testing.T) {
	q, _, a := newQuery(t, defaultGeo())
	a.Err = analytics.ErrUnavailable
	got, err := q.Call(context.Background(), models.NewFilterContext(models.AreaSidebarLeft,
		[]models.Billboard{sponsored(1, models.TypeInHouse, 0)}))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCallWithTrace(t *testing.T) {
	q, _, _ := newQuery(t, defaultGeo())
	candidates := []models.Billboard{
		sponsored(1, models.TypeInHouse, 0),
		sponsored(2, models.TypeCommunity, orgID+1),
	}
	trace := &logic.SelectionTrace{}
	_, err := q.CallWithTrace(context.Background(), models.NewFilterContext(models.AreaSidebarLeft, candidates), trace)
	require.NoError(t, err)

	require.Len(t, trace.Steps, 3)
	assert.Equal(t, "candidates", trace.Steps[0].Stage)
	assert.Equal(t, []int{1, 2}, trace.Steps[0].BillboardIDs)
	assert.Equal(t, "eligibility", trace.Steps[1].Stage)
	assert.Equal(t, []int{1, 2}, trace.Steps[1].BillboardIDs)
	assert.Equal(t, "priority", trace.Steps[2].Stage)
	assert.Equal(t, []int{1}, trace.Steps[2].BillboardIDs)
	assert.Equal(t, "true", trace.Steps[2].Details["permit_adjacent_sponsors"])
}
