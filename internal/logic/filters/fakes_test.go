package filters

import (
	"context"
	"errors"

	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/models"
)

var errUnavailable = errors.New("collaborator unavailable")

type fakeFlags struct {
	enabled map[string]bool
	err     error
	calls   int
}

func (f *fakeFlags) Enabled(_ context.Context, flag string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.enabled[flag], nil
}

type fakeSegments struct {
	members map[int][]int
	err     error
	calls   int
}

func (f *fakeSegments) MemberOf(_ context.Context, segmentID, userID int) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.members[segmentID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeGeoConfig struct {
	countries map[string]logic.Granularity
	err       error
}

func (f fakeGeoConfig) GranularityOf(_ context.Context, country string) (logic.Granularity, error) {
	if f.err != nil {
		return logic.GranularityUnsupported, f.err
	}
	return f.countries[country], nil
}

type fakeTenant struct {
	id int
	ok bool
}

func (f fakeTenant) CurrentSubforemID(context.Context) (int, bool) {
	return f.id, f.ok
}

// defaultGeoConfig mirrors the production defaults.
func defaultGeoConfig() fakeGeoConfig {
	return fakeGeoConfig{countries: map[string]logic.Granularity{
		"US": logic.GranularityWithRegions,
		"CA": logic.GranularityWithRegions,
	}}
}

func locationFlagOn() *fakeFlags {
	return &fakeFlags{enabled: map[string]bool{logic.FlagLocationTargeting: true}}
}

// billboard returns an approved, published, untargeted billboard for area.
func billboard(id int, area string, opts ...func(*models.Billboard)) models.Billboard {
	b := models.Billboard{
		ID:             id,
		Approved:       true,
		Published:      true,
		PlacementArea:  area,
		DisplayTo:      models.DisplayToAll,
		TypeOf:         models.TypeInHouse,
		BrowserContext: models.BrowserAllBrowsers,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func withTags(tags ...string) func(*models.Billboard) {
	return func(b *models.Billboard) { b.Tags = tags }
}

func withTargets(codes ...string) func(*models.Billboard) {
	return func(b *models.Billboard) {
		for _, c := range codes {
			g, err := models.ParseGeolocation(c)
			if err != nil {
				panic(err)
			}
			b.TargetGeolocations = append(b.TargetGeolocations, g)
		}
	}
}

func withType(t models.TypeOf, orgID int) func(*models.Billboard) {
	return func(b *models.Billboard) {
		b.TypeOf = t
		if orgID != 0 {
			b.OrganizationID = models.IntPtr(orgID)
		}
	}
}

func withBrowser(bc models.BrowserContext) func(*models.Billboard) {
	return func(b *models.Billboard) { b.BrowserContext = bc }
}

func ids(billboards []models.Billboard) []int {
	out := make([]int, 0, len(billboards))
	for _, b := range billboards {
		out = append(out, b.ID)
	}
	return out
}
