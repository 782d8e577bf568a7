package selectors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/billboardserve/internal/models"
)

const orgID = 5

func sponsored(id int, t models.TypeOf, org int) models.Billboard {
	b := models.Billboard{
		ID:             id,
		Approved:       true,
		Published:      true,
		PlacementArea:  models.AreaSidebarLeft,
		DisplayTo:      models.DisplayToAll,
		TypeOf:         t,
		BrowserContext: models.BrowserAllBrowsers,
	}
	if org != 0 {
		b.OrganizationID = models.IntPtr(org)
	}
	return b
}

func billboardIDs(billboards []models.Billboard) []int {
	out := make([]int, 0, len(billboards))
	for _, b := range billboards {
		out = append(out, b.ID)
	}
	return out
}

func TestResolvePriority(t *testing.T) {
	inHouse := sponsored(1, models.TypeInHouse, 0)
	external := sponsored(2, models.TypeExternal, orgID)
	community := sponsored(3, models.TypeCommunity, orgID)
	otherCommunity := sponsored(4, models.TypeCommunity, orgID+1)
	all := []models.Billboard{inHouse, external, community, otherCommunity}

	tests := []struct {
		name     string
		eligible []models.Billboard
		opts     []models.FilterOption
		want     []int
	}{
		{
			name:     "matching community sponsor is exclusive",
			eligible: all,
			opts:     []models.FilterOption{models.WithOrganization(orgID)},
			want:     []int{3},
		},
		{
			name:     "no community match falls back to in-house and external",
			eligible: []models.Billboard{inHouse, external, otherCommunity},
			opts:     []models.FilterOption{models.WithOrganization(orgID)},
			want:     []int{1, 2},
		},
		{
			name:     "adjacency suppression drops external",
			eligible: []models.Billboard{inHouse, external, otherCommunity},
			opts:     []models.FilterOption{models.WithOrganization(orgID), models.WithAdjacentSponsors(false)},
			want:     []int{1},
		},
		{
			name:     "no organization drops community",
			eligible: all,
			want:     []int{1, 2},
		},
		{
			name:     "no organization without adjacent sponsors keeps in-house only",
			eligible: all,
			opts:     []models.FilterOption{models.WithAdjacentSponsors(false)},
			want:     []int{1},
		},
		{
			name:     "organization with nothing eligible",
			eligible: []models.Billboard{otherCommunity},
			opts:     []models.FilterOption{models.WithOrganization(orgID)},
			want:     []int{},
		},
		{
			name: "empty input",
			opts: []models.FilterOption{models.WithOrganization(orgID)},
			want: []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := models.NewFilterContext(models.AreaSidebarLeft, tt.eligible, tt.opts...)
			assert.Equal(t, tt.want, billboardIDs(ResolvePriority(tt.eligible, fc)))
		})
	}
}

func TestResolvePriorityCommunityLaw(t *testing.T) {
	eligible := []models.Billboard{
		sponsored(1, models.TypeInHouse, 0),
		sponsored(2, models.TypeCommunity, orgID),
		sponsored(3, models.TypeExternal, 0),
		sponsored(4, models.TypeCommunity, orgID),
		sponsored(5, models.TypeCommunity, orgID+1),
	}
	for _, permit := range []bool{true, false} {
		fc := models.NewFilterContext(models.AreaSidebarLeft, eligible,
			models.WithOrganization(orgID), models.WithAdjacentSponsors(permit))
		got := ResolvePriority(eligible, fc)
		assert.Len(t, got, 2)
		for _, b := range got {
			assert.True(t, b.IsCommunityFor(orgID), "billboard %d", b.ID)
		}
	}
}
