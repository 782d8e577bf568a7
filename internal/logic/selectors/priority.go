package selectors

import "github.com/patrickwarner/billboardserve/internal/models"

// ResolvePriority settles sponsorship precedence over an eligible set.
//
// Community billboards sponsored by the organization owning the surrounding
// content win outright and nothing else is returned beside them. Without such
// a match the in-house and external billboards are returned, external ones
// only when adjacent sponsors are permitted. Community billboards of any other
// organization are always dropped.
func ResolvePriority(eligible []models.Billboard, fc models.FilterContext) []models.Billboard {
	if fc.OrganizationID != nil {
		var community []models.Billboard
		for _, b := range eligible {
			if b.IsCommunityFor(*fc.OrganizationID) {
				community = append(community, b)
			}
		}
		if len(community) > 0 {
			return community
		}
	}

	out := make([]models.Billboard, 0, len(eligible))
	for _, b := range eligible {
		switch b.TypeOf {
		case models.TypeInHouse:
			out = append(out, b)
		case models.TypeExternal:
			if fc.PermitAdjacentSponsors {
				out = append(out, b)
			}
		}
	}
	return out
}
