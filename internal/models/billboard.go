package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidBillboard is wrapped by every validation failure returned from Billboard.Validate.
var ErrInvalidBillboard = errors.New("invalid billboard")

// MaxTagListSize caps the number of tags a billboard may target.
const MaxTagListSize = 25

// Placement areas. A billboard is rendered in exactly one named slot of the product surface.
const (
	AreaSidebarLeft        = "sidebar_left"
	AreaSidebarLeft2       = "sidebar_left_2"
	AreaSidebarRight       = "sidebar_right"
	AreaSidebarRightSecond = "sidebar_right_second"
	AreaSidebarRightThird  = "sidebar_right_third"
	AreaFeedFirst          = "feed_first"
	AreaFeedSecond         = "feed_second"
	AreaFeedThird          = "feed_third"
	AreaHomeHero           = "home_hero"
	AreaFooter             = "footer"
	AreaPageFixedBottom    = "page_fixed_bottom"
	AreaPostFixedBottom    = "post_fixed_bottom"
	AreaPostBodyBottom     = "post_body_bottom"
	AreaPostSidebar        = "post_sidebar"
	AreaPostComments       = "post_comments"
	AreaPostCommentsMid    = "post_comments_mid"
	AreaDigestFirst        = "digest_first"
	AreaDigestSecond       = "digest_second"
)

// AllowedPlacementAreas lists every slot a billboard may be configured for.
var AllowedPlacementAreas = []string{
	AreaSidebarLeft,
	AreaSidebarLeft2,
	AreaSidebarRight,
	AreaSidebarRightSecond,
	AreaSidebarRightThird,
	AreaFeedFirst,
	AreaFeedSecond,
	AreaFeedThird,
	AreaHomeHero,
	AreaFooter,
	AreaPageFixedBottom,
	AreaPostFixedBottom,
	AreaPostBodyBottom,
	AreaPostSidebar,
	AreaPostComments,
	AreaPostCommentsMid,
	AreaDigestFirst,
	AreaDigestSecond,
}

// IsAllowedPlacementArea reports whether area names a known slot.
func IsAllowedPlacementArea(area string) bool {
	return slices.Contains(AllowedPlacementAreas, area)
}

// DisplayTo restricts a billboard to signed-in or signed-out visitors.
type DisplayTo string

const (
	DisplayToAll       DisplayTo = "all"
	DisplayToLoggedIn  DisplayTo = "logged_in"
	DisplayToLoggedOut DisplayTo = "logged_out"
)

// Valid reports whether d is one of the known visibility values.
func (d DisplayTo) Valid() bool {
	switch d {
	case DisplayToAll, DisplayToLoggedIn, DisplayToLoggedOut:
		return true
	}
	return false
}

// TypeOf classifies who a billboard is run for.
type TypeOf string

const (
	// TypeInHouse billboards promote the community itself.
	TypeInHouse TypeOf = "in_house"
	// TypeCommunity billboards are sponsored by an organization of the community.
	TypeCommunity TypeOf = "community"
	// TypeExternal billboards are paid placements from outside partners.
	TypeExternal TypeOf = "external"
)

// Valid reports whether t is one of the known billboard types.
func (t TypeOf) Valid() bool {
	switch t {
	case TypeInHouse, TypeCommunity, TypeExternal:
		return true
	}
	return false
}

// BrowserContext is the device/browser family a billboard is limited to, and
// also the classification of a request's User-Agent.
type BrowserContext string

const (
	BrowserAllBrowsers BrowserContext = "all_browsers"
	BrowserMobileInApp BrowserContext = "mobile_in_app"
	BrowserMobileWeb   BrowserContext = "mobile_web"
	BrowserDesktop     BrowserContext = "desktop"
	// BrowserUnknown is only produced by classification, never stored on a billboard.
	BrowserUnknown BrowserContext = "unknown"
)

// Valid reports whether b may be stored on a billboard.
func (b BrowserContext) Valid() bool {
	switch b {
	case BrowserAllBrowsers, BrowserMobileInApp, BrowserMobileWeb, BrowserDesktop:
		return true
	}
	return false
}

// Billboard is a promotional content unit eligible for one placement slot.
// Billboards are owned by the management workflow; the eligibility engine only
// reads a snapshot of them.
type Billboard struct {
	ID             int            `json:"id"`
	Name           string         `json:"name,omitempty"`
	Approved       bool           `json:"approved"`
	Published      bool           `json:"published"`
	PlacementArea  string         `json:"placement_area"`
	DisplayTo      DisplayTo      `json:"display_to"`
	TypeOf         TypeOf         `json:"type_of"`
	BrowserContext BrowserContext `json:"browser_context"`
	Tags           []string       `json:"tags,omitempty"`
	// ExcludeArticleIDs lists articles next to which the billboard must never render.
	ExcludeArticleIDs []int `json:"exclude_article_ids,omitempty"`
	// AudienceSegmentID limits delivery to members of a user cohort.
	AudienceSegmentID *int `json:"audience_segment_id,omitempty"`
	// OrganizationID is required for community billboards.
	OrganizationID     *int          `json:"organization_id,omitempty"`
	TargetGeolocations []Geolocation `json:"target_geolocations,omitempty"`
	RequiresCookies    bool          `json:"requires_cookies"`
	// IncludeSubforemIDs scopes the billboard to a set of subforems; empty means global.
	IncludeSubforemIDs []int `json:"include_subforem_ids,omitempty"`
	// PageID binds the billboard to a single standalone page.
	PageID           *int     `json:"page_id,omitempty"`
	TargetRoleNames  []string `json:"target_role_names,omitempty"`
	ExcludeRoleNames []string `json:"exclude_role_names,omitempty"`
	// ProcessedHTML is the rendered body. It is carried through untouched.
	ProcessedHTML string `json:"processed_html,omitempty"`
}

// Validate checks the construction-time invariants of a billboard and
// normalizes its tags to lower case. All failures are reported together.
func (b *Billboard) Validate() error {
	var errs []error
	if !IsAllowedPlacementArea(b.PlacementArea) {
		errs = append(errs, fmt.Errorf("%w: placement area %q is not allowed", ErrInvalidBillboard, b.PlacementArea))
	}
	if !b.DisplayTo.Valid() {
		errs = append(errs, fmt.Errorf("%w: display_to %q", ErrInvalidBillboard, b.DisplayTo))
	}
	if !b.TypeOf.Valid() {
		errs = append(errs, fmt.Errorf("%w: type_of %q", ErrInvalidBillboard, b.TypeOf))
	}
	if !b.BrowserContext.Valid() {
		errs = append(errs, fmt.Errorf("%w: browser_context %q", ErrInvalidBillboard, b.BrowserContext))
	}
	if b.PlacementArea == AreaHomeHero && b.TypeOf != TypeInHouse {
		errs = append(errs, fmt.Errorf("%w: type_of must be in_house if billboard is a home hero", ErrInvalidBillboard))
	}
	if b.TypeOf == TypeCommunity && b.OrganizationID == nil {
		errs = append(errs, fmt.Errorf("%w: community billboards require an organization", ErrInvalidBillboard))
	}
	if len(b.Tags) > MaxTagListSize {
		errs = append(errs, fmt.Errorf("%w: %d tags exceeds the limit of %d", ErrInvalidBillboard, len(b.Tags), MaxTagListSize))
	}
	for _, g := range b.TargetGeolocations {
		if err := g.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidBillboard, err))
		}
	}
	b.Tags = NormalizeTags(b.Tags)
	return errors.Join(errs...)
}

// IsCommunityFor reports whether b is a community billboard sponsored by orgID.
func (b Billboard) IsCommunityFor(orgID int) bool {
	return b.TypeOf == TypeCommunity && b.OrganizationID != nil && *b.OrganizationID == orgID
}

// NormalizeTags lower-cases and trims tags, dropping blanks and duplicates.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// IntPtr returns a pointer to v. Convenient for optional ids.
func IntPtr(v int) *int {
	return &v
}
