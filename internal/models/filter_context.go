package models

import (
	"errors"
	"strings"
)

// ErrMissingArea is returned when a FilterContext has no placement area.
var ErrMissingArea = errors.New("filter context requires a placement area")

// FilterContext describes the targeting inputs of a single billboard request.
// It is built once per request with NewFilterContext and treated as read-only
// afterwards. Optional ids are nil when absent; Location and UserAgent are
// empty when absent.
type FilterContext struct {
	// Billboards is the candidate collection supplied by the storage layer.
	Billboards []Billboard
	// Area is the placement slot being filled. Required.
	Area string

	UserSignedIn bool
	UserID       *int
	// RoleNames are the roles held by the signed-in user.
	RoleNames []string

	// ArticleID is set when the slot renders next to an article. ArticleTags
	// are that article's tags.
	ArticleID   *int
	ArticleTags []string
	// UserTags are the tags the visitor follows, used when no article is present.
	UserTags []string

	// OrganizationID is the organization owning the surrounding content.
	OrganizationID *int
	// PermitAdjacentSponsors allows external sponsors next to the content. Defaults to true.
	PermitAdjacentSponsors bool

	// Location is the visitor's ISO 3166 location, "CC" or "CC-RR".
	Location  string
	UserAgent string
	// CookiesAllowed reflects the visitor's cookie consent. Defaults to true.
	CookiesAllowed bool

	SubforemID *int
	PageID     *int
}

// FilterOption configures a FilterContext.
type FilterOption func(*FilterContext)

// NewFilterContext builds a FilterContext for area with the documented
// defaults applied before opts.
func NewFilterContext(area string, billboards []Billboard, opts ...FilterOption) FilterContext {
	fc := FilterContext{
		Billboards:             billboards,
		Area:                   area,
		PermitAdjacentSponsors: true,
		CookiesAllowed:         true,
	}
	for _, opt := range opts {
		opt(&fc)
	}
	return fc
}

// Validate checks that the context can be evaluated.
func (fc FilterContext) Validate() error {
	if strings.TrimSpace(fc.Area) == "" {
		return ErrMissingArea
	}
	return nil
}

// WithCandidates returns a copy of fc evaluating a different candidate collection.
func (fc FilterContext) WithCandidates(billboards []Billboard) FilterContext {
	fc.Billboards = billboards
	return fc
}

// ContextualTags returns the article tags when an article is present and the
// user's followed tags otherwise.
func (fc FilterContext) ContextualTags() []string {
	if fc.ArticleID != nil {
		return fc.ArticleTags
	}
	return fc.UserTags
}

// WithSignedInUser marks the visitor as signed in. userID may be zero when unknown.
func WithSignedInUser(userID int) FilterOption {
	return func(fc *FilterContext) {
		fc.UserSignedIn = true
		if userID != 0 {
			fc.UserID = IntPtr(userID)
		}
	}
}

// WithRoleNames sets the roles held by the visitor.
func WithRoleNames(roles ...string) FilterOption {
	return func(fc *FilterContext) {
		fc.RoleNames = roles
	}
}

// WithArticle places the slot next to an article with the given tags.
func WithArticle(articleID int, tags []string) FilterOption {
	return func(fc *FilterContext) {
		fc.ArticleID = IntPtr(articleID)
		fc.ArticleTags = NormalizeTags(tags)
	}
}

// WithUserTags sets the tags followed by the visitor.
func WithUserTags(tags []string) FilterOption {
	return func(fc *FilterContext) {
		fc.UserTags = NormalizeTags(tags)
	}
}

// WithOrganization sets the organization owning the surrounding content.
func WithOrganization(orgID int) FilterOption {
	return func(fc *FilterContext) {
		fc.OrganizationID = IntPtr(orgID)
	}
}

// WithAdjacentSponsors overrides whether external sponsors may render next to the content.
func WithAdjacentSponsors(permit bool) FilterOption {
	return func(fc *FilterContext) {
		fc.PermitAdjacentSponsors = permit
	}
}

// WithLocation sets the visitor location code.
func WithLocation(location string) FilterOption {
	return func(fc *FilterContext) {
		fc.Location = strings.TrimSpace(location)
	}
}

// WithUserAgent sets the raw User-Agent header.
func WithUserAgent(ua string) FilterOption {
	return func(fc *FilterContext) {
		fc.UserAgent = ua
	}
}

// WithCookiesAllowed records the visitor's cookie consent.
func WithCookiesAllowed(allowed bool) FilterOption {
	return func(fc *FilterContext) {
		fc.CookiesAllowed = allowed
	}
}

// WithSubforem scopes the request to a subforem explicitly.
func WithSubforem(subforemID int) FilterOption {
	return func(fc *FilterContext) {
		fc.SubforemID = IntPtr(subforemID)
	}
}

// WithPage scopes the request to a standalone page.
func WithPage(pageID int) FilterOption {
	return func(fc *FilterContext) {
		fc.PageID = IntPtr(pageID)
	}
}
