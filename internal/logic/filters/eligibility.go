package filters

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

// Predicate names, in evaluation order. They label rejection metrics and trace details.
const (
	PredicateApproval        = "approval"
	PredicatePlacement       = "placement"
	PredicateVisibility      = "visibility"
	PredicateTags            = "tags"
	PredicateExclusions      = "exclusions"
	PredicateAudienceSegment = "audience_segment"
	PredicatePage            = "page"
	PredicateGeolocation     = "geolocation"
	PredicateCookies         = "cookies"
	PredicateBrowserContext  = "browser_context"
	PredicateSubforem        = "subforem"
	PredicateRoles           = "roles"
)

// Collaborators are the read-only services consulted while filtering. Any of
// them may be nil: a nil flag provider reports every flag disabled, a nil
// segment oracle reports no memberships, a nil tenant scope has no subforem
// and a nil geolocation config supports no country.
type Collaborators struct {
	Flags       logic.FeatureFlagProvider
	Segments    logic.AudienceSegmentOracle
	Tenant      logic.TenantScopeState
	Geolocation logic.GeolocationConfig
}

type predicate struct {
	name string
	pass func(e *evaluation, b models.Billboard) bool
}

// predicates run in this order; later ones rely on earlier ones having passed.
var predicates = []predicate{
	{PredicateApproval, (*evaluation).approved},
	{PredicatePlacement, (*evaluation).placement},
	{PredicateVisibility, (*evaluation).visibility},
	{PredicateTags, (*evaluation).tags},
	{PredicateExclusions, (*evaluation).exclusions},
	{PredicateAudienceSegment, (*evaluation).audienceSegment},
	{PredicatePage, (*evaluation).page},
	{PredicateGeolocation, (*evaluation).geolocation},
	{PredicateCookies, (*evaluation).cookies},
	{PredicateBrowserContext, (*evaluation).browserContext},
	{PredicateSubforem, (*evaluation).subforem},
	{PredicateRoles, (*evaluation).roles},
}

// EligibilityFilter drops every candidate billboard that may not render in a
// request context. It holds no per-request state and is safe for concurrent use.
type EligibilityFilter struct {
	flags    logic.FeatureFlagProvider
	segments logic.AudienceSegmentOracle
	tenant   logic.TenantScopeState
	geo      *logic.GeolocationMatcher
	logger   *zap.Logger
	metrics  observability.MetricsRegistry
}

// NewEligibilityFilter creates a filter over the given collaborators.
func NewEligibilityFilter(c Collaborators, logger *zap.Logger, metrics observability.MetricsRegistry) *EligibilityFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &EligibilityFilter{
		flags:    c.Flags,
		segments: c.Segments,
		tenant:   c.Tenant,
		geo:      logic.NewGeolocationMatcher(c.Geolocation, logger, metrics),
		logger:   logger,
		metrics:  metrics,
	}
}

// Filter returns the candidates passing every eligibility predicate for fc,
// preserving their relative order.
func (f *EligibilityFilter) Filter(ctx context.Context, candidates []models.Billboard, fc models.FilterContext) []models.Billboard {
	return f.FilterWithTrace(ctx, candidates, fc, nil)
}

// FilterWithTrace behaves like Filter and records the surviving billboards and
// per-predicate rejection counts on trace when it is non-nil.
func (f *EligibilityFilter) FilterWithTrace(ctx context.Context, candidates []models.Billboard, fc models.FilterContext, trace *logic.SelectionTrace) []models.Billboard {
	if len(candidates) == 0 {
		trace.AddStep("eligibility", nil)
		return nil
	}

	e := newEvaluation(ctx, f, fc)
	out := make([]models.Billboard, 0, len(candidates))
	rejected := make(map[string]int)

	for _, b := range candidates {
		if name, ok := e.check(b); !ok {
			rejected[name]++
			continue
		}
		out = append(out, b)
	}

	details := map[string]string{
		"input_count":  fmt.Sprintf("%d", len(candidates)),
		"output_count": fmt.Sprintf("%d", len(out)),
	}
	for name, n := range rejected {
		f.metrics.AddRejections(name, n)
		details["rejected_"+name] = fmt.Sprintf("%d", n)
	}
	trace.AddStepWithDetails("eligibility", out, details)
	return out
}

// evaluation carries the request-wide values the predicates share. Collaborator
// answers are looked up at most once per request.
type evaluation struct {
	ctx    context.Context
	filter *EligibilityFilter
	fc     models.FilterContext

	contextualTags map[string]struct{}
	heldRoles      map[string]struct{}
	browser        models.BrowserContext

	locationTargeting *bool
	subforemResolved  bool
	subforemID        int
	subforemOK        bool
	memberships       map[int]bool
}

func newEvaluation(ctx context.Context, f *EligibilityFilter, fc models.FilterContext) *evaluation {
	e := &evaluation{
		ctx:            ctx,
		filter:         f,
		fc:             fc,
		contextualTags: make(map[string]struct{}),
		heldRoles:      make(map[string]struct{}, len(fc.RoleNames)),
		browser:        logic.ClassifyBrowserContext(fc.UserAgent),
		memberships:    make(map[int]bool),
	}
	for _, t := range fc.ContextualTags() {
		e.contextualTags[strings.ToLower(t)] = struct{}{}
	}
	for _, r := range fc.RoleNames {
		e.heldRoles[r] = struct{}{}
	}
	return e
}

// check returns the name of the first failing predicate, or ok when all pass.
func (e *evaluation) check(b models.Billboard) (string, bool) {
	for _, p := range predicates {
		if !p.pass(e, b) {
			return p.name, false
		}
	}
	return "", true
}

func (e *evaluation) approved(b models.Billboard) bool {
	return b.Approved && b.Published
}

func (e *evaluation) placement(b models.Billboard) bool {
	// hero inventory is reserved for in-house billboards whatever their stored area
	if e.fc.Area == models.AreaHomeHero {
		return b.TypeOf == models.TypeInHouse
	}
	return b.PlacementArea == e.fc.Area
}

func (e *evaluation) visibility(b models.Billboard) bool {
	switch b.DisplayTo {
	case models.DisplayToLoggedIn:
		return e.fc.UserSignedIn
	case models.DisplayToLoggedOut:
		return !e.fc.UserSignedIn
	default:
		return true
	}
}

func (e *evaluation) tags(b models.Billboard) bool {
	if len(b.Tags) == 0 {
		return true
	}
	for _, t := range b.Tags {
		if _, ok := e.contextualTags[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

func (e *evaluation) exclusions(b models.Billboard) bool {
	if e.fc.ArticleID == nil {
		return true
	}
	return !slices.Contains(b.ExcludeArticleIDs, *e.fc.ArticleID)
}

func (e *evaluation) audienceSegment(b models.Billboard) bool {
	if b.AudienceSegmentID == nil {
		return true
	}
	if !e.fc.UserSignedIn || e.fc.UserID == nil {
		return false
	}
	segmentID := *b.AudienceSegmentID
	if member, ok := e.memberships[segmentID]; ok {
		return member
	}
	member := e.memberOf(segmentID, *e.fc.UserID)
	e.memberships[segmentID] = member
	return member
}

func (e *evaluation) memberOf(segmentID, userID int) bool {
	if e.filter.segments == nil {
		return false
	}
	member, err := e.filter.segments.MemberOf(e.ctx, segmentID, userID)
	if err != nil {
		e.filter.logger.Warn("audience segment lookup failed, treating user as non-member",
			zap.Int("segment_id", segmentID), zap.Int("user_id", userID), zap.Error(err))
		e.filter.metrics.IncrementCollaboratorErrors("audience_segment")
		return false
	}
	return member
}

func (e *evaluation) page(b models.Billboard) bool {
	if b.PageID == nil {
		return e.fc.PageID == nil
	}
	return e.fc.PageID != nil && *e.fc.PageID == *b.PageID
}

func (e *evaluation) geolocation(b models.Billboard) bool {
	if len(b.TargetGeolocations) == 0 {
		return true
	}
	if !e.locationTargetingEnabled() {
		return true
	}
	return e.filter.geo.Matches(e.ctx, b.TargetGeolocations, e.fc.Location)
}

func (e *evaluation) locationTargetingEnabled() bool {
	if e.locationTargeting != nil {
		return *e.locationTargeting
	}
	enabled := false
	if e.filter.flags != nil {
		on, err := e.filter.flags.Enabled(e.ctx, logic.FlagLocationTargeting)
		if err != nil {
			e.filter.logger.Warn("feature flag lookup failed, treating flag as disabled",
				zap.String("flag", logic.FlagLocationTargeting), zap.Error(err))
			e.filter.metrics.IncrementCollaboratorErrors("feature_flag")
		} else {
			enabled = on
		}
	}
	e.locationTargeting = &enabled
	return enabled
}

func (e *evaluation) cookies(b models.Billboard) bool {
	return !b.RequiresCookies || e.fc.CookiesAllowed
}

func (e *evaluation) browserContext(b models.Billboard) bool {
	return logic.MatchesBrowserContext(b.BrowserContext, e.browser)
}

func (e *evaluation) subforem(b models.Billboard) bool {
	if len(b.IncludeSubforemIDs) == 0 {
		return true
	}
	id, ok := e.currentSubforem()
	return ok && slices.Contains(b.IncludeSubforemIDs, id)
}

func (e *evaluation) currentSubforem() (int, bool) {
	if !e.subforemResolved {
		e.subforemResolved = true
		switch {
		case e.fc.SubforemID != nil:
			e.subforemID, e.subforemOK = *e.fc.SubforemID, true
		case e.filter.tenant != nil:
			e.subforemID, e.subforemOK = e.filter.tenant.CurrentSubforemID(e.ctx)
		}
	}
	return e.subforemID, e.subforemOK
}

func (e *evaluation) roles(b models.Billboard) bool {
	for _, r := range b.ExcludeRoleNames {
		if _, ok := e.heldRoles[r]; ok {
			return false
		}
	}
	if len(b.TargetRoleNames) == 0 {
		return true
	}
	if !e.fc.UserSignedIn {
		return false
	}
	for _, r := range b.TargetRoleNames {
		if _, ok := e.heldRoles[r]; ok {
			return true
		}
	}
	return false
}
