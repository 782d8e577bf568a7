package selectors

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/analytics"
	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/logic/filters"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

// FilteredAdsQuery is the entry point answering which billboards may render
// for a request: eligibility filtering followed by priority resolution.
type FilteredAdsQuery struct {
	filter    *filters.EligibilityFilter
	analytics analytics.AnalyticsService
	logger    *zap.Logger
	metrics   observability.MetricsRegistry
}

// NewFilteredAdsQuery wires a query. analytics may be nil to skip decision logging.
func NewFilteredAdsQuery(filter *filters.EligibilityFilter, a analytics.AnalyticsService, logger *zap.Logger, metrics observability.MetricsRegistry) *FilteredAdsQuery {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &FilteredAdsQuery{filter: filter, analytics: a, logger: logger, metrics: metrics}
}

// Call returns the billboards from fc.Billboards that may render for fc. The
// order of the result is unspecified. The only error is an invalid context.
func (q *FilteredAdsQuery) Call(ctx context.Context, fc models.FilterContext) ([]models.Billboard, error) {
	return q.CallWithTrace(ctx, fc, nil)
}

// CallWithTrace behaves like Call and records every stage on trace when it is non-nil.
func (q *FilteredAdsQuery) CallWithTrace(ctx context.Context, fc models.FilterContext, trace *logic.SelectionTrace) ([]models.Billboard, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.Tracer("selectors").Start(ctx, "FilteredAdsQuery.Call")
	defer span.End()
	start := time.Now()

	trace.AddStep("candidates", fc.Billboards)
	eligible := q.filter.FilterWithTrace(ctx, fc.Billboards, fc, trace)
	result := ResolvePriority(eligible, fc)
	trace.AddStepWithDetails("priority", result, priorityDetails(fc))

	q.metrics.RecordQueryLatency(fc.Area, time.Since(start))
	q.metrics.AddCandidates(fc.Area, len(fc.Billboards))
	q.metrics.AddEligible(fc.Area, len(eligible))
	q.metrics.AddServed(fc.Area, len(result))
	if len(result) == 0 {
		q.metrics.IncrementEmptyResults(fc.Area)
	}

	span.SetAttributes(
		attribute.String("billboard.area", fc.Area),
		attribute.Int("billboard.candidates", len(fc.Billboards)),
		attribute.Int("billboard.eligible", len(eligible)),
		attribute.Int("billboard.served", len(result)),
	)

	q.recordDecision(ctx, fc, len(eligible), result)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func priorityDetails(fc models.FilterContext) map[string]string {
	details := map[string]string{"permit_adjacent_sponsors": "false"}
	if fc.PermitAdjacentSponsors {
		details["permit_adjacent_sponsors"] = "true"
	}
	if fc.OrganizationID != nil {
		details["organization_id"] = strconv.Itoa(*fc.OrganizationID)
	}
	return details
}

func (q *FilteredAdsQuery) recordDecision(ctx context.Context, fc models.FilterContext, eligible int, served []models.Billboard) {
	if q.analytics == nil {
		return
	}
	d := analytics.DecisionRecord{
		Timestamp:      time.Now(),
		RequestID:      requestID(ctx),
		Area:           fc.Area,
		CandidateCount: len(fc.Billboards),
		EligibleCount:  eligible,
		ServedIDs:      make([]int, 0, len(served)),
		Location:       fc.Location,
		BrowserContext: string(logic.ClassifyBrowserContext(fc.UserAgent)),
		SignedIn:       fc.UserSignedIn,
		OrganizationID: fc.OrganizationID,
		SubforemID:     fc.SubforemID,
	}
	for _, b := range served {
		d.ServedIDs = append(d.ServedIDs, b.ID)
	}
	if err := q.analytics.RecordDecision(ctx, d); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
		q.logger.Warn("failed to record billboard decision", zap.String("area", fc.Area), zap.Error(err))
	}
}

type requestIDKey struct{}

// WithRequestID attaches id to ctx so decision records can be correlated with the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestID returns the id attached by WithRequestID, generating one otherwise.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
