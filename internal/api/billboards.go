package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/logic/selectors"
	"github.com/patrickwarner/billboardserve/internal/middleware"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

var tracer = observability.Tracer("api")

// errUnknownArea is returned for placement areas outside the allowlist.
var errUnknownArea = errors.New("unknown placement area")

type billboardsResponse struct {
	Billboards []models.Billboard `json:"billboards"`
	Debug      any                `json:"debug,omitempty"`
}

// BillboardsHandler handles GET /billboards/{area}, returning every billboard
// that may render in the area for the requesting visitor.
func (s *Server) BillboardsHandler(w http.ResponseWriter, r *http.Request) {
	area := mux.Vars(r)["area"]
	ctx, span := tracer.Start(r.Context(), "BillboardsHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/billboards/{area}"),
			attribute.String("billboard.area", area),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "billboards"
	const method = "GET"

	fc, err := s.filterContextFromRequest(r.WithContext(ctx), area)
	if err != nil {
		logger.Info("bad billboard request", zap.String("area", area), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var selection *logic.SelectionTrace
	if s.DebugTrace {
		selection = &logic.SelectionTrace{}
	}
	ctx = selectors.WithRequestID(ctx, middleware.RequestIDFromContext(ctx))
	billboards, err := s.Query.CallWithTrace(ctx, fc, selection)
	if err != nil {
		logger.Error("billboard query failed", zap.String("area", area), zap.Error(err))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Debug("billboards selected",
			zap.String("area", area),
			zap.Int("candidates", len(fc.Billboards)),
			zap.Int("served", len(billboards)))
	}

	out := billboardsResponse{Billboards: billboards}
	if out.Billboards == nil {
		out.Billboards = []models.Billboard{}
	}
	if selection != nil {
		out.Debug = map[string]any{"trace": selection}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logger.Error("encode response", zap.Error(err))
	}
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// filterContextFromRequest builds the targeting inputs of a billboard request
// from its query string, headers and client address.
func (s *Server) filterContextFromRequest(r *http.Request, area string) (models.FilterContext, error) {
	if !models.IsAllowedPlacementArea(area) {
		return models.FilterContext{}, fmt.Errorf("%w: %q", errUnknownArea, area)
	}
	q := r.URL.Query()
	var opts []models.FilterOption

	userID, err := optionalInt(q, "user_id")
	if err != nil {
		return models.FilterContext{}, err
	}
	signedIn, err := optionalBool(r.Header.Get("X-User-Signed-In"), userID != nil)
	if err != nil {
		return models.FilterContext{}, fmt.Errorf("X-User-Signed-In: %w", err)
	}
	if signedIn {
		id := 0
		if userID != nil {
			id = *userID
		}
		opts = append(opts, models.WithSignedInUser(id))
	}
	if roles := csv(q.Get("role_names")); len(roles) > 0 {
		opts = append(opts, models.WithRoleNames(roles...))
	}

	articleID, err := optionalInt(q, "article_id")
	if err != nil {
		return models.FilterContext{}, err
	}
	if articleID != nil {
		opts = append(opts, models.WithArticle(*articleID, csv(q.Get("article_tags"))))
	}
	if tags := csv(q.Get("user_tags")); len(tags) > 0 {
		opts = append(opts, models.WithUserTags(tags))
	}

	orgID, err := optionalInt(q, "organization_id")
	if err != nil {
		return models.FilterContext{}, err
	}
	if orgID != nil {
		opts = append(opts, models.WithOrganization(*orgID))
	}
	permit, err := optionalBool(q.Get("permit_adjacent_sponsors"), true)
	if err != nil {
		return models.FilterContext{}, fmt.Errorf("permit_adjacent_sponsors: %w", err)
	}
	opts = append(opts, models.WithAdjacentSponsors(permit))

	pageID, err := optionalInt(q, "page_id")
	if err != nil {
		return models.FilterContext{}, err
	}
	if pageID != nil {
		opts = append(opts, models.WithPage(*pageID))
	}
	subforemID, err := optionalInt(q, "subforem_id")
	if err != nil {
		return models.FilterContext{}, err
	}
	if subforemID != nil {
		opts = append(opts, models.WithSubforem(*subforemID))
	}

	consent := q.Get("cookies_allowed")
	if consent == "" {
		consent = r.Header.Get("X-Cookies-Allowed")
	}
	cookies, err := optionalBool(consent, true)
	if err != nil {
		return models.FilterContext{}, fmt.Errorf("cookies_allowed: %w", err)
	}
	opts = append(opts, models.WithCookiesAllowed(cookies))

	rt := logic.ResolveTargetingFromRequest(r, s.GeoIP)
	location := q.Get("location")
	if location == "" {
		location = rt.Location
	}
	opts = append(opts, models.WithLocation(location), models.WithUserAgent(rt.UserAgent))

	return models.NewFilterContext(area, s.Store.CandidatesForArea(area), opts...), nil
}

func optionalInt(q map[string][]string, key string) (*int, error) {
	vals := q[key]
	if len(vals) == 0 || vals[0] == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &n, nil
}

func optionalBool(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func csv(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
