package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/config"
	"github.com/patrickwarner/billboardserve/internal/db"
	"github.com/patrickwarner/billboardserve/internal/logic"
	"github.com/patrickwarner/billboardserve/internal/logic/filters"
	"github.com/patrickwarner/billboardserve/internal/logic/selectors"
	"github.com/patrickwarner/billboardserve/internal/models"
	"github.com/patrickwarner/billboardserve/internal/observability"
)

// EligibleBillboardsInput mirrors the query parameters of GET /billboards/{area}.
type EligibleBillboardsInput struct {
	Area                   string   `json:"area"`
	ArticleID              *int     `json:"article_id,omitempty"`
	ArticleTags            []string `json:"article_tags,omitempty"`
	UserTags               []string `json:"user_tags,omitempty"`
	UserID                 *int     `json:"user_id,omitempty"`
	SignedIn               bool     `json:"signed_in,omitempty"`
	RoleNames              []string `json:"role_names,omitempty"`
	OrganizationID         *int     `json:"organization_id,omitempty"`
	PermitAdjacentSponsors *bool    `json:"permit_adjacent_sponsors,omitempty"`
	PageID                 *int     `json:"page_id,omitempty"`
	Location               string   `json:"location,omitempty"`
	UserAgent              string   `json:"user_agent,omitempty"`
	CookiesAllowed         *bool    `json:"cookies_allowed,omitempty"`
	SubforemID             *int     `json:"subforem_id,omitempty"`
}

type EligibleBillboardsOutput struct {
	BillboardIDs []int                `json:"billboard_ids"`
	Trace        logic.SelectionTrace `json:"trace"`
}

type SetPublishedInput struct {
	BillboardID int  `json:"billboard_id"`
	Published   bool `json:"published"`
}

type SetPublishedOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var errNoDatabase = errors.New("postgres not configured")

// publisher is the part of *db.Postgres used to toggle billboards.
type publisher interface {
	SetBillboardPublished(ctx context.Context, id int, published bool) error
}

// BillboardServer answers MCP tool calls against a billboard snapshot.
type BillboardServer struct {
	pg     publisher
	redis  *db.RedisStore
	store  models.BillboardStore
	query  *selectors.FilteredAdsQuery
	logger *zap.Logger
}

// filterContext converts tool input into a FilterContext over the snapshot candidates.
func (s *BillboardServer) filterContext(input EligibleBillboardsInput) models.FilterContext {
	var opts []models.FilterOption
	if input.SignedIn || input.UserID != nil {
		id := 0
		if input.UserID != nil {
			id = *input.UserID
		}
		opts = append(opts, models.WithSignedInUser(id))
	}
	if len(input.RoleNames) > 0 {
		opts = append(opts, models.WithRoleNames(input.RoleNames...))
	}
	if input.ArticleID != nil {
		opts = append(opts, models.WithArticle(*input.ArticleID, input.ArticleTags))
	}
	if len(input.UserTags) > 0 {
		opts = append(opts, models.WithUserTags(input.UserTags))
	}
	if input.OrganizationID != nil {
		opts = append(opts, models.WithOrganization(*input.OrganizationID))
	}
	if input.PermitAdjacentSponsors != nil {
		opts = append(opts, models.WithAdjacentSponsors(*input.PermitAdjacentSponsors))
	}
	if input.PageID != nil {
		opts = append(opts, models.WithPage(*input.PageID))
	}
	if input.CookiesAllowed != nil {
		opts = append(opts, models.WithCookiesAllowed(*input.CookiesAllowed))
	}
	if input.SubforemID != nil {
		opts = append(opts, models.WithSubforem(*input.SubforemID))
	}
	opts = append(opts, models.WithLocation(input.Location), models.WithUserAgent(input.UserAgent))
	return models.NewFilterContext(input.Area, s.store.CandidatesForArea(input.Area), opts...)
}

// EligibleBillboards implements the eligible_billboards tool.
func (s *BillboardServer) EligibleBillboards(ctx context.Context, req *mcp.CallToolRequest, input EligibleBillboardsInput) (*mcp.CallToolResult, EligibleBillboardsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !models.IsAllowedPlacementArea(input.Area) {
		return nil, EligibleBillboardsOutput{}, fmt.Errorf("unknown placement area %q", input.Area)
	}
	var trace logic.SelectionTrace
	billboards, err := s.query.CallWithTrace(ctx, s.filterContext(input), &trace)
	if err != nil {
		return nil, EligibleBillboardsOutput{}, err
	}

	out := EligibleBillboardsOutput{BillboardIDs: make([]int, 0, len(billboards)), Trace: trace}
	for _, b := range billboards {
		out.BillboardIDs = append(out.BillboardIDs, b.ID)
	}
	s.logger.Info("eligible billboards",
		zap.String("area", input.Area),
		zap.Ints("billboard_ids", out.BillboardIDs))
	return nil, out, nil
}

// SetPublished implements the set_billboard_published tool. Running servers
// pick up the change through the Redis update channel.
func (s *BillboardServer) SetPublished(ctx context.Context, req *mcp.CallToolRequest, input SetPublishedInput) (*mcp.CallToolResult, SetPublishedOutput, error) {
	if s.pg == nil {
		return nil, SetPublishedOutput{}, errNoDatabase
	}
	if err := s.pg.SetBillboardPublished(ctx, input.BillboardID, input.Published); err != nil {
		return nil, SetPublishedOutput{}, fmt.Errorf("failed to update billboard: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.PublishUpdate(ctx, "mcp"); err != nil {
			s.logger.Warn("failed to notify servers", zap.Error(err))
		}
	}
	return nil, SetPublishedOutput{
		Status:  "updated",
		Message: fmt.Sprintf("billboard %d published=%t", input.BillboardID, input.Published),
	}, nil
}

func registerTools(server *mcp.Server, bs *BillboardServer) {
	intProp := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "integer", "description": desc}
	}
	stringList := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"description": desc,
		}
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "eligible_billboards",
		Description: "List the billboards that may render in a placement area for a visitor",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"area": map[string]interface{}{
					"type":        "string",
					"enum":        models.AllowedPlacementAreas,
					"description": "Placement area",
				},
				"article_id":      intProp("Article the slot is rendered next to"),
				"article_tags":    stringList("Tags of the article"),
				"user_tags":       stringList("Tags followed by the visitor, used without an article"),
				"user_id":         intProp("Signed-in visitor id"),
				"signed_in":       map[string]interface{}{"type": "boolean", "description": "Visitor is signed in"},
				"role_names":      stringList("Roles held by the visitor"),
				"organization_id": intProp("Organization owning the surrounding content"),
				"permit_adjacent_sponsors": map[string]interface{}{
					"type":        "boolean",
					"description": "Allow external sponsors next to the content (default true)",
				},
				"page_id":  intProp("Static page the slot is rendered on"),
				"location": map[string]interface{}{"type": "string", "description": "ISO 3166 location such as US or US-NY"},
				"user_agent": map[string]interface{}{
					"type":        "string",
					"description": "Raw User-Agent of the visitor",
				},
				"cookies_allowed": map[string]interface{}{"type": "boolean", "description": "Cookie consent (default true)"},
				"subforem_id":     intProp("Subforem serving the request"),
			},
			"required": []string{"area"},
		},
	}, bs.EligibleBillboards)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_billboard_published",
		Description: "Publish or unpublish a billboard and notify running servers",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"billboard_id": intProp("Billboard id"),
				"published":    map[string]interface{}{"type": "boolean", "description": "New published state"},
			},
			"required": []string{"billboard_id", "published"},
		},
	}, bs.SetPublished)
}

func main() {
	logger, err := observability.InitStderrLogger("billboardserve-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()
	ctx := context.Background()

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	collaborators := filters.Collaborators{
		Flags:       logic.NewStaticFlags(cfg.FeatureFlags),
		Tenant:      logic.NoTenantScope{},
		Geolocation: logic.NewGeolocationSettings(cfg.EnabledCountries),
	}
	var rs *db.RedisStore
	if cfg.RedisEnabled {
		if rs, err = db.InitRedis(cfg.RedisAddr); err != nil {
			logger.Warn("Redis unavailable, using FEATURE_FLAGS and no segments", zap.Error(err))
			rs = nil
		} else {
			defer rs.Close()
			collaborators.Flags = rs
			collaborators.Segments = rs
		}
	}

	store := models.NewInMemoryBillboardStore()
	res, err := db.Init(ctx, pg, store)
	if err != nil {
		logger.Fatal("Failed to load billboards", zap.Error(err))
	}
	logger.Info("Loaded billboards", zap.Int("loaded", res.Loaded), zap.Int("rejected", res.Rejected))

	metrics := observability.NewNoOpRegistry()
	filter := filters.NewEligibilityFilter(collaborators, logger, metrics)
	bs := &BillboardServer{
		pg:     pg,
		redis:  rs,
		store:  store,
		query:  selectors.NewFilteredAdsQuery(filter, nil, logger, metrics),
		logger: logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "billboardserve",
		Version: observability.ServiceVersion,
	}, nil)
	registerTools(server, bs)

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")
	if err := server.Run(ctx, transport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
