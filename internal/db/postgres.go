package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS billboards (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    approved BOOLEAN NOT NULL DEFAULT FALSE,
    published BOOLEAN NOT NULL DEFAULT FALSE,
    placement_area TEXT NOT NULL,
    display_to TEXT NOT NULL DEFAULT 'all',
    type_of TEXT NOT NULL DEFAULT 'in_house',
    browser_context TEXT NOT NULL DEFAULT 'all_browsers',
    tags TEXT[] NOT NULL DEFAULT '{}',
    exclude_article_ids INT[] NOT NULL DEFAULT '{}',
    audience_segment_id INT NULL,
    organization_id INT NULL,
    target_geolocations TEXT[] NOT NULL DEFAULT '{}',
    requires_cookies BOOLEAN NOT NULL DEFAULT FALSE,
    include_subforem_ids INT[] NOT NULL DEFAULT '{}',
    page_id INT NULL,
    target_role_names TEXT[] NOT NULL DEFAULT '{}',
    exclude_role_names TEXT[] NOT NULL DEFAULT '{}',
    processed_html TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audience_segment_users (
    audience_segment_id INT NOT NULL,
    user_id INT NOT NULL,
    PRIMARY KEY (audience_segment_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_billboards_live_area ON billboards (placement_area) WHERE approved AND published;
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	ctx := context.Background()
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const billboardColumns = `id, name, approved, published, placement_area, display_to, type_of,
    browser_context, tags, exclude_article_ids, audience_segment_id, organization_id,
    target_geolocations, requires_cookies, include_subforem_ids, page_id,
    target_role_names, exclude_role_names, processed_html`

// LoadBillboards retrieves every billboard. Rows are returned as stored;
// validation happens when the snapshot is built.
func (p *Postgres) LoadBillboards(ctx context.Context) ([]models.Billboard, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+billboardColumns+` FROM billboards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query billboards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []models.Billboard
	for rows.Next() {
		var (
			b                                 models.Billboard
			displayTo, typeOf, browserContext string
			excludeArticles, subforems        []int64
			geos                              []string
			segmentID, organizationID, pageID sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Approved, &b.Published, &b.PlacementArea,
			&displayTo, &typeOf, &browserContext, pq.Array(&b.Tags), pq.Array(&excludeArticles),
			&segmentID, &organizationID, pq.Array(&geos), &b.RequiresCookies,
			pq.Array(&subforems), &pageID, pq.Array(&b.TargetRoleNames),
			pq.Array(&b.ExcludeRoleNames), &b.ProcessedHTML); err != nil {
			return nil, fmt.Errorf("scan billboard: %w", err)
		}
		b.DisplayTo = models.DisplayTo(displayTo)
		b.TypeOf = models.TypeOf(typeOf)
		b.BrowserContext = models.BrowserContext(browserContext)
		b.ExcludeArticleIDs = toInts(excludeArticles)
		b.IncludeSubforemIDs = toInts(subforems)
		b.AudienceSegmentID = nullableInt(segmentID)
		b.OrganizationID = nullableInt(organizationID)
		b.PageID = nullableInt(pageID)
		for _, code := range geos {
			// malformed codes are kept so validation reports them
			g, err := models.ParseGeolocation(code)
			if err != nil {
				g = models.Geolocation{Country: code}
			}
			b.TargetGeolocations = append(b.TargetGeolocations, g)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// InsertBillboard inserts a new billboard and sets its generated ID.
func (p *Postgres) InsertBillboard(ctx context.Context, b *models.Billboard) error {
	geos := make([]string, 0, len(b.TargetGeolocations))
	for _, g := range b.TargetGeolocations {
		geos = append(geos, g.ISO3166())
	}
	err := p.DB.QueryRowContext(ctx, `INSERT INTO billboards (
        name, approved, published, placement_area, display_to, type_of, browser_context,
        tags, exclude_article_ids, audience_segment_id, organization_id, target_geolocations,
        requires_cookies, include_subforem_ids, page_id, target_role_names, exclude_role_names,
        processed_html) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id`,
		b.Name, b.Approved, b.Published, b.PlacementArea, string(b.DisplayTo), string(b.TypeOf),
		string(b.BrowserContext), pq.Array(nonNil(b.Tags)), pq.Array(toInt64s(b.ExcludeArticleIDs)),
		b.AudienceSegmentID, b.OrganizationID, pq.Array(geos), b.RequiresCookies,
		pq.Array(toInt64s(b.IncludeSubforemIDs)), b.PageID, pq.Array(nonNil(b.TargetRoleNames)),
		pq.Array(nonNil(b.ExcludeRoleNames)), b.ProcessedHTML).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert billboard: %w", err)
	}
	return nil
}

// SetBillboardPublished flips the published flag of a billboard.
func (p *Postgres) SetBillboardPublished(ctx context.Context, id int, published bool) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE billboards SET published=$1, updated_at=NOW() WHERE id=$2`, published, id)
	if err != nil {
		return fmt.Errorf("update billboard: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteBillboard removes a billboard by ID.
func (p *Postgres) DeleteBillboard(ctx context.Context, id int) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM billboards WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete billboard: %w", err)
	}
	return nil
}

// LoadSegmentMemberships returns the users of every audience segment.
func (p *Postgres) LoadSegmentMemberships(ctx context.Context) (map[int][]int, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT audience_segment_id, user_id FROM audience_segment_users ORDER BY audience_segment_id, user_id`)
	if err != nil {
		return nil, fmt.Errorf("query segment memberships: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[int][]int)
	for rows.Next() {
		var segmentID, userID int
		if err := rows.Scan(&segmentID, &userID); err != nil {
			return nil, fmt.Errorf("scan segment membership: %w", err)
		}
		out[segmentID] = append(out[segmentID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// AddSegmentMember adds a user to an audience segment. Existing memberships are left alone.
func (p *Postgres) AddSegmentMember(ctx context.Context, segmentID, userID int) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO audience_segment_users (audience_segment_id, user_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, segmentID, userID)
	if err != nil {
		return fmt.Errorf("insert segment member: %w", err)
	}
	return nil
}

func toInts(in []int64) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func toInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.IntPtr(int(v.Int64))
}
