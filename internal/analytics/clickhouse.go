package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/billboardserve/internal/observability"
)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// AnalyticsService records the outcome of billboard queries.
// Implementations should handle cases where underlying storage is unavailable
// by returning ErrUnavailable.
type AnalyticsService interface {
	// RecordDecision persists one query outcome.
	RecordDecision(ctx context.Context, d DecisionRecord) error
}

// DecisionRecord mirrors a row in the billboard_decisions table.
type DecisionRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	Area           string    `json:"area"`
	CandidateCount int       `json:"candidate_count"`
	EligibleCount  int       `json:"eligible_count"`
	ServedIDs      []int     `json:"served_ids"`
	Location       string    `json:"location,omitempty"`
	BrowserContext string    `json:"browser_context,omitempty"`
	SignedIn       bool      `json:"signed_in"`
	OrganizationID *int      `json:"organization_id,omitempty"`
	SubforemID     *int      `json:"subforem_id,omitempty"`
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB      *sql.DB
	Metrics observability.MetricsRegistry
}

var _ AnalyticsService = (*Analytics)(nil)

// InitClickHouse connects to ClickHouse and ensures the decisions table exists.
func InitClickHouse(dsn string, metrics observability.MetricsRegistry) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS billboard_decisions (
       timestamp        DateTime,
       request_id       String,
       area             String,
       candidate_count  UInt32,
       eligible_count   UInt32,
       served_ids       Array(Int32),
       location         Nullable(String),
       browser_context  Nullable(String),
       signed_in        Bool,
       organization_id  Nullable(Int32),
       subforem_id      Nullable(Int32)
   ) ENGINE=MergeTree() ORDER BY (area, timestamp)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db, Metrics: metrics}, nil
}

// RecordDecision inserts a single decision row.
func (a *Analytics) RecordDecision(ctx context.Context, d DecisionRecord) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}

	served := make([]int32, 0, len(d.ServedIDs))
	for _, id := range d.ServedIDs {
		served = append(served, int32(id))
	}

	stmt := `INSERT INTO billboard_decisions (timestamp, request_id, area, candidate_count, eligible_count, served_ids, location, browser_context, signed_in, organization_id, subforem_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.DB.ExecContext(ctx, stmt,
		d.Timestamp, d.RequestID, d.Area,
		uint32(d.CandidateCount), uint32(d.EligibleCount), served,
		nullString(d.Location), nullString(d.BrowserContext), d.SignedIn,
		nullInt(d.OrganizationID), nullInt(d.SubforemID),
	)
	if err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("area", d.Area))
		if a.Metrics != nil {
			a.Metrics.IncrementDecisionPersistErrors()
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// GetDecisionsByRequestID returns all decisions recorded for a request ordered by timestamp.
func (a *Analytics) GetDecisionsByRequestID(ctx context.Context, id string) ([]DecisionRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, request_id, area, candidate_count, eligible_count, served_ids, location, browser_context, signed_in, organization_id, subforem_id FROM billboard_decisions WHERE request_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var out []DecisionRecord
	for rows.Next() {
		var (
			d                 DecisionRecord
			candidates, elig  uint32
			served            []int32
			location, browser sql.NullString
			orgID, subforemID sql.NullInt32
		)
		if err := rows.Scan(&d.Timestamp, &d.RequestID, &d.Area, &candidates, &elig, &served, &location, &browser, &d.SignedIn, &orgID, &subforemID); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.CandidateCount, d.EligibleCount = int(candidates), int(elig)
		for _, id := range served {
			d.ServedIDs = append(d.ServedIDs, int(id))
		}
		d.Location, d.BrowserContext = location.String, browser.String
		if orgID.Valid {
			v := int(orgID.Int32)
			d.OrganizationID = &v
		}
		if subforemID.Valid {
			v := int(subforemID.Int32)
			d.SubforemID = &v
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
