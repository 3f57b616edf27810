package postgres

import (
	"fmt"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// AdminQueries answers the read-only operator surface's listing and
// aggregate-stats questions across both physical job tables, grounded on
// the teacher's admin dashboard queries (internal/usecase's
// Count/CountByStatus/ListWithFilters/GetAverageProcessingTime helpers)
// generalized from one jobs table to the union of images and models.
type AdminQueries struct {
	Pool PgxPool
}

// NewAdminQueries constructs an AdminQueries over the shared pool.
func NewAdminQueries(p PgxPool) *AdminQueries { return &AdminQueries{Pool: p} }

// Stats aggregates job counts and average completion time across both tables.
type Stats struct {
	Total      int64
	Completed  int64
	Failed     int64
	Processing int64
	AvgSeconds float64
}

// Stats returns aggregate counts across the images and models tables.
func (a *AdminQueries) Stats(ctx domain.Context) (Stats, error) {
	var s Stats
	var avg float64
	q := `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'complete'),
			count(*) FILTER (WHERE status = 'failed'),
			count(*) FILTER (WHERE status = 'processing'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (updated_at - created_at))) FILTER (WHERE status = 'complete'), 0)
		FROM (
			SELECT status, created_at, updated_at FROM images
			UNION ALL
			SELECT status, created_at, updated_at FROM models
		) jobs`
	row := a.Pool.QueryRow(ctx, q)
	if err := row.Scan(&s.Total, &s.Completed, &s.Failed, &s.Processing, &avg); err != nil {
		return Stats{}, fmt.Errorf("op=admin.stats: %w", err)
	}
	s.AvgSeconds = avg
	return s, nil
}

// JobSummary is one row of the admin job listing.
type JobSummary struct {
	ID           string
	Kind         domain.JobKind
	ClientTaskID string
	Provider     domain.Provider
	Operation    domain.Operation
	Status       domain.JobStatus
	AssetURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// List returns a page of jobs across both tables, most recent first,
// optionally filtered by status and a client_task_id/provider substring.
func (a *AdminQueries) List(ctx domain.Context, offset, limit int, search, status string) ([]JobSummary, error) {
	q := `
		SELECT id, $1::text AS kind, client_task_id, provider, operation, status, COALESCE(asset_url,''), created_at, updated_at
		FROM images WHERE ($2 = '' OR status = $2) AND ($3 = '' OR client_task_id ILIKE '%'||$3||'%' OR provider ILIKE '%'||$3||'%')
		UNION ALL
		SELECT id, $4::text AS kind, client_task_id, provider, operation, status, COALESCE(asset_url,''), created_at, updated_at
		FROM models WHERE ($2 = '' OR status = $2) AND ($3 = '' OR client_task_id ILIKE '%'||$3||'%' OR provider ILIKE '%'||$3||'%')
		ORDER BY updated_at DESC
		OFFSET $5 LIMIT $6`
	rows, err := a.Pool.Query(ctx, q, string(domain.KindImage), status, search, string(domain.KindModel), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("op=admin.list: %w", err)
	}
	defer rows.Close()

	var out []JobSummary
	for rows.Next() {
		var j JobSummary
		if err := rows.Scan(&j.ID, &j.Kind, &j.ClientTaskID, &j.Provider, &j.Operation, &j.Status, &j.AssetURL, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("op=admin.list.scan: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=admin.list.rows: %w", err)
	}
	return out, nil
}

// Count returns the total row count across both tables matching the filter,
// for pagination metadata.
func (a *AdminQueries) Count(ctx domain.Context, search, status string) (int64, error) {
	q := `
		SELECT
			(SELECT count(*) FROM images WHERE ($1 = '' OR status = $1) AND ($2 = '' OR client_task_id ILIKE '%'||$2||'%' OR provider ILIKE '%'||$2||'%')) +
			(SELECT count(*) FROM models WHERE ($1 = '' OR status = $1) AND ($2 = '' OR client_task_id ILIKE '%'||$2||'%' OR provider ILIKE '%'||$2||'%'))`
	var total int64
	if err := a.Pool.QueryRow(ctx, q, status, search).Scan(&total); err != nil {
		return 0, fmt.Errorf("op=admin.count: %w", err)
	}
	return total, nil
}
