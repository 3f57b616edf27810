// Package postgres provides PostgreSQL database adapters.
//
// It implements repository interfaces for data persistence.
// The package provides type-safe database operations with
// connection pooling and transaction support.
package postgres

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// JobRepo persists and loads Jobs from one of the two physical tables
// (images, models) using a minimal pgx pool, grounded on the teacher's
// JobRepo (adapter/repo/postgres/jobs_repo.go): per-query otel spans,
// explicit-transaction status updates, fmt.Errorf("op=...") error tagging.
// One instance is constructed per domain.JobKind (see NewImageRepo,
// NewModelRepo) since the kind determines both the table and the tracer name.
type JobRepo struct {
	Pool  PgxPool
	table string
	kind  domain.JobKind
}

// NewImageRepo constructs a JobRepo backed by the images table.
func NewImageRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p, table: "images", kind: domain.KindImage} }

// NewModelRepo constructs a JobRepo backed by the models table.
func NewModelRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p, table: "models", kind: domain.KindModel} }

func (r *JobRepo) tracer() (string, string) { return "repo." + r.table, r.table }

// Create inserts a new job and returns its id.
func (r *JobRepo) Create(ctx domain.Context, j domain.Job) (string, error) {
	tracerName, table := r.tracer()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, table+".Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", table),
	)

	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	meta, err := marshalMetadata(j.Metadata)
	if err != nil {
		return "", fmt.Errorf("op=%s.create.marshal_metadata: %w", table, err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO ` + table + ` (id, client_task_id, tenant_id, provider, operation, status, prompt, style,
		source_asset_url, ai_service_task_id, asset_url, metadata, is_public, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err = r.Pool.Exec(ctx, q, id, j.ClientTaskID, j.TenantID, j.Provider, j.Operation, j.Status, j.Prompt, j.Style,
		j.SourceAssetURL, j.AIServiceTaskID, j.AssetURL, meta, j.IsPublic, now, now)
	if err != nil {
		return "", fmt.Errorf("op=%s.create: %w", table, err)
	}
	return id, nil
}

// Update applies patch to the job identified by id with explicit transaction
// management, mirroring the teacher's UpdateStatus treatment of status
// writes as the one mutation worth a dedicated transaction and audit log.
func (r *JobRepo) Update(ctx domain.Context, id string, patch domain.JobPatch) error {
	tracerName, table := r.tracer()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, table+".Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", table),
	)

	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }

	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, "status = "+next())
	}
	if patch.AIServiceTaskID != nil {
		args = append(args, *patch.AIServiceTaskID)
		sets = append(sets, "ai_service_task_id = "+next())
	}
	if patch.AssetURL != nil {
		args = append(args, *patch.AssetURL)
		sets = append(sets, "asset_url = "+next())
	}
	if patch.Prompt != nil {
		args = append(args, *patch.Prompt)
		sets = append(sets, "prompt = "+next())
	}
	if patch.Style != nil {
		args = append(args, *patch.Style)
		sets = append(sets, "style = "+next())
	}
	if patch.Metadata != nil {
		meta, err := marshalMetadata(patch.Metadata)
		if err != nil {
			return fmt.Errorf("op=%s.update.marshal_metadata: %w", table, err)
		}
		args = append(args, meta)
		if patch.MetadataMerge {
			sets = append(sets, "metadata = COALESCE(metadata, '{}'::jsonb) || "+next()+"::jsonb")
		} else {
			sets = append(sets, "metadata = "+next())
		}
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", table, strings.Join(sets, ", "), next())

	slog.Info("starting job update with explicit transaction",
		slog.String("job_id", id), slog.String("table", table))

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		slog.Error("failed to begin transaction for job update",
			slog.String("job_id", id), slog.Any("error", err))
		return fmt.Errorf("op=%s.update.begin_tx: %w", table, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("failed to rollback transaction", slog.String("job_id", id), slog.Any("error", rbErr))
			}
		}
	}()

	result, err := tx.Exec(ctx, q, args...)
	if err != nil {
		slog.Error("failed to execute job update within transaction",
			slog.String("job_id", id), slog.Any("error", err), slog.String("sql_query", q))
		return fmt.Errorf("op=%s.update.exec: %w", table, err)
	}
	if result.RowsAffected() == 0 {
		slog.Warn("job update affected 0 rows - job may not exist", slog.String("job_id", id), slog.String("table", table))
		return fmt.Errorf("op=%s.update: %w", table, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("failed to commit transaction for job update", slog.String("job_id", id), slog.Any("error", err))
		return fmt.Errorf("op=%s.update.commit: %w", table, err)
	}
	committed = true

	slog.Info("job update completed successfully", slog.String("job_id", id), slog.String("table", table))
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.Job, error) {
	tracerName, table := r.tracer()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, table+".Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", table),
	)

	q := `SELECT id, client_task_id, tenant_id, provider, operation, status, COALESCE(prompt,''), COALESCE(style,''),
		COALESCE(source_asset_url,''), COALESCE(ai_service_task_id,''), COALESCE(asset_url,''), metadata, is_public,
		created_at, updated_at FROM ` + table + ` WHERE id = $1`
	row := r.Pool.QueryRow(ctx, q, id)

	var j domain.Job
	var meta []byte
	if err := row.Scan(&j.ID, &j.ClientTaskID, &j.TenantID, &j.Provider, &j.Operation, &j.Status, &j.Prompt, &j.Style,
		&j.SourceAssetURL, &j.AIServiceTaskID, &j.AssetURL, &meta, &j.IsPublic, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Job{}, fmt.Errorf("op=%s.get: %w", table, domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=%s.get: %w", table, err)
	}
	j.Kind = r.kind
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return domain.Job{}, fmt.Errorf("op=%s.get.unmarshal_metadata: %w", table, err)
		}
	}
	return j, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
