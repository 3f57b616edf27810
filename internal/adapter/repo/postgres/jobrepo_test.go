package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeit3d/forge-gateway/internal/adapter/repo/postgres"
	"github.com/makeit3d/forge-gateway/internal/domain"
)

func TestImageRepo_Create_Update_Get(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewImageRepo(m)
	ctx := context.Background()

	m.ExpectExec("INSERT INTO images").
		WithArgs(pgxmock.AnyArg(), "client-1", "tenant-1", domain.ProviderStability, domain.OpTextToImage,
			domain.JobPending, "a cat", "", "", "", "", pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := repo.Create(ctx, domain.Job{
		ClientTaskID: "client-1",
		TenantID:     "tenant-1",
		Provider:     domain.ProviderStability,
		Operation:    domain.OpTextToImage,
		Status:       domain.JobPending,
		Prompt:       "a cat",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	m.ExpectBegin()
	m.ExpectExec("UPDATE images SET").
		WithArgs(pgxmock.AnyArg(), domain.JobProcessing, "task-123", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	m.ExpectCommit()
	status := domain.JobProcessing
	taskID := "task-123"
	require.NoError(t, repo.Update(ctx, id, domain.JobPatch{Status: &status, AIServiceTaskID: &taskID}))

	fixed := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "client_task_id", "tenant_id", "provider", "operation", "status", "prompt",
		"style", "source_asset_url", "ai_service_task_id", "asset_url", "metadata", "is_public", "created_at", "updated_at"}).
		AddRow(id, "client-1", "tenant-1", string(domain.ProviderStability), string(domain.OpTextToImage),
			string(domain.JobProcessing), "a cat", "", "", "task-123", "", []byte(`{}`), false, fixed, fixed)
	m.ExpectQuery("SELECT id, client_task_id, tenant_id, provider, operation, status").
		WithArgs(id).
		WillReturnRows(rows)
	j, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, j.ID)
	assert.Equal(t, domain.KindImage, j.Kind)

	m.ExpectQuery("SELECT id, client_task_id, tenant_id, provider, operation, status").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.ExpectationsWereMet())
}

func TestModelRepo_Update_NoRowsAffected(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewModelRepo(m)
	ctx := context.Background()

	m.ExpectBegin()
	m.ExpectExec("UPDATE models SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	m.ExpectRollback()
	status := domain.JobFailed
	err = repo.Update(ctx, "missing", domain.JobPatch{Status: &status})
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.ExpectationsWereMet())
}
