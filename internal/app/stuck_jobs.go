package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/makeit3d/forge-gateway/internal/adapter/repo/postgres"
	"github.com/makeit3d/forge-gateway/internal/domain"
)

// Repos resolves the JobRepository for a given JobKind; mirrors
// orchestrator.Repos so this package does not import internal/orchestrator.
type Repos interface {
	For(kind domain.JobKind) domain.JobRepository
}

// StuckJobSweeper marks jobs as "failed" once they have sat in "processing"
// with no update for longer than maxProcessingAge (one age for every job
// kind and operation), covering the case a worker process
// died mid-run and never reached the Orchestrator's own fail/finalize path
// (asynq redelivers the task, but a crash before the task's own deadline
// elapsed leaves the Job row stranded until this sweeper runs), grounded on
// the teacher's internal/usecase CleanupService.RunPeriodic ticker loop.
type StuckJobSweeper struct {
	admin            *postgres.AdminQueries
	repos            Repos
	maxProcessingAge time.Duration
	interval         time.Duration
}

// NewStuckJobSweeper builds a sweeper; returns nil if admin or repos is nil
// so Run is a safe no-op on an unconfigured sweeper.
func NewStuckJobSweeper(admin *postgres.AdminQueries, repos Repos, maxProcessingAge, interval time.Duration) *StuckJobSweeper {
	if admin == nil || repos == nil {
		return nil
	}
	if maxProcessingAge <= 0 {
		maxProcessingAge = 3 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckJobSweeper{admin: admin, repos: repos, maxProcessingAge: maxProcessingAge, interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is canceled.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckJobSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-s.maxProcessingAge)
	const pageSize = 100
	span.SetAttributes(attribute.Int("jobs.page_size", pageSize), attribute.Float64("jobs.max_processing_age_seconds", s.maxProcessingAge.Seconds()))

	totalChecked, totalMarkedFailed := 0, 0
	for offset := 0; ; offset += pageSize {
		jobs, err := s.admin.List(ctx, offset, pageSize, "", string(domain.JobProcessing))
		if err != nil {
			span.RecordError(err)
			slog.Error("stuck job sweep failed to list jobs", slog.Any("error", err))
			return
		}
		totalChecked += len(jobs)
		if len(jobs) == 0 {
			break
		}

		for _, j := range jobs {
			if j.UpdatedAt.After(cutoff) {
				continue
			}
			reason := fmt.Sprintf("job processing exceeded maximum age %v; marked failed by sweeper", s.maxProcessingAge)
			failed := domain.JobFailed
			if err := s.repos.For(j.Kind).Update(ctx, j.ID, domain.JobPatch{Status: &failed, Metadata: map[string]any{"error": reason}}); err != nil {
				slog.Error("stuck job sweep failed to update job status", slog.String("job_id", j.ID), slog.Any("error", err))
				continue
			}
			totalMarkedFailed++
		}
		if len(jobs) < pageSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("jobs.total_checked", totalChecked), attribute.Int("jobs.total_marked_failed", totalMarkedFailed))
}
