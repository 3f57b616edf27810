package usecase

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/makeit3d/forge-gateway/internal/domain"
	obsctx "github.com/makeit3d/forge-gateway/internal/observability"
)

// StatusService implements GetJobStatus (spec §4.6), grounded on
// task_status.py's service-hint branching: the query distinguishes an
// openai-like provider (status is read straight off the persisted Job) from
// a tripoai-like one, for which an in-flight job additionally gets a live
// Driver.Poll so the client sees provider-reported progress without waiting
// for the next worker tick.
type StatusService struct {
	Repos   JobRepoResolver
	Tasks   domain.TaskStateLookup
	Drivers domain.DriverRegistry
	Queues  []string
}

// NewStatusService constructs a StatusService with its dependencies.
func NewStatusService(repos JobRepoResolver, tasks domain.TaskStateLookup, drivers domain.DriverRegistry, queues []string) *StatusService {
	return &StatusService{Repos: repos, Tasks: tasks, Drivers: drivers, Queues: queues}
}

// GetJobStatus resolves a worker_task_id to its Job and reports the status
// view. class hints how to interpret an in-flight task: ClassTripoAI
// additionally polls the provider for live progress.
func (s *StatusService) GetJobStatus(ctx domain.Context, workerTaskID string, class domain.ProviderClass) (domain.StatusView, error) {
	tr := otel.Tracer("usecase.status")
	ctx, span := tr.Start(ctx, "StatusService.GetJobStatus")
	defer span.End()

	lg := obsctx.LoggerFromContext(ctx)

	snapshot, err := s.Tasks.Lookup(ctx, workerTaskID, s.Queues)
	if err != nil {
		lg.Warn("status lookup: worker task not found", slog.String("worker_task_id", workerTaskID), slog.Any("error", err))
		return domain.StatusView{}, fmt.Errorf("%w: worker task %s", domain.ErrNotFound, workerTaskID)
	}

	if snapshot.JobID == "" {
		// Queued but not yet picked up by a worker: no Job row exists to read
		// from yet (SubmitJob creates the Job before enqueueing, so in
		// practice this only fires for a task the enqueue step never
		// completed against, i.e. snapshot.State == "pending").
		return domain.StatusView{WorkerTaskID: workerTaskID, Status: domain.JobPending}, nil
	}

	job, err := s.Repos.For(snapshot.Kind).Get(ctx, snapshot.JobID)
	if err != nil {
		lg.Error("status lookup: failed to get job", slog.String("job_id", snapshot.JobID), slog.Any("error", err))
		return domain.StatusView{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, snapshot.JobID)
	}

	view := domain.StatusView{
		WorkerTaskID: workerTaskID,
		Status:       job.Status,
		AssetURL:     job.AssetURL,
	}
	if job.Status == domain.JobFailed {
		if reason, ok := job.Metadata["error"].(string); ok {
			view.Error = reason
		} else {
			view.Error = snapshot.Err
		}
		return view, nil
	}
	if job.Status != domain.JobProcessing || class != domain.ClassTripoAI || job.AIServiceTaskID == "" {
		return view, nil
	}

	driver, ok := s.Drivers.Lookup(job.Provider, job.Operation)
	if !ok {
		return view, nil
	}
	result, err := driver.Poll(ctx, job.AIServiceTaskID, "")
	if err != nil {
		lg.Warn("status lookup: live poll failed", slog.String("job_id", job.ID), slog.Any("error", err))
		return view, nil
	}
	if result.Kind == domain.PollInProgress {
		progress := result.ProgressPercent
		view.Progress = &progress
	}
	return view, nil
}
