// Package orchestrator implements the Job Orchestrator (C5): the five-step
// submit -> poll -> ingest -> finalize lifecycle every generation job goes
// through, grounded procedurally on handleEvaluate in the teacher's
// internal/adapter/queue/asynq/worker.go (status transitions interleaved
// with metric calls and structured logging), generalized from one AI-eval
// call into the provider-agnostic Driver lifecycle of spec.md §4.5.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/observability"
	"github.com/makeit3d/forge-gateway/internal/service/ratelimiter"
)

func withDeadline(ctx domain.Context, deadline time.Time) (domain.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, deadline)
}

// Repos resolves the JobRepository for a given JobKind; the Job Store
// Adapter has one physical table (and one JobRepository) per kind.
type Repos interface {
	For(kind domain.JobKind) domain.JobRepository
}

// Orchestrator drives one job through its full lifecycle.
type Orchestrator struct {
	Repos     Repos
	Drivers   domain.DriverRegistry
	Pipeline  domain.ArtifactPipeline
	Limiter   ratelimiter.Limiter
	JobTimeout func(kind domain.JobKind, multiview bool) time.Duration
}

// New builds an Orchestrator.
func New(repos Repos, drivers domain.DriverRegistry, pipeline domain.ArtifactPipeline, limiter ratelimiter.Limiter,
	jobTimeout func(kind domain.JobKind, multiview bool) time.Duration) *Orchestrator {
	return &Orchestrator{Repos: repos, Drivers: drivers, Pipeline: pipeline, Limiter: limiter, JobTimeout: jobTimeout}
}

// Run executes the submit->poll->ingest->finalize lifecycle for the job
// named by payload. It is idempotent at the Finalize step (L2): asynq may
// redeliver a task whose Orchestrator run crashed after Finalize committed,
// and re-running Finalize against an already-complete Job is a no-op write
// of the same terminal state.
func (o *Orchestrator) Run(ctx domain.Context, payload domain.GenerationTaskPayload) error {
	repo := o.Repos.For(payload.Kind)
	job, err := repo.Get(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("op=orchestrator.run.get: %w", err)
	}

	multiview := len(toStringSlice(payload.RequestParams["input_image_asset_urls"])) > 1
	deadline := time.Now().Add(o.JobTimeout(payload.Kind, multiview))
	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	// Step 1: setup.
	processing := domain.JobProcessing
	if err := repo.Update(ctx, job.ID, domain.JobPatch{Status: &processing}); err != nil {
		return fmt.Errorf("op=orchestrator.run.setup: %w", err)
	}
	observability.StartProcessingJob(string(payload.Operation))
	job.Status = domain.JobProcessing

	driver, ok := o.Drivers.Lookup(payload.Provider, payload.Operation)
	if !ok {
		return o.fail(ctx, repo, job, "no driver registered for provider/operation")
	}

	inputs := domain.DriverInputs{
		Bytes:    payload.InputBytes,
		URL:      payload.InputURL,
		FileExt:  payload.InputFileExt,
		Params:   payload.RequestParams,
	}

	// Step 2: submit, gated by the per-provider-class rate limiter
	// (spec §4.4: consulted immediately before Driver.Submit, never before Poll).
	if o.Limiter != nil {
		bucketKey := "submit:" + string(payload.Provider)
		allowed, retryAfter, lerr := o.Limiter.Allow(ctx, bucketKey, 1)
		if lerr == nil && !allowed {
			observability.RecordThrottle(bucketKey)
			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return o.timeoutFail(ctx, repo, job)
			}
		}
	}

	start := time.Now()
	outcome, err := driver.Submit(ctx, job, inputs)
	observability.RecordDriverCall(string(payload.Provider), string(payload.Operation), "submit", outcomeLabel(outcome, err), time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return o.fail(ctx, repo, job, err.Error())
		}
		return fmt.Errorf("op=orchestrator.run.submit: %w", err)
	}

	var artifactURL string
	var artifactBytes []byte
	var contentType string

	switch outcome.Kind {
	case domain.OutcomeFailed:
		return o.fail(ctx, repo, job, outcome.Reason)
	case domain.OutcomeSynchronous:
		artifactBytes = outcome.Bytes
		contentType = outcome.ContentType
	case domain.OutcomeRemoteTask:
		taskID := outcome.ProviderTaskID
		if err := repo.Update(ctx, job.ID, domain.JobPatch{AIServiceTaskID: &taskID}); err != nil {
			return fmt.Errorf("op=orchestrator.run.submit.record_task_id: %w", err)
		}
		job.AIServiceTaskID = taskID

		// Step 3: poll loop.
		ready, err := o.poll(ctx, repo, job, driver, outcome.ProviderTaskID, outcome.PollURL, payload)
		if err != nil {
			return err
		}
		if ready == nil {
			// poll already transitioned the job to a terminal state.
			return nil
		}
		artifactURL = ready.ArtifactURL
		artifactBytes = ready.ArtifactBytes
		contentType = ready.ContentType
	}

	if outcome.Kind == domain.OutcomeRemoteTask && len(outcome.Extra) > 0 {
		job.Metadata = mergeExtra(job.Metadata, outcome.Extra)
	}

	// Step 4: ingest.
	var blobURL string
	if artifactURL != "" {
		blobURL, err = o.Pipeline.IngestFromURL(ctx, job, artifactURL, "")
	} else {
		blobURL, err = o.Pipeline.IngestInlineBytes(ctx, job, artifactBytes, contentType, "")
	}
	if err != nil {
		return o.fail(ctx, repo, job, err.Error())
	}

	// Step 5: finalize.
	return o.finalize(ctx, repo, job, blobURL)
}

// poll repeatedly calls Driver.Poll until Ready, Failed, or the job
// deadline elapses, applying the tie-break rules of spec.md §4.5.
func (o *Orchestrator) poll(ctx domain.Context, repo domain.JobRepository, job domain.Job, driver domain.Driver,
	providerTaskID, pollURL string, payload domain.GenerationTaskPayload) (*domain.PollResult, error) {
	interval := pollIntervalFor(payload.Provider)
	for {
		select {
		case <-ctx.Done():
			return nil, o.timeoutFail(ctx, repo, job)
		default:
		}

		start := time.Now()
		result, err := driver.Poll(ctx, providerTaskID, pollURL)
		observability.RecordDriverCall(string(payload.Provider), string(payload.Operation), "poll", pollLabel(result, err), time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("op=orchestrator.poll: %w", err)
		}

		switch result.Kind {
		case domain.PollFailed:
			return nil, o.fail(ctx, repo, job, result.Reason)
		case domain.PollReady:
			if result.ArtifactURL == "" && len(result.ArtifactBytes) == 0 {
				return nil, o.fail(ctx, repo, job, domain.NoArtifactURLError)
			}
			return &result, nil
		case domain.PollInProgress:
			progress := result.ProgressPercent
			meta := map[string]any{"progress": progress}
			if err := repo.Update(ctx, job.ID, domain.JobPatch{Metadata: meta, MetadataMerge: true}); err != nil {
				slog.Warn("orchestrator: failed to record poll progress", slog.String("job_id", job.ID), slog.Any("error", err))
			}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, o.timeoutFail(ctx, repo, job)
		}
	}
}

func (o *Orchestrator) finalize(ctx domain.Context, repo domain.JobRepository, job domain.Job, blobURL string) error {
	status := domain.JobComplete
	patch := domain.JobPatch{Status: &status, AssetURL: &blobURL}
	if job.Metadata != nil {
		patch.Metadata = job.Metadata
		patch.MetadataMerge = true
	}
	if err := repo.Update(ctx, job.ID, patch); err != nil {
		return fmt.Errorf("op=orchestrator.finalize: %w", err)
	}
	observability.CompleteJob(string(job.Operation), string(job.Provider), string(job.Operation), time.Since(job.CreatedAt))
	slog.Info("job completed", slog.String("job_id", job.ID), slog.String("asset_url", blobURL))
	return nil
}

func (o *Orchestrator) fail(ctx domain.Context, repo domain.JobRepository, job domain.Job, reason string) error {
	status := domain.JobFailed
	if err := repo.Update(ctx, job.ID, domain.JobPatch{
		Status:   &status,
		Metadata: map[string]any{"error": reason},
	}); err != nil {
		return fmt.Errorf("op=orchestrator.fail: %w", err)
	}
	observability.FailJob(string(job.Operation), string(job.Provider), string(job.Operation), reason)
	slog.Warn("job failed", slog.String("job_id", job.ID), slog.String("reason", reason))
	return nil
}

func (o *Orchestrator) timeoutFail(ctx domain.Context, repo domain.JobRepository, job domain.Job) error {
	return o.fail(ctx, repo, job, domain.TimeoutError)
}

func pollIntervalFor(provider domain.Provider) time.Duration {
	if provider == domain.ProviderTripo {
		return 1 * time.Second
	}
	return 5 * time.Second
}

func mergeExtra(metadata map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if v, ok := extra["extra_asset_urls"]; ok {
		out["extra_asset_urls"] = v
	}
	return out
}

func toStringSlice(v any) []string {
	list, ok := v.([]string)
	if ok {
		return list
	}
	anyList, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anyList))
	for _, item := range anyList {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func outcomeLabel(outcome domain.DriverOutcome, err error) string {
	if err != nil {
		return "error"
	}
	return string(outcome.Kind)
}

func pollLabel(result domain.PollResult, err error) string {
	if err != nil {
		return "error"
	}
	return string(result.Kind)
}
