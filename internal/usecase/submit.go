// Package usecase contains the application services that sit between the
// HTTP adapter and the core ports (domain): job submission and status
// lookup.
package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
	obsctx "github.com/makeit3d/forge-gateway/internal/observability"
)

// JobRepoResolver resolves the JobRepository for a given JobKind; the Job
// Store Adapter keeps one physical table (and one JobRepository) per kind.
type JobRepoResolver interface {
	For(kind domain.JobKind) domain.JobRepository
}

// SubmitRequest is the fully-validated request bundle SubmitJob acts on.
// Operation-specific parameters (n, background, mask_bytes, select_prompt,
// input_image_asset_urls, prior_ai_service_task_id, ...) travel in Params;
// request-shape validation happens at the HTTP adapter, constraint
// validation against the routing table and Driver capabilities happens here.
type SubmitRequest struct {
	Kind           domain.JobKind
	Provider       domain.Provider
	Operation      domain.Operation
	ClientTaskID   string
	Tenant         domain.TenantContext
	Prompt         string
	Style          string
	SourceAssetURL string
	Params         map[string]any
}

// SubmitService implements SubmitJob (spec §4.6).
type SubmitService struct {
	Repos    JobRepoResolver
	Drivers  domain.DriverRegistry
	Routing  *config.RoutingTable
	Queue    domain.Queue
	Fetcher  domain.HTTPFetcher
	FetchTTL time.Duration
}

// NewSubmitService constructs a SubmitService with its dependencies.
func NewSubmitService(repos JobRepoResolver, drivers domain.DriverRegistry, routing *config.RoutingTable, q domain.Queue, fetcher domain.HTTPFetcher) *SubmitService {
	return &SubmitService{Repos: repos, Drivers: drivers, Routing: routing, Queue: q, Fetcher: fetcher, FetchTTL: 30 * time.Second}
}

// SubmitJob validates the request, creates the Job (status=pending), stages
// input bytes when the resolved Driver needs them, enqueues the worker task,
// and marks the Job processing with its worker_task_id.
func (s *SubmitService) SubmitJob(ctx domain.Context, req SubmitRequest) (domain.TaskHandle, error) {
	tr := otel.Tracer("usecase.submit")
	ctx, span := tr.Start(ctx, "SubmitService.SubmitJob")
	defer span.End()

	lg := obsctx.LoggerFromContext(ctx)
	lg.Info("submit job request",
		slog.String("provider", string(req.Provider)),
		slog.String("operation", string(req.Operation)),
		slog.String("client_task_id", req.ClientTaskID),
		slog.String("request_id", obsctx.RequestIDFromContext(ctx)))

	// Step 1: validate (provider, operation) against the routing table.
	queueName, ok := s.Routing.Queue(req.Provider, req.Operation)
	if !ok {
		lg.Warn("submit job rejected: no route", slog.String("provider", string(req.Provider)), slog.String("operation", string(req.Operation)))
		return domain.TaskHandle{}, fmt.Errorf("%w: no route for %s/%s", domain.ErrInvalidRequest, req.Provider, req.Operation)
	}

	driver, ok := s.Drivers.Lookup(req.Provider, req.Operation)
	if !ok {
		lg.Warn("submit job rejected: no driver", slog.String("provider", string(req.Provider)), slog.String("operation", string(req.Operation)))
		return domain.TaskHandle{}, fmt.Errorf("%w: no driver for %s/%s", domain.ErrInvalidRequest, req.Provider, req.Operation)
	}

	// Step 2: operation-specific constraints are validated by the HTTP
	// adapter's per-operation decoders; here we only check the artifact
	// input requirement implied by the Driver's capabilities.
	caps := driver.Capabilities()

	// Step 3: stage the input artifact. Drivers that need inline bytes get
	// them fetched once through the BlobStore-backed fetcher; drivers that
	// accept a URL directly (Tripo image-to-model) receive the URL as-is.
	var inputBytes []byte
	var inputURL string
	var fileExt string
	if req.SourceAssetURL != "" {
		if caps.NeedsInputBytes {
			data, contentType, err := s.Fetcher.Fetch(ctx, req.SourceAssetURL, s.fetchTTL())
			if err != nil {
				lg.Error("submit job failed to stage input bytes", slog.Any("error", err), slog.String("source_asset_url", req.SourceAssetURL))
				return domain.TaskHandle{}, fmt.Errorf("%w: %w", domain.ErrArtifactFetch, err)
			}
			inputBytes = data
			fileExt = extFromContentType(contentType)
		} else {
			inputURL = req.SourceAssetURL
		}
	}

	// Step 4: create the Job (status=pending).
	job := domain.Job{
		ClientTaskID:   req.ClientTaskID,
		TenantID:       req.Tenant.TenantID,
		Kind:           req.Kind,
		Provider:       req.Provider,
		Operation:      req.Operation,
		Status:         domain.JobPending,
		Prompt:         req.Prompt,
		Style:          req.Style,
		SourceAssetURL: req.SourceAssetURL,
		AssetURL:       domain.AssetPending,
	}
	jobID, err := s.Repos.For(req.Kind).Create(ctx, job)
	if err != nil {
		lg.Error("submit job failed to create job", slog.Any("error", err))
		return domain.TaskHandle{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	lg.Info("submit job created job", slog.String("job_id", jobID))

	payload := domain.GenerationTaskPayload{
		JobID:         jobID,
		ClientTaskID:  req.ClientTaskID,
		TenantID:      req.Tenant.TenantID,
		Kind:          req.Kind,
		Provider:      req.Provider,
		Operation:     req.Operation,
		RequestParams: req.Params,
		InputBytes:    inputBytes,
		InputURL:      inputURL,
		InputFileExt:  fileExt,
	}

	workerTaskID, err := s.Queue.Enqueue(ctx, payload, queueName)
	if err != nil {
		failed := domain.JobFailed
		reason := "enqueue failed"
		_ = s.Repos.For(req.Kind).Update(ctx, jobID, domain.JobPatch{Status: &failed, Metadata: map[string]any{"error": reason}})
		lg.Error("submit job failed to enqueue", slog.String("job_id", jobID), slog.Any("error", err))
		return domain.TaskHandle{}, fmt.Errorf("%w: %w", domain.ErrQueueFull, err)
	}

	// Step 5: mark the job processing, recording the worker task id.
	processing := domain.JobProcessing
	if err := s.Repos.For(req.Kind).Update(ctx, jobID, domain.JobPatch{Status: &processing, AIServiceTaskID: &workerTaskID}); err != nil {
		lg.Error("submit job failed to mark processing", slog.String("job_id", jobID), slog.Any("error", err))
		return domain.TaskHandle{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	lg.Info("submit job enqueued", slog.String("job_id", jobID), slog.String("worker_task_id", workerTaskID), slog.String("queue", queueName))

	// Step 6: return the handle.
	return domain.TaskHandle{WorkerTaskID: workerTaskID, JobID: jobID}, nil
}

func (s *SubmitService) fetchTTL() time.Duration {
	if s.FetchTTL > 0 {
		return s.FetchTTL
	}
	return 30 * time.Second
}

func extFromContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
