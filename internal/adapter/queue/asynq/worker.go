package asynqadp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
)

// Runner executes one GenerationTaskPayload to completion; the concrete
// implementation is *orchestrator.Orchestrator, kept as an interface here so
// this package does not import internal/orchestrator.
type Runner interface {
	Run(ctx domain.Context, payload domain.GenerationTaskPayload) error
}

// Worker processes generation tasks using asynq, grounded on the teacher's
// internal/adapter/queue/asynq/worker.go NewWorker/Start/Stop shape: one
// asynq.Server bound to the routing table's weighted queues, one
// mux.HandleFunc per task type (here, the single TaskTypeGeneration), ack-
// late (the handler returns only once the Orchestrator reaches a terminal
// state, so asynq's lease/redelivery covers a worker crash mid-run).
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker constructs a Worker bound to the routing table's queues and
// per-queue concurrency settings (spec §4.4).
func NewWorker(redisURL string, rt *config.RoutingTable, cfg config.Config, run Runner) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=worker.new: %w", err)
	}

	queues := rt.Queues()
	concurrency := cfg.DefaultQueueConcurrency + cfg.TripoOtherQueueConcurrency + cfg.TripoRefineQueueConcurrency
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	})
	mux := asynq.NewServeMux()
	w := &Worker{server: srv, mux: mux}

	mux.HandleFunc(domain.TaskTypeGeneration, func(ctx context.Context, t *asynq.Task) error {
		tracer := otel.Tracer("queue.worker")
		ctx, span := tracer.Start(ctx, "GenerationTask")
		defer span.End()

		var payload domain.GenerationTaskPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("op=worker.unmarshal: %w", err)
		}
		return run.Run(ctx, payload)
	})

	return w, nil
}

// Start begins processing tasks until shutdown.
func (w *Worker) Start() error { return w.server.Start(w.mux) }

// Stop gracefully shuts down the worker server.
func (w *Worker) Stop() { w.server.Shutdown() }
