// Package asynqadp adapts github.com/hibiken/asynq to the Worker Runtime
// port (domain.Queue), routing each GenerationTaskPayload onto one of the
// three statically-weighted queues named in the routing table
// (internal/config/routing.go), grounded on the teacher's
// internal/adapter/queue/asynq/queue.go client wiring.
package asynqadp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

// Queue implements domain.Queue over an asynq.Client.
type Queue struct {
	client *asynq.Client
}

// New builds a Queue from a Redis connection URI.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=queue.new: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// Enqueue implements domain.Queue: per spec §4.1, retries are the Worker
// Runtime's concern, not the Driver's, so asynq's own MaxRetry (taken from
// domain.DefaultRetryConfig) governs redelivery of a task whose handler
// returned an error. RetryConfig.IsRetryable is not consulted: the
// orchestrator fails the Job itself on domain.ErrUpstreamUnavailable and
// returns any other error to asynq.
func (q *Queue) Enqueue(ctx domain.Context, payload domain.GenerationTaskPayload, queueName string) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue.marshal: %w", err)
	}
	t := asynq.NewTask(domain.TaskTypeGeneration, b)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue(queueName),
		asynq.MaxRetry(domain.DefaultRetryConfig().MaxRetries),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	observability.EnqueueJob(string(payload.Provider), string(payload.Operation), queueName)
	return info.ID, nil
}

// Close releases the underlying asynq client connection.
func (q *Queue) Close() error { return q.client.Close() }
