package asynqadp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// Inspector implements domain.TaskStateLookup over asynq's Inspector,
// grounded on the teacher's use of Celery's AsyncResult in
// task_status.py (the Python original this gateway supersedes): a
// worker_task_id alone does not carry its queue, so candidateQueues is
// tried in turn until one reports the task.
type Inspector struct {
	inspector *asynq.Inspector
}

// NewInspector constructs an Inspector against the same Redis instance the
// Worker Runtime enqueues onto.
func NewInspector(redisURL string) (*Inspector, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=inspector.new: %w", err)
	}
	return &Inspector{inspector: asynq.NewInspector(opt)}, nil
}

// Lookup reports the current state of workerTaskID, trying each of
// candidateQueues until the task is found.
func (i *Inspector) Lookup(ctx domain.Context, workerTaskID string, candidateQueues []string) (domain.TaskSnapshot, error) {
	var lastErr error
	for _, queue := range candidateQueues {
		info, err := i.inspector.GetTaskInfo(queue, workerTaskID)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				lastErr = err
				continue
			}
			return domain.TaskSnapshot{}, fmt.Errorf("op=inspector.lookup: %w", err)
		}
		return snapshotFromTaskInfo(info), nil
	}
	if lastErr == nil {
		lastErr = asynq.ErrTaskNotFound
	}
	return domain.TaskSnapshot{}, fmt.Errorf("op=inspector.lookup: %w", lastErr)
}

func snapshotFromTaskInfo(info *asynq.TaskInfo) domain.TaskSnapshot {
	var payload domain.GenerationTaskPayload
	_ = json.Unmarshal(info.Payload, &payload)

	snap := domain.TaskSnapshot{JobID: payload.JobID, Kind: payload.Kind}
	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		snap.State = string(domain.JobPending)
	case asynq.TaskStateActive, asynq.TaskStateRetry:
		snap.State = string(domain.JobProcessing)
	case asynq.TaskStateCompleted:
		snap.State = string(domain.JobComplete)
	case asynq.TaskStateArchived:
		snap.State = string(domain.JobFailed)
		snap.Err = info.LastErr
	default:
		snap.State = string(domain.JobProcessing)
	}
	return snap
}
