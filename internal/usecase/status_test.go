package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

type stubTaskLookup struct {
	snapshot domain.TaskSnapshot
	err      error
}

func (l stubTaskLookup) Lookup(ctx domain.Context, workerTaskID string, candidateQueues []string) (domain.TaskSnapshot, error) {
	return l.snapshot, l.err
}

func TestGetJobStatus_UnknownTask(t *testing.T) {
	svc := NewStatusService(stubRepos{&stubRepo{}}, stubTaskLookup{err: assertErr{}}, stubRegistry{}, []string{"default"})

	_, err := svc.GetJobStatus(context.Background(), "missing", domain.ClassOpenAI)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetJobStatus_CompleteJob(t *testing.T) {
	repo := &stubRepo{created: domain.Job{ID: "job-1", Status: domain.JobComplete, AssetURL: "https://blob/out.png"}}
	lookup := stubTaskLookup{snapshot: domain.TaskSnapshot{State: "complete", JobID: "job-1", Kind: domain.KindImage}}
	svc := NewStatusService(stubRepos{repo}, lookup, stubRegistry{}, []string{"default"})

	view, err := svc.GetJobStatus(context.Background(), "worker-1", domain.ClassOpenAI)
	require.NoError(t, err)
	assert.Equal(t, domain.JobComplete, view.Status)
	assert.Equal(t, "https://blob/out.png", view.AssetURL)
}

func TestGetJobStatus_FailedJobCarriesReason(t *testing.T) {
	repo := &stubRepo{created: domain.Job{ID: "job-2", Status: domain.JobFailed, Metadata: map[string]any{"error": "bad prompt"}}}
	lookup := stubTaskLookup{snapshot: domain.TaskSnapshot{State: "failed", JobID: "job-2", Kind: domain.KindImage}}
	svc := NewStatusService(stubRepos{repo}, lookup, stubRegistry{}, []string{"default"})

	view, err := svc.GetJobStatus(context.Background(), "worker-2", domain.ClassOpenAI)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, view.Status)
	assert.Equal(t, "bad prompt", view.Error)
}

func TestGetJobStatus_TripoInFlightPollsLiveProgress(t *testing.T) {
	repo := &stubRepo{created: domain.Job{
		ID: "job-3", Status: domain.JobProcessing, Provider: domain.ProviderTripo,
		Operation: domain.OpTextToModel, AIServiceTaskID: "tripo-task-1",
	}}
	lookup := stubTaskLookup{snapshot: domain.TaskSnapshot{State: "processing", JobID: "job-3", Kind: domain.KindModel}}
	driver := pollingDriver{result: domain.PollResult{Kind: domain.PollInProgress, ProgressPercent: 42}}
	svc := NewStatusService(stubRepos{repo}, lookup, stubRegistry{driver}, []string{"tripo_other"})

	view, err := svc.GetJobStatus(context.Background(), "worker-3", domain.ClassTripoAI)
	require.NoError(t, err)
	require.NotNil(t, view.Progress)
	assert.Equal(t, 42, *view.Progress)
}

type pollingDriver struct {
	result domain.PollResult
}

func (pollingDriver) Submit(ctx domain.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	return domain.DriverOutcome{}, nil
}
func (d pollingDriver) Poll(ctx domain.Context, providerTaskID, pollURL string) (domain.PollResult, error) {
	return d.result, nil
}
func (pollingDriver) Capabilities() domain.Capabilities { return domain.Capabilities{} }
