package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

type fakeRepo struct {
	job     domain.Job
	patches []domain.JobPatch
}

func (r *fakeRepo) Create(ctx domain.Context, j domain.Job) (string, error) { return j.ID, nil }

func (r *fakeRepo) Update(ctx domain.Context, id string, patch domain.JobPatch) error {
	r.patches = append(r.patches, patch)
	if patch.Status != nil {
		r.job.Status = *patch.Status
	}
	if patch.AIServiceTaskID != nil {
		r.job.AIServiceTaskID = *patch.AIServiceTaskID
	}
	if patch.AssetURL != nil {
		r.job.AssetURL = *patch.AssetURL
	}
	return nil
}

func (r *fakeRepo) Get(ctx domain.Context, id string) (domain.Job, error) { return r.job, nil }

type fakeRepos struct{ repo *fakeRepo }

func (f fakeRepos) For(kind domain.JobKind) domain.JobRepository { return f.repo }

type fakeDriver struct {
	submitOutcome domain.DriverOutcome
	submitErr     error
	pollResults   []domain.PollResult
	pollIdx       int
}

func (d *fakeDriver) Submit(ctx domain.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	return d.submitOutcome, d.submitErr
}

func (d *fakeDriver) Poll(ctx domain.Context, providerTaskID, pollURL string) (domain.PollResult, error) {
	r := d.pollResults[d.pollIdx]
	if d.pollIdx < len(d.pollResults)-1 {
		d.pollIdx++
	}
	return r, nil
}

func (d *fakeDriver) Capabilities() domain.Capabilities { return domain.Capabilities{} }

type fakeRegistry struct{ driver domain.Driver }

func (f fakeRegistry) Lookup(provider domain.Provider, op domain.Operation) (domain.Driver, bool) {
	return f.driver, true
}

type fakePipeline struct {
	ingestedBytes []byte
	ingestedURL   string
	blobURL       string
}

func (p *fakePipeline) IngestInlineBytes(ctx domain.Context, job domain.Job, data []byte, contentType, logicalName string) (string, error) {
	p.ingestedBytes = data
	return p.blobURL, nil
}

func (p *fakePipeline) IngestFromURL(ctx domain.Context, job domain.Job, sourceURL, logicalName string) (string, error) {
	p.ingestedURL = sourceURL
	return p.blobURL, nil
}

func fixedTimeout(domain.JobKind, bool) time.Duration { return 5 * time.Second }

func TestRun_SynchronousSuccess(t *testing.T) {
	repo := &fakeRepo{job: domain.Job{ID: "j1", Kind: domain.KindImage, Status: domain.JobPending}}
	driver := &fakeDriver{submitOutcome: domain.DriverOutcome{Kind: domain.OutcomeSynchronous, Bytes: []byte("png-bytes"), ContentType: "image/png"}}
	pipeline := &fakePipeline{blobURL: "https://blob/assets/images/j1/output.png"}
	o := New(fakeRepos{repo}, fakeRegistry{driver}, pipeline, nil, fixedTimeout)

	err := o.Run(context.Background(), domain.GenerationTaskPayload{JobID: "j1", Kind: domain.KindImage, Provider: domain.ProviderStability, Operation: domain.OpTextToImage})
	require.NoError(t, err)
	assert.Equal(t, domain.JobComplete, repo.job.Status)
	assert.Equal(t, pipeline.blobURL, repo.job.AssetURL)
	assert.Equal(t, []byte("png-bytes"), pipeline.ingestedBytes)
}

func TestRun_SubmitFailed(t *testing.T) {
	repo := &fakeRepo{job: domain.Job{ID: "j2", Kind: domain.KindImage, Status: domain.JobPending}}
	driver := &fakeDriver{submitOutcome: domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: "bad prompt"}}
	pipeline := &fakePipeline{}
	o := New(fakeRepos{repo}, fakeRegistry{driver}, pipeline, nil, fixedTimeout)

	err := o.Run(context.Background(), domain.GenerationTaskPayload{JobID: "j2", Kind: domain.KindImage, Provider: domain.ProviderStability, Operation: domain.OpTextToImage})
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, repo.job.Status)
}

func TestRun_RemoteTaskPollsToReady(t *testing.T) {
	repo := &fakeRepo{job: domain.Job{ID: "j3", Kind: domain.KindModel, Status: domain.JobPending}}
	driver := &fakeDriver{
		submitOutcome: domain.DriverOutcome{Kind: domain.OutcomeRemoteTask, ProviderTaskID: "task-1"},
		pollResults: []domain.PollResult{
			{Kind: domain.PollInProgress, ProgressPercent: 50},
			{Kind: domain.PollReady, ArtifactURL: "https://provider/model.glb"},
		},
	}
	pipeline := &fakePipeline{blobURL: "https://blob/assets/models/j3/output.glb"}
	o := New(fakeRepos{repo}, fakeRegistry{driver}, pipeline, nil, fixedTimeout)

	err := o.Run(context.Background(), domain.GenerationTaskPayload{JobID: "j3", Kind: domain.KindModel, Provider: domain.ProviderTripo, Operation: domain.OpTextToModel})
	require.NoError(t, err)
	assert.Equal(t, domain.JobComplete, repo.job.Status)
	assert.Equal(t, "task-1", repo.job.AIServiceTaskID)
	assert.Equal(t, "https://provider/model.glb", pipeline.ingestedURL)
}

func TestRun_ReadyWithNoArtifactFails(t *testing.T) {
	repo := &fakeRepo{job: domain.Job{ID: "j4", Kind: domain.KindModel, Status: domain.JobPending}}
	driver := &fakeDriver{
		submitOutcome: domain.DriverOutcome{Kind: domain.OutcomeRemoteTask, ProviderTaskID: "task-2"},
		pollResults:   []domain.PollResult{{Kind: domain.PollReady}},
	}
	pipeline := &fakePipeline{}
	o := New(fakeRepos{repo}, fakeRegistry{driver}, pipeline, nil, fixedTimeout)

	err := o.Run(context.Background(), domain.GenerationTaskPayload{JobID: "j4", Kind: domain.KindModel, Provider: domain.ProviderTripo, Operation: domain.OpTextToModel})
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, repo.job.Status)
}
