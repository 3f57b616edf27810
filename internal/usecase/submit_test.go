package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
)

type stubRepo struct {
	created domain.Job
	patches []domain.JobPatch
	getErr  error
}

func (r *stubRepo) Create(ctx domain.Context, j domain.Job) (string, error) {
	r.created = j
	return "job-1", nil
}

func (r *stubRepo) Update(ctx domain.Context, id string, patch domain.JobPatch) error {
	r.patches = append(r.patches, patch)
	return nil
}

func (r *stubRepo) Get(ctx domain.Context, id string) (domain.Job, error) { return r.created, r.getErr }

type stubRepos struct{ repo *stubRepo }

func (s stubRepos) For(kind domain.JobKind) domain.JobRepository { return s.repo }

type stubDriver struct {
	caps domain.Capabilities
}

func (d stubDriver) Submit(ctx domain.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	return domain.DriverOutcome{}, nil
}
func (d stubDriver) Poll(ctx domain.Context, providerTaskID, pollURL string) (domain.PollResult, error) {
	return domain.PollResult{}, nil
}
func (d stubDriver) Capabilities() domain.Capabilities { return d.caps }

type stubRegistry struct{ driver domain.Driver }

func (r stubRegistry) Lookup(provider domain.Provider, op domain.Operation) (domain.Driver, bool) {
	if r.driver == nil {
		return nil, false
	}
	return r.driver, true
}

type stubQueue struct {
	taskID  string
	err     error
	payload domain.GenerationTaskPayload
	queue   string
}

func (q *stubQueue) Enqueue(ctx domain.Context, payload domain.GenerationTaskPayload, queueName string) (string, error) {
	q.payload = payload
	q.queue = queueName
	return q.taskID, q.err
}

type stubFetcher struct {
	data        []byte
	contentType string
	err         error
}

func (f stubFetcher) Fetch(ctx domain.Context, url string, timeout time.Duration) ([]byte, string, error) {
	return f.data, f.contentType, f.err
}

func loadRouting(t *testing.T) *config.RoutingTable {
	t.Helper()
	rt, err := config.LoadRoutingTable("../../config/routing.yaml")
	require.NoError(t, err)
	return rt
}

func TestSubmitJob_UnknownRoute_Rejected(t *testing.T) {
	repo := &stubRepo{}
	svc := NewSubmitService(stubRepos{repo}, stubRegistry{}, loadRouting(t), &stubQueue{}, stubFetcher{})

	_, err := svc.SubmitJob(context.Background(), SubmitRequest{
		Kind: domain.KindImage, Provider: "unknown", Operation: domain.OpTextToImage,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSubmitJob_SynchronousDriverStagesBytes(t *testing.T) {
	repo := &stubRepo{}
	driver := stubDriver{caps: domain.Capabilities{NeedsInputBytes: true}}
	queue := &stubQueue{taskID: "worker-1"}
	fetcher := stubFetcher{data: []byte("bytes"), contentType: "image/png"}
	svc := NewSubmitService(stubRepos{repo}, stubRegistry{driver}, loadRouting(t), queue, fetcher)

	handle, err := svc.SubmitJob(context.Background(), SubmitRequest{
		Kind: domain.KindImage, Provider: domain.ProviderStability, Operation: domain.OpTextToImage,
		SourceAssetURL: "https://blob/input.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "worker-1", handle.WorkerTaskID)
	assert.Equal(t, "job-1", handle.JobID)
	assert.Equal(t, []byte("bytes"), queue.payload.InputBytes)
	assert.Equal(t, "png", queue.payload.InputFileExt)
	assert.Equal(t, domain.JobProcessing, *repo.patches[len(repo.patches)-1].Status)
}

func TestSubmitJob_URLPassthroughDriverSkipsFetch(t *testing.T) {
	repo := &stubRepo{}
	driver := stubDriver{caps: domain.Capabilities{NeedsInputBytes: false}}
	queue := &stubQueue{taskID: "worker-2"}
	svc := NewSubmitService(stubRepos{repo}, stubRegistry{driver}, loadRouting(t), queue, stubFetcher{})

	_, err := svc.SubmitJob(context.Background(), SubmitRequest{
		Kind: domain.KindModel, Provider: domain.ProviderTripo, Operation: domain.OpImageToModel,
		SourceAssetURL: "https://blob/input.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://blob/input.png", queue.payload.InputURL)
	assert.Empty(t, queue.payload.InputBytes)
}

func TestSubmitJob_EnqueueFailureMarksJobFailed(t *testing.T) {
	repo := &stubRepo{}
	driver := stubDriver{}
	queue := &stubQueue{err: assertErr{}}
	svc := NewSubmitService(stubRepos{repo}, stubRegistry{driver}, loadRouting(t), queue, stubFetcher{})

	_, err := svc.SubmitJob(context.Background(), SubmitRequest{
		Kind: domain.KindImage, Provider: domain.ProviderStability, Operation: domain.OpTextToImage,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueueFull)
	require.NotEmpty(t, repo.patches)
	assert.Equal(t, domain.JobFailed, *repo.patches[0].Status)
}

type assertErr struct{}

func (assertErr) Error() string { return "enqueue boom" }
