// Package domain defines core entities, ports, and domain-specific errors
// for the generative-media orchestration gateway.
package domain

import (
	"context"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// JobKind distinguishes the two physical job tables.
type JobKind string

// Job kinds.
const (
	KindImage JobKind = "image"
	KindModel JobKind = "model"
)

// Provider enumerates the supported third-party generation providers.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderStability Provider = "stability"
	ProviderRecraft   Provider = "recraft"
	ProviderFlux      Provider = "flux"
	ProviderTripo     Provider = "tripo"
)

// Operation enumerates the canonical operation set a Job may request.
type Operation string

// Supported operations.
const (
	OpTextToImage      Operation = "text_to_image"
	OpImageToImage     Operation = "image_to_image"
	OpSketchToImage    Operation = "sketch_to_image"
	OpRemoveBackground Operation = "remove_background"
	OpInpaint          Operation = "inpaint"
	OpSearchAndRecolor Operation = "search_and_recolor"
	OpUpscale          Operation = "upscale"
	OpDownscale        Operation = "downscale"
	OpTextToModel      Operation = "text_to_model"
	OpImageToModel     Operation = "image_to_model"
	OpRefineModel       Operation = "refine_model"
)

// JobStatus captures the lifecycle state of a generation job.
type JobStatus string

// Job status values. Transitions form a DAG: pending -> processing -> {complete|failed},
// and pending -> failed. No transitions out of terminal states (see invariant 5).
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobComplete   JobStatus = "complete"
	JobFailed     JobStatus = "failed"
)

// AssetPending is the placeholder value for Job.AssetURL before completion.
const AssetPending = "pending"

// TenantType enumerates the recognized tenant categories.
type TenantType string

// Tenant types.
const (
	TenantShopify     TenantType = "shopify"
	TenantSupabaseApp TenantType = "supabase_app"
	TenantCustom      TenantType = "custom"
	TenantDevelopment TenantType = "development"
)

// TenantContext is supplied by the (external) credential oracle.
type TenantContext struct {
	TenantID   string
	TenantType TenantType
	Metadata   map[string]any
}

// TenantResolver is the external collaborator that authenticates a request
// and returns a TenantContext. The core only consumes this interface; the
// key store and signing-secret registration flow live outside the core.
type TenantResolver interface {
	Resolve(ctx Context, apiKey string) (TenantContext, error)
}

// Job is the persisted envelope shared by ImageJob and ModelJob records.
type Job struct {
	ID              string
	ClientTaskID    string
	TenantID        string
	Kind            JobKind
	Provider        Provider
	Operation       Operation
	Status          JobStatus
	Prompt          string
	Style           string
	SourceAssetURL  string
	AIServiceTaskID string
	AssetURL        string
	Metadata        map[string]any
	IsPublic        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobPatch describes a partial update to a Job; nil pointer fields and a
// nil Metadata map leave the corresponding columns untouched.
type JobPatch struct {
	Status          *JobStatus
	AIServiceTaskID *string
	AssetURL        *string
	Prompt          *string
	Style           *string
	Metadata        map[string]any
	MetadataMerge   bool // true: merge into existing metadata; false: replace
}

// JobRepository is the persistence port shared by the images/models stores.
// One concrete implementation exists per JobKind (see adapter/repo/postgres).
type JobRepository interface {
	Create(ctx Context, j Job) (string, error)
	Update(ctx Context, id string, patch JobPatch) error
	Get(ctx Context, id string) (Job, error)
}

// TaskHandle is returned to the client by SubmitJob.
type TaskHandle struct {
	WorkerTaskID string
	JobID        string
}

// DriverOutcomeKind tags the variant of a DriverOutcome.
type DriverOutcomeKind string

// Driver outcome variants.
const (
	OutcomeSynchronous DriverOutcomeKind = "synchronous"
	OutcomeRemoteTask  DriverOutcomeKind = "remote_task"
	OutcomeFailed      DriverOutcomeKind = "failed"
)

// DriverOutcome is returned by Driver.Submit.
type DriverOutcome struct {
	Kind 		  DriverOutcomeKind
	Bytes         []byte // Synchronous
	ContentType   string // Synchronous
	ProviderTaskID string // RemoteTask
	PollURL       string // RemoteTask, optional
	Reason        string // Failed
	Extra         map[string]any
}

// PollResultKind tags the variant of a PollResult.
type PollResultKind string

// Poll result variants.
const (
	PollInProgress PollResultKind = "in_progress"
	PollReady      PollResultKind = "ready"
	PollFailed     PollResultKind = "failed"
)

// PollResult is returned by Driver.Poll.
type PollResult struct {
	Kind            PollResultKind
	ProgressPercent int    // InProgress, Ready (Tripo only; 0 otherwise)
	ArtifactURL     string // Ready, when the artifact is reachable by URL
	ArtifactBytes   []byte // Ready, when the artifact is returned inline
	ContentType     string // Ready, paired with ArtifactBytes
	Reason          string // Failed
}

// Capabilities describes the static properties of a Driver.
type Capabilities struct {
	NeedsInputBytes        bool
	IsSynchronous          bool
	ArtifactContentTypeHint string
}

// DriverInputs is the typed bundle passed to Driver.Submit.
type DriverInputs struct {
	Bytes    []byte // present when Capabilities.NeedsInputBytes
	URL      string // present when the driver accepts a URL directly (Tripo image-to-model)
	FileName string
	FileExt  string // "jpg" | "png", used by Tripo file.type tagging
	Params   map[string]any
}

// Driver is implemented once per (provider, operation) the system supports.
type Driver interface {
	Submit(ctx Context, job Job, inputs DriverInputs) (DriverOutcome, error)
	Poll(ctx Context, providerTaskID, pollURL string) (PollResult, error)
	Capabilities() Capabilities
}

// DriverRegistry resolves the Driver for a given (provider, operation) pair.
type DriverRegistry interface {
	Lookup(provider Provider, op Operation) (Driver, bool)
}

// BlobStore is the external object store abstraction (out of scope per
// spec §1; the core only consumes this interface).
type BlobStore interface {
	// Upload stores data at path.
	Upload(ctx Context, path string, data []byte, contentType string) error
	// PublicURL returns the stable public URL for path (valid only if IsPublic()).
	PublicURL(path string) string
	// SignedURL returns a time-limited URL for path.
	SignedURL(ctx Context, path string, ttl time.Duration) (string, error)
	// IsPublic reports whether the configured bucket serves public URLs.
	IsPublic() bool
}

// HTTPFetcher abstracts a bounded-timeout HTTP GET, used by the Artifact
// Pipeline to download bytes from provider or BlobStore URLs.
type HTTPFetcher interface {
	Fetch(ctx Context, url string, timeout time.Duration) (data []byte, contentType string, err error)
}

// ArtifactPipeline ingests provider output into durable storage.
type ArtifactPipeline interface {
	IngestInlineBytes(ctx Context, job Job, data []byte, contentType, logicalName string) (blobURL string, err error)
	IngestFromURL(ctx Context, job Job, sourceURL, logicalName string) (blobURL string, err error)
}

// Queue is the worker-runtime enqueue port.
type Queue interface {
	Enqueue(ctx Context, payload GenerationTaskPayload, queueName string) (workerTaskID string, err error)
}

// StatusView is the response shape of GetJobStatus.
type StatusView struct {
	WorkerTaskID string
	Status       JobStatus
	AssetURL     string
	Error        string
	Progress     *int
}

// ProviderClass is the status-endpoint hint naming how to interpret progress.
type ProviderClass string

// Provider classes.
const (
	ClassOpenAI  ProviderClass = "openai"
	ClassTripoAI ProviderClass = "tripoai"
)
