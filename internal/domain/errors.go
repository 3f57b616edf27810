package domain

import "errors"

// Error taxonomy (sentinels), canonical per the gateway's error handling design.
// HTTP adapter mapping (recommended): InvalidRequest->400, Unauthorized->401,
// UpstreamUnavailable->502, Timeout->504, others->500.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrArtifactFetch       = errors.New("artifact fetch error")
	ErrArtifactStore       = errors.New("artifact store error")
	ErrProviderTaskFailed  = errors.New("provider task failed")
	ErrTimeout             = errors.New("timeout")
	ErrPersistence         = errors.New("persistence error")
	ErrQueueFull           = errors.New("queue full")
	ErrInternal            = errors.New("internal error")
)

// NoArtifactURLError is the canned reason recorded when a Ready poll result
// carries no extractable artifact reference (Orchestrator step 3 tie-break).
const NoArtifactURLError = "no_artifact_url"

// TimeoutError is the canned reason recorded when the per-job deadline elapses.
const TimeoutError = "timeout"
