// Package httpserver contains HTTP handlers and middleware.
//
// It provides the REST API surface for job submission and status
// polling, translating validated requests into usecase calls and
// usecase errors into the JSON error envelope.
// The package follows clean architecture principles and provides
// a clear separation between HTTP concerns and business logic.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy to HTTP status codes per the
// recommended mapping: InvalidRequest->400, Unauthorized->401,
// UpstreamUnavailable->502, Timeout->504, others->500.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = http.StatusBadRequest
		codeStr = "INVALID_REQUEST"
	case errors.Is(err, domain.ErrUnauthorized):
		code = http.StatusUnauthorized
		codeStr = "UNAUTHORIZED"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		code = http.StatusBadGateway
		codeStr = "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, domain.ErrArtifactFetch):
		code = http.StatusBadGateway
		codeStr = "ARTIFACT_FETCH_ERROR"
	case errors.Is(err, domain.ErrArtifactStore):
		code = http.StatusBadGateway
		codeStr = "ARTIFACT_STORE_ERROR"
	case errors.Is(err, domain.ErrProviderTaskFailed):
		code = http.StatusBadGateway
		codeStr = "PROVIDER_TASK_FAILED"
	case errors.Is(err, domain.ErrTimeout):
		code = http.StatusGatewayTimeout
		codeStr = "TIMEOUT"
	case errors.Is(err, domain.ErrQueueFull):
		code = http.StatusServiceUnavailable
		codeStr = "QUEUE_FULL"
	case errors.Is(err, domain.ErrPersistence):
		code = http.StatusInternalServerError
		codeStr = "PERSISTENCE_ERROR"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
