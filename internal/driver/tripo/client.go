// Package tripo implements domain.Driver for Tripo AI's v2 task API,
// covering text_to_model, image_to_model (single and multiview), and
// refine_model. Every Tripo operation is asynchronous: Submit creates a
// remote task and returns its id, Poll walks the task's output fields for
// the generated model URL. Grounded on
// original_source/app/ai_clients/tripo_client.py.
package tripo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/driver"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

const baseURLV2 = "https://api.tripo3d.ai/v2"

// Client drives Tripo's v2 openapi/task endpoint.
type Client struct {
	apiKey string
	hc     *http.Client
	cb     *observability.CircuitBreaker
}

// New builds a Tripo driver using the shared breaker registry.
func New(apiKey string, breakers *driver.Breakers) *Client {
	return &Client{
		apiKey: apiKey,
		hc:     driver.NewHTTPClient("tripo", 60*time.Second),
		cb:     breakers.For(string(domain.ProviderTripo)),
	}
}

// Capabilities reports Tripo as asynchronous; text_to_model needs no input
// bytes, the image-based operations accept URLs directly rather than bytes
// (Tripo's file.url addressing, no upload round-trip needed).
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		NeedsInputBytes:         false,
		IsSynchronous:           false,
		ArtifactContentTypeHint: "model/gltf-binary",
	}
}

// Submit creates a Tripo v2 task of the type implied by job.Operation and
// the input shape, and returns the task_id as a RemoteTask outcome.
func (c *Client) Submit(ctx context.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	if !c.cb.CanExecute() {
		return domain.DriverOutcome{}, fmt.Errorf("tripo: %w", domain.ErrUpstreamUnavailable)
	}

	taskType, payload, err := buildPayload(job, inputs)
	if err != nil {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: err.Error()}, nil
	}

	requestData := map[string]any{"type": taskType}
	for k, v := range payload {
		requestData[k] = v
	}

	b, err := json.Marshal(requestData)
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("tripo: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURLV2+"/openapi/task", bytes.NewReader(b))
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("tripo: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("tripo: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("tripo: read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: fmt.Sprintf("tripo rejected request: %d %s", resp.StatusCode, string(respBody))}, nil
	}
	if resp.StatusCode >= 500 {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("tripo: %w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	c.cb.RecordSuccess()

	var parsed struct {
		Code int `json:"code"`
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Code != 0 || parsed.Data.TaskID == "" {
		return domain.DriverOutcome{}, fmt.Errorf("tripo: %w: missing task_id", domain.ErrUpstreamUnavailable)
	}

	return domain.DriverOutcome{
		Kind:           domain.OutcomeRemoteTask,
		ProviderTaskID: parsed.Data.TaskID,
	}, nil
}

// buildPayload picks the Tripo v2 task type and request body for job's
// operation, following the exact branching of generate_text_to_model,
// generate_image_to_model, and refine_model.
func buildPayload(job domain.Job, inputs domain.DriverInputs) (string, map[string]any, error) {
	switch job.Operation {
	case domain.OpTextToModel:
		payload := map[string]any{"prompt": job.Prompt}
		if job.Style != "" {
			payload["style"] = job.Style
		}
		return "text_to_model", payload, nil

	case domain.OpImageToModel:
		urls, _ := inputs.Params["input_image_asset_urls"].([]string)
		if len(urls) == 0 {
			return "", nil, fmt.Errorf("tripo: input_image_asset_urls is required")
		}
		if len(urls) == 1 {
			payload := map[string]any{
				"file": map[string]string{"type": fileType(inputs.FileExt), "url": urls[0]},
			}
			if job.Style != "" {
				payload["style"] = job.Style
			}
			return "image_to_model", payload, nil
		}

		slots := domain.MultiviewSlots(urls)
		files := make([]map[string]string, 4)
		for i, url := range slots {
			if url == "" {
				if i == 0 {
					return "", nil, fmt.Errorf("tripo: front view (position 0) is required for multiview")
				}
				files[i] = map[string]string{}
				continue
			}
			files[i] = map[string]string{"type": fileType(inputs.FileExt), "url": url}
		}
		payload := map[string]any{"files": files}
		if job.Style != "" {
			payload["style"] = job.Style
		}
		return "multiview_to_model", payload, nil

	case domain.OpRefineModel:
		priorTaskID, _ := inputs.Params["prior_ai_service_task_id"].(string)
		if priorTaskID == "" {
			return "", nil, fmt.Errorf("tripo: prior_ai_service_task_id is required for refine_model")
		}
		payload := map[string]any{"draft_model_task_id": priorTaskID}
		if job.Prompt != "" {
			payload["prompt"] = job.Prompt
		}
		return "refine_model", payload, nil

	default:
		return "", nil, fmt.Errorf("tripo: unsupported operation %q", job.Operation)
	}
}

func fileType(ext string) string {
	if ext == "png" {
		return "png"
	}
	return "jpg"
}

// Poll fetches the task's status and extracts the model URL by walking
// output.pbr_model, output.base_model, output.model in that priority order.
func (c *Client) Poll(ctx context.Context, providerTaskID, _ string) (domain.PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURLV2+"/openapi/task/"+providerTaskID, nil)
	if err != nil {
		return domain.PollResult{}, fmt.Errorf("tripo: build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.PollResult{}, fmt.Errorf("tripo: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PollResult{}, fmt.Errorf("tripo: read poll response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return domain.PollResult{}, fmt.Errorf("tripo: %w: poll status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Status   string         `json:"status"`
			Progress float64        `json:"progress"`
			Output   map[string]any `json:"output"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.PollResult{}, fmt.Errorf("tripo: %w: malformed poll response", domain.ErrUpstreamUnavailable)
	}

	modelURL := extractModelURL(parsed.Data.Output)
	progress := int(parsed.Data.Progress)

	switch parsed.Data.Status {
	case "success":
		if modelURL == "" {
			return domain.PollResult{Kind: domain.PollFailed, Reason: domain.NoArtifactURLError}, nil
		}
		return domain.PollResult{Kind: domain.PollReady, ProgressPercent: 100, ArtifactURL: modelURL}, nil
	case "failed", "cancelled":
		return domain.PollResult{Kind: domain.PollFailed, Reason: "tripo task " + parsed.Data.Status}, nil
	case "queued", "running":
		return domain.PollResult{Kind: domain.PollInProgress, ProgressPercent: progress}, nil
	default: // "unknown" or unrecognized
		if modelURL != "" || progress == 100 {
			return domain.PollResult{Kind: domain.PollReady, ProgressPercent: 100, ArtifactURL: modelURL}, nil
		}
		return domain.PollResult{Kind: domain.PollInProgress, ProgressPercent: progress}, nil
	}
}

// extractModelURL walks output.pbr_model -> output.base_model -> output.model
// in strict priority order, per the tie-break the original normalizer applies.
func extractModelURL(output map[string]any) string {
	for _, key := range []string{"pbr_model", "base_model", "model"} {
		if v, ok := output[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
