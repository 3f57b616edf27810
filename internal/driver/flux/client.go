// Package flux implements domain.Driver for Flux (Black Forest Labs),
// covering text_to_image and image_to_image via flux-kontext-pro/flux-pro.
// Both operations are asynchronous: Submit returns a polling_url, Poll
// normalizes the remote status into domain.PollResult. Grounded on
// original_source/app/ai_clients/flux_client.py.
package flux

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/driver"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

const baseURL = "https://api.bfl.ai/v1"

// Client drives Flux's asynchronous generation endpoints.
type Client struct {
	apiKey string
	hc     *http.Client
	cb     *observability.CircuitBreaker
}

// New builds a Flux driver using the shared breaker registry.
func New(apiKey string, breakers *driver.Breakers) *Client {
	return &Client{
		apiKey: apiKey,
		hc:     driver.NewHTTPClient("flux", 30*time.Second),
		cb:     breakers.For(string(domain.ProviderFlux)),
	}
}

// Capabilities reports Flux as asynchronous and bytes-in for every op;
// Submit base64-encodes the bytes for image_to_image and does not send them
// for text_to_image.
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		NeedsInputBytes:         true,
		IsSynchronous:           false,
		ArtifactContentTypeHint: "image/png",
	}
}

// Submit POSTs to flux-kontext-pro (image_to_image) or flux-pro
// (text_to_image) and returns the task id and polling URL as a RemoteTask
// outcome.
func (c *Client) Submit(ctx context.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	if !c.cb.CanExecute() {
		return domain.DriverOutcome{}, fmt.Errorf("flux: %w", domain.ErrUpstreamUnavailable)
	}

	var (
		path    string
		payload map[string]any
	)
	switch job.Operation {
	case domain.OpImageToImage:
		path = "/flux-kontext-pro"
		payload = map[string]any{
			"prompt":            job.Prompt,
			"input_image":       base64.StdEncoding.EncodeToString(inputs.Bytes),
			"aspect_ratio":      "1:1",
			"output_format":     "png",
			"safety_tolerance":  2,
			"prompt_upsampling": false,
		}
	case domain.OpTextToImage:
		path = "/flux-pro"
		payload = map[string]any{
			"prompt":            job.Prompt,
			"width":             1024,
			"height":            1024,
			"safety_tolerance":  2,
			"prompt_upsampling": false,
		}
	default:
		return domain.DriverOutcome{}, fmt.Errorf("flux: unsupported operation %q", job.Operation)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("flux: build request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(b))
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("flux: build request: %w", err)
	}
	req.Header.Set("x-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("flux: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("flux: read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: fmt.Sprintf("flux rejected request: %d %s", resp.StatusCode, string(respBody))}, nil
	}
	if resp.StatusCode >= 500 {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("flux: %w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	c.cb.RecordSuccess()

	var parsed struct {
		ID         string `json:"id"`
		PollingURL string `json:"polling_url"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.ID == "" || parsed.PollingURL == "" {
		return domain.DriverOutcome{}, fmt.Errorf("flux: %w: missing id/polling_url", domain.ErrUpstreamUnavailable)
	}

	return domain.DriverOutcome{
		Kind:           domain.OutcomeRemoteTask,
		ProviderTaskID: parsed.ID,
		PollURL:        parsed.PollingURL,
	}, nil
}

// Poll fetches polling_url and normalizes Flux's status vocabulary
// (Pending/Ready/Error/Failed) into a domain.PollResult.
func (c *Client) Poll(ctx context.Context, _, pollURL string) (domain.PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return domain.PollResult{}, fmt.Errorf("flux: build poll request: %w", err)
	}
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.PollResult{}, fmt.Errorf("flux: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PollResult{}, fmt.Errorf("flux: read poll response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return domain.PollResult{}, fmt.Errorf("flux: %w: poll status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed struct {
		Status string `json:"status"`
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.PollResult{}, fmt.Errorf("flux: %w: malformed poll response", domain.ErrUpstreamUnavailable)
	}

	switch parsed.Status {
	case "Ready":
		url := ""
		switch r := parsed.Result.(type) {
		case map[string]any:
			if s, ok := r["sample"].(string); ok {
				url = s
			}
		case string:
			url = r
		}
		if url == "" {
			return domain.PollResult{Kind: domain.PollFailed, Reason: domain.NoArtifactURLError}, nil
		}
		return domain.PollResult{Kind: domain.PollReady, ProgressPercent: 100, ArtifactURL: url}, nil
	case "Error", "Failed":
		reason := parsed.Error
		if reason == "" {
			reason = "unknown flux error"
		}
		return domain.PollResult{Kind: domain.PollFailed, Reason: reason}, nil
	default: // "Pending" and any unrecognized value
		return domain.PollResult{Kind: domain.PollInProgress}, nil
	}
}
