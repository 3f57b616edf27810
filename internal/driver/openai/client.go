// Package openai implements domain.Driver for OpenAI's image edit API
// (gpt-image-1). Submit sends every job to the image edit endpoint whatever
// its operation, including the text_to_image, remove_background and inpaint
// jobs config/routing.yaml also routes here. Grounded on
// original_source/app/ai_clients/openai_client.py.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/driver"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

const baseURL = "https://api.openai.com/v1"

// Client drives OpenAI's synchronous image edit endpoint. OpenAI never
// returns a pollable task: Submit yields the finished bytes directly
// (OutcomeSynchronous), so Poll is never actually reached by the Orchestrator
// but is implemented to satisfy domain.Driver uniformly.
type Client struct {
	apiKey string
	hc     *http.Client
	cb     *observability.CircuitBreaker
}

// New builds an OpenAI driver using the shared breaker registry.
func New(apiKey string, breakers *driver.Breakers) *Client {
	return &Client{
		apiKey: apiKey,
		hc:     driver.NewHTTPClient("openai", 120*time.Second),
		cb:     breakers.For(string(domain.ProviderOpenAI)),
	}
}

// Capabilities reports OpenAI image edit as synchronous, bytes-in/bytes-out.
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		NeedsInputBytes:         true,
		IsSynchronous:           true,
		ArtifactContentTypeHint: "image/png",
	}
}

// Submit calls POST /images/edits with a multipart body and returns the
// decoded base64 image inline (gpt-image-1 always answers with b64_json).
func (c *Client) Submit(ctx context.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	if !c.cb.CanExecute() {
		return domain.DriverOutcome{}, fmt.Errorf("openai: %w", domain.ErrUpstreamUnavailable)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fw, err := w.CreateFormFile("image", fileName(inputs))
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("openai: build request: %w", err)
	}
	if _, err := fw.Write(inputs.Bytes); err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("openai: build request: %w", err)
	}

	prompt := job.Prompt
	if job.Style != "" {
		prompt = prompt + " Style: " + job.Style
	}
	_ = w.WriteField("prompt", prompt)
	_ = w.WriteField("model", "gpt-image-1")
	_ = w.WriteField("n", strconv.Itoa(nOrDefault(inputs.Params)))
	_ = w.WriteField("size", "auto")
	if background, ok := inputs.Params["background"].(string); ok && background != "" {
		_ = w.WriteField("background", background)
	}
	if err := w.Close(); err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("openai: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/images/edits", body)
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("openai: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: fmt.Sprintf("openai rejected request: %d %s", resp.StatusCode, string(respBody))}, nil
	}
	if resp.StatusCode >= 500 {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("openai: %w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	c.cb.RecordSuccess()

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Data) == 0 {
		return domain.DriverOutcome{}, fmt.Errorf("openai: %w: malformed response", domain.ErrUpstreamUnavailable)
	}

	imgBytes, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("openai: decode image: %w", err)
	}

	return domain.DriverOutcome{
		Kind:        domain.OutcomeSynchronous,
		Bytes:       imgBytes,
		ContentType: "image/png",
	}, nil
}

// Poll is unreachable in practice: Submit always returns a synchronous
// outcome for this driver. Kept to satisfy domain.Driver.
func (c *Client) Poll(_ context.Context, _, _ string) (domain.PollResult, error) {
	return domain.PollResult{Kind: domain.PollReady, ProgressPercent: 100}, nil
}

func fileName(inputs domain.DriverInputs) string {
	if inputs.FileName != "" {
		return inputs.FileName
	}
	return "input." + inputs.FileExt
}

func nOrDefault(params map[string]any) int {
	if n, ok := params["n"].(int); ok && n > 0 {
		return n
	}
	if n, ok := params["n"].(float64); ok && n > 0 {
		return int(n)
	}
	return 1
}
