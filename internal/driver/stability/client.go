// Package stability implements domain.Driver for Stability AI's v2beta
// endpoints, covering text_to_image, image_to_image, sketch_to_image,
// remove_background, search_and_recolor, and image_to_model. Grounded on
// original_source/app/ai_clients/stability_client.py.
package stability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/driver"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

const baseURL = "https://api.stability.ai"

// endpoint maps each operation this gateway routes to Stability onto its
// v2beta path, grounded on the operation-specific methods of the original
// StabilityClient.
var endpoint = map[domain.Operation]string{
	domain.OpTextToImage:      "/v2beta/stable-image/generate/core",
	domain.OpImageToImage:     "/v2beta/stable-image/control/style",
	domain.OpSketchToImage:    "/v2beta/stable-image/control/sketch",
	domain.OpRemoveBackground: "/v2beta/stable-image/edit/remove-background",
	domain.OpSearchAndRecolor: "/v2beta/stable-image/edit/search-and-recolor",
	domain.OpImageToModel:     "/v2beta/3d/stable-point-aware-3d",
}

// Client drives Stability's synchronous image/3D endpoints: every call
// returns the generated asset's bytes directly in the HTTP response body.
type Client struct {
	apiKey string
	hc     *http.Client
	cb     *observability.CircuitBreaker
}

// New builds a Stability driver using the shared breaker registry.
func New(apiKey string, breakers *driver.Breakers) *Client {
	return &Client{
		apiKey: apiKey,
		hc:     driver.NewHTTPClient("stability", 120*time.Second),
		cb:     breakers.For(string(domain.ProviderStability)),
	}
}

// Capabilities reports Stability as synchronous and bytes-in for every op;
// Submit sends no image part for text_to_image.
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		NeedsInputBytes:         true,
		IsSynchronous:           true,
		ArtifactContentTypeHint: "image/png",
	}
}

// Submit multipart-POSTs to the operation's v2beta endpoint and returns the
// response body bytes inline.
func (c *Client) Submit(ctx context.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	path, ok := endpoint[job.Operation]
	if !ok {
		return domain.DriverOutcome{}, fmt.Errorf("stability: unsupported operation %q", job.Operation)
	}
	if !c.cb.CanExecute() {
		return domain.DriverOutcome{}, fmt.Errorf("stability: %w", domain.ErrUpstreamUnavailable)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if job.Operation != domain.OpTextToImage {
		fw, err := w.CreateFormFile("image", fileName(inputs))
		if err != nil {
			return domain.DriverOutcome{}, fmt.Errorf("stability: build request: %w", err)
		}
		if _, err := fw.Write(inputs.Bytes); err != nil {
			return domain.DriverOutcome{}, fmt.Errorf("stability: build request: %w", err)
		}
	}

	if err := writeFields(w, job, inputs); err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("stability: build request: %w", err)
	}
	if err := w.Close(); err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("stability: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, body)
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("stability: build request: %w", err)
	}
	req.Header.Set("authorization", "Bearer "+c.apiKey)
	req.Header.Set("accept", "image/*")
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("stability: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("stability: read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: fmt.Sprintf("stability rejected request: %d %s", resp.StatusCode, string(respBody))}, nil
	}
	if resp.StatusCode >= 500 {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("stability: %w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	c.cb.RecordSuccess()

	return domain.DriverOutcome{
		Kind:        domain.OutcomeSynchronous,
		Bytes:       respBody,
		ContentType: "image/png",
	}, nil
}

// Poll is unreachable: every Stability operation this gateway uses answers
// synchronously. Kept to satisfy domain.Driver.
func (c *Client) Poll(_ context.Context, _, _ string) (domain.PollResult, error) {
	return domain.PollResult{Kind: domain.PollReady, ProgressPercent: 100}, nil
}

func fileName(inputs domain.DriverInputs) string {
	if inputs.FileName != "" {
		return inputs.FileName
	}
	return "input." + inputs.FileExt
}

func writeFields(w *multipart.Writer, job domain.Job, inputs domain.DriverInputs) error {
	switch job.Operation {
	case domain.OpTextToImage:
		return writeAll(w, map[string]string{
			"prompt":        job.Prompt,
			"output_format": "png",
			"aspect_ratio":  "1:1",
			"seed":          "0",
			"style_preset":  stylePreset(job, "3d-model"),
		})
	case domain.OpImageToImage:
		return writeAll(w, map[string]string{
			"prompt":        job.Prompt,
			"output_format": "png",
			"fidelity":      "0.8",
			"seed":          "0",
			"style_preset":  stylePreset(job, "3d-model"),
		})
	case domain.OpSketchToImage:
		return writeAll(w, map[string]string{
			"prompt":           job.Prompt,
			"output_format":    "png",
			"control_strength": "0.4",
			"style_preset":     stylePreset(job, "3d-model"),
		})
	case domain.OpRemoveBackground:
		return writeAll(w, map[string]string{"output_format": "png"})
	case domain.OpSearchAndRecolor:
		selectPrompt, _ := inputs.Params["select_prompt"].(string)
		return writeAll(w, map[string]string{
			"prompt":        job.Prompt,
			"select_prompt": selectPrompt,
			"output_format": "png",
			"grow_mask":     "3",
			"seed":          "0",
		})
	case domain.OpImageToModel:
		return writeAll(w, map[string]string{
			"texture_resolution": "2048",
			"foreground_ratio":   "1.3",
			"target_type":        "none",
			"target_count":       "10000",
			"guidance_scale":     "6",
			"seed":               "0",
		})
	default:
		return nil
	}
}

func writeAll(w *multipart.Writer, fields map[string]string) error {
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	return nil
}

func stylePreset(job domain.Job, fallback string) string {
	if job.Style != "" {
		return job.Style
	}
	return fallback
}
