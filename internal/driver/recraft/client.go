// Package recraft implements domain.Driver for Recraft's v1 image endpoints,
// covering text_to_image, image_to_image, remove_background, and inpaint.
// Grounded on original_source/app/ai_clients/recraft_client.py.
package recraft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/driver"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

const baseURL = "https://external.api.recraft.ai"

// Client drives Recraft's synchronous image endpoints, which answer with a
// JSON body naming one or more result image URLs rather than inline bytes.
type Client struct {
	apiKey string
	hc     *http.Client
	cb     *observability.CircuitBreaker
}

// New builds a Recraft driver using the shared breaker registry.
func New(apiKey string, breakers *driver.Breakers) *Client {
	return &Client{
		apiKey: apiKey,
		hc:     driver.NewHTTPClient("recraft", 60*time.Second),
		cb:     breakers.For(string(domain.ProviderRecraft)),
	}
}

// Capabilities reports Recraft as synchronous and bytes-in for every op;
// Submit does not send the bytes for text_to_image.
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		NeedsInputBytes:         true,
		IsSynchronous:           true,
		ArtifactContentTypeHint: "image/png",
	}
}

// Submit calls the operation's v1 images endpoint and returns the first
// result URL as a RemoteTask-shaped outcome with PollURL empty: the URL
// itself is the artifact location, fetched by the Artifact Pipeline.
func (c *Client) Submit(ctx context.Context, job domain.Job, inputs domain.DriverInputs) (domain.DriverOutcome, error) {
	if !c.cb.CanExecute() {
		return domain.DriverOutcome{}, fmt.Errorf("recraft: %w", domain.ErrUpstreamUnavailable)
	}

	var (
		req *http.Request
		err error
	)
	switch job.Operation {
	case domain.OpTextToImage:
		req, err = c.jsonRequest(ctx, "/v1/images/textToImage", map[string]any{
			"prompt":          job.Prompt,
			"n":               1,
			"model":           "recraftv3",
			"response_format": "url",
			"size":            "1024x1024",
			"style":           styleOrDefault(job.Style, "realistic_image"),
		})
	case domain.OpImageToImage:
		req, err = c.multipartRequest(ctx, "/v1/images/imageToImage", inputs, map[string]string{
			"prompt":          job.Prompt,
			"strength":        "0.2",
			"n":               "1",
			"model":           "recraftv3",
			"response_format": "url",
			"style":           styleOrDefault(job.Style, "realistic_image"),
		})
	case domain.OpRemoveBackground:
		req, err = c.multipartFileRequest(ctx, "/v1/images/removeBackground", "file", inputs, map[string]string{
			"response_format": "url",
		})
	case domain.OpInpaint:
		req, err = c.inpaintRequest(ctx, job, inputs)
	default:
		return domain.DriverOutcome{}, fmt.Errorf("recraft: unsupported operation %q", job.Operation)
	}
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("recraft: build request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("recraft: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("recraft: read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: fmt.Sprintf("recraft rejected request: %d %s", resp.StatusCode, string(respBody))}, nil
	}
	if resp.StatusCode >= 500 {
		c.cb.RecordFailure()
		return domain.DriverOutcome{}, fmt.Errorf("recraft: %w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	c.cb.RecordSuccess()

	urls, err := extractURLs(job.Operation, respBody)
	if err != nil {
		return domain.DriverOutcome{}, fmt.Errorf("recraft: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if len(urls) == 0 {
		return domain.DriverOutcome{Kind: domain.OutcomeFailed, Reason: "recraft response carried no image URL"}, nil
	}

	extra := map[string]any{}
	if len(urls) > 1 {
		extra["extra_asset_urls"] = urls[1:]
	}
	return domain.DriverOutcome{
		Kind:    domain.OutcomeRemoteTask,
		PollURL: urls[0],
		Extra:   extra,
	}, nil
}

// Poll always reports the URL handed back by Submit as immediately ready:
// Recraft has no separate task-status endpoint, the download itself is the
// completion signal. The Orchestrator fetches PollURL via the Artifact
// Pipeline once Poll reports Ready.
func (c *Client) Poll(_ context.Context, _, pollURL string) (domain.PollResult, error) {
	return domain.PollResult{Kind: domain.PollReady, ProgressPercent: 100, ArtifactURL: pollURL}, nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, payload map[string]any) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) multipartRequest(ctx context.Context, path string, inputs domain.DriverInputs, fields map[string]string) (*http.Request, error) {
	return c.multipartFileRequest(ctx, path, "image", inputs, fields)
}

func (c *Client) multipartFileRequest(ctx context.Context, path, fieldName string, inputs domain.DriverInputs, fields map[string]string) (*http.Request, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fw, err := w.CreateFormFile(fieldName, fileName(inputs))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(inputs.Bytes); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func (c *Client) inpaintRequest(ctx context.Context, job domain.Job, inputs domain.DriverInputs) (*http.Request, error) {
	maskURL, _ := inputs.Params["mask_asset_url"].(string)
	maskBytes, _ := inputs.Params["mask_bytes"].([]byte)
	_ = maskURL

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fw, err := w.CreateFormFile("image", fileName(inputs))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(inputs.Bytes); err != nil {
		return nil, err
	}
	mw, err := w.CreateFormFile("mask", "mask_image.png")
	if err != nil {
		return nil, err
	}
	if _, err := mw.Write(maskBytes); err != nil {
		return nil, err
	}
	for k, v := range map[string]string{
		"prompt":          job.Prompt,
		"n":               "1",
		"model":           "recraftv3",
		"response_format": "url",
		"style":           styleOrDefault(job.Style, "realistic_image"),
	} {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/images/inpaint", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func extractURLs(op domain.Operation, respBody []byte) ([]string, error) {
	if op == domain.OpRemoveBackground {
		var single struct {
			Image struct {
				URL string `json:"url"`
			} `json:"image"`
		}
		if err := json.Unmarshal(respBody, &single); err != nil {
			return nil, err
		}
		if single.Image.URL == "" {
			return nil, nil
		}
		return []string{single.Image.URL}, nil
	}

	var multi struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &multi); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(multi.Data))
	for _, d := range multi.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	return urls, nil
}

func fileName(inputs domain.DriverInputs) string {
	if inputs.FileName != "" {
		return inputs.FileName
	}
	return "input." + inputs.FileExt
}

func styleOrDefault(style, fallback string) string {
	if style != "" {
		return style
	}
	return fallback
}
