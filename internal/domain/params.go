package domain

// Per-operation parameter structs, translated from the original system's
// request schemas (generation_schemas.py). Validation tags are consumed by
// the HTTP adapter (go-playground/validator), not by the domain package
// itself, which stays decoupled from the transport layer.

// TextToImageParams covers text_to_image across providers.
type TextToImageParams struct {
	Prompt      string `json:"prompt" validate:"required"`
	Style       string `json:"style,omitempty"`
	N           int    `json:"n,omitempty" validate:"omitempty,min=1,max=10"`
	Size        string `json:"size,omitempty"`
	Background  string `json:"background,omitempty"`
	StylePreset string `json:"style_preset,omitempty"`
}

// ImageToImageParams covers image_to_image and sketch_to_image.
type ImageToImageParams struct {
	SourceAssetURL string `json:"source_asset_url" validate:"required"`
	Prompt         string `json:"prompt" validate:"required"`
	Style          string `json:"style,omitempty"`
	N              int    `json:"n,omitempty" validate:"omitempty,min=1,max=10"`
}

// RemoveBackgroundParams covers remove_background.
type RemoveBackgroundParams struct {
	SourceAssetURL string `json:"source_asset_url" validate:"required"`
}

// InpaintParams covers inpaint, which needs a second mask payload.
type InpaintParams struct {
	SourceAssetURL string `json:"source_asset_url" validate:"required"`
	MaskAssetURL   string `json:"mask_asset_url" validate:"required"`
	Prompt         string `json:"prompt" validate:"required"`
}

// SearchRecolorParams covers search_and_recolor.
type SearchRecolorParams struct {
	SourceAssetURL string `json:"source_asset_url" validate:"required"`
	SelectPrompt   string `json:"select_prompt" validate:"required"`
	Prompt         string `json:"prompt" validate:"required"`
}

// UpscaleParams covers upscale.
type UpscaleParams struct {
	SourceAssetURL string `json:"source_asset_url" validate:"required"`
}

// DownscaleParams covers downscale; max_size_mb bounds are enforced at C6
// per spec boundary B2 (20 accepted, 20.01 rejected).
type DownscaleParams struct {
	SourceAssetURL string  `json:"source_asset_url" validate:"required"`
	MaxSizeMB      float64 `json:"max_size_mb" validate:"required,gt=0,lte=20"`
}

// TextToModelParams covers text_to_model.
type TextToModelParams struct {
	Prompt string `json:"prompt" validate:"required"`
	Style  string `json:"style,omitempty"`
}

// ImageToModelParams covers image_to_model and the multiview variant.
// InputImageAssetURLs must be non-empty (B3); position 0 is the mandatory
// front view, positions 1-3 (left, back, right) are optional.
type ImageToModelParams struct {
	InputImageAssetURLs []string `json:"input_image_asset_urls" validate:"required,min=1,max=4"`
}

// RefineModelParams covers refine_model, chaining from a prior Tripo task.
type RefineModelParams struct {
	PriorAIServiceTaskID string `json:"prior_ai_service_task_id" validate:"required"`
}

// MultiviewSlots assembles the fixed-length [front, left, back, right]
// sequence Tripo's multiview_to_model expects. Missing positions are
// encoded as empty slots, never dropped (spec tie-break, B3).
func MultiviewSlots(urls []string) [4]string {
	var slots [4]string
	for i := 0; i < len(urls) && i < 4; i++ {
		slots[i] = urls[i]
	}
	return slots
}
