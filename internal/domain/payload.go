package domain

// GenerationTaskPayload is the JSON-serializable task body enqueued to the
// Worker Runtime (spec §4.4). InputBytes is base64-friendly ([]byte marshals
// to a base64 JSON string by the stdlib encoding/json), present only for
// drivers whose Capabilities.NeedsInputBytes is true.
type GenerationTaskPayload struct {
	JobID          string         `json:"job_id"`
	ClientTaskID   string         `json:"client_task_id"`
	TenantID       string         `json:"tenant_id"`
	Kind           JobKind        `json:"kind"`
	Provider       Provider       `json:"provider"`
	Operation      Operation      `json:"operation"`
	RequestParams  map[string]any `json:"request_params"`
	InputBytes     []byte         `json:"input_bytes,omitempty"`
	InputURL       string         `json:"input_url,omitempty"`
	InputFileExt   string         `json:"input_file_ext,omitempty"`
}

// TaskTypeGeneration is the asynq task type name all generation jobs share;
// the routing table (not the task type) determines which queue a task lands on.
const TaskTypeGeneration = "generation:run"
