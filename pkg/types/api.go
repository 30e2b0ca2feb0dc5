package types

import "encoding/json"

// ModelInfo describes one entry of the merged model catalog. Ids are unique
// within a backend, not globally: the same id may appear once per origin.
type ModelInfo struct {
	// Stable identifier within the origin backend.
	// example: llama3
	ID string `json:"id" example:"llama3"`
	// Human-friendly name.
	// example: Llama 3
	Name string `json:"name,omitempty" example:"Llama 3"`
	// Optional description supplied by the backend.
	// example: Local model via Ollama
	Description string `json:"description,omitempty" example:"Local model via Ollama"`
	// Context window in tokens, when the backend reports one.
	// example: 8192
	ContextLength int `json:"context_length,omitempty" example:"8192"`
	// Raw pricing object from the cloud catalog; absent for local models.
	Pricing json.RawMessage `json:"pricing,omitempty"`
	// Origin backend for this entry (local or cloud).
	// example: local
	Backend Backend `json:"backend" example:"local"`
}

// ModelList wraps the catalog in the OpenAI list shape returned by GET /models.
type ModelList struct {
	// Always "list".
	// example: list
	Object string `json:"object" example:"list"`
	// Catalog entries, merged or filtered by origin.
	Data []ModelInfo `json:"data"`
}

// BackendHealth is one backend's probe result inside GET /health.
type BackendHealth struct {
	// Whether the last probe reached the backend.
	// example: true
	Reachable bool `json:"reachable" example:"true"`
	// Round-trip latency of the probe in milliseconds.
	// example: 12
	LatencyMS int64 `json:"latency_ms" example:"12"`
	// Probe failure detail when unreachable.
	Error string `json:"error,omitempty"`
	// Probe completion time in unix seconds.
	// example: 1700000000
	CheckedAtUnix int64 `json:"checked_at_unix,omitempty" example:"1700000000"`
}

// HealthResponse is returned by GET /health. The aggregate status is
// "healthy" when at least one backend is reachable.
type HealthResponse struct {
	// Aggregate status: healthy or unhealthy.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Gateway version string.
	// example: 1.0.0
	Version string `json:"version" example:"1.0.0"`
	// Uptime of the gateway in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Local backend probe result.
	Local BackendHealth `json:"local"`
	// Cloud backend probe result.
	Cloud BackendHealth `json:"cloud"`
}

// ServiceInfo is the GET / banner: name, version, and the endpoint map.
type ServiceInfo struct {
	// Service name.
	// example: inferproxy
	Service string `json:"service" example:"inferproxy"`
	// Gateway version string.
	// example: 1.0.0
	Version string `json:"version" example:"1.0.0"`
	// Process status, always "running" once serving.
	// example: running
	Status string `json:"status" example:"running"`
	// Upstream backends by role.
	Backends map[string]string `json:"backends"`
	// Endpoint paths by purpose.
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorDetail is the inner object of an OpenAI-compatible error body.
type ErrorDetail struct {
	// Human-readable error message.
	// example: backend unavailable: local: connection refused
	Message string `json:"message" example:"backend unavailable: local: connection refused"`
	// Coarse error class (invalid_request_error, api_error, ...).
	// example: api_error
	Type string `json:"type" example:"api_error"`
	// Stable machine-readable code.
	// example: backend_unavailable
	Code string `json:"code,omitempty" example:"backend_unavailable"`
}

// ErrorResponse is the OpenAI-compatible error envelope. Every error the
// gateway synthesizes uses this shape; backend errors pass through verbatim.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
