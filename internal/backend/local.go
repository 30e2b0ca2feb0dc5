package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"inferproxy/pkg/types"
)

// Defaults applied when corresponding LocalConfig fields are unset.
const (
	defaultLocalBaseURL     = "http://127.0.0.1:11434"
	defaultLocalChatTimeout = 120 * time.Second
	defaultListTimeout      = 10 * time.Second
	defaultProbeTimeout     = 5 * time.Second
)

// LocalConfig encapsulates tunables for the local engine client.
type LocalConfig struct {
	// BaseURL of the engine, e.g. http://ollama:11434.
	BaseURL      string
	ChatTimeout  time.Duration
	ListTimeout  time.Duration
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
}

// Local talks to an Ollama-style engine: native tags listing for the
// catalog, OpenAI-compatible chat completions, root endpoint for liveness.
type Local struct {
	base         string
	http         *http.Client
	chatTimeout  time.Duration
	listTimeout  time.Duration
	probeTimeout time.Duration
}

// NewLocal constructs a Local client from LocalConfig.
func NewLocal(cfg LocalConfig) *Local {
	l := &Local{
		base:         strings.TrimRight(cfg.BaseURL, "/"),
		http:         cfg.HTTPClient,
		chatTimeout:  cfg.ChatTimeout,
		listTimeout:  cfg.ListTimeout,
		probeTimeout: cfg.ProbeTimeout,
	}
	if l.base == "" {
		l.base = defaultLocalBaseURL
	}
	if l.http == nil {
		l.http = &http.Client{}
	}
	if l.chatTimeout <= 0 {
		l.chatTimeout = defaultLocalChatTimeout
	}
	if l.listTimeout <= 0 {
		l.listTimeout = defaultListTimeout
	}
	if l.probeTimeout <= 0 {
		l.probeTimeout = defaultProbeTimeout
	}
	return l
}

func (l *Local) Name() types.Backend { return types.BackendLocal }

// tagsResponse mirrors the engine's GET /api/tags payload.
type tagsResponse struct {
	Models []tagModel `json:"models"`
}

type tagModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// ListModels fetches the engine's tag list and collapses tag variants
// (llama3:latest, llama3:8b) into one entry per base name.
func (l *Local) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, l.listTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, ErrUnavailable(types.BackendLocal, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrStatus(types.BackendLocal, resp.StatusCode, resp.Header.Get("Content-Type"), readErrorBody(resp.Body))
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode local tags: %w", err)
	}
	seen := make(map[string]bool, len(tags.Models))
	out := make([]types.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		base := BaseModelName(m.Name)
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, types.ModelInfo{
			ID:          base,
			Name:        m.Name,
			Description: "Local model via Ollama",
			Backend:     types.BackendLocal,
		})
	}
	return out, nil
}

// ChatCompletion forwards the payload to the engine's OpenAI-compatible
// endpoint. The response body is returned live so streams pass through.
func (l *Local) ChatCompletion(ctx context.Context, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.chatTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.base+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.http.Do(req)
	if err != nil {
		cancel()
		return nil, ErrUnavailable(types.BackendLocal, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readErrorBody(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, ErrStatus(types.BackendLocal, resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	return &Response{
		Backend:     types.BackendLocal,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        cancelReadCloser{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// HealthCheck hits the engine root, which answers with a banner when up.
func (l *Local) HealthCheck(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/", nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := l.http.Do(req)
	if err != nil {
		return 0, ErrUnavailable(types.BackendLocal, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, ErrStatus(types.BackendLocal, resp.StatusCode, resp.Header.Get("Content-Type"), readErrorBody(resp.Body))
	}
	return time.Since(start), nil
}

// BaseModelName strips the tag suffix from an engine model name:
// "llama3:latest" -> "llama3". The selector uses the same rule so tag
// variants of an installed model still route locally.
func BaseModelName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}
