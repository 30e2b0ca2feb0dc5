package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"inferproxy/pkg/types"
)

// Defaults applied when corresponding CloudConfig fields are unset.
const (
	defaultCloudBaseURL     = "https://openrouter.ai/api/v1"
	defaultCloudChatTimeout = 60 * time.Second
)

var errCloudNotConfigured = errors.New("cloud api key not configured")

// CloudConfig encapsulates tunables for the cloud aggregator client.
type CloudConfig struct {
	// BaseURL of the aggregator API, e.g. https://openrouter.ai/api/v1.
	BaseURL string
	// APIKey for bearer auth. An empty key leaves the backend unconfigured:
	// every call fails with an unavailable error instead of going out
	// unauthenticated.
	APIKey string
	// SiteURL and AppName are attribution headers some aggregators expect
	// (HTTP-Referer and X-Title).
	SiteURL string
	AppName string
	// RatePerMinute caps outbound calls to the aggregator; 0 disables.
	RatePerMinute int
	ChatTimeout   time.Duration
	ListTimeout   time.Duration
	ProbeTimeout  time.Duration
	HTTPClient    *http.Client
}

// Cloud talks to an OpenRouter-style aggregator over bearer-authenticated
// HTTPS. Outbound calls pass through a token-bucket limiter when a rate
// ceiling is configured; the limiter delays, it never rejects.
type Cloud struct {
	base         string
	key          string
	site         string
	app          string
	http         *http.Client
	limiter      *rate.Limiter
	chatTimeout  time.Duration
	listTimeout  time.Duration
	probeTimeout time.Duration
}

// NewCloud constructs a Cloud client from CloudConfig.
func NewCloud(cfg CloudConfig) *Cloud {
	c := &Cloud{
		base:         strings.TrimRight(cfg.BaseURL, "/"),
		key:          cfg.APIKey,
		site:         cfg.SiteURL,
		app:          cfg.AppName,
		http:         cfg.HTTPClient,
		chatTimeout:  cfg.ChatTimeout,
		listTimeout:  cfg.ListTimeout,
		probeTimeout: cfg.ProbeTimeout,
	}
	if c.base == "" {
		c.base = defaultCloudBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.chatTimeout <= 0 {
		c.chatTimeout = defaultCloudChatTimeout
	}
	if c.listTimeout <= 0 {
		c.listTimeout = defaultListTimeout
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = defaultProbeTimeout
	}
	if cfg.RatePerMinute > 0 {
		// Refill at the per-minute rate, allow bursting a full minute's
		// allowance, matching the windowed ceiling the deploy scripts set.
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}
	return c
}

func (c *Cloud) Name() types.Backend { return types.BackendCloud }

// Configured reports whether an API key is present.
func (c *Cloud) Configured() bool { return c.key != "" }

func (c *Cloud) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	if c.site != "" {
		req.Header.Set("HTTP-Referer", c.site)
	}
	if c.app != "" {
		req.Header.Set("X-Title", c.app)
	}
	return req, nil
}

// wait blocks until the rate ceiling admits another outbound call.
func (c *Cloud) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ErrUnavailable(types.BackendCloud, fmt.Errorf("rate ceiling: %w", err))
	}
	return nil
}

// cloudModel mirrors one entry of the aggregator's GET /models payload.
type cloudModel struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ContextLength int             `json:"context_length"`
	Pricing       json.RawMessage `json:"pricing"`
}

type cloudModelList struct {
	Data []cloudModel `json:"data"`
}

// ListModels fetches the aggregator's catalog.
func (c *Cloud) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if !c.Configured() {
		return nil, ErrUnavailable(types.BackendCloud, errCloudNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ErrUnavailable(types.BackendCloud, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrStatus(types.BackendCloud, resp.StatusCode, resp.Header.Get("Content-Type"), readErrorBody(resp.Body))
	}
	var list cloudModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode cloud models: %w", err)
	}
	out := make([]types.ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		out = append(out, types.ModelInfo{
			ID:            m.ID,
			Name:          name,
			Description:   m.Description,
			ContextLength: m.ContextLength,
			Pricing:       m.Pricing,
			Backend:       types.BackendCloud,
		})
	}
	return out, nil
}

// ChatCompletion forwards the payload to the aggregator. The response body
// is returned live so streams pass through.
func (c *Cloud) ChatCompletion(ctx context.Context, payload []byte) (*Response, error) {
	if !c.Configured() {
		return nil, ErrUnavailable(types.BackendCloud, errCloudNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	if err := c.wait(ctx); err != nil {
		cancel()
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, ErrUnavailable(types.BackendCloud, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readErrorBody(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, ErrStatus(types.BackendCloud, resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	return &Response{
		Backend:     types.BackendCloud,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        cancelReadCloser{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// HealthCheck probes the key status endpoint, which exercises both
// reachability and credential validity.
func (c *Cloud) HealthCheck(ctx context.Context) (time.Duration, error) {
	if !c.Configured() {
		return 0, ErrUnavailable(types.BackendCloud, errCloudNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/key", nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, ErrUnavailable(types.BackendCloud, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, ErrStatus(types.BackendCloud, resp.StatusCode, resp.Header.Get("Content-Type"), readErrorBody(resp.Body))
	}
	return time.Since(start), nil
}

// KeyUsage proxies the aggregator's key status endpoint for GET /usage.
func (c *Cloud) KeyUsage(ctx context.Context) (*Response, error) {
	if !c.Configured() {
		return nil, ErrUnavailable(types.BackendCloud, errCloudNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	if err := c.wait(ctx); err != nil {
		cancel()
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/key", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, ErrUnavailable(types.BackendCloud, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readErrorBody(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, ErrStatus(types.BackendCloud, resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	return &Response{
		Backend:     types.BackendCloud,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        cancelReadCloser{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}
