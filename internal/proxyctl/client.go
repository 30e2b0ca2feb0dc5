package proxyctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// client is a thin HTTP wrapper over a running gateway.
type client struct {
	base string
	http *http.Client
}

func newClient(cfg *Config) *client {
	return &client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

func (c *client) get(path string) (int, []byte, error) {
	debug("[proxyctl] GET %s%s", c.base, path)
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

// postJSON returns the live response so chat output can be streamed.
// The caller owns the body.
func (c *client) postJSON(path string, payload any) (*http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	debug("[proxyctl] POST %s%s (%d bytes)", c.base, path, len(b))
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func statusErr(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Errorf("%s: gateway returned %d: %s", op, status, msg)
}
