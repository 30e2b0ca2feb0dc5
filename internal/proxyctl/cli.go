package proxyctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"inferproxy/pkg/types"
)

type Config struct {
	BaseURL        string
	Backend        string
	Model          string
	Stream         bool
	WaitSeconds    int
	TimeoutSeconds int
	LogLvl         string
}

func defaultConfig() *Config {
	return &Config{
		BaseURL:        envStr("PROXYCTL_BASE_URL", "http://127.0.0.1:8192"),
		TimeoutSeconds: envInt("PROXYCTL_TIMEOUT", 300),
		LogLvl:         envStr("PROXYCTL_LOG_LEVEL", "info"),
	}
}

// stdout is swappable so tests can capture command output.
var stdout io.Writer = os.Stdout

// checkEvery is the delay between probes when check runs with --wait. Tests
// shrink it.
var checkEvery = 2 * time.Second

// checkGateway probes GET /health and prints a per-backend report. With
// cfg.WaitSeconds > 0 it keeps probing until the gateway reports healthy or
// the deadline passes. It returns an error when no backend is reachable so
// the exit code reflects health.
func checkGateway(cfg *Config) error {
	c := newClient(cfg)
	deadline := time.Now().Add(time.Duration(cfg.WaitSeconds) * time.Second)
	for {
		hr, err := fetchHealth(c)
		healthy := err == nil && hr.Status == "healthy"
		if healthy || cfg.WaitSeconds <= 0 || !time.Now().Before(deadline) {
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "gateway %s (version %s, up %ds)\n", hr.Status, hr.Version, hr.UptimeSeconds)
			printBackend("local", hr.Local)
			printBackend("cloud", hr.Cloud)
			if !healthy {
				return fmt.Errorf("no reachable backend")
			}
			return nil
		}
		info("[proxyctl] gateway not healthy yet, retrying in %s", checkEvery)
		time.Sleep(checkEvery)
	}
}

// fetchHealth runs one GET /health probe. The endpoint answers 503 with the
// same JSON body when both backends are down, so it decodes before looking
// at the status code.
func fetchHealth(c *client) (*types.HealthResponse, error) {
	status, body, err := c.get("/health")
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	var hr types.HealthResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return nil, statusErr("check", status, body)
	}
	return &hr, nil
}

func printBackend(name string, bh types.BackendHealth) {
	if bh.Reachable {
		fmt.Fprintf(stdout, "  %-5s reachable (%dms)\n", name, bh.LatencyMS)
		return
	}
	fmt.Fprintf(stdout, "  %-5s unreachable: %s\n", name, bh.Error)
}

// listModels prints the merged catalog from GET /models, optionally filtered
// by origin via cfg.Backend.
func listModels(cfg *Config) error {
	c := newClient(cfg)
	path := "/models"
	if cfg.Backend != "" {
		path += "?backend=" + url.QueryEscape(cfg.Backend)
	}
	status, body, err := c.get(path)
	if err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if status != http.StatusOK {
		return statusErr("models", status, body)
	}
	var list types.ModelList
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("models: decode: %w", err)
	}
	for _, m := range list.Data {
		line := fmt.Sprintf("%-6s %s", m.Backend, m.ID)
		if m.ContextLength > 0 {
			line += fmt.Sprintf(" (ctx %d)", m.ContextLength)
		}
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintf(stdout, "%d models\n", len(list.Data))
	return nil
}

// chatOnce sends a single-turn chat completion and copies the reply to
// stdout. Streamed responses arrive as SSE chunks and are printed as-is.
func chatOnce(cfg *Config, prompt string) error {
	if cfg.Model == "" {
		return fmt.Errorf("chat requires --model")
	}
	payload := map[string]any{
		"model":    cfg.Model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"stream":   cfg.Stream,
	}
	path := "/chat/completions"
	if cfg.Backend != "" {
		path += "?backend=" + url.QueryEscape(cfg.Backend)
	}
	c := newClient(cfg)
	resp, err := c.postJSON(path, payload)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return statusErr("chat", resp.StatusCode, body)
	}
	if _, err := io.Copy(stdout, resp.Body); err != nil {
		return fmt.Errorf("chat: read response: %w", err)
	}
	fmt.Fprintln(stdout)
	return nil
}

// showUsage prints the cloud key usage report from GET /usage.
func showUsage(cfg *Config) error {
	c := newClient(cfg)
	status, body, err := c.get("/usage")
	if err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("usage: not supported by the configured cloud backend")
	}
	if status != http.StatusOK {
		return statusErr("usage", status, body)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		warn("[proxyctl] usage payload is not valid JSON, printing raw")
		_, _ = stdout.Write(body)
		fmt.Fprintln(stdout)
		return nil
	}
	_, _ = pretty.WriteTo(stdout)
	fmt.Fprintln(stdout)
	return nil
}

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code (0 for success, non-zero on error).
func MainWithArgs(args []string) int {
	if len(args) == 0 {
		_ = buildRootCmd().Help()
		return 2
	}
	cfg := defaultConfig()
	root := buildRootCmdWith(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code (0 for success, non-zero on error) for use by cmd/proxyctl.
func Main() int { return MainWithArgs(os.Args[1:]) }
