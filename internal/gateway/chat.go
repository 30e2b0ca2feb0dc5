package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"inferproxy/internal/backend"
	"inferproxy/pkg/types"
)

// ChatCompletion routes one chat request: parse the envelope, select a
// backend, dispatch, and fall back to the alternate at most once when the
// selection allows it and the failure was retryable. Successful responses
// pass through with the backend's status and body unchanged.
func (g *Gateway) ChatCompletion(ctx context.Context, body []byte, queryHint string) (*backend.Response, error) {
	req, err := ParseChatRequest(body, queryHint, g.defaultHint)
	if err != nil {
		return nil, err
	}
	d := g.selectBackend(ctx, req)
	g.log.Info().
		Str("model", req.Model).
		Str("backend", string(d.target)).
		Str("method", d.method).
		Bool("fallback_allowed", d.fallback).
		Bool("stream", req.Stream).
		Str("reason", d.reason).
		Msg("backend selected")

	resp, err := g.attempt(ctx, d.target, req)
	if err == nil {
		return resp, nil
	}
	if !d.fallback || !backend.IsRetryable(err) {
		return nil, err
	}

	alt := d.target.Other()
	fallbackTotal.WithLabelValues(string(d.target), string(alt)).Inc()
	g.log.Warn().Err(err).
		Str("model", req.Model).
		Str("from", string(d.target)).
		Str("to", string(alt)).
		Msg("primary backend failed, attempting fallback")

	resp, fallbackErr := g.attempt(ctx, alt, req)
	if fallbackErr != nil {
		return nil, ErrExhausted(d.target, err, alt, fallbackErr)
	}
	return resp, nil
}

// attempt dispatches to one backend. Non-streaming bodies are drained
// here so a truncated read still counts as a failed attempt; streaming
// bodies return live and commit the request to that backend.
func (g *Gateway) attempt(ctx context.Context, b types.Backend, req ChatRequest) (*backend.Response, error) {
	start := time.Now()
	resp, err := g.client(b).ChatCompletion(ctx, req.Payload)
	if err != nil {
		observeDispatch(b, start, "error")
		return nil, err
	}
	if req.Stream {
		observeDispatch(b, start, "success")
		return resp, nil
	}
	buf, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		observeDispatch(b, start, "error")
		return nil, backend.ErrUnavailable(b, readErr)
	}
	observeDispatch(b, start, "success")
	g.recordTokens(b, buf)
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return resp, nil
}

func observeDispatch(b types.Backend, start time.Time, status string) {
	backendRequestDuration.WithLabelValues(string(b)).Observe(time.Since(start).Seconds())
	backendRequestsTotal.WithLabelValues(string(b), status).Inc()
}

// recordTokens scrapes the usage block from a buffered completion, when
// present. Streamed responses are not inspected.
func (g *Gateway) recordTokens(b types.Backend, body []byte) {
	var probe struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return
	}
	if probe.Usage.PromptTokens > 0 {
		tokensTotal.WithLabelValues(string(b), "prompt").Add(float64(probe.Usage.PromptTokens))
	}
	if probe.Usage.CompletionTokens > 0 {
		tokensTotal.WithLabelValues(string(b), "completion").Add(float64(probe.Usage.CompletionTokens))
	}
}
