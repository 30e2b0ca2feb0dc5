package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"inferproxy/internal/backend"
	"inferproxy/internal/gateway"
	"inferproxy/internal/httpapi"
)

// fakeEngine is an in-process stand-in for an upstream backend. It counts
// chat calls so tests can assert where a request was routed.
type fakeEngine struct {
	srv       *httptest.Server
	mu        sync.Mutex
	chatCalls int
	failChat  bool
}

func (f *fakeEngine) URL() string { return f.srv.URL }

func (f *fakeEngine) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

func (f *fakeEngine) recordChat() {
	f.mu.Lock()
	f.chatCalls++
	f.mu.Unlock()
}

// setFailChat makes subsequent chat calls answer 500.
func (f *fakeEngine) setFailChat(v bool) {
	f.mu.Lock()
	f.failChat = v
	f.mu.Unlock()
}

func (f *fakeEngine) chatFailing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failChat
}

// startFakeLocal serves the Ollama-style surface: a banner at /, the tag
// list at /api/tags, and OpenAI chat at /v1/chat/completions.
func startFakeLocal(t *testing.T, models ...string) *fakeEngine {
	t.Helper()
	f := &fakeEngine{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "Ollama is running")
		case "/api/tags":
			type tag struct {
				Name string `json:"name"`
			}
			var tags []tag
			for _, m := range models {
				tags = append(tags, tag{Name: m})
			}
			json.NewEncoder(w).Encode(map[string]any{"models": tags})
		case "/v1/chat/completions":
			f.recordChat()
			if f.chatFailing() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"engine overloaded"}`)
				return
			}
			var req struct {
				Model  string `json:"model"`
				Stream bool   `json:"stream"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if req.Stream {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"local \"}}]}\n\n")
				fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"stream\"}}]}\n\n")
				fmt.Fprint(w, "data: [DONE]\n\n")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-local-1",
				"object": "chat.completion",
				"model":  req.Model,
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "local reply"},
					"finish_reason": "stop",
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// startFakeCloud serves the OpenRouter-style surface behind bearer auth:
// /models, /chat/completions and /auth/key.
func startFakeCloud(t *testing.T, key string, models ...string) *fakeEngine {
	t.Helper()
	f := &fakeEngine{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+key {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"No auth credentials found","code":401}}`)
			return
		}
		switch r.URL.Path {
		case "/models":
			type entry struct {
				ID            string `json:"id"`
				ContextLength int    `json:"context_length"`
			}
			var data []entry
			for _, m := range models {
				data = append(data, entry{ID: m, ContextLength: 128000})
			}
			json.NewEncoder(w).Encode(map[string]any{"data": data})
		case "/chat/completions":
			f.recordChat()
			if f.chatFailing() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":{"message":"provider overloaded","code":500}}`)
				return
			}
			var req struct {
				Model string `json:"model"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "gen-cloud-1",
				"object": "chat.completion",
				"model":  req.Model,
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "cloud reply"},
					"finish_reason": "stop",
				}},
			})
		case "/auth/key":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":{"label":"sk-or-test","usage":1.25,"limit":100,"is_free_tier":false}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// newGatewayServer wires real backend clients and a real gateway to the HTTP
// mux and serves the whole stack from an httptest server.
func newGatewayServer(t *testing.T, localURL, cloudURL, cloudKey string) *httptest.Server {
	t.Helper()
	local := backend.NewLocal(backend.LocalConfig{BaseURL: localURL})
	cloud := backend.NewCloud(backend.CloudConfig{BaseURL: cloudURL, APIKey: cloudKey})
	g := gateway.NewWithConfig(gateway.Config{
		Local:  local,
		Cloud:  cloud,
		Logger: zerolog.Nop(),
	})
	srv := httptest.NewServer(httpapi.NewMux(g))
	t.Cleanup(srv.Close)
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
