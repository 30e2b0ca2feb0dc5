package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inferproxy/internal/backend"
	"inferproxy/pkg/types"
)

type mockService struct {
	chatFn  func(ctx context.Context, body []byte, hint string) (*backend.Response, error)
	models  types.ModelList
	health  types.HealthResponse
	ready   bool
	usageFn func(ctx context.Context) (*backend.Response, error)

	lastHint string
	lastBody []byte
}

func (m *mockService) ChatCompletion(ctx context.Context, body []byte, hint string) (*backend.Response, error) {
	m.lastBody = append([]byte(nil), body...)
	m.lastHint = hint
	if m.chatFn != nil {
		return m.chatFn(ctx, body, hint)
	}
	return okResp(`{"id":"chatcmpl-1"}`), nil
}

func (m *mockService) ListModels(ctx context.Context, filter types.Backend) types.ModelList {
	if m.models.Object == "" {
		return types.ModelList{Object: "list", Data: []types.ModelInfo{}}
	}
	return m.models
}

func (m *mockService) Health(ctx context.Context) types.HealthResponse { return m.health }
func (m *mockService) Ready() bool                                     { return m.ready }

func (m *mockService) Info() types.ServiceInfo {
	return types.ServiceInfo{Service: "inferproxy", Version: "test", Status: "running"}
}

func (m *mockService) Usage(ctx context.Context) (*backend.Response, error) {
	if m.usageFn != nil {
		return m.usageFn(ctx)
	}
	return okResp(`{"data":{}}`), nil
}

func okResp(body string) *backend.Response {
	return &backend.Response{
		Backend:     types.BackendLocal,
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        io.NopCloser(strings.NewReader(body)),
	}
}

func postChat(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestChatPassthrough(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postChat(t, r, "/chat/completions", `{"model":"llama3","messages":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	if w.Body.String() != `{"id":"chatcmpl-1"}` {
		t.Fatalf("body altered: %s", w.Body.String())
	}
	if string(svc.lastBody) != `{"model":"llama3","messages":[]}` {
		t.Fatalf("service saw altered body: %s", svc.lastBody)
	}
}

func TestChatV1Alias(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postChat(t, r, "/v1/chat/completions", `{"model":"llama3"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatQueryHintForwarded(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postChat(t, r, "/chat/completions?backend=cloud", `{"model":"m"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.lastHint != "cloud" {
		t.Fatalf("hint=%q", svc.lastHint)
	}
}

func TestChatUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions", bytes.NewBufferString(`{"model":"m"}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatContentTypeCaseInsensitive(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/completions", bytes.NewBufferString(`{"model":"m"}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatBodyTooLarge(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	big := bytes.Repeat([]byte("a"), (1<<20)+10)
	req := httptest.NewRequest(http.MethodPost, "/chat/completions", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: types.ModelList{Object: "list", Data: []types.ModelInfo{
		{ID: "llama3", Backend: types.BackendLocal},
		{ID: "openai/gpt-4o", Backend: types.BackendCloud},
	}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var list types.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("json: %v", err)
	}
	if list.Object != "list" || len(list.Data) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestModelsV1Alias(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestModelsInvalidFilter(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models?backend=gpu", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthHealthy(t *testing.T) {
	svc := &mockService{health: types.HealthResponse{Status: "healthy", Local: types.BackendHealth{Reachable: true}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var h types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !h.Local.Reachable {
		t.Fatalf("unexpected body: %+v", h)
	}
}

func TestHealthUnhealthyMaps503(t *testing.T) {
	svc := &mockService{health: types.HealthResponse{Status: "unhealthy"}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unhealthy") {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRootBanner(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var info types.ServiceInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("json: %v", err)
	}
	if info.Service != "inferproxy" {
		t.Fatalf("unexpected banner: %+v", info)
	}
}

func TestUsagePassthrough(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/usage", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.String() != `{"data":{}}` {
		t.Fatalf("body altered: %s", w.Body.String())
	}
}
