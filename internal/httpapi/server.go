package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferproxy/internal/backend"
	"inferproxy/internal/gateway"
	"inferproxy/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ChatCompletion(ctx context.Context, body []byte, queryHint string) (*backend.Response, error)
	ListModels(ctx context.Context, filter types.Backend) types.ModelList
	Health(ctx context.Context) types.HealthResponse
	Ready() bool
	Info() types.ServiceInfo
	Usage(ctx context.Context) (*backend.Response, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	// OpenAI clients default to a /v1 prefix; serve both forms.
	chat := chatHandler(svc)
	r.Post("/chat/completions", chat)
	r.Post("/v1/chat/completions", chat)
	models := modelsHandler(svc)
	r.Get("/models", models)
	r.Get("/v1/models", models)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		h := svc.Health(ctx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	})

	r.Get("/usage", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Usage(ctx)
		if err != nil {
			if errors.Is(err, gateway.ErrUsageUnsupported) {
				writeOpenAIError(w, http.StatusNotFound, "", "usage reporting requires a configured cloud backend")
				return
			}
			writeUpstreamError(w, err)
			return
		}
		relay(w, resp)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Info()); err != nil {
			writeOpenAIError(w, http.StatusInternalServerError, "internal_error", "failed to encode response")
			return
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no reachable backend"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func modelsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := types.ParseBackend(r.URL.Query().Get("backend"))
		if err != nil {
			writeOpenAIError(w, http.StatusBadRequest, "", err.Error())
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		list := svc.ListModels(ctx, filter)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(list); err != nil {
			writeOpenAIError(w, http.StatusInternalServerError, "internal_error", "failed to encode response")
			return
		}
	}
}

func chatHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeOpenAIError(w, http.StatusUnsupportedMediaType, "", "Content-Type must be application/json")
			return
		}
		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			// Oversize bodies land here; report 400 without size details
			writeOpenAIError(w, http.StatusBadRequest, "", "unable to read request body")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo {
			logChatStart(r)
		}

		// Join server base context with request context so shutdown cancels
		// in-flight upstream calls too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if chatTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(chatTimeout)*time.Second)
			defer tcancel()
		}

		resp, err := svc.ChatCompletion(ctx, body, r.URL.Query().Get("backend"))
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := writeChatError(w, err)
			if lvl >= LevelInfo {
				logChatEnd(r, status, time.Since(start), err)
			}
			return
		}
		defer resp.Body.Close()

		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.Status)
		out := io.Writer(w)
		if lvl >= LevelDebug {
			out = io.MultiWriter(w, &loggingLineWriter{})
		}
		flushCopy(out, w, resp.Body)
		if lvl >= LevelInfo {
			logChatEnd(r, resp.Status, time.Since(start), nil)
		}
	}
}

// writeChatError maps a chat failure onto the wire. Upstream rejections are
// relayed verbatim; everything else becomes an OpenAI error envelope.
func writeChatError(w http.ResponseWriter, err error) int {
	if status, ct, body, ok := backend.AsStatus(err); ok {
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return status
	}
	if gateway.IsExhausted(err) {
		writeOpenAIError(w, http.StatusBadGateway, "gateway_exhausted", err.Error())
		return http.StatusBadGateway
	}
	if backend.IsUnavailable(err) {
		writeOpenAIError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
		return http.StatusBadGateway
	}
	var he HTTPError
	if errors.As(err, &he) {
		writeOpenAIError(w, he.StatusCode(), "", he.Error())
		return he.StatusCode()
	}
	writeOpenAIError(w, http.StatusInternalServerError, "internal_error", err.Error())
	return http.StatusInternalServerError
}

// writeUpstreamError is the non-chat variant: same mapping minus the
// exhaustion case, since single-target endpoints never fall back.
func writeUpstreamError(w http.ResponseWriter, err error) {
	if status, ct, body, ok := backend.AsStatus(err); ok {
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}
	if backend.IsUnavailable(err) {
		writeOpenAIError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
		return
	}
	writeOpenAIError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

// relay copies an upstream response to the client unchanged.
func relay(w http.ResponseWriter, resp *backend.Response) {
	defer resp.Body.Close()
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = io.Copy(w, resp.Body)
}

// flushCopy streams src to dst, flushing after every chunk so streamed
// completions reach the client token by token.
func flushCopy(dst io.Writer, w http.ResponseWriter, src io.Reader) {
	f, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
			if f != nil {
				f.Flush()
			}
		}
		if rerr != nil {
			return
		}
	}
}

func logChatStart(r *http.Request) {
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("chat start")
		return
	}
	log.Printf("chat start path=%s", r.URL.Path)
}

func logChatEnd(r *http.Request, status int, dur time.Duration, err error) {
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", dur)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("chat end")
		return
	}
	if err != nil {
		log.Printf("chat end status=%d dur=%s err=%v", status, dur, err)
		return
	}
	log.Printf("chat end status=%d dur=%s", status, dur)
}
