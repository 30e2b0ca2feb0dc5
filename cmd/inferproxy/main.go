package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferproxy/internal/backend"
	"inferproxy/internal/config"
	"inferproxy/internal/gateway"
	"inferproxy/internal/httpapi"
	"inferproxy/pkg/types"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8192"
	if v := os.Getenv("PROXY_PORT"); v != "" {
		defaultAddr = ":" + v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8192")
	localURL := flag.String("local-url", envStr("OLLAMA_URL", "http://ollama:11434"), "Base URL of the local Ollama-compatible engine")
	cloudURL := flag.String("cloud-url", envStr("OPENROUTER_API_URL", "https://openrouter.ai/api/v1"), "Base URL of the cloud aggregator API")
	cloudKey := flag.String("cloud-key", os.Getenv("OPENROUTER_API_KEY"), "Cloud API key; empty leaves the cloud backend unconfigured")
	defaultBackend := flag.String("default-backend", envStr("DEFAULT_BACKEND", "auto"), "Backend used when a request carries no hint: auto, local or cloud")
	allowedOrigins := flag.String("allowed-origins", envStr("ALLOWED_ORIGINS", "*"), "Comma-separated CORS origins; empty disables CORS")
	cloudRate := flag.Int("cloud-rate-limit", envInt("RATE_LIMIT", 100), "Max outbound cloud calls per minute (0=unlimited)")
	configPath := flag.String("config", "", "Optional config file (.json/.yaml/.toml); explicit flags override it")
	flag.Parse()

	cfg := config.Config{
		Addr:               *addr,
		LocalURL:           *localURL,
		CloudURL:           *cloudURL,
		CloudAPIKey:        *cloudKey,
		DefaultBackend:     *defaultBackend,
		AllowedOrigins:     splitCSV(*allowedOrigins),
		CloudRatePerMinute: *cloudRate,
	}
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = mergeUnderFlags(cfg, fileCfg)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "inferproxy").Logger()
	httpapi.SetLogger(logger)

	defHint, err := types.ParseBackend(cfg.DefaultBackend)
	if err != nil {
		log.Fatalf("invalid default backend: %v", err)
	}

	local := backend.NewLocal(backend.LocalConfig{
		BaseURL:      cfg.LocalURL,
		ChatTimeout:  secs(cfg.LocalTimeoutSeconds),
		ListTimeout:  secs(cfg.CatalogTimeoutSeconds),
		ProbeTimeout: secs(cfg.ProbeTimeoutSeconds),
	})
	cloud := backend.NewCloud(backend.CloudConfig{
		BaseURL:       cfg.CloudURL,
		APIKey:        cfg.CloudAPIKey,
		SiteURL:       cfg.CloudSiteURL,
		AppName:       cfg.CloudAppName,
		RatePerMinute: cfg.CloudRatePerMinute,
		ChatTimeout:   secs(cfg.CloudTimeoutSeconds),
		ListTimeout:   secs(cfg.CatalogTimeoutSeconds),
		ProbeTimeout:  secs(cfg.ProbeTimeoutSeconds),
	})

	g := gateway.NewWithConfig(gateway.Config{
		Local:          local,
		Cloud:          cloud,
		DefaultBackend: defHint,
		CatalogTTL:     secs(cfg.CatalogTTLSeconds),
		Logger:         logger,
		Version:        version,
	})

	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	if len(cfg.AllowedOrigins) > 0 {
		httpapi.SetCORSOptions(true, cfg.AllowedOrigins,
			[]string{"GET", "POST", "OPTIONS", "HEAD"}, []string{"*"})
	}

	// Base context lets a shutdown cancel in-flight upstream calls.
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	// Startup probe is informational only; the gateway serves regardless.
	probeCtx, probeCancel := context.WithTimeout(baseCtx, 10*time.Second)
	h := g.Health(probeCtx)
	probeCancel()
	logger.Info().
		Str("status", h.Status).
		Bool("local_reachable", h.Local.Reachable).
		Bool("cloud_reachable", h.Cloud.Reachable).
		Msg("startup probe")

	mux := httpapi.NewMux(g)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("local_url", cfg.LocalURL).
			Str("cloud_url", cfg.CloudURL).
			Bool("cloud_configured", cloud.Configured()).
			Str("default_backend", string(defHint)).
			Msg("inferproxy listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// mergeUnderFlags lays file values under the flag values: a field from the
// file wins only when its flag was not given explicitly on the command line.
func mergeUnderFlags(cfg, file config.Config) config.Config {
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if !explicit["addr"] && file.Addr != "" {
		cfg.Addr = file.Addr
	}
	if !explicit["local-url"] && file.LocalURL != "" {
		cfg.LocalURL = file.LocalURL
	}
	if !explicit["cloud-url"] && file.CloudURL != "" {
		cfg.CloudURL = file.CloudURL
	}
	if !explicit["cloud-key"] && file.CloudAPIKey != "" {
		cfg.CloudAPIKey = file.CloudAPIKey
	}
	if !explicit["default-backend"] && file.DefaultBackend != "" {
		cfg.DefaultBackend = file.DefaultBackend
	}
	if !explicit["allowed-origins"] && file.AllowedOrigins != nil {
		cfg.AllowedOrigins = file.AllowedOrigins
	}
	if !explicit["cloud-rate-limit"] && file.CloudRatePerMinute != 0 {
		cfg.CloudRatePerMinute = file.CloudRatePerMinute
	}
	// These have no flags; the file is their only source.
	cfg.CloudSiteURL = file.CloudSiteURL
	cfg.CloudAppName = file.CloudAppName
	cfg.LocalTimeoutSeconds = file.LocalTimeoutSeconds
	cfg.CloudTimeoutSeconds = file.CloudTimeoutSeconds
	cfg.CatalogTimeoutSeconds = file.CatalogTimeoutSeconds
	cfg.ProbeTimeoutSeconds = file.ProbeTimeoutSeconds
	cfg.CatalogTTLSeconds = file.CatalogTTLSeconds
	cfg.MaxBodyBytes = file.MaxBodyBytes
	return cfg
}

func secs(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
