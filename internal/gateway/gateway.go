package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferproxy/internal/backend"
	"inferproxy/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultCatalogTTL     = 60 * time.Second
	defaultVersion        = "1.0.0"
	defaultDefaultBackend = types.BackendAuto
)

// Config encapsulates all tunables for Gateway construction.
type Config struct {
	Local backend.Client
	Cloud backend.Client
	// DefaultBackend applies when a request carries no hint at all.
	DefaultBackend types.Backend
	// CatalogTTL bounds how long the selector reuses a cached catalog.
	CatalogTTL time.Duration
	Logger     zerolog.Logger
	Version    string
}

// Gateway routes OpenAI-style requests across the local and cloud backends.
type Gateway struct {
	local       backend.Client
	cloud       backend.Client
	defaultHint types.Backend
	catalog     *catalog
	health      atomic.Pointer[healthSnapshot]
	log         zerolog.Logger
	version     string
	startTime   time.Time
}

// NewWithConfig constructs a Gateway from Config.
func NewWithConfig(cfg Config) *Gateway {
	g := &Gateway{
		local:       cfg.Local,
		cloud:       cfg.Cloud,
		defaultHint: cfg.DefaultBackend,
		log:         cfg.Logger,
		version:     cfg.Version,
		startTime:   time.Now(),
	}
	if g.defaultHint == "" {
		g.defaultHint = defaultDefaultBackend
	}
	if g.version == "" {
		g.version = defaultVersion
	}
	ttl := cfg.CatalogTTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	g.catalog = &catalog{
		local: cfg.Local,
		cloud: cfg.Cloud,
		ttl:   ttl,
		log:   cfg.Logger,
	}
	return g
}

func (g *Gateway) client(b types.Backend) backend.Client {
	if b == types.BackendCloud {
		return g.cloud
	}
	return g.local
}

// Usage proxies the cloud backend's account usage endpoint verbatim.
func (g *Gateway) Usage(ctx context.Context) (*backend.Response, error) {
	uc, ok := g.cloud.(backend.UsageClient)
	if !ok {
		return nil, ErrUsageUnsupported
	}
	return uc.KeyUsage(ctx)
}

// Info describes the service for the root endpoint.
func (g *Gateway) Info() types.ServiceInfo {
	return types.ServiceInfo{
		Service: "inferproxy",
		Version: g.version,
		Status:  "running",
		Backends: map[string]string{
			"local": "ollama",
			"cloud": "openrouter",
		},
		Endpoints: map[string]string{
			"health":  "/health",
			"models":  "/models",
			"chat":    "/chat/completions?backend=auto|local|cloud",
			"usage":   "/usage",
			"metrics": "/metrics",
		},
	}
}
