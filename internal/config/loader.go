package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the gateway.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	LocalURL       string   `json:"local_url" yaml:"local_url" toml:"local_url"`
	CloudURL       string   `json:"cloud_url" yaml:"cloud_url" toml:"cloud_url"`
	CloudAPIKey    string   `json:"cloud_api_key" yaml:"cloud_api_key" toml:"cloud_api_key"`
	CloudSiteURL   string   `json:"cloud_site_url" yaml:"cloud_site_url" toml:"cloud_site_url"`
	CloudAppName   string   `json:"cloud_app_name" yaml:"cloud_app_name" toml:"cloud_app_name"`
	DefaultBackend string   `json:"default_backend" yaml:"default_backend" toml:"default_backend"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	// Outbound cloud call ceiling in requests per minute; 0 disables.
	CloudRatePerMinute int `json:"cloud_rate_per_minute" yaml:"cloud_rate_per_minute" toml:"cloud_rate_per_minute"`
	// Per-operation timeouts in seconds.
	LocalTimeoutSeconds   int `json:"local_timeout_seconds" yaml:"local_timeout_seconds" toml:"local_timeout_seconds"`
	CloudTimeoutSeconds   int `json:"cloud_timeout_seconds" yaml:"cloud_timeout_seconds" toml:"cloud_timeout_seconds"`
	CatalogTimeoutSeconds int `json:"catalog_timeout_seconds" yaml:"catalog_timeout_seconds" toml:"catalog_timeout_seconds"`
	ProbeTimeoutSeconds   int `json:"probe_timeout_seconds" yaml:"probe_timeout_seconds" toml:"probe_timeout_seconds"`
	// Seconds the selector may reuse a cached local catalog.
	CatalogTTLSeconds int   `json:"catalog_ttl_seconds" yaml:"catalog_ttl_seconds" toml:"catalog_ttl_seconds"`
	MaxBodyBytes      int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
