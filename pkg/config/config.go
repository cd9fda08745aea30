package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pario-ai/chatgate/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all chatgate configuration.
type Config struct {
	Listen         string             `yaml:"listen"`
	Upstream       UpstreamConfig     `yaml:"upstream"`
	Cache          CacheConfig        `yaml:"cache"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	Gateway        GatewayConfig      `yaml:"gateway"`
	Audit          models.AuditConfig `yaml:"audit"`
	Log            LogConfig          `yaml:"log"`
	Metrics        MetricsConfig      `yaml:"metrics"`
	TrustedProxies []string           `yaml:"trusted_proxies"`
}

// UpstreamConfig defines the OpenAI-compatible completion endpoint.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// RateLimitConfig controls per-client admission.
type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig selects the shared rate limit backend.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// GatewayConfig holds pipeline toggles.
type GatewayConfig struct {
	CoalesceMisses bool `yaml:"coalesce_misses"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Upstream: UpstreamConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Limit:  10,
			Window: time.Minute,
			Redis: RedisConfig{
				Prefix: "chatgate:rl",
			},
		},
		Audit: models.AuditConfig{
			DBPath:        "chatgate-audit.db",
			RetentionDays: 90,
			Include:       []string{"messages", "responses", "errors"},
			MaxBodySize:   65536,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets the process environment win over the file.
func (c *Config) applyEnv() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Listen = ":" + port
	}
	if v := firstEnv("LLAMA_URL", "LLM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := firstEnv("LLAMA_MODEL", "LLM_MODEL_NAME"); v != "" {
		c.Upstream.Model = v
	}
	if v := firstEnv("LLM_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := firstEnv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Configured reports whether an upstream endpoint and model are set.
func (c *Config) Configured() bool {
	return c.Upstream.BaseURL != "" && c.Upstream.Model != ""
}

// Validate rejects settings the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, errors.New("rate_limit.limit must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	if c.RateLimit.Redis.Enabled && strings.TrimSpace(c.RateLimit.Redis.Addr) == "" {
		errs = append(errs, errors.New("rate_limit.redis.addr is required when redis is enabled"))
	}
	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("upstream.base_url %q is not an absolute URL", c.Upstream.BaseURL))
		}
	}
	return errors.Join(errs...)
}
