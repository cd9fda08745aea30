package main

import (
	"fmt"
	"io"

	"github.com/pario-ai/chatgate/pkg/audit"
	"github.com/pario-ai/chatgate/pkg/cache/memory"
	"github.com/pario-ai/chatgate/pkg/config"
	"github.com/pario-ai/chatgate/pkg/gateway"
	"github.com/pario-ai/chatgate/pkg/logging"
	"github.com/pario-ai/chatgate/pkg/metrics"
	"github.com/pario-ai/chatgate/pkg/ratelimit"
	"github.com/pario-ai/chatgate/pkg/upstream"
	log "github.com/sirupsen/logrus"
)

// app is the set of long-lived components shared by serve and mcp.
type app struct {
	cfg     *config.Config
	cache   *memory.Cache
	limiter *ratelimit.Manager
	auditor *audit.Logger
	metrics *metrics.Metrics
	gateway *gateway.Gateway
}

// loadConfig reads, configures logging and validates.
func loadConfig(configPath string, logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, logOut)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:   cfg,
		cache: memory.New(),
		limiter: ratelimit.NewManager(ratelimit.Settings{
			Limit:         cfg.RateLimit.Limit,
			Window:        cfg.RateLimit.Window,
			RedisEnabled:  cfg.RateLimit.Redis.Enabled,
			RedisAddr:     cfg.RateLimit.Redis.Addr,
			RedisPassword: cfg.RateLimit.Redis.Password,
			RedisDB:       cfg.RateLimit.Redis.DB,
			RedisPrefix:   cfg.RateLimit.Redis.Prefix,
		}),
	}

	opts := []gateway.Option{}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(a.cache.Len)
		opts = append(opts, gateway.WithRecorder(a.metrics))
	}
	if cfg.Audit.Enabled {
		l, err := audit.New(cfg.Audit)
		if err != nil {
			_ = a.limiter.Close()
			return nil, fmt.Errorf("init audit: %w", err)
		}
		a.auditor = l
		opts = append(opts, gateway.WithAuditor(l))
	}

	if !cfg.Configured() {
		log.Warn("upstream base_url or model not set; chat requests will fail")
	}

	client := upstream.New(cfg.Upstream.BaseURL, upstream.WithAPIKey(cfg.Upstream.APIKey))
	a.gateway = gateway.New(gateway.Config{
		Model:          cfg.Upstream.Model,
		CacheTTL:       cfg.Cache.TTL,
		Timeout:        cfg.Upstream.Timeout,
		CoalesceMisses: cfg.Gateway.CoalesceMisses,
	}, a.cache, a.limiter, client, opts...)

	return a, nil
}

// Close flushes pending audit writes and releases backends.
func (a *app) Close() {
	a.gateway.Close()
	if a.auditor != nil {
		_ = a.auditor.Close()
	}
	_ = a.limiter.Close()
}
