// Package server exposes the chat gateway over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pario-ai/chatgate/pkg/config"
	"github.com/pario-ai/chatgate/pkg/gateway"
	"github.com/pario-ai/chatgate/pkg/metrics"
	"github.com/pario-ai/chatgate/pkg/models"
	log "github.com/sirupsen/logrus"
)

// maxBodyBytes bounds the request body; a 4000 character message plus JSON
// framing fits comfortably.
const maxBodyBytes = 64 << 10

// CacheStatter provides cache statistics without coupling to a concrete cache implementation.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// Server is the chatgate HTTP boundary.
type Server struct {
	cfg     *config.Config
	gateway *gateway.Gateway
	cache   CacheStatter
	metrics *metrics.Metrics
	engine  *gin.Engine
	version string
	started time.Time
}

// New creates a Server wired with all dependencies. m may be nil.
func New(cfg *config.Config, gw *gateway.Gateway, cache CacheStatter, m *metrics.Metrics, version string) *Server {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.WithError(err).Warn("invalid trusted proxies, trusting none")
		_ = engine.SetTrustedProxies(nil)
	}

	s := &Server{
		cfg:     cfg,
		gateway: gw,
		cache:   cache,
		metrics: m,
		engine:  engine,
		version: version,
		started: time.Now(),
	}

	engine.Use(gin.Recovery(), s.requestLogger(), securityHeaders())

	engine.POST("/api/chat", s.handleChat)
	engine.GET("/api/stats", s.handleStats)
	engine.GET("/health", s.handleHealth)
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	engine.GET("/example", handleExample)
	if m != nil && cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("chatgate listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
