package server

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pario-ai/chatgate/pkg/gateway"
	"github.com/pario-ai/chatgate/pkg/models"
	"github.com/pario-ai/chatgate/pkg/render"
	"github.com/pario-ai/chatgate/pkg/validate"
	log "github.com/sirupsen/logrus"
)

//go:embed example.md
var exampleMarkdown string

func (s *Server) handleChat(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusBadRequest, validate.ReasonTooLong)
			return
		}
		c.String(http.StatusBadRequest, validate.ReasonMissing)
		return
	}

	out := s.gateway.HandleChat(c.Request.Context(), c.ClientIP(), raw)
	c.Header("X-Request-ID", out.RequestID)

	switch out.Kind {
	case gateway.KindModelInfo:
		c.JSON(http.StatusOK, models.ModelInfoResponse{Model: out.Payload})
	case gateway.KindCacheHit, gateway.KindFresh:
		if out.Kind == gateway.KindCacheHit {
			c.Header("X-Chatgate-Cache", "hit")
		} else {
			c.Header("X-Chatgate-Cache", "miss")
		}
		resp := models.ChatResponse{Response: out.Payload}
		if c.Query("format") == "html" {
			html, err := render.HTML(out.Payload)
			if err != nil {
				log.WithError(err).Warn("render html failed")
			}
			resp.HTML = html
		}
		c.JSON(http.StatusOK, resp)
	case gateway.KindValidationError:
		c.String(http.StatusBadRequest, out.Err.Error())
	case gateway.KindRateLimited:
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(out.RetryAfter)))
		c.String(http.StatusTooManyRequests, gateway.MessageRateLimited)
	default:
		c.String(http.StatusInternalServerError, gateway.MessageUpstreamError)
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (s *Server) handleStats(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusOK, models.CacheStats{})
		return
	}
	stats, err := s.cache.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":  stats.Entries,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"hit_rate": stats.HitRate(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	llmStatus := "ok"
	if !s.cfg.Configured() {
		llmStatus = "not_configured"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	uptime := time.Since(s.started)

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"llm_api":   llmStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   s.version,
		"uptime":    fmt.Sprintf("%dh %dm %ds", int(uptime.Hours()), int(uptime.Minutes())%60, int(uptime.Seconds())%60),
		"memory": gin.H{
			"alloc_mb":       fmt.Sprintf("%.2f", float64(mem.Alloc)/1024/1024),
			"total_alloc_mb": fmt.Sprintf("%.2f", float64(mem.TotalAlloc)/1024/1024),
			"sys_mb":         fmt.Sprintf("%.2f", float64(mem.Sys)/1024/1024),
			"num_gc":         mem.NumGC,
		},
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	})
}

func handleExample(c *gin.Context) {
	c.JSON(http.StatusOK, models.ChatResponse{Response: exampleMarkdown})
}
