// Package gateway runs the chat pipeline: validate, intercept the model info
// command, rate-check, consult the cache, call upstream and store.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pario-ai/chatgate/pkg/audit"
	"github.com/pario-ai/chatgate/pkg/models"
	"github.com/pario-ai/chatgate/pkg/ratelimit"
	"github.com/pario-ai/chatgate/pkg/upstream"
	"github.com/pario-ai/chatgate/pkg/validate"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrRateLimited is the error carried by KindRateLimited outcomes.
var ErrRateLimited = errors.New("rate limit exceeded")

// Cache stores responses by validated message text.
type Cache interface {
	Get(key string) (string, bool)
	Put(key, value string, ttl time.Duration)
}

// Limiter admits or rejects a request for a client key.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// Completer produces an assistant reply for a user message.
type Completer interface {
	Complete(ctx context.Context, model, message string, timeout time.Duration) (*upstream.Completion, error)
}

// Auditor records finished exchanges.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Recorder receives outcome and upstream latency observations.
type Recorder interface {
	ObserveOutcome(outcome string)
	ObserveUpstream(result string, d time.Duration)
}

// Config is the immutable gateway configuration.
type Config struct {
	Model          string
	CacheTTL       time.Duration
	Timeout        time.Duration
	CoalesceMisses bool
}

// Gateway orchestrates one request/response cycle. It is safe for concurrent use.
type Gateway struct {
	cfg      Config
	cache    Cache
	limiter  Limiter
	upstream Completer
	auditor  Auditor
	recorder Recorder
	nowFn    func() time.Time
	group    singleflight.Group
	wg       sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAuditor logs every outcome asynchronously.
func WithAuditor(a Auditor) Option {
	return func(g *Gateway) { g.auditor = a }
}

// WithRecorder reports outcomes and upstream latency.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithClock replaces time.Now for latency and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.nowFn = now
		}
	}
}

// New creates a Gateway.
func New(cfg Config, cache Cache, limiter Limiter, up Completer, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		cache:    cache,
		limiter:  limiter,
		upstream: up,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModelInfo returns the configured model name.
func (g *Gateway) ModelInfo() string {
	return g.cfg.Model
}

// HandleChat validates a raw JSON body and runs it through the pipeline.
func (g *Gateway) HandleChat(ctx context.Context, clientKey string, rawBody []byte) Outcome {
	start := g.nowFn()
	message, err := validate.Body(rawBody)
	if err != nil {
		return g.finish(clientKey, "", start, Outcome{Kind: KindValidationError, Err: err}, nil)
	}
	return g.run(ctx, clientKey, message, start)
}

// Ask runs an already decoded message through the pipeline.
func (g *Gateway) Ask(ctx context.Context, clientKey, message string) Outcome {
	start := g.nowFn()
	msg, err := validate.Message(message)
	if err != nil {
		return g.finish(clientKey, "", start, Outcome{Kind: KindValidationError, Err: err}, nil)
	}
	return g.run(ctx, clientKey, msg, start)
}

func (g *Gateway) run(ctx context.Context, clientKey, message string, start time.Time) Outcome {
	if message == validate.ModelInfoCommand {
		return g.finish(clientKey, message, start, Outcome{Kind: KindModelInfo, Payload: g.cfg.Model}, nil)
	}

	if g.limiter != nil {
		res, err := g.limiter.Allow(ctx, clientKey)
		if err != nil {
			log.WithError(err).WithField("client", clientKey).Warn("rate limit check failed, admitting request")
		} else if !res.Allowed {
			return g.finish(clientKey, message, start, Outcome{
				Kind:       KindRateLimited,
				Err:        ErrRateLimited,
				RetryAfter: res.RetryAfter,
			}, nil)
		}
	}

	if g.cache != nil {
		if v, ok := g.cache.Get(message); ok {
			return g.finish(clientKey, message, start, Outcome{Kind: KindCacheHit, Payload: v}, nil)
		}
	}

	comp, err := g.complete(ctx, message)
	if err != nil {
		log.WithError(err).WithField("client", clientKey).Error("upstream completion failed")
		return g.finish(clientKey, message, start, Outcome{Kind: KindUpstreamError, Err: err}, nil)
	}
	return g.finish(clientKey, message, start, Outcome{Kind: KindFresh, Payload: comp.Text}, comp)
}

// complete calls upstream and stores the reply. With coalescing enabled,
// concurrent misses for the same message share one call.
func (g *Gateway) complete(ctx context.Context, message string) (*upstream.Completion, error) {
	if !g.cfg.CoalesceMisses {
		return g.callAndStore(ctx, message)
	}
	v, err, _ := g.group.Do(message, func() (any, error) {
		return g.callAndStore(context.WithoutCancel(ctx), message)
	})
	if err != nil {
		return nil, err
	}
	return v.(*upstream.Completion), nil
}

func (g *Gateway) callAndStore(ctx context.Context, message string) (*upstream.Completion, error) {
	callStart := g.nowFn()
	comp, err := g.upstream.Complete(ctx, g.cfg.Model, message, g.cfg.Timeout)
	if g.recorder != nil {
		g.recorder.ObserveUpstream(upstreamResult(err), g.nowFn().Sub(callStart))
	}
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		g.cache.Put(message, comp.Text, g.cfg.CacheTTL)
	}
	return comp, nil
}

func upstreamResult(err error) string {
	if err == nil {
		return "ok"
	}
	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		return string(uerr.Kind)
	}
	return "error"
}

// finish stamps the request ID, records metrics and queues the audit write.
func (g *Gateway) finish(clientKey, message string, start time.Time, out Outcome, comp *upstream.Completion) Outcome {
	out.RequestID = uuid.NewString()
	if g.recorder != nil {
		g.recorder.ObserveOutcome(string(out.Kind))
	}
	if g.auditor == nil {
		return out
	}

	now := g.nowFn()
	hash, prefix := audit.HashClient(clientKey)
	entry := models.AuditEntry{
		RequestID:    out.RequestID,
		ClientHash:   hash,
		ClientPrefix: prefix,
		Model:        g.cfg.Model,
		Outcome:      string(out.Kind),
		Message:      message,
		Response:     out.Payload,
		StatusCode:   statusFor(out),
		LatencyMs:    now.Sub(start).Milliseconds(),
		CreatedAt:    now.UTC(),
	}
	if out.Err != nil {
		entry.ErrorDetail = out.Err.Error()
		var uerr *upstream.Error
		if errors.As(out.Err, &uerr) && uerr.StatusCode != 0 {
			entry.StatusCode = uerr.StatusCode
		}
	}
	if comp != nil {
		entry.PromptTokens = comp.Usage.PromptTokens
		entry.CompletionTokens = comp.Usage.CompletionTokens
		entry.TotalTokens = comp.Usage.TotalTokens
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.auditor.Log(context.Background(), entry); err != nil {
			log.WithError(err).Warn("audit log error")
		}
	}()
	return out
}

// Close waits for pending audit writes.
func (g *Gateway) Close() {
	g.wg.Wait()
}
