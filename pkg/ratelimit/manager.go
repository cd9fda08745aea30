package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// Settings is the resolved rate limit configuration.
type Settings struct {
	Limit         int
	Window        time.Duration
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager selects a limiter backend and enforces the configured limit.
type Manager struct {
	settings       Settings
	nowFn          func() time.Time
	memoryLimiter  *MemoryLimiter
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisLimiter   *RedisLimiter
	breakerUntil   time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// WithRedisClientFactory replaces redis.NewClient.
func WithRedisClientFactory(f RedisClientFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.newRedisClient = f
		}
	}
}

// NewManager constructs a Manager.
func NewManager(settings Settings, opts ...Option) *Manager {
	m := &Manager{
		settings:       settings,
		nowFn:          time.Now,
		memoryLimiter:  NewMemoryLimiter(),
		newRedisClient: redis.NewClient,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow checks whether the request from key should be admitted using the best
// available backend. Redis failures fall back to memory for a while.
func (m *Manager) Allow(ctx context.Context, key string) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	now := m.nowFn()
	if m.settings.RedisEnabled {
		if result, ok := m.allowRedis(ctx, key, now); ok {
			return result, nil
		}
	}
	return m.memoryLimiter.Allow(ctx, key, m.settings.Limit, m.settings.Window, now)
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLimiter == nil {
		return nil
	}
	err := m.redisLimiter.client.Close()
	m.redisLimiter = nil
	return err
}

func (m *Manager) allowRedis(ctx context.Context, key string, now time.Time) (Result, bool) {
	if m.isBreakerActive(now) {
		return Result{}, false
	}
	limiter, err := m.ensureRedis(ctx)
	if err != nil {
		m.tripBreaker(err, now)
		return Result{}, false
	}
	result, err := limiter.Allow(ctx, key, m.settings.Limit, m.settings.Window, now)
	if err != nil {
		m.tripBreaker(err, now)
		return Result{}, false
	}
	return result, true
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) ensureRedis(ctx context.Context) (*RedisLimiter, error) {
	addr := strings.TrimSpace(m.settings.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLimiter != nil {
		return m.redisLimiter, nil
	}

	db := m.settings.RedisDB
	if db < 0 {
		db = 0
	}
	client := m.newRedisClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(m.settings.RedisPassword),
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	m.redisLimiter = NewRedisLimiter(client, m.settings.RedisPrefix)
	return m.redisLimiter, nil
}
