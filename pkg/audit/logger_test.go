package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/chatgate/pkg/models"
	"github.com/stretchr/testify/require"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 90,
		MaxBodySize:   1024,
		Include:       []string{"messages", "responses", "errors"},
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	hash, prefix := HashClient("192.168.10.20")
	return models.AuditEntry{
		RequestID:        "req-001",
		ClientHash:       hash,
		ClientPrefix:     prefix,
		Model:            "llama3",
		Outcome:          "fresh",
		Message:          "What is Go?",
		Response:         "# Go\n- a language",
		StatusCode:       200,
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
		LatencyMs:        150,
		CreatedAt:        time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))

	entries, err := l.Query(ctx, models.AuditQueryOpts{Outcome: "fresh"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "req-001", entries[0].RequestID)
	require.Equal(t, "What is Go?", entries[0].Message)
	require.Equal(t, 30, entries[0].TotalTokens)

	entries, err = l.Query(ctx, models.AuditQueryOpts{ClientPrefix: "192.168."})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestQueryByRequestID(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "req-001"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = l.Query(ctx, models.AuditQueryOpts{RequestID: "missing"})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestQuerySince(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	old := sampleEntry()
	old.RequestID = "old"
	old.CreatedAt = time.Now().AddDate(0, 0, -10)
	require.NoError(t, l.Log(ctx, old))
	require.NoError(t, l.Log(ctx, sampleEntry()))

	entries, err := l.Query(ctx, models.AuditQueryOpts{Since: time.Now().AddDate(0, 0, -1)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "req-001", entries[0].RequestID)
}

func TestExcludeOutcomes(t *testing.T) {
	cfg := tempCfg(t)
	cfg.ExcludeOutcomes = []string{"cache_hit"}
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.Outcome = "cache_hit"
	require.NoError(t, l.Log(ctx, entry))

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBodyTruncation(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxBodySize = 16
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.Message = strings.Repeat("x", 100)
	require.NoError(t, l.Log(ctx, entry))

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "req-001"})
	require.NoError(t, err)
	require.Len(t, entries[0].Message, 16)
}

func TestBodyTruncationKeepsRunes(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxBodySize = 15
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.Message = strings.Repeat("é", 20)
	require.NoError(t, l.Log(ctx, entry))

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "req-001"})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("é", 7), entries[0].Message)
	require.True(t, utf8.ValidString(entries[0].Message))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 3))
	require.Equal(t, "ab", truncate("abc", 2))
	require.Equal(t, "a", truncate("a日本", 3))
	require.Equal(t, "a日", truncate("a日本", 4))
	require.Equal(t, "", truncate("日本", 2))
}

func TestIncludeFiltering(t *testing.T) {
	cfg := tempCfg(t)
	cfg.Include = []string{"errors"}
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.Outcome = "upstream_error"
	entry.ErrorDetail = "upstream returned status 503: overloaded"
	require.NoError(t, l.Log(ctx, entry))

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "req-001"})
	require.NoError(t, err)
	require.Empty(t, entries[0].Message)
	require.Empty(t, entries[0].Response)
	require.Equal(t, "upstream returned status 503: overloaded", entries[0].ErrorDetail)
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 0 // everything is old
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.CreatedAt = time.Now().AddDate(0, 0, -1)
	require.NoError(t, l.Log(ctx, entry))

	deleted, err := l.Cleanup(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))
	e2 := sampleEntry()
	e2.RequestID = "req-002"
	require.NoError(t, l.Log(ctx, e2))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	require.Equal(t, "fresh", stats[0].Outcome)
	require.Equal(t, 2, stats[0].Count)
	require.Equal(t, time.Now().UTC().Format("2006-01-02"), stats[0].Day)
}

func TestHashClient(t *testing.T) {
	hash, prefix := HashClient("203.0.113.77")
	require.Len(t, hash, 64)
	require.Equal(t, "203.0.11", prefix)

	_, prefix = HashClient("mcp")
	require.Equal(t, "mcp", prefix)
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	require.NoError(t, l.Log(context.Background(), sampleEntry()))
}

func TestNewInvalidPath(t *testing.T) {
	cfg := models.AuditConfig{
		Enabled: true,
		DBPath:  filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"),
	}
	_, err := New(cfg)
	require.Error(t, err)
}
