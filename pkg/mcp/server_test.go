package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pario-ai/chatgate/pkg/gateway"
	"github.com/pario-ai/chatgate/pkg/models"
	"github.com/pario-ai/chatgate/pkg/validate"
	"github.com/stretchr/testify/require"
)

// fakeChat implements Chatter for testing.
type fakeChat struct {
	out       gateway.Outcome
	gotKey    string
	gotMsg    string
	modelName string
}

func (f *fakeChat) Ask(_ context.Context, clientKey, message string) gateway.Outcome {
	f.gotKey = clientKey
	f.gotMsg = message
	return f.out
}

func (f *fakeChat) ModelInfo() string { return f.modelName }

// fakeCache implements CacheStatter for testing.
type fakeCache struct {
	stats models.CacheStats
}

func (f *fakeCache) Stats() (models.CacheStats, error) { return f.stats, nil }

// fakeAuditor implements AuditQuerier for testing.
type fakeAuditor struct {
	entries []models.AuditEntry
	gotOpts models.AuditQueryOpts
}

func (f *fakeAuditor) Query(_ context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	f.gotOpts = opts
	return f.entries, nil
}

// connect wires srv to an in-memory client session.
func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := srv.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	cs := connect(t, srv)
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func TestInitialize(t *testing.T) {
	cs := connect(t, New(&fakeChat{}, nil, nil, "test"))
	info := cs.InitializeResult()
	require.NotNil(t, info)
	require.Equal(t, "chatgate", info.ServerInfo.Name)
	require.Equal(t, "test", info.ServerInfo.Version)
}

func TestToolsList(t *testing.T) {
	cs := connect(t, New(&fakeChat{}, nil, nil, "test"))
	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		require.NotEmpty(t, tool.Description)
	}
	require.ElementsMatch(t, []string{
		"chatgate_chat",
		"chatgate_model_info",
		"chatgate_cache_stats",
		"chatgate_audit_search",
	}, names)
}

func TestToolCallChat(t *testing.T) {
	chat := &fakeChat{out: gateway.Outcome{Kind: gateway.KindFresh, Payload: "# Answer"}}
	text, isErr := callTool(t, New(chat, nil, nil, "test"), "chatgate_chat", map[string]any{"message": "question"})
	require.False(t, isErr)
	require.Equal(t, "# Answer", text)
	require.Equal(t, ClientKey, chat.gotKey)
	require.Equal(t, "question", chat.gotMsg)
}

func TestToolCallChatFailures(t *testing.T) {
	tests := []struct {
		name string
		out  gateway.Outcome
		want string
	}{
		{
			name: "validation",
			out:  gateway.Outcome{Kind: gateway.KindValidationError, Err: &validate.InvalidInputError{Reason: validate.ReasonTooLong}},
			want: "Invalid message: message too long",
		},
		{
			name: "rate limited",
			out:  gateway.Outcome{Kind: gateway.KindRateLimited, Err: gateway.ErrRateLimited, RetryAfter: 12 * time.Second},
			want: "Rate limit exceeded; retry in 12s",
		},
		{
			name: "upstream",
			out:  gateway.Outcome{Kind: gateway.KindUpstreamError, Err: errors.New("status 503")},
			want: gateway.MessageUpstreamError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, New(&fakeChat{out: tt.out}, nil, nil, "test"), "chatgate_chat", map[string]any{"message": "x"})
			require.True(t, isErr)
			require.Equal(t, tt.want, text)
		})
	}
}

func TestToolCallModelInfo(t *testing.T) {
	text, _ := callTool(t, New(&fakeChat{modelName: "llama3.2"}, nil, nil, "test"), "chatgate_model_info", map[string]any{})
	require.Equal(t, "Model: llama3.2", text)
}

func TestToolCallCacheNotConfigured(t *testing.T) {
	text, isErr := callTool(t, New(&fakeChat{}, nil, nil, "test"), "chatgate_cache_stats", map[string]any{})
	require.False(t, isErr)
	require.Equal(t, "Cache is not configured.", text)
}

func TestToolCallCacheStats(t *testing.T) {
	cache := &fakeCache{stats: models.CacheStats{Entries: 3, Hits: 3, Misses: 1}}
	text, _ := callTool(t, New(&fakeChat{}, cache, nil, "test"), "chatgate_cache_stats", map[string]any{})
	require.Contains(t, text, "Entries:  3")
	require.Contains(t, text, "Hit Rate: 75.0%")
}

func TestToolCallAuditSearch(t *testing.T) {
	aud := &fakeAuditor{entries: []models.AuditEntry{{
		RequestID:    "7d0c6c1e-4b55-4f0e-8a4c-0d7ac1a7a001",
		Outcome:      "upstream_error",
		ClientPrefix: "10.0.0.1",
		StatusCode:   503,
		LatencyMs:    42,
		CreatedAt:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}}}
	srv := New(&fakeChat{}, nil, aud, "test")

	text, isErr := callTool(t, srv, "chatgate_audit_search", map[string]any{"outcome": "upstream_error", "since": "2025-03-01"})
	require.False(t, isErr)
	require.Contains(t, text, "upstream_error")
	require.Contains(t, text, "2025-03-01 09:00:00")
	require.Equal(t, "upstream_error", aud.gotOpts.Outcome)
	require.Equal(t, 50, aud.gotOpts.Limit)
	require.Equal(t, 2025, aud.gotOpts.Since.Year())

	_, isErr = callTool(t, srv, "chatgate_audit_search", map[string]any{"since": "yesterday"})
	require.True(t, isErr)
}

func TestToolCallAuditNotConfigured(t *testing.T) {
	text, _ := callTool(t, New(&fakeChat{}, nil, nil, "test"), "chatgate_audit_search", map[string]any{})
	require.Equal(t, "Audit logging is not configured.", text)
}

func TestUnknownTool(t *testing.T) {
	cs := connect(t, New(&fakeChat{}, nil, nil, "test"))
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "nope"})
	require.Error(t, err)
}
