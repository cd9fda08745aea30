// Package mcp exposes the gateway as Model Context Protocol tools.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pario-ai/chatgate/pkg/gateway"
	"github.com/pario-ai/chatgate/pkg/models"
)

// ClientKey identifies MCP callers to the rate limiter and audit log.
const ClientKey = "mcp"

// Chatter runs messages through the gateway pipeline.
type Chatter interface {
	Ask(ctx context.Context, clientKey, message string) gateway.Outcome
	ModelInfo() string
}

// CacheStatter provides cache statistics without coupling to a concrete cache implementation.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// AuditQuerier searches the audit log.
type AuditQuerier interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error)
}

// Server wraps the MCP server with the gateway dependencies.
type Server struct {
	server  *mcp.Server
	chat    Chatter
	cache   CacheStatter
	auditor AuditQuerier
}

// New creates an MCP server with all chatgate tools registered. cache and
// auditor may be nil.
func New(chat Chatter, cache CacheStatter, auditor AuditQuerier, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chatgate",
			Version: version,
		}, nil),
		chat:    chat,
		cache:   cache,
		auditor: auditor,
	}
	s.registerTools()
	return s
}

// Run serves a single session on transport until the client disconnects or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// Connect starts a session on transport without blocking.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatgate_chat",
		Description: "Send a message through the gateway and return the assistant's Markdown reply. Subject to the same rate limit and cache as HTTP clients.",
	}, s.handleChat)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatgate_model_info",
		Description: "Show the upstream model the gateway forwards to.",
	}, s.handleModelInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatgate_cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, hit rate).",
	}, s.handleCacheStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chatgate_audit_search",
		Description: "Search the gateway audit log with optional filters.",
	}, s.handleAuditSearch)
}
