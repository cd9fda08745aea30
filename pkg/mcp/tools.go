package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pario-ai/chatgate/pkg/gateway"
	"github.com/pario-ai/chatgate/pkg/models"
)

// ChatArgs are the arguments for the chatgate_chat tool.
type ChatArgs struct {
	Message string `json:"message" jsonschema:"The user message, at most 4000 characters"`
}

// NoArgs is the argument type for tools that take no input.
type NoArgs struct{}

// AuditSearchArgs are the arguments for the chatgate_audit_search tool.
type AuditSearchArgs struct {
	Outcome      string `json:"outcome,omitempty" jsonschema:"Filter by outcome: fresh, cache_hit, model_info, validation_error, rate_limited or upstream_error"`
	Since        string `json:"since,omitempty" jsonschema:"Start date in YYYY-MM-DD format"`
	ClientPrefix string `json:"client_prefix,omitempty" jsonschema:"Filter by client prefix"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum entries to return, 50 when unset"`
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}

func (s *Server) handleChat(ctx context.Context,
	_ *mcp.CallToolRequest, args ChatArgs) (*mcp.CallToolResult, any, error) {

	if s.chat == nil {
		return errorResult("Gateway is not configured."), nil, nil
	}

	out := s.chat.Ask(ctx, ClientKey, args.Message)
	switch out.Kind {
	case gateway.KindModelInfo:
		return textResult("Model: " + out.Payload), nil, nil
	case gateway.KindCacheHit, gateway.KindFresh:
		return textResult(out.Payload), nil, nil
	case gateway.KindValidationError:
		return errorResult("Invalid message: " + out.Err.Error()), nil, nil
	case gateway.KindRateLimited:
		return errorResult(gateway.MessageRateLimited + "; retry in " + out.RetryAfter.Round(time.Second).String()), nil, nil
	default:
		return errorResult(gateway.MessageUpstreamError), nil, nil
	}
}

func (s *Server) handleModelInfo(_ context.Context,
	_ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {

	if s.chat == nil {
		return errorResult("Gateway is not configured."), nil, nil
	}
	model := s.chat.ModelInfo()
	if model == "" {
		return textResult("No model is configured."), nil, nil
	}
	return textResult("Model: " + model), nil, nil
}

func (s *Server) handleCacheStats(_ context.Context,
	_ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {

	if s.cache == nil {
		return textResult("Cache is not configured."), nil, nil
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error()), nil, nil
	}
	return textResult(formatCacheStats(stats)), nil, nil
}

func (s *Server) handleAuditSearch(ctx context.Context,
	_ *mcp.CallToolRequest, args AuditSearchArgs) (*mcp.CallToolResult, any, error) {

	if s.auditor == nil {
		return textResult("Audit logging is not configured."), nil, nil
	}

	opts := models.AuditQueryOpts{
		Outcome:      args.Outcome,
		ClientPrefix: args.ClientPrefix,
		Limit:        args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error()), nil, nil
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error()), nil, nil
	}
	return textResult(formatAuditEntries(entries)), nil, nil
}
