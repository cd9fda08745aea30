// Package upstream calls an OpenAI-compatible chat completion endpoint.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/chatgate/pkg/models"
)

// SystemPrompt is sent as the first turn of every completion.
const SystemPrompt = "You are a helpful assistant. Please provide structured responses using markdown formatting. " +
	"Use headers (# for main points), bullet points (- for lists), bold (**text**) for emphasis, " +
	"and code blocks (```code```) for code examples. " +
	"Organize your responses with clear sections and concise explanations."

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

// Completion is a successful upstream reply.
type Completion struct {
	Text  string
	Model string
	Usage models.Usage
}

// Client issues single, unretried completion calls.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// New creates a Client for baseURL, e.g. "http://localhost:11434/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages builds the two-turn conversation for message.
func Messages(message string) []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: SystemPrompt},
		{Role: models.RoleUser, Content: message},
	}
}

// Complete sends message to model and returns the first choice, trimmed.
// The call is bounded by timeout in addition to ctx.
func (c *Client) Complete(ctx context.Context, model, message string, timeout time.Duration) (*Completion, error) {
	body, err := json.Marshal(models.ChatCompletionRequest{
		Model:    model,
		Messages: Messages(message),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode, Body: truncateBody(respBody, maxErrorBody)}
	}

	var out models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &Error{Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &Error{Kind: KindNoChoices, StatusCode: resp.StatusCode}
	}

	comp := &Completion{
		Text:  strings.TrimSpace(out.Choices[0].Message.Content),
		Model: out.Model,
	}
	if out.Usage != nil {
		comp.Usage = *out.Usage
	}
	return comp, nil
}

func classify(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}

// truncateBody keeps at most n bytes of b, backing up to a rune boundary.
func truncateBody(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}
