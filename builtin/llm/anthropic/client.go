// Package anthropic implements the LLM capability interfaces over the
// Anthropic Messages API. The API is small enough that a typed HTTP
// client keeps the dependency surface down while covering completion,
// tool-based extraction and the server-side web search tool.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Default values
const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 1024

	apiVersion        = "2023-06-01"
	webSearchToolType = "web_search_20250305"
	webSearchMaxUses  = 5

	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
	defaultRateLimit   = 5 // requests per second
	defaultBurst       = 10
)

// Config contains Anthropic client configuration.
type Config struct {
	Model     string
	APIKey    string // If empty, uses ANTHROPIC_API_KEY env var
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements Completer, StructuredExtractor and WebSearcher.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// New creates a new Anthropic client.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: defaultMaxRetries,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.config.APIKey != ""
}

// Complete returns the assistant reply for the given messages.
// System messages are joined into the request system field; only user
// and assistant messages go into the conversation turns.
func (c *Client) Complete(ctx context.Context, messages []types.Message) (string, error) {
	req := c.newRequest(messages)

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", &types.ProviderError{Provider: "anthropic", Op: "complete", Err: err}
	}

	text := joinTextBlocks(resp.Content)
	if text == "" {
		return "", &types.ProviderError{Provider: "anthropic", Op: "complete", Err: fmt.Errorf("empty response")}
	}
	return text, nil
}

// ExtractStructured forces a tool call against the schema and returns
// the tool input as raw JSON.
func (c *Client) ExtractStructured(ctx context.Context, schema provider.ExtractionSchema, messages []types.Message) (json.RawMessage, error) {
	req := c.newRequest(messages)
	req.Tools = []toolParam{
		{
			Name:        schema.Name,
			Description: schema.Description,
			InputSchema: schema.Schema,
		},
	}
	req.ToolChoice = &toolChoiceParam{Type: "tool", Name: schema.Name}

	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, &types.ProviderError{Provider: "anthropic", Op: "extract", Err: err}
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == schema.Name {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("%w: no tool_use block in response", types.ErrParseError)
}

// WebSearch answers a query using the server-side web search tool.
func (c *Client) WebSearch(ctx context.Context, query string) (string, error) {
	req := c.newRequest([]types.Message{{Role: types.RoleUser, Content: query}})
	req.Tools = []toolParam{
		{
			Type:    webSearchToolType,
			Name:    "web_search",
			MaxUses: webSearchMaxUses,
		},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", &types.ProviderError{Provider: "anthropic", Op: "web_search", Err: err}
	}

	return joinTextBlocks(resp.Content), nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// newRequest builds a messages request from neutral chat messages.
func (c *Client) newRequest(messages []types.Message) *messagesRequest {
	req := &messagesRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleUser, types.RoleAssistant:
			req.Messages = append(req.Messages, chatMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}
	req.System = strings.Join(system, "\n")

	return req
}

// send performs the request with rate limiting and retries.
func (c *Client) send(ctx context.Context, req *messagesRequest) (*messagesResponse, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", types.ErrProviderNotAvailable)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request to the messages endpoint.
func (c *Client) doRequest(ctx context.Context, req *messagesRequest) (*messagesResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.config.APIKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &out, nil
}

// joinTextBlocks concatenates all text content blocks.
func joinTextBlocks(blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "")
}

// retryableError marks transient failures worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Interface assertions
var (
	_ provider.Completer           = (*Client)(nil)
	_ provider.StructuredExtractor = (*Client)(nil)
	_ provider.WebSearcher         = (*Client)(nil)
)
