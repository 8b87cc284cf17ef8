// Package openai implements the LLM capability interfaces using OpenAI's API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Default values
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultSearchModel = "gpt-4o-mini-search-preview"
	DefaultMaxTokens   = 1024
)

// Config contains OpenAI client configuration.
type Config struct {
	Model       string
	SearchModel string // Model used for web search completions
	APIKey      string // If empty, uses OPENAI_API_KEY env var
	BaseURL     string // Optional: custom API endpoint
	MaxTokens   int
}

// Client implements Completer, StructuredExtractor and WebSearcher for OpenAI.
type Client struct {
	config Config
	client *openai.Client
}

// New creates a new OpenAI LLM client.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SearchModel == "" {
		cfg.SearchModel = DefaultSearchModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai"
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.config.APIKey != "" || os.Getenv("OPENAI_API_KEY") != ""
}

// Complete returns the assistant reply for the given messages.
func (c *Client) Complete(ctx context.Context, messages []types.Message) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("%w: OPENAI_API_KEY not set", types.ErrProviderNotAvailable)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.config.Model,
		Messages:  toChatMessages(messages),
		MaxTokens: c.config.MaxTokens,
	})
	if err != nil {
		return "", &types.ProviderError{Provider: "openai", Op: "complete", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &types.ProviderError{Provider: "openai", Op: "complete", Err: fmt.Errorf("empty response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// ExtractStructured returns raw JSON conforming to the schema, using
// strict json_schema response formatting.
func (c *Client) ExtractStructured(ctx context.Context, schema provider.ExtractionSchema, messages []types.Message) (json.RawMessage, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", types.ErrProviderNotAvailable)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toChatMessages(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: schema.Schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, &types.ProviderError{Provider: "openai", Op: "extract", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &types.ProviderError{Provider: "openai", Op: "extract", Err: fmt.Errorf("empty response")}
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", types.ErrRefusal, msg.Refusal)
	}

	return json.RawMessage(msg.Content), nil
}

// WebSearch answers a query through a search-enabled completion model.
func (c *Client) WebSearch(ctx context.Context, query string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("%w: OPENAI_API_KEY not set", types.ErrProviderNotAvailable)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.SearchModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return "", &types.ProviderError{Provider: "openai", Op: "web_search", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &types.ProviderError{Provider: "openai", Op: "web_search", Err: fmt.Errorf("empty response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// toChatMessages converts neutral messages to the OpenAI wire format.
func toChatMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// Interface assertions
var (
	_ provider.Completer           = (*Client)(nil)
	_ provider.StructuredExtractor = (*Client)(nil)
	_ provider.WebSearcher         = (*Client)(nil)
)
