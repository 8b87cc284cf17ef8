package kb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// assistantSystemPrompt is the system message used when answering from
// the local knowledge base.
const assistantSystemPrompt = "You are a helpful assistant."

// LocalSource answers a query from locally indexed knowledge. ok is
// false when the source holds nothing relevant, in which case the
// agent falls back to web search.
type LocalSource interface {
	Answer(ctx context.Context, query string) (answer string, ok bool, err error)
}

// KBSource answers from the in-memory knowledge base by injecting
// retrieved chunks into a chat completion.
type KBSource struct {
	kb  *KnowledgeBase
	llm provider.Completer
}

// NewKBSource creates a knowledge-base-backed local source.
func NewKBSource(kb *KnowledgeBase, llm provider.Completer) *KBSource {
	return &KBSource{kb: kb, llm: llm}
}

// Answer retrieves context for the query and completes with it. ok is
// false when retrieval returns no chunks.
func (s *KBSource) Answer(ctx context.Context, query string) (string, bool, error) {
	results, err := s.kb.Search(ctx, query, 0)
	if err != nil {
		return "", false, err
	}
	if len(results) == 0 {
		return "", false, nil
	}

	messages := []types.Message{
		{Role: types.RoleSystem, Content: assistantSystemPrompt},
		{Role: types.RoleUser, Content: query},
	}
	reply, err := s.kb.CompleteWithKnowledge(ctx, s.llm, messages, query, 0)
	if err != nil {
		return "", false, err
	}
	return reply, true, nil
}

// FileSource answers from documents uploaded to a provider-side file
// store. An answer counts only when it is grounded in file citations.
type FileSource struct {
	fs provider.FileSearcher
}

// NewFileSource creates a file-store-backed local source.
func NewFileSource(fs provider.FileSearcher) *FileSource {
	return &FileSource{fs: fs}
}

// Answer queries the provider-side store.
func (s *FileSource) Answer(ctx context.Context, query string) (string, bool, error) {
	answer, grounded, err := s.fs.FileSearch(ctx, query)
	if err != nil {
		return "", false, err
	}
	if !grounded || answer == "" {
		return "", false, nil
	}
	return answer, true, nil
}

// Agent answers questions local-first: it consults the local source
// and falls back to web search at most once when the local source has
// nothing.
type Agent struct {
	local           LocalSource
	web             provider.WebSearcher
	fallbackOnError bool
}

// AgentConfig contains agent configuration.
type AgentConfig struct {
	Local LocalSource
	Web   provider.WebSearcher

	// FallbackOnError makes a local source failure fall through to web
	// search instead of returning the error.
	FallbackOnError bool
}

// NewAgent creates a knowledge agent.
func NewAgent(cfg AgentConfig) *Agent {
	return &Agent{
		local:           cfg.Local,
		web:             cfg.Web,
		fallbackOnError: cfg.FallbackOnError,
	}
}

// Ask answers the query, recording which source produced the answer.
func (a *Agent) Ask(ctx context.Context, query string) (*types.Answer, error) {
	if a.local != nil {
		answer, ok, err := a.local.Answer(ctx, query)
		if err != nil {
			if !a.fallbackOnError {
				return nil, err
			}
			slog.Warn("local source failed, falling back to web search", "error", err)
		} else if ok {
			return &types.Answer{Text: answer, Source: types.AnswerSourceLocal}, nil
		}
	}

	if a.web == nil {
		return nil, fmt.Errorf("no web search provider configured: %w", types.ErrProviderNotAvailable)
	}

	answer, err := a.web.WebSearch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	return &types.Answer{Text: answer, Source: types.AnswerSourceWeb}, nil
}
