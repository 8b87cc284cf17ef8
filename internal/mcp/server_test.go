package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spetr/matwizard/builtin/chunking/window"
	"github.com/spetr/matwizard/builtin/vectorstore/memory"
	"github.com/spetr/matwizard/internal/config"
	"github.com/spetr/matwizard/internal/kb"
	"github.com/spetr/matwizard/pkg/types"
)

type wordEmbedder struct{}

func (wordEmbedder) Name() string      { return "word" }
func (wordEmbedder) Dimensions() int   { return 32 }
func (wordEmbedder) MaxBatchSize() int { return 16 }

func (wordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 32)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			var sum int
			for _, r := range word {
				sum += int(r)
			}
			vec[sum%32]++
		}
		out[i] = vec
	}
	return out, nil
}

func (wordEmbedder) Warmup(ctx context.Context) error { return nil }
func (wordEmbedder) Close() error                     { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	knowledge := kb.New(kb.Config{
		Store:     memory.New(),
		Embedding: wordEmbedder{},
		Chunker:   window.New(window.Config{ChunkSize: 120, Overlap: 20}),
	})

	s, err := New(Config{
		DocsDir: t.TempDir(),
		Config:  config.DefaultConfig(),
		KB:      knowledge,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestHandleSearchKnowledgeRequiresQuery(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleSearchKnowledge(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for missing query")
	}
}

func TestHandleSearchKnowledgeReturnsChunks(t *testing.T) {
	s := newTestServer(t)

	_, err := s.kb.IndexDocument(context.Background(), &types.Document{
		Source:  "alloys.md",
		Content: []byte("Solutionizing at 1350C dissolves the gamma prime phase."),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.handleSearchKnowledge(context.Background(), callRequest(map[string]any{
		"query": "solutionizing gamma prime",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &entries); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected search results")
	}
	if entries[0]["source"] != "alloys.md" {
		t.Errorf("unexpected source: %v", entries[0]["source"])
	}
}

func TestHandleClearAndStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if _, err := s.kb.IndexDocument(ctx, &types.Document{
		Source:  "a.md",
		Content: []byte("porosity and grain refinement notes"),
	}); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleClearKnowledge(ctx, callRequest(nil))
	if err != nil || result.IsError {
		t.Fatalf("clear failed: %v %v", err, result)
	}

	status, err := s.handleGetStatus(ctx, callRequest(nil))
	if err != nil || status.IsError {
		t.Fatalf("status failed: %v %v", err, status)
	}

	var stats map[string]any
	if err := json.Unmarshal([]byte(resultText(t, status)), &stats); err != nil {
		t.Fatalf("status is not JSON: %v", err)
	}
	if stats["total_chunks"].(float64) != 0 {
		t.Errorf("expected empty store after clear: %v", stats)
	}
}

func TestBestRun(t *testing.T) {
	history := []types.SimulationResult{
		{CoolingRate: 15, YieldStrengthMPa: 400, Success: true},
		{CoolingRate: 90, YieldStrengthMPa: 500, Success: false},
		{CoolingRate: 25, YieldStrengthMPa: 420, Success: true},
	}

	best := bestRun(history)
	if best == nil {
		t.Fatal("expected a best run")
	}
	if best.CoolingRate != 25 {
		t.Errorf("best run = %+v, want the 25 K/min attempt", best)
	}

	if bestRun(nil) != nil {
		t.Error("empty history should have no best run")
	}
	if bestRun([]types.SimulationResult{{Success: false}}) != nil {
		t.Error("all-failed history should have no best run")
	}
}
