// Package mcp implements the MCP server exposing the knowledge base,
// the extraction pipeline, and the simulation optimizer as tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spetr/matwizard/internal/config"
	"github.com/spetr/matwizard/internal/index"
	"github.com/spetr/matwizard/internal/kb"
	"github.com/spetr/matwizard/internal/pipeline"
	"github.com/spetr/matwizard/internal/sim"
	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

// Server implements the MCP server.
type Server struct {
	mcpServer *server.MCPServer
	config    *config.Config
	docsDir   string
	kb        *kb.KnowledgeBase
	agent     *kb.Agent
	pipeline  *pipeline.Pipeline
	completer provider.Completer
}

// Config contains server configuration.
type Config struct {
	DocsDir   string
	Config    *config.Config
	KB        *kb.KnowledgeBase
	Agent     *kb.Agent
	Pipeline  *pipeline.Pipeline
	Completer provider.Completer
}

// New creates a new MCP server.
func New(cfg Config) (*Server, error) {
	s := &Server{
		config:    cfg.Config,
		docsDir:   cfg.DocsDir,
		kb:        cfg.KB,
		agent:     cfg.Agent,
		pipeline:  cfg.Pipeline,
		completer: cfg.Completer,
	}

	mcpServer := server.NewMCPServer(
		"matwizard",
		"0.1.0",
		server.WithLogging(),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s, nil
}

// registerTools registers all MCP tools.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	// index_documents - Index the documents directory
	mcpServer.AddTool(mcp.NewTool("index_documents",
		mcp.WithDescription("Index the documents directory into the knowledge base"),
	), s.handleIndexDocuments)

	// search_knowledge - Retrieve chunks by similarity
	mcpServer.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search the knowledge base by semantic similarity"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("top_k", mcp.Description("Maximum results (default 5)")),
	), s.handleSearchKnowledge)

	// ask_knowledge - Answer with local retrieval and web fallback
	mcpServer.AddTool(mcp.NewTool("ask_knowledge",
		mcp.WithDescription("Answer a question from the knowledge base, falling back to web search when nothing is indexed"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to answer")),
	), s.handleAskKnowledge)

	// clear_knowledge - Drop all indexed chunks
	mcpServer.AddTool(mcp.NewTool("clear_knowledge",
		mcp.WithDescription("Remove all indexed chunks from the knowledge base"),
	), s.handleClearKnowledge)

	// get_status - Knowledge base statistics
	mcpServer.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Get knowledge base status and statistics"),
	), s.handleGetStatus)

	// extract_record - Structured extraction only
	mcpServer.AddTool(mcp.NewTool("extract_record",
		mcp.WithDescription("Extract a structured material/simulation record from a task description"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Task description")),
	), s.handleExtractRecord)

	// run_pipeline - Full extract/process/summarize run
	mcpServer.AddTool(mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run the full pipeline: extraction, processing tasks, and summary"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Task description")),
		mcp.WithArray("tasks", mcp.Description("Processing tasks to run (default: all): schema_validation, constraint_verification, feature_extraction, normalization, risk_ranking")),
	), s.handleRunPipeline)

	// run_optimization - LLM-guided cooling rate search
	mcpServer.AddTool(mcp.NewTool("run_optimization",
		mcp.WithDescription("Run the heat treatment optimization loop for the superalloy simulation"),
		mcp.WithNumber("iterations", mcp.Description("Loop iterations (default from config)")),
		mcp.WithNumber("initial_cooling_rate", mcp.Description("Starting cooling rate in K/min (default 15)")),
	), s.handleRunOptimization)
}

// Tool handlers

func (s *Server) handleIndexDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slog.Info("starting indexing", "dir", s.docsDir)

	indexer := index.New(index.Config{
		DocsDir: s.docsDir,
		Config:  s.config,
		KB:      s.kb,
		OnProgress: func(p types.IndexProgress) {
			slog.Debug("progress", "phase", p.Phase, "files", p.ProcessedFiles, "chunks", p.TotalChunks)
		},
	})

	stats, err := indexer.Index(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	result := map[string]any{
		"success": true,
		"files":   stats.Files,
		"chunks":  stats.Chunks,
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleSearchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	topK := req.GetInt("top_k", 0)

	results, err := s.kb.Search(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	formatted := make([]map[string]any, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, map[string]any{
			"id":      r.Chunk.ID,
			"source":  r.Chunk.Source,
			"title":   r.Chunk.Title,
			"index":   r.Chunk.Index,
			"score":   r.Score,
			"content": r.Chunk.Content,
		})
	}

	jsonResult, _ := json.MarshalIndent(formatted, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleAskKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if s.agent == nil {
		return mcp.NewToolResultError("no knowledge agent configured"), nil
	}

	answer, err := s.agent.Ask(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	result := map[string]any{
		"answer": answer.Text,
		"source": answer.Source,
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleClearKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.kb.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	return mcp.NewToolResultText(`{"success": true, "message": "Knowledge base cleared"}`), nil
}

func (s *Server) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.kb.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	result := map[string]any{
		"total_chunks":  stats.TotalChunks,
		"total_sources": stats.TotalSources,
		"dimensions":    stats.Dimensions,
	}
	if !stats.LastIndexed.IsZero() {
		result["last_indexed"] = stats.LastIndexed.Format("2006-01-02 15:04:05")
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleExtractRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	extractor, ok := s.completer.(provider.StructuredExtractor)
	if !ok {
		return mcp.NewToolResultError("configured provider does not support structured extraction"), nil
	}

	extraction, err := pipeline.NewExtractor(extractor).Extract(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
	}

	jsonResult, _ := json.MarshalIndent(extraction, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleRunPipeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	tasks := req.GetStringSlice("tasks", nil)

	if s.pipeline == nil {
		return mcp.NewToolResultError("no pipeline configured"), nil
	}

	result, err := s.pipeline.Run(ctx, text, tasks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline failed: %v", err)), nil
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

func (s *Server) handleRunOptimization(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	iterations := req.GetInt("iterations", s.config.Simulation.Iterations)
	initialRate := req.GetFloat("initial_cooling_rate", s.config.Simulation.InitialCoolingRate)

	optimizer := sim.NewOptimizer(sim.OptimizerConfig{
		Completer:  s.completer,
		Iterations: iterations,
	})

	history, err := optimizer.Optimize(ctx, initialRate)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("optimization failed: %v", err)), nil
	}

	best := bestRun(history)
	result := map[string]any{
		"iterations": len(history),
		"history":    history,
	}
	if best != nil {
		result["best"] = best
	}

	jsonResult, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonResult)), nil
}

// bestRun returns the successful run with the highest yield strength.
func bestRun(history []types.SimulationResult) *types.SimulationResult {
	var best *types.SimulationResult
	for i := range history {
		r := &history[i]
		if !r.Success {
			continue
		}
		if best == nil || r.YieldStrengthMPa > best.YieldStrengthMPa {
			best = r
		}
	}
	return best
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
