// matwizard is a materials informatics toolkit: a RAG knowledge base
// over processing documents, an extraction pipeline, and an LLM-guided
// heat treatment optimizer, exposed as a CLI and an MCP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/spetr/matwizard/builtin"
	openaiLLM "github.com/spetr/matwizard/builtin/llm/openai"
	"github.com/spetr/matwizard/internal/config"
	"github.com/spetr/matwizard/internal/index"
	"github.com/spetr/matwizard/internal/kb"
	"github.com/spetr/matwizard/internal/mcp"
	"github.com/spetr/matwizard/internal/pipeline"
	"github.com/spetr/matwizard/internal/sim"
	"github.com/spetr/matwizard/internal/wizard"
	"github.com/spetr/matwizard/pkg/plugin/host"
	"github.com/spetr/matwizard/pkg/plugin/shared"
	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

var (
	version   = "0.1.0"
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "matwizard",
	Short: "Materials informatics toolkit with a RAG knowledge base",
	Long: `matwizard indexes materials processing documents into a searchable
knowledge base and drives LLM-backed workflows on top of it:

- Semantic search and question answering with web fallback
- Structured extraction and multi-stage processing of task descriptions
- LLM-guided heat treatment optimization for a superalloy simulation

It supports OpenAI and Anthropic chat providers, OpenAI and Ollama
embeddings, and external embedding plugins.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("matwizard %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a project with detected settings",
	Long: `Detect the environment (API keys, Ollama, document corpus) and
write a configuration file with recommended settings.

Examples:
  matwizard init                        # Initialize current directory
  matwizard init ./myproject            # Initialize specific directory
  matwizard init --preset persistent    # Persist the index to disk
  matwizard init --preset local         # Use local Ollama embeddings`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		preset, _ := cmd.Flags().GetString("preset")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		runInit(path, preset, jsonOutput)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect environment and show recommendations",
	Run: func(cmd *cobra.Command, args []string) {
		runDetect()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigInit()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and test providers",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigValidate()
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index the documents directory",
	Long:  `Index the documents directory into the knowledge base. If no path is provided, uses the current directory as project root.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		runIndex(path)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch documents and re-index changes automatically",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		debounce, _ := cmd.Flags().GetInt("debounce")
		runWatch(path, debounce)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		topK, _ := cmd.Flags().GetInt("top-k")
		runSearch(args[0], topK)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question from the knowledge base",
	Long:  `Answer a question using indexed documents as context. Falls back to provider web search when nothing relevant is indexed.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAsk(args[0])
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload documents to the provider-side file store",
	Long:  `Upload the documents directory into the OpenAI file-search store. Used with agent.local_source: filestore.`,
	Run: func(cmd *cobra.Command, args []string) {
		runUpload()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the knowledge base",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		runClear(force)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base status",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <text>",
	Short: "Extract a structured record from a task description",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runExtract(args[0])
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <text>",
	Short: "Run the extraction pipeline on a task description",
	Long: `Run the full pipeline on a task description: structured extraction,
the configured processing tasks, and a final summary.

Available tasks: ` + strings.Join(pipeline.Tasks(), ", "),
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tasks, _ := cmd.Flags().GetStringSlice("tasks")
		runPipeline(args[0], tasks)
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run the heat treatment optimization loop",
	Long:  `Run the LLM-guided optimization loop for the superalloy heat treatment simulation. The model proposes cooling rates based on prior results.`,
	Run: func(cmd *cobra.Command, args []string) {
		iterations, _ := cmd.Flags().GetInt("iterations")
		initialRate, _ := cmd.Flags().GetFloat64("initial-rate")
		duration, _ := cmd.Flags().GetFloat64("duration")
		runOptimize(iterations, initialRate, duration)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Plugin management",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available embedding plugins",
	Run: func(cmd *cobra.Command, args []string) {
		runPluginList()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: .matwizard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	initCmd.Flags().String("preset", "recommended", "preset (recommended, persistent, local)")
	initCmd.Flags().Bool("json", false, "output detection result as JSON")

	watchCmd.Flags().Int("debounce", 500, "debounce time in milliseconds")

	searchCmd.Flags().IntP("top-k", "k", 0, "maximum results (0 = config default)")

	clearCmd.Flags().BoolP("force", "f", false, "clear without confirmation")

	pipelineCmd.Flags().StringSliceP("tasks", "t", nil, "processing tasks to run (default: all)")

	optimizeCmd.Flags().IntP("iterations", "n", 0, "loop iterations (0 = config default)")
	optimizeCmd.Flags().Float64("initial-rate", 0, "starting cooling rate in K/min (0 = config default)")
	optimizeCmd.Flags().Float64("duration", 0, "treatment duration in hours (0 = default)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	pluginCmd.AddCommand(pluginListCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pluginCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// loadConfig loads the project config, honoring --config, logging
// warnings.
func loadConfig(root string) *config.Config {
	var (
		cfg      *config.Config
		warnings []string
		err      error
	)
	if cfgFile != "" {
		cfg, warnings, err = config.LoadFile(cfgFile)
	} else {
		cfg, warnings, err = config.Load(root)
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Warn(w)
	}
	return cfg
}

// docsDir resolves the documents directory relative to the project root.
func docsDir(root string, cfg *config.Config) string {
	if filepath.IsAbs(cfg.Docs.Dir) {
		return cfg.Docs.Dir
	}
	return filepath.Join(root, cfg.Docs.Dir)
}

// createEmbedding creates the embedding provider, loading an external
// plugin when the provider name carries the "plugin:" prefix.
func createEmbedding(root string, cfg *config.Config) (provider.EmbeddingProvider, func(), error) {
	name := cfg.Embedding.Provider

	if strings.HasPrefix(name, "plugin:") {
		mgr := host.NewManager(filepath.Join(config.ConfigDir(root), "plugins"))
		loaded, err := mgr.LoadPlugin(strings.TrimPrefix(name, "plugin:"), shared.PluginTypeEmbedding)
		if err != nil {
			return nil, nil, err
		}
		return host.NewEmbeddingAdapter(loaded.Embedding), mgr.UnloadAll, nil
	}

	embedding, err := provider.DefaultRegistry.CreateEmbedding(name, provider.EmbeddingConfig{
		Provider:  name,
		Model:     cfg.Embedding.Model,
		Endpoint:  cfg.Embedding.Endpoint,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return embedding, func() { embedding.Close() }, nil
}

// createKB builds the knowledge base from config. The returned cleanup
// closes the store and embedding provider.
func createKB(ctx context.Context, root string, cfg *config.Config) (*kb.KnowledgeBase, func(), error) {
	store, err := provider.DefaultRegistry.CreateVectorStore(cfg.VectorStore.Provider)
	if err != nil {
		return nil, nil, err
	}

	storePath := cfg.VectorStore.Path
	if cfg.VectorStore.Provider == "sqlitevec" && storePath == "" {
		storePath = config.IndexDBPath(root)
	}
	if err := store.Init(ctx, provider.VectorStoreConfig{
		Provider: cfg.VectorStore.Provider,
		Path:     storePath,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to init vector store: %w", err)
	}

	embedding, closeEmbedding, err := createEmbedding(root, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	chunker, err := provider.DefaultRegistry.CreateChunking(cfg.Chunking.Strategy, provider.ChunkingConfig{
		Strategy:  cfg.Chunking.Strategy,
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.Overlap,
	})
	if err != nil {
		closeEmbedding()
		store.Close()
		return nil, nil, err
	}

	knowledge := kb.New(kb.Config{
		Store:     store,
		Embedding: embedding,
		Chunker:   chunker,
		TopK:      cfg.Search.TopK,
	})

	cleanup := func() {
		chunker.Close()
		closeEmbedding()
		store.Close()
	}
	return knowledge, cleanup, nil
}

// createLLM builds the chat provider from config.
func createLLM(cfg *config.Config) provider.Completer {
	llm, err := provider.DefaultRegistry.CreateLLM(cfg.LLM.Provider, provider.LLMConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		SearchModel: cfg.LLM.SearchModel,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		slog.Error("failed to create LLM provider", "error", err)
		os.Exit(1)
	}
	return llm
}

// createAgent wires the knowledge agent: local retrieval per config,
// web fallback when the chat provider supports it.
func createAgent(cfg *config.Config, knowledge *kb.KnowledgeBase, llm provider.Completer) *kb.Agent {
	var local kb.LocalSource
	switch cfg.Agent.LocalSource {
	case "filestore":
		local = kb.NewFileSource(openaiLLM.NewFileStore(openaiLLM.Config{
			Model:     cfg.LLM.Model,
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			MaxTokens: cfg.LLM.MaxTokens,
		}))
	default:
		local = kb.NewKBSource(knowledge, llm)
	}

	web, _ := llm.(provider.WebSearcher)

	return kb.NewAgent(kb.AgentConfig{
		Local:           local,
		Web:             web,
		FallbackOnError: cfg.Agent.FallbackOnError,
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func runInit(path, preset string, jsonOutput bool) {
	absPath, _ := filepath.Abs(path)

	wiz := wizard.New(absPath)
	env, err := wiz.DetectEnvironment(context.Background())
	if err != nil {
		slog.Error("detection failed", "error", err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(env, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println(wizard.FormatEnvironmentSummary(env))

	cfg := wiz.ApplyPreset(env, preset)
	if err := config.Save(absPath, cfg); err != nil {
		slog.Error("failed to save config", "error", err)
		os.Exit(1)
	}

	fmt.Println(wizard.FormatConfigSummary(cfg))
	fmt.Printf("Configuration written to %s\n", config.ConfigPath(absPath))
}

func runDetect() {
	cwd, _ := os.Getwd()

	wiz := wizard.New(cwd)
	env, err := wiz.DetectEnvironment(context.Background())
	if err != nil {
		slog.Error("detection failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(wizard.FormatEnvironmentSummary(env))
}

func runConfigInit() {
	cwd, _ := os.Getwd()

	configPath := config.ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return
	}

	if err := config.Save(cwd, config.DefaultConfig()); err != nil {
		slog.Error("failed to save config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
}

func runConfigValidate() {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	wiz := wizard.New(cwd)
	result, err := wiz.ValidateConfig(context.Background(), cfg)
	if err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}

	for _, e := range result.Errors {
		fmt.Printf("error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for name, test := range result.Tests {
		fmt.Printf("%s: %s (%s)\n", name, test.Status, test.Message)
	}

	if !result.Valid {
		os.Exit(1)
	}
	fmt.Println("Configuration valid")
}

func runIndex(path string) {
	absPath, _ := filepath.Abs(path)
	cfg := loadConfig(absPath)

	ctx, cancel := signalContext()
	defer cancel()

	knowledge, cleanup, err := createKB(ctx, absPath, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	indexer := index.New(index.Config{
		DocsDir: docsDir(absPath, cfg),
		Config:  cfg,
		KB:      knowledge,
		OnProgress: func(p types.IndexProgress) {
			if p.Phase != "" {
				fmt.Printf("\r[%s] Files: %d/%d, Chunks: %d",
					p.Phase, p.ProcessedFiles, p.TotalFiles, p.TotalChunks)
			}
		},
	})

	stats, err := indexer.Index(ctx)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("indexing stopped by user")
			return
		}
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nIndexed %d files (%d chunks)\n", stats.Files, stats.Chunks)
}

func runWatch(path string, debounceMs int) {
	absPath, _ := filepath.Abs(path)
	cfg := loadConfig(absPath)

	ctx, cancel := signalContext()
	defer cancel()

	knowledge, cleanup, err := createKB(ctx, absPath, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Full index first so the watcher starts from a complete state.
	indexer := index.New(index.Config{
		DocsDir: docsDir(absPath, cfg),
		Config:  cfg,
		KB:      knowledge,
	})
	if _, err := indexer.Index(ctx); err != nil && ctx.Err() == nil {
		slog.Error("initial indexing failed", "error", err)
		os.Exit(1)
	}

	watcher, err := index.NewWatcher(index.WatcherConfig{
		DocsDir:      docsDir(absPath, cfg),
		Config:       cfg,
		KB:           knowledge,
		DebounceTime: time.Duration(debounceMs) * time.Millisecond,
	})
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	if err := watcher.Watch(ctx); err != nil {
		slog.Error("watcher failed", "error", err)
		os.Exit(1)
	}
}

func runSearch(query string, topK int) {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	ctx := context.Background()
	knowledge, cleanup, err := createKB(ctx, cwd, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	results, err := knowledge.Search(ctx, query, topK)
	if err != nil {
		slog.Error("search failed", "error", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	for i, r := range results {
		fmt.Printf("\n=== Result %d (score: %.3f) ===\n", i+1, r.Score)
		fmt.Printf("Source: %s (chunk %d)\n", r.Chunk.Source, r.Chunk.Index)
		fmt.Printf("\n%s\n", r.Chunk.Content)
	}
}

func runAsk(query string) {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	ctx := context.Background()
	knowledge, cleanup, err := createKB(ctx, cwd, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	llm := createLLM(cfg)
	defer llm.Close()

	agent := createAgent(cfg, knowledge, llm)

	answer, err := agent.Ask(ctx, query)
	if err != nil {
		slog.Error("ask failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("[%s]\n%s\n", answer.Source, answer.Text)
}

func runUpload() {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	if cfg.LLM.Provider != "openai" {
		slog.Error("file store upload requires the openai provider")
		os.Exit(1)
	}

	dir := docsDir(cwd, cfg)
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		slog.Error("failed to scan documents", "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Println("No documents to upload")
		return
	}

	store := openaiLLM.NewFileStore(openaiLLM.Config{
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	})

	if err := store.UploadFiles(context.Background(), paths); err != nil {
		slog.Error("upload failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Uploaded %d documents\n", len(paths))
}

func runClear(force bool) {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	if !force {
		fmt.Print("Clear the knowledge base? [y/N]: ")
		var reply string
		fmt.Scanln(&reply)
		if reply != "y" && reply != "Y" {
			fmt.Println("Aborted")
			return
		}
	}

	ctx := context.Background()
	knowledge, cleanup, err := createKB(ctx, cwd, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := knowledge.Clear(ctx); err != nil {
		slog.Error("clear failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("Knowledge base cleared")
}

func runStatus() {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	ctx := context.Background()
	knowledge, cleanup, err := createKB(ctx, cwd, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	stats, err := knowledge.Stats()
	if err != nil {
		slog.Error("failed to get stats", "error", err)
		os.Exit(1)
	}

	fmt.Println("=== Knowledge Base ===")
	fmt.Printf("Store:         %s\n", cfg.VectorStore.Provider)
	fmt.Printf("Total chunks:  %d\n", stats.TotalChunks)
	fmt.Printf("Total sources: %d\n", stats.TotalSources)
	fmt.Printf("Dimensions:    %d\n", stats.Dimensions)
	if !stats.LastIndexed.IsZero() {
		fmt.Printf("Last indexed:  %s\n", stats.LastIndexed.Format("2006-01-02 15:04:05"))
	}
}

func runExtract(text string) {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	llm := createLLM(cfg)
	defer llm.Close()

	extractor, ok := llm.(provider.StructuredExtractor)
	if !ok {
		slog.Error("provider does not support structured extraction", "provider", cfg.LLM.Provider)
		os.Exit(1)
	}

	extraction, err := pipeline.NewExtractor(extractor).Extract(context.Background(), text)
	if err != nil {
		slog.Error("extraction failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(extraction, "", "  ")
	fmt.Println(string(out))
}

func runPipeline(text string, tasks []string) {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	llm := createLLM(cfg)
	defer llm.Close()

	extractor, ok := llm.(provider.StructuredExtractor)
	if !ok {
		slog.Error("provider does not support structured extraction", "provider", cfg.LLM.Provider)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p := pipeline.New(pipeline.Config{
		Extractor: extractor,
		Completer: llm,
	})

	result, err := p.Run(ctx, text, tasks)
	if err != nil {
		slog.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func runOptimize(iterations int, initialRate, duration float64) {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	llm := createLLM(cfg)
	defer llm.Close()

	if iterations <= 0 {
		iterations = cfg.Simulation.Iterations
	}
	if initialRate <= 0 {
		initialRate = cfg.Simulation.InitialCoolingRate
	}

	ctx, cancel := signalContext()
	defer cancel()

	optimizer := sim.NewOptimizer(sim.OptimizerConfig{
		Completer:     llm,
		Iterations:    iterations,
		DurationHours: duration,
	})

	history, err := optimizer.Optimize(ctx, initialRate)
	if err != nil {
		slog.Error("optimization failed", "error", err, "completed", len(history))
		if len(history) == 0 {
			os.Exit(1)
		}
	}

	for i, r := range history {
		status := "ok"
		if !r.Success {
			status = "FAILED"
		}
		fmt.Printf("Run %d: cooling_rate=%.1f K/min, yield=%.1f MPa, grain=%.0f nm, porosity=%.2f%% [%s]\n",
			i+1, r.CoolingRate, r.YieldStrengthMPa, r.GrainSizeNm, r.PorosityPct, status)
	}
}

func runServe() {
	cwd, _ := os.Getwd()
	cfg := loadConfig(cwd)

	slog.Info("starting MCP server")

	ctx, cancel := signalContext()
	defer cancel()

	knowledge, cleanup, err := createKB(ctx, cwd, cfg)
	if err != nil {
		slog.Error("failed to create knowledge base", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	llm := createLLM(cfg)
	defer llm.Close()

	agent := createAgent(cfg, knowledge, llm)

	var p *pipeline.Pipeline
	if extractor, ok := llm.(provider.StructuredExtractor); ok {
		p = pipeline.New(pipeline.Config{
			Extractor: extractor,
			Completer: llm,
		})
	}

	server, err := mcp.New(mcp.Config{
		DocsDir:   docsDir(cwd, cfg),
		Config:    cfg,
		KB:        knowledge,
		Agent:     agent,
		Pipeline:  p,
		Completer: llm,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := server.ServeStdio(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func runPluginList() {
	cwd, _ := os.Getwd()

	mgr := host.NewManager(filepath.Join(config.ConfigDir(cwd), "plugins"))
	plugins, err := mgr.DiscoverPlugins()
	if err != nil {
		slog.Error("failed to discover plugins", "error", err)
		os.Exit(1)
	}

	if len(plugins) == 0 {
		fmt.Println("No plugins found")
		return
	}

	fmt.Println("Available plugins:")
	for _, name := range plugins {
		fmt.Printf("  %s (use embedding provider \"plugin:%s\")\n", name, name)
	}
}
