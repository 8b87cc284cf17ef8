// Package types contains shared data types used across the matwizard project.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message exchanged with an LLM provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Document represents a text document to be indexed into the knowledge base.
type Document struct {
	Source  string // Path or logical identifier
	Title   string // Human-readable title (defaults to Source)
	Content []byte // Raw text content
	Hash    string // SHA256 hash for incremental indexing
}

// ComputeHash calculates SHA256 hash of the document content.
func (d *Document) ComputeHash() string {
	h := sha256.Sum256(d.Content)
	return hex.EncodeToString(h[:])
}

// Chunk represents a piece of a document that will be embedded.
type Chunk struct {
	ID      string // Unique ID: {source}:{index}:{hash[:8]}
	Source  string // Originating document source
	Title   string // Originating document title
	Index   int    // Position of the chunk within the document (0-based)
	Content string // Chunk text
}

// GenerateID creates a unique ID for the chunk.
func (c *Chunk) GenerateID() string {
	h := sha256.Sum256([]byte(c.Content))
	hashPrefix := hex.EncodeToString(h[:4])
	return c.Source + ":" + strconv.Itoa(c.Index) + ":" + hashPrefix
}

// ChunkWithEmbedding is a Chunk with its vector embedding.
type ChunkWithEmbedding struct {
	Chunk     *Chunk
	Embedding []float32
}

// SearchResult represents a single retrieval result.
type SearchResult struct {
	Chunk *Chunk
	Score float64 // Cosine similarity in [-1, 1]; 0 for zero-norm vectors
}

// AnswerSource records which path produced a knowledge agent answer.
type AnswerSource string

const (
	// AnswerSourceLocal means the answer was grounded in local retrieval.
	AnswerSourceLocal AnswerSource = "local"

	// AnswerSourceWeb means the agent fell back to provider web search.
	AnswerSourceWeb AnswerSource = "web"
)

// Answer is a knowledge agent response with its provenance.
type Answer struct {
	Text   string       `json:"text"`
	Source AnswerSource `json:"source"`
}

// StoreStats contains statistics about the knowledge base.
type StoreStats struct {
	TotalChunks  int
	TotalSources int
	Dimensions   int
	LastIndexed  time.Time
}

// IndexProgress represents the current state of document indexing.
type IndexProgress struct {
	Phase          string // "scanning", "indexing"
	TotalFiles     int
	ProcessedFiles int
	TotalChunks    int
	CurrentFile    string
	Error          error // Non-fatal error (e.g., unreadable file)
}

// PipelineResult is the output of a full linear pipeline run.
type PipelineResult struct {
	Summary    string                `json:"summary"`
	Extraction *Extraction           `json:"extraction"`
	Processing map[string]TaskResult `json:"processing"`
}

// TaskResult is the parsed reply of a single processing task.
type TaskResult struct {
	Task   string         `json:"task"`
	Output map[string]any `json:"output"`
	Raw    string         `json:"-"` // Unparsed model reply, for diagnostics
}

// SimulationResult is one evaluation of the solidification model.
type SimulationResult struct {
	CoolingRate      float64 `json:"cooling_rate_K_per_min"`
	GrainSizeNm      float64 `json:"grain_size_nm"`
	PorosityPct      float64 `json:"porosity_pct"`
	YieldStrengthMPa float64 `json:"yield_strength_MPa"`
	Success          bool    `json:"success"`
}
