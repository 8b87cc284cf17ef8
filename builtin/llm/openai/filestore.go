package openai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

const (
	vectorStoreName = "kb"
	pollInterval    = 500 * time.Millisecond
)

// FileStore implements FileSearcher using OpenAI assistants with the
// file_search tool. Documents are uploaded into a provider-side vector
// store; answers count as grounded only when they carry file citations.
type FileStore struct {
	config Config
	client *openai.Client

	mu            sync.Mutex
	vectorStoreID string
	assistantID   string
}

// NewFileStore creates a file-search store sharing the client configuration.
func NewFileStore(cfg Config) *FileStore {
	c := New(cfg)
	return &FileStore{
		config: c.config,
		client: c.client,
	}
}

// UploadFiles uploads documents into the provider-side vector store and
// creates or updates the file-search assistant.
func (fs *FileStore) UploadFiles(ctx context.Context, paths []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.vectorStoreID == "" {
		vs, err := fs.client.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: vectorStoreName})
		if err != nil {
			return &types.ProviderError{Provider: "openai", Op: "create_vector_store", Err: err}
		}
		fs.vectorStoreID = vs.ID
	}

	fileIDs := make([]string, 0, len(paths))
	for _, path := range paths {
		f, err := fs.client.CreateFile(ctx, openai.FileRequest{
			FileName: path,
			FilePath: path,
			Purpose:  "assistants",
		})
		if err != nil {
			return &types.ProviderError{Provider: "openai", Op: "upload_file", Err: err}
		}
		fileIDs = append(fileIDs, f.ID)
	}

	batch, err := fs.client.CreateVectorStoreFileBatch(ctx, fs.vectorStoreID, openai.VectorStoreFileBatchRequest{
		FileIDs: fileIDs,
	})
	if err != nil {
		return &types.ProviderError{Provider: "openai", Op: "file_batch", Err: err}
	}

	// Poll until the batch finishes indexing.
	for batch.Status == "in_progress" || batch.Status == "queued" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
		batch, err = fs.client.RetrieveVectorStoreFileBatch(ctx, fs.vectorStoreID, batch.ID)
		if err != nil {
			return &types.ProviderError{Provider: "openai", Op: "file_batch", Err: err}
		}
	}
	if batch.Status != "completed" {
		return &types.ProviderError{
			Provider: "openai",
			Op:       "file_batch",
			Err:      fmt.Errorf("batch finished with status %s", batch.Status),
		}
	}

	toolResources := &openai.AssistantToolResource{
		FileSearch: &openai.AssistantToolFileSearch{
			VectorStoreIDs: []string{fs.vectorStoreID},
		},
	}

	if fs.assistantID == "" {
		assistant, err := fs.client.CreateAssistant(ctx, openai.AssistantRequest{
			Model:         fs.config.Model,
			Tools:         []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
			ToolResources: toolResources,
		})
		if err != nil {
			return &types.ProviderError{Provider: "openai", Op: "create_assistant", Err: err}
		}
		fs.assistantID = assistant.ID
		return nil
	}

	_, err = fs.client.ModifyAssistant(ctx, fs.assistantID, openai.AssistantRequest{
		Model:         fs.config.Model,
		ToolResources: toolResources,
	})
	if err != nil {
		return &types.ProviderError{Provider: "openai", Op: "update_assistant", Err: err}
	}
	return nil
}

// FileSearch queries the uploaded documents through the assistant.
// grounded is true only when the reply carries file_citation annotations;
// an ungrounded reply returns an empty answer.
func (fs *FileStore) FileSearch(ctx context.Context, query string) (string, bool, error) {
	fs.mu.Lock()
	assistantID := fs.assistantID
	fs.mu.Unlock()

	if assistantID == "" {
		return "", false, nil
	}

	thread, err := fs.client.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{
			{Role: openai.ThreadMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return "", false, &types.ProviderError{Provider: "openai", Op: "file_search", Err: err}
	}

	run, err := fs.client.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return "", false, &types.ProviderError{Provider: "openai", Op: "file_search", Err: err}
	}

	for run.Status == openai.RunStatusQueued || run.Status == openai.RunStatusInProgress {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(pollInterval):
		}
		run, err = fs.client.RetrieveRun(ctx, thread.ID, run.ID)
		if err != nil {
			return "", false, &types.ProviderError{Provider: "openai", Op: "file_search", Err: err}
		}
	}
	if run.Status != openai.RunStatusCompleted {
		return "", false, nil
	}

	messages, err := fs.client.ListMessage(ctx, thread.ID, nil, nil, nil, nil, nil)
	if err != nil {
		return "", false, &types.ProviderError{Provider: "openai", Op: "file_search", Err: err}
	}

	for _, msg := range messages.Messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, block := range msg.Content {
			if block.Text == nil {
				continue
			}
			if hasFileCitation(block.Text.Annotations) {
				return block.Text.Value, true, nil
			}
		}
	}

	return "", false, nil
}

// Clear drops the provider-side store and assistant references so the
// next upload starts fresh.
func (fs *FileStore) Clear() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.vectorStoreID = ""
	fs.assistantID = ""
}

// hasFileCitation reports whether any annotation is a file citation.
func hasFileCitation(annotations []any) bool {
	for _, a := range annotations {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if m["type"] == "file_citation" {
			return true
		}
	}
	return false
}

// Ensure FileStore implements FileSearcher interface
var _ provider.FileSearcher = (*FileStore)(nil)
