package kb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spetr/matwizard/pkg/types"
)

type stubCompleter struct {
	reply       string
	err         error
	gotMessages []types.Message
}

func (c *stubCompleter) Name() string { return "stub" }

func (c *stubCompleter) Complete(ctx context.Context, messages []types.Message) (string, error) {
	c.gotMessages = append([]types.Message(nil), messages...)
	return c.reply, c.err
}

func (c *stubCompleter) Available() bool { return true }
func (c *stubCompleter) Close() error    { return nil }

type stubWebSearcher struct {
	answer string
	err    error
	calls  int
}

func (w *stubWebSearcher) WebSearch(ctx context.Context, query string) (string, error) {
	w.calls++
	return w.answer, w.err
}

type stubLocalSource struct {
	answer string
	ok     bool
	err    error
	calls  int
}

func (s *stubLocalSource) Answer(ctx context.Context, query string) (string, bool, error) {
	s.calls++
	return s.answer, s.ok, s.err
}

func TestAgentLocalHitSkipsWeb(t *testing.T) {
	web := &stubWebSearcher{answer: "from the web"}
	agent := NewAgent(AgentConfig{
		Local: &stubLocalSource{answer: "from the kb", ok: true},
		Web:   web,
	})

	answer, err := agent.Ask(context.Background(), "question")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Source != types.AnswerSourceLocal {
		t.Errorf("expected local source, got %q", answer.Source)
	}
	if answer.Text != "from the kb" {
		t.Errorf("unexpected answer %q", answer.Text)
	}
	if web.calls != 0 {
		t.Errorf("web search called on local hit")
	}
}

func TestAgentFallsBackToWebOnce(t *testing.T) {
	local := &stubLocalSource{ok: false}
	web := &stubWebSearcher{answer: "from the web"}
	agent := NewAgent(AgentConfig{Local: local, Web: web})

	answer, err := agent.Ask(context.Background(), "question")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Source != types.AnswerSourceWeb {
		t.Errorf("expected web source, got %q", answer.Source)
	}
	if web.calls != 1 {
		t.Errorf("expected exactly one web search, got %d", web.calls)
	}
	if local.calls != 1 {
		t.Errorf("expected exactly one local attempt, got %d", local.calls)
	}
}

func TestAgentLocalErrorPropagates(t *testing.T) {
	localErr := errors.New("store corrupted")
	web := &stubWebSearcher{answer: "from the web"}
	agent := NewAgent(AgentConfig{
		Local: &stubLocalSource{err: localErr},
		Web:   web,
	})

	_, err := agent.Ask(context.Background(), "question")
	if !errors.Is(err, localErr) {
		t.Errorf("expected local error, got %v", err)
	}
	if web.calls != 0 {
		t.Errorf("web search called despite local error")
	}
}

func TestAgentLocalErrorFallsBackWhenConfigured(t *testing.T) {
	web := &stubWebSearcher{answer: "from the web"}
	agent := NewAgent(AgentConfig{
		Local:           &stubLocalSource{err: errors.New("store corrupted")},
		Web:             web,
		FallbackOnError: true,
	})

	answer, err := agent.Ask(context.Background(), "question")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer.Source != types.AnswerSourceWeb {
		t.Errorf("expected web source, got %q", answer.Source)
	}
	if web.calls != 1 {
		t.Errorf("expected one web search, got %d", web.calls)
	}
}

func TestAgentNoWebProvider(t *testing.T) {
	agent := NewAgent(AgentConfig{Local: &stubLocalSource{ok: false}})

	_, err := agent.Ask(context.Background(), "question")
	if !errors.Is(err, types.ErrProviderNotAvailable) {
		t.Errorf("expected ErrProviderNotAvailable, got %v", err)
	}
}

func TestAgentWebErrorPropagates(t *testing.T) {
	webErr := errors.New("search quota exceeded")
	agent := NewAgent(AgentConfig{
		Local: &stubLocalSource{ok: false},
		Web:   &stubWebSearcher{err: webErr},
	})

	_, err := agent.Ask(context.Background(), "question")
	if !errors.Is(err, webErr) {
		t.Errorf("expected web error, got %v", err)
	}
}

func TestKBSourceEndToEnd(t *testing.T) {
	kb := newTestKB(t, &stubEmbedder{})
	ctx := context.Background()

	doc := &types.Document{
		Source:  "superalloy.md",
		Content: []byte("The superalloy is solutionized at 1350C to dissolve gamma prime."),
	}
	if _, err := kb.IndexDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}

	llm := &stubCompleter{reply: "The solutionizing temperature is 1350C."}
	source := NewKBSource(kb, llm)

	answer, ok, err := source.Answer(ctx, "what is the solutionizing temperature")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a local answer")
	}
	if answer != "The solutionizing temperature is 1350C." {
		t.Errorf("unexpected answer %q", answer)
	}

	// First message is the injected context, then the assistant prompt.
	if len(llm.gotMessages) < 2 {
		t.Fatalf("expected injected context, got %d messages", len(llm.gotMessages))
	}
	if !strings.Contains(llm.gotMessages[0].Content, "1350C") {
		t.Errorf("context does not carry the retrieved chunk: %q", llm.gotMessages[0].Content)
	}
	if llm.gotMessages[1].Content != "You are a helpful assistant." {
		t.Errorf("assistant prompt missing: %+v", llm.gotMessages[1])
	}
}

func TestKBSourceEmptyStoreReportsMiss(t *testing.T) {
	kb := newTestKB(t, &stubEmbedder{})
	llm := &stubCompleter{reply: "should not be used"}
	source := NewKBSource(kb, llm)

	_, ok, err := source.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ok {
		t.Error("empty store reported a hit")
	}
	if llm.gotMessages != nil {
		t.Error("completion called with nothing retrieved")
	}
}

type stubFileSearcher struct {
	answer   string
	grounded bool
	err      error
}

func (f *stubFileSearcher) UploadFiles(ctx context.Context, paths []string) error { return nil }

func (f *stubFileSearcher) FileSearch(ctx context.Context, query string) (string, bool, error) {
	return f.answer, f.grounded, f.err
}

func TestFileSourceRequiresGrounding(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		grounded bool
		wantOK   bool
	}{
		{"grounded answer", "cited answer", true, true},
		{"ungrounded answer", "hallucinated", false, false},
		{"empty answer", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewFileSource(&stubFileSearcher{answer: tt.answer, grounded: tt.grounded})

			answer, ok, err := source.Answer(context.Background(), "q")
			if err != nil {
				t.Fatalf("Answer failed: %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && answer != tt.answer {
				t.Errorf("answer = %q, want %q", answer, tt.answer)
			}
		})
	}
}
