package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/llm"
	"github.com/loupe-ai/loupe/internal/log"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/testutil"
	"github.com/loupe-ai/loupe/internal/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRetriever struct {
	docs, images, frames, transcripts []retrieval.Item
	imagesErr                         error
}

func (f *fakeRetriever) SearchDocuments(context.Context, string) ([]retrieval.Item, error) {
	return f.docs, nil
}

func (f *fakeRetriever) SearchImages(context.Context, string) ([]retrieval.Item, error) {
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	return f.images, nil
}

func (f *fakeRetriever) SearchVideoFrames(context.Context, string) ([]retrieval.Item, error) {
	return f.frames, nil
}

func (f *fakeRetriever) SearchTranscripts(context.Context, string) ([]retrieval.Item, error) {
	return f.transcripts, nil
}

type fakeHistory struct {
	turns    []conversation.Turn
	snippets []conversation.Snippet
}

func (f *fakeHistory) Recent(context.Context, int) ([]conversation.Turn, error) {
	return f.turns, nil
}

func (f *fakeHistory) Search(context.Context, string, float64, int) ([]conversation.Snippet, error) {
	return f.snippets, nil
}

// echoTools answers every request with "ok:<name>".
type echoTools struct {
	defs []llm.ToolDef
}

func (e *echoTools) Definitions() []llm.ToolDef { return e.defs }

func (e *echoTools) InvokeAll(_ context.Context, requests []tool.Request) []tool.Result {
	results := make([]tool.Result, len(requests))
	for i, req := range requests {
		results[i] = tool.Result{Name: req.Name, Output: "ok:" + req.Name}
	}
	return results
}

type memRunStore struct {
	mu      sync.Mutex
	records []*RunRecord
	err     error
}

func (m *memRunStore) Save(_ context.Context, record *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func testPolicy() config.RetrievalConfig {
	return config.RetrievalConfig{
		ChatThreshold:      0.8,
		ChatLimit:          10,
		RecentHistoryLimit: 4,
		ChatSnippetMaxLen:  150,
	}
}

func newTestPipeline(client llm.Client, ret Retriever, hist History, tools Tools, runs RunStore) *Pipeline {
	return NewPipeline(PipelineConfig{
		LLM:       client,
		Tools:     tools,
		Retriever: ret,
		History:   hist,
		Runs:      runs,
		Policy:    testPolicy(),
		Logger:    log.NewNop(),
	})
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Texts: []string{text}}
}

func toolResponse(names ...string) *llm.Response {
	resp := &llm.Response{}
	for i, name := range names {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCallRequest{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      name,
			Arguments: json.RawMessage(`{"query":"q"}`),
		})
	}
	return resp
}

func TestRunZeroContext(t *testing.T) {
	client := &testutil.ScriptedLLM{Responses: []*llm.Response{
		toolResponse(), // no tool calls
		textResponse("It is sunny."),
	}}
	runs := &memRunStore{}
	p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, &echoTools{}, runs)

	record, err := p.Run(context.Background(), Query{Text: "What's the weather?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Answer != "It is sunny." {
		t.Errorf("answer = %q, want %q", record.Answer, "It is sunny.")
	}

	for _, section := range []string{"[TOOL RESULTS]\nN/A", "[DOCUMENT CONTEXT]\nN/A", "[CHAT HISTORY CONTEXT]\nN/A"} {
		if !strings.Contains(record.Context, section) {
			t.Errorf("context missing %q:\n%s", section, record.Context)
		}
	}
	if len(runs.records) != 1 {
		t.Fatalf("saved %d records, want 1", len(runs.records))
	}
}

func TestRunToolResultParity(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("%d_calls", n), func(t *testing.T) {
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("tool_%d", i)
			}
			client := &testutil.ScriptedLLM{Responses: []*llm.Response{
				toolResponse(names...),
				textResponse("done"),
			}}
			p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, &echoTools{}, &memRunStore{})

			record, err := p.Run(context.Background(), Query{Text: "q"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(record.ToolResults) != len(record.ToolCalls) {
				t.Fatalf("got %d results for %d calls", len(record.ToolResults), len(record.ToolCalls))
			}
			for i, result := range record.ToolResults {
				if result.Name != record.ToolCalls[i].Name {
					t.Errorf("result %d is %q, want %q", i, result.Name, record.ToolCalls[i].Name)
				}
			}
		})
	}
}

func TestRunToolSelectionFailureIsFatal(t *testing.T) {
	client := &testutil.ScriptedLLM{Errs: []error{errors.New("api down")}}
	p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, &echoTools{}, &memRunStore{})

	record, err := p.Run(context.Background(), Query{Text: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	if record != nil {
		t.Error("expected nil record on tool-selection failure")
	}
	if !strings.Contains(err.Error(), "tool selection") {
		t.Errorf("error = %v, want tool selection wrap", err)
	}
}

func TestRunFinalGenerationFailureIsFatal(t *testing.T) {
	client := &testutil.ScriptedLLM{
		Responses: []*llm.Response{toolResponse()},
		Errs:      []error{nil, errors.New("api down")},
	}
	p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, &echoTools{}, &memRunStore{})

	if _, err := p.Run(context.Background(), Query{Text: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunBrokenImageIndexDegrades(t *testing.T) {
	ret := &fakeRetriever{
		docs:      []retrieval.Item{{Kind: retrieval.KindDocumentChunk, Text: "relevant chunk", SourceID: "/tmp/doc.md"}},
		imagesErr: errors.New("index offline"),
	}
	client := &testutil.ScriptedLLM{Responses: []*llm.Response{
		toolResponse(),
		textResponse("answer from documents"),
	}}
	p := newTestPipeline(client, ret, &fakeHistory{}, &echoTools{}, &memRunStore{})

	record, err := p.Run(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(record.Images) != 0 {
		t.Errorf("expected no images, got %d", len(record.Images))
	}
	if !strings.Contains(record.Context, "relevant chunk") {
		t.Error("document context missing despite image failure")
	}
	if record.Answer != "answer from documents" {
		t.Errorf("answer = %q", record.Answer)
	}
}

func TestRunAnswerSentinel(t *testing.T) {
	client := &testutil.ScriptedLLM{Responses: []*llm.Response{
		toolResponse(),
		{}, // no text blocks
	}}
	p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, &echoTools{}, &memRunStore{})

	record, err := p.Run(context.Background(), Query{Text: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Answer != AnswerSentinel {
		t.Errorf("answer = %q, want sentinel", record.Answer)
	}
}

func TestRunForcesToolChoiceOnFirstCallOnly(t *testing.T) {
	client := &testutil.ScriptedLLM{Responses: []*llm.Response{
		toolResponse("web_search"),
		textResponse("done"),
	}}
	tools := &echoTools{defs: []llm.ToolDef{{Name: "web_search"}}}
	p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, tools, &memRunStore{})

	if _, err := p.Run(context.Background(), Query{Text: "q"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(client.Requests) != 2 {
		t.Fatalf("made %d LLM calls, want 2", len(client.Requests))
	}
	if !client.Requests[0].ForceToolUse {
		t.Error("first call must force tool use")
	}
	if len(client.Requests[0].Tools) != 1 {
		t.Error("first call must carry tool definitions")
	}
	if client.Requests[1].ForceToolUse || len(client.Requests[1].Tools) != 0 {
		t.Error("final call must not carry tools")
	}
}

func TestRunRecordSaveFailureReturnsRecord(t *testing.T) {
	client := &testutil.ScriptedLLM{Responses: []*llm.Response{
		toolResponse(),
		textResponse("the answer"),
	}}
	runs := &memRunStore{err: errors.New("disk full")}
	p := newTestPipeline(client, &fakeRetriever{}, &fakeHistory{}, &echoTools{}, runs)

	record, err := p.Run(context.Background(), Query{Text: "q"})
	if err == nil {
		t.Fatal("expected recording error")
	}
	if record == nil || record.Answer != "the answer" {
		t.Fatal("record must be returned complete despite save failure")
	}
}

func TestRunConcurrent(t *testing.T) {
	script := []*llm.Response{
		toolResponse(),
		textResponse("ok"),
	}
	// Each run consumes the two-call script, so give every run its own
	// pipeline with a fresh client.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := newTestPipeline(&testutil.ScriptedLLM{Responses: script},
				&fakeRetriever{}, &fakeHistory{}, &echoTools{}, &memRunStore{})
			if _, err := p.Run(context.Background(), Query{Text: "q"}); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()
}
