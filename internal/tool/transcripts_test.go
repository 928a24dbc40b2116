package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/loupe-ai/loupe/internal/retrieval"
)

type stubTranscripts struct {
	items []retrieval.Item
	err   error
}

func (s *stubTranscripts) SearchTranscripts(context.Context, string) ([]retrieval.Item, error) {
	return s.items, s.err
}

func TestTranscriptSearchFormatsResults(t *testing.T) {
	ts := NewTranscriptSearch(&stubTranscripts{items: []retrieval.Item{
		{Kind: retrieval.KindTranscriptSentence, SourceID: "/videos/talk.mp4", Text: "hello world"},
		{Kind: retrieval.KindTranscriptSentence, SourceID: "/videos/talk.mp4", Text: "second line"},
	}})

	out, err := ts.Invoke(context.Background(), json.RawMessage(`{"query":"hello"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "- [Video: /videos/talk.mp4] hello world\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "second line") {
		t.Errorf("missing second sentence:\n%s", out)
	}
}

func TestTranscriptSearchEmptyResults(t *testing.T) {
	ts := NewTranscriptSearch(&stubTranscripts{})

	out, err := ts.Invoke(context.Background(), json.RawMessage(`{"query":"anything"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "" {
		t.Errorf("empty results must yield empty output (registry adds the sentinel), got %q", out)
	}
}

func TestTranscriptSearchPropagatesError(t *testing.T) {
	ts := NewTranscriptSearch(&stubTranscripts{err: errors.New("index offline")})

	if _, err := ts.Invoke(context.Background(), json.RawMessage(`{"query":"q"}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestTranscriptSearchRejectsEmptyQuery(t *testing.T) {
	ts := NewTranscriptSearch(&stubTranscripts{})

	if _, err := ts.Invoke(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for missing query")
	}
}
