package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loupe-ai/loupe/internal/llm"
	"github.com/loupe-ai/loupe/internal/retrieval"
)

// TranscriptSearcher is the retrieval surface the transcript tool needs.
// *retrieval.Searcher satisfies it.
type TranscriptSearcher interface {
	SearchTranscripts(ctx context.Context, query string) ([]retrieval.Item, error)
}

// TranscriptSearch exposes transcript retrieval as a model-callable tool,
// so the model can probe spoken content with its own rephrased queries.
type TranscriptSearch struct {
	searcher TranscriptSearcher
}

// NewTranscriptSearch creates a search_video_transcripts tool.
func NewTranscriptSearch(searcher TranscriptSearcher) *TranscriptSearch {
	return &TranscriptSearch{searcher: searcher}
}

func (t *TranscriptSearch) Definition() llm.ToolDef {
	return llm.ToolDef{
		Name:        "search_video_transcripts",
		Description: "Search transcripts of ingested videos for spoken content matching a query. Use when the question concerns something said in a video.",
		InputSchema: llm.Schema{
			Type: "object",
			Properties: map[string]llm.PropertyDef{
				"query": {Type: "string", Description: "Text to match against transcript sentences."},
			},
			Required: []string{"query"},
		},
	}
}

func (t *TranscriptSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("parsing search_video_transcripts arguments: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("search_video_transcripts requires a query")
	}

	items, err := t.searcher.SearchTranscripts(ctx, input.Query)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- [Video: %s] %s\n", item.SourceID, item.Text)
	}
	return b.String(), nil
}
