// Package agent orchestrates a query through the eight-stage answer
// pipeline: tool selection, tool execution, parallel retrieval, context
// assembly, message assembly, final generation, answer extraction, and run
// recording.
//
// Stage failures split three ways. The two LLM calls are fatal. Tool and
// retrieval failures degrade: a failing tool leaves an error marker in its
// result slot, a failing retrieval query contributes an empty set. Answer
// extraction never fails; it falls back to a sentinel string.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/llm"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/tool"
)

// AnswerSentinel is returned when the final response carries no text block.
const AnswerSentinel = "Error: No answer generated."

// Query is one question submitted to the pipeline. Immutable once built.
type Query struct {
	Text                string  `json:"text"`
	ConversationID      string  `json:"conversation_id"`
	UserID              string  `json:"user_id"`
	MaxTokens           int64   `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	InitialSystemPrompt string  `json:"initial_system_prompt"`
	FinalSystemPrompt   string  `json:"final_system_prompt"`
}

// RunRecord holds a query and every intermediate stage output. A record is
// populated completely before it is persisted and never mutated afterwards.
type RunRecord struct {
	ID          uuid.UUID              `json:"id"`
	Query       Query                  `json:"query"`
	CreatedAt   time.Time              `json:"created_at"`
	ToolCalls   []llm.ToolCallRequest  `json:"tool_calls"`
	ToolResults []tool.Result          `json:"tool_results"`
	Documents   []retrieval.Item       `json:"documents"`
	Images      []retrieval.Item       `json:"images"`
	Frames      []retrieval.Item       `json:"frames"`
	Transcripts []retrieval.Item       `json:"transcripts"`
	ChatMatches []conversation.Snippet `json:"chat_matches"`
	History     []conversation.Turn    `json:"history"`
	Context     string                 `json:"context"`
	Messages    []llm.Message          `json:"messages"`
	Answer      string                 `json:"answer"`
}

// Retriever runs the four modality searches. *retrieval.Searcher satisfies
// it.
type Retriever interface {
	SearchDocuments(ctx context.Context, query string) ([]retrieval.Item, error)
	SearchImages(ctx context.Context, query string) ([]retrieval.Item, error)
	SearchVideoFrames(ctx context.Context, query string) ([]retrieval.Item, error)
	SearchTranscripts(ctx context.Context, query string) ([]retrieval.Item, error)
}

// History serves the two chat-history queries. *conversation.Store
// satisfies it.
type History interface {
	Recent(ctx context.Context, limit int) ([]conversation.Turn, error)
	Search(ctx context.Context, queryText string, threshold float64, limit int) ([]conversation.Snippet, error)
}

// Tools exposes the registry surface the pipeline needs.
type Tools interface {
	Definitions() []llm.ToolDef
	InvokeAll(ctx context.Context, requests []tool.Request) []tool.Result
}

// RunStore persists completed run records.
type RunStore interface {
	Save(ctx context.Context, record *RunRecord) error
}

// Pipeline answers queries. Safe for concurrent use.
type Pipeline struct {
	llm       llm.Client
	tools     Tools
	retriever Retriever
	history   History
	runs      RunStore
	policy    config.RetrievalConfig
	logger    *slog.Logger
}

// PipelineConfig carries the pipeline's collaborators.
type PipelineConfig struct {
	LLM       llm.Client
	Tools     Tools
	Retriever Retriever
	History   History
	Runs      RunStore
	Policy    config.RetrievalConfig
	Logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		llm:       cfg.LLM,
		tools:     cfg.Tools,
		retriever: cfg.Retriever,
		history:   cfg.History,
		runs:      cfg.Runs,
		policy:    cfg.Policy,
		logger:    logger,
	}
}

// Run answers a query. The returned record is complete even when a non-nil
// error reports a persistence failure; only an LLM-stage failure returns a
// nil record.
func (p *Pipeline) Run(ctx context.Context, query Query) (*RunRecord, error) {
	record := &RunRecord{
		ID:        uuid.New(),
		Query:     query,
		CreatedAt: time.Now(),
	}

	// Stage 1: tool selection. The model must pick at least one tool.
	initial, err := p.llm.Complete(ctx, llm.Request{
		Messages:     []llm.Message{llm.NewTextMessage(llm.RoleUser, query.Text)},
		System:       query.InitialSystemPrompt,
		Tools:        p.tools.Definitions(),
		ForceToolUse: true,
		MaxTokens:    int(query.MaxTokens),
		Temperature:  query.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("tool selection: %w", err)
	}
	record.ToolCalls = initial.ToolCalls

	// Stage 2: tool execution. Never fatal.
	requests := make([]tool.Request, len(record.ToolCalls))
	for i, call := range record.ToolCalls {
		requests[i] = tool.Request{Name: call.Name, Arguments: call.Arguments}
	}
	record.ToolResults = p.tools.InvokeAll(ctx, requests)

	// Stage 3: parallel retrieval. Each query degrades to an empty set.
	p.retrieve(ctx, query, record)

	// Stage 4: context assembly.
	record.Context = assembleContext(query.Text, record.ToolResults,
		record.Documents, record.ChatMatches, p.policy.ChatSnippetMaxLen)

	// Stage 5: message assembly.
	record.Messages = assembleFinalMessages(record.History, record.Context,
		record.Images, record.Frames)

	// Stage 6: final generation.
	final, err := p.llm.Complete(ctx, llm.Request{
		Messages:    record.Messages,
		System:      query.FinalSystemPrompt,
		MaxTokens:   int(query.MaxTokens),
		Temperature: query.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("final generation: %w", err)
	}

	// Stage 7: answer extraction. Falls back to a sentinel.
	if text, ok := final.FirstText(); ok {
		record.Answer = text
	} else {
		record.Answer = AnswerSentinel
	}

	// Stage 8: persist the completed record.
	if err := p.runs.Save(ctx, record); err != nil {
		return record, fmt.Errorf("recording run %s: %w", record.ID, err)
	}
	return record, nil
}

// retrieve runs the four modality searches and the two chat-history queries
// concurrently. Failures are logged and leave that slot empty.
func (p *Pipeline) retrieve(ctx context.Context, query Query, record *RunRecord) {
	g, gctx := errgroup.WithContext(ctx)

	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				p.logger.Warn("retrieval query failed", "query", name, "error", err)
			}
			return nil
		})
	}

	run("documents", func() (err error) {
		record.Documents, err = p.retriever.SearchDocuments(gctx, query.Text)
		return err
	})
	run("images", func() (err error) {
		record.Images, err = p.retriever.SearchImages(gctx, query.Text)
		return err
	})
	run("video_frames", func() (err error) {
		record.Frames, err = p.retriever.SearchVideoFrames(gctx, query.Text)
		return err
	})
	run("transcripts", func() (err error) {
		record.Transcripts, err = p.retriever.SearchTranscripts(gctx, query.Text)
		return err
	})
	run("chat_search", func() (err error) {
		record.ChatMatches, err = p.history.Search(gctx, query.Text,
			p.policy.ChatThreshold, p.policy.ChatLimit)
		return err
	})
	run("recent_history", func() (err error) {
		record.History, err = p.history.Recent(gctx, p.policy.RecentHistoryLimit)
		return err
	})

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
}
