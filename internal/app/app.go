// Package app wires the application together: migrations, database pool,
// tracing, embedders, indexes, stores, tools, and the agent pipeline.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loupe-ai/loupe/internal/agent"
	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/log"
	"github.com/loupe-ai/loupe/internal/media"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/tool"
)

// Index collection names, one per modality.
const (
	CollectionDocuments   = "document_chunks"
	CollectionImages      = "images"
	CollectionFrames      = "video_frames"
	CollectionTranscripts = "transcript_sentences"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	Pipeline      *agent.Pipeline
	Conversations *conversation.Store
	Media         *media.Store
	Runs          *agent.PostgresRunStore
	Searcher      *retrieval.Searcher
	Tools         *tool.Registry

	otelCleanup func()
}

// Close releases all resources acquired in Setup.
func (a *App) Close() error {
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
