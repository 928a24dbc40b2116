// Package index provides per-collection nearest-neighbor indexes over text
// and image payloads, backed by PostgreSQL + pgvector.
//
// Each index is one named collection in a shared embeddings table. A row
// stores the displayable content and metadata next to its vector, so a
// similarity query returns render-ready results. Embeddings are produced by a
// Genkit ai.Embedder, so text embedders and joint image/text embedders are
// interchangeable behind the same interface; scores are only comparable
// within one collection.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrEmptyEmbedding indicates the embedder returned no vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Document is one indexed item: the content shown to the model at render
// time plus free-form metadata (source ids, titles, positions).
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is one similarity query hit.
type Result struct {
	Document Document

	// Similarity is 1 - cosine distance, clamped to [0, 1]. Higher is
	// more similar.
	Similarity float64
}

// Payload is the content handed to the embedder: text, or an inline image
// for a multimodal embedder.
type Payload struct {
	Text string

	// MediaType and MediaData describe an inline base64 image. When
	// MediaData is set the payload is embedded as media.
	MediaType string
	MediaData string
}

// TextPayload builds a text payload.
func TextPayload(text string) Payload {
	return Payload{Text: text}
}

// ImagePayload builds an inline-image payload from base64 data.
func ImagePayload(mediaType, data string) Payload {
	return Payload{MediaType: mediaType, MediaData: data}
}

// Searcher is the similarity-query interface consumed by retrieval.
//
// Query returns results with similarity strictly greater than minSimilarity,
// descending, ties broken by insertion order. An empty index yields an empty
// slice, never an error.
type Searcher interface {
	Query(ctx context.Context, payload Payload, topK int, minSimilarity float64) ([]Result, error)
}

// DB is the database surface the index needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Index is a per-collection pgvector index.
//
// Safe for concurrent use.
type Index struct {
	db         DB
	embedder   ai.Embedder
	collection string
	logger     *slog.Logger
}

// New creates an index over the named collection.
func New(db DB, embedder ai.Embedder, collection string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		db:         db,
		embedder:   embedder,
		collection: collection,
		logger:     logger,
	}
}

// Collection returns the collection name.
func (ix *Index) Collection() string {
	return ix.collection
}

// Add embeds payload and upserts doc under its ID. Re-adding the same ID
// replaces the stored row (idempotent upsert).
//
// For text collections the payload is normally TextPayload(doc.Content); for
// image collections the payload carries the image bytes while doc.Content
// carries the base64 rendition handed to the model later.
func (ix *Index) Add(ctx context.Context, doc Document, payload Payload) error {
	vec, err := ix.embed(ctx, payload)
	if err != nil {
		return fmt.Errorf("embedding item %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	embedding := pgvector.NewVector(vec)
	_, err = ix.db.Exec(ctx, `
		INSERT INTO embeddings (collection, item_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, item_id) DO UPDATE
		SET content = EXCLUDED.content,
		    metadata = EXCLUDED.metadata,
		    embedding = EXCLUDED.embedding`,
		ix.collection, doc.ID, doc.Content, metadataJSON, embedding)
	if err != nil {
		return fmt.Errorf("upserting embedding for %q: %w", doc.ID, err)
	}

	ix.logger.Debug("indexed item",
		"collection", ix.collection, "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Query implements Searcher.
func (ix *Index) Query(ctx context.Context, payload Payload, topK int, minSimilarity float64) ([]Result, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vec, err := ix.embed(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	embedding := pgvector.NewVector(vec)

	// Cosine distance ascending equals similarity descending; seq breaks
	// ties by insertion order.
	rows, err := ix.db.Query(ctx, `
		SELECT item_id, content, metadata, 1 - (embedding <=> $2) AS similarity
		FROM embeddings
		WHERE collection = $1 AND 1 - (embedding <=> $2) > $3
		ORDER BY embedding <=> $2 ASC, seq ASC
		LIMIT $4`,
		ix.collection, embedding, minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, topK)
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
				ix.logger.Warn("failed to parse metadata",
					"collection", ix.collection, "id", doc.ID, "error", err)
				doc.Metadata = map[string]string{}
			}
		}
		results = append(results, Result{Document: doc, Similarity: clamp01(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}

	return results, nil
}

// Remove deletes an item from the collection. Removing an absent item is a
// no-op.
func (ix *Index) Remove(ctx context.Context, itemID string) error {
	_, err := ix.db.Exec(ctx,
		`DELETE FROM embeddings WHERE collection = $1 AND item_id = $2`,
		ix.collection, itemID)
	if err != nil {
		return fmt.Errorf("removing embedding for %q: %w", itemID, err)
	}
	return nil
}

// RemoveBySource deletes every item whose metadata source key matches
// sourceID. Used when a media item and its derived rows are deleted.
func (ix *Index) RemoveBySource(ctx context.Context, key, sourceID string) error {
	_, err := ix.db.Exec(ctx,
		`DELETE FROM embeddings WHERE collection = $1 AND metadata->>$2 = $3`,
		ix.collection, key, sourceID)
	if err != nil {
		return fmt.Errorf("removing embeddings for source %q: %w", sourceID, err)
	}
	return nil
}

// embed runs the payload through the embedder and validates the result.
func (ix *Index) embed(ctx context.Context, payload Payload) ([]float32, error) {
	var parts []*ai.Part
	if payload.MediaData != "" {
		uri := fmt.Sprintf("data:%s;base64,%s", payload.MediaType, payload.MediaData)
		parts = []*ai.Part{ai.NewMediaPart(payload.MediaType, uri)}
	} else {
		parts = []*ai.Part{ai.NewTextPart(payload.Text)}
	}

	resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{{Content: parts}},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
