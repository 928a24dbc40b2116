// Package retrieval implements the four modality searches the agent pipeline
// runs per query: document chunks, images, video keyframes, and video
// transcript sentences.
//
// Each search applies its own policy (threshold, limit, text-length floor,
// dedup) from config.RetrievalConfig; see that type for why the thresholds
// differ per modality. All searches return results strictly above threshold,
// sorted by similarity descending, truncated to the modality limit.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/index"
)

// overFetchFactor widens index queries for searches that filter or dedup
// after ranking, so post-filter truncation still fills the limit.
const overFetchFactor = 2

// Searcher runs modality searches against the four backing indexes.
//
// Safe for concurrent use; the four searches share no mutable state and the
// pipeline runs them in parallel.
type Searcher struct {
	documents   index.Searcher
	images      index.Searcher
	frames      index.Searcher
	transcripts index.Searcher
	cfg         config.RetrievalConfig
	logger      *slog.Logger
}

// Config wires a Searcher.
type Config struct {
	Documents   index.Searcher
	Images      index.Searcher
	Frames      index.Searcher
	Transcripts index.Searcher
	Policy      config.RetrievalConfig
	Logger      *slog.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(cfg Config) *Searcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		documents:   cfg.Documents,
		images:      cfg.Images,
		frames:      cfg.Frames,
		transcripts: cfg.Transcripts,
		cfg:         cfg.Policy,
		logger:      logger,
	}
}

// SearchDocuments returns document chunks similar to queryText. Chunks
// shorter than the configured minimum length are dropped before truncation.
func (s *Searcher) SearchDocuments(ctx context.Context, queryText string) ([]Item, error) {
	results, err := s.documents.Query(ctx, index.TextPayload(queryText),
		s.cfg.DocumentLimit*overFetchFactor, s.cfg.DocumentThreshold)
	if err != nil {
		return nil, fmt.Errorf("document search: %w", err)
	}

	items := make([]Item, 0, s.cfg.DocumentLimit)
	for _, r := range results {
		if utf8.RuneCountInString(r.Document.Content) <= s.cfg.MinChunkLen {
			continue
		}
		items = append(items, Item{
			Kind:       KindDocumentChunk,
			Similarity: r.Similarity,
			SourceID:   r.Document.Metadata[MetaSourceDoc],
			Text:       r.Document.Content,
			Title:      r.Document.Metadata[MetaTitle],
			Heading:    r.Document.Metadata[MetaHeading],
			Page:       r.Document.Metadata[MetaPage],
		})
		if len(items) == s.cfg.DocumentLimit {
			break
		}
	}
	return items, nil
}

// SearchImages returns images similar to queryText, each carrying a base64
// PNG thumbnail for inlining into the final message.
func (s *Searcher) SearchImages(ctx context.Context, queryText string) ([]Item, error) {
	results, err := s.images.Query(ctx, index.TextPayload(queryText),
		s.cfg.ImageLimit, s.cfg.ImageThreshold)
	if err != nil {
		return nil, fmt.Errorf("image search: %w", err)
	}

	items := make([]Item, 0, len(results))
	for _, r := range results {
		items = append(items, Item{
			Kind:         KindImage,
			Similarity:   r.Similarity,
			SourceID:     r.Document.ID,
			EncodedImage: r.Document.Content,
		})
	}
	return items, nil
}

// SearchVideoFrames returns video keyframes similar to queryText.
func (s *Searcher) SearchVideoFrames(ctx context.Context, queryText string) ([]Item, error) {
	results, err := s.frames.Query(ctx, index.TextPayload(queryText),
		s.cfg.FrameLimit, s.cfg.FrameThreshold)
	if err != nil {
		return nil, fmt.Errorf("video frame search: %w", err)
	}

	items := make([]Item, 0, len(results))
	for _, r := range results {
		items = append(items, Item{
			Kind:         KindVideoFrame,
			Similarity:   r.Similarity,
			SourceID:     r.Document.Metadata[MetaSourceVideo],
			EncodedImage: r.Document.Content,
			Position:     r.Document.Metadata[MetaPosition],
		})
	}
	return items, nil
}

// SearchTranscripts returns transcript sentences similar to queryText.
// Overlapping audio chunks upstream can transcribe the same sentence twice,
// so the search over-fetches and drops exact-text duplicates (first seen
// wins) before truncating.
func (s *Searcher) SearchTranscripts(ctx context.Context, queryText string) ([]Item, error) {
	results, err := s.transcripts.Query(ctx, index.TextPayload(queryText),
		s.cfg.TranscriptLimit*overFetchFactor, s.cfg.TranscriptThreshold)
	if err != nil {
		return nil, fmt.Errorf("transcript search: %w", err)
	}

	seen := make(map[string]struct{}, len(results))
	items := make([]Item, 0, s.cfg.TranscriptLimit)
	for _, r := range results {
		text := r.Document.Content
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		items = append(items, Item{
			Kind:       KindTranscriptSentence,
			Similarity: r.Similarity,
			SourceID:   r.Document.Metadata[MetaSourceVideo],
			Text:       text,
			Position:   r.Document.Metadata[MetaPosition],
		})
		if len(items) == s.cfg.TranscriptLimit {
			break
		}
	}
	return items, nil
}
