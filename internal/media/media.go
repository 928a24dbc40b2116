// Package media ingests documents, images, and videos. Every derived field
// (chunks, thumbnails, keyframes, transcripts) is computed and indexed
// synchronously inside Ingest*, so a listed item is always fully derived.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loupe-ai/loupe/internal/index"
	"github.com/loupe-ai/loupe/internal/retrieval"
)

// Kind of an ingested item.
type Kind string

const (
	KindDocument Kind = "document"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
)

// Collaborator-missing errors for media kinds the store was not wired for.
var (
	ErrNoKeyframeExtractor = errors.New("no keyframe extractor configured")
	ErrNoAudioExtractor    = errors.New("no audio extractor configured")
	ErrNoTranscriber       = errors.New("no transcriber configured")
)

// Item is one ingested media item.
type Item struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Indexes groups the four modality indexes derived content is written to.
type Indexes struct {
	Documents   *index.Index
	Images      *index.Index
	Frames      *index.Index
	Transcripts *index.Index
}

// Store ingests media and maintains the derived index entries.
type Store struct {
	db      DB
	indexes Indexes

	chunker     Chunker
	thumbnailer Thumbnailer
	keyframes   KeyframeExtractor
	audio       AudioExtractor
	transcriber Transcriber

	logger *slog.Logger
}

// StoreConfig carries the store's collaborators. Chunker and Thumbnailer
// fall back to the package defaults when nil; the video collaborators stay
// nil unless wired, which disables video ingestion.
type StoreConfig struct {
	DB          DB
	Indexes     Indexes
	Chunker     Chunker
	Thumbnailer Thumbnailer
	Keyframes   KeyframeExtractor
	Audio       AudioExtractor
	Transcriber Transcriber
	Logger      *slog.Logger
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Chunker == nil {
		cfg.Chunker = ParagraphChunker{}
	}
	if cfg.Thumbnailer == nil {
		cfg.Thumbnailer = PNGThumbnailer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		db:          cfg.DB,
		indexes:     cfg.Indexes,
		chunker:     cfg.Chunker,
		thumbnailer: cfg.Thumbnailer,
		keyframes:   cfg.Keyframes,
		audio:       cfg.Audio,
		transcriber: cfg.Transcriber,
		logger:      cfg.Logger,
	}
}

// IngestDocument chunks and indexes a document file. The item row is
// written last, after every chunk is indexed.
func (s *Store) IngestDocument(ctx context.Context, path string) (*Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	chunks, err := s.chunker.Chunk(ctx, f, path)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", path, err)
	}

	item := newItem(KindDocument, path)
	for i, chunk := range chunks {
		meta := map[string]string{
			retrieval.MetaSourceDoc: path,
			retrieval.MetaPosition:  strconv.Itoa(i),
		}
		if chunk.Title != "" {
			meta[retrieval.MetaTitle] = chunk.Title
		}
		if chunk.Heading != "" {
			meta[retrieval.MetaHeading] = chunk.Heading
		}
		if chunk.Page > 0 {
			meta[retrieval.MetaPage] = strconv.Itoa(chunk.Page)
		}
		err := s.indexes.Documents.Add(ctx, index.Document{
			ID:       fmt.Sprintf("%s:%d", item.ID, i),
			Content:  chunk.Text,
			Metadata: meta,
		}, index.TextPayload(chunk.Text))
		if err != nil {
			return nil, fmt.Errorf("indexing chunk %d of %s: %w", i, path, err)
		}
	}

	if err := s.insertItem(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("ingested document", "path", path, "chunks", len(chunks))
	return item, nil
}

// IngestImage thumbnails and indexes an image file.
func (s *Store) IngestImage(ctx context.Context, path string) (*Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	encoded, err := s.thumbnailer.Thumbnail(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("thumbnailing %s: %w", path, err)
	}

	item := newItem(KindImage, path)
	err = s.indexes.Images.Add(ctx, index.Document{
		ID:       item.ID.String(),
		Content:  encoded,
		Metadata: map[string]string{retrieval.MetaSourceDoc: path},
	}, index.ImagePayload("image/png", encoded))
	if err != nil {
		return nil, fmt.Errorf("indexing image %s: %w", path, err)
	}

	if err := s.insertItem(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("ingested image", "path", path)
	return item, nil
}

// IngestVideo extracts keyframes and a transcript from a video file and
// indexes both. Requires the keyframe, audio, and transcriber
// collaborators.
func (s *Store) IngestVideo(ctx context.Context, path string) (*Item, error) {
	switch {
	case s.keyframes == nil:
		return nil, ErrNoKeyframeExtractor
	case s.audio == nil:
		return nil, ErrNoAudioExtractor
	case s.transcriber == nil:
		return nil, ErrNoTranscriber
	}

	item := newItem(KindVideo, path)

	frames, err := s.keyframes.Keyframes(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting keyframes from %s: %w", path, err)
	}
	for i, frame := range frames {
		err := s.indexes.Frames.Add(ctx, index.Document{
			ID:      fmt.Sprintf("%s:frame:%d", item.ID, i),
			Content: frame.EncodedPNG,
			Metadata: map[string]string{
				retrieval.MetaSourceVideo: path,
				retrieval.MetaPosition:    strconv.FormatFloat(frame.PositionSec, 'f', 3, 64),
			},
		}, index.ImagePayload("image/png", frame.EncodedPNG))
		if err != nil {
			return nil, fmt.Errorf("indexing keyframe %d of %s: %w", i, path, err)
		}
	}

	audioPath, err := s.audio.ExtractAudio(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting audio from %s: %w", path, err)
	}
	sentences, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribing %s: %w", path, err)
	}
	for i, sentence := range sentences {
		err := s.indexes.Transcripts.Add(ctx, index.Document{
			ID:      fmt.Sprintf("%s:sentence:%d", item.ID, i),
			Content: sentence.Text,
			Metadata: map[string]string{
				retrieval.MetaSourceVideo: path,
				retrieval.MetaPosition:    strconv.FormatFloat(sentence.PositionSec, 'f', 3, 64),
			},
		}, index.TextPayload(sentence.Text))
		if err != nil {
			return nil, fmt.Errorf("indexing sentence %d of %s: %w", i, path, err)
		}
	}

	if err := s.insertItem(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("ingested video", "path", path,
		"keyframes", len(frames), "sentences", len(sentences))
	return item, nil
}

// List returns ingested items of one kind, newest first. An empty kind
// returns everything.
func (s *Store) List(ctx context.Context, kind Kind) ([]Item, error) {
	query := `
		SELECT id, kind, source, title, created_at
		FROM media_items`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Kind, &it.Source, &it.Title, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning media item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading media items: %w", err)
	}
	return items, nil
}

// Delete removes an item and every index entry derived from it.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	kind, source, err := s.lookupItem(ctx, id)
	if err != nil {
		return err
	}

	switch kind {
	case KindDocument:
		err = s.indexes.Documents.RemoveBySource(ctx, retrieval.MetaSourceDoc, source)
	case KindImage:
		err = s.indexes.Images.RemoveBySource(ctx, retrieval.MetaSourceDoc, source)
	case KindVideo:
		if err = s.indexes.Frames.RemoveBySource(ctx, retrieval.MetaSourceVideo, source); err == nil {
			err = s.indexes.Transcripts.RemoveBySource(ctx, retrieval.MetaSourceVideo, source)
		}
	}
	if err != nil {
		return fmt.Errorf("removing index entries for %s: %w", id, err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM media_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting media item %s: %w", id, err)
	}
	return nil
}

func (s *Store) lookupItem(ctx context.Context, id uuid.UUID) (Kind, string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT kind, source FROM media_items WHERE id = $1`, id)
	if err != nil {
		return "", "", fmt.Errorf("looking up media item %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", "", fmt.Errorf("looking up media item %s: %w", id, err)
		}
		return "", "", fmt.Errorf("media item %s not found", id)
	}

	var (
		kind   Kind
		source string
	)
	if err := rows.Scan(&kind, &source); err != nil {
		return "", "", fmt.Errorf("scanning media item %s: %w", id, err)
	}
	return kind, source, nil
}

func (s *Store) insertItem(ctx context.Context, item *Item) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO media_items (id, kind, source, title, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		item.ID, string(item.Kind), item.Source, item.Title, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting media item: %w", err)
	}
	return nil
}

func newItem(kind Kind, path string) *Item {
	return &Item{
		ID:        uuid.New(),
		Kind:      kind,
		Source:    path,
		Title:     filepath.Base(path),
		CreatedAt: time.Now(),
	}
}
