package media_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/loupe-ai/loupe/internal/index"
	"github.com/loupe-ai/loupe/internal/log"
	"github.com/loupe-ai/loupe/internal/media"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/testutil"
)

func newTestMedia(t *testing.T) (*media.Store, *retrieval.Searcher) {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	embedder := &testutil.MockEmbedder{}

	indexes := media.Indexes{
		Documents:   index.New(pool, embedder, "document_chunks", log.NewNop()),
		Images:      index.New(pool, embedder, "images", log.NewNop()),
		Frames:      index.New(pool, embedder, "video_frames", log.NewNop()),
		Transcripts: index.New(pool, embedder, "transcript_sentences", log.NewNop()),
	}

	store := media.NewStore(media.StoreConfig{
		DB:      pool,
		Indexes: indexes,
		Logger:  log.NewNop(),
	})

	policy := retrieval.Config{
		Documents:   indexes.Documents,
		Images:      indexes.Images,
		Frames:      indexes.Frames,
		Transcripts: indexes.Transcripts,
		Logger:      log.NewNop(),
	}
	policy.Policy.DocumentThreshold = 0.5
	policy.Policy.DocumentLimit = 20
	policy.Policy.MinChunkLen = 5
	policy.Policy.TranscriptThreshold = 0.7
	policy.Policy.TranscriptLimit = 20

	return store, retrieval.NewSearcher(policy)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestIngestDocumentIsSearchableOnReturn(t *testing.T) {
	store, searcher := newTestMedia(t)
	ctx := context.Background()

	path := writeTempFile(t, "notes.md", "A paragraph about deployment.\n\nAnother paragraph entirely.")

	item, err := store.IngestDocument(ctx, path)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if item.Kind != media.KindDocument || item.Title != "notes.md" {
		t.Errorf("item = %+v", item)
	}

	items, err := searcher.SearchDocuments(ctx, "A paragraph about deployment.")
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d hits, want 1 (derived rows must exist when Ingest returns)", len(items))
	}
	if items[0].SourceID != path {
		t.Errorf("source = %q, want %q", items[0].SourceID, path)
	}

	listed, err := store.List(ctx, media.KindDocument)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != item.ID {
		t.Errorf("listed = %+v", listed)
	}
}

func TestIngestVideoWithoutCollaboratorsFails(t *testing.T) {
	store, _ := newTestMedia(t)

	_, err := store.IngestVideo(context.Background(), "/tmp/any.mp4")
	if err == nil {
		t.Fatal("expected error when video collaborators are not wired")
	}
}

func TestDeleteRemovesDerivedEntries(t *testing.T) {
	store, searcher := newTestMedia(t)
	ctx := context.Background()

	path := writeTempFile(t, "gone.md", "Content that will be deleted soon.")
	item, err := store.IngestDocument(ctx, path)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}

	if err := store.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	items, err := searcher.SearchDocuments(ctx, "Content that will be deleted soon.")
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("derived chunks survived deletion: %d", len(items))
	}

	listed, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("item row survived deletion: %+v", listed)
	}
}

func TestDeleteUnknownItemFails(t *testing.T) {
	store, _ := newTestMedia(t)

	err := store.Delete(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown item id")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not-found", err)
	}
}
