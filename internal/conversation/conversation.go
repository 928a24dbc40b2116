// Package conversation persists the append-only chat log and serves the two
// chat-history queries the pipeline needs: a recent-N window and a
// similarity-ranked search over past turns.
//
// Turns are written by the caller after a pipeline run completes. Two
// concurrent queries on the same conversation may interleave their writes; a
// recent-history read racing an in-flight write is accepted (eventual, not
// strict, consistency).
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loupe-ai/loupe/internal/index"
)

// Role values for chat turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IndexCollection is the embeddings collection backing turn similarity
// search.
const IndexCollection = "chat_history"

// Turn is one chat message.
type Turn struct {
	ID             uuid.UUID `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snippet is one similarity-search hit over past turns.
type Snippet struct {
	Role       string  `json:"role"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Summary describes one conversation for listing.
type Summary struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
}

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists chat turns and their embeddings.
//
// Safe for concurrent use.
type Store struct {
	db     DB
	idx    *index.Index
	logger *slog.Logger
}

// NewStore creates a Store. idx must be an index over IndexCollection.
func NewStore(db DB, idx *index.Index, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, idx: idx, logger: logger}
}

// Append stores a turn and indexes its content for similarity search. The
// turn is visible to Recent and Search once Append returns.
func (s *Store) Append(ctx context.Context, turn Turn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_turns (id, role, content, conversation_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.Role, turn.Content, turn.ConversationID, turn.UserID, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting chat turn: %w", err)
	}

	err = s.idx.Add(ctx, index.Document{
		ID:      turn.ID.String(),
		Content: turn.Content,
		Metadata: map[string]string{
			"role":            turn.Role,
			"conversation_id": turn.ConversationID,
		},
	}, index.TextPayload(turn.Content))
	if err != nil {
		return fmt.Errorf("indexing chat turn: %w", err)
	}

	s.logger.Debug("appended chat turn",
		"conversation_id", turn.ConversationID, "role", turn.Role)
	return nil
}

// Recent returns the most recent turns across all conversations, newest
// first, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Turn, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, role, content, conversation_id, user_id, created_at
		FROM chat_turns
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// Search returns past turns similar to queryText, via the chat-history
// embedding index; threshold and limit come from the caller's policy.
func (s *Store) Search(ctx context.Context, queryText string, threshold float64, limit int) ([]Snippet, error) {
	results, err := s.idx.Query(ctx, index.TextPayload(queryText), limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("chat history search: %w", err)
	}

	snippets := make([]Snippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, Snippet{
			Role:       r.Document.Metadata["role"],
			Content:    r.Document.Content,
			Similarity: r.Similarity,
		})
	}
	return snippets, nil
}

// Turns returns all turns of one conversation in chronological order.
func (s *Store) Turns(ctx context.Context, userID, conversationID string) ([]Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, role, content, conversation_id, user_id, created_at
		FROM chat_turns
		WHERE user_id = $1 AND conversation_id = $2
		ORDER BY created_at ASC`, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying conversation %q: %w", conversationID, err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// ListConversations summarizes a user's conversations, most recently
// updated first. The title is the first user turn, truncated to 100 chars.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT role, content, conversation_id, created_at
		FROM chat_turns
		WHERE user_id = $1
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Summary)
	var order []string
	for rows.Next() {
		var (
			role, content, conversationID string
			createdAt                     time.Time
		)
		if err := rows.Scan(&role, &content, &conversationID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		sum, ok := byID[conversationID]
		if !ok {
			sum = &Summary{ConversationID: conversationID, CreatedAt: createdAt}
			byID[conversationID] = sum
			order = append(order, conversationID)
		}
		sum.MessageCount++
		sum.UpdatedAt = createdAt
		if sum.Title == "" && role == RoleUser {
			sum.Title = truncate(content, 100)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byID[id])
	}
	sortByUpdatedDesc(summaries)
	return summaries, nil
}

// DeleteConversation removes a conversation's turns and their embeddings.
// Returns the number of turns deleted.
func (s *Store) DeleteConversation(ctx context.Context, userID, conversationID string) (int, error) {
	if err := s.idx.RemoveBySource(ctx, "conversation_id", conversationID); err != nil {
		return 0, err
	}

	tag, err := s.db.Exec(ctx,
		`DELETE FROM chat_turns WHERE user_id = $1 AND conversation_id = $2`,
		userID, conversationID)
	if err != nil {
		return 0, fmt.Errorf("deleting conversation %q: %w", conversationID, err)
	}

	return int(tag.RowsAffected()), nil
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.ConversationID, &t.UserID, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}

func sortByUpdatedDesc(summaries []Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
