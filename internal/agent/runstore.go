package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RunDB is the database surface the run store needs. *pgxpool.Pool
// satisfies it.
type RunDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRunStore persists run records to the agent_runs table. Records
// are inserted complete and never updated.
type PostgresRunStore struct {
	db RunDB
}

// NewPostgresRunStore creates a PostgresRunStore.
func NewPostgresRunStore(db RunDB) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

// Save inserts a completed record.
func (s *PostgresRunStore) Save(ctx context.Context, record *RunRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding run record: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO agent_runs (id, conversation_id, user_id, question, answer, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.Query.ConversationID, record.Query.UserID,
		record.Query.Text, record.Answer, payload, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID        uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns recent runs, newest first.
func (s *PostgresRunStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, question, answer, created_at
		FROM agent_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	return runs, nil
}
