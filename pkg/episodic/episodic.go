// Package episodic implements the append-only interaction log backed by SQLite.
//
// The episodic store is the authoritative record of everything the memory
// engine has seen. The vector index is a derived projection: rows here
// survive index failures and can rebuild it.
package episodic

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Interaction is one row of the episodic log.
type Interaction struct {
	// ID is the monotonically increasing row identifier. It doubles as the
	// vector index record identity, rendered as a string.
	ID int64 `json:"id"`

	// ConversationID identifies the conversation this interaction belongs to.
	ConversationID string `json:"conversation_id"`

	// Role is the speaker role (e.g. "user", "assistant").
	Role string `json:"role"`

	// Content is the interaction text.
	Content string `json:"content"`

	// SurpriseScore is the novelty score assigned at ingest time, in [0, 1].
	SurpriseScore float64 `json:"surprise_score"`

	// Timestamp is the ingest time in Unix seconds.
	Timestamp int64 `json:"timestamp"`
}

// Store is the SQLite-backed episodic log.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the episodic store at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStorage, err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrating database: %v", ErrStorage, err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		surprise_score REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_conversation ON interactions(conversation_id, id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append records a new interaction and returns it with its assigned ID.
// IDs are strictly increasing within the store.
func (s *Store) Append(ctx context.Context, conversationID, role, content string, surpriseScore float64) (*Interaction, error) {
	now := time.Now().Unix()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (conversation_id, role, content, surprise_score, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, surpriseScore, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting interaction: %v", ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: reading insert id: %v", ErrStorage, err)
	}

	return &Interaction{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		SurpriseScore:  surpriseScore,
		Timestamp:      now,
	}, nil
}

// Recent returns up to limit interactions for a conversation, newest first.
// A limit of zero or less returns nothing.
func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, surprise_score, created_at
		FROM interactions
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying recent interactions: %v", ErrStorage, err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// RecentSince returns all interactions across every conversation with a
// timestamp at or after cutoff, newest first.
func (s *Store) RecentSince(ctx context.Context, cutoff time.Time) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, surprise_score, created_at
		FROM interactions
		WHERE created_at >= ?
		ORDER BY id DESC
	`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: querying interactions since cutoff: %v", ErrStorage, err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// Get retrieves a single interaction by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, role, content, surprise_score, created_at
		FROM interactions
		WHERE id = ?
	`, id)

	var in Interaction
	err := row.Scan(&in.ID, &in.ConversationID, &in.Role, &in.Content, &in.SurpriseScore, &in.Timestamp)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: interaction %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning interaction: %v", ErrStorage, err)
	}

	return &in, nil
}

// All returns every interaction in the store, oldest first.
func (s *Store) All(ctx context.Context) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, surprise_score, created_at
		FROM interactions
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying all interactions: %v", ErrStorage, err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// DeleteBelow removes interactions in a conversation whose surprise score is
// strictly below threshold and returns the IDs of the deleted rows so the
// caller can mirror the deletion into the vector index.
func (s *Store) DeleteBelow(ctx context.Context, conversationID string, threshold float64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM interactions
		WHERE conversation_id = ? AND surprise_score < ?
	`, conversationID, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: querying prune candidates: %v", ErrStorage, err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning prune candidate: %v", ErrStorage, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating prune candidates: %v", ErrStorage, err)
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM interactions
		WHERE conversation_id = ? AND surprise_score < ?
	`, conversationID, threshold); err != nil {
		return nil, fmt.Errorf("%w: deleting interactions: %v", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing transaction: %v", ErrStorage, err)
	}

	return ids, nil
}

// Count returns the number of interactions in the store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting interactions: %v", ErrStorage, err)
	}
	return count, nil
}

// DB exposes the underlying handle so sibling stores can share the
// metadata database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanInteractions(rows *sql.Rows) ([]Interaction, error) {
	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.ConversationID, &in.Role, &in.Content, &in.SurpriseScore, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scanning interaction: %v", ErrStorage, err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating interactions: %v", ErrStorage, err)
	}
	return out, nil
}
