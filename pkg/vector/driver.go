// Package vector provides interfaces and implementations for vector storage of interactions.
package vector

import "context"

// Record represents a stored interaction with its embedding and metadata.
// The index is a derived projection of the episodic store: the metadata
// store remains authoritative, and records here can be rebuilt from it.
type Record struct {
	// ID is a unique identifier for the record. It mirrors the episodic
	// interaction id, rendered as a string.
	ID string

	// Content is the interaction text.
	Content string

	// Role is the speaker role (e.g. "user", "assistant").
	Role string

	// ConversationID identifies the conversation the record belongs to.
	ConversationID string

	// Timestamp is the interaction time in Unix seconds.
	Timestamp int64

	// Embedding is the vector representation of the content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Record

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of interaction embeddings.
type Driver interface {
	// Add stores records with their embeddings.
	// If a record with the same ID already exists, implementers should
	// replace it.
	Add(ctx context.Context, recs []Record) error

	// Query finds the topK most similar records to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves records by their IDs.
	Get(ctx context.Context, ids []string) ([]Record, error)

	// Delete removes records by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of records in the index.
	Count(ctx context.Context) (int64, error)

	// IDs returns all record IDs currently in the index.
	IDs(ctx context.Context) ([]string, error)

	// Close releases any resources held by the driver.
	Close() error
}
