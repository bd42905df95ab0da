// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/vector"
)

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *zap.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dimensions := c.Dimensions
	if dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// Create the record ID mapping table.
	// vec0 virtual tables use integer rowids, so we need a mapping from
	// string record IDs to integer rowids. Interaction metadata rides
	// along so query results are self-describing.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_interactions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			conversation_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating interactions table: %w", err)
	}

	// Create the vec0 virtual table for vector storage and KNN queries.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &SQLiteVecDriver{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) ([]byte, error) {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Add stores records with their embeddings.
// If a record with the same ID already exists, it is replaced.
func (d *SQLiteVecDriver) Add(ctx context.Context, recs []vector.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		embBlob, err := serializeFloat32(rec.Embedding)
		if err != nil {
			return fmt.Errorf("serializing embedding for record %s: %w", rec.ID, err)
		}

		// Check if record already exists
		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_interactions WHERE record_id = ?`, rec.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			// Record exists — update metadata and embedding
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_interactions SET content = ?, role = ?, conversation_id = ?, created_at = ? WHERE rowid = ?`,
				rec.Content, rec.Role, rec.ConversationID, rec.Timestamp, existingRowID,
			); err != nil {
				return fmt.Errorf("updating record %s: %w", rec.ID, err)
			}

			// Update embedding in vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for record %s: %w", rec.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for record %s: %w", rec.ID, err)
			}
		case sql.ErrNoRows:
			// New record — insert into mapping table first to get the rowid
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_interactions(record_id, content, role, conversation_id, created_at) VALUES (?, ?, ?, ?, ?)`,
				rec.ID, rec.Content, rec.Role, rec.ConversationID, rec.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", rec.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for record %s: %w", rec.ID, err)
			}

			// Insert embedding into vec0 table with matching rowid
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for record %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added records to sqlite-vec",
		zap.Int("count", len(recs)),
	)

	return nil
}

// Query finds the topK most similar records to the given embedding.
// Ties on distance break on insertion order, oldest first.
func (d *SQLiteVecDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	queryBlob, err := serializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	// Use KNN query via vec0 MATCH, then JOIN back to get the metadata.
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			i.record_id,
			i.content,
			i.role,
			i.conversation_id,
			i.created_at,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_interactions i ON i.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance, ve.rowid
	`, queryBlob, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var rec vector.Record
		var distance float64
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Role, &rec.ConversationID, &rec.Timestamp, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		results = append(results, vector.QueryResult{
			Record: rec,
			// Convert distance to similarity score: lower distance = higher similarity
			Score: float32(1.0 / (1.0 + distance)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves records by their IDs.
func (d *SQLiteVecDriver) Get(ctx context.Context, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// Build placeholders for IN clause
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT i.record_id, i.content, i.role, i.conversation_id, i.created_at, i.rowid
		FROM vec_interactions i
		WHERE i.record_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	// Collect results first so we can close the rows cursor before
	// issuing additional queries (SQLite uses a single connection).
	type recRow struct {
		rec   vector.Record
		rowID int64
	}
	var recRows []recRow

	for rows.Next() {
		var rr recRow
		if err := rows.Scan(&rr.rec.ID, &rr.rec.Content, &rr.rec.Role, &rr.rec.ConversationID, &rr.rec.Timestamp, &rr.rowID); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		recRows = append(recRows, rr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	rows.Close()

	// Now retrieve embeddings for each record
	recs := make([]vector.Record, 0, len(recRows))
	for _, rr := range recRows {
		rec := rr.rec

		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, rr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			rec.Embedding, _ = deserializeFloat32(embBlob)
		}

		recs = append(recs, rec)
	}

	return recs, nil
}

// Delete removes records by their IDs. Unknown IDs are ignored.
func (d *SQLiteVecDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Build placeholders for IN clause
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	// First, get the rowids for the records to delete from vec0
	query := fmt.Sprintf(
		`SELECT rowid FROM vec_interactions WHERE record_id IN (%s)`, inClause,
	)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	// Delete embeddings from vec0 table
	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	// Delete from mapping table
	deleteQuery := fmt.Sprintf(
		`DELETE FROM vec_interactions WHERE record_id IN (%s)`, inClause,
	)
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted records from sqlite-vec",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Count returns the number of records in the index.
func (d *SQLiteVecDriver) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vec_interactions`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// IDs returns all record IDs currently in the index.
func (d *SQLiteVecDriver) IDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT record_id FROM vec_interactions ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying record ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating record ids: %w", err)
	}

	return ids, nil
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}
