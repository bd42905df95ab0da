// Package graph implements the semantic knowledge graph over the metadata store.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DescriptionSeparator joins successive descriptions when a node is
// upserted more than once.
const DescriptionSeparator = "\n---\n"

// Node is a named entity in the knowledge graph.
type Node struct {
	// Name is the unique identifier of the node.
	Name string `json:"name"`

	// Description accumulates across upserts, joined by DescriptionSeparator.
	Description string `json:"description"`

	// Attributes are merged across upserts, last writer wins per key.
	Attributes map[string]string `json:"attributes"`

	// CreatedAt is the Unix time the node was first created.
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix time of the last upsert.
	UpdatedAt int64 `json:"updated_at"`
}

// Edge is a directed, weighted relation between two nodes.
type Edge struct {
	ID       int64   `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// TraverseStep is one hop discovered during traversal: the edge that
// first reached Target, with the target node's description.
type TraverseStep struct {
	Source      string `json:"source"`
	Relation    string `json:"relation"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// Store persists the knowledge graph. It shares the metadata database
// with the episodic store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a graph store on an existing database handle.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrating graph schema: %w", err)
	}
	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graph_nodes (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS graph_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		relation TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 1.0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (source) REFERENCES graph_nodes(name),
		FOREIGN KEY (target) REFERENCES graph_nodes(name)
	);

	CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertNode creates a node or merges into an existing one. Descriptions
// accumulate joined by DescriptionSeparator; attributes merge with last
// writer winning per key.
func (s *Store) UpsertNode(ctx context.Context, name, description string, attributes map[string]string) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("node name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	var existing Node
	var attrJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT name, description, attributes, created_at FROM graph_nodes WHERE name = ?`, name,
	).Scan(&existing.Name, &existing.Description, &attrJSON, &existing.CreatedAt)

	switch err {
	case nil:
		// Merge into the existing node
		merged := existing
		merged.UpdatedAt = now

		if description != "" {
			if merged.Description == "" {
				merged.Description = description
			} else {
				merged.Description = merged.Description + DescriptionSeparator + description
			}
		}

		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(attrJSON), &attrs); err != nil {
			return nil, fmt.Errorf("decoding attributes for node %s: %w", name, err)
		}
		for k, v := range attributes {
			attrs[k] = v
		}
		merged.Attributes = attrs

		mergedJSON, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("encoding attributes for node %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE graph_nodes SET description = ?, attributes = ?, updated_at = ? WHERE name = ?`,
			merged.Description, string(mergedJSON), now, name,
		); err != nil {
			return nil, fmt.Errorf("updating node %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing transaction: %w", err)
		}
		return &merged, nil

	case sql.ErrNoRows:
		attrs := attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrJSONBytes, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("encoding attributes for node %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_nodes (name, description, attributes, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			name, description, string(attrJSONBytes), now, now,
		); err != nil {
			return nil, fmt.Errorf("inserting node %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing transaction: %w", err)
		}
		return &Node{
			Name:        name,
			Description: description,
			Attributes:  attrs,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil

	default:
		return nil, fmt.Errorf("checking for existing node %s: %w", name, err)
	}
}

// GetNode retrieves a node by name.
func (s *Store) GetNode(ctx context.Context, name string) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, attributes, created_at, updated_at FROM graph_nodes WHERE name = ?`, name,
	)
	return scanNode(row, name)
}

// AddEdge creates a directed relation between two existing nodes.
// Both endpoints must already exist. A non-positive weight defaults to 1.0.
func (s *Store) AddEdge(ctx context.Context, source, target, relation string, weight float64) (*Edge, error) {
	if weight <= 0 {
		weight = 1.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range []string{source, target} {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM graph_nodes WHERE name = ?`, name,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: node %q", ErrUnknownEntity, name)
		}
		if err != nil {
			return nil, fmt.Errorf("checking node %s: %w", name, err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO graph_edges (source, target, relation, weight, created_at) VALUES (?, ?, ?, ?, ?)`,
		source, target, relation, weight, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting edge: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading edge id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &Edge{
		ID:       id,
		Source:   source,
		Target:   target,
		Relation: relation,
		Weight:   weight,
	}, nil
}

// Traverse walks the graph breadth-first from start, following outgoing
// edges in creation order, up to depth hops. It emits one step per newly
// reached node; edges back into already-visited nodes are not reported,
// so cycles terminate. An unknown start yields an empty result.
func (s *Store) Traverse(ctx context.Context, start string, depth int) ([]TraverseStep, error) {
	if _, err := s.GetNode(ctx, start); err != nil {
		if isUnknown(err) {
			return nil, nil
		}
		return nil, err
	}

	visited := map[string]bool{start: true}
	frontier := []string{start}
	var steps []TraverseStep

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, name := range frontier {
			edges, err := s.outgoingEdges(ctx, name)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if visited[e.Target] {
					continue
				}
				visited[e.Target] = true

				node, err := s.GetNode(ctx, e.Target)
				if err != nil {
					if isUnknown(err) {
						continue
					}
					return nil, err
				}
				steps = append(steps, TraverseStep{
					Source:      name,
					Relation:    e.Relation,
					Target:      e.Target,
					Description: node.Description,
				})
				next = append(next, e.Target)
			}
		}
		frontier = next
	}

	return steps, nil
}

// Nodes returns every node in the graph, in creation order.
func (s *Store) Nodes(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, attributes, created_at, updated_at FROM graph_nodes ORDER BY created_at, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var attrJSON string
		if err := rows.Scan(&n.Name, &n.Description, &attrJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		if err := json.Unmarshal([]byte(attrJSON), &n.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes for node %s: %w", n.Name, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

// Edges returns every edge in the graph, in creation order.
func (s *Store) Edges(ctx context.Context) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, target, relation, weight FROM graph_edges ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// outgoingEdges lists a node's outgoing edges in creation order.
func (s *Store) outgoingEdges(ctx context.Context, source string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, target, relation, weight FROM graph_edges WHERE source = ? ORDER BY id`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("querying edges for %s: %w", source, err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanNode(row *sql.Row, name string) (*Node, error) {
	var n Node
	var attrJSON string
	err := row.Scan(&n.Name, &n.Description, &attrJSON, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: node %q", ErrUnknownEntity, name)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning node %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(attrJSON), &n.Attributes); err != nil {
		return nil, fmt.Errorf("decoding attributes for node %s: %w", name, err)
	}
	return &n, nil
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Relation, &e.Weight); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges: %w", err)
	}
	return edges, nil
}
