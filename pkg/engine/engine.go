// Package engine wires the memory components into one coordinated object.
//
// The engine owns the dual-store discipline: the episodic store is
// authoritative and commits first; the vector index is a best-effort
// derived projection that Reconcile can rebuild at any time.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/embeddings"
	"github.com/papercomputeco/spool/pkg/episodic"
	"github.com/papercomputeco/spool/pkg/graph"
	"github.com/papercomputeco/spool/pkg/ingestion"
	"github.com/papercomputeco/spool/pkg/registry"
	"github.com/papercomputeco/spool/pkg/snapshot"
	"github.com/papercomputeco/spool/pkg/surprise"
	"github.com/papercomputeco/spool/pkg/vector"
)

// Engine coordinates the episodic log, vector index, knowledge graph,
// conversation registry, and snapshot history.
type Engine struct {
	logger    *zap.Logger
	episodic  *episodic.Store
	vectors   vector.Driver
	graph     *graph.Store
	embedder  embeddings.Embedder
	scorer    *surprise.Scorer
	registry  *registry.Registry
	snapshots *snapshot.Manager
	collector *ingestion.Collector
	policy    config.ConsolidationConfig
}

// Options holds the engine's dependencies.
type Options struct {
	Logger    *zap.Logger
	Episodic  *episodic.Store
	Vectors   vector.Driver
	Graph     *graph.Store
	Embedder  embeddings.Embedder
	Registry  *registry.Registry
	Snapshots *snapshot.Manager
	Collector *ingestion.Collector
	Policy    config.ConsolidationConfig
}

// NewEngine creates an engine from its component parts.
func NewEngine(o Options) (*Engine, error) {
	if o.Episodic == nil {
		return nil, fmt.Errorf("episodic store is required")
	}
	if o.Vectors == nil {
		return nil, fmt.Errorf("vector driver is required")
	}
	if o.Graph == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if o.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := o.Policy
	if policy.HistoryWindow <= 0 {
		policy.HistoryWindow = 100
	}
	if policy.SurpriseWindow <= 0 {
		policy.SurpriseWindow = 50
	}

	return &Engine{
		logger:    logger,
		episodic:  o.Episodic,
		vectors:   o.Vectors,
		graph:     o.Graph,
		embedder:  o.Embedder,
		scorer:    surprise.NewScorer(),
		registry:  o.Registry,
		snapshots: o.Snapshots,
		collector: o.Collector,
		policy:    policy,
	}, nil
}

// IngestResult describes one recorded interaction.
type IngestResult struct {
	ID             int64   `json:"id"`
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	SurpriseScore  float64 `json:"surprise_score"`
	Timestamp      int64   `json:"timestamp"`
}

// Ingest embeds and scores an interaction, appends it to the episodic log,
// and mirrors it into the vector index. An embedding failure aborts the
// whole ingest; an index failure does not, since the index is rebuildable.
func (e *Engine) Ingest(ctx context.Context, conversationID, role, content string) (*IngestResult, error) {
	embedding, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embedding interaction: %w", err)
	}

	history, err := e.recentEmbeddings(ctx, conversationID, e.policy.SurpriseWindow)
	if err != nil {
		return nil, fmt.Errorf("loading surprise history: %w", err)
	}

	score := e.scorer.Score(embedding, history)

	// Metadata first: the episodic row is the authoritative record.
	in, err := e.episodic.Append(ctx, conversationID, role, content, score)
	if err != nil {
		return nil, err
	}

	// Index second, best effort.
	rec := vector.Record{
		ID:             strconv.FormatInt(in.ID, 10),
		Content:        content,
		Role:           role,
		ConversationID: conversationID,
		Timestamp:      in.Timestamp,
		Embedding:      embedding,
	}
	if err := e.vectors.Add(ctx, []vector.Record{rec}); err != nil {
		e.logger.Warn("vector index write failed, interaction recorded without index entry",
			zap.Int64("id", in.ID),
			zap.Error(err),
		)
	}

	e.logger.Debug("ingested interaction",
		zap.Int64("id", in.ID),
		zap.String("conversation_id", conversationID),
		zap.Float64("surprise_score", score),
	)

	return &IngestResult{
		ID:             in.ID,
		ConversationID: conversationID,
		Role:           role,
		SurpriseScore:  score,
		Timestamp:      in.Timestamp,
	}, nil
}

// recentEmbeddings gathers the embeddings of the most recent interactions
// in a conversation. The episodic rows are authoritative: every one of
// them contributes to the history, with the vector index consulted only
// as an embedding cache. A row whose embedding can neither be read nor
// recomputed fails the load so the caller never scores against a
// silently truncated history.
func (e *Engine) recentEmbeddings(ctx context.Context, conversationID string, window int) ([][]float32, error) {
	recent, err := e.episodic.Recent(ctx, conversationID, window)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	ids := make([]string, len(recent))
	for i, in := range recent {
		ids[i] = strconv.FormatInt(in.ID, 10)
	}

	cached := make(map[string][]float32, len(recent))
	if recs, err := e.vectors.Get(ctx, ids); err != nil {
		e.logger.Warn("vector index read failed, re-embedding history from the episodic log",
			zap.Error(err),
		)
	} else {
		for _, rec := range recs {
			if len(rec.Embedding) > 0 {
				cached[rec.ID] = rec.Embedding
			}
		}
	}

	history := make([][]float32, 0, len(recent))
	for _, in := range recent {
		if emb, ok := cached[strconv.FormatInt(in.ID, 10)]; ok {
			history = append(history, emb)
			continue
		}
		emb, err := e.embedder.Embed(ctx, in.Content)
		if err != nil {
			return nil, fmt.Errorf("embedding history interaction %d: %w", in.ID, err)
		}
		history = append(history, emb)
	}
	return history, nil
}

// Retrieve embeds a query and returns the topK most similar interactions.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]vector.QueryResult, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := e.vectors.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	return results, nil
}

// ConsolidateResult summarizes one consolidation pass.
type ConsolidateResult struct {
	// Promoted lists high-surprise interactions that are candidates for
	// the caller to formalize into knowledge nodes. Consolidation never
	// writes to the graph itself.
	Promoted []episodic.Interaction `json:"promoted"`

	// PrunedCount is the number of low-surprise interactions removed.
	PrunedCount int `json:"pruned_count"`
}

// Consolidate selects high-surprise interactions as promotion candidates
// and prunes low-surprise ones from both stores. The caller decides what
// to do with the candidates; the semantic graph stays caller-owned.
// Selection happens before pruning so an interaction can never be both.
func (e *Engine) Consolidate(ctx context.Context, conversationID string) (*ConsolidateResult, error) {
	recent, err := e.episodic.Recent(ctx, conversationID, e.policy.HistoryWindow)
	if err != nil {
		return nil, err
	}

	result := &ConsolidateResult{}

	for _, in := range recent {
		if in.SurpriseScore > e.policy.PromoteThreshold {
			result.Promoted = append(result.Promoted, in)
		}
	}

	pruned, err := e.episodic.DeleteBelow(ctx, conversationID, e.policy.PruneThreshold)
	if err != nil {
		return nil, err
	}
	result.PrunedCount = len(pruned)

	if len(pruned) > 0 {
		ids := make([]string, len(pruned))
		for i, id := range pruned {
			ids[i] = strconv.FormatInt(id, 10)
		}
		if err := e.vectors.Delete(ctx, ids); err != nil {
			e.logger.Warn("vector index prune failed, reconcile will catch up",
				zap.Error(err),
			)
		}
	}

	e.logger.Info("consolidated conversation",
		zap.String("conversation_id", conversationID),
		zap.Int("promoted", len(result.Promoted)),
		zap.Int("pruned", result.PrunedCount),
	)

	return result, nil
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	// Reindexed is the number of episodic rows re-embedded into the index.
	Reindexed int `json:"reindexed"`

	// Removed is the number of orphaned index records deleted.
	Removed int `json:"removed"`

	// Skipped counts rows whose re-embedding failed.
	Skipped int `json:"skipped"`
}

// Reconcile makes the vector index agree with the episodic store: rows
// missing from the index are re-embedded and added, index records with no
// episodic row are removed.
func (e *Engine) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	interactions, err := e.episodic.All(ctx)
	if err != nil {
		return nil, err
	}

	indexIDs, err := e.vectors.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing index records: %w", err)
	}
	indexed := make(map[string]bool, len(indexIDs))
	for _, id := range indexIDs {
		indexed[id] = true
	}

	result := &ReconcileResult{}

	known := make(map[string]bool, len(interactions))
	for _, in := range interactions {
		id := strconv.FormatInt(in.ID, 10)
		known[id] = true

		if indexed[id] {
			continue
		}

		embedding, err := e.embedder.Embed(ctx, in.Content)
		if err != nil {
			e.logger.Warn("re-embedding failed during reconcile",
				zap.Int64("id", in.ID),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}

		rec := vector.Record{
			ID:             id,
			Content:        in.Content,
			Role:           in.Role,
			ConversationID: in.ConversationID,
			Timestamp:      in.Timestamp,
			Embedding:      embedding,
		}
		if err := e.vectors.Add(ctx, []vector.Record{rec}); err != nil {
			return nil, fmt.Errorf("reindexing interaction %d: %w", in.ID, err)
		}
		result.Reindexed++
	}

	var orphans []string
	for _, id := range indexIDs {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		if err := e.vectors.Delete(ctx, orphans); err != nil {
			return nil, fmt.Errorf("removing orphaned index records: %w", err)
		}
		result.Removed = len(orphans)
	}

	e.logger.Info("reconciled vector index",
		zap.Int("reindexed", result.Reindexed),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

// Graph exposes the knowledge graph store.
func (e *Engine) Graph() *graph.Store {
	return e.graph
}

// Episodic exposes the episodic store.
func (e *Engine) Episodic() *episodic.Store {
	return e.episodic
}

// ResolveConversation returns the active conversation for a project,
// creating one if needed.
func (e *Engine) ResolveConversation(projectPath string) (string, error) {
	if e.registry == nil {
		return "", fmt.Errorf("no registry configured")
	}
	return e.registry.Resolve(projectPath)
}

// StartConversation assigns a fresh conversation to a project.
func (e *Engine) StartConversation(projectPath string) (string, error) {
	if e.registry == nil {
		return "", fmt.Errorf("no registry configured")
	}
	return e.registry.Reset(projectPath)
}

// Snapshot records a checkpoint of the state root. An empty message gets a
// timestamped default.
func (e *Engine) Snapshot(message string) (*snapshot.Checkpoint, error) {
	if e.snapshots == nil {
		return nil, fmt.Errorf("no snapshot manager configured")
	}
	if message == "" {
		message = fmt.Sprintf("Memory snapshot %s", time.Now().UTC().Format(time.RFC3339))
	}
	return e.snapshots.Checkpoint(message)
}

// SnapshotHistory lists recorded checkpoints, newest first.
func (e *Engine) SnapshotHistory(limit int) ([]snapshot.Checkpoint, error) {
	if e.snapshots == nil {
		return nil, fmt.Errorf("no snapshot manager configured")
	}
	return e.snapshots.History(limit)
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.vectors.Close(); err != nil {
		firstErr = err
	}
	if err := e.episodic.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
