package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent spool configuration stored as config.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version       int                 `toml:"version"`
	Storage       StorageConfig       `toml:"storage"`
	API           APIConfig           `toml:"api"`
	VectorStore   VectorStoreConfig   `toml:"vector_store"`
	Embedding     EmbeddingConfig     `toml:"embedding"`
	Consolidation ConsolidationConfig `toml:"consolidation"`
	Snapshot      SnapshotConfig      `toml:"snapshot"`
	AutoIngest    AutoIngestConfig    `toml:"auto_ingest"`
	Sources       []SourceConfig      `toml:"sources"`
}

// StorageConfig holds overrides for the persisted-state file locations.
// When empty, paths are resolved inside the .spool/ state root.
type StorageConfig struct {
	MetadataPath string `toml:"metadata_path,omitempty"`
	VectorsPath  string `toml:"vectors_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ConsolidationConfig holds the novelty policy knobs. The thresholds are
// policy, not algorithm: callers tune them per deployment.
type ConsolidationConfig struct {
	// PromoteThreshold marks interactions above it as candidates for
	// promotion into the knowledge graph.
	PromoteThreshold float64 `toml:"promote_threshold,omitempty"`

	// PruneThreshold marks interactions below it for deletion.
	PruneThreshold float64 `toml:"prune_threshold,omitempty"`

	// HistoryWindow is how many recent interactions consolidation inspects.
	HistoryWindow int `toml:"history_window,omitempty"`

	// SurpriseWindow is how many recent interactions the novelty scorer
	// compares new content against.
	SurpriseWindow int `toml:"surprise_window,omitempty"`
}

// AutoIngestConfig controls automatic capture of retrieval traffic by the
// protocol surface. Pointer fields distinguish an explicit false from an
// absent key; every setting defaults to on.
type AutoIngestConfig struct {
	Enabled      *bool `toml:"enabled,omitempty"`
	LogQueries   *bool `toml:"log_queries,omitempty"`
	LogResponses *bool `toml:"log_responses,omitempty"`
}

// IsEnabled reports whether auto-ingest is on. Defaults to true.
func (a AutoIngestConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// QueriesLogged reports whether retrieval queries are logged. Defaults to true.
func (a AutoIngestConfig) QueriesLogged() bool {
	return a.LogQueries == nil || *a.LogQueries
}

// ResponsesLogged reports whether retrieval responses are logged. Defaults to true.
func (a AutoIngestConfig) ResponsesLogged() bool {
	return a.LogResponses == nil || *a.LogResponses
}

// SnapshotConfig holds the checkpoint author identity.
type SnapshotConfig struct {
	AuthorName  string `toml:"author_name,omitempty"`
	AuthorEmail string `toml:"author_email,omitempty"`
}

// SourceConfig declares one external activity source for the read-only
// ingestion feed. Bindings are validated when the config is parsed so a
// bad mapping fails at load time, not silently at scan time.
type SourceConfig struct {
	// Name labels the source in activity reports.
	Name string `toml:"name"`

	// Format is one of "jsonl", "json", or "text".
	Format string `toml:"format"`

	// Path is a glob pattern (doublestar ** supported) to the log files.
	Path string `toml:"path"`

	// Bindings maps record fields by dotted path into the activity shape.
	Bindings SourceBindings `toml:"bindings"`
}

// SourceBindings are the per-record field paths for a structured source.
// Paths use dotted notation for nested fields (e.g. "metadata.created_at").
type SourceBindings struct {
	Timestamp      string `toml:"timestamp,omitempty"`
	Role           string `toml:"role,omitempty"`
	Content        string `toml:"content,omitempty"`
	Project        string `toml:"project,omitempty"`
	ConversationID string `toml:"conversation_id,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported scalar config keys.
// Keys use dotted notation matching the TOML section structure. The
// [[sources]] list is edited in the file directly, not through get/set.
var configKeys = map[string]configKeyInfo{
	"storage.metadata_path": {
		get: func(c *Config) string { return c.Storage.MetadataPath },
		set: func(c *Config, v string) error { c.Storage.MetadataPath = v; return nil },
	},
	"storage.vectors_path": {
		get: func(c *Config) string { return c.Storage.VectorsPath },
		set: func(c *Config, v string) error { c.Storage.VectorsPath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"consolidation.promote_threshold": {
		get: func(c *Config) string { return formatFloat(c.Consolidation.PromoteThreshold) },
		set: func(c *Config, v string) error {
			f, err := parseFloat(v, "consolidation.promote_threshold")
			if err != nil {
				return err
			}
			c.Consolidation.PromoteThreshold = f
			return nil
		},
	},
	"consolidation.prune_threshold": {
		get: func(c *Config) string { return formatFloat(c.Consolidation.PruneThreshold) },
		set: func(c *Config, v string) error {
			f, err := parseFloat(v, "consolidation.prune_threshold")
			if err != nil {
				return err
			}
			c.Consolidation.PruneThreshold = f
			return nil
		},
	},
	"consolidation.history_window": {
		get: func(c *Config) string { return strconv.Itoa(c.Consolidation.HistoryWindow) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.history_window: %w", err)
			}
			c.Consolidation.HistoryWindow = n
			return nil
		},
	},
	"consolidation.surprise_window": {
		get: func(c *Config) string { return strconv.Itoa(c.Consolidation.SurpriseWindow) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for consolidation.surprise_window: %w", err)
			}
			c.Consolidation.SurpriseWindow = n
			return nil
		},
	},
	"auto_ingest.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.AutoIngest.IsEnabled()) },
		set: func(c *Config, v string) error {
			b, err := parseBool(v, "auto_ingest.enabled")
			if err != nil {
				return err
			}
			c.AutoIngest.Enabled = &b
			return nil
		},
	},
	"auto_ingest.log_queries": {
		get: func(c *Config) string { return strconv.FormatBool(c.AutoIngest.QueriesLogged()) },
		set: func(c *Config, v string) error {
			b, err := parseBool(v, "auto_ingest.log_queries")
			if err != nil {
				return err
			}
			c.AutoIngest.LogQueries = &b
			return nil
		},
	},
	"auto_ingest.log_responses": {
		get: func(c *Config) string { return strconv.FormatBool(c.AutoIngest.ResponsesLogged()) },
		set: func(c *Config, v string) error {
			b, err := parseBool(v, "auto_ingest.log_responses")
			if err != nil {
				return err
			}
			c.AutoIngest.LogResponses = &b
			return nil
		},
	},
	"snapshot.author_name": {
		get: func(c *Config) string { return c.Snapshot.AuthorName },
		set: func(c *Config, v string) error { c.Snapshot.AuthorName = v; return nil },
	},
	"snapshot.author_email": {
		get: func(c *Config) string { return c.Snapshot.AuthorEmail },
		set: func(c *Config, v string) error { c.Snapshot.AuthorEmail = v; return nil },
	},
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseFloat(v, key string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return f, nil
}

func parseBool(v, key string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b, nil
}
