package config

const (
	defaultAPIListen = ":8090"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultPromoteThreshold = 0.5
	defaultPruneThreshold   = 0.1
	defaultHistoryWindow    = 100
	defaultSurpriseWindow   = 50

	defaultSnapshotAuthorName  = "Spool Agent"
	defaultSnapshotAuthorEmail = "agent@spool.local"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Consolidation: ConsolidationConfig{
			PromoteThreshold: defaultPromoteThreshold,
			PruneThreshold:   defaultPruneThreshold,
			HistoryWindow:    defaultHistoryWindow,
			SurpriseWindow:   defaultSurpriseWindow,
		},
		Snapshot: SnapshotConfig{
			AuthorName:  defaultSnapshotAuthorName,
			AuthorEmail: defaultSnapshotAuthorEmail,
		},
	}
}
