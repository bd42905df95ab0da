package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SPOOL_ prefix.
//
// Config precedence (highest to lowest):
//  1. Environment variables (SPOOL_API_LISTEN, SPOOL_EMBEDDING_MODEL, etc.)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SPOOL_API_LISTEN, SPOOL_STORAGE_METADATA_PATH, etc.
	v.SetEnvPrefix("SPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.metadata_path", d.Storage.MetadataPath)
	v.SetDefault("storage.vectors_path", d.Storage.VectorsPath)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Consolidation policy
	v.SetDefault("consolidation.promote_threshold", d.Consolidation.PromoteThreshold)
	v.SetDefault("consolidation.prune_threshold", d.Consolidation.PruneThreshold)
	v.SetDefault("consolidation.history_window", d.Consolidation.HistoryWindow)
	v.SetDefault("consolidation.surprise_window", d.Consolidation.SurpriseWindow)

	// Auto-ingest
	v.SetDefault("auto_ingest.enabled", d.AutoIngest.IsEnabled())
	v.SetDefault("auto_ingest.log_queries", d.AutoIngest.QueriesLogged())
	v.SetDefault("auto_ingest.log_responses", d.AutoIngest.ResponsesLogged())

	// Snapshot author
	v.SetDefault("snapshot.author_name", d.Snapshot.AuthorName)
	v.SetDefault("snapshot.author_email", d.Snapshot.AuthorEmail)
}
