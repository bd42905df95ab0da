package engine

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/spool/pkg/embeddings/utils"
	"github.com/papercomputeco/spool/pkg/episodic"
	"github.com/papercomputeco/spool/pkg/graph"
	"github.com/papercomputeco/spool/pkg/ingestion"
	"github.com/papercomputeco/spool/pkg/registry"
	"github.com/papercomputeco/spool/pkg/snapshot"
	vectorutils "github.com/papercomputeco/spool/pkg/vector/utils"
)

// Build assembles a fully wired engine from configuration. The state root
// is resolved through dotdir precedence unless overrideDir is set.
func Build(cfg *config.Config, overrideDir string, logger *zap.Logger) (*Engine, error) {
	ddm := dotdir.NewManager()

	stateRoot, err := ddm.Target(overrideDir)
	if err != nil {
		return nil, fmt.Errorf("resolving state root: %w", err)
	}

	metadataPath := cfg.Storage.MetadataPath
	if metadataPath == "" {
		metadataPath = filepath.Join(stateRoot, dotdir.MetadataFile)
	}
	vectorsPath := cfg.Storage.VectorsPath
	if vectorsPath == "" {
		vectorsPath = filepath.Join(stateRoot, dotdir.VectorsFile)
	}

	store, err := episodic.NewStore(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("opening episodic store: %w", err)
	}

	graphs, err := graph.NewStore(store.DB())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening graph store: %w", err)
	}

	vectors, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		DBPath:       vectorsPath,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening vector driver: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		vectors.Close()
		store.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	snapshots, err := snapshot.NewManager(snapshot.Config{
		Dir:         stateRoot,
		AuthorName:  cfg.Snapshot.AuthorName,
		AuthorEmail: cfg.Snapshot.AuthorEmail,
	}, logger)
	if err != nil {
		vectors.Close()
		store.Close()
		return nil, fmt.Errorf("opening snapshot manager: %w", err)
	}

	return NewEngine(Options{
		Logger:    logger,
		Episodic:  store,
		Vectors:   vectors,
		Graph:     graphs,
		Embedder:  embedder,
		Registry:  registry.NewRegistry(filepath.Join(stateRoot, registry.FileName)),
		Snapshots: snapshots,
		Collector: ingestion.NewCollector(cfg.Sources, logger),
		Policy:    cfg.Consolidation,
	})
}
