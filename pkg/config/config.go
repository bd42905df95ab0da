package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/spool/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .spool/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in a stable,
// logical order matching the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"storage.metadata_path",
		"storage.vectors_path",
		"api.listen",
		"vector_store.provider",
		"vector_store.target",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"embedding.dimensions",
		"consolidation.promote_threshold",
		"consolidation.prune_threshold",
		"consolidation.history_window",
		"consolidation.surprise_window",
		"auto_ingest.enabled",
		"auto_ingest.log_queries",
		"auto_ingest.log_responses",
		"snapshot.author_name",
		"snapshot.author_email",
	}

	// Sanity: only return keys that actually exist in the map, then append
	// any map keys missing from the ordered list.
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .spool/
// directory. If the file does not exist, returns NewDefaultConfig() so
// callers always receive a fully-populated Config with sane defaults.
// Fields explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = defaults.VectorStore.Provider
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = defaults.Embedding.Provider
	}
	if cfg.Embedding.Target == "" {
		cfg.Embedding.Target = defaults.Embedding.Target
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaults.Embedding.Dimensions
	}

	if cfg.Consolidation.PromoteThreshold == 0 {
		cfg.Consolidation.PromoteThreshold = defaults.Consolidation.PromoteThreshold
	}
	if cfg.Consolidation.PruneThreshold == 0 {
		cfg.Consolidation.PruneThreshold = defaults.Consolidation.PruneThreshold
	}
	if cfg.Consolidation.HistoryWindow == 0 {
		cfg.Consolidation.HistoryWindow = defaults.Consolidation.HistoryWindow
	}
	if cfg.Consolidation.SurpriseWindow == 0 {
		cfg.Consolidation.SurpriseWindow = defaults.Consolidation.SurpriseWindow
	}

	if cfg.Snapshot.AuthorName == "" {
		cfg.Snapshot.AuthorName = defaults.Snapshot.AuthorName
	}
	if cfg.Snapshot.AuthorEmail == "" {
		cfg.Snapshot.AuthorEmail = defaults.Snapshot.AuthorEmail
	}
}

// SaveConfig persists the configuration to config.toml in the target .spool/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV,
// or if any declared ingestion source is invalid.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	if err := ValidateSources(cfg.Sources); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateSources checks every declared ingestion source. Invalid bindings
// fail here, at configuration time, rather than being skipped record by
// record during activity scans.
func ValidateSources(sources []SourceConfig) error {
	for i, src := range sources {
		if src.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if src.Path == "" {
			return fmt.Errorf("source %q: path is required", src.Name)
		}
		if !doublestar.ValidatePattern(src.Path) {
			return fmt.Errorf("source %q: invalid glob pattern %q", src.Name, src.Path)
		}

		switch src.Format {
		case "jsonl", "json":
			if src.Bindings.Content == "" {
				return fmt.Errorf("source %q: %s format requires a content binding", src.Name, src.Format)
			}
		case "text":
			// Whole lines become content; bindings are ignored.
		default:
			return fmt.Errorf("source %q: unsupported format %q (expected jsonl, json, or text)", src.Name, src.Format)
		}
	}

	return nil
}
