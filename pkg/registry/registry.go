// Package registry maps project paths to active conversation IDs.
//
// The registry is a small JSON file in the state root. Each project (keyed
// by its absolute path) holds exactly one active conversation at a time;
// resolving a project either returns the existing ID or mints a fresh one.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the registry file name inside the state root.
const FileName = "registry.json"

// Entry records the active conversation for a project.
type Entry struct {
	ConversationID string `json:"conversation_id"`
	StartedAt      int64  `json:"started_at"`
}

// Registry persists the project-to-conversation mapping.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry creates a registry backed by the file at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Resolve returns the active conversation ID for a project, creating a new
// one if the project has none. Resolving twice without a Reset in between
// returns the same ID.
func (r *Registry) Resolve(projectPath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return "", err
	}

	key := normalizeKey(projectPath)
	if entry, ok := entries[key]; ok && entry.ConversationID != "" {
		return entry.ConversationID, nil
	}

	id := newConversationID()
	entries[key] = Entry{
		ConversationID: id,
		StartedAt:      time.Now().Unix(),
	}

	if err := r.save(entries); err != nil {
		return "", err
	}
	return id, nil
}

// Reset unconditionally assigns a new conversation ID to the project and
// returns it.
func (r *Registry) Reset(projectPath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return "", err
	}

	id := newConversationID()
	entries[normalizeKey(projectPath)] = Entry{
		ConversationID: id,
		StartedAt:      time.Now().Unix(),
	}

	if err := r.save(entries); err != nil {
		return "", err
	}
	return id, nil
}

// Entries returns a copy of the full project-to-conversation mapping.
func (r *Registry) Entries() (map[string]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// load reads the registry file. A missing file yields an empty mapping.
func (r *Registry) load() (map[string]Entry, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	entries := map[string]Entry{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing registry: %w", err)
		}
	}
	return entries, nil
}

// save writes the registry file atomically via a rename.
func (r *Registry) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}

// newConversationID mints an ID of the form auto_<UTC timestamp>_<uuid8>.
func newConversationID() string {
	ts := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("auto_%s_%s", ts, uuid.NewString()[:8])
}

// normalizeKey makes the project key stable across relative spellings.
func normalizeKey(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return projectPath
	}
	return abs
}
