// Package snapshot versions the state root with git checkpoints.
package snapshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Checkpoint describes one recorded snapshot.
type Checkpoint struct {
	// Hash is the commit hash of the checkpoint.
	Hash string `json:"hash"`

	// Message is the checkpoint message.
	Message string `json:"message"`

	// Author is the configured snapshot author name.
	Author string `json:"author"`

	// When is the checkpoint time.
	When time.Time `json:"when"`

	// Parent is the hash of the preceding checkpoint, empty for the first.
	Parent string `json:"parent,omitempty"`
}

// Config holds snapshot manager configuration.
type Config struct {
	// Dir is the state root directory to version.
	Dir string

	// AuthorName signs checkpoints.
	AuthorName string

	// AuthorEmail signs checkpoints.
	AuthorEmail string
}

// Manager records checkpoints of the state root. Checkpoints are
// serialized; concurrent callers queue behind a mutex.
type Manager struct {
	repo   *git.Repository
	cfg    Config
	logger *zap.Logger
	mu     sync.Mutex
}

// NewManager opens the repository at cfg.Dir, initializing it if needed.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: snapshot directory is required", ErrSnapshot)
	}

	repo, err := git.PlainOpen(cfg.Dir)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(cfg.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("%w: initializing repository: %v", ErrSnapshot, err)
		}
		logger.Info("initialized snapshot repository", zap.String("dir", cfg.Dir))
	} else if err != nil {
		return nil, fmt.Errorf("%w: opening repository: %v", ErrSnapshot, err)
	}

	return &Manager{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Checkpoint stages everything under the state root and commits it with
// the given message. Empty commits are allowed so a checkpoint always
// succeeds even when nothing changed.
func (m *Manager) Checkpoint(message string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wt, err := m.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: opening worktree: %v", ErrSnapshot, err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("%w: staging state: %v", ErrSnapshot, err)
	}

	now := time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  m.cfg.AuthorName,
			Email: m.cfg.AuthorEmail,
			When:  now,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: committing: %v", ErrSnapshot, err)
	}

	commit, err := m.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: reading commit: %v", ErrSnapshot, err)
	}

	cp := &Checkpoint{
		Hash:    hash.String(),
		Message: message,
		Author:  m.cfg.AuthorName,
		When:    now,
	}
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err == nil {
			cp.Parent = parent.Hash.String()
		}
	}

	m.logger.Info("recorded checkpoint",
		zap.String("hash", cp.Hash),
		zap.String("message", message),
	)

	return cp, nil
}

// History returns checkpoints newest first, up to limit. A non-positive
// limit returns everything.
func (m *Manager) History(limit int) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	head, err := m.repo.Head()
	if err != nil {
		// No commits yet
		return nil, nil
	}

	iter, err := m.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("%w: reading log: %v", ErrSnapshot, err)
	}
	defer iter.Close()

	var out []Checkpoint
	err = iter.ForEach(func(c *object.Commit) error {
		cp := Checkpoint{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		}
		if c.NumParents() > 0 {
			if parent, err := c.Parent(0); err == nil {
				cp.Parent = parent.Hash.String()
			}
		}
		out = append(out, cp)
		if limit > 0 && len(out) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, fmt.Errorf("%w: iterating log: %v", ErrSnapshot, err)
	}

	return out, nil
}

var errStopIteration = fmt.Errorf("stop iteration")
