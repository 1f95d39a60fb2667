package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
)

const (
	stateExt   = ".json"
	historyExt = ".history.json"
)

// DefaultPath is used when New is given an empty base path.
var DefaultPath = filepath.Join(".dialogtree", "sessions")

// Store implements ports.SessionStore using the local filesystem.
// Each session is kept as <id>.json (state) and <id>.history.json (history)
// in BasePath. Writes are atomic.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultPath
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sessionID, ext string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("sessionID cannot be empty")
	}
	if strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid sessionID %q", sessionID)
	}
	return filepath.Join(s.BasePath, sessionID+ext), nil
}

// Save persists the session state to a JSON file atomically.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	dest, err := s.path(sessionID, stateExt)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return writeAtomic(dest, data)
}

// Load retrieves the session state from its JSON file.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	src, err := s.path(sessionID, stateExt)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	if state.Context == nil {
		state.Context = make(map[string]string)
	}
	return &state, nil
}

// Delete removes both session files.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	for _, ext := range []string{stateExt, historyExt} {
		p, err := s.path(sessionID, ext)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
	}
	return nil
}

// List returns the ids of stored sessions in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") ||
			strings.HasSuffix(name, historyExt) || !strings.HasSuffix(name, stateExt) {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, stateExt))
	}
	sort.Strings(sessions)
	return sessions, nil
}

// SaveHistory writes the serialized tree atomically.
func (s *Store) SaveHistory(ctx context.Context, sessionID string, tree *history.Tree) error {
	dest, err := s.path(sessionID, historyExt)
	if err != nil {
		return err
	}
	return WriteHistoryFile(dest, tree)
}

// LoadHistory reads and strictly parses the session's history file.
func (s *Store) LoadHistory(ctx context.Context, sessionID string) (*history.Tree, error) {
	src, err := s.path(sessionID, historyExt)
	if err != nil {
		return nil, err
	}
	tree, err := ReadHistoryFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrSessionNotFound
	}
	return tree, err
}

// WriteHistoryFile saves tree to path in the history document format.
func WriteHistoryFile(path string, tree *history.Tree) error {
	data, err := tree.Serialize()
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// ReadHistoryFile loads a history document. Malformed documents fail with a
// *domain.FormatError; a missing file fails with an error wrapping os.ErrNotExist.
func ReadHistoryFile(path string) (*history.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return history.Deserialize(data)
}
