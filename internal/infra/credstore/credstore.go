// Package credstore persists external-source connection parameters across
// restarts in a single JSON file, keyed by operator.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/domain"
)

// FileStore is a mutex-guarded JSON file of per-operator source configs.
// The data set is a handful of entries, so every write rewrites the file.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileStore creates a store backed by the given file path. The file is
// created lazily on first write.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) load() (map[string]*domain.SourceConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*domain.SourceConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	entries := map[string]*domain.SourceConfig{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode credential file: %w", err)
		}
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]*domain.SourceConfig) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	// Write via a temp file so a crash mid-write never truncates the store.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Get returns the stored config for an operator, if any.
func (s *FileStore) Get(userID string) (*domain.SourceConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, false, err
	}
	cfg, ok := entries[userID]
	return cfg, ok, nil
}

// Set stores or replaces the config for an operator.
func (s *FileStore) Set(userID string, cfg *domain.SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[userID] = cfg
	if err := s.save(entries); err != nil {
		return err
	}

	s.logger.Debug("credentials stored",
		zap.String("user_id", userID),
		zap.String("project_id", cfg.Credentials.ProjectID),
	)
	return nil
}

// Remove deletes the config for an operator. Removing an absent entry is a
// no-op.
func (s *FileStore) Remove(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[userID]; !ok {
		return nil
	}
	delete(entries, userID)
	return s.save(entries)
}
