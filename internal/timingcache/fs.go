package timingcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/eliasvob/readsync/pkg/timing"
)

// Compile-time assertion that FileStore satisfies Store.
var _ Store = (*FileStore)(nil)

// keyComponentRe constrains key components to filesystem-safe characters.
// Text hashes are hex and owner ids are expected to be opaque identifiers;
// anything else is rejected rather than path-escaped.
var keyComponentRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore persists timing sets as one JSON object per key under
// basePath/timings/{ownerID}/{textHash}.json. Writes go through a temp file
// and rename so a crashed write never leaves a truncated entry behind.
type FileStore struct {
	basePath string
}

// NewFileStore creates a FileStore rooted at basePath, creating the timings
// directory if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		return nil, errors.New("timingcache: basePath must not be empty")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "timings"), 0o755); err != nil {
		return nil, fmt.Errorf("timingcache: create directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Get implements Store. A missing file is a plain miss; an unreadable or
// corrupted file is logged and reported as a miss.
func (s *FileStore) Get(_ context.Context, key Key) (*timing.Set, bool) {
	path, err := s.entryPath(key)
	if err != nil {
		slog.Warn("timing cache key rejected", "owner_id", key.OwnerID, "error", err)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("timing cache read failed, treating as miss", "path", path, "error", err)
		}
		return nil, false
	}

	var set timing.Set
	if err := json.Unmarshal(data, &set); err != nil {
		slog.Warn("timing cache entry corrupted, treating as miss", "path", path, "error", err)
		return nil, false
	}
	return &set, true
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, key Key, set *timing.Set) error {
	path, err := s.entryPath(key)
	if err != nil {
		return fmt.Errorf("timingcache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("timingcache: create owner directory: %w", err)
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("timingcache: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".timing-*")
	if err != nil {
		return fmt.Errorf("timingcache: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("timingcache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("timingcache: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("timingcache: rename: %w", err)
	}
	return nil
}

// entryPath returns the content-addressed path for key after validating that
// its components cannot escape the cache directory.
func (s *FileStore) entryPath(key Key) (string, error) {
	if !keyComponentRe.MatchString(key.OwnerID) || !keyComponentRe.MatchString(key.TextHash) {
		return "", fmt.Errorf("invalid cache key %q/%q", key.OwnerID, key.TextHash)
	}
	return filepath.Join(s.basePath, "timings", key.OwnerID, key.TextHash+".json"), nil
}
