package offset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Compile-time assertion that FileStore satisfies Store.
var _ Store = (*FileStore)(nil)

// FileStore persists offsets as a single JSON object file mapping storage
// keys to seconds. The whole map is rewritten on every Set; offset writes
// are rare (a user nudging sync by hand) so simplicity wins over an
// append-only format.
type FileStore struct {
	mu      sync.Mutex
	path    string
	offsets map[string]float64
}

// NewFileStore opens (or creates) the offset file at path. An unreadable or
// corrupted file is logged and treated as empty rather than failing startup:
// losing saved offsets degrades sync comfort, nothing more.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("offset: path must not be empty")
	}

	s := &FileStore{path: path, offsets: make(map[string]float64)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run.
	case err != nil:
		slog.Warn("offset store unreadable, starting empty", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &s.offsets); err != nil {
			slog.Warn("offset store corrupted, starting empty", "path", path, "error", err)
			s.offsets = make(map[string]float64)
		}
	}
	return s, nil
}

// Get implements Store.
func (s *FileStore) Get(ownerID, textHash string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[storageKey(ownerID, textHash)]
}

// Set implements Store.
func (s *FileStore) Set(ownerID, textHash string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offsets[storageKey(ownerID, textHash)] = seconds

	data, err := json.Marshal(s.offsets)
	if err != nil {
		return fmt.Errorf("offset: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("offset: write %q: %w", s.path, err)
	}
	return nil
}
