package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// FileStore persists credentials as a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored credentials. A missing file yields empty credentials.
func (s *FileStore) Load(_ context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (Credentials, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}

func (s *FileStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	return writeJSONAtomic(s.path, creds)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove()
}

// CompareAndClear removes the file if it still holds refreshToken. An
// unreadable file is removed as well.
func (s *FileStore) CompareAndClear(_ context.Context, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if err == nil && creds.RefreshToken != refreshToken {
		return false, nil
	}
	if err := s.remove(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err == nil {
		return nil
	}

	defer os.Remove(tmp)

	if runtime.GOOS == "windows" {
		_ = os.Remove(path)
	}
	return os.Rename(tmp, path)
}

var (
	_ Store             = (*FileStore)(nil)
	_ CompareAndClearer = (*FileStore)(nil)
)
