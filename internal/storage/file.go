package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps each client's storage in its own directory, one file per key
type FileBackend struct {
	root string
	mu   sync.Mutex
}

// NewFileBackend creates root if needed
func NewFileBackend(root string) (*FileBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileBackend{root: root}, nil
}

// For returns the storage rooted at root/clientID
func (b *FileBackend) For(clientID string) (LocalStorage, error) {
	if !validName(clientID) {
		return nil, ErrInvalidKey
	}
	return &fileStorage{dir: filepath.Join(b.root, clientID), mu: &b.mu}, nil
}

// Close releases nothing
func (b *FileBackend) Close() error { return nil }

type fileStorage struct {
	dir string
	mu  *sync.Mutex
}

func (s *fileStorage) path(key string) (string, error) {
	if !validName(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *fileStorage) GetItem(key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(raw), true, nil
}

// SetItem writes through a temp file and a rename so readers never see a partial value
func (s *fileStorage) SetItem(key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create client dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *fileStorage) RemoveItem(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
