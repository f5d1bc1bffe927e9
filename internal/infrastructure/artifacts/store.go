// Package artifacts stores rendered certificate documents.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when no artifact exists at path.
var ErrNotFound = errors.New("artifact not found")

// Store persists opaque artifacts addressed by a relative name and returns the stored path.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// LocalStore writes artifacts under Dir.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifacts: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create %s: %w", dir, err)
	}
	return &LocalStore{Dir: dir}, nil
}

func (s *LocalStore) resolve(name string) (string, error) {
	clean := filepath.Clean("/" + name)
	if strings.Contains(name, "..") || clean == "/" {
		return "", fmt.Errorf("artifacts: invalid name %q", name)
	}
	return filepath.Join(s.Dir, clean), nil
}

// Put writes atomically via a temp file and rename.
func (s *LocalStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	full, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("artifacts: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("artifacts: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("artifacts: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("artifacts: rename: %w", err)
	}
	return name, nil
}

func (s *LocalStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
