package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileProvider persists each key as a JSON file in a directory. Writes go
// through a temp file plus rename so readers never observe partial content.
// TTLs are ignored: registry snapshots have no natural expiry on disk.
type FileProvider struct {
	mu  sync.Mutex
	dir string
}

// NewFileProvider creates the backing directory if needed.
func NewFileProvider(dir string) (*FileProvider, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileProvider{dir: dir}, nil
}

// Get reads the file for key, reporting ErrNotFound when absent.
func (p *FileProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set writes the value atomically.
func (p *FileProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Del removes the file for key; deleting an absent key is not an error.
func (p *FileProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (p *FileProvider) Close() error { return nil }

func (p *FileProvider) path(key string) string {
	// Keys contain namespace colons; keep filenames portable.
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(p.dir, name+".json")
}
