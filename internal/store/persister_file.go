package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FilePersister stores each container as a JSON file under dir.
type FilePersister struct {
	dir string
	mu  sync.Mutex
}

func NewFilePersister(dir string) (*FilePersister, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	return &FilePersister{dir: dir}, nil
}

func (p *FilePersister) path(name string) string {
	return filepath.Join(p.dir, url.QueryEscape(name)+".json")
}

func (p *FilePersister) Load(_ context.Context, name string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, err := os.ReadFile(p.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read container file: %w", err)
	}
	return b, nil
}

func (p *FilePersister) Save(_ context.Context, name string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}
	target := p.path(name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write container file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace container file: %w", err)
	}
	return nil
}

func (p *FilePersister) Delete(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.Remove(p.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove container file: %w", err)
	}
	return nil
}
