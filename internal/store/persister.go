package store

import (
	"context"
	"sync"
)

// Persister is durable key-value storage keyed by container name. Load returns
// nil, nil for a name that was never saved; Delete of a missing name is not an error.
type Persister interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// MemoryPersister keeps payloads in process memory. It backs tests and runs
// without durable storage.
type MemoryPersister struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (p *MemoryPersister) Load(_ context.Context, name string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.data[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), b...), nil
}

func (p *MemoryPersister) Save(_ context.Context, name string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[name] = append([]byte(nil), data...)
	return nil
}

func (p *MemoryPersister) Delete(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, name)
	return nil
}
