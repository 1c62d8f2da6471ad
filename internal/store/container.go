// Package store holds the storefront's persisted state containers: per-user carts,
// saved items and auth snapshots. Containers load once when opened and write through
// to their Persister after every mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidItem  = errors.New("invalid container item")
	ErrItemNotFound = errors.New("item not in container")
)

const StatusRented = "rented"

// Item is a container entry. ID is the only field the container interprets; the rest
// is display data copied from the catalog when the item was added.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Brand     string          `json:"brand,omitempty"`
	Model     string          `json:"model,omitempty"`
	DailyRate decimal.Decimal `json:"daily_rate"`
	Currency  string          `json:"currency,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	Status    string          `json:"status,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

// Container is an ordered collection of items with unique IDs.
type Container struct {
	name      string
	persister Persister
	nowFunc   func() time.Time

	mu    sync.RWMutex
	items []Item
}

// Open loads the named container from p. A container that was never saved opens empty.
func Open(ctx context.Context, name string, p Persister) (*Container, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("container name is required")
	}
	if p == nil {
		return nil, fmt.Errorf("persister is required")
	}
	c := &Container{
		name:      name,
		persister: p,
		nowFunc:   time.Now,
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) Name() string {
	return c.name
}

// Add appends item unless an item with the same ID is already present. It reports
// whether the container changed.
func (c *Container) Add(ctx context.Context, item Item) (bool, error) {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return false, fmt.Errorf("%w: id is required", ErrInvalidItem)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(item.ID) >= 0 {
		return false, nil
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = c.nowFunc().UTC()
	}

	prev := c.items
	c.items = append(cloneItems(c.items), item)
	if err := c.persistLocked(ctx); err != nil {
		c.items = prev
		return false, err
	}
	return true, nil
}

// Remove deletes the item with id. Removing an absent id is a no-op.
func (c *Container) Remove(ctx context.Context, id string) (bool, error) {
	_, ok, err := c.take(ctx, id)
	return ok, err
}

// Rent removes the item from the container and returns it marked as rented.
func (c *Container) Rent(ctx context.Context, id string) (Item, error) {
	item, ok, err := c.take(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !ok {
		return Item{}, ErrItemNotFound
	}
	item.Status = StatusRented
	return item, nil
}

// All returns a copy of the items in insertion order.
func (c *Container) All() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneItems(c.items)
}

func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Container) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexLocked(strings.TrimSpace(id)) >= 0
}

func (c *Container) take(ctx context.Context, id string) (Item, bool, error) {
	id = strings.TrimSpace(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexLocked(id)
	if idx < 0 {
		return Item{}, false, nil
	}

	prev := c.items
	removed := c.items[idx]
	next := make([]Item, 0, len(c.items)-1)
	next = append(next, c.items[:idx]...)
	next = append(next, c.items[idx+1:]...)
	c.items = next
	if err := c.persistLocked(ctx); err != nil {
		c.items = prev
		return Item{}, false, err
	}
	return removed, true, nil
}

func (c *Container) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Container) load(ctx context.Context) error {
	b, err := c.persister.Load(ctx, c.name)
	if err != nil {
		return fmt.Errorf("load container %s: %w", c.name, err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Item
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode container %s: %w", c.name, err)
	}
	seen := make(map[string]struct{}, len(decoded))
	for _, it := range decoded {
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		c.items = append(c.items, it)
	}
	return nil
}

func (c *Container) persistLocked(ctx context.Context) error {
	items := c.items
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode container %s: %w", c.name, err)
	}
	if err := c.persister.Save(ctx, c.name, b); err != nil {
		return fmt.Errorf("save container %s: %w", c.name, err)
	}
	return nil
}

func cloneItems(src []Item) []Item {
	return append(make([]Item, 0, len(src)), src...)
}
