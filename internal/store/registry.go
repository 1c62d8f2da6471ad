package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	cartPrefix  = "cart:"
	savedPrefix = "saved:"
	authPrefix  = "auth:"
)

// Registry hands out one Container per name so concurrent requests for the same
// user share state.
type Registry struct {
	persister Persister

	mu   sync.Mutex
	open map[string]*Container
	auth map[string]*AuthState
}

func NewRegistry(p Persister) (*Registry, error) {
	if p == nil {
		return nil, fmt.Errorf("persister is required")
	}
	return &Registry{
		persister: p,
		open:      make(map[string]*Container),
		auth:      make(map[string]*AuthState),
	}, nil
}

// Cart returns the rental cart for userID.
func (r *Registry) Cart(ctx context.Context, userID string) (*Container, error) {
	return r.container(ctx, cartPrefix, userID)
}

// Saved returns the saved-for-later list for userID.
func (r *Registry) Saved(ctx context.Context, userID string) (*Container, error) {
	return r.container(ctx, savedPrefix, userID)
}

// Auth returns the auth snapshot container for sessionID.
func (r *Registry) Auth(ctx context.Context, sessionID string) (*AuthState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	name := authPrefix + sessionID

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.auth[name]; ok {
		return s, nil
	}
	s, err := OpenAuthState(ctx, name, r.persister)
	if err != nil {
		return nil, err
	}
	r.auth[name] = s
	return s, nil
}

// Drop forgets any open container named name and deletes its persisted payload.
func (r *Registry) Drop(ctx context.Context, name string) error {
	r.mu.Lock()
	delete(r.open, name)
	delete(r.auth, name)
	r.mu.Unlock()
	return r.persister.Delete(ctx, name)
}

// DropAuth removes the auth snapshot for sessionID.
func (r *Registry) DropAuth(ctx context.Context, sessionID string) error {
	return r.Drop(ctx, authPrefix+strings.TrimSpace(sessionID))
}

func (r *Registry) container(ctx context.Context, prefix, owner string) (*Container, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("container owner is required")
	}
	name := prefix + owner

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.open[name]; ok {
		return c, nil
	}
	c, err := Open(ctx, name, r.persister)
	if err != nil {
		return nil, err
	}
	r.open[name] = c
	return c, nil
}
