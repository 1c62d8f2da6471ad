package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"camrent/storefront/internal/oracle"
)

// AuthSnapshot is the last known signed-in user for a session.
type AuthSnapshot struct {
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SignedIn reports whether the snapshot holds a user.
func (s AuthSnapshot) SignedIn() bool {
	return s.UserID != ""
}

// UserSource is the part of the session oracle the snapshot reads from.
type UserSource interface {
	CurrentUser(ctx context.Context, token string) *oracle.UserRecord
	CurrentUserRole(ctx context.Context, token string) *oracle.UserRole
}

// AuthState is a persisted container for one AuthSnapshot.
type AuthState struct {
	name      string
	persister Persister
	nowFunc   func() time.Time

	mu       sync.RWMutex
	snapshot AuthSnapshot
}

func OpenAuthState(ctx context.Context, name string, p Persister) (*AuthState, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("container name is required")
	}
	if p == nil {
		return nil, fmt.Errorf("persister is required")
	}
	s := &AuthState{name: name, persister: p, nowFunc: time.Now}
	b, err := p.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load container %s: %w", name, err)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &s.snapshot); err != nil {
			return nil, fmt.Errorf("decode container %s: %w", name, err)
		}
	}
	return s, nil
}

// Initialize refreshes the snapshot from src. A token with no user clears it.
func (s *AuthState) Initialize(ctx context.Context, src UserSource, token string) (AuthSnapshot, error) {
	next := AuthSnapshot{}
	if src != nil {
		if u := src.CurrentUser(ctx, token); u != nil {
			next.UserID = u.ID
			next.Username = u.Username
			if role := src.CurrentUserRole(ctx, token); role != nil {
				next.IsAdmin = role.IsAdmin
			}
		}
	}
	return s.replace(ctx, next)
}

// SignOut clears the snapshot.
func (s *AuthState) SignOut(ctx context.Context) error {
	_, err := s.replace(ctx, AuthSnapshot{})
	return err
}

func (s *AuthState) Snapshot() AuthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *AuthState) replace(ctx context.Context, next AuthSnapshot) (AuthSnapshot, error) {
	next.UpdatedAt = s.nowFunc().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(next)
	if err != nil {
		return s.snapshot, fmt.Errorf("encode container %s: %w", s.name, err)
	}
	if err := s.persister.Save(ctx, s.name, b); err != nil {
		return s.snapshot, fmt.Errorf("save container %s: %w", s.name, err)
	}
	s.snapshot = next
	return next, nil
}
