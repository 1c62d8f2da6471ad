// Package oracle answers "is this caller signed in?" and "is this caller an admin?"
// on top of the auth backend. Every backend failure, including a timeout, is logged
// and mapped to the conservative answer: not authenticated, no role.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Session is the backend's view of a token.
type Session struct {
	IsActive bool
	UserID   string
}

// UserRecord is the user behind an active session.
type UserRecord struct {
	ID       string
	Username string
	Roles    []string
}

type UserRole struct {
	IsAdmin bool `json:"is_admin"`
}

// Backend is the auth/session service consulted by the oracle.
type Backend interface {
	GetSession(ctx context.Context, token string) (Session, error)
	// GetUser returns nil, nil when no user is bound to the token.
	GetUser(ctx context.Context, token string) (*UserRecord, error)
}

// AdminFlags is the data-store lookup behind role checks.
type AdminFlags interface {
	GetAdminFlag(ctx context.Context, userID string) (bool, error)
}

type Config struct {
	// Timeout bounds each backend call. Zero disables the bound.
	Timeout time.Duration
	// UserCacheTTL is how long a fetched user record is reused. Zero disables caching.
	UserCacheTTL time.Duration
	Logger       *slog.Logger
}

type cachedUser struct {
	user      UserRecord
	expiresAt time.Time
}

type Oracle struct {
	backend Backend
	admins  AdminFlags
	timeout time.Duration
	ttl     time.Duration
	log     *slog.Logger
	nowFunc func() time.Time

	mu    sync.Mutex
	users map[string]cachedUser
}

func New(backend Backend, admins AdminFlags, cfg Config) (*Oracle, error) {
	if backend == nil {
		return nil, fmt.Errorf("auth backend is required")
	}
	if admins == nil {
		return nil, fmt.Errorf("admin flag store is required")
	}
	if cfg.Timeout < 0 || cfg.UserCacheTTL < 0 {
		return nil, fmt.Errorf("oracle durations must be >= 0")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Oracle{
		backend: backend,
		admins:  admins,
		timeout: cfg.Timeout,
		ttl:     cfg.UserCacheTTL,
		log:     logger,
		nowFunc: time.Now,
		users:   make(map[string]cachedUser),
	}, nil
}

// IsAuthenticated reports whether token belongs to an active session. It never
// returns an error; failures read as false.
func (o *Oracle) IsAuthenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	sess, err := bounded(ctx, o.timeout, func(ctx context.Context) (Session, error) {
		return o.backend.GetSession(ctx, token)
	})
	if err != nil {
		o.log.WarnContext(ctx, "session lookup failed", "error", err)
		return false
	}
	return sess.IsActive
}

// CurrentUser returns the user bound to token, or nil when there is none or the
// lookup fails.
func (o *Oracle) CurrentUser(ctx context.Context, token string) *UserRecord {
	if token == "" {
		return nil
	}
	if u, ok := o.cached(token); ok {
		return &u
	}
	user, err := bounded(ctx, o.timeout, func(ctx context.Context) (*UserRecord, error) {
		return o.backend.GetUser(ctx, token)
	})
	if err != nil {
		o.log.WarnContext(ctx, "user lookup failed", "error", err)
		return nil
	}
	if user == nil || user.ID == "" {
		return nil
	}
	out := cloneUser(*user)
	o.remember(token, out)
	return &out
}

// CurrentUserRole returns the caller's role, or nil when no user is present or the
// admin flag cannot be read.
func (o *Oracle) CurrentUserRole(ctx context.Context, token string) *UserRole {
	user := o.CurrentUser(ctx, token)
	if user == nil {
		return nil
	}
	isAdmin, err := bounded(ctx, o.timeout, func(ctx context.Context) (bool, error) {
		return o.admins.GetAdminFlag(ctx, user.ID)
	})
	if err != nil {
		o.log.WarnContext(ctx, "admin flag lookup failed", "user_id", user.ID, "error", err)
		return nil
	}
	return &UserRole{IsAdmin: isAdmin}
}

// Forget drops the cached user record for token, e.g. after sign-out.
func (o *Oracle) Forget(token string) {
	o.mu.Lock()
	delete(o.users, token)
	o.mu.Unlock()
}

func (o *Oracle) cached(token string) (UserRecord, bool) {
	if o.ttl <= 0 {
		return UserRecord{}, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.users[token]
	if !ok {
		return UserRecord{}, false
	}
	if !o.nowFunc().Before(c.expiresAt) {
		delete(o.users, token)
		return UserRecord{}, false
	}
	return cloneUser(c.user), true
}

func (o *Oracle) remember(token string, u UserRecord) {
	if o.ttl <= 0 {
		return
	}
	now := o.nowFunc()
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, c := range o.users {
		if !now.Before(c.expiresAt) {
			delete(o.users, k)
		}
	}
	o.users[token] = cachedUser{user: cloneUser(u), expiresAt: now.Add(o.ttl)}
}

func cloneUser(u UserRecord) UserRecord {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}

var errBackendPanic = errors.New("auth backend panicked")

// bounded runs fn with a deadline. The call keeps running in its goroutine after a
// timeout but its result is discarded; fn is expected to honour ctx.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- result{val: zero, err: fmt.Errorf("%w: %v", errBackendPanic, r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
