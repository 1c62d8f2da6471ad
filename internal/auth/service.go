package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrUserExists         = errors.New("user already exists")
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"

	minPasswordLength = 12
	maxPasswordLength = 128
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)

type Service struct {
	users        UserStore
	pepper       string
	cost         int
	ttl          time.Duration
	nowFunc      func() time.Time
	sessionStore SessionStore
	onExpired    func(sessionID string)

	regMu sync.Mutex

	sessMu   sync.RWMutex
	sessions map[string]Session
}

type ServiceConfig struct {
	PasswordPepper   string
	BcryptCost       int
	SessionTTL       time.Duration
	// SessionStateFile backs sessions with a FileSessionStore when
	// SessionStore is nil.
	SessionStateFile string
	SessionStore     SessionStore
	// OnSessionExpired runs once per session dropped for age, outside
	// the session lock.
	OnSessionExpired func(sessionID string)
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.PasswordPepper == "" {
		return nil, fmt.Errorf("password pepper is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	sessions := cfg.SessionStore
	if sessions == nil && strings.TrimSpace(cfg.SessionStateFile) != "" {
		fileStore, err := NewFileSessionStore(cfg.SessionStateFile)
		if err != nil {
			return nil, err
		}
		sessions = fileStore
	}

	return &Service{
		users:        userStore,
		pepper:       cfg.PasswordPepper,
		cost:         cost,
		ttl:          cfg.SessionTTL,
		nowFunc:      time.Now,
		sessionStore: sessions,
		onExpired:    cfg.OnSessionExpired,
		sessions:     make(map[string]Session),
	}, nil
}

// peppered keeps bcrypt input under its 72 byte limit.
func (s *Service) peppered(password string) []byte {
	sum := sha256.Sum256([]byte(s.pepper + ":" + password))
	return []byte(hex.EncodeToString(sum[:]))
}

func (s *Service) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(s.peppered(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *Service) VerifyPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), s.peppered(password)) == nil
}

// Register creates a customer account. The caller logs in separately.
func (s *Service) Register(username, password string) (User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return User{}, ErrInvalidUsername
	}
	if err := validatePasswordPolicy(password); err != nil {
		return User{}, ErrWeakPassword
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return User{}, err
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()
	if _, err := s.users.GetByUsername(username); err == nil {
		return User{}, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("check username: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Roles:        []string{RoleCustomer},
	}
	if err := s.users.Put(u); err != nil {
		return User{}, fmt.Errorf("store user: %w", err)
	}
	return u, nil
}

func (s *Service) Login(username, password string) (Session, error) {
	u, err := s.users.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	if !s.VerifyPassword(password, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	token, err := generateToken(32)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}

	now := s.nowFunc()
	session := Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    u.ID,
		Username:  u.Username,
		Roles:     append([]string(nil), u.Roles...),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.sessMu.Lock()
	s.sessions[token] = session
	if err := s.persistSessionsLocked(); err != nil {
		delete(s.sessions, token)
		s.sessMu.Unlock()
		return Session{}, err
	}
	s.sessMu.Unlock()

	return session, nil
}

func (s *Service) ValidateToken(token string) (Session, error) {
	s.sessMu.RLock()
	session, ok := s.sessions[token]
	s.sessMu.RUnlock()
	if !ok {
		return Session{}, ErrInvalidToken
	}
	if !session.Expired(s.nowFunc()) {
		return session, nil
	}

	s.sessMu.Lock()
	expired := s.pruneExpiredLocked(s.nowFunc())
	s.sessMu.Unlock()
	s.notifyExpired(expired)
	return Session{}, ErrInvalidToken
}

func (s *Service) Logout(token string) error {
	return s.revoke(func(sess Session) bool { return sess.Token == token })
}

func (s *Service) ChangePassword(token, currentPassword, newPassword string) error {
	if err := validatePasswordPolicy(newPassword); err != nil {
		return ErrWeakPassword
	}

	session, err := s.ValidateToken(token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByUsername(session.Username)
	if err != nil {
		return ErrInvalidCredentials
	}
	if !s.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Put(user); err != nil {
		return fmt.Errorf("store updated password: %w", err)
	}
	return nil
}

func validatePasswordPolicy(password string) error {
	if strings.TrimSpace(password) != password {
		return ErrWeakPassword
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return ErrWeakPassword
	}
	return nil
}

// ListSessions returns live sessions, dropping expired ones first.
func (s *Service) ListSessions() []Session {
	s.sessMu.Lock()
	expired := s.pruneExpiredLocked(s.nowFunc())
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.sessMu.Unlock()

	s.notifyExpired(expired)
	return out
}

func (s *Service) ListSessionViews() []SessionView {
	sessions := s.ListSessions()
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.View())
	}
	return out
}

func (s *Service) RevokeSessionByID(sessionID string) error {
	return s.revoke(func(sess Session) bool { return sess.ID == sessionID })
}

func (s *Service) revoke(match func(Session) bool) error {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	for token, sess := range s.sessions {
		if !match(sess) {
			continue
		}
		delete(s.sessions, token)
		if err := s.persistSessionsLocked(); err != nil {
			s.sessions[token] = sess
			return err
		}
		return nil
	}
	return ErrInvalidToken
}

// pruneExpiredLocked removes expired sessions and returns their IDs.
// A failed save keeps the in-memory removal; the next write retries it.
func (s *Service) pruneExpiredLocked(now time.Time) []string {
	var ids []string
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			ids = append(ids, sess.ID)
		}
	}
	if len(ids) > 0 {
		_ = s.persistSessionsLocked()
	}
	return ids
}

func (s *Service) notifyExpired(ids []string) {
	if s.onExpired == nil {
		return
	}
	for _, id := range ids {
		s.onExpired(id)
	}
}

// LoadSessionState replaces the in-memory session table with the stored one.
func (s *Service) LoadSessionState() error {
	if s.sessionStore == nil {
		return nil
	}
	state, err := s.sessionStore.Load()
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	s.sessMu.Lock()
	s.sessions = state
	s.sessMu.Unlock()
	return nil
}

func (s *Service) persistSessionsLocked() error {
	if s.sessionStore == nil {
		return nil
	}
	if err := s.sessionStore.Save(s.sessions); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func generateToken(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
