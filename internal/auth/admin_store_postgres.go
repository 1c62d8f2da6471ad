package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresAdminStore reads the admin flag from admin_users. A user without a
// row is not an admin.
type PostgresAdminStore struct {
	db *sql.DB
}

func NewPostgresAdminStore(db *sql.DB) (*PostgresAdminStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresAdminStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresAdminStore) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS admin_users (
	user_id TEXT PRIMARY KEY,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure admin_users schema: %w", err)
	}
	return nil
}

func (s *PostgresAdminStore) GetAdminFlag(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	const q = `SELECT is_admin FROM admin_users WHERE user_id = $1`
	var isAdmin bool
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(&isAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query admin flag: %w", err)
	}
	return isAdmin, nil
}

func (s *PostgresAdminStore) SetAdminFlag(ctx context.Context, userID string, isAdmin bool) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	const q = `
INSERT INTO admin_users (user_id, is_admin, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE
SET is_admin = EXCLUDED.is_admin,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, userID, isAdmin); err != nil {
		return fmt.Errorf("upsert admin flag: %w", err)
	}
	return nil
}
