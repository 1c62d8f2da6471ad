package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresPersister stores containers as JSONB rows in state_containers.
type PostgresPersister struct {
	db *sql.DB
}

func NewPostgresPersister(db *sql.DB) (*PostgresPersister, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	p := &PostgresPersister{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PostgresPersister) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS state_containers (
	name TEXT PRIMARY KEY,
	payload JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := p.db.Exec(q); err != nil {
		return fmt.Errorf("ensure state_containers schema: %w", err)
	}
	return nil
}

func (p *PostgresPersister) Load(ctx context.Context, name string) ([]byte, error) {
	const q = `SELECT payload FROM state_containers WHERE name = $1`
	var payload []byte
	if err := p.db.QueryRowContext(ctx, q, name).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query container %s: %w", name, err)
	}
	return payload, nil
}

func (p *PostgresPersister) Save(ctx context.Context, name string, data []byte) error {
	const q = `
INSERT INTO state_containers (name, payload, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE
SET payload = EXCLUDED.payload,
	updated_at = NOW()`
	if _, err := p.db.ExecContext(ctx, q, name, data); err != nil {
		return fmt.Errorf("upsert container %s: %w", name, err)
	}
	return nil
}

func (p *PostgresPersister) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM state_containers WHERE name = $1`
	if _, err := p.db.ExecContext(ctx, q, name); err != nil {
		return fmt.Errorf("delete container %s: %w", name, err)
	}
	return nil
}
