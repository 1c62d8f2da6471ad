package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PGService struct {
	db      *sql.DB
	nowFunc func() time.Time
}

func NewPGService(db *sql.DB) (*PGService, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PGService{
		db:      db,
		nowFunc: time.Now,
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGService) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS cameras (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	brand TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	daily_rate NUMERIC(12,2) NOT NULL,
	currency CHAR(3) NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	modified_at TIMESTAMPTZ NOT NULL
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure cameras schema: %w", err)
	}
	return nil
}

const cameraColumns = `id, name, brand, model, daily_rate, currency, image_url, status, created_at, modified_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCamera(row scanner) (Camera, error) {
	var c Camera
	err := row.Scan(&c.ID, &c.Name, &c.Brand, &c.Model, &c.DailyRate, &c.Currency, &c.ImageURL, &c.Status, &c.CreatedAt, &c.ModifiedAt)
	c.Currency = strings.TrimSpace(c.Currency)
	return c, err
}

func (s *PGService) Create(c Camera) (Camera, error) {
	c, err := normalize(c)
	if err != nil {
		return Camera{}, err
	}
	now := s.nowFunc().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.ModifiedAt = now

	const q = `
INSERT INTO cameras
  (` + cameraColumns + `)
VALUES
  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := s.db.Exec(q, c.ID, c.Name, c.Brand, c.Model, c.DailyRate, c.Currency, c.ImageURL, c.Status, c.CreatedAt, c.ModifiedAt); err != nil {
		return Camera{}, fmt.Errorf("insert camera: %w", err)
	}
	return c, nil
}

func (s *PGService) List(status string) ([]Camera, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	q := `SELECT ` + cameraColumns + ` FROM cameras`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	out := make([]Camera, 0)
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cameras: %w", err)
	}
	return out, nil
}

func (s *PGService) Get(id string) (Camera, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Camera{}, ErrNotFound
	}
	q := `SELECT ` + cameraColumns + ` FROM cameras WHERE id = $1`
	c, err := scanCamera(s.db.QueryRow(q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Camera{}, ErrNotFound
		}
		return Camera{}, fmt.Errorf("get camera: %w", err)
	}
	return c, nil
}

func (s *PGService) Update(id string, c Camera) (Camera, error) {
	c, err := normalize(c)
	if err != nil {
		return Camera{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Camera{}, ErrNotFound
	}

	const q = `
UPDATE cameras
SET name = $2,
	brand = $3,
	model = $4,
	daily_rate = $5,
	currency = $6,
	image_url = $7,
	status = $8,
	modified_at = $9
WHERE id = $1`
	res, err := s.db.Exec(q, id, c.Name, c.Brand, c.Model, c.DailyRate, c.Currency, c.ImageURL, c.Status, s.nowFunc().UTC())
	if err != nil {
		return Camera{}, fmt.Errorf("update camera: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return Camera{}, err
	}
	return s.Get(id)
}

func (s *PGService) SetStatus(id, status string) (Camera, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return Camera{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Camera{}, ErrNotFound
	}
	const q = `UPDATE cameras SET status = $2, modified_at = $3 WHERE id = $1`
	res, err := s.db.Exec(q, id, status, s.nowFunc().UTC())
	if err != nil {
		return Camera{}, fmt.Errorf("update camera status: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return Camera{}, err
	}
	return s.Get(id)
}

// Rent flips status from available to rented in one conditional UPDATE.
func (s *PGService) Rent(id string) (Camera, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Camera{}, ErrNotFound
	}
	q := `
UPDATE cameras
SET status = $2, modified_at = $3
WHERE id = $1 AND status = $4
RETURNING ` + cameraColumns
	c, err := scanCamera(s.db.QueryRow(q, id, StatusRented, s.nowFunc().UTC(), StatusAvailable))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Camera{}, fmt.Errorf("rent camera: %w", err)
	}
	if _, err := s.Get(id); err != nil {
		return Camera{}, err
	}
	return Camera{}, ErrUnavailable
}

func (s *PGService) Delete(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	const q = `DELETE FROM cameras WHERE id = $1`
	res, err := s.db.Exec(q, id)
	if err != nil {
		return fmt.Errorf("delete camera: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
