// Package catalog manages the rentable camera catalog.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

var (
	ErrNotFound     = errors.New("camera not found")
	ErrInvalidInput = errors.New("invalid camera input")
	ErrUnavailable  = errors.New("camera is not available")
	allowedStatuses = map[string]struct{}{StatusAvailable: {}, StatusRented: {}, StatusMaintenance: {}}
)

type Service struct {
	nowFunc   func() time.Time
	stateFile string

	mu      sync.RWMutex
	cameras map[string]Camera
}

func NewService() *Service {
	return &Service{
		nowFunc: time.Now,
		cameras: make(map[string]Camera),
	}
}

func NewServiceWithFile(stateFile string) (*Service, error) {
	s := &Service{
		nowFunc:   time.Now,
		stateFile: strings.TrimSpace(stateFile),
		cameras:   make(map[string]Camera),
	}
	if s.stateFile == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Create(c Camera) (Camera, error) {
	c, err := normalize(c)
	if err != nil {
		return Camera{}, err
	}

	now := s.nowFunc().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.ModifiedAt = now

	s.mu.Lock()
	prev := cloneCameras(s.cameras)
	s.cameras[c.ID] = c.Clone()
	if err := s.persistLocked(); err != nil {
		s.cameras = prev
		s.mu.Unlock()
		return Camera{}, err
	}
	s.mu.Unlock()

	return c, nil
}

// List returns cameras in creation order. An empty status matches every camera.
func (s *Service) List(status string) ([]Camera, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	s.mu.RLock()
	cameras := make([]Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		if status != "" && c.Status != status {
			continue
		}
		cameras = append(cameras, c.Clone())
	}
	s.mu.RUnlock()

	sortCameras(cameras)
	return cameras, nil
}

func (s *Service) Get(id string) (Camera, error) {
	s.mu.RLock()
	c, ok := s.cameras[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return Camera{}, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Service) Update(id string, c Camera) (Camera, error) {
	c, err := normalize(c)
	if err != nil {
		return Camera{}, err
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	prev := cloneCameras(s.cameras)
	existing, ok := s.cameras[id]
	if !ok {
		s.mu.Unlock()
		return Camera{}, ErrNotFound
	}

	existing.Name = c.Name
	existing.Brand = c.Brand
	existing.Model = c.Model
	existing.DailyRate = c.DailyRate
	existing.Currency = c.Currency
	existing.ImageURL = c.ImageURL
	existing.Status = c.Status
	existing.ModifiedAt = s.nowFunc().UTC()
	s.cameras[id] = existing.Clone()
	if err := s.persistLocked(); err != nil {
		s.cameras = prev
		s.mu.Unlock()
		return Camera{}, err
	}
	s.mu.Unlock()

	return existing, nil
}

func (s *Service) SetStatus(id, status string) (Camera, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return Camera{}, err
	}
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cameras[id]
	if !ok {
		return Camera{}, ErrNotFound
	}
	prev := cloneCameras(s.cameras)
	existing.Status = status
	existing.ModifiedAt = s.nowFunc().UTC()
	s.cameras[id] = existing.Clone()
	if err := s.persistLocked(); err != nil {
		s.cameras = prev
		return Camera{}, err
	}
	return existing, nil
}

// Rent moves an available camera to rented. It fails with ErrUnavailable when the
// camera is rented or in maintenance, so at most one caller wins.
func (s *Service) Rent(id string) (Camera, error) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cameras[id]
	if !ok {
		return Camera{}, ErrNotFound
	}
	if existing.Status != StatusAvailable {
		return Camera{}, ErrUnavailable
	}
	prev := cloneCameras(s.cameras)
	existing.Status = StatusRented
	existing.ModifiedAt = s.nowFunc().UTC()
	s.cameras[id] = existing.Clone()
	if err := s.persistLocked(); err != nil {
		s.cameras = prev
		return Camera{}, err
	}
	return existing, nil
}

func (s *Service) Delete(id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneCameras(s.cameras)
	if _, ok := s.cameras[id]; !ok {
		return ErrNotFound
	}
	delete(s.cameras, id)
	if err := s.persistLocked(); err != nil {
		s.cameras = prev
		return err
	}
	return nil
}

func (s *Service) loadState() error {
	b, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read catalog state: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	var decoded []Camera
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode catalog state: %w", err)
	}
	for _, c := range decoded {
		if c.ID == "" {
			continue
		}
		s.cameras[c.ID] = c.Clone()
	}
	return nil
}

func (s *Service) persistLocked() error {
	if s.stateFile == "" {
		return nil
	}
	out := make([]Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		out = append(out, c.Clone())
	}
	sortCameras(out)

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir catalog state dir: %w", err)
	}
	if err := os.WriteFile(s.stateFile, b, 0o644); err != nil {
		return fmt.Errorf("write catalog state: %w", err)
	}
	return nil
}

func cloneCameras(src map[string]Camera) map[string]Camera {
	out := make(map[string]Camera, len(src))
	for k, v := range src {
		out[k] = v.Clone()
	}
	return out
}

func sortCameras(cameras []Camera) {
	sort.Slice(cameras, func(i, j int) bool {
		if cameras[i].CreatedAt.Equal(cameras[j].CreatedAt) {
			return cameras[i].ID < cameras[j].ID
		}
		return cameras[i].CreatedAt.Before(cameras[j].CreatedAt)
	})
}

// normalize trims and validates c, returning the stored form.
func normalize(c Camera) (Camera, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Brand = strings.TrimSpace(c.Brand)
	c.Model = strings.TrimSpace(c.Model)
	c.ImageURL = strings.TrimSpace(c.ImageURL)

	if c.Name == "" {
		return Camera{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if c.Brand == "" {
		return Camera{}, fmt.Errorf("%w: brand is required", ErrInvalidInput)
	}
	if !c.DailyRate.IsPositive() {
		return Camera{}, fmt.Errorf("%w: daily_rate must be greater than zero", ErrInvalidInput)
	}
	if !c.DailyRate.Equal(c.DailyRate.Round(2)) {
		return Camera{}, fmt.Errorf("%w: daily_rate allows at most two decimal places", ErrInvalidInput)
	}
	c.DailyRate = c.DailyRate.Round(2)

	code := strings.TrimSpace(c.Currency)
	if code == "" {
		code = "USD"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Camera{}, fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidInput, code)
	}
	c.Currency = unit.String()

	if c.ImageURL != "" {
		u, err := url.Parse(c.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Camera{}, fmt.Errorf("%w: image_url must be an absolute http(s) URL", ErrInvalidInput)
		}
	}

	if c.Status == "" {
		c.Status = StatusAvailable
	}
	c.Status, err = normalizeStatus(c.Status)
	if err != nil {
		return Camera{}, err
	}
	return c, nil
}

func normalizeStatus(status string) (string, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := allowedStatuses[status]; !ok {
		return "", fmt.Errorf("%w: status must be available, rented, or maintenance", ErrInvalidInput)
	}
	return status, nil
}
