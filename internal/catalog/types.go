package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusAvailable   = "available"
	StatusRented      = "rented"
	StatusMaintenance = "maintenance"
)

// Camera is a rentable catalog entry.
type Camera struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Model      string          `json:"model"`
	DailyRate  decimal.Decimal `json:"daily_rate"`
	Currency   string          `json:"currency"`
	ImageURL   string          `json:"image_url,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ModifiedAt time.Time       `json:"modified_at"`
}

func (c Camera) Clone() Camera {
	return c
}
