package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	CreatedAt  time.Time       `json:"created_at"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Category   *Category       `json:"category,omitempty"`
	Merchant   *Merchant       `json:"merchant,omitempty"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	MerchantID *uuid.UUID      `json:"merchant_id,omitempty"`
	Stock      int64           `json:"stock"`
	ID         uuid.UUID       `json:"id"`
}

type Category struct {
	Label string    `json:"label"`
	ID    uuid.UUID `json:"id"`
}

type Merchant struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	ID        uuid.UUID `json:"id"`
}

type Offer struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    *Category  `json:"category,omitempty"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	ID          uuid.UUID  `json:"id"`
}
