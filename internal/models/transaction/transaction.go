package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	Deposit Type = "deposit"
	Payment Type = "payment"
)

type Status string

const (
	Completed Status = "completed"
)

// Transaction is an immutable record of a completed monetary event.
// ProductID and Quantity are set for payments only.
type Transaction struct {
	Date        time.Time       `json:"transaction_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	Type        Type            `json:"transaction_type"`
	Product     *ProductInfo    `json:"product,omitempty"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	Quantity    *int64          `json:"quantity,omitempty"`
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
}

// ProductInfo is the read-side projection of the purchased product.
type ProductInfo struct {
	Name     string        `json:"name"`
	Category *CategoryInfo `json:"category,omitempty"`
	ID       uuid.UUID     `json:"id"`
}

type CategoryInfo struct {
	Label string    `json:"label"`
	ID    uuid.UUID `json:"id"`
}

// CategoryAmount is a per-category spending total.
type CategoryAmount struct {
	Category    string          `json:"category"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CategoryCount is a per-category payment count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"transaction_count"`
}

// TimePoint is a single day of the transactions time series.
type TimePoint struct {
	Date        time.Time       `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int64           `json:"transaction_count"`
}
