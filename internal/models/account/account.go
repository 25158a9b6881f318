package account

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds the monetary state of a single user.
// HeldBalance is reserved funds; no operation mutates it yet.
type Account struct {
	Balance      decimal.Decimal `json:"balance"`
	HeldBalance  decimal.Decimal `json:"holded_balance"`
	LivingPoints int64           `json:"living_points"`
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
}
