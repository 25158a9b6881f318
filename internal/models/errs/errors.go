package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common sentinel errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrDataConflict       = errors.New("data conflict")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRequiredBodyParam  = errors.New("required body parameter missing")
)

// Type just for marshalling purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// InsufficientStockError reports a purchase of more units
// than the product has in stock.
type InsufficientStockError struct {
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}

// InsufficientFundsError reports a purchase exceeding the account balance.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance. Required: %s, Available: %s",
		e.Required, e.Available)
}

// Let users know which required request parameter is not provided.
type RequiredJSONBodyParamError struct {
	ParamName string
}

func (e *RequiredJSONBodyParamError) Error() string {
	return fmt.Sprintf("JSON body argument %q is required, but not found", e.ParamName)
}

// Unwrap makes the typed error match the ErrRequiredBodyParam
// sentinel with errors.Is.
func (e *RequiredJSONBodyParamError) Unwrap() error {
	return ErrRequiredBodyParam
}

// Provides details at which field unique violation has occurred.
type AlreadyExistsError struct {
	FieldName string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("record with field %q already exists", e.FieldName)
}

// InvalidAuthorizationError wraps authorization failures.
type InvalidAuthorizationError struct {
	Message string
}

func (e *InvalidAuthorizationError) Error() string {
	return fmt.Sprintf("invalid authorization data: %s", e.Message)
}
