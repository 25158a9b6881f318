package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/avdeevlv/livin-market/internal/config"
	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/transaction"
	"github.com/avdeevlv/livin-market/internal/models/user"
	"github.com/avdeevlv/livin-market/pkg/logger"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service executes ledger units of work and serves the read projections.
// Every mutation runs inside a single database transaction; row locks are
// acquired before any check and released only at commit or rollback.
type Service struct {
	repo        Repository
	trm         trm.Manager
	logger      logger.Logger
	accrualRate decimal.Decimal
}

func NewService(repo Repository, trm trm.Manager, logger logger.Logger, config *config.Config) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	return &Service{
		repo:        repo,
		trm:         trm,
		logger:      logger,
		accrualRate: decimal.NewFromFloat(config.Loyalty.AccrualRate),
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// Deposit funds into the user's account (POST /api/v1/transactions/deposit).
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request, params DepositParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	t := &transaction.Transaction{
		UserID:      u.ID,
		TotalAmount: params.Amount,
		Status:      transaction.Completed,
		Type:        transaction.Deposit,
	}

	err := s.trm.Do(r.Context(), func(ctx context.Context) error {
		// Serialize concurrent deposits and payments against this account.
		if _, err := s.repo.GetAccountForUpdate(ctx, u.ID); err != nil {
			return err
		}
		if err := s.repo.AddToBalance(ctx, u.ID, params.Amount); err != nil {
			return err
		}
		return s.repo.CreateTransaction(ctx, t)
	})
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("deposit: %w", err))
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(t); err != nil {
		s.logger.Errorf("encode response: %s", err)
	}
}

// Pay for a product (POST /api/v1/transactions/pay).
//
// Both the account row and the product row are locked before any
// check is evaluated, so two concurrent payments cannot jointly
// overdraw the balance or the stock.
func (s *Service) Pay(w http.ResponseWriter, r *http.Request, params PayParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	t := &transaction.Transaction{
		UserID:    u.ID,
		ProductID: &params.ProductID,
		Quantity:  &params.Quantity,
		Status:    transaction.Completed,
		Type:      transaction.Payment,
	}

	err := s.trm.Do(r.Context(), func(ctx context.Context) error {
		acc, err := s.repo.GetAccountForUpdate(ctx, u.ID)
		if err != nil {
			return err
		}

		prod, err := s.repo.GetProductForUpdate(ctx, params.ProductID)
		if err != nil {
			return err
		}

		if prod.Stock < params.Quantity {
			return &errs.InsufficientStockError{
				ProductName: prod.Name,
				Available:   prod.Stock,
				Requested:   params.Quantity,
			}
		}

		totalCost := prod.Amount.Mul(decimal.NewFromInt(params.Quantity))
		if acc.Balance.LessThan(totalCost) {
			return &errs.InsufficientFundsError{
				Required:  totalCost,
				Available: acc.Balance,
			}
		}

		points := totalCost.Mul(s.accrualRate).Floor().IntPart()

		if err = s.repo.ApplyPayment(ctx, u.ID, totalCost, points); err != nil {
			return err
		}
		if err = s.repo.DecrementStock(ctx, prod.ID, params.Quantity); err != nil {
			return err
		}

		t.TotalAmount = totalCost

		return s.repo.CreateTransaction(ctx, t)
	})
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(t); err != nil {
		s.logger.Errorf("encode response: %s", err)
	}
}

// Get a single transaction owned by the user (GET /api/v1/transactions/{id}).
func (s *Service) GetTransaction(w http.ResponseWriter, r *http.Request, transactionID uuid.UUID) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	t, err := s.repo.GetTransactionByID(r.Context(), transactionID, u.ID)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.NewEncoder(w).Encode(t); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
}

// Get the paginated transaction history (GET /api/v1/transactions).
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request, params ListParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	items, total, err := s.repo.ListTransactions(r.Context(), TransactionFilter{
		UserID:        u.ID,
		CategoryLabel: params.Category,
		Start:         params.Start,
		End:           params.End,
		Limit:         params.Size,
		Offset:        (params.Page - 1) * params.Size,
	})
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	history := TransactionHistory{
		Items: items,
		Total: total,
		Page:  params.Page,
		Size:  params.Size,
	}

	if err = json.NewEncoder(w).Encode(history); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
}

// Get spending grouped by category (GET /api/v1/analytics/amount-per-category).
func (s *Service) GetAmountPerCategory(w http.ResponseWriter, r *http.Request, params RangeParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	amounts, err := s.repo.AmountPerCategory(r.Context(), u.ID, params.Start, params.End)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.NewEncoder(w).Encode(amounts); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
}

// Get payment counts grouped by category (GET /api/v1/analytics/count-per-category).
func (s *Service) GetCountPerCategory(w http.ResponseWriter, r *http.Request, params RangeParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	counts, err := s.repo.CountPerCategory(r.Context(), u.ID, params.Start, params.End)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.NewEncoder(w).Encode(counts); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
}

// Get the per-day transactions time series (GET /api/v1/analytics/time-series).
func (s *Service) GetTimeSeries(w http.ResponseWriter, r *http.Request, params SeriesParams) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	points, err := s.repo.TimeSeries(r.Context(), u.ID, params.Start, params.End)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.NewEncoder(w).Encode(TimeSeriesResponse{Data: points}); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	var stockErr *errs.InsufficientStockError
	var fundsErr *errs.InsufficientFundsError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest) ||
		errors.Is(err, errs.ErrInvalidPayload) ||
		errors.Is(err, errs.ErrInvalidContentType) ||
		errors.Is(err, errs.ErrRequiredBodyParam):
		code = http.StatusBadRequest

	// Status Payment Required (402).
	case errors.As(err, &fundsErr):
		code = http.StatusPaymentRequired

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrProductNotFound):
		code = http.StatusNotFound

	// Status Conflict (409).
	case errors.As(err, &stockErr) ||
		errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict
	}

	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
