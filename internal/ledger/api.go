package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/transaction"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dateLayout is the wire format of all date query parameters.
const dateLayout = "2006-01-02"

// DepositParams defines parameters for Deposit.
type DepositParams struct {
	Amount decimal.Decimal `json:"amount"`
}

// PayParams defines parameters for Pay.
type PayParams struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// ListParams defines parameters for GetTransactions.
type ListParams struct {
	Start    *time.Time
	End      *time.Time
	Category string
	Page     int
	Size     int
}

// RangeParams defines the optional date range of the category breakdowns.
type RangeParams struct {
	Start *time.Time
	End   *time.Time
}

// SeriesParams defines the required date range of the time series.
type SeriesParams struct {
	Start time.Time
	End   time.Time
}

// TransactionHistory is the paginated history response.
type TransactionHistory struct {
	Items []*transaction.Transaction `json:"items"`
	Total int64                      `json:"total"`
	Page  int                        `json:"page"`
	Size  int                        `json:"size"`
}

// TimeSeriesResponse wraps the per-day data points.
type TimeSeriesResponse struct {
	Data []*transaction.TimePoint `json:"data"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Deposit funds (POST /api/v1/transactions/deposit).
	Deposit(w http.ResponseWriter, r *http.Request, params DepositParams)
	// Pay for a product (POST /api/v1/transactions/pay).
	Pay(w http.ResponseWriter, r *http.Request, params PayParams)
	// Get one transaction (GET /api/v1/transactions/{transactionID}).
	GetTransaction(w http.ResponseWriter, r *http.Request, transactionID uuid.UUID)
	// Get transaction history (GET /api/v1/transactions).
	GetTransactions(w http.ResponseWriter, r *http.Request, params ListParams)
	// Get spending per category (GET /api/v1/analytics/amount-per-category).
	GetAmountPerCategory(w http.ResponseWriter, r *http.Request, params RangeParams)
	// Get payment count per category (GET /api/v1/analytics/count-per-category).
	GetCountPerCategory(w http.ResponseWriter, r *http.Request, params RangeParams)
	// Get per-day time series (GET /api/v1/analytics/time-series).
	GetTimeSeries(w http.ResponseWriter, r *http.Request, params SeriesParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// Deposit operation middleware.
func (siw *ServerInterfaceWrapper) Deposit(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s",
			errs.ErrInvalidContentType, r.Header.Get("Content-Type")))
		return
	}

	var params DepositParams

	if err := decodeBody(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	// ------------- Required positive "amount" -----------------------

	if !params.Amount.IsPositive() {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: amount must be positive",
			errs.ErrInvalidRequest))
		return
	}

	siw.Handler.Deposit(w, r, params)
}

// Pay operation middleware.
func (siw *ServerInterfaceWrapper) Pay(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s",
			errs.ErrInvalidContentType, r.Header.Get("Content-Type")))
		return
	}

	var params PayParams

	if err := decodeBody(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	// ------------- Required "product_id" ----------------------------

	if params.ProductID == uuid.Nil {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "product_id"})
		return
	}

	// ------------- Required positive "quantity" ---------------------

	if params.Quantity <= 0 {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: quantity must be positive",
			errs.ErrInvalidRequest))
		return
	}

	siw.Handler.Pay(w, r, params)
}

// GetTransaction operation middleware.
func (siw *ServerInterfaceWrapper) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: transaction id: %s",
			errs.ErrInvalidRequest, err))
		return
	}

	siw.Handler.GetTransaction(w, r, id)
}

// GetTransactions operation middleware.
func (siw *ServerInterfaceWrapper) GetTransactions(w http.ResponseWriter, r *http.Request) {
	params := ListParams{Page: 1, Size: 10}
	query := r.URL.Query()

	var err error

	// ------------- Optional "page", must be >= 1 --------------------

	if v := query.Get("page"); v != "" {
		params.Page, err = strconv.Atoi(v)
		if err != nil || params.Page < 1 {
			siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: page must be a positive number",
				errs.ErrInvalidRequest))
			return
		}
	}

	// ------------- Optional "size", one of 5, 10, 20 ----------------

	if v := query.Get("size"); v != "" {
		params.Size, err = strconv.Atoi(v)
		if err != nil || !isAllowedPageSize(params.Size) {
			siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: size must be one of 5, 10, 20",
				errs.ErrInvalidRequest))
			return
		}
	}

	params.Category = query.Get("category")

	// ------------- Optional inclusive date range --------------------

	params.Start, params.End, err = parseDateRange(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetTransactions(w, r, params)
}

// GetAmountPerCategory operation middleware.
func (siw *ServerInterfaceWrapper) GetAmountPerCategory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetAmountPerCategory(w, r, RangeParams{Start: start, End: end})
}

// GetCountPerCategory operation middleware.
func (siw *ServerInterfaceWrapper) GetCountPerCategory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetCountPerCategory(w, r, RangeParams{Start: start, End: end})
}

// GetTimeSeries operation middleware. Both bounds are required.
func (siw *ServerInterfaceWrapper) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	if start == nil || end == nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf(
			"%w: start_date and end_date are required", errs.ErrInvalidRequest))
		return
	}

	siw.Handler.GetTimeSeries(w, r, SeriesParams{Start: *start, End: *end})
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
	// Middlewares applied to the mutation endpoints only.
	MutationMiddlewares []MiddlewareFunc
}

// Handler creates http.Handler with routing matching spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}

		r.Group(func(r chi.Router) {
			for _, middleware := range options.MutationMiddlewares {
				r.Use(middleware)
			}
			r.Post(options.BaseURL+"/transactions/deposit", wrapper.Deposit)
			r.Post(options.BaseURL+"/transactions/pay", wrapper.Pay)
		})

		r.Get(options.BaseURL+"/transactions", wrapper.GetTransactions)
		r.Get(options.BaseURL+"/transactions/{transactionID}", wrapper.GetTransaction)
		r.Get(options.BaseURL+"/analytics/amount-per-category", wrapper.GetAmountPerCategory)
		r.Get(options.BaseURL+"/analytics/count-per-category", wrapper.GetCountPerCategory)
		r.Get(options.BaseURL+"/analytics/time-series", wrapper.GetTimeSeries)
	})

	return r
}

// parseDateRange reads the optional start_date and end_date query
// parameters and rejects ranges where start is after end.
func parseDateRange(r *http.Request) (start, end *time.Time, err error) {
	query := r.URL.Query()

	if v := query.Get("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: start_date: %s", errs.ErrInvalidRequest, err)
		}
		start = &t
	}

	if v := query.Get("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: end_date: %s", errs.ErrInvalidRequest, err)
		}
		end = &t
	}

	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("%w: start date cannot be after end date",
			errs.ErrInvalidRequest)
	}

	return start, end, nil
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty body", errs.ErrInvalidPayload)
	}

	if err = json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err)
	}

	return nil
}

func isAllowedPageSize(size int) bool {
	switch size {
	case 5, 10, 20:
		return true
	}
	return false
}

// isJSONContentType returns true if the content type is application/json.
func isJSONContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i > -1 {
		contentType = contentType[0:i]
	}
	return contentType == "application/json"
}
