package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/pkg/logger"
)

// Service serves the public, read-only catalog listings. Product
// mutation (stock decrement) belongs exclusively to the ledger.
type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	return &Service{repo: repo, logger: logger}, nil
}

var _ ServerInterface = (*Service)(nil)

// Product listing (GET /api/v1/products).
func (s *Service) GetProducts(w http.ResponseWriter, r *http.Request, params ListParams) {
	items, total, err := s.repo.ListProducts(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
	s.respond(w, r, params, items, total)
}

// Category listing (GET /api/v1/categories).
func (s *Service) GetCategories(w http.ResponseWriter, r *http.Request, params ListParams) {
	items, total, err := s.repo.ListCategories(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
	s.respond(w, r, params, items, total)
}

// Merchant listing (GET /api/v1/merchants).
func (s *Service) GetMerchants(w http.ResponseWriter, r *http.Request, params ListParams) {
	items, total, err := s.repo.ListMerchants(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
	s.respond(w, r, params, items, total)
}

// Offer listing (GET /api/v1/offers).
func (s *Service) GetOffers(w http.ResponseWriter, r *http.Request, params ListParams) {
	items, total, err := s.repo.ListOffers(r.Context(), params)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
	s.respond(w, r, params, items, total)
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, params ListParams, items any, total int64) {
	resp := ListResponse{
		Items: items,
		Total: total,
		Page:  params.Page,
		Size:  params.Size,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest):
		code = http.StatusBadRequest

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	}

	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
