package catalog

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// ListParams defines the shared listing parameters.
type ListParams struct {
	Category string
	Page     int
	Size     int
}

// ListResponse is the paginated listing envelope.
type ListResponse struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Product listing (GET /api/v1/products).
	GetProducts(w http.ResponseWriter, r *http.Request, params ListParams)
	// Category listing (GET /api/v1/categories).
	GetCategories(w http.ResponseWriter, r *http.Request, params ListParams)
	// Merchant listing (GET /api/v1/merchants).
	GetMerchants(w http.ResponseWriter, r *http.Request, params ListParams)
	// Offer listing (GET /api/v1/offers).
	GetOffers(w http.ResponseWriter, r *http.Request, params ListParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) GetProducts(w http.ResponseWriter, r *http.Request) {
	siw.listOperation(w, r, siw.Handler.GetProducts)
}

func (siw *ServerInterfaceWrapper) GetCategories(w http.ResponseWriter, r *http.Request) {
	siw.listOperation(w, r, siw.Handler.GetCategories)
}

func (siw *ServerInterfaceWrapper) GetMerchants(w http.ResponseWriter, r *http.Request) {
	siw.listOperation(w, r, siw.Handler.GetMerchants)
}

func (siw *ServerInterfaceWrapper) GetOffers(w http.ResponseWriter, r *http.Request) {
	siw.listOperation(w, r, siw.Handler.GetOffers)
}

// listOperation parses pagination shared by every listing endpoint.
func (siw *ServerInterfaceWrapper) listOperation(
	w http.ResponseWriter, r *http.Request,
	handler func(w http.ResponseWriter, r *http.Request, params ListParams),
) {
	params := ListParams{Page: 1, Size: 10}
	query := r.URL.Query()

	var err error

	if v := query.Get("page"); v != "" {
		params.Page, err = strconv.Atoi(v)
		if err != nil || params.Page < 1 {
			siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: page must be a positive number",
				errs.ErrInvalidRequest))
			return
		}
	}

	if v := query.Get("size"); v != "" {
		params.Size, err = strconv.Atoi(v)
		if err != nil || params.Size < 1 || params.Size > 100 {
			siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: size must be between 1 and 100",
				errs.ErrInvalidRequest))
			return
		}
	}

	params.Category = query.Get("category")

	handler(w, r, params)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
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
		r.Get(options.BaseURL+"/products", wrapper.GetProducts)
		r.Get(options.BaseURL+"/categories", wrapper.GetCategories)
		r.Get(options.BaseURL+"/merchants", wrapper.GetMerchants)
		r.Get(options.BaseURL+"/offers", wrapper.GetOffers)
	})

	return r
}
