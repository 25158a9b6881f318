package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/go-chi/chi/v5"
)

// RegisterParams defines parameters for Register.
type RegisterParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Address  string `json:"address"`
}

// LoginParams defines parameters for Login.
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Registration (POST /api/v1/users/register).
	Register(w http.ResponseWriter, r *http.Request, params RegisterParams)
	// Authentication (POST /api/v1/users/login).
	Login(w http.ResponseWriter, r *http.Request, params LoginParams)
	// Current user with account state (GET /api/v1/users/me).
	GetMe(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// Register operation middleware.
func (siw *ServerInterfaceWrapper) Register(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s",
			errs.ErrInvalidContentType, r.Header.Get("Content-Type")))
		return
	}

	var params RegisterParams

	if err := decodeBody(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	// ------------- Required JSON body parameter "email" -------------

	if params.Email == "" {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "email"})
		return
	}

	// ------------- Required JSON body parameter "password" ----------

	if params.Password == "" {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "password"})
		return
	}

	// ------------- Required JSON body parameter "full_name" ---------

	if params.FullName == "" {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "full_name"})
		return
	}

	siw.Handler.Register(w, r, params)
}

// Login operation middleware.
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s",
			errs.ErrInvalidContentType, r.Header.Get("Content-Type")))
		return
	}

	var params LoginParams

	if err := decodeBody(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	if params.Email == "" {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "email"})
		return
	}

	if params.Password == "" {
		siw.ErrorHandlerFunc(w, r,
			&errs.RequiredJSONBodyParamError{ParamName: "password"})
		return
	}

	siw.Handler.Login(w, r, params)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	// Middlewares guard the protected routes only; register and
	// login stay public.
	Middlewares []MiddlewareFunc
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

	r.Post(options.BaseURL+"/users/register", wrapper.Register)
	r.Post(options.BaseURL+"/users/login", wrapper.Login)

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}
		r.Get(options.BaseURL+"/users/me", si.GetMe)
	})

	return r
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

// isJSONContentType returns true if the content type is application/json.
func isJSONContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i > -1 {
		contentType = contentType[0:i]
	}
	return contentType == "application/json"
}
