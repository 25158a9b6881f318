package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avdeevlv/livin-market/internal/config"
	"github.com/avdeevlv/livin-market/internal/jwt"
	"github.com/avdeevlv/livin-market/internal/models/account"
	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/user"
	"github.com/avdeevlv/livin-market/pkg/logger"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo   Repository
	trm    trm.Manager
	logger logger.Logger
	config *config.Config
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
	return &Service{repo: repo, trm: trm, logger: logger, config: config}, nil
}

var _ ServerInterface = (*Service)(nil)

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MeResponse is the current user snapshot with the account state.
type MeResponse struct {
	*user.User
	Account *account.Account `json:"account"`
}

// Registration (POST /api/v1/users/register).
func (s *Service) Register(w http.ResponseWriter, r *http.Request, params RegisterParams) {
	// Create password hash.
	hashPassword, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.config.PasswordHashCost)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	u := &user.User{
		Email:          params.Email,
		FullName:       params.FullName,
		Address:        params.Address,
		HashedPassword: string(hashPassword),
	}

	// A user and their account come into existence together.
	err = s.trm.Do(r.Context(), func(ctx context.Context) error {
		if err := s.repo.CreateUser(ctx, u); err != nil {
			return err
		}
		return s.repo.CreateAccount(ctx, u.ID)
	})
	if err != nil {
		if errors.Is(err, errs.ErrDataConflict) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: email %q already exists", err, params.Email))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	// Build authentication token.
	authToken, err := jwt.BuildString(u.ID, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("build token: %w", err))
		return
	}

	s.setAuthCookie(w, authToken)

	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(u); err != nil {
		s.logger.Errorf("encode response: %s", err)
	}
}

// Authentication (POST /api/v1/users/login).
func (s *Service) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {
	// Retrieve user from the database with provided email.
	u, err := s.repo.GetUserByEmail(r.Context(), params.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: user with email %q not found",
				errs.ErrInvalidCredentials, params.Email))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("get user %q: %w", params.Email, err))
		return
	}

	// Compare stored and provided passwords.
	err = bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(params.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: password", errs.ErrInvalidCredentials))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("compare passwords: %w", err))
		return
	}

	// Build authentication token.
	authToken, err := jwt.BuildString(u.ID, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("build token: %w", err))
		return
	}

	s.setAuthCookie(w, authToken)

	resp := TokenResponse{AccessToken: authToken, TokenType: "bearer"}
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Errorf("encode response: %s", err)
	}
}

// Current user with account state (GET /api/v1/users/me).
func (s *Service) GetMe(w http.ResponseWriter, r *http.Request) {
	u, found := user.FromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	acc, err := s.repo.GetAccountByUserID(r.Context(), u.ID)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("get account: %w", err))
		return
	}

	if err = json.NewEncoder(w).Encode(MeResponse{User: u, Account: acc}); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}
}

// Authorization middleware.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenFromRequest(r)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("authorization token: %w", err))
			return
		}

		userID, err := jwt.GetUserID(token, s.config.JWT.SigningKey)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: parse token: %s",
				errs.ErrInvalidCredentials, err))
			return
		}

		u, err := s.repo.GetUserByID(r.Context(), userID)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("get user %q: %w", userID, err))
			return
		}

		r = r.WithContext(user.NewContext(r.Context(), u))

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// tokenFromRequest reads the token from the Authorization cookie
// or, failing that, from the Authorization header.
func tokenFromRequest(r *http.Request) (string, error) {
	authCookie, err := r.Cookie("Authorization")
	if err == nil {
		return authCookie.Value, nil
	}
	if !errors.Is(err, http.ErrNoCookie) {
		return "", err
	}

	if header := r.Header.Get("Authorization"); header != "" {
		return header, nil
	}

	return "", errs.ErrNotFound
}

func (s *Service) setAuthCookie(w http.ResponseWriter, authToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "Authorization",
		Value:    authToken,
		Expires:  time.Now().Add(s.config.JWT.Expiration),
		HttpOnly: true,
	})
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	var requiredParamErr *errs.RequiredJSONBodyParamError

	switch {
	// Status Bad Request (400).
	case errors.As(err, &requiredParamErr) ||
		errors.Is(err, errs.ErrInvalidPayload) ||
		errors.Is(err, errs.ErrInvalidContentType) ||
		errors.Is(err, io.EOF):
		code = http.StatusBadRequest

	// Status Unauthorized (401).
	case errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrInvalidCredentials):
		code = http.StatusUnauthorized

	// Status Conflict (409).
	case errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict
	}

	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
