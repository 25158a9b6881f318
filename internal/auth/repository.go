package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avdeevlv/livin-market/internal/models/account"
	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/user"
	"github.com/avdeevlv/livin-market/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error
	CreateAccount(ctx context.Context, userID uuid.UUID) error
	GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*account.Account, error)
}

type Repo struct {
	db     *sql.DB
	getter *trmsql.CtxGetter
	logger logger.Logger
}

func NewRepository(db *sql.DB, getter *trmsql.CtxGetter, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}
	if getter == nil {
		return nil, errors.New("nil dependency: transaction getter")
	}

	return &Repo{db: db, getter: getter, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) GetUserByID(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	const query = `
		SELECT id, email, full_name, address, hashed_password, created_at
		FROM users WHERE id = $1;
	`

	u := new(user.User)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Address,
		&u.HashedPassword,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	const query = `
		SELECT id, email, full_name, address, hashed_password, created_at
		FROM users WHERE email = $1;
	`

	u := new(user.User)

	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Address,
		&u.HashedPassword,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u *user.User) error {
	const query = `
		INSERT INTO users (email, full_name, address, hashed_password)
		VALUES ($1, $2, $3, $4)
			RETURNING id, created_at;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, u.Email, u.FullName, u.Address, u.HashedPassword).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return errs.ErrDataConflict
			}
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *Repo) CreateAccount(ctx context.Context, userID uuid.UUID) error {
	const query = "INSERT INTO accounts (user_id) VALUES ($1);"

	_, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Repo) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	const query = `
		SELECT id, user_id, balance, holded_balance, living_points
		FROM accounts WHERE user_id = $1;
	`

	a := new(account.Account)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&a.ID,
		&a.UserID,
		&a.Balance,
		&a.HeldBalance,
		&a.LivingPoints,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return a, nil
}
