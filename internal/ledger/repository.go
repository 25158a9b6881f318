package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avdeevlv/livin-market/internal/models/account"
	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/product"
	"github.com/avdeevlv/livin-market/internal/models/transaction"
	"github.com/avdeevlv/livin-market/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionFilter narrows the transaction history listing.
// End is inclusive of the entire day.
type TransactionFilter struct {
	Start         *time.Time
	End           *time.Time
	CategoryLabel string
	UserID        uuid.UUID
	Limit         int
	Offset        int
}

type Repository interface {
	// Locking reads. Must be called inside a unit of work before
	// any decision is made on the returned state.
	GetAccountForUpdate(ctx context.Context, userID uuid.UUID) (*account.Account, error)
	GetProductForUpdate(ctx context.Context, productID uuid.UUID) (*product.Product, error)

	// Writes.
	AddToBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	ApplyPayment(ctx context.Context, userID uuid.UUID, totalCost decimal.Decimal, points int64) error
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int64) error
	CreateTransaction(ctx context.Context, t *transaction.Transaction) error

	// Read projections.
	GetTransactionByID(ctx context.Context, id, userID uuid.UUID) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*transaction.Transaction, int64, error)
	AmountPerCategory(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]*transaction.CategoryAmount, error)
	CountPerCategory(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]*transaction.CategoryCount, error)
	TimeSeries(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*transaction.TimePoint, error)
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

func (r *Repo) GetAccountForUpdate(ctx context.Context, userID uuid.UUID) (*account.Account, error) {
	const query = `
		SELECT id, user_id, balance, holded_balance, living_points
		FROM accounts WHERE user_id = $1
		FOR UPDATE;
	`

	a := new(account.Account)

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(
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

func (r *Repo) GetProductForUpdate(ctx context.Context, productID uuid.UUID) (*product.Product, error) {
	const query = `
		SELECT id, name, category_id, merchant_id, amount, stock, created_at
		FROM products WHERE id = $1
		FOR UPDATE;
	`

	p := new(product.Product)
	var categoryID, merchantID uuid.NullUUID

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.Name,
		&categoryID,
		&merchantID,
		&p.Amount,
		&p.Stock,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrProductNotFound
		}
		return nil, err
	}

	if categoryID.Valid {
		p.CategoryID = &categoryID.UUID
	}
	if merchantID.Valid {
		p.MerchantID = &merchantID.UUID
	}

	return p, nil
}

func (r *Repo) AddToBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	const query = "UPDATE accounts SET balance = balance + $1 WHERE user_id = $2;"

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, query, amount, userID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (r *Repo) ApplyPayment(ctx context.Context, userID uuid.UUID, totalCost decimal.Decimal, points int64) error {
	const query = `
		UPDATE accounts SET
			balance = balance - $1,
			living_points = living_points + $2
		WHERE user_id = $3
			RETURNING balance;
	`

	var updatedBalance decimal.Decimal

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, totalCost, points, userID).
		Scan(&updatedBalance)
	if err != nil {
		return err
	}

	// The service checks the balance under lock before this call;
	// a negative result here means the invariant is broken.
	if updatedBalance.IsNegative() {
		return fmt.Errorf("balance of user %s went negative: %s", userID, updatedBalance)
	}

	return nil
}

func (r *Repo) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int64) error {
	const query = `
		UPDATE products SET stock = stock - $1
		WHERE id = $2
			RETURNING stock;
	`

	var updatedStock int64

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query, quantity, productID).
		Scan(&updatedStock)
	if err != nil {
		return err
	}

	if updatedStock < 0 {
		return fmt.Errorf("stock of product %s went negative: %d", productID, updatedStock)
	}

	return nil
}

func (r *Repo) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	const query = `
		INSERT INTO transactions
			(user_id, product_id, quantity, total_amount, status, transaction_type)
		VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, transaction_date;
	`

	err := r.getter.DefaultTrOrDB(ctx, r.db).
		QueryRowContext(ctx, query,
			t.UserID, t.ProductID, t.Quantity, t.TotalAmount, t.Status, t.Type).
		Scan(&t.ID, &t.Date)
	if err != nil {
		return err
	}

	return nil
}

const selectTransaction = `
	SELECT t.id, t.user_id, t.product_id, t.quantity, t.total_amount,
		t.status, t.transaction_type, t.transaction_date,
		p.id, p.name, c.id, c.label
	FROM transactions t
	LEFT JOIN products p ON p.id = t.product_id
	LEFT JOIN categories c ON c.id = p.category_id
`

func (r *Repo) GetTransactionByID(ctx context.Context, id, userID uuid.UUID) (*transaction.Transaction, error) {
	const query = selectTransaction + " WHERE t.id = $1 AND t.user_id = $2;"

	row := r.db.QueryRowContext(ctx, query, id, userID)

	t, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return t, nil
}

func (r *Repo) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*transaction.Transaction, int64, error) {
	conds := []string{"t.user_id = $1"}
	args := []any{filter.UserID}

	if filter.CategoryLabel != "" {
		args = append(args, filter.CategoryLabel)
		conds = append(conds, fmt.Sprintf("c.label = $%d", len(args)))
	}
	conds, args = appendDateRange(conds, args, "t.transaction_date", filter.Start, filter.End)

	where := " WHERE " + strings.Join(conds, " AND ")

	// Total matching count, ignoring pagination.
	countQuery := `
		SELECT COUNT(*) FROM transactions t
		LEFT JOIN products p ON p.id = t.product_id
		LEFT JOIN categories c ON c.id = p.category_id` + where + ";"

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	listQuery := fmt.Sprintf("%s%s ORDER BY t.transaction_date DESC LIMIT $%d OFFSET $%d;",
		selectTransaction, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	transactions := make([]*transaction.Transaction, 0)

	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, t)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	// Rows.Err will report the last error encountered by Rows.Scan.
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

func (r *Repo) AmountPerCategory(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]*transaction.CategoryAmount, error) {
	conds := []string{"t.user_id = $1", "t.transaction_type = 'payment'"}
	args := []any{userID}
	conds, args = appendDateRange(conds, args, "t.transaction_date", start, end)

	query := `
		SELECT c.label, SUM(t.total_amount) AS total_amount
		FROM transactions t
		JOIN products p ON p.id = t.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY c.label
		ORDER BY total_amount DESC;`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	amounts := make([]*transaction.CategoryAmount, 0)

	for rows.Next() {
		a := new(transaction.CategoryAmount)
		if err = rows.Scan(&a.Category, &a.TotalAmount); err != nil {
			return nil, err
		}
		amounts = append(amounts, a)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return amounts, nil
}

func (r *Repo) CountPerCategory(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]*transaction.CategoryCount, error) {
	conds := []string{"t.user_id = $1", "t.transaction_type = 'payment'"}
	args := []any{userID}
	conds, args = appendDateRange(conds, args, "t.transaction_date", start, end)

	query := `
		SELECT c.label, COUNT(t.id) AS transaction_count
		FROM transactions t
		JOIN products p ON p.id = t.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ` + strings.Join(conds, " AND ") + `
		GROUP BY c.label
		ORDER BY transaction_count DESC;`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	counts := make([]*transaction.CategoryCount, 0)

	for rows.Next() {
		c := new(transaction.CategoryCount)
		if err = rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// TimeSeries buckets all transaction types by calendar day.
// Days with no activity are omitted.
func (r *Repo) TimeSeries(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*transaction.TimePoint, error) {
	const query = `
		SELECT t.transaction_date::date AS day,
			COUNT(t.id) AS transaction_count,
			SUM(t.total_amount) AS total_amount
		FROM transactions t
		WHERE t.user_id = $1
			AND t.transaction_date::date BETWEEN $2 AND $3
		GROUP BY day
		ORDER BY day;
	`

	rows, err := r.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		return nil, err
	}

	points := make([]*transaction.TimePoint, 0)

	for rows.Next() {
		p := new(transaction.TimePoint)
		if err = rows.Scan(&p.Date, &p.Count, &p.TotalAmount); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}

// appendDateRange adds inclusive date range conditions: the end date
// covers the entire day, so it is filtered as < end + 1 day.
func appendDateRange(conds []string, args []any, column string, start, end *time.Time) ([]string, []any) {
	if start != nil {
		args = append(args, *start)
		conds = append(conds, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if end != nil {
		args = append(args, end.AddDate(0, 0, 1))
		conds = append(conds, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	return conds, args
}

func scanTransaction(scan func(dest ...any) error) (*transaction.Transaction, error) {
	t := new(transaction.Transaction)

	var (
		productID uuid.NullUUID
		quantity  sql.NullInt64
		pID, cID  uuid.NullUUID
		pName     sql.NullString
		cLabel    sql.NullString
	)

	err := scan(
		&t.ID,
		&t.UserID,
		&productID,
		&quantity,
		&t.TotalAmount,
		&t.Status,
		&t.Type,
		&t.Date,
		&pID,
		&pName,
		&cID,
		&cLabel,
	)
	if err != nil {
		return nil, err
	}

	if productID.Valid {
		t.ProductID = &productID.UUID
	}
	if quantity.Valid {
		t.Quantity = &quantity.Int64
	}
	if pID.Valid {
		t.Product = &transaction.ProductInfo{ID: pID.UUID, Name: pName.String}
		if cID.Valid {
			t.Product.Category = &transaction.CategoryInfo{ID: cID.UUID, Label: cLabel.String}
		}
	}

	return t, nil
}
