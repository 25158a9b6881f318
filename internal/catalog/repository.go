package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avdeevlv/livin-market/internal/models/product"
	"github.com/avdeevlv/livin-market/pkg/logger"
	"github.com/google/uuid"
)

type Repository interface {
	ListProducts(ctx context.Context, params ListParams) ([]*product.Product, int64, error)
	ListCategories(ctx context.Context, params ListParams) ([]*product.Category, int64, error)
	ListMerchants(ctx context.Context, params ListParams) ([]*product.Merchant, int64, error)
	ListOffers(ctx context.Context, params ListParams) ([]*product.Offer, int64, error)
}

type Repo struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, logger logger.Logger) (*Repo, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}

	return &Repo{db: db, logger: logger}, nil
}

var _ Repository = (*Repo)(nil)

func (r *Repo) ListProducts(ctx context.Context, params ListParams) ([]*product.Product, int64, error) {
	conds := []string{"TRUE"}
	args := []any{}

	if params.Category != "" {
		args = append(args, params.Category)
		conds = append(conds, fmt.Sprintf("c.label = $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	countQuery := `
		SELECT COUNT(*) FROM products p
		LEFT JOIN categories c ON c.id = p.category_id` + where + ";"

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Size, (params.Page-1)*params.Size)
	listQuery := fmt.Sprintf(`
		SELECT p.id, p.name, p.amount, p.stock, p.created_at,
			c.id, c.label, m.id, m.name, m.created_at
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN merchants m ON m.id = p.merchant_id
		%s ORDER BY p.name LIMIT $%d OFFSET $%d;`,
		where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	products := make([]*product.Product, 0)

	for rows.Next() {
		p := new(product.Product)
		var (
			cID, mID   uuid.NullUUID
			cLabel     sql.NullString
			mName      sql.NullString
			mCreatedAt sql.NullTime
		)

		err = rows.Scan(
			&p.ID,
			&p.Name,
			&p.Amount,
			&p.Stock,
			&p.CreatedAt,
			&cID,
			&cLabel,
			&mID,
			&mName,
			&mCreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if cID.Valid {
			p.CategoryID = &cID.UUID
			p.Category = &product.Category{ID: cID.UUID, Label: cLabel.String}
		}
		if mID.Valid {
			p.MerchantID = &mID.UUID
			p.Merchant = &product.Merchant{
				ID:        mID.UUID,
				Name:      mName.String,
				CreatedAt: mCreatedAt.Time,
			}
		}

		products = append(products, p)
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

	return products, total, nil
}

func (r *Repo) ListCategories(ctx context.Context, params ListParams) ([]*product.Category, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories;").Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = "SELECT id, label FROM categories ORDER BY label LIMIT $1 OFFSET $2;"

	rows, err := r.db.QueryContext(ctx, query, params.Size, (params.Page-1)*params.Size)
	if err != nil {
		return nil, 0, err
	}

	categories := make([]*product.Category, 0)

	for rows.Next() {
		c := new(product.Category)
		if err = rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return categories, total, nil
}

func (r *Repo) ListMerchants(ctx context.Context, params ListParams) ([]*product.Merchant, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM merchants;").Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = "SELECT id, name, created_at FROM merchants ORDER BY name LIMIT $1 OFFSET $2;"

	rows, err := r.db.QueryContext(ctx, query, params.Size, (params.Page-1)*params.Size)
	if err != nil {
		return nil, 0, err
	}

	merchants := make([]*product.Merchant, 0)

	for rows.Next() {
		m := new(product.Merchant)
		if err = rows.Scan(&m.ID, &m.Name, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		merchants = append(merchants, m)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return merchants, total, nil
}

func (r *Repo) ListOffers(ctx context.Context, params ListParams) ([]*product.Offer, int64, error) {
	conds := []string{"TRUE"}
	args := []any{}

	if params.Category != "" {
		args = append(args, params.Category)
		conds = append(conds, fmt.Sprintf("c.label = $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	countQuery := `
		SELECT COUNT(*) FROM offers o
		LEFT JOIN categories c ON c.id = o.category_id` + where + ";"

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Size, (params.Page-1)*params.Size)
	listQuery := fmt.Sprintf(`
		SELECT o.id, o.name, o.description, c.id, c.label
		FROM offers o
		LEFT JOIN categories c ON c.id = o.category_id
		%s ORDER BY o.name LIMIT $%d OFFSET $%d;`,
		where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	offers := make([]*product.Offer, 0)

	for rows.Next() {
		o := new(product.Offer)
		var (
			cID    uuid.NullUUID
			cLabel sql.NullString
			desc   sql.NullString
		)

		if err = rows.Scan(&o.ID, &o.Name, &desc, &cID, &cLabel); err != nil {
			return nil, 0, err
		}

		o.Description = desc.String
		if cID.Valid {
			o.CategoryID = &cID.UUID
			o.Category = &product.Category{ID: cID.UUID, Label: cLabel.String}
		}

		offers = append(offers, o)
	}

	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Errorf("close rows: %s", err)
		}
	}()

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return offers, total, nil
}
