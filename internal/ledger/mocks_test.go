package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/avdeevlv/livin-market/internal/models/account"
	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/product"
	"github.com/avdeevlv/livin-market/internal/models/transaction"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errStorageFailure = errors.New("storage failure")

// Lock in case of t.Parallel call.
type mockRepository struct {
	accounts     map[uuid.UUID]*account.Account
	products     map[uuid.UUID]*product.Product
	transactions []*transaction.Transaction

	// Canned analytics data.
	amounts []*transaction.CategoryAmount
	counts  []*transaction.CategoryCount
	points  []*transaction.TimePoint

	failCreateTransaction bool

	mu sync.Mutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		accounts: make(map[uuid.UUID]*account.Account),
		products: make(map[uuid.UUID]*product.Product),
	}
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) GetAccountForUpdate(_ context.Context, userID uuid.UUID) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepository) GetProductForUpdate(_ context.Context, productID uuid.UUID) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepository) AddToBalance(_ context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return errs.ErrNotFound
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

func (m *mockRepository) ApplyPayment(_ context.Context, userID uuid.UUID, totalCost decimal.Decimal, points int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return errs.ErrNotFound
	}
	a.Balance = a.Balance.Sub(totalCost)
	a.LivingPoints += points
	return nil
}

func (m *mockRepository) DecrementStock(_ context.Context, productID uuid.UUID, quantity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return errs.ErrProductNotFound
	}
	p.Stock -= quantity
	return nil
}

func (m *mockRepository) CreateTransaction(_ context.Context, t *transaction.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateTransaction {
		return errStorageFailure
	}
	t.ID = uuid.New()
	t.Date = time.Now()
	copied := *t
	m.transactions = append(m.transactions, &copied)
	return nil
}

func (m *mockRepository) GetTransactionByID(_ context.Context, id, userID uuid.UUID) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ID == id && t.UserID == userID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) ListTransactions(_ context.Context, filter TransactionFilter) ([]*transaction.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*transaction.Transaction, 0)
	for _, t := range m.transactions {
		if t.UserID != filter.UserID {
			continue
		}
		if filter.Start != nil && t.Date.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && !t.Date.Before(filter.End.AddDate(0, 0, 1)) {
			continue
		}
		if filter.CategoryLabel != "" {
			if t.Product == nil || t.Product.Category == nil ||
				t.Product.Category.Label != filter.CategoryLabel {
				continue
			}
		}
		copied := *t
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	total := int64(len(matched))

	if filter.Offset >= len(matched) {
		return []*transaction.Transaction{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

func (m *mockRepository) AmountPerCategory(_ context.Context, _ uuid.UUID, _, _ *time.Time) ([]*transaction.CategoryAmount, error) {
	return m.amounts, nil
}

func (m *mockRepository) CountPerCategory(_ context.Context, _ uuid.UUID, _, _ *time.Time) ([]*transaction.CategoryCount, error) {
	return m.counts, nil
}

func (m *mockRepository) TimeSeries(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]*transaction.TimePoint, error) {
	return m.points, nil
}

type repoSnapshot struct {
	accounts     map[uuid.UUID]account.Account
	products     map[uuid.UUID]product.Product
	transactions []transaction.Transaction
}

func (m *mockRepository) snapshot() repoSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := repoSnapshot{
		accounts: make(map[uuid.UUID]account.Account, len(m.accounts)),
		products: make(map[uuid.UUID]product.Product, len(m.products)),
	}
	for id, a := range m.accounts {
		snap.accounts[id] = *a
	}
	for id, p := range m.products {
		snap.products[id] = *p
	}
	for _, t := range m.transactions {
		snap.transactions = append(snap.transactions, *t)
	}
	return snap
}

func (m *mockRepository) restore(snap repoSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts = make(map[uuid.UUID]*account.Account, len(snap.accounts))
	m.products = make(map[uuid.UUID]*product.Product, len(snap.products))
	m.transactions = nil
	for id, a := range snap.accounts {
		copied := a
		m.accounts[id] = &copied
	}
	for id, p := range snap.products {
		copied := p
		m.products[id] = &copied
	}
	for _, t := range snap.transactions {
		copied := t
		m.transactions = append(m.transactions, &copied)
	}
}

// mockTrManager mimics the all-or-nothing unit of work: the repository
// state is restored whenever the wrapped function returns an error.
type mockTrManager struct {
	repo *mockRepository
}

var _ trm.Manager = (*mockTrManager)(nil)

func (m *mockTrManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.restore(snap)
		return err
	}
	return nil
}

func (m *mockTrManager) DoWithSettings(ctx context.Context, _ trm.Settings, fn func(ctx context.Context) error) error {
	return m.Do(ctx, fn)
}
