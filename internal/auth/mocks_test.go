package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avdeevlv/livin-market/internal/models/account"
	"github.com/avdeevlv/livin-market/internal/models/errs"
	"github.com/avdeevlv/livin-market/internal/models/user"
	trm "github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
)

var errStorageFailure = errors.New("storage failure")

type mockRepository struct {
	users    map[uuid.UUID]*user.User
	accounts map[uuid.UUID]*account.Account

	failCreateAccount bool

	mu sync.Mutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:    make(map[uuid.UUID]*user.User),
		accounts: make(map[uuid.UUID]*account.Account),
	}
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) GetUserByID(_ context.Context, userID uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errs.ErrDataConflict
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *mockRepository) CreateAccount(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateAccount {
		return errStorageFailure
	}
	m.accounts[userID] = &account.Account{ID: uuid.New(), UserID: userID}
	return nil
}

func (m *mockRepository) GetAccountByUserID(_ context.Context, userID uuid.UUID) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepository) snapshot() (map[uuid.UUID]user.User, map[uuid.UUID]account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[uuid.UUID]user.User, len(m.users))
	for id, u := range m.users {
		users[id] = *u
	}
	accounts := make(map[uuid.UUID]account.Account, len(m.accounts))
	for id, a := range m.accounts {
		accounts[id] = *a
	}
	return users, accounts
}

func (m *mockRepository) restore(users map[uuid.UUID]user.User, accounts map[uuid.UUID]account.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[uuid.UUID]*user.User, len(users))
	for id, u := range users {
		copied := u
		m.users[id] = &copied
	}
	m.accounts = make(map[uuid.UUID]*account.Account, len(accounts))
	for id, a := range accounts {
		copied := a
		m.accounts[id] = &copied
	}
}

// mockTrManager restores the repository state whenever the wrapped
// function returns an error.
type mockTrManager struct {
	repo *mockRepository
}

var _ trm.Manager = (*mockTrManager)(nil)

func (m *mockTrManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	users, accounts := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.restore(users, accounts)
		return err
	}
	return nil
}

func (m *mockTrManager) DoWithSettings(ctx context.Context, _ trm.Settings, fn func(ctx context.Context) error) error {
	return m.Do(ctx, fn)
}
