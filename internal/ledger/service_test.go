package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avdeevlv/livin-market/internal/config"
	"github.com/avdeevlv/livin-market/internal/models/account"
	"github.com/avdeevlv/livin-market/internal/models/product"
	"github.com/avdeevlv/livin-market/internal/models/transaction"
	"github.com/avdeevlv/livin-market/internal/models/user"
	"github.com/avdeevlv/livin-market/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, repo *mockRepository) *Service {
	t.Helper()

	cfg := &config.Config{Loyalty: config.Loyalty{AccrualRate: 0.01}}

	s, err := NewService(repo, &mockTrManager{repo: repo}, logger.NewForTest(), cfg)
	require.NoError(t, err, "failed to init service")

	return s
}

func newTestUser() *user.User {
	return &user.User{
		ID:    uuid.New(),
		Email: "customer@example.com",
	}
}

// authRequest builds a request carrying an authenticated user.
func authRequest(t *testing.T, method, target string, u *user.User) *http.Request {
	t.Helper()

	r := httptest.NewRequest(method, target, nil)
	if u != nil {
		r = r.WithContext(user.NewContext(r.Context(), u))
	}

	return r
}

func seedAccount(repo *mockRepository, userID uuid.UUID, balance string) {
	repo.accounts[userID] = &account.Account{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.RequireFromString(balance),
	}
}

func seedProduct(repo *mockRepository, amount string, stock int64) uuid.UUID {
	id := uuid.New()
	repo.products[id] = &product.Product{
		ID:     id,
		Name:   "Vacuum cleaner",
		Amount: decimal.RequireFromString(amount),
		Stock:  stock,
	}
	return id
}

func assertDecimalEqual(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"%s: want %s, got %s", msg, want, got)
}

func TestDeposit(t *testing.T) {
	u := newTestUser()

	t.Run("accumulates balance over consecutive deposits", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "0.00")
		s := newTestService(t, repo)

		for _, amount := range []string{"100.00", "50.00"} {
			w := httptest.NewRecorder()
			r := authRequest(t, http.MethodPost, "/api/v1/transactions/deposit", u)

			s.Deposit(w, r, DepositParams{Amount: decimal.RequireFromString(amount)})
			require.Equal(t, http.StatusCreated, w.Code)
		}

		assertDecimalEqual(t, "150.00", repo.accounts[u.ID].Balance, "balance")
		require.Len(t, repo.transactions, 2)
		assert.Equal(t, transaction.Deposit, repo.transactions[0].Type)
		assert.Equal(t, transaction.Completed, repo.transactions[0].Status)
	})

	t.Run("returns the recorded transaction", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "0.00")
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/deposit", u)
		s.Deposit(w, r, DepositParams{Amount: decimal.RequireFromString("25.50")})

		require.Equal(t, http.StatusCreated, w.Code)

		var got transaction.Transaction
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.Equal(t, u.ID, got.UserID)
		assert.Equal(t, transaction.Deposit, got.Type)
		assertDecimalEqual(t, "25.50", got.TotalAmount, "total amount")
	})

	t.Run("no account", func(t *testing.T) {
		repo := newMockRepository()
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/deposit", u)
		s.Deposit(w, r, DepositParams{Amount: decimal.RequireFromString("10.00")})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, repo.transactions)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		repo := newMockRepository()
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/deposit", nil)
		s.Deposit(w, r, DepositParams{Amount: decimal.RequireFromString("10.00")})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPay(t *testing.T) {
	u := newTestUser()

	t.Run("charges balance, decrements stock, accrues points", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "100.00")
		productID := seedProduct(repo, "9.99", 5)
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/pay", u)
		s.Pay(w, r, PayParams{ProductID: productID, Quantity: 2})

		require.Equal(t, http.StatusCreated, w.Code)

		assertDecimalEqual(t, "80.02", repo.accounts[u.ID].Balance, "balance")
		assert.EqualValues(t, 3, repo.products[productID].Stock)
		// floor(19.98 * 0.01) == 0
		assert.EqualValues(t, 0, repo.accounts[u.ID].LivingPoints)

		require.Len(t, repo.transactions, 1)
		got := repo.transactions[0]
		assert.Equal(t, transaction.Payment, got.Type)
		assertDecimalEqual(t, "19.98", got.TotalAmount, "total amount")
		require.NotNil(t, got.Quantity)
		assert.EqualValues(t, 2, *got.Quantity)
		require.NotNil(t, got.ProductID)
		assert.Equal(t, productID, *got.ProductID)
	})

	t.Run("points are the floor of one percent of the cost", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "600.00")
		productID := seedProduct(repo, "250.00", 10)
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/pay", u)
		s.Pay(w, r, PayParams{ProductID: productID, Quantity: 2})

		require.Equal(t, http.StatusCreated, w.Code)
		// floor(500.00 * 0.01) == 5
		assert.EqualValues(t, 5, repo.accounts[u.ID].LivingPoints)
		assertDecimalEqual(t, "100.00", repo.accounts[u.ID].Balance, "balance")
	})

	t.Run("insufficient stock leaves state untouched", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "100.00")
		productID := seedProduct(repo, "9.99", 1)
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/pay", u)
		s.Pay(w, r, PayParams{ProductID: productID, Quantity: 2})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "insufficient stock")

		assertDecimalEqual(t, "100.00", repo.accounts[u.ID].Balance, "balance")
		assert.EqualValues(t, 1, repo.products[productID].Stock)
		assert.Empty(t, repo.transactions)
	})

	t.Run("insufficient funds leaves state untouched", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "5.00")
		productID := seedProduct(repo, "9.99", 5)
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/pay", u)
		s.Pay(w, r, PayParams{ProductID: productID, Quantity: 2})

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Contains(t, w.Body.String(), "insufficient balance")

		assertDecimalEqual(t, "5.00", repo.accounts[u.ID].Balance, "balance")
		assert.EqualValues(t, 5, repo.products[productID].Stock)
		assert.Empty(t, repo.transactions)
	})

	t.Run("unknown product", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "100.00")
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/pay", u)
		s.Pay(w, r, PayParams{ProductID: uuid.New(), Quantity: 1})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, repo.transactions)
	})

	t.Run("storage failure rolls back the whole payment", func(t *testing.T) {
		repo := newMockRepository()
		seedAccount(repo, u.ID, "100.00")
		productID := seedProduct(repo, "9.99", 5)
		repo.failCreateTransaction = true
		s := newTestService(t, repo)

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/pay", u)
		s.Pay(w, r, PayParams{ProductID: productID, Quantity: 2})

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		// Balance and stock changes preceding the failure must not survive.
		assertDecimalEqual(t, "100.00", repo.accounts[u.ID].Balance, "balance")
		assert.EqualValues(t, 5, repo.products[productID].Stock)
		assert.EqualValues(t, 0, repo.accounts[u.ID].LivingPoints)
		assert.Empty(t, repo.transactions)
	})
}

func TestGetTransaction(t *testing.T) {
	u := newTestUser()

	repo := newMockRepository()
	seedAccount(repo, u.ID, "0.00")
	s := newTestService(t, repo)

	w := httptest.NewRecorder()
	r := authRequest(t, http.MethodPost, "/api/v1/transactions/deposit", u)
	s.Deposit(w, r, DepositParams{Amount: decimal.RequireFromString("42.00")})
	require.Equal(t, http.StatusCreated, w.Code)
	id := repo.transactions[0].ID

	t.Run("owned transaction", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/transactions/"+id.String(), u)
		s.GetTransaction(w, r, id)

		require.Equal(t, http.StatusOK, w.Code)

		var got transaction.Transaction
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, id, got.ID)
		assertDecimalEqual(t, "42.00", got.TotalAmount, "total amount")
	})

	t.Run("unknown transaction", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/transactions/"+uuid.NewString(), u)
		s.GetTransaction(w, r, uuid.New())

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("transaction of another user", func(t *testing.T) {
		stranger := newTestUser()

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/transactions/"+id.String(), stranger)
		s.GetTransaction(w, r, id)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetTransactions(t *testing.T) {
	u := newTestUser()

	repo := newMockRepository()
	seedAccount(repo, u.ID, "0.00")
	s := newTestService(t, repo)

	for i := 1; i <= 7; i++ {
		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodPost, "/api/v1/transactions/deposit", u)
		s.Deposit(w, r, DepositParams{
			Amount: decimal.RequireFromString(fmt.Sprintf("%d.00", i)),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	list := func(t *testing.T, params ListParams) TransactionHistory {
		t.Helper()

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/transactions", u)
		s.GetTransactions(w, r, params)
		require.Equal(t, http.StatusOK, w.Code)

		var history TransactionHistory
		require.NoError(t, json.NewDecoder(w.Body).Decode(&history))
		return history
	}

	t.Run("first page", func(t *testing.T) {
		history := list(t, ListParams{Page: 1, Size: 5})
		assert.EqualValues(t, 7, history.Total)
		assert.Len(t, history.Items, 5)
		assert.Equal(t, 1, history.Page)
		assert.Equal(t, 5, history.Size)
	})

	t.Run("last page holds the remainder", func(t *testing.T) {
		history := list(t, ListParams{Page: 2, Size: 5})
		assert.EqualValues(t, 7, history.Total)
		assert.Len(t, history.Items, 2)
	})

	t.Run("page beyond the history is empty", func(t *testing.T) {
		history := list(t, ListParams{Page: 3, Size: 5})
		assert.EqualValues(t, 7, history.Total)
		assert.Empty(t, history.Items)
	})

	t.Run("reads do not change state", func(t *testing.T) {
		first := list(t, ListParams{Page: 1, Size: 10})
		second := list(t, ListParams{Page: 1, Size: 10})
		assert.Equal(t, first, second)
		assert.Len(t, repo.transactions, 7)
	})
}

// seedPayment records a completed payment in a product category.
func seedPayment(repo *mockRepository, userID uuid.UUID, label string) {
	productID := uuid.New()
	quantity := int64(1)

	repo.transactions = append(repo.transactions, &transaction.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Date:        time.Now(),
		TotalAmount: decimal.RequireFromString("9.99"),
		Status:      transaction.Completed,
		Type:        transaction.Payment,
		ProductID:   &productID,
		Quantity:    &quantity,
		Product: &transaction.ProductInfo{
			ID:       productID,
			Name:     "Kettle",
			Category: &transaction.CategoryInfo{ID: uuid.New(), Label: label},
		},
	})
}

func TestGetTransactionsCategoryFilter(t *testing.T) {
	u := newTestUser()

	repo := newMockRepository()
	seedPayment(repo, u.ID, "Electronics")
	seedPayment(repo, u.ID, "Electronics")
	seedPayment(repo, u.ID, "Books")
	s := newTestService(t, repo)

	list := func(t *testing.T, params ListParams) TransactionHistory {
		t.Helper()

		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/transactions", u)
		s.GetTransactions(w, r, params)
		require.Equal(t, http.StatusOK, w.Code)

		var history TransactionHistory
		require.NoError(t, json.NewDecoder(w.Body).Decode(&history))
		return history
	}

	t.Run("matching category", func(t *testing.T) {
		history := list(t, ListParams{Category: "Electronics", Page: 1, Size: 10})
		assert.EqualValues(t, 2, history.Total)
		require.Len(t, history.Items, 2)
		for _, item := range history.Items {
			require.NotNil(t, item.Product)
			require.NotNil(t, item.Product.Category)
			assert.Equal(t, "Electronics", item.Product.Category.Label)
		}
	})

	t.Run("category without payments", func(t *testing.T) {
		history := list(t, ListParams{Category: "Garden", Page: 1, Size: 10})
		assert.EqualValues(t, 0, history.Total)
		assert.Empty(t, history.Items)
	})

	t.Run("no filter returns everything", func(t *testing.T) {
		history := list(t, ListParams{Page: 1, Size: 10})
		assert.EqualValues(t, 3, history.Total)
	})
}

func TestAnalytics(t *testing.T) {
	u := newTestUser()

	repo := newMockRepository()
	repo.amounts = []*transaction.CategoryAmount{
		{Category: "Electronics", TotalAmount: decimal.RequireFromString("199.98")},
		{Category: "Books", TotalAmount: decimal.RequireFromString("42.00")},
	}
	repo.counts = []*transaction.CategoryCount{
		{Category: "Electronics", Count: 3},
	}
	repo.points = []*transaction.TimePoint{
		{
			Date:        time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			TotalAmount: decimal.RequireFromString("100.00"),
			Count:       2,
		},
		{
			// Days without transactions are not reported between the two.
			Date:        time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			TotalAmount: decimal.RequireFromString("19.98"),
			Count:       1,
		},
	}
	s := newTestService(t, repo)

	t.Run("amount per category", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/analytics/amount-per-category", u)
		s.GetAmountPerCategory(w, r, RangeParams{})

		require.Equal(t, http.StatusOK, w.Code)

		var got []*transaction.CategoryAmount
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		require.Len(t, got, 2)
		assert.Equal(t, "Electronics", got[0].Category)
		assertDecimalEqual(t, "199.98", got[0].TotalAmount, "total amount")
	})

	t.Run("count per category", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/analytics/count-per-category", u)
		s.GetCountPerCategory(w, r, RangeParams{})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"transaction_count":3`)
	})

	t.Run("time series omits empty days", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := authRequest(t, http.MethodGet, "/api/v1/analytics/time-series", u)
		s.GetTimeSeries(w, r, SeriesParams{
			Start: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		})

		require.Equal(t, http.StatusOK, w.Code)

		var got TimeSeriesResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		require.Len(t, got.Data, 2)
		assert.EqualValues(t, 2, got.Data[0].Count)
		assert.EqualValues(t, 1, got.Data[1].Count)
	})
}
