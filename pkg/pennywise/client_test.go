package pennywise

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seededAdapter(t *testing.T) *MemoryAdapter {
	t.Helper()
	ctx := context.Background()
	adapter := NewMemoryAdapter("user-1", "ada@example.com")

	_, err := adapter.CreateTransaction(ctx, &CreateTransactionParams{
		Amount: decimal.NewFromInt(4000), Category: "Salary", Description: "pay", Date: MustParseDate("2025-03-01"), Type: KindIncome,
	})
	require.NoError(t, err)
	_, err = adapter.CreateTransaction(ctx, expenseParams(1000, "Rent"))
	require.NoError(t, err)
	_, err = adapter.CreateBudget(ctx, &CreateBudgetParams{Category: "Rent", Amount: decimal.NewFromInt(1200), Period: PeriodMonthly})
	require.NoError(t, err)
	goal, err := adapter.CreateSavings(ctx, goalParams("Emergency", 10000))
	require.NoError(t, err)
	_, err = adapter.CreateSavingsTransaction(ctx, deposit(goal.ID, 6000))
	require.NoError(t, err)
	return adapter
}

func TestClient_StartLoadsEverything(t *testing.T) {
	client, _ := newTestClient(t, seededAdapter(t))
	require.NoError(t, client.Start(context.Background()))

	profile := client.Profile.Current()
	require.NotNil(t, profile)
	assert.Equal(t, "USD", profile.Currency)
	assert.Equal(t, "ada@example.com", profile.Email)

	assert.Len(t, client.Transactions.List(), 2)
	budgets := client.Budgets.List()
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].Spent.Equal(decimal.NewFromInt(1000)))
	assert.True(t, client.Savings.TotalSavings().Equal(decimal.NewFromInt(6000)))

	report := client.HealthReport()
	// savings rate 75% -> 40, one budget within limit -> 30, 6000*12 >= 6*1000 -> 30
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, "Excellent", report.Label())
}

func TestClient_StartKeepsOtherProvidersWhenSavingsMissing(t *testing.T) {
	adapter := seededAdapter(t)
	adapter.SetSavingsProvisioned(false)
	client, _ := newTestClient(t, adapter)

	err := client.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotProvisioned(err))
	assert.Contains(t, err.Error(), "savings")
	assert.Len(t, client.Transactions.List(), 2)
	assert.Len(t, client.Budgets.List(), 1)
	assert.False(t, client.Savings.TableExists())
}

func TestClient_StartRequiresUser(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("", ""))
	err := client.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, client.Transactions.List())
}

func TestClient_StartDegradesWithoutProfile(t *testing.T) {
	adapter := new(MockAdapter)
	adapter.On("EnsureUserProfile", mock.Anything).Return(nil, ErrServerError)
	adapter.On("ListTransactions", mock.Anything).Return([]*Transaction{}, nil)
	adapter.On("ListBudgets", mock.Anything).Return([]*Budget{}, nil)
	adapter.On("ListSavings", mock.Anything).Return([]*SavingsGoal{}, nil)
	adapter.On("ListSavingsTransactions", mock.Anything).Return([]*SavingsTransaction{}, nil)
	adapter.On("ReconcileSavingsStatuses", mock.Anything).Return(nil)

	client, _ := newTestClient(t, adapter)
	require.NoError(t, client.Start(context.Background()))
	assert.Nil(t, client.Profile.Current())
	assert.Equal(t, DefaultCurrency, client.profile.currency())
}

func TestClient_SignOutResetsState(t *testing.T) {
	adapter := seededAdapter(t)
	client, _ := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Start(ctx))

	require.NoError(t, client.SignOut(ctx))
	assert.Empty(t, client.Transactions.List())
	assert.Empty(t, client.Budgets.List())
	assert.Empty(t, client.Savings.List())
	assert.Nil(t, client.Profile.Current())
	assert.False(t, client.Transactions.State().Loaded)

	// a second user sees none of the first user's data
	adapter.SetUser("user-2", "grace@example.com")
	require.NoError(t, client.Start(ctx))
	assert.Empty(t, client.Transactions.List())
	assert.Equal(t, "grace@example.com", client.Profile.Current().Email)
}

func TestClient_DeleteAllData(t *testing.T) {
	adapter := seededAdapter(t)
	client, notifier := newTestClient(t, adapter)
	ctx := context.Background()
	require.NoError(t, client.Start(ctx))

	require.NoError(t, client.Profile.DeleteAllData(ctx))
	assert.Empty(t, client.Transactions.List())
	assert.Empty(t, client.Savings.List())
	assert.Contains(t, notifier.Successes(), "All data deleted successfully")

	remote, err := adapter.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, remote)
}

func TestClient_ProfileUpdate(t *testing.T) {
	client, _ := newTestClient(t, NewMemoryAdapter("user-1", ""))
	ctx := context.Background()
	_, err := client.Profile.Ensure(ctx)
	require.NoError(t, err)

	eur := "EUR"
	profile, err := client.Profile.Update(ctx, &UpdateProfileParams{Currency: &eur})
	require.NoError(t, err)
	assert.Equal(t, "EUR", profile.Currency)
	assert.Equal(t, "€1,235", client.FormatAmount(decimal.RequireFromString("1234.56")))
}

func TestClient_RESTBackendWiring(t *testing.T) {
	var userLookups int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer direct-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/user":
			atomic.AddInt32(&userLookups, 1)
			_, _ = w.Write([]byte(`{"id":"user-7","email":"ada@example.com"}`))
		case "/rest/v1/transactions":
			assert.Equal(t, "eq.user-7", r.URL.Query().Get("user_id"))
			_, _ = w.Write([]byte(`[{"id":"t1","user_id":"user-7","amount":12.5,"category":"Food","description":"lunch","date":"2025-03-02","type":"expense"}]`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(&ClientOptions{
		BaseURL:     server.URL,
		Token:       "direct-token",
		SessionFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.NoError(t, err)
	require.NotNil(t, client.Auth)
	assert.Equal(t, "direct-token", client.GetSession().Token)

	ctx := context.Background()
	require.NoError(t, client.Transactions.Load(ctx))
	require.NoError(t, client.Transactions.Load(ctx))

	assert.Len(t, client.Transactions.List(), 1)
	assert.Equal(t, "user-7", client.GetSession().UserID)
	assert.Equal(t, "ada@example.com", client.GetSession().Email)
	assert.Equal(t, int32(1), atomic.LoadInt32(&userLookups))
}

func TestClient_RejectedTokenIsNotAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
	}))
	defer server.Close()

	client, err := NewClient(&ClientOptions{BaseURL: server.URL, Token: "stale"})
	require.NoError(t, err)

	err = client.Transactions.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.True(t, IsAuthError(err))
}

func TestClient_ExpiredSessionFileIsRefreshed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	expired := Session{
		Token:        "old-token",
		RefreshToken: "r1",
		UserID:       "user-1",
		Email:        "ada@example.com",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	data, err := json.Marshal(expired)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	var refreshes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/v1/token":
			assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "r1", body["refresh_token"])
			atomic.AddInt32(&refreshes, 1)
			_, _ = w.Write([]byte(`{"access_token":"new-token","expires_in":3600,"refresh_token":"r2","user":{"id":"user-1","email":"ada@example.com"}}`))
		case "/rest/v1/budgets":
			assert.Equal(t, "Bearer new-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(&ClientOptions{BaseURL: server.URL, SessionFile: path})
	require.NoError(t, err)
	assert.Equal(t, "old-token", client.GetSession().Token)

	require.NoError(t, client.Budgets.Load(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, "new-token", client.GetSession().Token)

	// the renewed session replaces the stale file
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored Session
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, "new-token", stored.Token)
	assert.Equal(t, "r2", stored.RefreshToken)
	assert.False(t, stored.Expired())
}

func TestClient_ExpiredSessionWithoutRefreshToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	data, err := json.Marshal(Session{Token: "old-token", UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	client, err := NewClient(&ClientOptions{BaseURL: "http://127.0.0.1:1", SessionFile: path})
	require.NoError(t, err)

	err = client.Transactions.Load(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}
