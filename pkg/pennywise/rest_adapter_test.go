package pennywise

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pennywise-app/pennywise-go/internal/transport"
	internalTypes "github.com/pennywise-app/pennywise-go/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   map[string]interface{}
}

func newTestRESTAdapter(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]interface{})) (*RESTAdapter, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Body:   body,
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		handler(w, r, body)
	}))
	t.Cleanup(server.Close)

	rt := transport.NewRESTTransport(&transport.Options{
		BaseURL:    server.URL,
		APIKey:     "anon",
		HTTPClient: server.Client(),
	})
	rt.SetSession(&internalTypes.Session{Token: "jwt", UserID: "user-1", Email: "ada@example.com"})
	return NewRESTAdapter(rt, nil), &requests
}

func TestRESTAdapter_ListTransactions(t *testing.T) {
	adapter, requests := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
		_, _ = w.Write([]byte(`[
			{"id":"t2","user_id":"user-1","amount":"12.50","category":"Food","description":"Lunch","date":"2025-03-02","type":"expense","is_recurring":false,"created_at":"2025-03-02T12:00:00Z"},
			{"id":"t1","user_id":"user-1","amount":1000,"category":"Salary","description":"","date":"2025-03-01","type":"income","is_recurring":true,"created_at":"2025-03-01T09:00:00Z"}
		]`))
	})

	txns, err := adapter.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "t2", txns[0].ID)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, KindIncome, txns[1].Type)
	assert.True(t, txns[1].IsRecurring)

	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/rest/v1/transactions", req.Path)
	assert.Equal(t, "eq.user-1", req.Query["user_id"][0])
	assert.Equal(t, "date.desc,created_at.desc", req.Query["order"][0])
}

func TestRESTAdapter_CreateBudgetSendsUser(t *testing.T) {
	adapter, requests := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"b1","user_id":"user-1","category":"Food","amount":"300","period":"monthly","created_at":"2025-03-01T00:00:00Z"}]`))
	})

	budget, err := adapter.CreateBudget(context.Background(), &CreateBudgetParams{
		Category: "Food",
		Amount:   decimal.NewFromInt(300),
		Period:   PeriodMonthly,
	})
	require.NoError(t, err)
	assert.Equal(t, "b1", budget.ID)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/rest/v1/budgets", req.Path)
	assert.Equal(t, "user-1", req.Body["user_id"])
	assert.Equal(t, "Food", req.Body["category"])
	assert.Equal(t, "monthly", req.Body["period"])
}

func TestRESTAdapter_CreateRetriesAfterMissingProfile(t *testing.T) {
	var mu sync.Mutex
	inserts := 0
	adapter, requests := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.URL.Path == "/rest/v1/transactions" && inserts == 0:
			inserts++
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"23503","message":"insert or update on table \"transactions\" violates foreign key constraint"}`))
		case r.URL.Path == "/rest/v1/transactions":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"id":"t1","amount":"5","category":"Food","date":"2025-03-01","type":"expense"}]`))
		case r.URL.Path == "/rest/v1/users" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		case r.URL.Path == "/rest/v1/users":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[{"id":"user-1","email":"ada@example.com","currency":"USD","theme":"light"}]`))
		}
	})

	txn, err := adapter.CreateTransaction(context.Background(), &CreateTransactionParams{
		Amount:   decimal.NewFromInt(5),
		Category: "Food",
		Date:     MustParseDate("2025-03-01"),
		Type:     KindExpense,
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", txn.ID)

	var paths []string
	for _, r := range *requests {
		paths = append(paths, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{
		"POST /rest/v1/transactions",
		"GET /rest/v1/users",
		"POST /rest/v1/users",
		"POST /rest/v1/transactions",
	}, paths)
}

func TestRESTAdapter_UpdateNoRowsIsNotFound(t *testing.T) {
	adapter, _ := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
		_, _ = w.Write([]byte(`[]`))
	})

	amount := decimal.NewFromInt(10)
	_, err := adapter.UpdateBudget(context.Background(), "missing", &UpdateBudgetParams{Amount: &amount})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRESTAdapter_MissingTableIsNotProvisioned(t *testing.T) {
	adapter, _ := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.savings\" does not exist"}`))
	})

	_, err := adapter.ListSavings(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotProvisioned(err))
}

func TestRESTAdapter_Reconcile(t *testing.T) {
	adapter, requests := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, adapter.ReconcileSavingsStatuses(context.Background()))
	req := (*requests)[0]
	assert.Equal(t, "/rest/v1/rpc/update_all_savings_statuses", req.Path)
	assert.Equal(t, "user-1", req.Body["p_user_id"])
}

func TestRESTAdapter_DeleteUserDataSkipsUnprovisionedSavings(t *testing.T) {
	adapter, requests := newTestRESTAdapter(t, func(w http.ResponseWriter, r *http.Request, _ map[string]interface{}) {
		if r.URL.Path == "/rest/v1/savings" || r.URL.Path == "/rest/v1/savings_transactions" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"PGRST205","message":"Could not find the table"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, adapter.DeleteUserData(context.Background()))
	require.Len(t, *requests, 5)
	last := (*requests)[4]
	assert.Equal(t, "/rest/v1/users", last.Path)
	assert.Equal(t, "eq.user-1", last.Query["id"][0])
}

func TestRESTAdapter_RequiresSessionUser(t *testing.T) {
	rt := transport.NewRESTTransport(&transport.Options{BaseURL: "http://127.0.0.1:0"})
	adapter := NewRESTAdapter(rt, nil)

	_, err := adapter.ListBudgets(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
