package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/analytics"
	"tally/internal/auth"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	users := storage.NewUserRepository(store)
	categories := storage.NewCategoryRepository(store)
	transactions := storage.NewTransactionRepository(store)

	srv := NewServer(":0", Deps{
		Auth:            auth.NewService(users, store, testSecret, time.Hour, 4, logger),
		Users:           users,
		Categories:      categories,
		TransactionRepo: transactions,
		Transactions:    services.NewTransactionService(transactions, categories, nil, logger),
		Analytics:       analytics.NewService(transactions, categories),
		Store:           store,
		Logger:          logger,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(res.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return res, decoded
}

func register(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()
	res, body := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"password": "secret123",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %v", username, res.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	return token
}

func TestRegisterLoginFlow(t *testing.T) {
	_, ts := newTestServer(t)

	token := register(t, ts, "alice")

	res, body := doJSON(t, ts, http.MethodGet, "/api/users/me", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: status = %d", res.StatusCode)
	}
	if body["username"] != "alice" {
		t.Errorf("username = %v, want alice", body["username"])
	}
	if _, ok := body["password_hash"]; ok {
		t.Error("password hash must never be serialized")
	}

	res, body = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice",
		"password": "secret123",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: status = %d, body = %v", res.StatusCode, body)
	}
	if body["token"] == "" {
		t.Error("login returned no token")
	}
}

func TestRegister_Validation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"short username", map[string]any{"username": "ab", "password": "secret123"}},
		{"long username", map[string]any{"username": strings.Repeat("a", 31), "password": "secret123"}},
		{"short password", map[string]any{"username": "alice", "password": "12345"}},
		{"bad email", map[string]any{"username": "alice", "password": "secret123", "email": "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", tt.body)
			if res.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", res.StatusCode)
			}
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts, "alice")

	res, body := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "alice",
		"password": "other456",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %v)", res.StatusCode, body)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts, "alice")

	res, _ := doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice",
		"password": "wrongpass",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", res.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := doJSON(t, ts, http.MethodGet, "/api/transactions", tt.token, nil)
			if res.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", res.StatusCode)
			}
		})
	}
}

// A negative amount on an expense category must surface as a positive
// expense in the monthly report: the category type is the income/expense
// signal, not the sign.
func TestNegativeAmountNormalized(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice")

	res, category := doJSON(t, ts, http.MethodPost, "/api/categories", token, map[string]any{
		"name": "Groceries",
		"type": "expense",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create category: status = %d, body = %v", res.StatusCode, category)
	}

	res, txn := doJSON(t, ts, http.MethodPost, "/api/transactions", token, map[string]any{
		"category_id": category["id"],
		"amount":      -42.50,
		"date":        "2025-03-10",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create transaction: status = %d, body = %v", res.StatusCode, txn)
	}
	if fmt.Sprint(txn["amount"]) != "42.5" {
		t.Errorf("stored amount = %v, want 42.5", txn["amount"])
	}

	res, report := doJSON(t, ts, http.MethodGet, "/api/analytics/monthly?year=2025", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("monthly: status = %d", res.StatusCode)
	}
	months := report["monthly"].([]any)
	march := months[2].(map[string]any)
	if fmt.Sprint(march["expense"]) != "42.5" {
		t.Errorf("march expense = %v, want 42.5", march["expense"])
	}
}

func TestCreateTransaction_ForeignCategory(t *testing.T) {
	_, ts := newTestServer(t)
	aliceToken := register(t, ts, "alice")
	malloryToken := register(t, ts, "mallory")

	res, category := doJSON(t, ts, http.MethodPost, "/api/categories", aliceToken, map[string]any{
		"name": "Private",
		"type": "expense",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create category: status = %d", res.StatusCode)
	}

	res, body := doJSON(t, ts, http.MethodPost, "/api/transactions", malloryToken, map[string]any{
		"category_id": category["id"],
		"amount":      10,
		"date":        "2025-03-10",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %v)", res.StatusCode, body)
	}
}

func TestCategoryDelete_LeavesTransactionUncategorized(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice")

	_, category := doJSON(t, ts, http.MethodPost, "/api/categories", token, map[string]any{
		"name": "Transient",
		"type": "expense",
	})
	_, txn := doJSON(t, ts, http.MethodPost, "/api/transactions", token, map[string]any{
		"category_id": category["id"],
		"amount":      10,
		"date":        "2025-03-10",
	})

	res, _ := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/categories/%v", category["id"]), token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete category: status = %d", res.StatusCode)
	}

	res, body := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/transactions/%v", txn["id"]), token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get transaction: status = %d", res.StatusCode)
	}
	if body["category_id"] != nil {
		t.Errorf("category_id = %v, want null", body["category_id"])
	}
}

func TestCrossUserTransactionHidden(t *testing.T) {
	_, ts := newTestServer(t)
	aliceToken := register(t, ts, "alice")
	malloryToken := register(t, ts, "mallory")

	_, txn := doJSON(t, ts, http.MethodPost, "/api/transactions", aliceToken, map[string]any{
		"amount": 10,
		"date":   "2025-03-10",
	})

	res, _ := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/transactions/%v", txn["id"]), malloryToken, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("foreign get: status = %d, want 404", res.StatusCode)
	}
	res, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/transactions/%v", txn["id"]), malloryToken, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("foreign delete: status = %d, want 404", res.StatusCode)
	}
}

func TestAnalyticsValidation(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice")

	tests := []struct {
		name string
		path string
	}{
		{"year too small", "/api/analytics/monthly?year=1999"},
		{"year too large", "/api/analytics/monthly?year=2101"},
		{"bad month", "/api/analytics/comparison?month=13"},
		{"bad quarter", "/api/analytics/comparison?quarter=Q5"},
		{"bad type", "/api/analytics/category?type=savings"},
		{"months out of range", "/api/analytics/trend?months=25"},
		{"bad page", "/api/analytics/transaction-detail?page=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := doJSON(t, ts, http.MethodGet, tt.path, token, nil)
			if res.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", res.StatusCode)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	res, body := doJSON(t, ts, http.MethodGet, "/health", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["service"] != "tally" {
		t.Errorf("service = %v, want tally", body["service"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("missing uptime field")
	}
}

func TestAPINotFoundIsJSON(t *testing.T) {
	_, ts := newTestServer(t)

	res, body := doJSON(t, ts, http.MethodGet, "/api/no-such-route", "", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
	if body["error"] == nil {
		t.Error("expected JSON error body")
	}
}

func TestShutdownEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	token := register(t, ts, "alice")

	res, body := doJSON(t, ts, http.MethodPost, "/api/shutdown", token, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", res.StatusCode, body)
	}

	select {
	case <-srv.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Error("shutdown was not signaled")
	}
}

func TestExportJSON(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice")

	doJSON(t, ts, http.MethodPost, "/api/transactions", token, map[string]any{
		"amount": 10,
		"date":   "2025-03-10",
	})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/transactions/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if cd := res.Header.Get("Content-Disposition"); cd == "" {
		t.Error("missing Content-Disposition header")
	}

	var records []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("exported records = %d, want 1", len(records))
	}
}

func TestExportXLSX(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/transactions/export?format=xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %s", ct)
	}
}
