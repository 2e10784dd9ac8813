package analytics

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/storage"
)

type fixture struct {
	store        *storage.Store
	users        *storage.UserRepository
	categories   *storage.CategoryRepository
	transactions *storage.TransactionRepository
	service      *Service
	user         *core.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:        store,
		users:        storage.NewUserRepository(store),
		categories:   storage.NewCategoryRepository(store),
		transactions: storage.NewTransactionRepository(store),
	}
	f.service = NewService(f.transactions, f.categories)

	f.user, err = f.users.Create(context.Background(), "alice", "hash", "", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return f
}

func (f *fixture) category(t *testing.T, name string, catType core.CategoryType) *core.Category {
	t.Helper()
	c, err := f.categories.Create(context.Background(), f.user.ID, name, catType, "")
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return c
}

func (f *fixture) transaction(t *testing.T, categoryID *int64, amount, date string) {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	_, err = f.transactions.Create(context.Background(), core.Transaction{
		UserID:     f.user.ID,
		CategoryID: categoryID,
		Amount:     decimal.RequireFromString(amount),
		Date:       d,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
}

func TestMonthly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food := f.category(t, "Food", core.Expense)
	salary := f.category(t, "Salary", core.Income)

	f.transaction(t, &food.ID, "42.50", "2025-03-10")
	f.transaction(t, &salary.ID, "1000.00", "2025-03-01")
	f.transaction(t, &food.ID, "10.00", "2025-04-02")
	// Other years never bleed in.
	f.transaction(t, &food.ID, "99.00", "2024-03-10")

	report, err := f.service.Monthly(ctx, f.user.ID, 2025)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(report.Monthly) != 12 {
		t.Fatalf("months = %d, want 12", len(report.Monthly))
	}

	march := report.Monthly[2]
	if march.Month != "2025-03" {
		t.Errorf("month label = %s, want 2025-03", march.Month)
	}
	if march.Income.String() != "1000" {
		t.Errorf("march income = %s, want 1000", march.Income)
	}
	if march.Expense.String() != "42.5" {
		t.Errorf("march expense = %s, want 42.5", march.Expense)
	}
	if march.Balance.String() != "957.5" {
		t.Errorf("march balance = %s, want 957.5", march.Balance)
	}

	january := report.Monthly[0]
	if !january.Income.IsZero() || !january.Expense.IsZero() {
		t.Error("empty month should have zero sums")
	}
}

func TestTrend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	report, err := f.service.Trend(ctx, f.user.ID, 3, now)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(report.Trend) != 3 {
		t.Fatalf("points = %d, want 3", len(report.Trend))
	}

	// Oldest first, ending at the current month.
	wantLabels := []string{"2025-04", "2025-05", "2025-06"}
	for i, want := range wantLabels {
		if report.Trend[i].Label != want {
			t.Errorf("trend[%d] = %s, want %s", i, report.Trend[i].Label, want)
		}
	}
}

func TestTrend_CrossesYearBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	report, err := f.service.Trend(ctx, f.user.ID, 3, now)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}

	wantLabels := []string{"2024-11", "2024-12", "2025-01"}
	for i, want := range wantLabels {
		if report.Trend[i].Label != want {
			t.Errorf("trend[%d] = %s, want %s", i, report.Trend[i].Label, want)
		}
	}
}

func TestQuarterly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food := f.category(t, "Food", core.Expense)
	f.transaction(t, &food.ID, "100.00", "2025-02-15")
	f.transaction(t, &food.ID, "50.00", "2025-11-01")

	report, err := f.service.Quarterly(ctx, f.user.ID, 2025)
	if err != nil {
		t.Fatalf("quarterly: %v", err)
	}
	if len(report.Quarterly) != 4 {
		t.Fatalf("quarters = %d, want 4", len(report.Quarterly))
	}

	q1 := report.Quarterly[0]
	if q1.Quarter != "Q1" {
		t.Errorf("quarter = %s, want Q1", q1.Quarter)
	}
	if q1.StartDate.String() != "2025-01-01" || q1.EndDate.String() != "2025-03-31" {
		t.Errorf("Q1 range = %s..%s", q1.StartDate, q1.EndDate)
	}
	if q1.Expense.String() != "100" {
		t.Errorf("Q1 expense = %s, want 100", q1.Expense)
	}
	if report.Quarterly[3].Expense.String() != "50" {
		t.Errorf("Q4 expense = %s, want 50", report.Quarterly[3].Expense)
	}
}

func TestCategoryShares(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food := f.category(t, "Food", core.Expense)
	rent := f.category(t, "Rent", core.Expense)
	f.category(t, "Unused", core.Expense)
	salary := f.category(t, "Salary", core.Income)

	f.transaction(t, &food.ID, "25.00", "2025-05-03")
	f.transaction(t, &rent.ID, "75.00", "2025-05-01")
	// Income never appears in an expense share report.
	f.transaction(t, &salary.ID, "500.00", "2025-05-01")

	report, err := f.service.CategoryShares(ctx, f.user.ID, core.Expense, core.MonthPeriod(2025, 5))
	if err != nil {
		t.Fatalf("shares: %v", err)
	}
	if len(report.Categories) != 2 {
		t.Fatalf("categories = %d, want 2 (zero-sum excluded)", len(report.Categories))
	}

	byName := map[string]CategoryShare{}
	for _, c := range report.Categories {
		byName[c.Name] = c
	}
	if byName["Food"].Percentage != 25 {
		t.Errorf("food share = %d, want 25", byName["Food"].Percentage)
	}
	if byName["Rent"].Percentage != 75 {
		t.Errorf("rent share = %d, want 75", byName["Rent"].Percentage)
	}
}

func TestCategoryShares_EmptyPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.category(t, "Food", core.Expense)

	report, err := f.service.CategoryShares(ctx, f.user.ID, core.Expense, core.MonthPeriod(2025, 5))
	if err != nil {
		t.Fatalf("shares: %v", err)
	}
	if len(report.Categories) != 0 {
		t.Errorf("categories = %d, want 0", len(report.Categories))
	}
}

func TestComparison(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food := f.category(t, "Food", core.Expense)
	salary := f.category(t, "Salary", core.Income)
	f.transaction(t, &food.ID, "300.00", "2025-07-10")
	f.transaction(t, &salary.ID, "700.00", "2025-07-01")

	report, err := f.service.Comparison(ctx, f.user.ID, core.MonthPeriod(2025, 7))
	if err != nil {
		t.Fatalf("comparison: %v", err)
	}

	if report.Summary.IncomeTotal.String() != "700" {
		t.Errorf("income total = %s, want 700", report.Summary.IncomeTotal)
	}
	if report.Summary.ExpenseTotal.String() != "300" {
		t.Errorf("expense total = %s, want 300", report.Summary.ExpenseTotal)
	}
	if report.Summary.Balance.String() != "400" {
		t.Errorf("balance = %s, want 400", report.Summary.Balance)
	}
	if report.Summary.IncomePercentage != 70 || report.Summary.ExpensePercentage != 30 {
		t.Errorf("percentages = %d/%d, want 70/30",
			report.Summary.IncomePercentage, report.Summary.ExpensePercentage)
	}

	// Single category per side owns 100% of its side.
	if len(report.Income.Categories) != 1 || report.Income.Categories[0].Percentage != 100 {
		t.Error("income side should have one category at 100%")
	}
}

func TestCategoryDetails_SortedByAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food := f.category(t, "Food", core.Expense)
	rent := f.category(t, "Rent", core.Expense)
	salary := f.category(t, "Salary", core.Income)
	f.transaction(t, &food.ID, "40.00", "2025-08-05")
	f.transaction(t, &rent.ID, "900.00", "2025-08-01")
	f.transaction(t, &salary.ID, "2000.00", "2025-08-01")

	report, err := f.service.CategoryDetails(ctx, f.user.ID, "all", core.MonthPeriod(2025, 8))
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if len(report.Categories) != 3 {
		t.Fatalf("categories = %d, want 3", len(report.Categories))
	}

	wantOrder := []string{"Salary", "Rent", "Food"}
	for i, want := range wantOrder {
		if report.Categories[i].Name != want {
			t.Errorf("categories[%d] = %s, want %s", i, report.Categories[i].Name, want)
		}
	}
	if report.Totals.Balance.String() != "1060" {
		t.Errorf("balance = %s, want 1060", report.Totals.Balance)
	}
}

func TestTransactionDetails_Pagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	food := f.category(t, "Food", core.Expense)
	for day := 1; day <= 5; day++ {
		f.transaction(t, &food.ID, "10.00", core.NewDate(2025, 9, day).String())
	}

	report, err := f.service.TransactionDetails(ctx, f.user.ID, core.MonthPeriod(2025, 9),
		storage.TransactionFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("details: %v", err)
	}

	if report.Pagination.Total != 5 {
		t.Errorf("total = %d, want 5", report.Pagination.Total)
	}
	if report.Pagination.TotalPages != 3 {
		t.Errorf("total pages = %d, want 3", report.Pagination.TotalPages)
	}
	if !report.Pagination.HasPrev || !report.Pagination.HasNext {
		t.Error("page 2 of 3 should have both prev and next")
	}
	if len(report.Transactions) != 2 {
		t.Errorf("page size = %d, want 2", len(report.Transactions))
	}
	if report.Summary.TotalExpense.String() != "50" {
		t.Errorf("summary expense = %s, want 50 (unpaginated)", report.Summary.TotalExpense)
	}
	if report.Summary.TransactionCount != 5 {
		t.Errorf("summary count = %d, want 5", report.Summary.TransactionCount)
	}
}

func TestCategoryTransactions_OwnershipRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mallory, err := f.users.Create(ctx, "mallory", "hash", "", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	food := f.category(t, "Food", core.Expense)
	f.transaction(t, &food.ID, "10.00", "2025-10-01")

	if _, err := f.service.CategoryTransactions(ctx, mallory.ID, food.ID, core.YearPeriod(2025), 20); err != core.ErrNotFound {
		t.Errorf("foreign category: error = %v, want %v", err, core.ErrNotFound)
	}

	report, err := f.service.CategoryTransactions(ctx, f.user.ID, food.ID, core.YearPeriod(2025), 20)
	if err != nil {
		t.Fatalf("category transactions: %v", err)
	}
	if report.Category.Name != "Food" {
		t.Errorf("category = %s, want Food", report.Category.Name)
	}
	if len(report.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1", len(report.Transactions))
	}
	if report.Statistics.TotalAmount.String() != "10" {
		t.Errorf("total = %s, want 10", report.Statistics.TotalAmount)
	}
}
