// Package analytics computes time-bucketed financial summaries: monthly
// and quarterly breakdowns, trends, category shares, comparisons, and
// filtered transaction listings.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/storage"
)

type Service struct {
	transactions *storage.TransactionRepository
	categories   *storage.CategoryRepository
}

func NewService(transactions *storage.TransactionRepository, categories *storage.CategoryRepository) *Service {
	return &Service{
		transactions: transactions,
		categories:   categories,
	}
}

type MonthSummary struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type MonthlyReport struct {
	Year    int            `json:"year"`
	Monthly []MonthSummary `json:"monthly"`
}

// Monthly sums income and expense for each of the target year's twelve
// months, in calendar order.
func (s *Service) Monthly(ctx context.Context, userID int64, year int) (*MonthlyReport, error) {
	report := &MonthlyReport{Year: year, Monthly: make([]MonthSummary, 0, 12)}
	for month := 1; month <= 12; month++ {
		period := core.MonthPeriod(year, month)
		income, expense, err := s.sumPeriod(ctx, userID, period)
		if err != nil {
			return nil, err
		}
		report.Monthly = append(report.Monthly, MonthSummary{
			Month:   period.Label,
			Income:  income,
			Expense: expense,
			Balance: income.Sub(expense),
		})
	}
	return report, nil
}

type TrendPoint struct {
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type TrendReport struct {
	Months int          `json:"months"`
	Trend  []TrendPoint `json:"trend"`
}

// Trend reports per-month sums over a sliding window of the most recent
// months ending at now's month, oldest first.
func (s *Service) Trend(ctx context.Context, userID int64, months int, now time.Time) (*TrendReport, error) {
	report := &TrendReport{Months: months, Trend: make([]TrendPoint, 0, months)}
	for i := months - 1; i >= 0; i-- {
		anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		period := core.MonthPeriod(anchor.Year(), int(anchor.Month()))
		income, expense, err := s.sumPeriod(ctx, userID, period)
		if err != nil {
			return nil, err
		}
		report.Trend = append(report.Trend, TrendPoint{
			Label:   period.Label,
			Income:  income,
			Expense: expense,
			Balance: income.Sub(expense),
		})
	}
	return report, nil
}

type QuarterSummary struct {
	Quarter   string          `json:"quarter"`
	StartDate core.Date       `json:"startDate"`
	EndDate   core.Date       `json:"endDate"`
	Income    decimal.Decimal `json:"income"`
	Expense   decimal.Decimal `json:"expense"`
	Balance   decimal.Decimal `json:"balance"`
}

type QuarterlyReport struct {
	Year      int              `json:"year"`
	Quarterly []QuarterSummary `json:"quarterly"`
}

func (s *Service) Quarterly(ctx context.Context, userID int64, year int) (*QuarterlyReport, error) {
	report := &QuarterlyReport{Year: year, Quarterly: make([]QuarterSummary, 0, 4)}
	for _, quarter := range []string{"Q1", "Q2", "Q3", "Q4"} {
		period, err := core.QuarterPeriod(year, quarter)
		if err != nil {
			return nil, err
		}
		income, expense, err := s.sumPeriod(ctx, userID, period)
		if err != nil {
			return nil, err
		}
		report.Quarterly = append(report.Quarterly, QuarterSummary{
			Quarter:   quarter,
			StartDate: period.Start,
			EndDate:   period.End,
			Income:    income,
			Expense:   expense,
			Balance:   income.Sub(expense),
		})
	}
	return report, nil
}

type CategoryShare struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage int             `json:"percentage"`
	Color      string          `json:"color"`
}

type CategoryShareReport struct {
	Type       core.CategoryType `json:"type"`
	Categories []CategoryShare   `json:"categories"`
}

// CategoryShares sums each of the user's categories of the given type over
// the period. Categories with a non-positive sum are excluded; percentages
// are of the included total.
func (s *Service) CategoryShares(ctx context.Context, userID int64, catType core.CategoryType, period core.Period) (*CategoryShareReport, error) {
	report := &CategoryShareReport{Type: catType, Categories: []CategoryShare{}}

	categories, err := s.categories.FindByUser(ctx, userID, catType)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	type entry struct {
		category core.Category
		amount   decimal.Decimal
	}
	var (
		entries []entry
		total   decimal.Decimal
	)
	for _, cat := range categories {
		amount, err := s.transactions.SumByCategory(ctx, userID, cat.ID, period.Start, period.End)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			continue
		}
		entries = append(entries, entry{category: cat, amount: amount})
		total = total.Add(amount)
	}

	if !total.IsPositive() {
		return report, nil
	}
	for _, e := range entries {
		report.Categories = append(report.Categories, CategoryShare{
			Name:       e.category.Name,
			Amount:     e.amount,
			Percentage: core.Percentage(e.amount, total),
			Color:      e.category.Color,
		})
	}
	return report, nil
}

type CategoryAmount struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Color      string          `json:"color"`
	Percentage int             `json:"percentage"`
}

type SideBreakdown struct {
	Categories []CategoryAmount `json:"categories"`
	Total      decimal.Decimal  `json:"total"`
}

type ComparisonReport struct {
	Period  core.Period   `json:"period"`
	Income  SideBreakdown `json:"income"`
	Expense SideBreakdown `json:"expense"`
	Summary struct {
		IncomeTotal       decimal.Decimal `json:"incomeTotal"`
		ExpenseTotal      decimal.Decimal `json:"expenseTotal"`
		Balance           decimal.Decimal `json:"balance"`
		IncomePercentage  int             `json:"incomePercentage"`
		ExpensePercentage int             `json:"expensePercentage"`
	} `json:"comparison"`
}

// Comparison breaks income and expense down by category over one resolved
// period. Per-category percentages are within each side's total; the
// summary percentages are of the combined income+expense total.
func (s *Service) Comparison(ctx context.Context, userID int64, period core.Period) (*ComparisonReport, error) {
	report := &ComparisonReport{Period: period}

	income, err := s.sideBreakdown(ctx, userID, core.Income, period)
	if err != nil {
		return nil, err
	}
	expense, err := s.sideBreakdown(ctx, userID, core.Expense, period)
	if err != nil {
		return nil, err
	}
	report.Income = income
	report.Expense = expense

	combined := income.Total.Add(expense.Total)
	report.Summary.IncomeTotal = income.Total
	report.Summary.ExpenseTotal = expense.Total
	report.Summary.Balance = income.Total.Sub(expense.Total)
	report.Summary.IncomePercentage = core.Percentage(income.Total, combined)
	report.Summary.ExpensePercentage = core.Percentage(expense.Total, combined)
	return report, nil
}

func (s *Service) sideBreakdown(ctx context.Context, userID int64, catType core.CategoryType, period core.Period) (SideBreakdown, error) {
	breakdown := SideBreakdown{Categories: []CategoryAmount{}}

	categories, err := s.categories.FindByUser(ctx, userID, catType)
	if err != nil {
		return breakdown, fmt.Errorf("list categories: %w", err)
	}
	for _, cat := range categories {
		amount, err := s.transactions.SumByCategory(ctx, userID, cat.ID, period.Start, period.End)
		if err != nil {
			return breakdown, err
		}
		if !amount.IsPositive() {
			continue
		}
		breakdown.Categories = append(breakdown.Categories, CategoryAmount{
			ID:     cat.ID,
			Name:   cat.Name,
			Amount: amount,
			Color:  cat.Color,
		})
		breakdown.Total = breakdown.Total.Add(amount)
	}
	for i := range breakdown.Categories {
		breakdown.Categories[i].Percentage = core.Percentage(breakdown.Categories[i].Amount, breakdown.Total)
	}
	return breakdown, nil
}

type CategoryDetail struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Type   core.CategoryType `json:"type"`
	Amount decimal.Decimal   `json:"amount"`
	Color  string            `json:"color"`
}

type CategoryDetailReport struct {
	Period     core.Period      `json:"period"`
	Type       string           `json:"type"`
	Categories []CategoryDetail `json:"categories"`
	Totals     struct {
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Balance decimal.Decimal `json:"balance"`
	} `json:"totals"`
}

// CategoryDetails reports per-category sums for one or both types over a
// period, sorted by amount descending.
func (s *Service) CategoryDetails(ctx context.Context, userID int64, typeFilter string, period core.Period) (*CategoryDetailReport, error) {
	report := &CategoryDetailReport{Period: period, Type: typeFilter, Categories: []CategoryDetail{}}

	var types []core.CategoryType
	switch typeFilter {
	case "income":
		types = []core.CategoryType{core.Income}
	case "expense":
		types = []core.CategoryType{core.Expense}
	default:
		types = []core.CategoryType{core.Income, core.Expense}
	}

	for _, catType := range types {
		categories, err := s.categories.FindByUser(ctx, userID, catType)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		for _, cat := range categories {
			amount, err := s.transactions.SumByCategory(ctx, userID, cat.ID, period.Start, period.End)
			if err != nil {
				return nil, err
			}
			if !amount.IsPositive() {
				continue
			}
			report.Categories = append(report.Categories, CategoryDetail{
				ID:     cat.ID,
				Name:   cat.Name,
				Type:   cat.Type,
				Amount: amount,
				Color:  cat.Color,
			})
			if cat.Type == core.Income {
				report.Totals.Income = report.Totals.Income.Add(amount)
			} else {
				report.Totals.Expense = report.Totals.Expense.Add(amount)
			}
		}
	}

	sort.Slice(report.Categories, func(i, j int) bool {
		return report.Categories[i].Amount.GreaterThan(report.Categories[j].Amount)
	})
	report.Totals.Balance = report.Totals.Income.Sub(report.Totals.Expense)
	return report, nil
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

type TransactionSummary struct {
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	TotalExpense     decimal.Decimal `json:"totalExpense"`
	TransactionCount int64           `json:"transactionCount"`
	Balance          decimal.Decimal `json:"balance"`
}

type TransactionDetailReport struct {
	Period       core.Period                 `json:"period"`
	Summary      TransactionSummary          `json:"summary"`
	Pagination   Pagination                  `json:"pagination"`
	Transactions []storage.TransactionRecord `json:"transactions"`
}

// TransactionDetails lists the filtered transactions for one period page
// by page; the summary is computed over the unpaginated filtered set.
func (s *Service) TransactionDetails(ctx context.Context, userID int64, period core.Period, filter storage.TransactionFilter, page, limit int) (*TransactionDetailReport, error) {
	filter.StartDate = &period.Start
	filter.EndDate = &period.End

	total, err := s.transactions.CountByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * limit
	records, err := s.transactions.FindByUser(ctx, userID, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	income, expense, count, err := s.transactions.Summary(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &TransactionDetailReport{
		Period: period,
		Summary: TransactionSummary{
			TotalIncome:      income,
			TotalExpense:     expense,
			TransactionCount: count,
			Balance:          income.Sub(expense),
		},
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
			HasPrev:    page > 1,
			HasNext:    int64(page) < totalPages,
		},
		Transactions: records,
	}, nil
}

type CategoryTransactionsReport struct {
	Category     core.Category               `json:"category"`
	Period       core.Period                 `json:"period"`
	Statistics   storage.CategoryStats       `json:"statistics"`
	Transactions []storage.TransactionRecord `json:"transactions"`
}

// CategoryTransactions lists one owned category's transactions in a
// period together with aggregate statistics. Returns core.ErrNotFound
// when the category does not belong to the user.
func (s *Service) CategoryTransactions(ctx context.Context, userID, categoryID int64, period core.Period, limit int) (*CategoryTransactionsReport, error) {
	category, err := s.categories.FindByIDForUser(ctx, categoryID, userID)
	if err != nil {
		return nil, err
	}

	filter := storage.TransactionFilter{
		StartDate:  &period.Start,
		EndDate:    &period.End,
		CategoryID: &categoryID,
	}
	records, err := s.transactions.FindByUser(ctx, userID, filter, limit, 0)
	if err != nil {
		return nil, err
	}

	stats, err := s.transactions.StatsByCategory(ctx, userID, categoryID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	return &CategoryTransactionsReport{
		Category:     *category,
		Period:       period,
		Statistics:   stats,
		Transactions: records,
	}, nil
}

func (s *Service) sumPeriod(ctx context.Context, userID int64, period core.Period) (income, expense decimal.Decimal, err error) {
	income, err = s.transactions.SumByType(ctx, userID, period.Start, period.End, core.Income)
	if err != nil {
		return
	}
	expense, err = s.transactions.SumByType(ctx, userID, period.Start, period.End, core.Expense)
	return
}
