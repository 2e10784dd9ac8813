package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// TransactionRepository maps rows of the transactions table, joined with
// category metadata where listings need it.
type TransactionRepository struct {
	store *Store
}

func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// TransactionFilter narrows listing and summary queries. Zero values mean
// "no constraint".
type TransactionFilter struct {
	StartDate  *core.Date
	EndDate    *core.Date
	CategoryID *int64
	Type       core.CategoryType
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Keyword    string
}

// TransactionRecord is a transaction with its joined category, nil when
// uncategorized.
type TransactionRecord struct {
	core.Transaction
	Category *core.Category `json:"category"`
}

// where renders the filter as SQL conditions against aliased tables t
// (transactions) and c (categories).
func (f TransactionFilter) where(userID int64) (string, []any) {
	conds := []string{"t.user_id = ?"}
	args := []any{userID}

	if f.StartDate != nil {
		conds = append(conds, "t.date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		conds = append(conds, "t.date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.CategoryID != nil {
		conds = append(conds, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != "" {
		conds = append(conds, "c.type = ?")
		args = append(args, f.Type)
	}
	// Amounts bind as floats: a text-bound parameter would compare
	// lexically against the numeric column.
	if f.MinAmount != nil {
		conds = append(conds, "t.amount >= ?")
		args = append(args, f.MinAmount.InexactFloat64())
	}
	if f.MaxAmount != nil {
		conds = append(conds, "t.amount <= ?")
		args = append(args, f.MaxAmount.InexactFloat64())
	}
	if f.Keyword != "" {
		conds = append(conds, "(t.description LIKE ? OR c.name LIKE ?)")
		pattern := "%" + f.Keyword + "%"
		args = append(args, pattern, pattern)
	}

	return strings.Join(conds, " AND "), args
}

const transactionSelect = `
SELECT t.id, t.user_id, t.category_id, t.amount, COALESCE(t.description, ''), t.date, t.created_at,
       c.name, c.type, c.color
FROM transactions t
LEFT JOIN categories c ON t.category_id = c.id
`

func scanTransactionRows(rows *sql.Rows) ([]TransactionRecord, error) {
	records := []TransactionRecord{}
	for rows.Next() {
		var (
			rec       TransactionRecord
			amount    float64
			date      time.Time
			createdAt time.Time
			catName   sql.NullString
			catType   sql.NullString
			catColor  sql.NullString
		)
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &amount, &rec.Description,
			&date, &createdAt, &catName, &catType, &catColor)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Amount = decimal.NewFromFloat(amount).Round(2)
		// The driver parses DATE columns into time.Time.
		rec.Date = core.Date{Time: date}
		rec.CreatedAt = createdAt
		if rec.CategoryID != nil && catName.Valid {
			rec.Category = &core.Category{
				ID:     *rec.CategoryID,
				Name:   catName.String,
				Type:   core.CategoryType(catType.String),
				UserID: rec.UserID,
				Color:  catColor.String,
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindByUser lists a user's transactions, newest first, with pagination.
func (r *TransactionRepository) FindByUser(ctx context.Context, userID int64, filter TransactionFilter, limit, offset int) ([]TransactionRecord, error) {
	where, args := filter.where(userID)
	q := transactionSelect + "WHERE " + where + " ORDER BY t.date DESC, t.created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

// CountByUser counts the unpaginated filtered set.
func (r *TransactionRepository) CountByUser(ctx context.Context, userID int64, filter TransactionFilter) (int64, error) {
	where, args := filter.where(userID)
	q := "SELECT COUNT(*) FROM transactions t LEFT JOIN categories c ON t.category_id = c.id WHERE " + where

	var total int64
	if err := r.store.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

// FindByIDForUser returns the transaction only when it belongs to userID.
func (r *TransactionRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*TransactionRecord, error) {
	rows, err := r.store.db.QueryContext(ctx,
		transactionSelect+"WHERE t.id = ? AND t.user_id = ?", id, userID)
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	defer rows.Close()

	records, err := scanTransactionRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrNotFound
	}
	return &records[0], nil
}

func (r *TransactionRepository) Create(ctx context.Context, t core.Transaction) (*TransactionRecord, error) {
	var categoryID any
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}
	var description any
	if t.Description != "" {
		description = t.Description
	}
	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO transactions (user_id, category_id, amount, description, date) VALUES (?, ?, ?, ?, ?)",
		t.UserID, categoryID, t.Amount.InexactFloat64(), description, t.Date.String())
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("transaction insert id: %w", err)
	}
	return r.FindByIDForUser(ctx, id, t.UserID)
}

// TransactionUpdate holds the allow-listed mutable transaction fields.
// The owning user is never updatable. SetCategory distinguishes "clear the
// category" from "leave it alone".
type TransactionUpdate struct {
	SetCategory bool
	CategoryID  *int64
	Amount      *decimal.Decimal
	Description *string
	Date        *core.Date
}

func (r *TransactionRepository) UpdateForUser(ctx context.Context, id, userID int64, updates TransactionUpdate) error {
	var (
		set  []string
		args []any
	)
	if updates.SetCategory {
		set = append(set, "category_id = ?")
		if updates.CategoryID != nil {
			args = append(args, *updates.CategoryID)
		} else {
			args = append(args, nil)
		}
	}
	if updates.Amount != nil {
		set = append(set, "amount = ?")
		args = append(args, updates.Amount.InexactFloat64())
	}
	if updates.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *updates.Description)
	}
	if updates.Date != nil {
		set = append(set, "date = ?")
		args = append(args, updates.Date.String())
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id, userID)
	res, err := r.store.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(set, ", ")+" WHERE id = ? AND user_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) DeleteForUser(ctx context.Context, id, userID int64) error {
	res, err := r.store.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumByType sums a user's transactions whose category has the given type
// within an inclusive date range. Uncategorized transactions never enter
// typed sums.
func (r *TransactionRepository) SumByType(ctx context.Context, userID int64, start, end core.Date, catType core.CategoryType) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id
		WHERE t.user_id = ? AND t.date BETWEEN ? AND ? AND c.type = ?`,
		userID, start.String(), end.String(), catType).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum by type: %w", err)
	}
	return decimal.NewFromFloat(total.Float64).Round(2), nil
}

// SumByCategory sums a user's transactions of one category within an
// inclusive date range.
func (r *TransactionRepository) SumByCategory(ctx context.Context, userID, categoryID int64, start, end core.Date) (decimal.Decimal, error) {
	var total sql.NullFloat64
	err := r.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = ? AND category_id = ? AND date BETWEEN ? AND ?`,
		userID, categoryID, start.String(), end.String()).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum by category: %w", err)
	}
	return decimal.NewFromFloat(total.Float64).Round(2), nil
}

// Summary aggregates income, expense, and row count over the unpaginated
// filtered set. Amount and keyword constraints are intentionally not part
// of the summary, matching the listing's independent summary contract.
func (r *TransactionRepository) Summary(ctx context.Context, userID int64, filter TransactionFilter) (income, expense decimal.Decimal, count int64, err error) {
	summaryFilter := TransactionFilter{
		StartDate:  filter.StartDate,
		EndDate:    filter.EndDate,
		CategoryID: filter.CategoryID,
		Type:       filter.Type,
	}
	where, args := summaryFilter.where(userID)
	q := `
		SELECT
			COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN c.type = 'expense' THEN t.amount ELSE 0 END), 0),
			COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id
		WHERE ` + where

	var incomeF, expenseF float64
	if err = r.store.db.QueryRowContext(ctx, q, args...).Scan(&incomeF, &expenseF, &count); err != nil {
		err = fmt.Errorf("transaction summary: %w", err)
		return
	}
	income = decimal.NewFromFloat(incomeF).Round(2)
	expense = decimal.NewFromFloat(expenseF).Round(2)
	return
}

// CategoryStats aggregates one category's transactions over a date range.
type CategoryStats struct {
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Count        int64           `json:"transactionCount"`
	EarliestDate string          `json:"earliestDate,omitempty"`
	LatestDate   string          `json:"latestDate,omitempty"`
}

func (r *TransactionRepository) StatsByCategory(ctx context.Context, userID, categoryID int64, start, end core.Date) (CategoryStats, error) {
	var (
		stats    CategoryStats
		total    sql.NullFloat64
		earliest sql.NullString
		latest   sql.NullString
	)
	err := r.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*), MIN(date), MAX(date)
		FROM transactions
		WHERE user_id = ? AND category_id = ? AND date BETWEEN ? AND ?`,
		userID, categoryID, start.String(), end.String()).Scan(&total, &stats.Count, &earliest, &latest)
	if err != nil {
		return CategoryStats{}, fmt.Errorf("category stats: %w", err)
	}
	stats.TotalAmount = decimal.NewFromFloat(total.Float64).Round(2)
	stats.EarliestDate = earliest.String
	stats.LatestDate = latest.String
	return stats, nil
}
