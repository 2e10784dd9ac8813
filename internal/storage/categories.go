package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tally/internal/core"
)

// CategoryRepository maps rows of the categories table. Every lookup used
// by the HTTP layer scopes on the owning user in the query predicate, so
// an ownership check cannot be forgotten at a call site.
type CategoryRepository struct {
	store *Store
}

func NewCategoryRepository(store *Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

const categoryColumns = "id, name, type, user_id, color"

func scanCategory(row *sql.Row) (*core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.UserID, &c.Color)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

// FindByUser lists a user's categories, optionally filtered by type,
// ordered by name.
func (r *CategoryRepository) FindByUser(ctx context.Context, userID int64, typeFilter core.CategoryType) ([]core.Category, error) {
	q := "SELECT " + categoryColumns + " FROM categories WHERE user_id = ?"
	args := []any{userID}
	if typeFilter != "" {
		q += " AND type = ?"
		args = append(args, typeFilter)
	}
	q += " ORDER BY name"

	rows, err := r.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.UserID, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// FindByIDForUser returns the category only when it belongs to userID.
func (r *CategoryRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*core.Category, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND user_id = ?", id, userID)
	return scanCategory(row)
}

func (r *CategoryRepository) Create(ctx context.Context, userID int64, name string, catType core.CategoryType, color string) (*core.Category, error) {
	if color == "" {
		color = core.DefaultColor
	}

	// Names are unique per user; checked up front so the caller gets a
	// domain error rather than a constraint violation.
	var existing int64
	err := r.store.db.QueryRowContext(ctx,
		"SELECT id FROM categories WHERE user_id = ? AND name = ?", userID, name).Scan(&existing)
	if err == nil {
		return nil, core.ErrCategoryNameTaken
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check category name: %w", err)
	}

	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO categories (name, type, user_id, color) VALUES (?, ?, ?, ?)",
		name, catType, userID, color)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category insert id: %w", err)
	}
	return r.FindByIDForUser(ctx, id, userID)
}

// CategoryUpdate holds the allow-listed mutable category fields.
type CategoryUpdate struct {
	Name  *string
	Type  *core.CategoryType
	Color *string
}

func (r *CategoryRepository) UpdateForUser(ctx context.Context, id, userID int64, updates CategoryUpdate) error {
	var (
		set  []string
		args []any
	)
	if updates.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *updates.Name)
	}
	if updates.Type != nil {
		set = append(set, "type = ?")
		args = append(args, *updates.Type)
	}
	if updates.Color != nil {
		set = append(set, "color = ?")
		args = append(args, *updates.Color)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id, userID)
	res, err := r.store.db.ExecContext(ctx,
		"UPDATE categories SET "+strings.Join(set, ", ")+" WHERE id = ? AND user_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteForUser removes a category; referencing transactions survive with
// their category reference cleared (ON DELETE SET NULL).
func (r *CategoryRepository) DeleteForUser(ctx context.Context, id, userID int64) error {
	res, err := r.store.db.ExecContext(ctx,
		"DELETE FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
