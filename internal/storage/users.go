package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tally/internal/core"
)

// UserRepository maps rows of the users table.
type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

const userColumns = "id, username, password_hash, COALESCE(email, ''), role, created_at"

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return scanUser(row)
}

func (r *UserRepository) Create(ctx context.Context, username, passwordHash, email, role string) (*core.User, error) {
	if role == "" {
		role = core.RoleUser
	}
	var emailVal any
	if email != "" {
		emailVal = email
	}
	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, email, role) VALUES (?, ?, ?, ?)",
		username, passwordHash, emailVal, role)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user insert id: %w", err)
	}
	return r.FindByID(ctx, id)
}

// UserUpdate holds the allow-listed mutable user fields. Nil fields are
// left unchanged.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
}

func (r *UserRepository) Update(ctx context.Context, id int64, updates UserUpdate) error {
	var (
		set  []string
		args []any
	)
	if updates.Email != nil {
		set = append(set, "email = ?")
		args = append(args, *updates.Email)
	}
	if updates.PasswordHash != nil {
		set = append(set, "password_hash = ?")
		args = append(args, *updates.PasswordHash)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.store.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete removes a user; categories and transactions cascade via the
// schema's foreign keys.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.store.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
