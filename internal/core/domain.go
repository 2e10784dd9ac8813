package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	DefaultColor = "#007bff"
)

type (
	CategoryType string

	// Date is a calendar date with day granularity. The time component is
	// always midnight UTC.
	Date struct {
		time.Time
	}

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		Email        string    `json:"email,omitempty"`
		Role         string    `json:"role"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Category struct {
		ID     int64        `json:"id"`
		Name   string       `json:"name"`
		Type   CategoryType `json:"type"`
		UserID int64        `json:"user_id"`
		Color  string       `json:"color"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"user_id"`
		CategoryID  *int64          `json:"category_id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"created_at"`
	}
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid category type")
	ErrInvalidColor       = errors.New("invalid color")
	ErrEmptyName          = errors.New("empty name")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrCategoryNameTaken  = errors.New("category name already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("token invalid or expired")
	ErrForeignCategory    = errors.New("category does not belong to user")
)

// Valid reports whether t is a known category type.
func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if c.Color != "" && !IsHexColor(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

// IsHexColor reports whether s is a #-prefixed 3- or 6-digit hex color.
func IsHexColor(s string) bool {
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
