package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"

	// Uncategorized is the reserved fallback label. It always exists
	// implicitly and is never stored as a category document.
	Uncategorized = "Uncategorized"

	// FilterAll is the sentinel filter value meaning "no category filter".
	FilterAll = "All"
)

// DefaultCategories is seeded for every user right after sign-up.
var DefaultCategories = []string{"Groceries", "Rent", "Salary", "Utilities", "Other"}

type (
	TxType string

	Money struct {
		Cents int64
	}

	// Transaction is a single ledger entry. Amount carries the magnitude;
	// the sign lives in Type. Only Category is ever rewritten after
	// creation, and only by the category lifecycle operations.
	Transaction struct {
		ID       string
		UserID   string
		Amount   Money
		Category string
		Type     TxType
		Date     time.Time
	}

	// Category is a user-defined label partitioning transactions.
	// Name is unique per user, matched case-sensitively.
	Category struct {
		ID     string
		UserID string
		Name   string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyCategory    = errors.New("empty category name")
	ErrReservedCategory = errors.New("category name is reserved")
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (tx Transaction) Validate() error {
	if tx.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(tx.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if c.Name == Uncategorized {
		return ErrReservedCategory
	}
	return nil
}

// Signed returns the amount in cents with the sign implied by the
// transaction type (income positive, expense negative).
func (tx Transaction) Signed() int64 {
	if tx.Type == Income {
		return tx.Amount.Cents
	}
	return -tx.Amount.Cents
}
