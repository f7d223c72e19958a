// Package store defines the document-store contract the ledger core is
// written against. Backends (memory, sqlite) provide per-user scoped
// queries, atomic multi-document batches, and change notification.
package store

import (
	"context"
	"errors"
	"time"

	"finledger/internal/core"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// User is the durable account record behind the identity provider.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Store is the collection store consumed by the ledger and auth layers.
// All reads are scoped by user id; Apply is the only atomicity boundary.
type Store interface {
	// Transactions. InsertTransaction assigns and returns the document id.
	InsertTransaction(ctx context.Context, tx core.Transaction) (string, error)
	// TransactionsForUser returns all of a user's transactions ordered by
	// date descending.
	TransactionsForUser(ctx context.Context, userID string) ([]core.Transaction, error)
	// TransactionsByCategory filters by exact category match, same order.
	TransactionsByCategory(ctx context.Context, userID, category string) ([]core.Transaction, error)

	// Categories.
	InsertCategory(ctx context.Context, c core.Category) (string, error)
	CategoriesForUser(ctx context.Context, userID string) ([]core.Category, error)
	// FindCategory returns ErrNotFound when no (userID, name) pair exists.
	FindCategory(ctx context.Context, userID, name string) (core.Category, error)

	// Users.
	InsertUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	// Apply commits a batch atomically: either every queued operation is
	// applied or none are.
	Apply(ctx context.Context, userID string, b *Batch) error

	// Watch delivers a signal after every committed change to the user's
	// documents. The returned cancel func releases the subscription.
	Watch(userID string) (<-chan struct{}, func())

	Close() error
}

// Batch queues document updates for a single atomic commit.
type Batch struct {
	ops []BatchOp
}

type BatchOpKind int

const (
	OpSetTransactionCategory BatchOpKind = iota
	OpRenameCategory
	OpDeleteCategory
)

type BatchOp struct {
	Kind  BatchOpKind
	DocID string
	Value string // new category label or new name, depending on Kind
}

func (b *Batch) SetTransactionCategory(txID, category string) {
	b.ops = append(b.ops, BatchOp{Kind: OpSetTransactionCategory, DocID: txID, Value: category})
}

func (b *Batch) RenameCategory(categoryID, newName string) {
	b.ops = append(b.ops, BatchOp{Kind: OpRenameCategory, DocID: categoryID, Value: newName})
}

func (b *Batch) DeleteCategory(categoryID string) {
	b.ops = append(b.ops, BatchOp{Kind: OpDeleteCategory, DocID: categoryID})
}

// Ops exposes the queued operations to backends.
func (b *Batch) Ops() []BatchOp {
	if b == nil {
		return nil
	}
	return b.ops
}

func (b *Batch) Empty() bool {
	return b == nil || len(b.ops) == 0
}
