// Package ledger implements the user-scoped ledger commands and the
// category lifecycle. Rename and delete restore referential consistency
// between categories and transactions in a single atomic store batch;
// that moment is the only point where dangling references could appear.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/feed"
	"finledger/internal/store"
)

// ErrNotAuthenticated rejects writes issued without a signed-in identity.
// The write is dropped, never queued.
var ErrNotAuthenticated = errors.New("not authenticated")

// Event notifies downstream consumers (AMQP relay, export worker) that a
// user's ledger changed.
type Event struct {
	UserID string    `json:"user_id"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
}

const (
	EventTransactionAdded = "transaction_added"
	EventCategoryAdded    = "category_added"
	EventCategoryRenamed  = "category_renamed"
	EventCategoryDeleted  = "category_deleted"
)

// EventPublisher forwards ledger events to the bus. Publishing is
// best-effort: a bus failure never fails the originating command.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev Event) error
}

type Service struct {
	store  store.Store
	events EventPublisher // optional
	errs   *feed.Topic[error]
}

func NewService(st store.Store, events EventPublisher) *Service {
	return &Service{
		store:  st,
		events: events,
		errs:   feed.NewTopic[error](),
	}
}

// WatchErrors exposes the observable error slot that write-path failures
// are published to. Presentation displays and clears it.
func (s *Service) WatchErrors() (<-chan error, func()) {
	return s.errs.Subscribe()
}

// AddTransaction records a new ledger entry owned by ident. The user id
// is always forced from the identity, never taken from the caller's
// payload. An empty category falls back to the reserved label.
func (s *Service) AddTransaction(ctx context.Context, ident *auth.Identity, amount core.Money, category string, txType core.TxType, date time.Time) (string, error) {
	if ident == nil {
		return "", s.fail(ErrNotAuthenticated)
	}
	if category == "" {
		category = core.Uncategorized
	}
	tx := core.Transaction{
		UserID:   ident.UserID,
		Amount:   amount,
		Category: category,
		Type:     txType,
		Date:     date,
	}
	if err := tx.Validate(); err != nil {
		return "", s.fail(err)
	}

	id, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return "", s.fail(fmt.Errorf("add transaction: %w", err))
	}

	s.publishEvent(ctx, ident.UserID, EventTransactionAdded)
	return id, nil
}

// AddCategory creates a category unless the (user, name) pair already
// exists, in which case it is a silent no-op. The existence check and
// the insert are not atomic against a concurrent identical insert; a
// rapid double submit can still produce a duplicate.
func (s *Service) AddCategory(ctx context.Context, ident *auth.Identity, name string) error {
	if ident == nil {
		return s.fail(ErrNotAuthenticated)
	}
	c := core.Category{UserID: ident.UserID, Name: name}
	if err := c.Validate(); err != nil {
		return s.fail(err)
	}

	_, err := s.store.FindCategory(ctx, ident.UserID, name)
	if err == nil {
		return nil // idempotent create
	}
	if !errors.Is(err, store.ErrNotFound) {
		return s.fail(fmt.Errorf("check category existence: %w", err))
	}

	if _, err := s.store.InsertCategory(ctx, c); err != nil {
		return s.fail(fmt.Errorf("add category: %w", err))
	}

	s.publishEvent(ctx, ident.UserID, EventCategoryAdded)
	return nil
}

// SeedDefaultCategories installs the default set right after sign-up.
// Individual failures are logged and skipped so one bad insert does not
// abort the rest of the seed.
func (s *Service) SeedDefaultCategories(ctx context.Context, ident *auth.Identity) error {
	if ident == nil {
		return s.fail(ErrNotAuthenticated)
	}
	for _, name := range core.DefaultCategories {
		if err := s.AddCategory(ctx, ident, name); err != nil {
			slog.WarnContext(ctx, "Failed to seed default category",
				"user_id", ident.UserID, "category", name, "error", err)
		}
	}
	return nil
}

// RenameCategory rewrites the category document and every transaction
// referencing it in one all-or-nothing batch. A missing category
// document does not abort the rename: the transaction rewrite still
// runs, making rename usable as a data-repair operation.
func (s *Service) RenameCategory(ctx context.Context, ident *auth.Identity, oldName, newName string) error {
	if ident == nil {
		return s.fail(ErrNotAuthenticated)
	}
	replacement := core.Category{UserID: ident.UserID, Name: newName}
	if err := replacement.Validate(); err != nil {
		return s.fail(err)
	}

	txs, err := s.store.TransactionsByCategory(ctx, ident.UserID, oldName)
	if err != nil {
		return s.fail(fmt.Errorf("query transactions for rename: %w", err))
	}

	var b store.Batch
	for _, tx := range txs {
		b.SetTransactionCategory(tx.ID, newName)
	}

	cat, err := s.store.FindCategory(ctx, ident.UserID, oldName)
	switch {
	case err == nil:
		b.RenameCategory(cat.ID, newName)
	case errors.Is(err, store.ErrNotFound):
		slog.WarnContext(ctx, "Renaming category with no document, rewriting transactions only",
			"user_id", ident.UserID, "old_name", oldName, "new_name", newName)
	default:
		return s.fail(fmt.Errorf("query category for rename: %w", err))
	}

	if err := s.store.Apply(ctx, ident.UserID, &b); err != nil {
		return s.fail(fmt.Errorf("commit rename batch: %w", err))
	}

	slog.InfoContext(ctx, "Category renamed",
		"user_id", ident.UserID, "old_name", oldName, "new_name", newName, "transactions", len(txs))
	s.publishEvent(ctx, ident.UserID, EventCategoryRenamed)
	return nil
}

// DeleteCategory removes the category document and reassigns every
// referencing transaction to the reserved fallback label, atomically.
// Transactions themselves are never deleted.
func (s *Service) DeleteCategory(ctx context.Context, ident *auth.Identity, name string) error {
	if ident == nil {
		return s.fail(ErrNotAuthenticated)
	}

	txs, err := s.store.TransactionsByCategory(ctx, ident.UserID, name)
	if err != nil {
		return s.fail(fmt.Errorf("query transactions for delete: %w", err))
	}

	var b store.Batch
	for _, tx := range txs {
		b.SetTransactionCategory(tx.ID, core.Uncategorized)
	}

	cat, err := s.store.FindCategory(ctx, ident.UserID, name)
	switch {
	case err == nil:
		b.DeleteCategory(cat.ID)
	case errors.Is(err, store.ErrNotFound):
		// Nothing to delete; the reassignment alone still repairs data.
	default:
		return s.fail(fmt.Errorf("query category for delete: %w", err))
	}

	if err := s.store.Apply(ctx, ident.UserID, &b); err != nil {
		return s.fail(fmt.Errorf("commit delete batch: %w", err))
	}

	slog.InfoContext(ctx, "Category deleted",
		"user_id", ident.UserID, "name", name, "reassigned", len(txs))
	s.publishEvent(ctx, ident.UserID, EventCategoryDeleted)
	return nil
}

// ListTransactions is the one-shot read behind the HTTP API. Reads are
// never fatal for an unauthenticated caller and degrade to an empty
// list on store failure, matching the streaming policy.
func (s *Service) ListTransactions(ctx context.Context, ident *auth.Identity, filter string) []core.Transaction {
	if ident == nil {
		return []core.Transaction{}
	}
	var (
		txs []core.Transaction
		err error
	)
	if filter == "" || filter == core.FilterAll {
		txs, err = s.store.TransactionsForUser(ctx, ident.UserID)
	} else {
		txs, err = s.store.TransactionsByCategory(ctx, ident.UserID, filter)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Transaction query failed, serving empty list",
			"user_id", ident.UserID, "filter", filter, "error", err)
		return []core.Transaction{}
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs
}

// ListCategories mirrors ListTransactions for the category collection.
func (s *Service) ListCategories(ctx context.Context, ident *auth.Identity) []core.Category {
	if ident == nil {
		return []core.Category{}
	}
	cats, err := s.store.CategoriesForUser(ctx, ident.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "Category query failed, serving empty list",
			"user_id", ident.UserID, "error", err)
		return []core.Category{}
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats
}

// fail publishes the error to the observable error slot and returns it.
func (s *Service) fail(err error) error {
	s.errs.Publish(err)
	return err
}

func (s *Service) publishEvent(ctx context.Context, userID, kind string) {
	if s.events == nil {
		return
	}
	ev := Event{UserID: userID, Kind: kind, At: time.Now()}
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"user_id", userID, "kind", kind, "error", err)
	}
}
