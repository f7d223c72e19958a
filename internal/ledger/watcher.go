package ledger

import (
	"context"
	"log/slog"
	"sync"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/feed"
	"finledger/internal/store"
)

// TransactionWatcher maintains a live, filtered view of one user's
// transactions. Every SetScope call supersedes the previous
// subscription: the generation counter increments, the old store watch
// is cancelled, and any snapshot still in flight from it is discarded,
// so a slow old result can never overwrite a newer one.
type TransactionWatcher struct {
	store   store.Store
	updates *feed.Topic[[]core.Transaction]

	mu   sync.Mutex
	gen  uint64
	stop func()
}

func NewTransactionWatcher(st store.Store) *TransactionWatcher {
	return &TransactionWatcher{
		store:   st,
		updates: feed.NewTopic[[]core.Transaction](),
	}
}

// Updates subscribes to the current snapshot stream.
func (w *TransactionWatcher) Updates() (<-chan []core.Transaction, func()) {
	return w.updates.Subscribe()
}

// SetScope repoints the watcher at (ident, filter). A nil identity
// yields an empty stream without touching the store.
func (w *TransactionWatcher) SetScope(ident *auth.Identity, filter string) {
	w.mu.Lock()
	w.gen++
	myGen := w.gen
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}

	if ident == nil {
		w.mu.Unlock()
		w.updates.Publish([]core.Transaction{})
		return
	}

	signals, cancelWatch := w.store.Watch(ident.UserID)
	done := make(chan struct{})
	w.stop = func() {
		cancelWatch()
		close(done)
	}
	w.mu.Unlock()

	userID := ident.UserID
	go func() {
		w.emit(myGen, w.load(userID, filter))
		for {
			select {
			case <-done:
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				w.emit(myGen, w.load(userID, filter))
			}
		}
	}()
}

// Close tears down the active subscription, if any.
func (w *TransactionWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

// load queries the store, degrading to an empty list on failure so the
// stream keeps running through transient store errors.
func (w *TransactionWatcher) load(userID, filter string) []core.Transaction {
	ctx := context.Background()
	var (
		txs []core.Transaction
		err error
	)
	if filter == "" || filter == core.FilterAll {
		txs, err = w.store.TransactionsForUser(ctx, userID)
	} else {
		txs, err = w.store.TransactionsByCategory(ctx, userID, filter)
	}
	if err != nil {
		slog.Error("Transaction watch query failed, emitting empty list",
			"user_id", userID, "filter", filter, "error", err)
		return []core.Transaction{}
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs
}

// emit publishes unless a newer generation has superseded myGen.
func (w *TransactionWatcher) emit(myGen uint64, txs []core.Transaction) {
	w.mu.Lock()
	stale := w.gen != myGen
	w.mu.Unlock()
	if stale {
		return
	}
	w.updates.Publish(txs)
}

// CategoryWatcher is the category-collection counterpart. It has no
// filter; only the identity scopes it.
type CategoryWatcher struct {
	store   store.Store
	updates *feed.Topic[[]core.Category]

	mu   sync.Mutex
	gen  uint64
	stop func()
}

func NewCategoryWatcher(st store.Store) *CategoryWatcher {
	return &CategoryWatcher{
		store:   st,
		updates: feed.NewTopic[[]core.Category](),
	}
}

func (w *CategoryWatcher) Updates() (<-chan []core.Category, func()) {
	return w.updates.Subscribe()
}

func (w *CategoryWatcher) SetUser(ident *auth.Identity) {
	w.mu.Lock()
	w.gen++
	myGen := w.gen
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}

	if ident == nil {
		w.mu.Unlock()
		w.updates.Publish([]core.Category{})
		return
	}

	signals, cancelWatch := w.store.Watch(ident.UserID)
	done := make(chan struct{})
	w.stop = func() {
		cancelWatch()
		close(done)
	}
	w.mu.Unlock()

	userID := ident.UserID
	go func() {
		w.emit(myGen, w.load(userID))
		for {
			select {
			case <-done:
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				w.emit(myGen, w.load(userID))
			}
		}
	}()
}

func (w *CategoryWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

func (w *CategoryWatcher) load(userID string) []core.Category {
	cats, err := w.store.CategoriesForUser(context.Background(), userID)
	if err != nil {
		slog.Error("Category watch query failed, emitting empty list",
			"user_id", userID, "error", err)
		return []core.Category{}
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats
}

func (w *CategoryWatcher) emit(myGen uint64, cats []core.Category) {
	w.mu.Lock()
	stale := w.gen != myGen
	w.mu.Unlock()
	if stale {
		return
	}
	w.updates.Publish(cats)
}
