// Package memory provides an in-process Store used for development and
// tests. Semantics mirror the sqlite backend: scoped queries, date-
// descending order, and all-or-nothing batches.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finledger/internal/core"
	"finledger/internal/store"
)

type Store struct {
	*store.Hub

	mu           sync.RWMutex
	transactions map[string]core.Transaction
	categories   map[string]core.Category
	users        map[string]store.User
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		Hub:          store.NewHub(),
		transactions: make(map[string]core.Transaction),
		categories:   make(map[string]core.Category),
		users:        make(map[string]store.User),
	}
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	tx.ID = uuid.NewString()
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}
	s.transactions[tx.ID] = tx
	s.mu.Unlock()

	s.Broadcast(tx.UserID)
	return tx.ID, nil
}

func (s *Store) TransactionsForUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTransactions(userID, ""), nil
}

func (s *Store) TransactionsByCategory(ctx context.Context, userID, category string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTransactions(userID, category), nil
}

// collectTransactions requires the read lock to be held.
func (s *Store) collectTransactions(userID, category string) []core.Transaction {
	out := make([]core.Transaction, 0, 16)
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if category != "" && tx.Category != category {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) (string, error) {
	s.mu.Lock()
	c.ID = uuid.NewString()
	s.categories[c.ID] = c
	s.mu.Unlock()

	s.Broadcast(c.UserID)
	return c.ID, nil
}

func (s *Store) CategoriesForUser(ctx context.Context, userID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Category, 0, 8)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) FindCategory(ctx context.Context, userID, name string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.UserID == userID && c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, store.ErrNotFound
}

func (s *Store) InsertUser(ctx context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicateEmail
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// Apply validates every queued operation against the current state, then
// mutates under one lock so a batch is applied in full or not at all.
func (s *Store) Apply(ctx context.Context, userID string, b *store.Batch) error {
	if b.Empty() {
		return nil
	}

	s.mu.Lock()
	// Validation pass: every referenced document must exist and belong to
	// the caller before anything is touched.
	for _, op := range b.Ops() {
		switch op.Kind {
		case store.OpSetTransactionCategory:
			tx, ok := s.transactions[op.DocID]
			if !ok || tx.UserID != userID {
				s.mu.Unlock()
				return fmt.Errorf("batch references unknown transaction %s: %w", op.DocID, store.ErrNotFound)
			}
		case store.OpRenameCategory, store.OpDeleteCategory:
			c, ok := s.categories[op.DocID]
			if !ok || c.UserID != userID {
				s.mu.Unlock()
				return fmt.Errorf("batch references unknown category %s: %w", op.DocID, store.ErrNotFound)
			}
		}
	}
	for _, op := range b.Ops() {
		switch op.Kind {
		case store.OpSetTransactionCategory:
			tx := s.transactions[op.DocID]
			tx.Category = op.Value
			s.transactions[op.DocID] = tx
		case store.OpRenameCategory:
			c := s.categories[op.DocID]
			c.Name = op.Value
			s.categories[op.DocID] = c
		case store.OpDeleteCategory:
			delete(s.categories, op.DocID)
		}
	}
	s.mu.Unlock()

	s.Broadcast(userID)
	return nil
}

func (s *Store) Close() error {
	return nil
}
