package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/core"
	"finledger/internal/store"
)

func insertTx(t *testing.T, s *Store, userID, category string, cents int64, date time.Time) string {
	t.Helper()
	id, err := s.InsertTransaction(context.Background(), core.Transaction{
		UserID:   userID,
		Amount:   core.Money{Cents: cents},
		Category: category,
		Type:     core.Expense,
		Date:     date,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return id
}

func TestStore_TransactionsForUser_ScopedAndOrdered(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	insertTx(t, s, "alice", "Rent", 100, base)
	insertTx(t, s, "alice", "Groceries", 200, base.AddDate(0, 0, 2))
	insertTx(t, s, "alice", "Rent", 300, base.AddDate(0, 0, 1))
	insertTx(t, s, "bob", "Rent", 999, base)

	txs, err := s.TransactionsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("TransactionsForUser: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("len = %d, want 3", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.After(txs[i-1].Date) {
			t.Errorf("transactions not date-descending at index %d", i)
		}
	}
	for _, tx := range txs {
		if tx.UserID != "alice" {
			t.Errorf("leaked transaction for user %s", tx.UserID)
		}
	}
}

func TestStore_TransactionsByCategory(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	insertTx(t, s, "alice", "Rent", 100, now)
	insertTx(t, s, "alice", "Groceries", 200, now)

	txs, err := s.TransactionsByCategory(ctx, "alice", "Rent")
	if err != nil {
		t.Fatalf("TransactionsByCategory: %v", err)
	}
	if len(txs) != 1 || txs[0].Category != "Rent" {
		t.Errorf("got %v, want single Rent transaction", txs)
	}
}

func TestStore_Categories(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.InsertCategory(ctx, core.Category{UserID: "alice", Name: "Rent"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	if _, err := s.InsertCategory(ctx, core.Category{UserID: "alice", Name: "Groceries"}); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}

	cats, err := s.CategoriesForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CategoriesForUser: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Groceries" || cats[1].Name != "Rent" {
		t.Errorf("categories = %v, want name-sorted [Groceries Rent]", cats)
	}

	if _, err := s.FindCategory(ctx, "alice", "Rent"); err != nil {
		t.Errorf("FindCategory(Rent) = %v, want nil", err)
	}
	if _, err := s.FindCategory(ctx, "alice", "Travel"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindCategory(Travel) = %v, want ErrNotFound", err)
	}
	if _, err := s.FindCategory(ctx, "bob", "Rent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindCategory for other user = %v, want ErrNotFound", err)
	}
}

func TestStore_Users(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := store.User{ID: "u1", Email: "alice@example.com", CreatedAt: time.Now()}
	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	dup := store.User{ID: "u2", Email: "ALICE@example.com"}
	if err := s.InsertUser(ctx, dup); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("duplicate email insert = %v, want ErrDuplicateEmail", err)
	}

	got, err := s.UserByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != "u1" {
		t.Errorf("UserByEmail = %+v, %v", got, err)
	}
	if _, err := s.UserByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UserByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestStore_Apply_RenameBatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	txID := insertTx(t, s, "alice", "Rent", 100, now)
	catID, _ := s.InsertCategory(ctx, core.Category{UserID: "alice", Name: "Rent"})

	var b store.Batch
	b.SetTransactionCategory(txID, "Housing")
	b.RenameCategory(catID, "Housing")

	if err := s.Apply(ctx, "alice", &b); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	txs, _ := s.TransactionsForUser(ctx, "alice")
	if txs[0].Category != "Housing" {
		t.Errorf("transaction category = %s, want Housing", txs[0].Category)
	}
	if _, err := s.FindCategory(ctx, "alice", "Housing"); err != nil {
		t.Errorf("renamed category missing: %v", err)
	}
	if _, err := s.FindCategory(ctx, "alice", "Rent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old category still present: %v", err)
	}
}

func TestStore_Apply_AllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	txID := insertTx(t, s, "alice", "Rent", 100, time.Now())

	var b store.Batch
	b.SetTransactionCategory(txID, "Housing")
	b.SetTransactionCategory("no-such-id", "Housing")

	if err := s.Apply(ctx, "alice", &b); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Apply = %v, want ErrNotFound", err)
	}

	// The valid operation must not have been applied.
	txs, _ := s.TransactionsForUser(ctx, "alice")
	if txs[0].Category != "Rent" {
		t.Errorf("transaction category = %s, want Rent (batch must not partially apply)", txs[0].Category)
	}
}

func TestStore_Apply_RejectsForeignDocuments(t *testing.T) {
	s := New()
	ctx := context.Background()

	txID := insertTx(t, s, "bob", "Rent", 100, time.Now())

	var b store.Batch
	b.SetTransactionCategory(txID, "Housing")

	if err := s.Apply(ctx, "alice", &b); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Apply on foreign transaction = %v, want ErrNotFound", err)
	}
}

func TestStore_Apply_EmptyBatch(t *testing.T) {
	s := New()
	if err := s.Apply(context.Background(), "alice", &store.Batch{}); err != nil {
		t.Errorf("empty batch Apply = %v, want nil", err)
	}
}

func TestStore_WatchSignalsOnChange(t *testing.T) {
	s := New()

	signals, cancel := s.Watch("alice")
	defer cancel()

	insertTx(t, s, "alice", "Rent", 100, time.Now())

	select {
	case <-signals:
	case <-time.After(time.Second):
		t.Fatal("no change signal after insert")
	}

	// Changes to another user's documents must not signal.
	insertTx(t, s, "bob", "Rent", 100, time.Now())
	select {
	case <-signals:
		t.Fatal("received signal for another user's change")
	case <-time.After(50 * time.Millisecond):
	}
}
