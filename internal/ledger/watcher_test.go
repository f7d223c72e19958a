package ledger

import (
	"context"
	"testing"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/store/memory"
)

func receiveSnapshot(t *testing.T, ch <-chan []core.Transaction) []core.Transaction {
	t.Helper()
	select {
	case txs := <-ch:
		return txs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestTransactionWatcher_EmitsInitialSnapshot(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)
	addTx(t, svc, alice, "Rent", 100)

	w := NewTransactionWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	w.SetScope(alice, core.FilterAll)

	txs := receiveSnapshot(t, updates)
	if len(txs) != 1 {
		t.Errorf("initial snapshot len = %d, want 1", len(txs))
	}
}

func TestTransactionWatcher_EmitsOnChange(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)

	w := NewTransactionWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	w.SetScope(alice, core.FilterAll)
	if txs := receiveSnapshot(t, updates); len(txs) != 0 {
		t.Fatalf("initial snapshot len = %d, want 0", len(txs))
	}

	addTx(t, svc, alice, "Rent", 100)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case txs := <-updates:
			if len(txs) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with the inserted transaction")
		}
	}
}

func TestTransactionWatcher_NilIdentityYieldsEmpty(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)
	addTx(t, svc, alice, "Rent", 100)

	w := NewTransactionWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	w.SetScope(nil, core.FilterAll)

	if txs := receiveSnapshot(t, updates); len(txs) != 0 {
		t.Errorf("snapshot for nil identity = %v, want empty", txs)
	}
}

func TestTransactionWatcher_ScopeChangeSupersedes(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)
	addTx(t, svc, alice, "Rent", 100)
	addTx(t, svc, alice, "Groceries", 200)
	addTx(t, svc, alice, "Groceries", 300)

	w := NewTransactionWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	// Repoint rapidly; only the final scope may win.
	w.SetScope(alice, core.FilterAll)
	w.SetScope(alice, "Rent")
	w.SetScope(alice, "Groceries")

	// The subscription is latest-wins, so after the watchers settle the
	// pending snapshot must belong to the last scope.
	time.Sleep(100 * time.Millisecond)
	txs := receiveSnapshot(t, updates)
	for _, tx := range txs {
		if tx.Category != "Groceries" {
			t.Fatalf("snapshot contains %q transaction, want only Groceries", tx.Category)
		}
	}
	if len(txs) != 2 {
		t.Errorf("snapshot len = %d, want 2", len(txs))
	}
}

func TestTransactionWatcher_SwitchingUsersDropsOldData(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)
	bob := &auth.Identity{UserID: "bob", Email: "bob@example.com"}

	addTx(t, svc, alice, "Rent", 100)
	_, err := svc.AddTransaction(context.Background(), bob, core.Money{Cents: 999}, "Groceries", core.Expense, time.Now())
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	w := NewTransactionWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	w.SetScope(alice, core.FilterAll)
	w.SetScope(bob, core.FilterAll)

	time.Sleep(100 * time.Millisecond)
	txs := receiveSnapshot(t, updates)
	for _, tx := range txs {
		if tx.UserID != "bob" {
			t.Fatalf("snapshot leaked transaction of %q after user switch", tx.UserID)
		}
	}
}

func TestTransactionWatcher_CloseStopsEmissions(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)

	w := NewTransactionWatcher(st)
	updates, cancel := w.Updates()
	defer cancel()

	w.SetScope(alice, core.FilterAll)
	receiveSnapshot(t, updates)

	w.Close()
	addTx(t, svc, alice, "Rent", 100)

	select {
	case txs := <-updates:
		t.Fatalf("unexpected snapshot after Close: %v", txs)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCategoryWatcher_EmitsOnChange(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil)

	w := NewCategoryWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	w.SetUser(alice)
	if cats := <-updates; len(cats) != 0 {
		t.Fatalf("initial categories = %v, want empty", cats)
	}

	if err := svc.AddCategory(context.Background(), alice, "Travel"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cats := <-updates:
			if len(cats) == 1 && cats[0].Name == "Travel" {
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with the added category")
		}
	}
}

func TestCategoryWatcher_NilIdentityYieldsEmpty(t *testing.T) {
	st := memory.New()

	w := NewCategoryWatcher(st)
	defer w.Close()
	updates, cancel := w.Updates()
	defer cancel()

	w.SetUser(nil)
	select {
	case cats := <-updates:
		if len(cats) != 0 {
			t.Errorf("categories for nil identity = %v, want empty", cats)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot for nil identity")
	}
}
