package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/store"
	"finledger/internal/store/memory"
)

var alice = &auth.Identity{UserID: "alice", Email: "alice@example.com"}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewService(st, nil), st
}

func addTx(t *testing.T, svc *Service, ident *auth.Identity, category string, cents int64) {
	t.Helper()
	_, err := svc.AddTransaction(context.Background(), ident, core.Money{Cents: cents}, category, core.Expense, time.Now())
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
}

func TestService_AddTransaction(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.AddTransaction(ctx, alice, core.Money{Cents: 1200}, "Rent", core.Expense, time.Now())
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if id == "" {
		t.Error("expected a generated transaction id")
	}

	txs := svc.ListTransactions(ctx, alice, core.FilterAll)
	if len(txs) != 1 {
		t.Fatalf("len(txs) = %d, want 1", len(txs))
	}
	if txs[0].UserID != alice.UserID {
		t.Errorf("UserID = %s, want %s (owner forced from identity)", txs[0].UserID, alice.UserID)
	}
}

func TestService_AddTransaction_EmptyCategoryFallsBack(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, alice, core.Money{Cents: 100}, "", core.Income, time.Now()); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	txs := svc.ListTransactions(ctx, alice, core.FilterAll)
	if txs[0].Category != core.Uncategorized {
		t.Errorf("Category = %s, want %s", txs[0].Category, core.Uncategorized)
	}
}

func TestService_WritesRequireIdentity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, nil, core.Money{Cents: 100}, "Rent", core.Expense, time.Now()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("AddTransaction(nil) = %v, want ErrNotAuthenticated", err)
	}
	if err := svc.AddCategory(ctx, nil, "Rent"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("AddCategory(nil) = %v, want ErrNotAuthenticated", err)
	}
	if err := svc.RenameCategory(ctx, nil, "a", "b"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("RenameCategory(nil) = %v, want ErrNotAuthenticated", err)
	}
	if err := svc.DeleteCategory(ctx, nil, "a"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("DeleteCategory(nil) = %v, want ErrNotAuthenticated", err)
	}
}

func TestService_ReadsDegradeToEmptyWithoutIdentity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if txs := svc.ListTransactions(ctx, nil, core.FilterAll); len(txs) != 0 {
		t.Errorf("ListTransactions(nil) = %v, want empty", txs)
	}
	if cats := svc.ListCategories(ctx, nil); len(cats) != 0 {
		t.Errorf("ListCategories(nil) = %v, want empty", cats)
	}
}

func TestService_AddCategory_Idempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.AddCategory(ctx, alice, "Travel"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := svc.AddCategory(ctx, alice, "Travel"); err != nil {
		t.Fatalf("second AddCategory: %v", err)
	}

	cats := svc.ListCategories(ctx, alice)
	if len(cats) != 1 {
		t.Errorf("len(categories) = %d, want 1 (duplicate add must be a no-op)", len(cats))
	}
}

func TestService_AddCategory_RejectsReservedName(t *testing.T) {
	svc, _ := newService(t)

	err := svc.AddCategory(context.Background(), alice, core.Uncategorized)
	if !errors.Is(err, core.ErrReservedCategory) {
		t.Errorf("AddCategory(reserved) = %v, want ErrReservedCategory", err)
	}
}

func TestService_SeedDefaultCategories(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.SeedDefaultCategories(ctx, alice); err != nil {
		t.Fatalf("SeedDefaultCategories: %v", err)
	}
	// Seeding twice must not duplicate.
	if err := svc.SeedDefaultCategories(ctx, alice); err != nil {
		t.Fatalf("second SeedDefaultCategories: %v", err)
	}

	cats := svc.ListCategories(ctx, alice)
	if len(cats) != len(core.DefaultCategories) {
		t.Fatalf("len(categories) = %d, want %d", len(cats), len(core.DefaultCategories))
	}
	names := make(map[string]bool, len(cats))
	for _, c := range cats {
		names[c.Name] = true
	}
	for _, want := range core.DefaultCategories {
		if !names[want] {
			t.Errorf("default category %q missing after seed", want)
		}
	}
}

func TestService_RenameCategory_PreservesTransactionCount(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.AddCategory(ctx, alice, "Rent"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := svc.AddCategory(ctx, alice, "Housing"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	addTx(t, svc, alice, "Rent", 100)
	addTx(t, svc, alice, "Rent", 200)
	addTx(t, svc, alice, "Housing", 300)

	if err := svc.RenameCategory(ctx, alice, "Rent", "Housing"); err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}

	all := svc.ListTransactions(ctx, alice, core.FilterAll)
	counts := core.CategoryCounts(all)
	if counts["Housing"] != 3 {
		t.Errorf("counts[Housing] = %d, want prior Housing + prior Rent = 3", counts["Housing"])
	}
	if counts["Rent"] != 0 {
		t.Errorf("counts[Rent] = %d, want 0", counts["Rent"])
	}
	if len(all) != 3 {
		t.Errorf("total transactions = %d, want 3", len(all))
	}
}

func TestService_RenameCategory_WithoutDocumentStillRewrites(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// Transactions reference a category that has no stored document.
	addTx(t, svc, alice, "Legacy", 100)

	if err := svc.RenameCategory(ctx, alice, "Legacy", "Modern"); err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}

	counts := core.CategoryCounts(svc.ListTransactions(ctx, alice, core.FilterAll))
	if counts["Modern"] != 1 || counts["Legacy"] != 0 {
		t.Errorf("counts = %v, want transactions moved to Modern", counts)
	}
}

func TestService_DeleteCategory_ReassignsNeverDeletes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if err := svc.AddCategory(ctx, alice, "Rent"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	addTx(t, svc, alice, "Rent", 100)
	addTx(t, svc, alice, "Rent", 200)
	addTx(t, svc, alice, "Groceries", 300)

	before := len(svc.ListTransactions(ctx, alice, core.FilterAll))

	if err := svc.DeleteCategory(ctx, alice, "Rent"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}

	all := svc.ListTransactions(ctx, alice, core.FilterAll)
	if len(all) != before {
		t.Errorf("total transactions = %d, want unchanged %d", len(all), before)
	}
	counts := core.CategoryCounts(all)
	if counts[core.Uncategorized] != 2 {
		t.Errorf("counts[Uncategorized] = %d, want 2", counts[core.Uncategorized])
	}
	if counts["Rent"] != 0 {
		t.Errorf("counts[Rent] = %d, want 0", counts["Rent"])
	}

	cats := svc.ListCategories(ctx, alice)
	for _, c := range cats {
		if c.Name == "Rent" {
			t.Error("category document still present after delete")
		}
	}
}

func TestService_ListTransactions_Filter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	addTx(t, svc, alice, "Rent", 100)
	addTx(t, svc, alice, "Groceries", 200)

	if txs := svc.ListTransactions(ctx, alice, "Rent"); len(txs) != 1 {
		t.Errorf("filtered len = %d, want 1", len(txs))
	}
	if txs := svc.ListTransactions(ctx, alice, core.FilterAll); len(txs) != 2 {
		t.Errorf("FilterAll len = %d, want 2", len(txs))
	}
	if txs := svc.ListTransactions(ctx, alice, ""); len(txs) != 2 {
		t.Errorf("empty filter len = %d, want 2", len(txs))
	}
}

func TestService_WatchErrors(t *testing.T) {
	svc, _ := newService(t)

	errs, cancel := svc.WatchErrors()
	defer cancel()

	_, err := svc.AddTransaction(context.Background(), nil, core.Money{Cents: 100}, "Rent", core.Expense, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}

	select {
	case got := <-errs:
		if !errors.Is(got, ErrNotAuthenticated) {
			t.Errorf("observed error = %v, want ErrNotAuthenticated", got)
		}
	case <-time.After(time.Second):
		t.Fatal("error was not published to the error slot")
	}
}

// failingStore wraps the memory store and fails every read so the
// degrade-to-empty policy can be observed.
type failingStore struct {
	store.Store
}

var errStoreDown = errors.New("store down")

func (f failingStore) TransactionsForUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	return nil, errStoreDown
}

func (f failingStore) CategoriesForUser(ctx context.Context, userID string) ([]core.Category, error) {
	return nil, errStoreDown
}

func TestService_ReadsDegradeToEmptyOnStoreFailure(t *testing.T) {
	svc := NewService(failingStore{Store: memory.New()}, nil)
	ctx := context.Background()

	txs := svc.ListTransactions(ctx, alice, core.FilterAll)
	if txs == nil || len(txs) != 0 {
		t.Errorf("ListTransactions on failing store = %v, want non-nil empty slice", txs)
	}
	cats := svc.ListCategories(ctx, alice)
	if cats == nil || len(cats) != 0 {
		t.Errorf("ListCategories on failing store = %v, want non-nil empty slice", cats)
	}
}

// capturingPublisher records published events in order.
type capturingPublisher struct {
	events []Event
}

func (c *capturingPublisher) PublishLedgerEvent(ctx context.Context, ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestService_PublishesEvents(t *testing.T) {
	pub := &capturingPublisher{}
	svc := NewService(memory.New(), pub)
	ctx := context.Background()

	addTx(t, svc, alice, "Rent", 100)
	if err := svc.AddCategory(ctx, alice, "Travel"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := svc.RenameCategory(ctx, alice, "Travel", "Trips"); err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}
	if err := svc.DeleteCategory(ctx, alice, "Trips"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}

	wantKinds := []string{EventTransactionAdded, EventCategoryAdded, EventCategoryRenamed, EventCategoryDeleted}
	if len(pub.events) != len(wantKinds) {
		t.Fatalf("published %d events, want %d", len(pub.events), len(wantKinds))
	}
	for i, want := range wantKinds {
		if pub.events[i].Kind != want {
			t.Errorf("event[%d].Kind = %s, want %s", i, pub.events[i].Kind, want)
		}
		if pub.events[i].UserID != alice.UserID {
			t.Errorf("event[%d].UserID = %s, want %s", i, pub.events[i].UserID, alice.UserID)
		}
	}
}

// failingPublisher always errors; commands must still succeed.
type failingPublisher struct{}

func (failingPublisher) PublishLedgerEvent(ctx context.Context, ev Event) error {
	return errors.New("broker unavailable")
}

func TestService_EventPublishFailureDoesNotFailCommand(t *testing.T) {
	svc := NewService(memory.New(), failingPublisher{})

	if _, err := svc.AddTransaction(context.Background(), alice, core.Money{Cents: 100}, "Rent", core.Expense, time.Now()); err != nil {
		t.Errorf("AddTransaction with failing publisher = %v, want nil", err)
	}
}
