package dashboard

import (
	"context"
	"testing"
	"time"

	"finledger/internal/core"
)

func fixedClock(year int, month time.Month) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)
	}
}

func TestService_Recompute(t *testing.T) {
	svc := NewService()
	svc.now = fixedClock(2025, time.June)

	summaries, cancelSummary := svc.WatchSummary()
	defer cancelSummary()
	nets, cancelNet := svc.WatchCategoryNet()
	defer cancelNet()
	counts, cancelCounts := svc.WatchCategoryCounts()
	defer cancelCounts()

	svc.Recompute([]core.Transaction{
		{Amount: core.Money{Cents: 50000}, Category: "Salary", Type: core.Income,
			Date: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{Amount: core.Money{Cents: 10000}, Category: "Rent", Type: core.Expense,
			Date: time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)},
		{Amount: core.Money{Cents: 5000}, Category: "Rent", Type: core.Expense,
			Date: time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC)},
	})

	s := <-summaries
	if s.NetWorth.Cents != 35000 {
		t.Errorf("NetWorth = %d, want 35000", s.NetWorth.Cents)
	}
	if s.MonthlyIncome.Cents != 50000 || s.MonthlyExpense.Cents != 10000 {
		t.Errorf("monthly figures = %d/%d, want 50000/10000", s.MonthlyIncome.Cents, s.MonthlyExpense.Cents)
	}

	net := <-nets
	if net["Rent"].Cents != -15000 || net["Salary"].Cents != 50000 {
		t.Errorf("category net = %v", net)
	}

	c := <-counts
	if c["Rent"] != 2 || c["Salary"] != 1 {
		t.Errorf("category counts = %v", c)
	}
}

func TestService_SummaryBeforeFirstSnapshot(t *testing.T) {
	svc := NewService()
	s := svc.Summary()
	if s.NetWorth.Cents != 0 || len(s.CategoryBreakdown) != 0 {
		t.Errorf("zero-value summary expected, got %+v", s)
	}
}

func TestService_RunConsumesSnapshots(t *testing.T) {
	svc := NewService()
	svc.now = fixedClock(2025, time.June)

	snapshots := make(chan []core.Transaction)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.Run(ctx, snapshots)
		close(done)
	}()

	summaries, unsubscribe := svc.WatchSummary()
	defer unsubscribe()

	snapshots <- []core.Transaction{
		{Amount: core.Money{Cents: 100}, Category: "Rent", Type: core.Expense,
			Date: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
	}

	select {
	case s := <-summaries:
		if s.MonthlyExpense.Cents != 100 {
			t.Errorf("MonthlyExpense = %d, want 100", s.MonthlyExpense.Cents)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not publish a summary")
	}

	close(snapshots)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close")
	}
}
