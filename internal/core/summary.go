package core

import "time"

// MonthlySummary is the dashboard overview derived from the full
// transaction list. It is recomputed from scratch on every change and
// never persisted.
type MonthlySummary struct {
	NetWorth          Money
	MonthlyIncome     Money
	MonthlyExpense    Money
	CategoryBreakdown map[string]Money
}

// AllTimeCategoryNet groups transactions by category and returns the
// signed all-time net per category (income positive, expense negative).
// Categories with no transactions are absent from the map.
func AllTimeCategoryNet(txs []Transaction) map[string]Money {
	net := make(map[string]Money, 8)
	for _, tx := range txs {
		cur := net[tx.Category]
		cur.Cents += tx.Signed()
		net[tx.Category] = cur
	}
	return net
}

// ComputeMonthlySummary folds the transaction list into the dashboard
// overview. NetWorth spans all time; the monthly figures cover
// transactions whose calendar month equals refMonth. The year is
// deliberately not distinguished: a transaction from any year dated in
// refMonth counts as "this month", matching the reference behavior.
// CategoryBreakdown accumulates expense transactions only.
func ComputeMonthlySummary(txs []Transaction, refMonth time.Month) MonthlySummary {
	s := MonthlySummary{CategoryBreakdown: make(map[string]Money)}
	for _, tx := range txs {
		if tx.Type == Income {
			s.NetWorth.Cents += tx.Amount.Cents
		} else {
			s.NetWorth.Cents -= tx.Amount.Cents
		}
		if tx.Date.Month() != refMonth {
			continue
		}
		if tx.Type == Income {
			s.MonthlyIncome.Cents += tx.Amount.Cents
		} else {
			s.MonthlyExpense.Cents += tx.Amount.Cents
			cur := s.CategoryBreakdown[tx.Category]
			cur.Cents += tx.Amount.Cents
			s.CategoryBreakdown[tx.Category] = cur
		}
	}
	return s
}

// CategoryCounts returns the all-time number of transactions per
// category, shown next to each category in listings.
func CategoryCounts(txs []Transaction) map[string]int {
	counts := make(map[string]int, 8)
	for _, tx := range txs {
		counts[tx.Category]++
	}
	return counts
}
