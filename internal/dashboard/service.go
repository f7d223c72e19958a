// Package dashboard folds transaction snapshots through the aggregation
// engine and republishes the derived values. No incremental state is
// kept: every upstream change triggers a full recompute, trading O(n)
// work per change for the absence of incremental-aggregation bugs.
package dashboard

import (
	"context"
	"time"

	"finledger/internal/core"
	"finledger/internal/feed"
)

type Service struct {
	summary *feed.Topic[core.MonthlySummary]
	net     *feed.Topic[map[string]core.Money]
	counts  *feed.Topic[map[string]int]

	// now is swappable for tests pinning the reference month.
	now func() time.Time
}

func NewService() *Service {
	return &Service{
		summary: feed.NewTopic[core.MonthlySummary](),
		net:     feed.NewTopic[map[string]core.Money](),
		counts:  feed.NewTopic[map[string]int](),
		now:     time.Now,
	}
}

func (s *Service) WatchSummary() (<-chan core.MonthlySummary, func()) {
	return s.summary.Subscribe()
}

func (s *Service) WatchCategoryNet() (<-chan map[string]core.Money, func()) {
	return s.net.Subscribe()
}

func (s *Service) WatchCategoryCounts() (<-chan map[string]int, func()) {
	return s.counts.Subscribe()
}

// Run consumes transaction snapshots until the channel closes or ctx is
// cancelled, recomputing all derived values on each one.
func (s *Service) Run(ctx context.Context, transactions <-chan []core.Transaction) {
	for {
		select {
		case <-ctx.Done():
			return
		case txs, ok := <-transactions:
			if !ok {
				return
			}
			s.Recompute(txs)
		}
	}
}

// Recompute derives and publishes every dashboard value for txs.
func (s *Service) Recompute(txs []core.Transaction) {
	s.summary.Publish(core.ComputeMonthlySummary(txs, s.now().Month()))
	s.net.Publish(core.AllTimeCategoryNet(txs))
	s.counts.Publish(core.CategoryCounts(txs))
}

// Summary returns the last derived overview (zero value before the
// first snapshot arrives).
func (s *Service) Summary() core.MonthlySummary {
	v, _ := s.summary.Last()
	return v
}
