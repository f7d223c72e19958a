package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finledger/internal/core"
	"finledger/internal/dashboard"
	"finledger/internal/ledger"
	"finledger/internal/log"
)

type dashboardResponse struct {
	NetWorth          float64            `json:"net_worth"`
	MonthlyIncome     float64            `json:"monthly_income"`
	MonthlyExpense    float64            `json:"monthly_expense"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	CategoryNet       map[string]float64 `json:"category_net"`
	CategoryCounts    map[string]int     `json:"category_counts"`
}

func buildDashboardResponse(summary core.MonthlySummary, net map[string]core.Money, counts map[string]int) dashboardResponse {
	resp := dashboardResponse{
		NetWorth:          summary.NetWorth.Float(),
		MonthlyIncome:     summary.MonthlyIncome.Float(),
		MonthlyExpense:    summary.MonthlyExpense.Float(),
		CategoryBreakdown: make(map[string]float64, len(summary.CategoryBreakdown)),
		CategoryNet:       make(map[string]float64, len(net)),
		CategoryCounts:    counts,
	}
	for name, m := range summary.CategoryBreakdown {
		resp.CategoryBreakdown[name] = m.Float()
	}
	for name, m := range net {
		resp.CategoryNet[name] = m.Float()
	}
	return resp
}

func dashboardCacheKey(userID string) string {
	now := time.Now()
	return fmt.Sprintf("%s:%d-%02d", userID, now.Year(), int(now.Month()))
}

// handleDashboard serves the one-shot overview, memoized per user and
// calendar month until the next mutation invalidates it.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	if ident == nil {
		respondJSON(w, http.StatusOK, buildDashboardResponse(
			core.ComputeMonthlySummary(nil, time.Now().Month()), nil, nil))
		return
	}

	key := dashboardCacheKey(ident.UserID)
	if cached, ok := s.summaryCache.Get(key); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	txs := s.ledger.ListTransactions(r.Context(), ident, core.FilterAll)
	resp := buildDashboardResponse(
		core.ComputeMonthlySummary(txs, time.Now().Month()),
		core.AllTimeCategoryNet(txs),
		core.CategoryCounts(txs),
	)
	s.summaryCache.Set(key, resp)
	respondJSON(w, http.StatusOK, resp)
}

// handleDashboardStream is the live counterpart: a Server-Sent Events
// stream that pushes a fresh overview on every ledger change. The
// optional ?category= parameter narrows the transaction scope the
// overview is derived from.
func (s *Server) handleDashboardStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ident := identityFrom(r)
	filter := r.URL.Query().Get("category")

	watcher := ledger.NewTransactionWatcher(s.store)
	defer watcher.Close()

	snapshots, unsubscribe := watcher.Updates()
	defer unsubscribe()

	dash := dashboard.NewService()
	summaries, unsubSummary := dash.WatchSummary()
	defer unsubSummary()
	nets, unsubNet := dash.WatchCategoryNet()
	defer unsubNet()
	counts, unsubCounts := dash.WatchCategoryCounts()
	defer unsubCounts()

	watcher.SetScope(ident, filter)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if ident != nil {
		s.logger.InfoContext(r.Context(), "Dashboard stream opened",
			log.FieldUserID, ident.UserID, "filter", filter)
	}

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case txs, ok := <-snapshots:
			if !ok {
				return
			}
			// Recompute publishes to all three topics before returning, so
			// the derived values can be drained immediately.
			dash.Recompute(txs)
			s.sendDashboardEvent(w, flusher, <-summaries, <-nets, <-counts)
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) sendDashboardEvent(w http.ResponseWriter, flusher http.Flusher, summary core.MonthlySummary, net map[string]core.Money, counts map[string]int) {
	payload, err := json.Marshal(buildDashboardResponse(summary, net, counts))
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: dashboard\ndata: %s\n\n", payload)
	flusher.Flush()
}
