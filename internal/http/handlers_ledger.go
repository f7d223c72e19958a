package http

import (
	"net/http"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"
)

type addTransactionRequest struct {
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Date     string `json:"date,omitempty"` // RFC 3339, defaults to now
}

type transactionResponse struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Date     string  `json:"date"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:       tx.ID,
		Amount:   tx.Amount.Float(),
		Category: tx.Category,
		Type:     string(tx.Type),
		Date:     tx.Date.Format(time.RFC3339),
	}
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, want RFC 3339")
			return
		}
		date = parsed
	}

	ident := identityFrom(r)
	id, err := s.ledger.AddTransaction(r.Context(), ident, core.Money{Cents: cents}, req.Category, core.TxType(req.Type), date)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	s.invalidateDashboard(ident.UserID)
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("category")
	txs := s.ledger.ListTransactions(r.Context(), identityFrom(r), filter)

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

type addCategoryRequest struct {
	Name string `json:"name"`
}

type renameCategoryRequest struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type deleteCategoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	TransactionCount int    `json:"transaction_count"`
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req addCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ident := identityFrom(r)
	if err := s.ledger.AddCategory(r.Context(), ident, req.Name); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// handleListCategories returns the user's categories annotated with
// all-time transaction counts.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	cats := s.ledger.ListCategories(r.Context(), ident)
	counts := core.CategoryCounts(s.ledger.ListTransactions(r.Context(), ident, core.FilterAll))

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{
			ID:               c.ID,
			Name:             c.Name,
			TransactionCount: counts[c.Name],
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	var req renameCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ident := identityFrom(r)
	if err := s.ledger.RenameCategory(r.Context(), ident, req.OldName, req.NewName); err != nil {
		respondDomainError(w, err)
		return
	}

	s.invalidateDashboard(ident.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	var req deleteCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ident := identityFrom(r)
	if err := s.ledger.DeleteCategory(r.Context(), ident, req.Name); err != nil {
		respondDomainError(w, err)
		return
	}

	s.invalidateDashboard(ident.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) invalidateDashboard(userID string) {
	s.summaryCache.Delete(dashboardCacheKey(userID))
	s.logger.Debug("Dashboard cache invalidated", log.FieldUserID, userID)
}
