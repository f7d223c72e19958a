// Package worker turns ledger events into summary exports. It reloads
// the user's transactions from the store on every event and appends the
// freshly derived overview to the export sheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/sheets"
	"finledger/internal/store"
)

type ExportWorker struct {
	store  store.Store
	writer sheets.SummaryWriter
}

func NewExportWorker(st store.Store, writer sheets.SummaryWriter) *ExportWorker {
	return &ExportWorker{store: st, writer: writer}
}

// HandleLedgerEvent recomputes the user's monthly summary and exports
// it. Called once per consumed AMQP message.
func (w *ExportWorker) HandleLedgerEvent(msg *amqp.LedgerEventMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.InfoContext(ctx, "Processing ledger event",
		"user_id", msg.UserID,
		"kind", msg.Kind)

	txs, err := w.store.TransactionsForUser(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	summary := core.ComputeMonthlySummary(txs, time.Now().Month())
	if err := w.writer.AppendSummary(ctx, msg.UserID, summary); err != nil {
		return fmt.Errorf("export summary: %w", err)
	}

	return nil
}
