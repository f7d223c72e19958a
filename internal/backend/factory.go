// Package backend selects and wires the store implementation from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"finledger/internal/store"
	"finledger/internal/store/memory"
	"finledger/internal/store/sqlite"
)

type Type string

const (
	Memory Type = "memory"
	SQLite Type = "sqlite"
)

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite:
		return true
	default:
		return false
	}
}

type Config struct {
	Type         Type
	SQLiteDBPath string
}

// Open creates the configured store. Callers own the returned store's
// Close.
func Open(cfg Config, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	switch cfg.Type {
	case SQLite:
		st, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Initialized sqlite store", "db_path", cfg.SQLiteDBPath)
		return st, nil
	default:
		logger.Info("Initialized memory store")
		return memory.New(), nil
	}
}
