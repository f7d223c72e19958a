// Package sqlite is the durable Store backend, backed by modernc.org's
// pure-Go driver with embedded golang-migrate migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finledger/internal/core"
	"finledger/internal/store"
)

type Store struct {
	*store.Hub
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{Hub: store.NewHub(), db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	tx.ID = uuid.NewString()
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, amount_cents, category, type, date) VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount.Cents, tx.Category, string(tx.Type), tx.Date.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"user_id", tx.UserID,
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category,
		"type", tx.Type)

	s.Broadcast(tx.UserID)
	return tx.ID, nil
}

func (s *Store) TransactionsForUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, user_id, amount_cents, category, type, date FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC`,
		userID)
}

func (s *Store) TransactionsByCategory(ctx context.Context, userID, category string) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, user_id, amount_cents, category, type, date FROM transactions WHERE user_id = ? AND category = ? ORDER BY date DESC, id DESC`,
		userID, category)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx       core.Transaction
			txType   string
			dateNano int64
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount.Cents, &tx.Category, &txType, &dateNano); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = core.TxType(txType)
		tx.Date = time.Unix(0, dateNano)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) (string, error) {
	c.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name) VALUES (?, ?, ?)`,
		c.ID, c.UserID, c.Name)
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}

	s.Broadcast(c.UserID)
	return c.ID, nil
}

func (s *Store) CategoriesForUser(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (s *Store) FindCategory(ctx context.Context, userID, name string) (core.Category, error) {
	var c core.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name FROM categories WHERE user_id = ? AND name = ?`,
		userID, name).Scan(&c.ID, &c.UserID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (s *Store) InsertUser(ctx context.Context, u store.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (store.User, error) {
	var (
		u       store.User
		created int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

// Apply runs every queued operation inside one SQL transaction. An
// operation touching a document the caller does not own (or that no
// longer exists) rolls the whole batch back.
func (s *Store) Apply(ctx context.Context, userID string, b *store.Batch) error {
	if b.Empty() {
		return nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer sqlTx.Rollback()

	for _, op := range b.Ops() {
		var res sql.Result
		switch op.Kind {
		case store.OpSetTransactionCategory:
			res, err = sqlTx.ExecContext(ctx,
				`UPDATE transactions SET category = ? WHERE id = ? AND user_id = ?`,
				op.Value, op.DocID, userID)
		case store.OpRenameCategory:
			res, err = sqlTx.ExecContext(ctx,
				`UPDATE categories SET name = ? WHERE id = ? AND user_id = ?`,
				op.Value, op.DocID, userID)
		case store.OpDeleteCategory:
			res, err = sqlTx.ExecContext(ctx,
				`DELETE FROM categories WHERE id = ? AND user_id = ?`,
				op.DocID, userID)
		default:
			return fmt.Errorf("unknown batch operation %d", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("apply batch op: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("batch rows affected: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("batch references unknown document %s: %w", op.DocID, store.ErrNotFound)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Batch committed", "user_id", userID, "ops", len(b.Ops()))
	s.Broadcast(userID)
	return nil
}
