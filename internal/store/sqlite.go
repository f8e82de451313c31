package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockdash/pkg/marketdata"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const watchlistSchema = `
CREATE TABLE IF NOT EXISTS watchlist (
	symbol   TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	added_at TEXT NOT NULL
)`

// SQLiteWatchlist stores the watchlist in a local SQLite database. Symbols
// load in the order they were added.
type SQLiteWatchlist struct {
	db *sql.DB
}

// NewSQLiteWatchlist opens (or creates) a SQLite database at dbPath and
// ensures the watchlist table exists.
func NewSQLiteWatchlist(ctx context.Context, dbPath string) (*SQLiteWatchlist, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, watchlistSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating watchlist table: %w", err)
	}
	return &SQLiteWatchlist{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteWatchlist) Close() error {
	return s.db.Close()
}

// Load returns the stored symbols in insertion order.
func (s *SQLiteWatchlist) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}
	defer rows.Close()

	var syms []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

// Add appends symbol. Adding a stored symbol is a no-op.
func (s *SQLiteWatchlist) Add(ctx context.Context, symbol string) error {
	sym := marketdata.NormalizeSymbol(symbol)
	if sym == "" {
		return &marketdata.ValidationError{Field: "symbol", Value: symbol, Reason: "empty"}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlist (symbol, position, added_at)
		SELECT ?, COALESCE(MAX(position), 0) + 1, ? FROM watchlist`,
		sym, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("adding %s: %w", sym, err)
	}
	return nil
}

// Remove deletes symbol. Removing an absent symbol is a no-op.
func (s *SQLiteWatchlist) Remove(ctx context.Context, symbol string) error {
	sym := marketdata.NormalizeSymbol(symbol)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, sym); err != nil {
		return fmt.Errorf("removing %s: %w", sym, err)
	}
	return nil
}
