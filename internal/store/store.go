// Package store persists the dashboard watchlist (SQLite or an Alpaca
// account watchlist) and exports price series to Parquet files.
package store

import (
	"context"
	"log/slog"

	"stockdash/internal/config"
	"stockdash/internal/dashboard"
)

// WatchlistStore persists watchlist membership. Symbols are upper-case.
type WatchlistStore interface {
	dashboard.WatchlistStore

	// Close releases the underlying connection.
	Close() error
}

// Compile-time interface checks.
var _ WatchlistStore = (*SQLiteWatchlist)(nil)
var _ WatchlistStore = (*AlpacaWatchlist)(nil)

// OpenWatchlist returns the watchlist backend selected by cfg: the Alpaca
// account watchlist when API keys are set, else SQLite when a database path
// is set. It returns nil, nil when persistence is disabled.
func OpenWatchlist(ctx context.Context, cfg *config.Config, logger *slog.Logger) (WatchlistStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case cfg.AlpacaEnabled():
		logger.Info("watchlist backend", "type", "alpaca", "name", cfg.Alpaca.Watchlist)
		return NewAlpacaWatchlist(newAlpacaClient(cfg.Alpaca), cfg.Alpaca.Watchlist), nil
	case cfg.Storage.SQLitePath != "":
		logger.Info("watchlist backend", "type", "sqlite", "path", cfg.Storage.SQLitePath)
		s, err := NewSQLiteWatchlist(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		logger.Info("watchlist backend", "type", "none")
		return nil, nil
	}
}
