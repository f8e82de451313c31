package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"stockdash/internal/config"
	"stockdash/pkg/marketdata"
)

// watchlistAPI is the subset of the Alpaca trading client used here.
type watchlistAPI interface {
	GetWatchlists() ([]alpacaapi.Watchlist, error)
	GetWatchlist(watchlistID string) (*alpacaapi.Watchlist, error)
	CreateWatchlist(req alpacaapi.CreateWatchlistRequest) (*alpacaapi.Watchlist, error)
	AddSymbolToWatchlist(watchlistID string, req alpacaapi.AddSymbolToWatchlistRequest) (*alpacaapi.Watchlist, error)
	RemoveSymbolFromWatchlist(watchlistID string, req alpacaapi.RemoveSymbolFromWatchlistRequest) error
}

var _ watchlistAPI = (*alpacaapi.Client)(nil)

func newAlpacaClient(cfg config.Alpaca) *alpacaapi.Client {
	return alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
}

// AlpacaWatchlist syncs the watchlist with a named watchlist on an Alpaca
// account. The watchlist is created on first use.
type AlpacaWatchlist struct {
	api  watchlistAPI
	name string

	mu sync.Mutex
	id string
}

// NewAlpacaWatchlist returns a store backed by the account watchlist name.
func NewAlpacaWatchlist(api watchlistAPI, name string) *AlpacaWatchlist {
	if name == "" {
		name = "stockdash"
	}
	return &AlpacaWatchlist{api: api, name: name}
}

// Close is a no-op; the REST client holds no connection.
func (a *AlpacaWatchlist) Close() error { return nil }

// Load gets or creates the named watchlist and returns its symbols.
func (a *AlpacaWatchlist) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	lists, err := a.api.GetWatchlists()
	if err != nil {
		return nil, fmt.Errorf("listing alpaca watchlists: %w", err)
	}
	for _, w := range lists {
		if w.Name != a.name {
			continue
		}
		// GetWatchlists doesn't include assets; fetch the full watchlist.
		full, err := a.api.GetWatchlist(w.ID)
		if err != nil {
			return nil, fmt.Errorf("getting watchlist %s: %w", a.name, err)
		}
		a.id = w.ID
		syms := make([]string, 0, len(full.Assets))
		for _, asset := range full.Assets {
			syms = append(syms, asset.Symbol)
		}
		return syms, nil
	}

	w, err := a.api.CreateWatchlist(alpacaapi.CreateWatchlistRequest{Name: a.name})
	if err != nil {
		return nil, fmt.Errorf("creating watchlist %s: %w", a.name, err)
	}
	a.id = w.ID
	return []string{}, nil
}

// Add appends symbol to the account watchlist.
func (a *AlpacaWatchlist) Add(ctx context.Context, symbol string) error {
	id, err := a.watchlistID(ctx)
	if err != nil {
		return err
	}
	sym := marketdata.NormalizeSymbol(symbol)
	if _, err := a.api.AddSymbolToWatchlist(id, alpacaapi.AddSymbolToWatchlistRequest{Symbol: sym}); err != nil {
		return fmt.Errorf("adding %s to %s: %w", sym, a.name, err)
	}
	return nil
}

// Remove deletes symbol from the account watchlist.
func (a *AlpacaWatchlist) Remove(ctx context.Context, symbol string) error {
	id, err := a.watchlistID(ctx)
	if err != nil {
		return err
	}
	sym := marketdata.NormalizeSymbol(symbol)
	if err := a.api.RemoveSymbolFromWatchlist(id, alpacaapi.RemoveSymbolFromWatchlistRequest{Symbol: sym}); err != nil {
		return fmt.Errorf("removing %s from %s: %w", sym, a.name, err)
	}
	return nil
}

func (a *AlpacaWatchlist) watchlistID(ctx context.Context) (string, error) {
	a.mu.Lock()
	id := a.id
	a.mu.Unlock()
	if id != "" {
		return id, nil
	}
	if _, err := a.Load(ctx); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id == "" {
		return "", errors.New("alpaca watchlist unavailable")
	}
	return a.id, nil
}
