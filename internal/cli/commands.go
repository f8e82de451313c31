package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"

	"stockdash/internal/config"
	"stockdash/internal/dashboard"
	"stockdash/internal/store"
	"stockdash/pkg/marketdata"
)

// ---------------------------------------------------------------------------
// search
// ---------------------------------------------------------------------------

type searchCmd struct{}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "find symbols by ticker or company name" }
func (*searchCmd) Usage() string {
	return `stockdash-cli search <query>

  Lists the symbols matching query (at least 2 characters).
`
}
func (*searchCmd) SetFlags(*flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, logger, err := setup()
	if err != nil {
		return fail(err)
	}
	query := strings.Join(f.Args(), " ")

	ctx, cancel := context.WithTimeout(ctx, cfg.Service.Timeout)
	defer cancel()
	results, err := NewServiceClient(cfg, logger).Search(ctx, query)
	if err != nil {
		return fail(err)
	}
	printMarkdown(searchMarkdown(query, results))
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

type historyCmd struct {
	period string
	rows   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show price history with indicators" }
func (*historyCmd) Usage() string {
	return `stockdash-cli history [-period <1d|5d|1mo|1y|max>] [-n <rows>] <symbol>

  Prints a summary of the series and its most recent rows.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "History window (1d, 5d, 1mo, 1y, max or 1D/1W/1M/1Y/ALL). Defaults to the configured period.")
	f.IntVar(&c.rows, "n", 10, "Number of rows to print; 0 prints all.")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, logger, err := setup()
	if err != nil {
		return fail(err)
	}
	period, err := resolvePeriod(c.period, cfg)
	if err != nil {
		return fail(err)
	}
	symbol := marketdata.NormalizeSymbol(f.Arg(0))

	ctx, cancel := context.WithTimeout(ctx, cfg.Service.Timeout)
	defer cancel()
	series, err := NewServiceClient(cfg, logger).History(ctx, symbol, period)
	if err != nil {
		return fail(err)
	}
	printMarkdown(historyMarkdown(symbol, period, series, c.rows))
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// backtest
// ---------------------------------------------------------------------------

type backtestCmd struct {
	capital string
	equity  string
}

func (*backtestCmd) Name() string     { return "backtest" }
func (*backtestCmd) Synopsis() string { return "run the service's strategy backtest for a symbol" }
func (*backtestCmd) Usage() string {
	return `stockdash-cli backtest [-capital <amount>] [-equity <synthetic|service>] <symbol>

  Runs a backtest and prints its metrics and equity curve.
`
}

func (c *backtestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.capital, "capital", "", "Initial capital, e.g. 25000 or 25,000. Defaults to the configured capital.")
	f.StringVar(&c.equity, "equity", "", "Equity curve source (synthetic or service). Defaults to the configured source.")
}

func (c *backtestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, logger, err := setup()
	if err != nil {
		return fail(err)
	}
	capital := cfg.Backtest.InitialCapital
	if c.capital != "" {
		if capital, err = marketdata.ParseCapital(c.capital); err != nil {
			return fail(err)
		}
	}
	source := cfg.Backtest.EquitySource
	if c.equity != "" {
		source = c.equity
	}
	symbol := marketdata.NormalizeSymbol(f.Arg(0))

	ctx, cancel := context.WithTimeout(ctx, cfg.Service.BacktestTimeout)
	defer cancel()
	res, err := NewServiceClient(cfg, logger).Backtest(ctx, symbol, capital)
	if err != nil {
		return fail(err)
	}

	fm := dashboard.NewFormatter(cfg.Backtest.Currency)
	printMarkdown(backtestMarkdown(symbol, capital, res, equityCurve(res, capital, source), fm))
	return subcommands.ExitSuccess
}

func equityCurve(res *marketdata.BacktestResult, capital float64, source string) []dashboard.EquityPoint {
	if source == config.EquityService && len(res.EquityCurve) > 0 {
		return dashboard.ServiceEquityCurve(res.EquityCurve, capital)
	}
	return dashboard.SynthesizeEquityCurve(res.TotalReturn, capital, nil)
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

type exportCmd struct {
	period string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export price history to a Parquet file" }
func (*exportCmd) Usage() string {
	return `stockdash-cli export [-period <period>] [-o <file>] <symbol>

  Fetches the series and writes it, indicators included, as Parquet.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "History window. Defaults to the configured period.")
	f.StringVar(&c.output, "o", "", "Output file. Defaults to a timestamped file in storage.export_dir.")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, logger, err := setup()
	if err != nil {
		return fail(err)
	}
	period, err := resolvePeriod(c.period, cfg)
	if err != nil {
		return fail(err)
	}
	symbol := marketdata.NormalizeSymbol(f.Arg(0))

	ctx, cancel := context.WithTimeout(ctx, cfg.Service.Timeout)
	defer cancel()
	series, err := NewServiceClient(cfg, logger).History(ctx, symbol, period)
	if err != nil {
		return fail(err)
	}

	path := c.output
	if path == "" {
		path = store.ExportPath(cfg.Storage.ExportDir, symbol, period, time.Now())
	}
	if err := store.ExportSeries(path, symbol, period, series); err != nil {
		return fail(err)
	}
	fmt.Fprintf(Stdout, "wrote %d rows to %s\n", len(series), path)
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

type watchCmd struct{}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "list or edit the persisted watchlist" }
func (*watchCmd) Usage() string {
	return `stockdash-cli watch list
stockdash-cli watch add <symbol>...
stockdash-cli watch remove <symbol>...

  Edits the watchlist in the configured backend (Alpaca or SQLite).
`
}
func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (*watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	op, syms := f.Arg(0), f.Args()[1:]
	if op != "list" && len(syms) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	cfg, logger, err := setup()
	if err != nil {
		return fail(err)
	}
	wl, err := store.OpenWatchlist(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if wl == nil {
		return fail(fmt.Errorf("no watchlist backend: set storage.sqlite_path or Alpaca API keys"))
	}
	defer wl.Close()

	switch op {
	case "list":
	case "add":
		for _, s := range syms {
			if err := wl.Add(ctx, s); err != nil {
				return fail(err)
			}
		}
	case "remove", "rm":
		for _, s := range syms {
			if err := wl.Remove(ctx, s); err != nil {
				return fail(err)
			}
		}
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}

	current, err := wl.Load(ctx)
	if err != nil {
		return fail(err)
	}
	for _, s := range current {
		fmt.Fprintln(Stdout, s)
	}
	return subcommands.ExitSuccess
}

func resolvePeriod(flagValue string, cfg *config.Config) (marketdata.Period, error) {
	if flagValue == "" {
		return marketdata.Period(cfg.Dashboard.DefaultPeriod), nil
	}
	return marketdata.ParsePeriod(flagValue)
}
