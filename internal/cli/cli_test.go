package cli

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"

	"stockdash/internal/dashboard"
	"stockdash/internal/store"
	"stockdash/pkg/marketdata"
)

// useEnv points the commands at a fresh config and captures their output.
func useEnv(t *testing.T, baseURL, configYAML string) *bytes.Buffer {
	t.Helper()
	for _, k := range []string{
		"STOCKDASH_BASE_URL", "STOCKDASH_CONFIG", "STOCKDASH_EXPORT_DIR", "STOCKDASH_EQUITY_SOURCE",
		"SQLITE_PATH", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if baseURL != "" {
		t.Setenv("STOCKDASH_BASE_URL", baseURL)
	}

	var out bytes.Buffer
	prevOut, prevPath, prevRaw := Stdout, ConfigPath, Raw
	Stdout, ConfigPath, Raw = &out, path, true
	t.Cleanup(func() { Stdout, ConfigPath, Raw = prevOut, prevPath, prevRaw })
	return &out
}

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parsing %v: %v", args, err)
	}
	return cmd.Execute(context.Background(), f)
}

func TestSearchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"AAPL","name":"Apple Inc."}]`))
	}))
	defer srv.Close()
	out := useEnv(t, srv.URL, "")

	if st := run(t, &searchCmd{}, "apple"); st != subcommands.ExitSuccess {
		t.Fatalf("exit = %v", st)
	}
	if !strings.Contains(out.String(), "| AAPL | Apple Inc. |") {
		t.Errorf("output = %q", out.String())
	}
	if st := run(t, &searchCmd{}); st != subcommands.ExitUsageError {
		t.Errorf("missing query: exit = %v", st)
	}
}

func TestBacktestCommand(t *testing.T) {
	var gotCapital string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCapital = r.URL.Query().Get("initial_capital")
		w.Write([]byte(`{"total_return":0.25,"sharpe_ratio":1.2,"max_drawdown":-0.1,"final_value":12500}`))
	}))
	defer srv.Close()
	out := useEnv(t, srv.URL, "")

	if st := run(t, &backtestCmd{}, "-capital", "10,000", "aapl"); st != subcommands.ExitSuccess {
		t.Fatalf("exit = %v", st)
	}
	if gotCapital != "10000" {
		t.Errorf("initial_capital = %q", gotCapital)
	}
	for _, want := range []string{"# Backtest: AAPL", "| Total Return | 25.00% |", "| Final Value | $12500.00 |", "| Month 12 |"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}

	if st := run(t, &backtestCmd{}, "-capital", "-5", "aapl"); st != subcommands.ExitFailure {
		t.Errorf("negative capital: exit = %v", st)
	}
}

func TestExportCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("period") != "5d" {
			t.Errorf("period = %q", r.URL.Query().Get("period"))
		}
		w.Write([]byte(`[{"date":"2024-03-01","open":1,"high":2,"low":0.5,"close":1.5,"volume":100}]`))
	}))
	defer srv.Close()
	out := useEnv(t, srv.URL, "")

	path := filepath.Join(t.TempDir(), "msft.parquet")
	if st := run(t, &exportCmd{}, "-period", "1W", "-o", path, "msft"); st != subcommands.ExitSuccess {
		t.Fatalf("exit = %v", st)
	}
	if !strings.Contains(out.String(), "wrote 1 rows") {
		t.Errorf("output = %q", out.String())
	}
	s, err := store.ReadSeries(path)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if s.Symbol != "MSFT" || s.Period != marketdata.PeriodWeek || len(s.Points) != 1 {
		t.Errorf("exported %+v", s)
	}
}

func TestWatchCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "w.db")
	out := useEnv(t, "", "storage:\n  sqlite_path: "+db+"\n")

	if st := run(t, &watchCmd{}, "add", "msft", "aapl"); st != subcommands.ExitSuccess {
		t.Fatalf("add: exit = %v", st)
	}
	out.Reset()
	if st := run(t, &watchCmd{}, "remove", "MSFT"); st != subcommands.ExitSuccess {
		t.Fatalf("remove: exit = %v", st)
	}
	if got := strings.TrimSpace(out.String()); got != "AAPL" {
		t.Errorf("after remove = %q, want AAPL", got)
	}
	if st := run(t, &watchCmd{}, "add"); st != subcommands.ExitUsageError {
		t.Errorf("add without symbols: exit = %v", st)
	}
	if st := run(t, &watchCmd{}, "bogus", "X"); st != subcommands.ExitUsageError {
		t.Errorf("unknown op: exit = %v", st)
	}
}

func TestWatchCommandWithoutBackend(t *testing.T) {
	useEnv(t, "", "")
	if st := run(t, &watchCmd{}, "list"); st != subcommands.ExitFailure {
		t.Errorf("exit = %v, want failure without a backend", st)
	}
}

func TestHistoryMarkdown(t *testing.T) {
	rsi := 75.0
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	series := []marketdata.PricePoint{
		{Time: day(1), Open: 10, High: 11, Low: 9, Close: 10, Volume: 1000},
		{Time: day(4), Open: 10, High: 12, Low: 10, Close: 11, Volume: 2000},
		{Time: day(5), Open: 11, High: 13, Low: 11, Close: 12, Volume: 3000, Indicators: marketdata.Indicators{RSI: &rsi}},
	}
	md := historyMarkdown("AAPL", marketdata.PeriodYear, series, 2)
	for _, want := range []string{"# AAPL 1Y", "**RSI**: 75.00 (Overbought)", "**Volume**: 6,000", "| 2024-03-05 |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "| 2024-03-01 |") {
		t.Error("rows should be limited to the last 2")
	}
	if !strings.Contains(historyMarkdown("ZZZ", marketdata.PeriodMax, nil, 10), "_No data._") {
		t.Error("empty series")
	}
}

func TestSearchMarkdownEscapes(t *testing.T) {
	md := searchMarkdown("ab", []marketdata.SearchResult{{Symbol: "AB", Name: "A|B Corp"}})
	if !strings.Contains(md, `A\|B Corp`) {
		t.Errorf("pipe not escaped: %s", md)
	}
	if !strings.Contains(searchMarkdown("zz", nil), "_No matches._") {
		t.Error("empty results")
	}
}

func TestEquityCurveSource(t *testing.T) {
	res := &marketdata.BacktestResult{TotalReturn: 0.1, EquityCurve: map[string]float64{"2024-01-02": 1.1}}
	if c := equityCurve(res, 1000, "service"); len(c) != 2 || c[1].Label != "2024-01-02" {
		t.Errorf("service curve = %v", c)
	}
	if c := equityCurve(res, 1000, "synthetic"); len(c) != dashboard.EquityPoints+1 {
		t.Errorf("synthetic curve = %v", c)
	}
	if c := equityCurve(&marketdata.BacktestResult{}, 1000, "service"); len(c) != dashboard.EquityPoints+1 {
		t.Error("service source without a curve should fall back to synthetic")
	}
}
