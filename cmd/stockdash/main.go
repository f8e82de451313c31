package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"stockdash/internal/cli"
	"stockdash/internal/config"
	"stockdash/internal/dashboard"
	"stockdash/internal/store"
	"stockdash/internal/util"
	"stockdash/pkg/marketdata"
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeCapital
)

// Messages.
type tickMsg time.Time

type exportedMsg struct {
	path string
	rows int
	err  error
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	dash   *dashboard.Dashboard
	cfg    *config.Config
	logger *slog.Logger

	mode     inputMode
	search   textinput.Model
	capital  textinput.Model
	wlCursor int
	status   string

	width  int
	height int
}

func initialModel(d *dashboard.Dashboard, cfg *config.Config, logger *slog.Logger) model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search symbol or company"
	search.CharLimit = 64

	capital := textinput.New()
	capital.Prompt = "capital $ "
	capital.CharLimit = 20

	return model{
		dash:    d,
		cfg:     cfg,
		logger:  logger,
		search:  search,
		capital: capital,
		width:   80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.dash.Mount(), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = max(10, msg.Width-4)
		return m, nil

	case tickMsg:
		// Re-render so watchlist ages stay current.
		return m, tickCmd()

	case exportedMsg:
		if msg.err != nil {
			m.logger.Warn("export failed", "path", msg.path, "error", msg.err)
			m.dash.Notices.Publish(dashboard.SourceExport, msg.err)
			return m, nil
		}
		m.dash.Notices.Clear(dashboard.SourceExport)
		m.status = fmt.Sprintf("exported %d rows to %s", msg.rows, msg.path)
		m.logger.Info("series exported", "path", msg.path, "rows", msg.rows)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeCapital:
			return m.updateCapital(msg)
		default:
			return m.updateNormal(msg)
		}
	}

	cmds := []tea.Cmd{m.dash.Update(msg)}
	var cmd tea.Cmd
	switch m.mode {
	case modeSearch:
		m.search, cmd = m.search.Update(msg)
	case modeCapital:
		m.capital, cmd = m.capital.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.dash.Watchlist.Entries()

	switch key := msg.String(); key {
	case "q", "ctrl+c":
		m.dash.Unmount()
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.search.SetValue("")
		m.dash.TypeQuery("")
		return m, m.search.Focus()
	case "1", "2", "3", "4", "5":
		p := marketdata.Periods[int(key[0]-'1')]
		return m, m.dash.SelectPeriod(p)
	case "up", "k":
		if m.wlCursor > 0 {
			m.wlCursor--
		}
		return m, nil
	case "down", "j":
		if m.wlCursor < len(entries)-1 {
			m.wlCursor++
		}
		return m, nil
	case "enter":
		if m.wlCursor < len(entries) {
			return m, m.dash.SelectSymbol(entries[m.wlCursor].Symbol)
		}
		return m, nil
	case "a":
		return m, m.dash.Watch("")
	case "d":
		if m.wlCursor >= len(entries) {
			return m, nil
		}
		cmd := m.dash.Unwatch(entries[m.wlCursor].Symbol)
		if m.wlCursor >= len(entries)-1 && m.wlCursor > 0 {
			m.wlCursor--
		}
		return m, cmd
	case "r":
		m.status = ""
		return m, m.dash.Refresh()
	case "b":
		cmd := m.dash.RunBacktest()
		if cmd == nil {
			m.status = "backtest already running"
		}
		return m, cmd
	case "c":
		m.mode = modeCapital
		m.capital.SetValue(fmt.Sprintf("%.2f", m.dash.Backtest.Capital()))
		m.capital.CursorEnd()
		return m, m.capital.Focus()
	case "x":
		return m, m.exportCmd()
	}
	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.dash.Unmount()
		return m, tea.Quit
	case "esc":
		m.dash.Search.Dismiss()
		m.search.Blur()
		m.mode = modeNormal
		return m, nil
	case "up":
		m.dash.Search.MoveCursor(-1)
		return m, nil
	case "down":
		m.dash.Search.MoveCursor(1)
		return m, nil
	case "enter":
		var cmd tea.Cmd
		if m.dash.Search.State() == dashboard.SearchOpen {
			cmd = m.dash.PickResult(m.dash.Search.Cursor())
		} else {
			cmd = m.dash.CommitSearch()
		}
		m.search.SetValue(m.dash.Search.Query())
		m.search.Blur()
		m.mode = modeNormal
		return m, cmd
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.dash.TypeQuery(m.search.Value())
	return m, cmd
}

func (m model) updateCapital(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.dash.Unmount()
		return m, tea.Quit
	case "esc":
		m.capital.Blur()
		m.mode = modeNormal
		return m, nil
	case "enter":
		// Invalid input stays in the editor; the notice explains why.
		if err := m.dash.SetCapital(m.capital.Value()); err != nil {
			return m, nil
		}
		m.capital.Blur()
		m.mode = modeNormal
		m.status = "capital set to " + m.dash.Format.Money(m.dash.Backtest.Capital())
		return m, nil
	}

	var cmd tea.Cmd
	m.capital, cmd = m.capital.Update(msg)
	return m, cmd
}

// exportCmd writes the displayed series to a Parquet file in the export dir.
func (m model) exportCmd() tea.Cmd {
	shown := m.dash.Chart.Shown()
	series := m.dash.Chart.Series()
	if len(series) == 0 {
		m.dash.Notices.Publish(dashboard.SourceExport, errors.New("no series to export"))
		return nil
	}
	points := append([]marketdata.PricePoint(nil), series...)
	path := store.ExportPath(m.cfg.Storage.ExportDir, shown.Symbol, shown.Period, time.Now())
	return func() tea.Msg {
		err := store.ExportSeries(path, shown.Symbol, shown.Period, points)
		return exportedMsg{path: path, rows: len(points), err: err}
	}
}

func main() {
	configPath := flag.String("config", "", "path to config file (default $STOCKDASH_CONFIG or config.yaml)")
	flag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := util.OpenLogFile(cfg.Logging.File, "stockdash")
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)}))
	util.SetDefault(logger)

	client := cli.NewServiceClient(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Fprintf(os.Stderr, "waiting for %s...", client.BaseURL())
	if err := client.WaitReady(ctx, cfg.Service.StartupWait); err != nil {
		// Start anyway; failed calls surface in the footer.
		fmt.Fprintln(os.Stderr, " unavailable")
		logger.Warn("service not ready", "url", client.BaseURL(), "error", err)
	} else {
		fmt.Fprintln(os.Stderr, " ok")
	}

	d := dashboard.New(dashboard.OptionsFromConfig(cfg), client, logger)

	wl, err := store.OpenWatchlist(ctx, cfg, logger)
	if err != nil {
		logger.Warn("watchlist persistence disabled", "error", err)
	} else if wl != nil {
		defer wl.Close()
		d.UseStore(wl)
	}

	p := tea.NewProgram(
		initialModel(d, cfg, logger),
		tea.WithAltScreen(),
	)
	d.Attach(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	// Covers exits that bypass the quit keys.
	d.Unmount()
}
