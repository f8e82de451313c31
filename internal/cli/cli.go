// Package cli implements the stockdash-cli subcommands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"stockdash/internal/config"
	"stockdash/internal/util"
	"stockdash/pkg/marketdata"
)

// Global flags, registered by main.
var (
	ConfigPath string
	Verbose    bool
	Raw        bool
)

// Stdout receives command output.
var Stdout io.Writer = os.Stdout

// Commands lists every subcommand.
var Commands = []subcommands.Command{
	&searchCmd{},
	&historyCmd{},
	&backtestCmd{},
	&exportCmd{},
	&watchCmd{},
}

// NewServiceClient builds the market data client described by cfg.
func NewServiceClient(cfg *config.Config, logger *slog.Logger) *marketdata.Client {
	// Per-call contexts enforce the shorter timeouts; the transport allows
	// the longest one.
	return marketdata.NewClient(cfg.Service.BaseURL,
		marketdata.WithTimeout(max(cfg.Service.Timeout, cfg.Service.BacktestTimeout)),
		marketdata.WithRateLimit(cfg.Service.RequestsPerSec, cfg.Service.Burst),
		marketdata.WithLogger(logger.With("component", "client")),
	)
}

// setup loads the configuration and a stderr logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.Path(ConfigPath))
	if err != nil {
		return nil, nil, err
	}
	level := "warn"
	if Verbose {
		level = "debug"
	}
	return cfg, util.NewLogger(level, os.Stderr), nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

// printMarkdown renders md for the terminal, or writes it as is with -raw.
func printMarkdown(md string) {
	if Raw {
		fmt.Fprint(Stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Fprint(Stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(Stdout, md)
		return
	}
	fmt.Fprint(Stdout, out)
}
