package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"stockdash/internal/cli"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range cli.Commands {
		commander.Register(c, "")
	}

	flag.StringVar(&cli.ConfigPath, "config", "", "path to config file (default $STOCKDASH_CONFIG or config.yaml)")
	flag.BoolVar(&cli.Verbose, "v", false, "log requests to stderr")
	flag.BoolVar(&cli.Raw, "raw", false, "print markdown without terminal rendering")
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
