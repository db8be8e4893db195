package main

import (
	"log/slog"
	"os"

	"github.com/dgallion1/pagecache/internal/cli"
	"github.com/dgallion1/pagecache/internal/config"
)

func main() {
	level := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(cli.ExitCommandError)
	}
	level.Set(cfg.SlogLevel())

	if err := cli.NewRootCommand(cfg, log, level).Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(cli.GetExitCode(err))
	}
}
