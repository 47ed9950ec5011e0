package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stylr/migrate/cmd"
	"github.com/stylr/migrate/internal/conf"
	"github.com/stylr/migrate/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := os.Getenv("STYLR_CONFIG")

	settings, err := conf.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	level := logger.LogLevel(settings.Log.Level)
	if settings.Debug {
		level = logger.LogLevelDebug
	}
	log := logger.NewSlogLogger(os.Stderr, level, time.Local)
	defer log.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings, log)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("command failed", logger.Error(err))
		return 1
	}
	return 0
}
