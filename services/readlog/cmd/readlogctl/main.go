package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"readlog/internal/util"
	"readlog/services/readlog/internal/app"
	"readlog/services/readlog/internal/cli"
	"readlog/services/readlog/internal/config"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.InitLoggerTo(os.Stderr, cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, app.ConfigFromFile(cfg))
	}
	if err := cli.NewRootCmd(open, os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
