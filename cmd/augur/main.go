package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/augur/adapter/cli"
	"github.com/felixgeelhaar/augur/adapter/cli/ledger"
	"github.com/felixgeelhaar/augur/adapter/cli/prize"
	"github.com/felixgeelhaar/augur/adapter/cli/reading"
	"github.com/felixgeelhaar/augur/internal/app"
	"github.com/felixgeelhaar/augur/pkg/config"
	"github.com/felixgeelhaar/augur/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.LogConfigFor("", "info")).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel))
	cli.SetLogger(logger)

	cli.AddCommand(reading.Cmd)
	cli.AddCommand(ledger.Cmd)
	cli.AddCommand(prize.Cmd)

	// Commands that need the services report a missing app themselves, so
	// version and help keep working without credentials.
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Warn("application not initialized", "error", err)
	} else {
		defer container.Close()

		cliApp := cli.NewApp(container.Readings, container.Entitlements, container.Prizes)
		cliApp.SetPayments(container.Publisher)
		cliApp.SetHealth(container.Health)
		cliApp.HTTPAddr = cfg.HTTPAddr
		cliApp.RequestTimeout = container.RequestBudget
		cli.SetApp(cliApp)
	}

	if err := cli.RootCommand().ExecuteContext(ctx); err != nil {
		if container != nil {
			container.Close()
		}
		os.Exit(1)
	}
}
