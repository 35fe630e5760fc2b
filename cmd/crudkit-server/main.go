package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit"
)

func main() {
	configPath := flag.String("config", os.Getenv("CRUDKIT_CONFIG"), "configuration file (YAML)")
	addr := flag.String("addr", "", "listen address, overrides the configuration")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "crudkit-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg, err := crudkit.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	logger, err := crudkit.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Desugar())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, release, err := crudkit.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warnw("close store", "error", err)
		}
	}()

	logger.Infow("starting", "store", cfg.Store.Driver, "schemas", len(cfg.Schemas))
	return srv.Run(ctx)
}
