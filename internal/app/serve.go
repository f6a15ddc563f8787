package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/firstprint/internal/cli"
	"horse.fit/firstprint/internal/config"
	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/httpapi"
	"horse.fit/firstprint/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.NewPool(connectCtx, cfg)
	connectCancel()
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return 1
	}
	defer pool.Close()

	ingester, err := buildIngester(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("ingest setup failed")
		return 1
	}
	verifier := buildVerifier(cfg, pool, logger)

	server := httpapi.NewServer(pool, logger, ingester, verifier, httpapi.Options{
		Addr:             cfg.HTTPAddr,
		ShutdownTimeout:  cfg.ShutdownTimeout,
		IngestAPIKeyHash: cfg.IngestAPIKeyHash,
	})

	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return 1
	}
	return 0
}
