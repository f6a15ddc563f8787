package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/firstprint/internal/cli"
	"horse.fit/firstprint/internal/config"
	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/logging"
	"horse.fit/firstprint/internal/verify"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	text := fs.String("text", "", "Raw text to verify")
	pageURL := fs.String("url", "", "Article URL to verify")

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

	if err := verify.ValidateSubmission(text, pageURL); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := buildVerifier(cfg, pool, logger)

	requestUUID, err := svc.Submit(ctx, text, pageURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submission failed: %v\n", err)
		return 1
	}

	if err := svc.Process(ctx, requestUUID); err != nil {
		fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
		return 1
	}

	request, results, err := svc.Results(ctx, requestUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load results: %v\n", err)
		return 1
	}

	payload, err := json.MarshalIndent(map[string]any{
		"request": request,
		"results": results,
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode results: %v\n", err)
		return 1
	}

	fmt.Println(string(payload))
	return 0
}
