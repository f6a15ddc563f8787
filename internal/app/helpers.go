package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/config"
	"horse.fit/firstprint/internal/credibility"
	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/dedup"
	"horse.fit/firstprint/internal/ingest"
	"horse.fit/firstprint/internal/reader"
	"horse.fit/firstprint/internal/search"
	"horse.fit/firstprint/internal/verify"
)

func buildDetector(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) *dedup.Detector {
	return dedup.NewDetector(pool, logger, dedup.Options{
		Threshold:          cfg.SimilarityThreshold,
		NearExactThreshold: cfg.NearExactThreshold,
		ChunkSize:          cfg.ScanChunkSize,
		ScanWorkers:        cfg.ScanWorkers,
		MaxMatches:         cfg.MaxResults,
		Algorithm:          cfg.Algorithm(),
	})
}

func buildIndexer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*search.Indexer, error) {
	return search.NewIndexer(ctx, search.Config{
		Addresses: cfg.ElasticsearchAddressList(),
		IndexName: cfg.ElasticsearchIndex,
	}, logger)
}

func buildCredibilityClient(cfg *config.Config, logger zerolog.Logger) credibility.Client {
	if strings.TrimSpace(cfg.CredibilityBaseURL) == "" {
		logger.Info().Msg("no credibility service configured; using neutral static assessments")
		return credibility.DefaultStatic()
	}
	client, err := credibility.NewHTTPClient(cfg.CredibilityBaseURL, cfg.CredibilityTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid credibility configuration; using neutral static assessments")
		return credibility.DefaultStatic()
	}
	return client
}

func buildVerifier(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) *verify.Service {
	detector := buildDetector(cfg, pool, logger)
	fetcher := &reader.Fetcher{Timeout: cfg.FetchTimeout}
	return verify.NewService(pool, logger, detector, buildCredibilityClient(cfg, logger), fetcher, verify.Options{
		Threshold:  cfg.SimilarityThreshold,
		MaxResults: cfg.MaxResults,
		Algorithm:  cfg.Algorithm(),
	})
}

func buildIngester(ctx context.Context, cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*ingest.Service, error) {
	indexer, err := buildIndexer(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build search indexer: %w", err)
	}
	return ingest.NewService(pool, logger, buildDetector(cfg, pool, logger), indexer), nil
}

func loadJSONInput(inline, filePath, label string) (json.RawMessage, error) {
	if strings.TrimSpace(filePath) != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", label, err)
		}
		return json.RawMessage(content), nil
	}
	if strings.TrimSpace(inline) == "" {
		return nil, fmt.Errorf("%s is required", label)
	}
	return json.RawMessage(inline), nil
}
