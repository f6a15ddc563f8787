package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"horse.fit/firstprint/internal/fingerprint"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"FP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"FP_DB_MAX_CONNS" default:"8"`

	// Matching thresholds and scan bounds for duplicate detection and
	// verification candidate search.
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.8"`
	NearExactThreshold  float64 `envconfig:"NEAR_EXACT_THRESHOLD" default:"0.95"`
	MaxResults          int     `envconfig:"MAX_RESULTS" default:"10"`
	HashAlgorithm       string  `envconfig:"HASH_ALGORITHM" default:"sha256"`
	ScanChunkSize       int     `envconfig:"SCAN_CHUNK_SIZE" default:"100"`
	ScanWorkers         int     `envconfig:"SCAN_WORKERS" default:"4"`

	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"12s"`

	CredibilityBaseURL string        `envconfig:"CREDIBILITY_BASE_URL" default:""`
	CredibilityTimeout time.Duration `envconfig:"CREDIBILITY_TIMEOUT" default:"8s"`

	ElasticsearchAddresses string `envconfig:"ELASTICSEARCH_ADDRESSES" default:""`
	ElasticsearchIndex     string `envconfig:"ELASTICSEARCH_INDEX" default:"firstprint-articles"`

	// Bcrypt hash gating the article ingest endpoint. Empty disables the gate.
	IngestAPIKeyHash string `envconfig:"INGEST_API_KEY_HASH" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("FP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("FP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("FP_DB_MIN_CONNS (%d) cannot exceed FP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.NearExactThreshold < c.SimilarityThreshold || c.NearExactThreshold > 1 {
		return fmt.Errorf("NEAR_EXACT_THRESHOLD must be in [SIMILARITY_THRESHOLD, 1]")
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("MAX_RESULTS must be >= 1")
	}
	if c.ScanChunkSize < 1 {
		return fmt.Errorf("SCAN_CHUNK_SIZE must be >= 1")
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be >= 1")
	}
	if _, err := fingerprint.ParseAlgorithm(c.HashAlgorithm); err != nil {
		return fmt.Errorf("HASH_ALGORITHM: %w", err)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be > 0")
	}
	if c.CredibilityTimeout <= 0 {
		return fmt.Errorf("CREDIBILITY_TIMEOUT must be > 0")
	}
	return nil
}

// Algorithm returns the validated digest algorithm.
func (c *Config) Algorithm() fingerprint.Algorithm {
	algo, err := fingerprint.ParseAlgorithm(c.HashAlgorithm)
	if err != nil {
		return fingerprint.DefaultAlgorithm
	}
	return algo
}

// ElasticsearchAddressList splits the configured comma-separated addresses.
func (c *Config) ElasticsearchAddressList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.ElasticsearchAddresses, ",")
	addresses := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		address := strings.TrimSpace(part)
		if address == "" {
			continue
		}
		if _, exists := seen[address]; exists {
			continue
		}
		seen[address] = struct{}{}
		addresses = append(addresses, address)
	}
	return addresses
}
