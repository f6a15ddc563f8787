package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/dedup"
	"horse.fit/firstprint/internal/fingerprint"
	"horse.fit/firstprint/internal/langdetect"
	"horse.fit/firstprint/internal/search"
	articleschema "horse.fit/firstprint/schema"
)

// ValidationError rejects a payload that fails schema or semantic validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid article payload: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a payload validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// validatePayload runs schema and semantic validation, wrapping failures in a
// ValidationError so callers can distinguish bad input from internal faults.
func validatePayload(payload json.RawMessage) (*articleschema.ArticlePayload, error) {
	item, err := articleschema.ValidateArticlePayload(payload)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}
	return item, nil
}

// Service accepts article payloads, stores them and runs duplicate detection
// inline. Detection and search-index failures are non-fatal: the article row
// always survives and unprocessed articles are retried by the process command.
type Service struct {
	pool     *db.Pool
	logger   zerolog.Logger
	detector *dedup.Detector
	indexer  *search.Indexer
}

// Result reports what happened to one submitted payload.
type Result struct {
	ArticleID   int64  `json:"article_id"`
	ArticleUUID string `json:"article_uuid"`
	Inserted    bool   `json:"inserted"`
	Processed   bool   `json:"processed"`
	IsDuplicate bool   `json:"is_duplicate"`
}

func NewService(pool *db.Pool, logger zerolog.Logger, detector *dedup.Detector, indexer *search.Indexer) *Service {
	return &Service{
		pool:     pool,
		logger:   logger,
		detector: detector,
		indexer:  indexer,
	}
}

// IngestOne validates and stores one article payload, then detects duplicates.
func (s *Service) IngestOne(ctx context.Context, payload json.RawMessage) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	item, err := validatePayload(payload)
	if err != nil {
		return Result{}, err
	}

	sourceDomain := strings.ToLower(strings.TrimSpace(item.SourceDomain))
	sourceID, err := s.pool.UpsertSourceByDomain(ctx, strings.TrimSpace(item.SourceName), sourceDomain)
	if err != nil {
		return Result{}, err
	}

	article := db.NewArticle{
		SourceID:     sourceID,
		CanonicalURL: strings.TrimSpace(item.CanonicalURL),
		Title:        strings.TrimSpace(item.Title),
		Excerpt:      trimmedPtr(item.Excerpt),
		Author:       trimmedPtr(item.Author),
	}
	if item.Content != nil {
		article.Content = strings.TrimSpace(*item.Content)
	}
	if item.PublishedAt != nil {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*item.PublishedAt))
		if err != nil {
			return Result{}, fmt.Errorf("parse published_at: %w", err)
		}
		utc := ts.UTC()
		article.PublishedAt = &utc
	}
	if len(item.Metadata) > 0 {
		metadataJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return Result{}, fmt.Errorf("marshal metadata: %w", err)
		}
		article.Metadata = metadataJSON
	}
	article.Language = resolveLanguage(item.Language, article.Title, article.Content)

	articleID, articleUUID, inserted, err := s.pool.InsertArticle(ctx, article)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		ArticleID:   articleID,
		ArticleUUID: articleUUID,
		Inserted:    inserted,
	}
	if !inserted {
		s.logger.Info().
			Str("canonical_url", article.CanonicalURL).
			Int64("article_id", articleID).
			Msg("article already known; ingest skipped")
		return result, nil
	}

	if s.detector != nil {
		outcome, err := s.detector.Detect(ctx, articleID, article.Content)
		if err == nil {
			err = s.detector.Apply(ctx, outcome)
		}
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int64("article_id", articleID).
				Msg("duplicate detection failed; article left unprocessed for retry")
		} else {
			result.Processed = true
			result.IsDuplicate = outcome.IsDuplicate
		}
	}

	if err := s.indexArticle(ctx, articleUUID, item, article, result.IsDuplicate); err != nil {
		s.logger.Warn().
			Err(err).
			Str("article_uuid", articleUUID).
			Msg("search indexing failed")
	}

	s.logger.Info().
		Int64("article_id", articleID).
		Str("article_uuid", articleUUID).
		Bool("processed", result.Processed).
		Bool("is_duplicate", result.IsDuplicate).
		Msg("article ingested")

	return result, nil
}

func (s *Service) indexArticle(ctx context.Context, articleUUID string, item *articleschema.ArticlePayload, article db.NewArticle, isDuplicate bool) error {
	if s.indexer == nil {
		return nil
	}
	return s.indexer.IndexArticle(ctx, search.Document{
		ArticleUUID:  articleUUID,
		Title:        article.Title,
		Content:      article.Content,
		CanonicalURL: article.CanonicalURL,
		SourceName:   strings.TrimSpace(item.SourceName),
		SourceDomain: strings.ToLower(strings.TrimSpace(item.SourceDomain)),
		Fingerprint:  fingerprint.Token(article.Content),
		Language:     article.Language,
		PublishedAt:  article.PublishedAt,
		IsDuplicate:  isDuplicate,
	})
}

// resolveLanguage prefers the declared language tag; otherwise it detects one
// from the content, falling back to "und".
func resolveLanguage(declared *string, title, content string) string {
	if declared != nil {
		if code := langdetect.NormalizeCode(*declared); code != "" {
			return code
		}
	}

	sample := content
	if strings.TrimSpace(sample) == "" {
		sample = title
	}
	if code := langdetect.DetectISO6391(sample); code != "" {
		return code
	}
	return "und"
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
