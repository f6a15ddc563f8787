package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/globaltime"
	"horse.fit/firstprint/internal/ingest"
	"horse.fit/firstprint/internal/verify"
)

const (
	defaultListLimit  = 25
	maxListLimit      = 200
	maxIngestBodySize = 4 << 20
)

type verificationSubmission struct {
	Text *string `json:"text,omitempty"`
	URL  *string `json:"url,omitempty"`
}

type verificationResponse struct {
	Request *db.VerificationRequestDetail `json:"request"`
	Results []db.VerificationResultDetail `json:"results"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "firstprint",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	dayStart := globaltime.UTC().Truncate(24 * time.Hour)
	stats, err := s.pool.QueryEngineStats(c.Request().Context(), dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleArticles(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultListLimit, 1, maxListLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	onlyDuplicates := strings.EqualFold(strings.TrimSpace(c.QueryParam("duplicates")), "true")
	items, err := s.pool.ListArticles(c.Request().Context(), db.ArticleListOptions{
		OnlyDuplicates: onlyDuplicates,
		Limit:          limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("query articles failed")
		return internalError(c, "Failed to load articles")
	}

	return success(c, map[string]any{
		"items": items,
		"limit": limit,
	})
}

func (s *Server) handleArticleDetail(c echo.Context) error {
	articleUUID := strings.TrimSpace(c.Param("article_uuid"))
	if articleUUID == "" {
		return failValidation(c, map[string]string{"article_uuid": "is required"})
	}

	detail, err := s.pool.GetArticleByUUID(c.Request().Context(), articleUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_uuid", articleUUID).Msg("query article detail failed")
		return internalError(c, "Failed to load article")
	}

	return success(c, detail)
}

func (s *Server) handleIngestArticle(c echo.Context) error {
	if s.ingester == nil {
		return internalError(c, "Ingest is not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxIngestBodySize))
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not read request body"})
	}

	result, err := s.ingester.IngestOne(c.Request().Context(), json.RawMessage(payload))
	if err != nil {
		if ingest.IsValidationError(err) {
			return failValidation(c, map[string]string{"payload": err.Error()})
		}
		s.logger.Error().Err(err).Msg("article ingest failed")
		return internalError(c, "Failed to ingest article")
	}

	status := http.StatusCreated
	if !result.Inserted {
		status = http.StatusOK
	}
	return successWithStatus(c, status, result)
}

// handleSubmitVerification accepts a submission, runs the pipeline
// synchronously and returns the completed (or failed) request with its
// results.
func (s *Server) handleSubmitVerification(c echo.Context) error {
	if s.verifier == nil {
		return internalError(c, "Verification is not configured")
	}

	var submission verificationSubmission
	if err := c.Bind(&submission); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}

	requestUUID, err := s.verifier.Submit(c.Request().Context(), submission.Text, submission.URL)
	if err != nil {
		if verify.IsValidationError(err) {
			return failValidation(c, map[string]string{"submission": err.Error()})
		}
		s.logger.Error().Err(err).Msg("verification submit failed")
		return internalError(c, "Failed to accept verification request")
	}

	processErr := s.verifier.Process(c.Request().Context(), requestUUID)
	if processErr != nil && !errors.Is(processErr, verify.ErrNotPending) {
		s.logger.Error().Err(processErr).Str("request_uuid", requestUUID).Msg("verification processing failed")
	}

	request, results, err := s.verifier.Results(c.Request().Context(), requestUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("request_uuid", requestUUID).Msg("load verification results failed")
		return internalError(c, "Failed to load verification results")
	}

	return successWithStatus(c, http.StatusCreated, verificationResponse{
		Request: request,
		Results: results,
	})
}

func (s *Server) handleVerificationDetail(c echo.Context) error {
	if s.verifier == nil {
		return internalError(c, "Verification is not configured")
	}

	requestUUID := strings.TrimSpace(c.Param("request_uuid"))
	if requestUUID == "" {
		return failValidation(c, map[string]string{"request_uuid": "is required"})
	}

	request, results, err := s.verifier.Results(c.Request().Context(), requestUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Verification request not found")
		}
		s.logger.Error().Err(err).Str("request_uuid", requestUUID).Msg("query verification detail failed")
		return internalError(c, "Failed to load verification request")
	}

	return success(c, verificationResponse{
		Request: request,
		Results: results,
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
