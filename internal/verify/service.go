package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/confidence"
	"horse.fit/firstprint/internal/credibility"
	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/dedup"
	"horse.fit/firstprint/internal/fingerprint"
	"horse.fit/firstprint/internal/globaltime"
	"horse.fit/firstprint/internal/similarity"
)

// ErrNotPending is returned when a request cannot be claimed because it has
// already left the pending state.
var ErrNotPending = errors.New("verification request is not pending")

// ValidationError rejects a submission before a request is accepted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid verification submission: " + e.Reason
}

// IsValidationError reports whether err is a submission validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateSubmission enforces the submission contract: exactly one of raw
// text or source URL must be supplied.
func ValidateSubmission(text, url *string) error {
	hasText := text != nil && strings.TrimSpace(*text) != ""
	hasURL := url != nil && strings.TrimSpace(*url) != ""

	switch {
	case !hasText && !hasURL:
		return &ValidationError{Reason: "either text or url is required"}
	case hasText && hasURL:
		return &ValidationError{Reason: "text and url are mutually exclusive"}
	default:
		return nil
	}
}

// Options bound the verification candidate search.
type Options struct {
	Threshold  float64
	MaxResults int
	Algorithm  fingerprint.Algorithm
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = 0.8
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 10
	}
	if o.Algorithm == "" {
		o.Algorithm = fingerprint.DefaultAlgorithm
	}
	return o
}

// Fetcher resolves a submitted URL to readable text.
type Fetcher interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// Service drives a verification request through its state machine:
// pending -> processing -> completed | failed.
type Service struct {
	pool     *db.Pool
	logger   zerolog.Logger
	detector *dedup.Detector
	cred     credibility.Client
	fetcher  Fetcher
	opts     Options
}

func NewService(
	pool *db.Pool,
	logger zerolog.Logger,
	detector *dedup.Detector,
	cred credibility.Client,
	fetcher Fetcher,
	opts Options,
) *Service {
	if cred == nil {
		cred = credibility.DefaultStatic()
	}
	return &Service{
		pool:     pool,
		logger:   logger,
		detector: detector,
		cred:     cred,
		fetcher:  fetcher,
		opts:     opts.withDefaults(),
	}
}

// Submit validates and stores a new pending request.
func (s *Service) Submit(ctx context.Context, text, url *string) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("verification service is not initialized")
	}
	if err := ValidateSubmission(text, url); err != nil {
		return "", err
	}

	_, requestUUID, err := s.pool.InsertVerificationRequest(ctx, emptyToNil(text), emptyToNil(url))
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("request_uuid", requestUUID).Msg("verification request accepted")
	return requestUUID, nil
}

// Process runs the pipeline for one pending request. The status-gated claim
// makes this safe to call from concurrent submitters: only one caller wins
// the pending -> processing transition. Unexpected failures flip the request
// to failed (keeping any result rows already written) and are returned.
func (s *Service) Process(ctx context.Context, requestUUID string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("verification service is not initialized")
	}

	request, err := s.pool.GetVerificationRequestByUUID(ctx, requestUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return fmt.Errorf("verification request %s: %w", requestUUID, db.ErrNoRows)
		}
		return fmt.Errorf("load verification request %s: %w", requestUUID, err)
	}

	claimed, err := s.pool.ClaimVerificationRequest(ctx, request.VerificationRequestID)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("%w (status=%s)", ErrNotPending, request.Status)
	}

	if err := s.run(ctx, request); err != nil {
		s.logger.Error().
			Err(err).
			Str("request_uuid", requestUUID).
			Msg("verification pipeline failed")

		if failErr := s.pool.FailVerificationRequest(ctx, request.VerificationRequestID, err.Error(), globaltime.UTC()); failErr != nil {
			s.logger.Error().
				Err(failErr).
				Str("request_uuid", requestUUID).
				Msg("could not record verification failure")
		}
		return err
	}

	return nil
}

func (s *Service) run(ctx context.Context, request *db.VerificationRequestDetail) error {
	content := s.resolveContent(ctx, request)

	candidates, err := s.findCandidates(ctx, content)
	if err != nil {
		return err
	}

	results := make([]db.NewVerificationResult, 0, len(candidates))
	inputs := make([]confidence.Input, 0, len(candidates))
	for _, candidate := range candidates {
		result, input, err := s.enrich(ctx, request.VerificationRequestID, content, candidate)
		if err != nil {
			return err
		}
		results = append(results, result)
		inputs = append(inputs, input)
	}

	var earliestID *int64
	if id, ok := earliestSource(results); ok {
		earliestID = &id
	}

	score := confidence.Aggregate(inputs)
	if err := s.pool.FinalizeVerification(ctx, request.VerificationRequestID, results, earliestID, score, globaltime.UTC()); err != nil {
		return err
	}

	s.logger.Info().
		Str("request_uuid", request.VerificationRequestUUID).
		Int("matches", len(candidates)).
		Float64("confidence", score).
		Msg("verification completed")

	return nil
}

// resolveContent returns the submitted text, or the text behind the submitted
// URL. Fetch failures degrade to empty content so the request completes with
// zero candidates instead of failing.
func (s *Service) resolveContent(ctx context.Context, request *db.VerificationRequestDetail) string {
	if request.InputText != nil && strings.TrimSpace(*request.InputText) != "" {
		return *request.InputText
	}
	if request.InputURL == nil || strings.TrimSpace(*request.InputURL) == "" {
		return ""
	}
	if s.fetcher == nil {
		s.logger.Warn().
			Str("request_uuid", request.VerificationRequestUUID).
			Msg("no fetcher configured; verifying url submission with empty content")
		return ""
	}

	text, err := s.fetcher.FetchText(ctx, *request.InputURL)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("request_uuid", request.VerificationRequestUUID).
			Str("url", *request.InputURL).
			Msg("url fetch failed; verifying with empty content")
		return ""
	}
	return text
}

type candidateMatch struct {
	ArticleID int64
	Score     float64
	Type      string
}

// findCandidates unions the exact-hash lookup with the similarity scan, caps
// the list at MaxResults and keeps it sorted best-first.
func (s *Service) findCandidates(ctx context.Context, content string) ([]candidateMatch, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	digest := fingerprint.Hash(content, s.opts.Algorithm)
	exactIDs, err := s.pool.FindArticleIDsByDigest(ctx, digest, 0)
	if err != nil {
		return nil, err
	}

	matches := make([]candidateMatch, 0, s.opts.MaxResults)
	seen := make(map[int64]struct{}, s.opts.MaxResults)
	for _, id := range exactIDs {
		matches = append(matches, candidateMatch{ArticleID: id, Score: 1.0, Type: dedup.MatchTypeExact})
		seen[id] = struct{}{}
	}

	similar, err := s.detector.ScanSimilar(ctx, content, 0, similarity.VerificationWeights())
	if err != nil {
		return nil, err
	}
	for _, match := range similar {
		if _, ok := seen[match.ArticleID]; ok {
			continue
		}
		if match.Score < s.opts.Threshold {
			continue
		}
		matches = append(matches, candidateMatch{
			ArticleID: match.ArticleID,
			Score:     match.Score,
			Type:      dedup.MatchTypeSimilar,
		})
	}

	if len(matches) > s.opts.MaxResults {
		matches = matches[:s.opts.MaxResults]
	}
	return matches, nil
}

// enrich attaches credibility evidence to one candidate and builds its result
// row. Article-level scoring failures degrade to the source-level score; they
// never abort the verification. Rows are persisted together at finalize time.
func (s *Service) enrich(
	ctx context.Context,
	requestID int64,
	content string,
	match candidateMatch,
) (db.NewVerificationResult, confidence.Input, error) {
	article, err := s.pool.GetCandidateArticle(ctx, match.ArticleID)
	if err != nil {
		return db.NewVerificationResult{}, confidence.Input{}, err
	}

	source, err := s.cred.Source(ctx, article.SourceDomain)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("domain", article.SourceDomain).
			Msg("source credibility unavailable; using neutral assessment")
		source = credibility.DefaultStatic().SourceResult
	}

	credScore := source.OverallScore
	details := map[string]any{
		"source_credibility": source,
		"word_overlap":       similarity.CommonWordCount(content, article.Content),
	}

	if strings.TrimSpace(content) != "" {
		articleAssessment, err := s.cred.Article(ctx, article.CanonicalURL, article.Content)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Int64("article_id", article.ArticleID).
				Msg("article credibility scoring failed; keeping source-level score")
		} else {
			credScore = articleAssessment.OverallScore
			details["article_credibility"] = articleAssessment
		}
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return db.NewVerificationResult{}, confidence.Input{}, fmt.Errorf("marshal match details: %w", err)
	}

	result := db.NewVerificationResult{
		RequestID:           requestID,
		ArticleID:           article.ArticleID,
		SimilarityScore:     match.Score,
		CredibilityScore:    credScore,
		EarliestPublication: article.PublishedAt,
		MatchType:           match.Type,
		MatchDetails:        detailsJSON,
	}
	input := confidence.Input{
		Similarity:  match.Score,
		Credibility: credScore,
		Tier:        source.CredibilityLevel,
		Exact:       match.Type == dedup.MatchTypeExact,
	}
	return result, input, nil
}

// earliestSource picks the article to flag as the earliest known publisher:
// minimum non-null earliest publication, ties broken by lowest article id.
// Rows without a publication timestamp never qualify.
func earliestSource(results []db.NewVerificationResult) (int64, bool) {
	var (
		bestID   int64
		bestTime *time.Time
	)
	for _, result := range results {
		if result.EarliestPublication == nil {
			continue
		}
		switch {
		case bestTime == nil,
			result.EarliestPublication.Before(*bestTime),
			result.EarliestPublication.Equal(*bestTime) && result.ArticleID < bestID:
			bestID = result.ArticleID
			bestTime = result.EarliestPublication
		}
	}
	return bestID, bestTime != nil
}

// Results returns the request read model and its match rows.
func (s *Service) Results(ctx context.Context, requestUUID string) (*db.VerificationRequestDetail, []db.VerificationResultDetail, error) {
	request, err := s.pool.GetVerificationRequestByUUID(ctx, requestUUID)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.pool.ListResultsForRequest(ctx, request.VerificationRequestID)
	if err != nil {
		return nil, nil, err
	}
	return request, results, nil
}

func emptyToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
