package credibility

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Level is the categorical credibility bucket assigned to a source. It drives
// the weight a source's matches receive during confidence aggregation.
type Level string

const (
	LevelVeryHigh Level = "very_high"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
	LevelVeryLow  Level = "very_low"
)

// ParseLevel maps a raw level string onto the closed Level set. Unknown or
// blank values fall back to medium.
func ParseLevel(raw string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelVeryHigh:
		return LevelVeryHigh
	case LevelHigh:
		return LevelHigh
	case LevelLow:
		return LevelLow
	case LevelVeryLow:
		return LevelVeryLow
	default:
		return LevelMedium
	}
}

// SourceAssessment is the source-level credibility response. All fields are
// required on the wire; a response missing any of them is a ScoringError.
type SourceAssessment struct {
	OverallScore     float64  `json:"overall_score"`
	CredibilityLevel Level    `json:"credibility_level"`
	TrustIndicators  []string `json:"trust_indicators"`
}

// ArticleAssessment is the optional article-level credibility response.
type ArticleAssessment struct {
	OverallScore      float64  `json:"overall_score"`
	QualityIndicators []string `json:"quality_indicators"`
}

// ScoringError marks a recoverable credibility-scoring failure. Callers
// degrade to the source-level score instead of failing the verification.
type ScoringError struct {
	Subject string
	Reason  string
	Err     error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credibility scoring for %s: %s: %v", e.Subject, e.Reason, e.Err)
	}
	return fmt.Sprintf("credibility scoring for %s: %s", e.Subject, e.Reason)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Client is the external credibility collaborator consumed by the
// verification pipeline.
type Client interface {
	Source(ctx context.Context, domain string) (SourceAssessment, error)
	Article(ctx context.Context, articleURL, content string) (ArticleAssessment, error)
}

// HTTPClient talks to a credibility scoring service over HTTP with a bounded
// per-call timeout.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

const defaultScoringTimeout = 8 * time.Second

func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("credibility base URL is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid credibility base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultScoringTimeout
	}
	return &HTTPClient{
		baseURL: trimmed,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Source(ctx context.Context, domain string) (SourceAssessment, error) {
	trimmed := strings.ToLower(strings.TrimSpace(domain))
	if trimmed == "" {
		return SourceAssessment{}, &ScoringError{Subject: "source", Reason: "domain is empty"}
	}

	endpoint := c.baseURL + "/v1/sources/" + url.PathEscape(trimmed)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return SourceAssessment{}, &ScoringError{Subject: "source " + trimmed, Reason: "request failed", Err: err}
	}

	var payload struct {
		OverallScore     *float64 `json:"overall_score"`
		CredibilityLevel *string  `json:"credibility_level"`
		TrustIndicators  []string `json:"trust_indicators"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return SourceAssessment{}, &ScoringError{Subject: "source " + trimmed, Reason: "malformed response", Err: err}
	}
	if payload.OverallScore == nil {
		return SourceAssessment{}, &ScoringError{Subject: "source " + trimmed, Reason: "response is missing overall_score"}
	}
	if payload.CredibilityLevel == nil {
		return SourceAssessment{}, &ScoringError{Subject: "source " + trimmed, Reason: "response is missing credibility_level"}
	}
	if payload.TrustIndicators == nil {
		return SourceAssessment{}, &ScoringError{Subject: "source " + trimmed, Reason: "response is missing trust_indicators"}
	}

	return SourceAssessment{
		OverallScore:     clampScore(*payload.OverallScore),
		CredibilityLevel: ParseLevel(*payload.CredibilityLevel),
		TrustIndicators:  payload.TrustIndicators,
	}, nil
}

func (c *HTTPClient) Article(ctx context.Context, articleURL, content string) (ArticleAssessment, error) {
	requestBody, err := json.Marshal(map[string]string{
		"url":     strings.TrimSpace(articleURL),
		"content": content,
	})
	if err != nil {
		return ArticleAssessment{}, &ScoringError{Subject: "article", Reason: "encode request", Err: err}
	}

	endpoint := c.baseURL + "/v1/articles/score"
	body, err := c.post(ctx, endpoint, requestBody)
	if err != nil {
		return ArticleAssessment{}, &ScoringError{Subject: "article " + articleURL, Reason: "request failed", Err: err}
	}

	var payload struct {
		OverallScore      *float64 `json:"overall_score"`
		QualityIndicators []string `json:"quality_indicators"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ArticleAssessment{}, &ScoringError{Subject: "article " + articleURL, Reason: "malformed response", Err: err}
	}
	if payload.OverallScore == nil {
		return ArticleAssessment{}, &ScoringError{Subject: "article " + articleURL, Reason: "response is missing overall_score"}
	}

	return ArticleAssessment{
		OverallScore:      clampScore(*payload.OverallScore),
		QualityIndicators: payload.QualityIndicators,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// StaticClient returns fixed assessments. It backs deployments without a
// scoring service and keeps tests hermetic.
type StaticClient struct {
	SourceResult  SourceAssessment
	ArticleResult ArticleAssessment
	ArticleErr    error
}

// DefaultStatic is the neutral assessment used when no scoring service is
// configured: medium tier, midpoint score.
func DefaultStatic() *StaticClient {
	return &StaticClient{
		SourceResult: SourceAssessment{
			OverallScore:     50,
			CredibilityLevel: LevelMedium,
			TrustIndicators:  []string{"unscored"},
		},
		ArticleResult: ArticleAssessment{OverallScore: 50},
	}
}

func (s *StaticClient) Source(context.Context, string) (SourceAssessment, error) {
	return s.SourceResult, nil
}

func (s *StaticClient) Article(context.Context, string, string) (ArticleAssessment, error) {
	if s.ArticleErr != nil {
		return ArticleAssessment{}, s.ArticleErr
	}
	return s.ArticleResult, nil
}
