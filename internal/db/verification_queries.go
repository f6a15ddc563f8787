package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// NewVerificationResult carries one match row for a verification request.
type NewVerificationResult struct {
	RequestID           int64
	ArticleID           int64
	SimilarityScore     float64
	CredibilityScore    float64
	EarliestPublication *time.Time
	MatchType           string
	MatchDetails        json.RawMessage
}

// VerificationRequestDetail is the request read model returned by the API.
type VerificationRequestDetail struct {
	VerificationRequestID   int64      `json:"-"`
	VerificationRequestUUID string     `json:"verification_request_uuid"`
	InputText               *string    `json:"input_text,omitempty"`
	InputURL                *string    `json:"input_url,omitempty"`
	Status                  string     `json:"status"`
	ConfidenceScore         *float64   `json:"confidence_score,omitempty"`
	ErrorMessage            *string    `json:"error_message,omitempty"`
	ProcessedAt             *time.Time `json:"processed_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// VerificationResultDetail joins a result row with its matched article.
type VerificationResultDetail struct {
	VerificationResultUUID string          `json:"verification_result_uuid"`
	ArticleUUID            string          `json:"article_uuid"`
	ArticleTitle           string          `json:"article_title"`
	CanonicalURL           string          `json:"canonical_url"`
	SourceName             string          `json:"source_name"`
	SourceDomain           string          `json:"source_domain"`
	SimilarityScore        float64         `json:"similarity_score"`
	CredibilityScore       float64         `json:"credibility_score"`
	EarliestPublication    *time.Time      `json:"earliest_publication,omitempty"`
	MatchType              string          `json:"match_type"`
	MatchDetails           json.RawMessage `json:"match_details,omitempty"`
	IsEarliestSource       bool            `json:"is_earliest_source"`
}

// InsertVerificationRequest stores a pending request and returns its ids.
func (p *Pool) InsertVerificationRequest(ctx context.Context, inputText, inputURL *string) (int64, string, error) {
	const q = `
INSERT INTO verify.verification_requests (input_text, input_url, status, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING verification_request_id, verification_request_uuid::text
`

	var (
		requestID   int64
		requestUUID string
	)
	if err := p.QueryRow(ctx, q, inputText, inputURL, StatusPending).Scan(&requestID, &requestUUID); err != nil {
		return 0, "", fmt.Errorf("insert verification request: %w", err)
	}
	return requestID, requestUUID, nil
}

// ClaimVerificationRequest transitions pending -> processing. The status
// predicate makes the claim a single-writer gate: a request already picked up
// elsewhere is not claimed again.
func (p *Pool) ClaimVerificationRequest(ctx context.Context, requestID int64) (bool, error) {
	const q = `
UPDATE verify.verification_requests
SET status = $2,
    updated_at = now()
WHERE verification_request_id = $1
  AND status = $3
`

	tag, err := p.Exec(ctx, q, requestID, StatusProcessing, StatusPending)
	if err != nil {
		return false, fmt.Errorf("claim verification request %d: %w", requestID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// completeVerificationRequest finalizes a processing request with its score.
func completeVerificationRequest(ctx context.Context, q Querier, requestID int64, confidence float64, processedAt time.Time) error {
	const query = `
UPDATE verify.verification_requests
SET status = $4,
    confidence_score = $2,
    error_message = NULL,
    processed_at = $3,
    updated_at = now()
WHERE verification_request_id = $1
  AND status = $5
`

	tag, err := q.Exec(ctx, query, requestID, confidence, processedAt.UTC(), StatusCompleted, StatusProcessing)
	if err != nil {
		return fmt.Errorf("complete verification request %d: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete verification request %d: %w", requestID, ErrNoRows)
	}
	return nil
}

// FailVerificationRequest records a terminal failure with its reason.
func (p *Pool) FailVerificationRequest(ctx context.Context, requestID int64, reason string, processedAt time.Time) error {
	const q = `
UPDATE verify.verification_requests
SET status = $4,
    error_message = $2,
    processed_at = $3,
    updated_at = now()
WHERE verification_request_id = $1
  AND status = $5
`

	tag, err := p.Exec(ctx, q, requestID, reason, processedAt.UTC(), StatusFailed, StatusProcessing)
	if err != nil {
		return fmt.Errorf("fail verification request %d: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail verification request %d: %w", requestID, ErrNoRows)
	}
	return nil
}

// FinalizeVerification writes a completed request's result rows, flags the
// caller-selected earliest source and stamps the terminal status in one
// transaction, so readers never observe a completed request with a partial
// result set.
func (p *Pool) FinalizeVerification(
	ctx context.Context,
	requestID int64,
	results []NewVerificationResult,
	earliestArticleID *int64,
	confidence float64,
	processedAt time.Time,
) error {
	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin verification finalize: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, result := range results {
		if err := insertVerificationResult(ctx, tx, result); err != nil {
			return err
		}
	}
	if earliestArticleID != nil {
		if err := markEarliestSource(ctx, tx, requestID, *earliestArticleID); err != nil {
			return err
		}
	}
	if err := completeVerificationRequest(ctx, tx, requestID, confidence, processedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit verification finalize: %w", err)
	}
	committed = true
	return nil
}

func insertVerificationResult(ctx context.Context, q Querier, result NewVerificationResult) error {
	const query = `
INSERT INTO verify.verification_results (
	request_id, article_id, similarity_score, credibility_score,
	earliest_publication, match_type, match_details, is_earliest_source, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, now())
`

	if _, err := q.Exec(ctx, query,
		result.RequestID,
		result.ArticleID,
		result.SimilarityScore,
		result.CredibilityScore,
		result.EarliestPublication,
		result.MatchType,
		nullableJSON(result.MatchDetails),
	); err != nil {
		return fmt.Errorf("insert verification result for request %d: %w", result.RequestID, err)
	}
	return nil
}

func markEarliestSource(ctx context.Context, q Querier, requestID, articleID int64) error {
	const query = `
UPDATE verify.verification_results
SET is_earliest_source = TRUE
WHERE request_id = $1
  AND article_id = $2
`

	tag, err := q.Exec(ctx, query, requestID, articleID)
	if err != nil {
		return fmt.Errorf("mark earliest source for request %d: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark earliest source for request %d: %w", requestID, ErrNoRows)
	}
	return nil
}

// GetVerificationRequestByUUID returns the request read model, or ErrNoRows.
func (p *Pool) GetVerificationRequestByUUID(ctx context.Context, requestUUID string) (*VerificationRequestDetail, error) {
	const q = `
SELECT
	vr.verification_request_id,
	vr.verification_request_uuid::text,
	vr.input_text,
	vr.input_url,
	vr.status,
	vr.confidence_score,
	vr.error_message,
	vr.processed_at,
	vr.created_at
FROM verify.verification_requests vr
WHERE vr.verification_request_uuid = $1::uuid
`

	var row VerificationRequestDetail
	if err := p.QueryRow(ctx, q, requestUUID).Scan(
		&row.VerificationRequestID,
		&row.VerificationRequestUUID,
		&row.InputText,
		&row.InputURL,
		&row.Status,
		&row.ConfidenceScore,
		&row.ErrorMessage,
		&row.ProcessedAt,
		&row.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListResultsForRequest returns a request's match rows, best match first.
func (p *Pool) ListResultsForRequest(ctx context.Context, requestID int64) ([]VerificationResultDetail, error) {
	const q = `
SELECT
	res.verification_result_uuid::text,
	a.article_uuid::text,
	a.title,
	a.canonical_url,
	s.name,
	s.domain,
	res.similarity_score,
	res.credibility_score,
	res.earliest_publication,
	res.match_type,
	res.match_details,
	res.is_earliest_source
FROM verify.verification_results res
JOIN verify.articles a
	ON a.article_id = res.article_id
JOIN verify.sources s
	ON s.source_id = a.source_id
WHERE res.request_id = $1
ORDER BY res.similarity_score DESC, res.article_id ASC
`

	rows, err := p.Query(ctx, q, requestID)
	if err != nil {
		return nil, fmt.Errorf("query verification results: %w", err)
	}
	defer rows.Close()

	items := make([]VerificationResultDetail, 0, 10)
	for rows.Next() {
		var row VerificationResultDetail
		if err := rows.Scan(
			&row.VerificationResultUUID,
			&row.ArticleUUID,
			&row.ArticleTitle,
			&row.CanonicalURL,
			&row.SourceName,
			&row.SourceDomain,
			&row.SimilarityScore,
			&row.CredibilityScore,
			&row.EarliestPublication,
			&row.MatchType,
			&row.MatchDetails,
			&row.IsEarliestSource,
		); err != nil {
			return nil, fmt.Errorf("scan verification result row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification result rows: %w", err)
	}

	return items, nil
}
