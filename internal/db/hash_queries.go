package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// ContentHashRecord carries the fingerprint row written after detection.
type ContentHashRecord struct {
	ArticleID      int64
	HashDigest     []byte
	HashAlgorithm  string
	BestMatchScore *float64
	SimilarMatches json.RawMessage
}

// UpsertContentHash writes or refreshes the one fingerprint row per article.
func (p *Pool) UpsertContentHash(ctx context.Context, record ContentHashRecord) error {
	if record.ArticleID <= 0 {
		return fmt.Errorf("article id is required")
	}
	if len(record.HashDigest) == 0 {
		return fmt.Errorf("hash digest is required")
	}

	const q = `
INSERT INTO verify.content_hashes (
	article_id, hash_digest, hash_algorithm,
	best_match_score, similar_matches, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, now(), now())
ON CONFLICT (article_id) DO UPDATE
SET hash_digest = EXCLUDED.hash_digest,
    hash_algorithm = EXCLUDED.hash_algorithm,
    best_match_score = EXCLUDED.best_match_score,
    similar_matches = EXCLUDED.similar_matches,
    updated_at = now()
`

	if _, err := p.Exec(ctx, q,
		record.ArticleID,
		record.HashDigest,
		record.HashAlgorithm,
		record.BestMatchScore,
		nullableJSON(record.SimilarMatches),
	); err != nil {
		return fmt.Errorf("upsert content hash for article %d: %w", record.ArticleID, err)
	}
	return nil
}

// AppendSimilarMatch links a newly detected neighbor onto an existing
// fingerprint row. Missing rows are skipped silently: the neighbor gets its
// link when it is (re)processed. Last writer wins on best_match_score.
func (p *Pool) AppendSimilarMatch(ctx context.Context, articleID int64, score float64, match json.RawMessage) error {
	if len(match) == 0 {
		return fmt.Errorf("match payload is required")
	}

	const q = `
UPDATE verify.content_hashes
SET similar_matches = COALESCE(similar_matches, '[]'::jsonb) || $2::jsonb,
    best_match_score = GREATEST(COALESCE(best_match_score, 0), $3),
    updated_at = now()
WHERE article_id = $1
`

	if _, err := p.Exec(ctx, q, articleID, []byte(match), score); err != nil {
		return fmt.Errorf("append similar match to article %d: %w", articleID, err)
	}
	return nil
}
