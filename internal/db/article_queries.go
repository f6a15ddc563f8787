package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// NewArticle carries the fields needed to store an ingested article.
type NewArticle struct {
	SourceID     int64
	CanonicalURL string
	Title        string
	Content      string
	Excerpt      *string
	Author       *string
	PublishedAt  *time.Time
	Language     string
	Metadata     json.RawMessage
	ContentHash  []byte
}

// CorpusArticle is the slim projection scanned during similarity detection.
type CorpusArticle struct {
	ArticleID   int64
	Content     string
	PublishedAt *time.Time
}

// ArticleListItem is used by the articles CLI command and list endpoint.
type ArticleListItem struct {
	ArticleID    int64      `json:"article_id"`
	ArticleUUID  string     `json:"article_uuid"`
	Title        string     `json:"title"`
	CanonicalURL string     `json:"canonical_url"`
	SourceName   string     `json:"source_name"`
	SourceDomain string     `json:"source_domain"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Language     string     `json:"language"`
	IsProcessed  bool       `json:"is_processed"`
	IsDuplicate  bool       `json:"is_duplicate"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ArticleDetail is the single-article read model.
type ArticleDetail struct {
	ArticleListItem
	Content        string          `json:"content"`
	Excerpt        *string         `json:"excerpt,omitempty"`
	Author         *string         `json:"author,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	BestMatchScore *float64        `json:"best_match_score,omitempty"`
	SimilarMatches json.RawMessage `json:"similar_matches,omitempty"`
}

// ArticleListOptions controls article listing queries.
type ArticleListOptions struct {
	OnlyDuplicates bool
	Limit          int
}

// UpsertSourceByDomain creates or refreshes a source and returns its id.
func (p *Pool) UpsertSourceByDomain(ctx context.Context, name, domain string) (int64, error) {
	const q = `
INSERT INTO verify.sources (name, domain, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (domain) DO UPDATE
SET name = EXCLUDED.name,
    updated_at = now()
RETURNING source_id
`

	var sourceID int64
	if err := p.QueryRow(ctx, q, name, domain).Scan(&sourceID); err != nil {
		return 0, fmt.Errorf("upsert source %q: %w", domain, err)
	}
	return sourceID, nil
}

// InsertArticle stores an article, ignoring canonical URL collisions. The
// boolean return reports whether a new row was created.
func (p *Pool) InsertArticle(ctx context.Context, article NewArticle) (int64, string, bool, error) {
	const insertQ = `
INSERT INTO verify.articles (
	source_id, canonical_url, title, content, excerpt, author,
	published_at, language, metadata, content_hash,
	is_processed, is_duplicate, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, FALSE, now(), now())
ON CONFLICT (canonical_url) DO NOTHING
RETURNING article_id, article_uuid::text
`

	var (
		articleID   int64
		articleUUID string
	)
	err := p.QueryRow(ctx, insertQ,
		article.SourceID,
		article.CanonicalURL,
		article.Title,
		article.Content,
		article.Excerpt,
		article.Author,
		article.PublishedAt,
		article.Language,
		nullableJSON(article.Metadata),
		article.ContentHash,
	).Scan(&articleID, &articleUUID)
	if err == nil {
		return articleID, articleUUID, true, nil
	}
	if !IsNoRows(err) {
		return 0, "", false, fmt.Errorf("insert article: %w", err)
	}

	const existingQ = `SELECT a.article_id, a.article_uuid::text FROM verify.articles a WHERE a.canonical_url = $1`
	if err := p.QueryRow(ctx, existingQ, article.CanonicalURL).Scan(&articleID, &articleUUID); err != nil {
		return 0, "", false, fmt.Errorf("find existing article by url: %w", err)
	}
	return articleID, articleUUID, false, nil
}

// FindArticleIDsByDigest returns processed articles carrying the exact digest,
// ascending by id. The excludeID article is left out of the result.
func (p *Pool) FindArticleIDsByDigest(ctx context.Context, digest []byte, excludeID int64) ([]int64, error) {
	const q = `
SELECT a.article_id
FROM verify.articles a
WHERE a.content_hash = $1
  AND a.is_processed
  AND a.article_id <> $2
ORDER BY a.article_id ASC
`

	rows, err := p.Query(ctx, q, digest, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query articles by digest: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 4)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan article id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digest rows: %w", err)
	}

	return ids, nil
}

// ListProcessedChunk pages through the processed corpus in ascending id order
// using keyset pagination.
func (p *Pool) ListProcessedChunk(ctx context.Context, afterID int64, limit int, excludeID int64) ([]CorpusArticle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT a.article_id, a.content, a.published_at
FROM verify.articles a
WHERE a.is_processed
  AND a.article_id > $1
  AND a.article_id <> $2
ORDER BY a.article_id ASC
LIMIT $3
`

	rows, err := p.Query(ctx, q, afterID, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query corpus chunk: %w", err)
	}
	defer rows.Close()

	items := make([]CorpusArticle, 0, limit)
	for rows.Next() {
		var row CorpusArticle
		if err := rows.Scan(&row.ArticleID, &row.Content, &row.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan corpus row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus rows: %w", err)
	}

	return items, nil
}

// NextUnprocessedArticleID returns the lowest unprocessed article id, or
// ErrNoRows when the backlog is empty.
func (p *Pool) NextUnprocessedArticleID(ctx context.Context) (int64, error) {
	const q = `
SELECT a.article_id
FROM verify.articles a
WHERE NOT a.is_processed
ORDER BY a.article_id ASC
LIMIT 1
`

	var id int64
	if err := p.QueryRow(ctx, q).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetArticleForProcessing loads the content fields the detector needs.
func (p *Pool) GetArticleForProcessing(ctx context.Context, articleID int64) (*CorpusArticle, error) {
	const q = `
SELECT a.article_id, a.content, a.published_at
FROM verify.articles a
WHERE a.article_id = $1
`

	var row CorpusArticle
	if err := p.QueryRow(ctx, q, articleID).Scan(&row.ArticleID, &row.Content, &row.PublishedAt); err != nil {
		return nil, fmt.Errorf("get article %d for processing: %w", articleID, err)
	}
	return &row, nil
}

// CandidateArticle carries the fields needed to enrich a verification match.
type CandidateArticle struct {
	ArticleID    int64
	Content      string
	CanonicalURL string
	SourceDomain string
	PublishedAt  *time.Time
}

// GetCandidateArticle loads one matched article with its source domain.
func (p *Pool) GetCandidateArticle(ctx context.Context, articleID int64) (*CandidateArticle, error) {
	const q = `
SELECT a.article_id, a.content, a.canonical_url, s.domain, a.published_at
FROM verify.articles a
JOIN verify.sources s
	ON s.source_id = a.source_id
WHERE a.article_id = $1
`

	var row CandidateArticle
	if err := p.QueryRow(ctx, q, articleID).Scan(
		&row.ArticleID,
		&row.Content,
		&row.CanonicalURL,
		&row.SourceDomain,
		&row.PublishedAt,
	); err != nil {
		return nil, fmt.Errorf("get candidate article %d: %w", articleID, err)
	}
	return &row, nil
}

// MarkArticleProcessed flips the processing flags after duplicate detection.
func (p *Pool) MarkArticleProcessed(ctx context.Context, articleID int64, isDuplicate bool, digest []byte) error {
	const q = `
UPDATE verify.articles
SET is_processed = TRUE,
    is_duplicate = $2,
    content_hash = $3,
    updated_at = now()
WHERE article_id = $1
`

	tag, err := p.Exec(ctx, q, articleID, isDuplicate, digest)
	if err != nil {
		return fmt.Errorf("mark article %d processed: %w", articleID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark article %d processed: %w", articleID, ErrNoRows)
	}
	return nil
}

// GetArticleByUUID returns the full article read model.
func (p *Pool) GetArticleByUUID(ctx context.Context, articleUUID string) (*ArticleDetail, error) {
	const q = `
SELECT
	a.article_id,
	a.article_uuid::text,
	a.title,
	a.canonical_url,
	s.name,
	s.domain,
	a.published_at,
	a.language,
	a.is_processed,
	a.is_duplicate,
	a.created_at,
	a.content,
	a.excerpt,
	a.author,
	a.metadata,
	ch.best_match_score,
	ch.similar_matches
FROM verify.articles a
JOIN verify.sources s
	ON s.source_id = a.source_id
LEFT JOIN verify.content_hashes ch
	ON ch.article_id = a.article_id
WHERE a.article_uuid = $1::uuid
`

	var row ArticleDetail
	if err := p.QueryRow(ctx, q, articleUUID).Scan(
		&row.ArticleID,
		&row.ArticleUUID,
		&row.Title,
		&row.CanonicalURL,
		&row.SourceName,
		&row.SourceDomain,
		&row.PublishedAt,
		&row.Language,
		&row.IsProcessed,
		&row.IsDuplicate,
		&row.CreatedAt,
		&row.Content,
		&row.Excerpt,
		&row.Author,
		&row.Metadata,
		&row.BestMatchScore,
		&row.SimilarMatches,
	); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListArticles returns recent articles, newest first.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleListOptions) ([]ArticleListItem, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.article_id,
	a.article_uuid::text,
	a.title,
	a.canonical_url,
	s.name,
	s.domain,
	a.published_at,
	a.language,
	a.is_processed,
	a.is_duplicate,
	a.created_at
FROM verify.articles a
JOIN verify.sources s
	ON s.source_id = a.source_id
WHERE ($1 = FALSE OR a.is_duplicate)
ORDER BY a.created_at DESC, a.article_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, opts.OnlyDuplicates, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, opts.Limit)
	for rows.Next() {
		var row ArticleListItem
		if err := rows.Scan(
			&row.ArticleID,
			&row.ArticleUUID,
			&row.Title,
			&row.CanonicalURL,
			&row.SourceName,
			&row.SourceDomain,
			&row.PublishedAt,
			&row.Language,
			&row.IsProcessed,
			&row.IsDuplicate,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}

	return items, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
