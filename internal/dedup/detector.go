package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/fingerprint"
	"horse.fit/firstprint/internal/normalize"
	"horse.fit/firstprint/internal/similarity"
)

// Match classification values persisted on match rows.
const (
	MatchTypeExact     = "exact"
	MatchTypeNearExact = "near_exact"
	MatchTypeSimilar   = "similar"
)

const (
	DefaultThreshold          = 0.8
	DefaultNearExactThreshold = 0.95
	DefaultChunkSize          = 100
	DefaultScanWorkers        = 4
	DefaultMaxMatches         = 10
)

// Match is one scored corpus hit against the probed content.
type Match struct {
	ArticleID int64   `json:"article_id"`
	Score     float64 `json:"score"`
	Type      string  `json:"match_type"`
}

// Options bound a corpus scan.
type Options struct {
	Threshold          float64
	NearExactThreshold float64
	ChunkSize          int
	ScanWorkers        int
	MaxMatches         int
	Algorithm          fingerprint.Algorithm
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.NearExactThreshold <= 0 {
		o.NearExactThreshold = DefaultNearExactThreshold
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ScanWorkers <= 0 {
		o.ScanWorkers = DefaultScanWorkers
	}
	if o.MaxMatches <= 0 {
		o.MaxMatches = DefaultMaxMatches
	}
	if o.Algorithm == "" {
		o.Algorithm = fingerprint.DefaultAlgorithm
	}
	return o
}

// Store is the corpus surface the detector reads and writes. *db.Pool
// satisfies it; tests substitute an in-memory corpus.
type Store interface {
	FindArticleIDsByDigest(ctx context.Context, digest []byte, excludeID int64) ([]int64, error)
	ListProcessedChunk(ctx context.Context, afterID int64, limit int, excludeID int64) ([]db.CorpusArticle, error)
	NextUnprocessedArticleID(ctx context.Context) (int64, error)
	GetArticleForProcessing(ctx context.Context, articleID int64) (*db.CorpusArticle, error)
	UpsertContentHash(ctx context.Context, record db.ContentHashRecord) error
	MarkArticleProcessed(ctx context.Context, articleID int64, isDuplicate bool, digest []byte) error
	AppendSimilarMatch(ctx context.Context, articleID int64, score float64, match json.RawMessage) error
}

// Detector finds exact and similar duplicates of an article against the
// processed corpus.
type Detector struct {
	store  Store
	logger zerolog.Logger
	opts   Options
}

// Outcome is the result of one detection run.
type Outcome struct {
	ArticleID   int64
	Digest      []byte
	IsDuplicate bool
	Matches     []Match
}

func NewDetector(store Store, logger zerolog.Logger, opts Options) *Detector {
	return &Detector{
		store:  store,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// Detect scores an article against every processed article. Exact digest hits
// short-circuit the similarity scan: an identical fingerprint is already the
// strongest possible evidence.
func (d *Detector) Detect(ctx context.Context, articleID int64, content string) (*Outcome, error) {
	if d == nil || d.store == nil {
		return nil, fmt.Errorf("detector is not initialized")
	}

	digest := fingerprint.Hash(content, d.opts.Algorithm)

	exactIDs, err := d.store.FindArticleIDsByDigest(ctx, digest, articleID)
	if err != nil {
		return nil, err
	}
	if len(exactIDs) > 0 {
		matches := make([]Match, 0, len(exactIDs))
		for _, id := range exactIDs {
			matches = append(matches, Match{ArticleID: id, Score: 1.0, Type: MatchTypeExact})
			if len(matches) == d.opts.MaxMatches {
				break
			}
		}
		return &Outcome{
			ArticleID:   articleID,
			Digest:      digest,
			IsDuplicate: true,
			Matches:     matches,
		}, nil
	}

	matches, err := d.ScanSimilar(ctx, content, articleID, similarity.DetectionWeights())
	if err != nil {
		return nil, err
	}
	if len(matches) > d.opts.MaxMatches {
		matches = matches[:d.opts.MaxMatches]
	}

	return &Outcome{
		ArticleID:   articleID,
		Digest:      digest,
		IsDuplicate: len(matches) > 0,
		Matches:     matches,
	}, nil
}

// ScanSimilar walks the processed corpus in ascending-id chunks and scores
// each candidate against the probe text with the given weights. Candidates at
// or above the similarity threshold come back sorted by score descending,
// ties by ascending article id. excludeID is skipped; pass 0 to scan all.
func (d *Detector) ScanSimilar(ctx context.Context, content string, excludeID int64, weights similarity.Weights) ([]Match, error) {
	if d == nil || d.store == nil {
		return nil, fmt.Errorf("detector is not initialized")
	}

	probeWords := strings.Fields(normalize.Text(content))
	if len(probeWords) == 0 {
		return nil, nil
	}

	candidateCh := make(chan db.CorpusArticle, d.opts.ChunkSize)
	scanErrCh := make(chan error, 1)

	go func() {
		defer close(candidateCh)
		afterID := int64(0)
		for {
			chunk, err := d.store.ListProcessedChunk(ctx, afterID, d.opts.ChunkSize, excludeID)
			if err != nil {
				scanErrCh <- err
				return
			}
			for _, candidate := range chunk {
				select {
				case candidateCh <- candidate:
				case <-ctx.Done():
					scanErrCh <- ctx.Err()
					return
				}
			}
			if len(chunk) < d.opts.ChunkSize {
				scanErrCh <- nil
				return
			}
			afterID = chunk[len(chunk)-1].ArticleID
		}
	}()

	var (
		mu      sync.Mutex
		matches []Match
		wg      sync.WaitGroup
	)
	for i := 0; i < d.opts.ScanWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candidate := range candidateCh {
				score := similarity.ScoreWords(probeWords, strings.Fields(normalize.Text(candidate.Content)), weights)
				if score < d.opts.Threshold {
					continue
				}
				match := Match{
					ArticleID: candidate.ArticleID,
					Score:     score,
					Type:      d.classify(score),
				}
				mu.Lock()
				matches = append(matches, match)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	if err := <-scanErrCh; err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ArticleID < matches[j].ArticleID
	})

	return matches, nil
}

// Apply persists a detection outcome: the fingerprint row with its neighbor
// list, then the article's processing flags.
func (d *Detector) Apply(ctx context.Context, outcome *Outcome) error {
	if d == nil || d.store == nil {
		return fmt.Errorf("detector is not initialized")
	}
	if outcome == nil {
		return fmt.Errorf("outcome is nil")
	}

	record := db.ContentHashRecord{
		ArticleID:     outcome.ArticleID,
		HashDigest:    outcome.Digest,
		HashAlgorithm: string(d.opts.Algorithm),
	}
	if len(outcome.Matches) > 0 {
		best := outcome.Matches[0].Score
		record.BestMatchScore = &best

		similarJSON, err := json.Marshal(outcome.Matches)
		if err != nil {
			return fmt.Errorf("marshal similar matches: %w", err)
		}
		record.SimilarMatches = similarJSON
	}

	if err := d.store.UpsertContentHash(ctx, record); err != nil {
		return err
	}
	if err := d.store.MarkArticleProcessed(ctx, outcome.ArticleID, outcome.IsDuplicate, outcome.Digest); err != nil {
		return err
	}

	// Back-link this article onto each neighbor's fingerprint row so the
	// neighbor list stays bidirectional.
	for _, match := range outcome.Matches {
		backlink, err := json.Marshal([]Match{{
			ArticleID: outcome.ArticleID,
			Score:     match.Score,
			Type:      match.Type,
		}})
		if err != nil {
			return fmt.Errorf("marshal neighbor backlink: %w", err)
		}
		if err := d.store.AppendSimilarMatch(ctx, match.ArticleID, match.Score, backlink); err != nil {
			d.logger.Warn().
				Err(err).
				Int64("article_id", outcome.ArticleID).
				Int64("neighbor_id", match.ArticleID).
				Msg("neighbor backlink failed")
		}
	}

	d.logger.Debug().
		Int64("article_id", outcome.ArticleID).
		Bool("is_duplicate", outcome.IsDuplicate).
		Int("matches", len(outcome.Matches)).
		Msg("duplicate detection applied")

	return nil
}

// ProcessBacklog runs detection over unprocessed articles, oldest first, up to
// limit. It is the batch half of the detector; ingest calls Detect inline.
func (d *Detector) ProcessBacklog(ctx context.Context, limit int) (int, error) {
	if d == nil || d.store == nil {
		return 0, fmt.Errorf("detector is not initialized")
	}
	if limit <= 0 {
		return 0, nil
	}

	processed := 0
	for processed < limit {
		articleID, err := d.store.NextUnprocessedArticleID(ctx)
		if err != nil {
			if db.IsNoRows(err) {
				break
			}
			return processed, fmt.Errorf("find unprocessed article: %w", err)
		}

		article, err := d.store.GetArticleForProcessing(ctx, articleID)
		if err != nil {
			return processed, err
		}

		outcome, err := d.Detect(ctx, article.ArticleID, article.Content)
		if err != nil {
			return processed, err
		}
		if err := d.Apply(ctx, outcome); err != nil {
			return processed, err
		}
		processed++
	}

	return processed, nil
}

// Classify maps a composite score to its match type using the detector's
// thresholds. Scores below the similarity threshold have no match type.
// A perfect composite score still classifies as near_exact: exact is
// reserved for digest equality, which only Detect can establish.
func (d *Detector) classify(score float64) string {
	if score >= d.opts.NearExactThreshold {
		return MatchTypeNearExact
	}
	return MatchTypeSimilar
}

// ClassifyScore is the package-level classification used by callers that scan
// with their own weights.
func ClassifyScore(score, nearExactThreshold float64, exactDigest bool) string {
	switch {
	case exactDigest:
		return MatchTypeExact
	case score >= nearExactThreshold:
		return MatchTypeNearExact
	default:
		return MatchTypeSimilar
	}
}
