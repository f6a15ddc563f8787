package db

import (
	"context"
	"fmt"
	"time"
)

// StatsCorpus stores corpus-level counters.
type StatsCorpus struct {
	Sources    int64 `json:"sources"`
	Articles   int64 `json:"articles"`
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Pending    int64 `json:"pending"`
}

// StatsVerifications stores request counters by terminal status.
type StatsVerifications struct {
	Total         int64    `json:"total"`
	Pending       int64    `json:"pending"`
	Processing    int64    `json:"processing"`
	Completed     int64    `json:"completed"`
	Failed        int64    `json:"failed"`
	AvgConfidence *float64 `json:"avg_confidence,omitempty"`
}

// StatsThroughput stores daily ingest/verification counters.
type StatsThroughput struct {
	ArticlesIngestedToday      int64 `json:"articles_ingested_today"`
	VerificationsRequestsToday int64 `json:"verification_requests_today"`
}

// EngineStats is the read model returned by the stats command and endpoint.
type EngineStats struct {
	Day           string             `json:"day"`
	Corpus        StatsCorpus        `json:"corpus"`
	Verifications StatsVerifications `json:"verifications"`
	Throughput    StatsThroughput    `json:"throughput"`
}

// QueryEngineStats returns corpus and verification counters plus daily throughput.
func (p *Pool) QueryEngineStats(ctx context.Context, dayStart, dayEnd time.Time) (*EngineStats, error) {
	startUTC := dayStart.UTC()
	endUTC := dayEnd.UTC()
	if !startUTC.Before(endUTC) {
		return nil, fmt.Errorf("dayStart must be before dayEnd")
	}

	stats := &EngineStats{
		Day: startUTC.Format("2006-01-02"),
	}

	const corpusQuery = `
SELECT
	(SELECT COUNT(*) FROM verify.sources) AS sources,
	(SELECT COUNT(*) FROM verify.articles) AS articles,
	(SELECT COUNT(*) FROM verify.articles a WHERE a.is_processed) AS processed,
	(SELECT COUNT(*) FROM verify.articles a WHERE a.is_duplicate) AS duplicates,
	(SELECT COUNT(*) FROM verify.articles a WHERE NOT a.is_processed) AS pending
`

	if err := p.QueryRow(ctx, corpusQuery).Scan(
		&stats.Corpus.Sources,
		&stats.Corpus.Articles,
		&stats.Corpus.Processed,
		&stats.Corpus.Duplicates,
		&stats.Corpus.Pending,
	); err != nil {
		return nil, fmt.Errorf("query corpus stats: %w", err)
	}

	const verificationQuery = `
SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE vr.status = 'pending') AS pending,
	COUNT(*) FILTER (WHERE vr.status = 'processing') AS processing,
	COUNT(*) FILTER (WHERE vr.status = 'completed') AS completed,
	COUNT(*) FILTER (WHERE vr.status = 'failed') AS failed,
	AVG(vr.confidence_score) FILTER (WHERE vr.status = 'completed') AS avg_confidence
FROM verify.verification_requests vr
`

	if err := p.QueryRow(ctx, verificationQuery).Scan(
		&stats.Verifications.Total,
		&stats.Verifications.Pending,
		&stats.Verifications.Processing,
		&stats.Verifications.Completed,
		&stats.Verifications.Failed,
		&stats.Verifications.AvgConfidence,
	); err != nil {
		return nil, fmt.Errorf("query verification stats: %w", err)
	}

	const throughputQuery = `
SELECT
	(SELECT COUNT(*) FROM verify.articles a WHERE a.created_at >= $1 AND a.created_at < $2) AS articles_ingested_today,
	(SELECT COUNT(*) FROM verify.verification_requests vr WHERE vr.created_at >= $1 AND vr.created_at < $2) AS verification_requests_today
`

	if err := p.QueryRow(ctx, throughputQuery, startUTC, endUTC).Scan(
		&stats.Throughput.ArticlesIngestedToday,
		&stats.Throughput.VerificationsRequestsToday,
	); err != nil {
		return nil, fmt.Errorf("query throughput stats: %w", err)
	}

	return stats, nil
}
