package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/db"
	"horse.fit/firstprint/internal/fingerprint"
	"horse.fit/firstprint/internal/similarity"
)

type fakeArticle struct {
	id        int64
	content   string
	digest    []byte
	processed bool
	duplicate bool
}

// fakeStore is an in-memory corpus backing the detector in tests.
type fakeStore struct {
	mu       sync.Mutex
	articles map[int64]*fakeArticle
	hashes   map[int64]db.ContentHashRecord
	links    map[int64][]json.RawMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles: make(map[int64]*fakeArticle),
		hashes:   make(map[int64]db.ContentHashRecord),
		links:    make(map[int64][]json.RawMessage),
	}
}

func (f *fakeStore) addProcessed(id int64, content string) {
	f.articles[id] = &fakeArticle{
		id:        id,
		content:   content,
		digest:    fingerprint.Hash(content, fingerprint.DefaultAlgorithm),
		processed: true,
	}
}

func (f *fakeStore) addPending(id int64, content string) {
	f.articles[id] = &fakeArticle{id: id, content: content}
}

func (f *fakeStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.articles))
	for id := range f.articles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeStore) FindArticleIDsByDigest(_ context.Context, digest []byte, excludeID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []int64
	for _, id := range f.sortedIDs() {
		article := f.articles[id]
		if !article.processed || id == excludeID || !bytes.Equal(article.digest, digest) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ListProcessedChunk(_ context.Context, afterID int64, limit int, excludeID int64) ([]db.CorpusArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var chunk []db.CorpusArticle
	for _, id := range f.sortedIDs() {
		article := f.articles[id]
		if !article.processed || id <= afterID || id == excludeID {
			continue
		}
		chunk = append(chunk, db.CorpusArticle{ArticleID: id, Content: article.content})
		if len(chunk) == limit {
			break
		}
	}
	return chunk, nil
}

func (f *fakeStore) NextUnprocessedArticleID(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range f.sortedIDs() {
		if !f.articles[id].processed {
			return id, nil
		}
	}
	return 0, db.ErrNoRows
}

func (f *fakeStore) GetArticleForProcessing(_ context.Context, articleID int64) (*db.CorpusArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	article, ok := f.articles[articleID]
	if !ok {
		return nil, db.ErrNoRows
	}
	return &db.CorpusArticle{ArticleID: article.id, Content: article.content}, nil
}

func (f *fakeStore) UpsertContentHash(_ context.Context, record db.ContentHashRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hashes[record.ArticleID] = record
	return nil
}

func (f *fakeStore) MarkArticleProcessed(_ context.Context, articleID int64, isDuplicate bool, digest []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	article, ok := f.articles[articleID]
	if !ok {
		return db.ErrNoRows
	}
	article.processed = true
	article.duplicate = isDuplicate
	article.digest = digest
	return nil
}

func (f *fakeStore) AppendSimilarMatch(_ context.Context, articleID int64, _ float64, match json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.links[articleID] = append(f.links[articleID], match)
	return nil
}

func TestClassify(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, zerolog.Nop(), Options{})

	if got := d.classify(1.0); got != MatchTypeNearExact {
		t.Fatalf("expected perfect composite score to classify near_exact, got %s", got)
	}
	if got := d.classify(0.97); got != MatchTypeNearExact {
		t.Fatalf("unexpected type for 0.97: %s", got)
	}
	if got := d.classify(0.95); got != MatchTypeNearExact {
		t.Fatalf("expected boundary score to classify near_exact, got %s", got)
	}
	if got := d.classify(0.85); got != MatchTypeSimilar {
		t.Fatalf("unexpected type for 0.85: %s", got)
	}
}

func TestClassifyScore(t *testing.T) {
	t.Parallel()

	if got := ClassifyScore(0.5, DefaultNearExactThreshold, true); got != MatchTypeExact {
		t.Fatalf("expected digest hit to classify exact, got %s", got)
	}
	if got := ClassifyScore(1.0, DefaultNearExactThreshold, false); got != MatchTypeNearExact {
		t.Fatalf("expected perfect score without digest equality to classify near_exact, got %s", got)
	}
	if got := ClassifyScore(0.96, DefaultNearExactThreshold, false); got != MatchTypeNearExact {
		t.Fatalf("unexpected type for 0.96: %s", got)
	}
	if got := ClassifyScore(0.82, DefaultNearExactThreshold, false); got != MatchTypeSimilar {
		t.Fatalf("unexpected type for 0.82: %s", got)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	opts := Options{}.withDefaults()
	if opts.Threshold != DefaultThreshold {
		t.Fatalf("unexpected threshold: %v", opts.Threshold)
	}
	if opts.NearExactThreshold != DefaultNearExactThreshold {
		t.Fatalf("unexpected near-exact threshold: %v", opts.NearExactThreshold)
	}
	if opts.ChunkSize != DefaultChunkSize || opts.ScanWorkers != DefaultScanWorkers {
		t.Fatalf("unexpected scan bounds: %+v", opts)
	}
	if opts.MaxMatches != DefaultMaxMatches {
		t.Fatalf("unexpected match cap: %v", opts.MaxMatches)
	}

	custom := Options{Threshold: 0.9, MaxMatches: 3}.withDefaults()
	if custom.Threshold != 0.9 || custom.MaxMatches != 3 {
		t.Fatalf("expected explicit options to survive: %+v", custom)
	}
}

func TestDetectExactDigestShortCircuits(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addProcessed(1, "The council approved the harbor budget on Tuesday evening.")
	d := NewDetector(store, zerolog.Nop(), Options{})

	outcome, err := d.Detect(context.Background(), 42, "The council approved the harbor budget on Tuesday evening.")
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !outcome.IsDuplicate {
		t.Fatal("expected identical content to be flagged duplicate")
	}
	if len(outcome.Matches) != 1 {
		t.Fatalf("expected one exact match, got %d", len(outcome.Matches))
	}
	match := outcome.Matches[0]
	if match.ArticleID != 1 || match.Score != 1.0 || match.Type != MatchTypeExact {
		t.Fatalf("unexpected exact match: %+v", match)
	}
}

func TestDetectPerfectScoreWithoutDigestMatch(t *testing.T) {
	t.Parallel()

	// Reordered words share the full vocabulary, length and pairwise word
	// order, so the composite score is exactly 1.0 while the digests differ.
	store := newFakeStore()
	store.addProcessed(7, "alpha alpha beta")
	d := NewDetector(store, zerolog.Nop(), Options{})

	outcome, err := d.Detect(context.Background(), 42, "alpha beta alpha")
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(outcome.Matches) != 1 {
		t.Fatalf("expected one match, got %d", len(outcome.Matches))
	}
	match := outcome.Matches[0]
	if match.Score != 1.0 {
		t.Fatalf("expected composite score 1.0, got %v", match.Score)
	}
	if match.Type == MatchTypeExact {
		t.Fatal("exact is reserved for digest equality")
	}
	if match.Type != MatchTypeNearExact {
		t.Fatalf("expected near_exact, got %s", match.Type)
	}
}

func TestScanSimilarFiltersAndOrders(t *testing.T) {
	t.Parallel()

	probe := "quarterly earnings rose sharply across european markets"
	store := newFakeStore()
	store.addProcessed(3, probe)
	store.addProcessed(1, probe)
	store.addProcessed(2, "gardening advice about hardy tomato seedlings this spring")

	d := NewDetector(store, zerolog.Nop(), Options{})
	matches, err := d.ScanSimilar(context.Background(), probe, 0, similarity.DetectionWeights())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected the unrelated article to be filtered, got %d matches", len(matches))
	}
	// Equal scores tie-break on ascending article id.
	if matches[0].ArticleID != 1 || matches[1].ArticleID != 3 {
		t.Fatalf("unexpected order: %+v", matches)
	}
	for _, match := range matches {
		if match.Score != 1.0 || match.Type != MatchTypeNearExact {
			t.Fatalf("unexpected match: %+v", match)
		}
	}

	excluded, err := d.ScanSimilar(context.Background(), probe, 1, similarity.DetectionWeights())
	if err != nil {
		t.Fatalf("scan with exclusion failed: %v", err)
	}
	if len(excluded) != 1 || excluded[0].ArticleID != 3 {
		t.Fatalf("expected article 1 to be excluded: %+v", excluded)
	}
}

func TestApplyPersistsOutcomeAndBacklinks(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addProcessed(1, "shared reporting on the reservoir cleanup effort")
	store.addPending(9, "shared reporting on the reservoir cleanup effort again")
	d := NewDetector(store, zerolog.Nop(), Options{})

	score := 0.97
	outcome := &Outcome{
		ArticleID:   9,
		Digest:      []byte{0xde, 0xad},
		IsDuplicate: true,
		Matches:     []Match{{ArticleID: 1, Score: score, Type: MatchTypeNearExact}},
	}
	if err := d.Apply(context.Background(), outcome); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	record, ok := store.hashes[9]
	if !ok {
		t.Fatal("expected a fingerprint row for the article")
	}
	if record.BestMatchScore == nil || *record.BestMatchScore != score {
		t.Fatalf("unexpected best match score: %+v", record.BestMatchScore)
	}
	if !store.articles[9].processed || !store.articles[9].duplicate {
		t.Fatalf("expected article flags to be set: %+v", store.articles[9])
	}

	if len(store.links[1]) != 1 {
		t.Fatalf("expected one neighbor backlink, got %d", len(store.links[1]))
	}
	var backlink []Match
	if err := json.Unmarshal(store.links[1][0], &backlink); err != nil {
		t.Fatalf("decode backlink: %v", err)
	}
	if len(backlink) != 1 || backlink[0].ArticleID != 9 || backlink[0].Score != score {
		t.Fatalf("unexpected backlink: %+v", backlink)
	}
}

func TestProcessBacklog(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addProcessed(1, "the committee published its annual transparency report")
	store.addPending(2, "the committee published its annual transparency report")
	store.addPending(3, "meanwhile organizers announced a downtown festival lineup")
	d := NewDetector(store, zerolog.Nop(), Options{})

	processed, err := d.ProcessBacklog(context.Background(), 10)
	if err != nil {
		t.Fatalf("backlog run failed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed articles, got %d", processed)
	}
	if !store.articles[2].duplicate {
		t.Fatal("expected article 2 to be flagged duplicate of article 1")
	}
	if !store.articles[3].processed || store.articles[3].duplicate {
		t.Fatalf("expected article 3 processed and unique: %+v", store.articles[3])
	}

	again, err := d.ProcessBacklog(context.Background(), 10)
	if err != nil {
		t.Fatalf("second backlog run failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected empty backlog, got %d", again)
	}
}
