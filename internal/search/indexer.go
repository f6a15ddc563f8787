package search

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/globaltime"
)

// Config selects the search cluster and index. Empty Addresses disables
// indexing entirely; the engine is fully functional without a cluster.
type Config struct {
	Addresses []string
	IndexName string
	Username  string
	Password  string
}

// Document is the indexed projection of an article.
type Document struct {
	ArticleUUID  string     `json:"article_uuid"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	CanonicalURL string     `json:"canonical_url"`
	SourceName   string     `json:"source_name"`
	SourceDomain string     `json:"source_domain"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
	Language     string     `json:"language"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	IsDuplicate  bool       `json:"is_duplicate"`
	IndexedAt    time.Time  `json:"indexed_at"`
}

// Indexer mirrors ingested articles into a search index. A nil Indexer is a
// valid no-op.
type Indexer struct {
	client    *elasticsearch.TypedClient
	indexName string
	logger    zerolog.Logger
}

func NewIndexer(ctx context.Context, cfg Config, logger zerolog.Logger) (*Indexer, error) {
	if len(cfg.Addresses) == 0 {
		return nil, nil
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("search index name is required")
	}

	esConfig := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.Username != "" && cfg.Password != "" {
		esConfig.Username = cfg.Username
		esConfig.Password = cfg.Password
	}

	client, err := elasticsearch.NewTypedClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	indexer := &Indexer{
		client:    client,
		indexName: cfg.IndexName,
		logger:    logger,
	}
	if err := indexer.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return indexer, nil
}

// IndexArticle writes or overwrites the article's search document.
func (i *Indexer) IndexArticle(ctx context.Context, doc Document) error {
	if i == nil || i.client == nil {
		return nil
	}
	if doc.ArticleUUID == "" {
		return fmt.Errorf("article uuid is required")
	}

	doc.IndexedAt = globaltime.UTC()
	res, err := i.client.Index(i.indexName).Id(doc.ArticleUUID).Document(doc).Do(ctx)
	if err != nil {
		return fmt.Errorf("index article %s: %w", doc.ArticleUUID, err)
	}

	i.logger.Debug().
		Str("article_uuid", doc.ArticleUUID).
		Str("index", i.indexName).
		Str("result", res.Result.Name).
		Msg("article indexed")
	return nil
}

func (i *Indexer) ensureIndex(ctx context.Context) error {
	exists, err := i.client.Indices.Exists(i.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.indexName, err)
	}
	if exists {
		return nil
	}

	mappings := types.TypeMapping{
		Properties: map[string]types.Property{
			"article_uuid":  types.NewKeywordProperty(),
			"title":         textWithKeyword(),
			"content":       types.NewTextProperty(),
			"canonical_url": types.NewKeywordProperty(),
			"source_name":   textWithKeyword(),
			"source_domain": types.NewKeywordProperty(),
			"fingerprint":   types.NewKeywordProperty(),
			"language":      types.NewKeywordProperty(),
			"published_at":  types.NewDateProperty(),
			"is_duplicate":  types.NewBooleanProperty(),
			"indexed_at":    types.NewDateProperty(),
		},
	}

	res, err := i.client.Indices.Create(i.indexName).Mappings(&mappings).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.indexName, err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("index creation for %s was not acknowledged", i.indexName)
	}

	i.logger.Info().Str("index", i.indexName).Msg("search index created")
	return nil
}

func textWithKeyword() types.Property {
	prop := types.NewTextProperty()
	prop.Fields = map[string]types.Property{
		"keyword": types.NewKeywordProperty(),
	}
	return prop
}
