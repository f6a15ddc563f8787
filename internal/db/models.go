package db

import (
	"encoding/json"
	"time"
)

// Source maps verify.sources.
type Source struct {
	SourceID   int64     `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID string    `gorm:"column:source_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name       string    `gorm:"column:name;type:text;not null"`
	Domain     string    `gorm:"column:domain;type:text;not null;unique"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "verify.sources" }

// Article maps verify.articles. Title, content and canonical URL are treated
// as immutable once stored; only the processing flags and metadata move.
type Article struct {
	ArticleID    int64           `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleUUID  string          `gorm:"column:article_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceID     int64           `gorm:"column:source_id;type:bigint;not null"`
	CanonicalURL string          `gorm:"column:canonical_url;type:text;not null;unique"`
	Title        string          `gorm:"column:title;type:text;not null"`
	Content      string          `gorm:"column:content;type:text;not null;default:''"`
	Excerpt      *string         `gorm:"column:excerpt;type:text"`
	Author       *string         `gorm:"column:author;type:text"`
	PublishedAt  *time.Time      `gorm:"column:published_at;type:timestamptz"`
	Language     string          `gorm:"column:language;type:text;not null;default:und"`
	Metadata     json.RawMessage `gorm:"column:metadata;type:jsonb"`
	ContentHash  []byte          `gorm:"column:content_hash;type:bytea"`
	IsProcessed  bool            `gorm:"column:is_processed;type:boolean;not null;default:false"`
	IsDuplicate  bool            `gorm:"column:is_duplicate;type:boolean;not null;default:false"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "verify.articles" }

// ContentHash maps verify.content_hashes, exactly one row per processed
// article. SimilarMatches holds the article's current nearest neighbors as an
// ordered list of {article_id, score, match_type} records; it is recomputed
// whenever the corpus context around the owning article changes.
type ContentHash struct {
	ContentHashID   int64           `gorm:"column:content_hash_id;primaryKey;autoIncrement"`
	ContentHashUUID string          `gorm:"column:content_hash_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ArticleID       int64           `gorm:"column:article_id;type:bigint;not null;unique"`
	HashDigest      []byte          `gorm:"column:hash_digest;type:bytea;not null"`
	HashAlgorithm   string          `gorm:"column:hash_algorithm;type:text;not null;default:sha256"`
	BestMatchScore  *float64        `gorm:"column:best_match_score;type:double precision"`
	SimilarMatches  json.RawMessage `gorm:"column:similar_matches;type:jsonb"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ContentHash) TableName() string { return "verify.content_hashes" }

// VerificationRequest maps verify.verification_requests. Status transitions
// are monotonic: pending -> processing -> completed | failed.
type VerificationRequest struct {
	VerificationRequestID   int64      `gorm:"column:verification_request_id;primaryKey;autoIncrement"`
	VerificationRequestUUID string     `gorm:"column:verification_request_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	InputText               *string    `gorm:"column:input_text;type:text"`
	InputURL                *string    `gorm:"column:input_url;type:text"`
	Status                  string     `gorm:"column:status;type:text;not null;default:pending"`
	ConfidenceScore         *float64   `gorm:"column:confidence_score;type:double precision"`
	ErrorMessage            *string    `gorm:"column:error_message;type:text"`
	ProcessedAt             *time.Time `gorm:"column:processed_at;type:timestamptz"`
	CreatedAt               time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt               time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (VerificationRequest) TableName() string { return "verify.verification_requests" }

// VerificationResult maps verify.verification_results, one row per matched
// article for a request. Rows are owned by their request and cascade-deleted
// with it.
type VerificationResult struct {
	VerificationResultID   int64           `gorm:"column:verification_result_id;primaryKey;autoIncrement"`
	VerificationResultUUID string          `gorm:"column:verification_result_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	RequestID              int64           `gorm:"column:request_id;type:bigint;not null"`
	ArticleID              int64           `gorm:"column:article_id;type:bigint;not null"`
	SimilarityScore        float64         `gorm:"column:similarity_score;type:double precision;not null"`
	CredibilityScore       float64         `gorm:"column:credibility_score;type:double precision;not null"`
	EarliestPublication    *time.Time      `gorm:"column:earliest_publication;type:timestamptz"`
	MatchType              string          `gorm:"column:match_type;type:text;not null"`
	MatchDetails           json.RawMessage `gorm:"column:match_details;type:jsonb"`
	IsEarliestSource       bool            `gorm:"column:is_earliest_source;type:boolean;not null;default:false"`
	CreatedAt              time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (VerificationResult) TableName() string { return "verify.verification_results" }

func autoMigrateModels() []any {
	return []any{
		&Source{},
		&Article{},
		&ContentHash{},
		&VerificationRequest{},
		&VerificationResult{},
	}
}

// Request status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
