package credibility

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if got := ParseLevel(" Very_High "); got != LevelVeryHigh {
		t.Fatalf("unexpected level: %v", got)
	}
	if got := ParseLevel("low"); got != LevelLow {
		t.Fatalf("unexpected level: %v", got)
	}
	if got := ParseLevel("certified-excellent"); got != LevelMedium {
		t.Fatalf("expected unknown level to fall back to medium, got %v", got)
	}
	if got := ParseLevel(""); got != LevelMedium {
		t.Fatalf("expected blank level to fall back to medium, got %v", got)
	}
}

func TestHTTPClientSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sources/example.com" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overall_score": 87.5, "credibility_level": "high", "trust_indicators": ["editorial-standards"]}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	assessment, err := client.Source(context.Background(), " Example.COM ")
	if err != nil {
		t.Fatalf("source assessment: %v", err)
	}
	if assessment.OverallScore != 87.5 {
		t.Fatalf("unexpected score: %v", assessment.OverallScore)
	}
	if assessment.CredibilityLevel != LevelHigh {
		t.Fatalf("unexpected level: %v", assessment.CredibilityLevel)
	}
	if len(assessment.TrustIndicators) != 1 {
		t.Fatalf("unexpected indicators: %v", assessment.TrustIndicators)
	}
}

func TestHTTPClientSourceMissingFields(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"credibility_level": "high", "trust_indicators": []}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Source(context.Background(), "example.com")
	var scoringErr *ScoringError
	if !errors.As(err, &scoringErr) {
		t.Fatalf("expected ScoringError for missing overall_score, got %v", err)
	}
}

func TestHTTPClientSourceClampsScore(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overall_score": 240, "credibility_level": "high", "trust_indicators": []}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	assessment, err := client.Source(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("source assessment: %v", err)
	}
	if assessment.OverallScore != 100 {
		t.Fatalf("expected score clamped to 100, got %v", assessment.OverallScore)
	}
}

func TestHTTPClientSourceErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	var scoringErr *ScoringError
	if _, err := client.Source(context.Background(), "example.com"); !errors.As(err, &scoringErr) {
		t.Fatalf("expected ScoringError for upstream failure, got %v", err)
	}
}

func TestHTTPClientArticle(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/articles/score" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overall_score": 64, "quality_indicators": ["cites-sources"]}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	assessment, err := client.Article(context.Background(), "https://example.com/a", "body text")
	if err != nil {
		t.Fatalf("article assessment: %v", err)
	}
	if assessment.OverallScore != 64 {
		t.Fatalf("unexpected score: %v", assessment.OverallScore)
	}
}

func TestNewHTTPClientRejectsBlankBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPClient("  ", time.Second); err == nil {
		t.Fatalf("expected error for blank base URL")
	}
}

func TestDefaultStatic(t *testing.T) {
	t.Parallel()

	client := DefaultStatic()
	source, err := client.Source(context.Background(), "anything.example")
	if err != nil {
		t.Fatalf("static source: %v", err)
	}
	if source.OverallScore != 50 || source.CredibilityLevel != LevelMedium {
		t.Fatalf("unexpected neutral assessment: %+v", source)
	}
}
