package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	got := CleanText("  First   line \r\n\r\n  Second\tline  \r\n")
	want := "First line\n\nSecond line"
	if got != want {
		t.Fatalf("unexpected cleaned text: %q", got)
	}
	if got := CleanText(" \n \r\n "); got != "" {
		t.Fatalf("expected empty result for blank input, got %q", got)
	}
}

func TestFetchTextPlain(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("  A plain   text article.  \n"))
	}))
	defer server.Close()

	f := &Fetcher{}
	text, err := f.FetchText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch text: %v", err)
	}
	if text != "A plain text article." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetchTextHTML(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Flood recovery</title></head><body>
		<article>
			<h1>Flood recovery begins downtown</h1>
			<p>Officials said the flood damaged twelve homes across the river district
			on tuesday evening while residents moved to higher ground.</p>
			<p>Cleanup crews are expected to work through the weekend as utility
			companies restore power to affected blocks.</p>
		</article>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := &Fetcher{}
	text, err := f.FetchText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch text: %v", err)
	}
	if !strings.Contains(text, "twelve homes") {
		t.Fatalf("expected readable body text, got %q", text)
	}
}

func TestFetchTextErrors(t *testing.T) {
	t.Parallel()

	f := &Fetcher{}
	if _, err := f.FetchText(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank url")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := f.FetchText(context.Background(), server.URL); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}
