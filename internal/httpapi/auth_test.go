package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/firstprint/internal/auth"
)

func invokeWithAPIKey(t *testing.T, server *Server, key string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles", nil)
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := server.requireAPIKey(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec
}

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashAPIKey("fp_test_key")
	if err != nil {
		t.Fatalf("hash api key: %v", err)
	}
	server := NewServer(nil, zerolog.Nop(), nil, nil, Options{IngestAPIKeyHash: hash})

	if rec := invokeWithAPIKey(t, server, "fp_test_key"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected valid key to pass, got status %d", rec.Code)
	}
	if rec := invokeWithAPIKey(t, server, "fp_wrong_key"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected invalid key to be rejected, got status %d", rec.Code)
	}
	if rec := invokeWithAPIKey(t, server, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected missing key to be rejected, got status %d", rec.Code)
	}
}

func TestRequireAPIKeyDisabledWithoutHash(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, zerolog.Nop(), nil, nil, Options{})
	if rec := invokeWithAPIKey(t, server, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected open gate without configured hash, got status %d", rec.Code)
	}
}

func TestNewServerDefaults(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, zerolog.Nop(), nil, nil, Options{})
	if server.opts.Addr != ":8080" {
		t.Fatalf("unexpected default addr: %q", server.opts.Addr)
	}
	if server.opts.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected default shutdown timeout: %s", server.opts.ShutdownTimeout)
	}
	if server.opts.ReadTimeout != 10*time.Second || server.opts.WriteTimeout != 30*time.Second {
		t.Fatalf("unexpected default timeouts: %+v", server.opts)
	}
}
