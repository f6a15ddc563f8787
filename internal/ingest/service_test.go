package ingest

import (
	"encoding/json"
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidatePayload(t *testing.T) {
	t.Parallel()

	good := json.RawMessage(`{
		"payload_version": "v1",
		"source_name": "The Harbor Times",
		"source_domain": "harbortimes.example",
		"canonical_url": "https://harbortimes.example/news/cleanup",
		"title": "Reservoir cleanup enters second phase",
		"content": "Crews resumed work on the reservoir cleanup this week."
	}`)
	item, err := validatePayload(good)
	if err != nil {
		t.Fatalf("expected valid payload to pass: %v", err)
	}
	if item.SourceDomain != "harbortimes.example" {
		t.Fatalf("unexpected decoded payload: %+v", item)
	}

	bad := json.RawMessage(`{"payload_version": "v1"}`)
	_, err = validatePayload(bad)
	if err == nil {
		t.Fatal("expected incomplete payload to fail")
	}
	if !IsValidationError(err) {
		t.Fatalf("expected a validation error, got %T: %v", err, err)
	}
}

func TestIsValidationError(t *testing.T) {
	t.Parallel()

	if IsValidationError(nil) {
		t.Fatal("nil is not a validation error")
	}
	if IsValidationError(errors.New("database unavailable")) {
		t.Fatal("internal faults are not validation errors")
	}

	wrapped := &ValidationError{Err: errors.New("title must not be empty")}
	if !IsValidationError(wrapped) {
		t.Fatal("expected ValidationError to be recognized")
	}
	if !errors.As(error(wrapped), new(*ValidationError)) {
		t.Fatal("expected errors.As to unwrap the validation error")
	}
}

func TestResolveLanguage(t *testing.T) {
	t.Parallel()

	if got := resolveLanguage(strPtr("EN-us"), "title", "content"); got != "en" {
		t.Fatalf("expected declared language to win, got %q", got)
	}
	if got := resolveLanguage(strPtr("!!"), "", "the quick brown fox jumps over the lazy dog near the riverbank this morning"); got != "en" {
		t.Fatalf("expected detection fallback for malformed tag, got %q", got)
	}
	if got := resolveLanguage(nil, "ab", ""); got != "und" {
		t.Fatalf("expected und for undetectable content, got %q", got)
	}
}

func TestTrimmedPtr(t *testing.T) {
	t.Parallel()

	if got := trimmedPtr(nil); got != nil {
		t.Fatalf("expected nil for nil input")
	}
	if got := trimmedPtr(strPtr("  ")); got != nil {
		t.Fatalf("expected nil for blank input, got %q", *got)
	}
	if got := trimmedPtr(strPtr("  Jordan Reyes ")); got == nil || *got != "Jordan Reyes" {
		t.Fatalf("expected trimmed value, got %v", got)
	}
}
