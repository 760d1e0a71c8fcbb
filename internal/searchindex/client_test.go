package searchindex

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIndexDocumentSucceedsOnFirstAttempt(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The client refuses 2xx responses that do not identify as Elasticsearch.
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = c.IndexDocument(context.Background(), DealIndex, "B07W6JN8V8", map[string]string{"title": "x"})
	if err != nil {
		t.Fatalf("IndexDocument returned error: %v", err)
	}
}

func TestIndexDocumentRetriesThenFails(t *testing.T) {
	t.Parallel()

	calls := 0
	// Shrink backoff for the test so it doesn't take 7 seconds.
	orig := writeBackoff
	writeBackoff = []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}
	defer func() { writeBackoff = orig }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = c.IndexDocument(context.Background(), DealIndex, "B07W6JN8V8", map[string]string{"title": "x"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3 (1 initial + 2 retries)", calls)
	}
}

func TestIndexConstants(t *testing.T) {
	t.Parallel()

	if PriceIndex != "keeper-prices" {
		t.Errorf("PriceIndex = %q, want keeper-prices", PriceIndex)
	}
	if DealIndex != "keeper-deals" {
		t.Errorf("DealIndex = %q, want keeper-deals", DealIndex)
	}
}
