package keepa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keeperwatch/pricewatch/internal/ratelimit"
	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueryProductRejectsBadProductCode(t *testing.T) {
	t.Parallel()

	c := NewClient("http://unused.invalid", "key", ratelimit.New(200, 20), testLogger())
	_, err := c.QueryProduct(context.Background(), "tooshort", types.DomainDE)
	var invalid *apperrors.InvalidInput
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *apperrors.InvalidInput, got %T: %v", err, err)
	}
}

func TestQueryProductSucceeds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tokensLeft": 185,
			"products": []map[string]any{
				{"asin": "B07W6JN8V8", "title": "Test Product", "domainId": 3},
			},
		})
	}))
	defer srv.Close()

	bucket := ratelimit.New(200, 20)
	c := NewClient(srv.URL, "key", bucket, testLogger())

	p, err := c.QueryProduct(context.Background(), "B07W6JN8V8", types.DomainDE)
	if err != nil {
		t.Fatalf("QueryProduct returned error: %v", err)
	}
	if p.ASIN != "B07W6JN8V8" {
		t.Errorf("ASIN = %q, want B07W6JN8V8", p.ASIN)
	}
	if bucket.Snapshot().Available != 185 {
		t.Errorf("bucket not synced: available = %d, want 185", bucket.Snapshot().Available)
	}
}

func TestSearchDealsDisablesPermanentlyOn404(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", ratelimit.New(200, 20), testLogger())

	_, err := c.SearchDeals(context.Background(), types.DomainDE, "keyboards")
	var denied *apperrors.DealAccessDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected DealAccessDenied, got %v", err)
	}

	// Second call must short-circuit without hitting the server again.
	_, err = c.SearchDeals(context.Background(), types.DomainDE, "keyboards")
	if !errors.As(err, &denied) {
		t.Fatalf("expected DealAccessDenied on second call, got %v", err)
	}
	if calls != 1 {
		t.Errorf("server was called %d times, want 1 (second call should short-circuit)", calls)
	}
}

func TestQueryProductSurfaces5xxAsUpstreamUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", ratelimit.New(200, 20), testLogger())
	_, err := c.QueryProduct(context.Background(), "B07W6JN8V8", types.DomainDE)

	var unavailable *apperrors.UpstreamUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *apperrors.UpstreamUnavailable, got %T: %v", err, err)
	}
}
