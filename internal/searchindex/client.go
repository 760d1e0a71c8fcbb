// Package searchindex writes price and deal documents to Elasticsearch with
// language-aware analysis and completion suggestion, best-effort relative to
// the relational store.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/keeperwatch/pricewatch/pkg/apperrors"
)

const (
	// PriceIndex holds types.PriceUpdateEvent documents.
	PriceIndex = "keeper-prices"
	// DealIndex holds the types.DealUpdateEvent documents the deal pipeline
	// writes. Their title is stored under product_title, which
	// dealIndexMapping does not declare, so the mapped title field (custom
	// analyzer and suggest subfield) is not populated; rating, review count,
	// sales rank, category, URL, prime flag and deal score are not part of
	// these documents.
	DealIndex = "keeper-deals"
)

var writeBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Client wraps an Elasticsearch client for the two fixed indexes.
type Client struct {
	es     *elasticsearch.Client
	logger *slog.Logger
}

// NewClient connects to the search index endpoint.
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("build elasticsearch client: %w", err)
	}
	return &Client{es: es, logger: logger.With("component", "searchindex.client")}, nil
}

// EnsureIndexes creates both indexes with their declared analyzers and
// mappings if they don't already exist.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for name, mapping := range map[string]string{PriceIndex: priceIndexMapping, DealIndex: dealIndexMapping} {
		exists, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, c.es)
		if err != nil {
			return &apperrors.SearchIndexUnavailable{Err: err}
		}
		defer exists.Body.Close()
		if exists.StatusCode == 200 {
			continue
		}

		create, err := esapi.IndicesCreateRequest{
			Index: name,
			Body:  strings.NewReader(mapping),
		}.Do(ctx, c.es)
		if err != nil {
			return &apperrors.SearchIndexUnavailable{Err: err}
		}
		defer create.Body.Close()
		if create.IsError() {
			return &apperrors.SearchIndexUnavailable{Err: fmt.Errorf("create index %s: %s", name, create.Status())}
		}
	}
	return nil
}

// IndexDocument indexes a single document with three-retry exponential
// backoff (1s, 2s, 4s). Failures are best-effort: the caller logs and
// continues, never aborting the pipeline.
func (c *Client) IndexDocument(ctx context.Context, index, docID string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(writeBackoff); attempt++ {
		resp, err := esapi.IndexRequest{
			Index:      index,
			DocumentID: docID,
			Body:       bytes.NewReader(body),
		}.Do(ctx, c.es)
		if err == nil {
			defer resp.Body.Close()
			if !resp.IsError() {
				return nil
			}
			lastErr = fmt.Errorf("index %s/%s: %s", index, docID, resp.Status())
		} else {
			lastErr = err
		}

		if attempt < len(writeBackoff) {
			select {
			case <-ctx.Done():
				return &apperrors.SearchIndexUnavailable{Err: ctx.Err()}
			case <-time.After(writeBackoff[attempt]):
			}
		}
	}
	return &apperrors.SearchIndexUnavailable{Err: lastErr}
}

// DeleteOlderThan removes documents with timestamp before cutoff from both
// indexes, implementing the 90-day retention pass.
func (c *Client) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	query := fmt.Sprintf(`{"query":{"range":{"timestamp":{"lt":"%s"}}}}`, cutoff.Format(time.RFC3339))
	for _, name := range []string{PriceIndex, DealIndex} {
		resp, err := esapi.DeleteByQueryRequest{
			Index: []string{name},
			Body:  strings.NewReader(query),
		}.Do(ctx, c.es)
		if err != nil {
			return &apperrors.SearchIndexUnavailable{Err: err}
		}
		defer resp.Body.Close()
		if resp.IsError() {
			return &apperrors.SearchIndexUnavailable{Err: fmt.Errorf("delete_by_query on %s: %s", name, resp.Status())}
		}
	}
	return nil
}
