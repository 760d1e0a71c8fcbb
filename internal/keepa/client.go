// Package keepa wraps the external price-history API: product/search/token
// queries, the packed-array price extractor (price.go), and the domain
// hostname table (domains.go).
package keepa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/keeperwatch/pricewatch/internal/ratelimit"
	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

const (
	costQueryProduct = 15
	costSearchDeals  = 5
)

// Client issues calls to the external price API, admission-controlled by a
// shared token bucket.
type Client struct {
	http   *resty.Client
	bucket *ratelimit.Bucket
	logger *slog.Logger

	dealsDisabled atomic.Bool // set permanently after one DealAccessDenied
}

// NewClient builds a Client against baseURL, authenticating with apiKey.
func NewClient(baseURL, apiKey string, bucket *ratelimit.Bucket, logger *slog.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(4 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetQueryParam("key", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   c,
		bucket: bucket,
		logger: logger.With("component", "keepa.client"),
	}
}

// QueryProduct fetches a single product's stats/history/offers.
func (c *Client) QueryProduct(ctx context.Context, productCode string, domain types.Domain) (*types.Product, error) {
	if len(productCode) != 10 {
		return nil, &apperrors.InvalidInput{Field: "productCode", Reason: "must be exactly 10 characters"}
	}
	if err := c.bucket.Acquire(ctx, costQueryProduct, 0); err != nil {
		return nil, &apperrors.TokensExhausted{Cost: costQueryProduct}
	}

	var result struct {
		Products   []types.Product `json:"products"`
		TokensLeft int             `json:"tokensLeft"`
	}
	err := c.doWithThrottleRetry(func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"asin":   productCode,
				"domain": fmt.Sprintf("%d", domain),
				"stats":  "1",
				"offers": "20",
			}).
			SetResult(&result).
			Get("/product")
	})
	if err != nil {
		return nil, err
	}
	if len(result.Products) == 0 {
		return nil, &apperrors.InvalidResponse{Reason: "empty products array"}
	}

	c.bucket.Sync(result.TokensLeft)
	p := result.Products[0]
	return &p, nil
}

// SearchDeals queries the deal-search endpoint. If the access tier has
// already rejected it once, this call short-circuits with DealAccessDenied
// without making a network request.
func (c *Client) SearchDeals(ctx context.Context, domain types.Domain, category string) ([]types.Deal, error) {
	if c.dealsDisabled.Load() {
		return nil, &apperrors.DealAccessDenied{}
	}
	if err := c.bucket.Acquire(ctx, costSearchDeals, 0); err != nil {
		return nil, &apperrors.TokensExhausted{Cost: costSearchDeals}
	}

	var result struct {
		Deals      []types.Deal `json:"deals"`
		TokensLeft int          `json:"tokensLeft"`
	}
	err := c.doWithThrottleRetryDealEndpoint(func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"domain":   fmt.Sprintf("%d", domain),
				"category": category,
			}).
			SetResult(&result).
			Get("/deal")
	})
	if err != nil {
		if _, denied := err.(*apperrors.DealAccessDenied); denied {
			c.dealsDisabled.Store(true)
			c.logger.Warn("deal endpoint access denied, disabling for this process")
		}
		return nil, err
	}

	c.bucket.Sync(result.TokensLeft)
	return result.Deals, nil
}

// GetTokenStatus is a free call reporting the server's view of bucket state.
func (c *Client) GetTokenStatus(ctx context.Context) (*types.TokenStatus, error) {
	var status types.TokenStatus
	err := c.doWithThrottleRetry(func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetResult(&status).
			Get("/token")
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// doWithThrottleRetry executes req, classifying the result. On a 429 it
// pauses 60s and retries exactly once, per the upstream's documented
// throttling contract. A 404 is classified as InvalidResponse: only the
// deal endpoint's 404 means access-tier denial (§4.2).
func (c *Client) doWithThrottleRetry(req func() (*resty.Response, error)) error {
	return c.doThrottled(req, false)
}

// doWithThrottleRetryDealEndpoint is doWithThrottleRetry for calls against
// the deal-search endpoint specifically, where a 404 means the access tier
// has rejected the endpoint (§4.2's DealAccessDenied), not a missing resource.
func (c *Client) doWithThrottleRetryDealEndpoint(req func() (*resty.Response, error)) error {
	return c.doThrottled(req, true)
}

func (c *Client) doThrottled(req func() (*resty.Response, error), dealEndpoint bool) error {
	resp, err := req()
	if err != nil {
		return &apperrors.UpstreamUnavailable{Err: err}
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		c.logger.Warn("upstream throttled, pausing before retry", "pause", "60s")
		time.Sleep(60 * time.Second)
		resp, err = req()
		if err != nil {
			return &apperrors.UpstreamUnavailable{Err: err}
		}
	}
	return classifyStatus(resp, dealEndpoint)
}

// classifyStatus inspects a completed response and returns a typed error,
// or nil if the status indicates success. dealEndpoint gates whether a 404
// is interpreted as DealAccessDenied (only true for the deal-search call;
// every other endpoint's 404 is a plain InvalidResponse).
func classifyStatus(resp *resty.Response, dealEndpoint bool) error {
	switch {
	case resp.StatusCode() >= 200 && resp.StatusCode() < 300:
		return nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &apperrors.UpstreamThrottled{RetryAfter: "60s"}
	case resp.StatusCode() == http.StatusNotFound && dealEndpoint:
		return &apperrors.DealAccessDenied{}
	case resp.StatusCode() >= 500:
		return &apperrors.UpstreamUnavailable{StatusCode: resp.StatusCode()}
	default:
		return &apperrors.InvalidResponse{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode())}
	}
}
