// Package apperrors defines the closed set of typed errors shared across the
// price tracker's components, each carrying enough context for callers to
// decide a recovery policy without parsing error strings.
package apperrors

import "fmt"

// InvalidInput is returned for call-site validation failures (bad product
// code, non-positive price). Never retried.
type InvalidInput struct {
	Field  string
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// TokensExhausted is returned when the rate-limit bucket times out. Callers
// may sleep and retry at the next loop iteration; it must not cascade.
type TokensExhausted struct {
	Cost int
}

func (e *TokensExhausted) Error() string {
	return fmt.Sprintf("tokens exhausted acquiring cost %d", e.Cost)
}

// UpstreamUnavailable wraps a 5xx or timeout response from the external
// price API.
type UpstreamUnavailable struct {
	StatusCode int
	Err        error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("upstream unavailable (status %d): %v", e.StatusCode, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// UpstreamThrottled wraps a 429 response from the external price API.
type UpstreamThrottled struct {
	RetryAfter string
}

func (e *UpstreamThrottled) Error() string {
	return fmt.Sprintf("upstream throttled, retry after %s", e.RetryAfter)
}

// DealAccessDenied is returned when the access tier rejects the deal-search
// endpoint (404). Callers fall back to per-product queries.
type DealAccessDenied struct{}

func (e *DealAccessDenied) Error() string { return "deal endpoint access denied for this tier" }

// InvalidResponse is returned when an upstream response's shape doesn't
// match what the client expects. Never retried.
type InvalidResponse struct {
	Reason string
}

func (e *InvalidResponse) Error() string {
	return fmt.Sprintf("invalid response shape: %s", e.Reason)
}

// PersistenceTransient wraps a connection loss or deadlock from the
// relational store. RetryPersistence tries the operation up to three times
// in all, with jittered backoff between attempts.
type PersistenceTransient struct {
	Err error
}

func (e *PersistenceTransient) Error() string { return fmt.Sprintf("persistence transient: %v", e.Err) }
func (e *PersistenceTransient) Unwrap() error { return e.Err }

// PersistenceFatal wraps a constraint violation. Never retried.
type PersistenceFatal struct {
	Err error
}

func (e *PersistenceFatal) Error() string { return fmt.Sprintf("persistence fatal: %v", e.Err) }
func (e *PersistenceFatal) Unwrap() error { return e.Err }

// EventLogUnavailable means the broker was unreachable. Logged and
// continued; persistence remains the source of truth.
type EventLogUnavailable struct {
	Err error
}

func (e *EventLogUnavailable) Error() string { return fmt.Sprintf("event log unavailable: %v", e.Err) }
func (e *EventLogUnavailable) Unwrap() error { return e.Err }

// SearchIndexUnavailable means the search endpoint was unreachable. Same
// policy as EventLogUnavailable.
type SearchIndexUnavailable struct {
	Err error
}

func (e *SearchIndexUnavailable) Error() string {
	return fmt.Sprintf("search index unavailable: %v", e.Err)
}
func (e *SearchIndexUnavailable) Unwrap() error { return e.Err }

// DispatchChannelFailed wraps a transport error from one alert channel.
// The dispatcher falls through to the next configured channel.
type DispatchChannelFailed struct {
	Channel string
	Err     error
}

func (e *DispatchChannelFailed) Error() string {
	return fmt.Sprintf("dispatch channel %q failed: %v", e.Channel, e.Err)
}
func (e *DispatchChannelFailed) Unwrap() error { return e.Err }
