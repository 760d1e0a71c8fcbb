// Package alerts is the dispatch engine (C9): it drains PENDING price
// alerts, enforces the dedup window and per-user rate cap, and delivers
// through a channel fallback chain with a fixed retry schedule.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keeperwatch/pricewatch/internal/store"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

// retrySchedule is the fixed send-attempt offset sequence per channel: three
// attempts at 0s, 30s, 120s relative to the first attempt on that channel.
var retrySchedule = []time.Duration{0, 30 * time.Second, 120 * time.Second}

type dedupKey struct {
	watchID       uuid.UUID
	roundedPrice  int64 // price rounded to cents
}

type digestEntry struct {
	alertID         uuid.UUID
	productCode     string
	oldPrice        float64
	newPrice        float64
	discountPercent float64
}

// Dispatcher drains PENDING alerts from the relational store and delivers
// them, grouped per §4.9's policy.
type Dispatcher struct {
	store        *store.Store
	channels     []Channel
	dedupWindow  time.Duration
	perUserCap   int
	pollInterval time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	dedupCache map[dedupKey]time.Time      // fast-path skip; authoritative check is store.HasRecentSentAlert
	hourStart  map[uuid.UUID]time.Time     // current rate-limit window start, per user
	hourCount  map[uuid.UUID]int           // sends within the current window, per user
	digests    map[uuid.UUID][]digestEntry // queued entries awaiting the next hour boundary
	wg         sync.WaitGroup
}

// New builds a Dispatcher with the default channel fallback chain
// (email, messaging, webhook), skipping unavailable channels per user.
func New(st *store.Store, dedupWindow time.Duration, perUserCap int, logger *slog.Logger) *Dispatcher {
	logger = logger.With("component", "alerts.dispatcher")
	return &Dispatcher{
		store: st,
		channels: []Channel{
			NewEmailChannel(logger),
			NewMessagingChannel(logger),
			NewWebhookChannel(logger),
		},
		dedupWindow:  dedupWindow,
		perUserCap:   perUserCap,
		pollInterval: 5 * time.Second,
		logger:       logger,
		dedupCache:   make(map[dedupKey]time.Time),
		hourStart:    make(map[uuid.UUID]time.Time),
		hourCount:    make(map[uuid.UUID]int),
		digests:      make(map[uuid.UUID][]digestEntry),
	}
}

// Run polls for PENDING alerts and flushes due digests until ctx is
// cancelled, then waits for in-flight deliveries to finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	poll := time.NewTicker(d.pollInterval)
	defer poll.Stop()
	housekeep := time.NewTicker(time.Minute)
	defer housekeep.Stop()

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			return ctx.Err()
		case <-poll.C:
			d.drainPending(ctx)
		case <-housekeep.C:
			d.flushDueDigests(ctx)
			d.evictExpiredDedupEntries()
		}
	}
}

func (d *Dispatcher) drainPending(ctx context.Context) {
	pending, err := d.store.PendingAlerts()
	if err != nil {
		d.logger.Warn("failed to load pending alerts", "error", err)
		return
	}
	for _, alert := range pending {
		alert := alert
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.process(ctx, alert)
		}()
	}
}

func (d *Dispatcher) process(ctx context.Context, alert types.PriceAlert) {
	triggered, _ := alert.TriggeredPrice.Float64()

	if d.isDuplicate(alert.WatchID, triggered) {
		d.logger.Info("duplicate blocked", "watch", alert.WatchID, "triggered_price", triggered)
		if err := d.store.MarkAlertFailed(alert.ID); err != nil {
			d.logger.Warn("failed to mark duplicate alert failed", "alert", alert.ID, "error", err)
		}
		return
	}

	watch, err := d.store.GetWatchByID(alert.WatchID)
	if err != nil {
		d.logger.Warn("failed to load watch for alert", "alert", alert.ID, "error", err)
		return
	}
	user, err := d.store.GetUser(watch.UserID)
	if err != nil {
		d.logger.Warn("failed to load user for alert", "alert", alert.ID, "error", err)
		return
	}

	if d.overRateCap(user.ID) {
		d.queueDigest(user.ID, alert, watch)
		return
	}

	d.deliver(ctx, alert, watch, user)
}

// centsKey rounds a price to the nearest cent using fixed-point decimal
// arithmetic, forming the comparable key in dedupKey (spec §4.9: "identical
// (watch, triggered_price rounded to cent)").
func centsKey(price float64) int64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// isDuplicate checks the in-memory fast path first, falling back to the
// authoritative persisted check.
func (d *Dispatcher) isDuplicate(watchID uuid.UUID, triggeredPrice float64) bool {
	key := dedupKey{watchID: watchID, roundedPrice: centsKey(triggeredPrice)}

	d.mu.Lock()
	if expiry, ok := d.dedupCache[key]; ok && time.Now().Before(expiry) {
		d.mu.Unlock()
		return true
	}
	d.mu.Unlock()

	dup, err := d.store.HasRecentSentAlert(watchID, triggeredPrice, d.dedupWindow)
	if err != nil {
		d.logger.Warn("dedup check failed, proceeding without it", "watch", watchID, "error", err)
		return false
	}
	return dup
}

func (d *Dispatcher) rememberSent(watchID uuid.UUID, triggeredPrice float64) {
	key := dedupKey{watchID: watchID, roundedPrice: centsKey(triggeredPrice)}
	d.mu.Lock()
	d.dedupCache[key] = time.Now().Add(d.dedupWindow)
	d.mu.Unlock()
}

func (d *Dispatcher) evictExpiredDedupEntries() {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, expiry := range d.dedupCache {
		if now.After(expiry) {
			delete(d.dedupCache, k)
		}
	}
}

// overRateCap reports whether userID has already reached the per-hour
// delivery cap, rolling the window forward when an hour has elapsed.
func (d *Dispatcher) overRateCap(userID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	start, ok := d.hourStart[userID]
	if !ok || time.Since(start) >= time.Hour {
		d.hourStart[userID] = time.Now()
		d.hourCount[userID] = 0
		return false
	}
	return d.hourCount[userID] >= d.perUserCap
}

func (d *Dispatcher) recordSend(userID uuid.UUID) {
	d.mu.Lock()
	d.hourCount[userID]++
	d.mu.Unlock()
}

func (d *Dispatcher) queueDigest(userID uuid.UUID, alert types.PriceAlert, watch types.WatchedProduct) {
	old, _ := alert.OldPrice.Float64()
	newP, _ := alert.NewPrice.Float64()
	discount, _ := alert.DiscountPercent.Float64()

	d.mu.Lock()
	d.digests[userID] = append(d.digests[userID], digestEntry{
		alertID:         alert.ID,
		productCode:     watch.ProductCode,
		oldPrice:        old,
		newPrice:        newP,
		discountPercent: discount,
	})
	d.mu.Unlock()

	d.logger.Info("alert queued for hourly digest", "user", userID, "alert", alert.ID, "watch", watch.ID)
}

// flushDueDigests delivers exactly one digest alert per user whose
// rate-limit window has reached its hour boundary, then marks every
// underlying alert row SENT, or FAILED when no channel accepted the digest.
// A user's queue is left untouched until their
// window boundary arrives, so a housekeeping tick within the same hour
// never sends a second digest for it (spec §4.9: "a single digest alert").
func (d *Dispatcher) flushDueDigests(ctx context.Context) {
	due := d.collectDueDigests()

	for userID, entries := range due {
		if len(entries) == 0 {
			continue
		}
		user, err := d.store.GetUser(userID)
		if err != nil {
			d.logger.Warn("failed to load user for digest", "user", userID, "error", err)
			continue
		}

		body := formatDigest(entries)
		sent := false
		for _, ch := range d.orderedChannels(user) {
			if err := ch.Send(ctx, user, "price drop digest", body); err == nil {
				sent = true
				d.logger.Info("digest delivered", "user", userID, "channel", ch.Name(), "entries", len(entries))
				break
			}
		}

		for _, e := range entries {
			if sent {
				if err := d.store.MarkAlertSent(e.alertID, "digest"); err != nil {
					d.logger.Warn("failed to mark digest alert sent", "alert", e.alertID, "error", err)
				}
			} else if err := d.store.MarkAlertFailed(e.alertID); err != nil {
				d.logger.Warn("failed to mark digest alert failed", "alert", e.alertID, "error", err)
			}
		}
	}
}

// collectDueDigests pops and returns the queued digest entries for every
// user whose rate-limit window has reached its hour boundary
// (time.Since(hourStart) >= time.Hour), leaving every other user's queue in
// place for a later tick. hourStart itself is rolled forward lazily by the
// next overRateCap call for that user, which is also what allows new
// digest entries to accumulate again for a fresh window.
func (d *Dispatcher) collectDueDigests() map[uuid.UUID][]digestEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	due := make(map[uuid.UUID][]digestEntry)
	for userID, entries := range d.digests {
		if len(entries) == 0 {
			continue
		}
		start, ok := d.hourStart[userID]
		if !ok || time.Since(start) < time.Hour {
			continue
		}
		due[userID] = entries
		delete(d.digests, userID)
	}
	return due
}

func formatDigest(entries []digestEntry) string {
	body := fmt.Sprintf("%d price drops this hour:\n", len(entries))
	for _, e := range entries {
		body += fmt.Sprintf("- %s: %.2f -> %.2f (%.1f%% off)\n", e.productCode, e.oldPrice, e.newPrice, e.discountPercent)
	}
	return body
}

// orderedChannels returns the channel fallback order for user: their
// declared primary first (if available), then email, messaging, webhook,
// skipping any channel without an address and never repeating one already
// placed first.
func (d *Dispatcher) orderedChannels(user types.User) []Channel {
	var ordered []Channel
	seen := make(map[string]bool)

	if user.PrimaryChannel != "" {
		for _, ch := range d.channels {
			if ch.Name() == user.PrimaryChannel && ch.Available(user) {
				ordered = append(ordered, ch)
				seen[ch.Name()] = true
				break
			}
		}
	}
	for _, ch := range d.channels {
		if seen[ch.Name()] || !ch.Available(user) {
			continue
		}
		ordered = append(ordered, ch)
		seen[ch.Name()] = true
	}
	return ordered
}

// deliver attempts each channel in order, three send attempts per channel at
// the fixed retry offsets, falling through on exhaustion. Sets the alert's
// terminal state on first success or once every channel is exhausted.
func (d *Dispatcher) deliver(ctx context.Context, alert types.PriceAlert, watch types.WatchedProduct, user types.User) {
	subject := fmt.Sprintf("price drop: %s", watch.ProductCode)
	triggered, _ := alert.TriggeredPrice.Float64()
	target, _ := alert.TargetPrice.Float64()
	body := fmt.Sprintf("%s dropped to %.2f (target %.2f)", watch.ProductCode, triggered, target)

	for _, ch := range d.orderedChannels(user) {
		if d.tryChannel(ctx, ch, user, subject, body) {
			if err := d.store.MarkAlertSent(alert.ID, ch.Name()); err != nil {
				d.logger.Warn("failed to mark alert sent", "alert", alert.ID, "error", err)
			}
			d.recordSend(user.ID)
			d.rememberSent(alert.WatchID, triggered)
			return
		}
	}

	d.logger.Warn("all channels exhausted for alert", "alert", alert.ID, "user", user.ID)
	if err := d.store.MarkAlertFailed(alert.ID); err != nil {
		d.logger.Warn("failed to mark alert failed", "alert", alert.ID, "error", err)
	}
}

// SendDealReport formats a daily deal-report digest and delivers it through
// the same channel fallback chain and retry schedule as a price alert.
// §4.8's daily-report step hands its result to the dispatcher; unlike a
// price alert there is no PENDING row to drain, so the caller (the
// scheduler) invokes this directly and marks its own DealReport sent on a
// true return.
func (d *Dispatcher) SendDealReport(ctx context.Context, user types.User, deals []types.CollectedDeal) bool {
	if len(deals) == 0 {
		return false
	}
	subject := fmt.Sprintf("%d deals matching your filter", len(deals))
	body := formatDealReport(deals)

	for _, ch := range d.orderedChannels(user) {
		if d.tryChannel(ctx, ch, user, subject, body) {
			d.logger.Info("deal report delivered", "user", user.ID, "channel", ch.Name(), "deals", len(deals))
			return true
		}
	}
	d.logger.Warn("all channels exhausted for deal report", "user", user.ID)
	return false
}

func formatDealReport(deals []types.CollectedDeal) string {
	body := fmt.Sprintf("%d deals matched your filter today:\n", len(deals))
	for _, deal := range deals {
		current, _ := deal.CurrentPrice.Float64()
		discount, _ := deal.DiscountPercent.Float64()
		body += fmt.Sprintf("- %s: %.2f (%.1f%% off, score %.1f)\n", deal.Title, current, discount, deal.DealScore)
	}
	return body
}

// tryChannel attempts delivery at the absolute offsets in retrySchedule
// (0s, 30s, 120s from the first attempt), returning on first success.
func (d *Dispatcher) tryChannel(ctx context.Context, ch Channel, user types.User, subject, body string) bool {
	var elapsed time.Duration
	for i, offset := range retrySchedule {
		if wait := offset - elapsed; wait > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(wait):
			}
		}
		elapsed = offset

		if err := ch.Send(ctx, user, subject, body); err == nil {
			return true
		} else {
			d.logger.Warn("channel send attempt failed", "channel", ch.Name(), "attempt", i+1, "error", err)
		}
	}
	return false
}
