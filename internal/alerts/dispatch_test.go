package alerts

import (
	"context"
	"errors"
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/keeperwatch/pricewatch/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChannel struct {
	name      string
	available bool
	results   []error // consumed in order across Send calls
	calls     int
}

func (f *fakeChannel) Name() string                  { return f.name }
func (f *fakeChannel) Available(u types.User) bool   { return f.available }
func (f *fakeChannel) Send(_ context.Context, _ types.User, _, _ string) error {
	if f.calls >= len(f.results) {
		return errors.New("no more canned results")
	}
	err := f.results[f.calls]
	f.calls++
	return err
}

func TestFormatDigest(t *testing.T) {
	t.Parallel()

	entries := []digestEntry{
		{productCode: "B07W6JN8V8", oldPrice: 50, newPrice: 40, discountPercent: 20},
		{productCode: "B08FC6D9WP", oldPrice: 30, newPrice: 25, discountPercent: 16.7},
	}
	body := formatDigest(entries)
	if body == "" {
		t.Fatal("expected non-empty digest body")
	}
	for _, code := range []string{"B07W6JN8V8", "B08FC6D9WP"} {
		if !contains(body, code) {
			t.Errorf("digest body missing product code %s: %s", code, body)
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestOrderedChannelsPrimaryFirst(t *testing.T) {
	t.Parallel()

	d := &Dispatcher{channels: []Channel{
		&fakeChannel{name: "email", available: true},
		&fakeChannel{name: "messaging", available: true},
		&fakeChannel{name: "webhook", available: true},
	}}
	user := types.User{PrimaryChannel: "webhook"}

	got := d.orderedChannels(user)
	if len(got) != 3 || got[0].Name() != "webhook" {
		t.Fatalf("expected webhook first, got %v", names(got))
	}
}

func TestOrderedChannelsSkipsUnavailable(t *testing.T) {
	t.Parallel()

	d := &Dispatcher{channels: []Channel{
		&fakeChannel{name: "email", available: false},
		&fakeChannel{name: "messaging", available: true},
		&fakeChannel{name: "webhook", available: false},
	}}
	user := types.User{}

	got := d.orderedChannels(user)
	if len(got) != 1 || got[0].Name() != "messaging" {
		t.Fatalf("expected only messaging, got %v", names(got))
	}
}

func names(chs []Channel) []string {
	out := make([]string, len(chs))
	for i, c := range chs {
		out[i] = c.Name()
	}
	return out
}

func TestTryChannelSucceedsOnFirstAttempt(t *testing.T) {
	t.Parallel()

	d := &Dispatcher{logger: testLogger()}
	ch := &fakeChannel{name: "email", results: []error{nil}}

	start := time.Now()
	ok := d.tryChannel(context.Background(), ch, types.User{}, "s", "b")
	if !ok {
		t.Fatal("expected success")
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected immediate success, took %v", elapsed)
	}
	if ch.calls != 1 {
		t.Errorf("calls = %d, want 1", ch.calls)
	}
}

func TestTryChannelExhaustsAllThreeAttempts(t *testing.T) {
	t.Parallel()

	oldSchedule := retrySchedule
	retrySchedule = []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond}
	defer func() { retrySchedule = oldSchedule }()

	d := &Dispatcher{logger: testLogger()}
	ch := &fakeChannel{name: "email", results: []error{errors.New("x"), errors.New("x"), errors.New("x")}}

	ok := d.tryChannel(context.Background(), ch, types.User{}, "s", "b")
	if ok {
		t.Fatal("expected failure after exhausting all attempts")
	}
	if ch.calls != 3 {
		t.Errorf("calls = %d, want 3", ch.calls)
	}
}

func TestOverRateCapReachedAfterPerUserCapSends(t *testing.T) {
	t.Parallel()

	d := New(nil, time.Hour, 2, testLogger())
	userID := types.SystemUserID // any fixed uuid works for this in-memory check

	if d.overRateCap(userID) {
		t.Fatal("fresh user should not be over cap")
	}
	d.recordSend(userID)
	d.recordSend(userID)
	if !d.overRateCap(userID) {
		t.Fatal("expected cap reached after perUserCap sends")
	}
}
