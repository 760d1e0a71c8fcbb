package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestSystemUserIDIsReservedZero(t *testing.T) {
	t.Parallel()

	if SystemUserID != uuid.Nil {
		t.Errorf("SystemUserID = %v, want all-zero uuid", SystemUserID)
	}
}

func TestInScopeDomainsAreTheFiveEUMarketplaces(t *testing.T) {
	t.Parallel()

	want := map[Domain]bool{
		DomainDE: true,
		DomainUK: true,
		DomainFR: true,
		DomainIT: true,
		DomainES: true,
	}

	if len(InScopeDomains) != len(want) {
		t.Fatalf("InScopeDomains has %d entries, want %d", len(InScopeDomains), len(want))
	}
	for _, d := range InScopeDomains {
		if !want[d] {
			t.Errorf("unexpected domain %v in InScopeDomains", d)
		}
	}
	for _, d := range InScopeDomains {
		if d == DomainUS {
			t.Errorf("US domain should not be in-scope")
		}
	}
}

func TestWatchStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status WatchStatus
		want   string
	}{
		{WatchActive, "ACTIVE"},
		{WatchPaused, "PAUSED"},
		{WatchInactive, "INACTIVE"},
	}
	for _, tt := range tests {
		if string(tt.status) != tt.want {
			t.Errorf("WatchStatus = %q, want %q", tt.status, tt.want)
		}
	}
}
