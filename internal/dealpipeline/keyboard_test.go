package dealpipeline

import (
	"testing"

	"github.com/keeperwatch/pricewatch/pkg/types"
)

func TestIsKeyboardDealMatchesKeyword(t *testing.T) {
	t.Parallel()

	tests := []string{
		"Mechanische Tastatur RGB",
		"Clavier mécanique pour gamers",
		"Teclado Mecánico Retroiluminado",
		"Tastiera meccanica da gioco",
		"Compact 60% Keyboard",
	}
	for _, title := range tests {
		if !IsKeyboardDeal(title) {
			t.Errorf("IsKeyboardDeal(%q) = false, want true", title)
		}
	}
}

func TestIsKeyboardDealMatchesBrandWithoutKeyword(t *testing.T) {
	t.Parallel()

	if !IsKeyboardDeal("Logitech MX Master Combo") {
		t.Error("expected brand-only match for Logitech")
	}
}

func TestIsKeyboardDealRejectsUnrelated(t *testing.T) {
	t.Parallel()

	if IsKeyboardDeal("Stainless Steel Water Bottle") {
		t.Error("did not expect a match for an unrelated product")
	}
}

func TestAnnotateLayoutPrefersExplicitSignal(t *testing.T) {
	t.Parallel()

	if got := AnnotateLayout("Keyboard QWERTZ Edition", types.DomainFR); got != LayoutQWERTZ {
		t.Errorf("got %v, want LayoutQWERTZ (explicit signal overrides market inference)", got)
	}
}

func TestAnnotateLayoutInfersFromMarket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		domain types.Domain
		want   Layout
	}{
		{types.DomainDE, LayoutQWERTZ},
		{types.DomainFR, LayoutAZERTY},
		{types.DomainIT, LayoutQWERTYIT},
		{types.DomainES, LayoutUnknown},
	}
	for _, tt := range tests {
		if got := AnnotateLayout("Plain Keyboard", tt.domain); got != tt.want {
			t.Errorf("AnnotateLayout(domain=%v) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}
