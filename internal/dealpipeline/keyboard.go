package dealpipeline

import (
	"strings"

	"github.com/keeperwatch/pricewatch/pkg/types"
)

// keyboardKeywords are lowercased substrings of a title that mark it as a
// keyboard product across the five EU marketplaces' languages.
var keyboardKeywords = []string{
	"tastatur", "keyboard", "clavier", "teclado", "tastiera",
	"qwertz", "azerty", "mechanisch", "keychron", "ducky",
}

// keyboardBrands is the whitelist of brands that qualify a deal even
// without a keyword match in the title.
var keyboardBrands = []string{
	"logitech", "cherry", "corsair", "razer", "keychron", "ducky",
	"steelseries", "glorious", "akko", "varmilo",
}

// IsKeyboardDeal reports whether a deal's title contains a keyboard keyword
// or the name of a whitelisted brand.
func IsKeyboardDeal(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keyboardKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, brand := range keyboardBrands {
		if strings.Contains(lower, brand) {
			return true
		}
	}
	return false
}

// Layout is a keyboard physical layout.
type Layout string

const (
	LayoutQWERTZ  Layout = "QWERTZ"
	LayoutAZERTY  Layout = "AZERTY"
	LayoutQWERTYIT Layout = "QWERTY-IT"
	LayoutUnknown Layout = ""
)

// AnnotateLayout returns the explicit layout signal in the title if present,
// otherwise infers it from the marketplace domain.
func AnnotateLayout(title string, domain types.Domain) Layout {
	upper := strings.ToUpper(title)
	switch {
	case strings.Contains(upper, "QWERTZ"):
		return LayoutQWERTZ
	case strings.Contains(upper, "AZERTY"):
		return LayoutAZERTY
	case strings.Contains(upper, "QWERTY-IT"):
		return LayoutQWERTYIT
	}

	switch domain {
	case types.DomainDE:
		return LayoutQWERTZ
	case types.DomainFR:
		return LayoutAZERTY
	case types.DomainIT:
		return LayoutQWERTYIT
	default:
		return LayoutUnknown
	}
}
