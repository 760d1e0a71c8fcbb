package keepa

import "github.com/keeperwatch/pricewatch/pkg/types"

// domainHostnames maps a Keepa domain id to the per-country Amazon hostname
// used only for constructing product URLs. US is included even though
// operational scope is the five EU marketplaces (DE/UK/FR/IT/ES),
// since this client is a generic Keepa wrapper, not hard-restricted to the
// in-scope set; callers that must enforce scope use types.InScopeDomains.
var domainHostnames = map[types.Domain]string{
	types.DomainUS: "amazon.com",
	types.DomainUK: "amazon.co.uk",
	types.DomainDE: "amazon.de",
	types.DomainFR: "amazon.fr",
	types.DomainIT: "amazon.it",
	types.DomainES: "amazon.es",
}

// Hostname returns the Amazon hostname for a domain id, or "" if unknown.
func Hostname(d types.Domain) string {
	return domainHostnames[d]
}

// ProductURL builds a canonical product page URL for a product code on a domain.
func ProductURL(d types.Domain, productCode string) string {
	host := Hostname(d)
	if host == "" {
		return ""
	}
	return "https://" + host + "/dp/" + productCode
}
