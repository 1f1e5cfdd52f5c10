// Package domains maps page hostnames to per-site scraping hints.
package domains

import (
	"sort"
	"strings"
)

// Config carries the scraping hints for one retailer.
type Config struct {
	Name string
	// tried in order, first element that yields text wins
	PriceSelectors []string
	// cookie/consent overlay dismissal candidates, tried in order
	ConsentSelectors []string
	// if set, the page is given time to render this selector before
	// the price selectors run
	WaitSelector string
}

// Registry is an immutable hostname -> Config mapping, loaded once at
// process start and shared read-only from then on.
type Registry map[string]Config

// Default returns the built-in retailer configs.
func Default() Registry {
	return Registry{
		"www.amazon.com": {
			Name:             "amazon",
			PriceSelectors:   []string{"span.a-offscreen", "span.a-price-whole"},
			ConsentSelectors: []string{"#sp-cc-accept", "input#sp-cc-accept"},
			WaitSelector:     "span.a-offscreen",
		},
		"www.bestbuy.com": {
			Name:             "bestbuy",
			PriceSelectors:   []string{"div.priceView-hero-price span"},
			ConsentSelectors: []string{"button#onetrust-accept-btn-handler"},
			WaitSelector:     "div.priceView-hero-price",
		},
		"www.walmart.com": {
			Name:             "walmart",
			PriceSelectors:   []string{"span[itemprop='price']", "span[data-automation-id='product-price']"},
			ConsentSelectors: []string{"button#accept-choices"},
		},
		"www.ebay.com": {
			Name:             "ebay",
			PriceSelectors:   []string{"div.x-price-primary span.ux-textspans"},
			ConsentSelectors: []string{"button#gdpr-banner-accept"},
		},
	}
}

// Lookup resolves a hostname to its config. Exact matches win; failing
// that, hostnames with a subdomain fall back to the first registered key
// (in sorted order, so the fallback is deterministic) ending with the
// hostname's last two labels. This is a rough eTLD+1 approximation, not
// a public-suffix-list implementation, so multi-label suffixes like
// .co.uk will resolve by their last two labels only.
func (r Registry) Lookup(hostname string) (Config, bool) {
	if cfg, ok := r[hostname]; ok {
		return cfg, true
	}

	parts := strings.Split(hostname, ".")
	if len(parts) <= 2 {
		return Config{}, false
	}
	root := strings.Join(parts[len(parts)-2:], ".")

	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasSuffix(key, root) {
			return r[key], true
		}
	}
	return Config{}, false
}
