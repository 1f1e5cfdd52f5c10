// Package priceparse pulls a price and currency out of arbitrary page text.
//
// Detection of the currency symbol and of the numeric amount are
// independent of each other: junk text can contain a lone symbol, and
// a symbol-less snippet can still carry a parseable number.
package priceparse

import (
	"regexp"
	"strconv"
	"strings"
)

// currency symbols recognized in raw text, checked in order.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
}

// first number-like token: either grouped thousands (comma or space
// separated) or a plain integer, with an optional 1-2 digit fraction.
var numberPattern = regexp.MustCompile(`[0-9]{1,3}(?:[,\s][0-9]{3})*(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?`)

// MaxReasonableAmount rejects junk matches like phone numbers and SKUs.
const MaxReasonableAmount = 1_000_000

// Extract scans text for a currency symbol and a price-like number.
// A nil amount means no parseable in-bounds number was found; currency
// is the ISO code of the first recognized symbol, or "" if none.
func Extract(text string) (*float64, string) {
	if text == "" {
		return nil, ""
	}

	currency := ""
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			currency = c.code
			break
		}
	}

	match := numberPattern.FindString(text)
	if match == "" {
		return nil, currency
	}

	numeric := strings.NewReplacer(",", "", " ", "", "\t", "", "\n", "").Replace(match)
	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return nil, currency
	}
	if value <= 0 || value > MaxReasonableAmount {
		return nil, currency
	}

	return &value, currency
}

// NormalizeToUSD converts amount into USD using the supplied rate table.
// A missing, zero or negative rate yields nil: fx tables come from the
// job payload and may well be incomplete, that is data quality, not an
// error.
func NormalizeToUSD(amount *float64, currency string, rates map[string]float64) *float64 {
	if amount == nil {
		return nil
	}
	if currency == "" || strings.EqualFold(currency, "USD") {
		return amount
	}

	rate, ok := lookupRate(currency, rates)
	if !ok || rate <= 0 {
		return nil
	}
	usd := *amount * rate
	return &usd
}

func lookupRate(currency string, rates map[string]float64) (float64, bool) {
	if rate, ok := rates[strings.ToUpper(currency)]; ok {
		return rate, true
	}
	for code, rate := range rates {
		if strings.EqualFold(code, currency) {
			return rate, true
		}
	}
	return 0, false
}
