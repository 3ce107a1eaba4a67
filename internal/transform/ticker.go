package transform

import (
	"regexp"
	"strings"
)

var parenthesizedTicker = regexp.MustCompile(`\(([A-Z]{1,5})\)`)

// companyTickers is a curated company-name → ticker map for the handful of
// large-cap names that appear most often in disclosure filings without an
// explicit ticker. Matching is a case-insensitive substring check against
// asset_name, so "Apple Inc." and "AAPL - Apple Inc" both match "apple".
var companyTickers = map[string]string{
	"apple":      "AAPL",
	"microsoft":  "MSFT",
	"amazon":     "AMZN",
	"alphabet":   "GOOGL",
	"google":     "GOOGL",
	"tesla":      "TSLA",
	"nvidia":     "NVDA",
	"berkshire":  "BRK.B",
	"jpmorgan":   "JPM",
	"jp morgan":  "JPM",
	"exxon":      "XOM",
	"walmart":    "WMT",
	"disney":     "DIS",
	"netflix":    "NFLX",
	"meta":       "META",
	"facebook":   "META",
}

// RebrandMap canonicalizes a ticker that changed after a corporate rebrand
// to its current symbol (§4.4, §8 "Ticker canonicalization").
var RebrandMap = map[string]string{
	"FB":    "META",
	"TWTR":  "X",
	"ATVI":  "MSFT",
	"DISCA": "WBD",
	"VIAC":  "PARA",
	"ANTM":  "ELV",
}

// TickerExtractor recovers a ticker symbol from free-text asset names.
type TickerExtractor struct{}

// Extract tries, in order: a parenthesized ticker, the curated company map,
// then returns "" if nothing matched. The caller is responsible for
// canonicalizing the result through RebrandMap.
func (TickerExtractor) Extract(assetName string) string {
	if m := parenthesizedTicker.FindStringSubmatch(assetName); m != nil {
		return m[1]
	}

	lower := strings.ToLower(assetName)
	for company, ticker := range companyTickers {
		if strings.Contains(lower, company) {
			return ticker
		}
	}

	return ""
}

// Canonicalize maps ticker through RebrandMap if it names an old symbol,
// otherwise returns it unchanged.
func Canonicalize(ticker string) string {
	if next, ok := RebrandMap[strings.ToUpper(ticker)]; ok {
		return next
	}
	return ticker
}
