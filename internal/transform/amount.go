// Package transform implements C4: the ticker extractor, amount-range
// parser, and politician matcher the normalization stage uses to enrich a
// CleanedDisclosure into a NormalizedDisclosure.
package transform

import (
	"regexp"
	"strconv"
	"strings"
)

// StandardRanges are the ten canonical STOCK Act disclosure ranges, keyed
// by their exact display string (§4.4 "AmountParser").
var StandardRanges = map[string][2]*int64{
	"$1,001 - $15,000":             rangeOf(1001, 15000),
	"$15,001 - $50,000":            rangeOf(15001, 50000),
	"$50,001 - $100,000":           rangeOf(50001, 100000),
	"$100,001 - $250,000":          rangeOf(100001, 250000),
	"$250,001 - $500,000":          rangeOf(250001, 500000),
	"$500,001 - $1,000,000":        rangeOf(500001, 1000000),
	"$1,000,001 - $5,000,000":      rangeOf(1000001, 5000000),
	"$5,000,001 - $25,000,000":     rangeOf(5000001, 25000000),
	"$25,000,001 - $50,000,000":    rangeOf(25000001, 50000000),
	"Over $50,000,000":             {int64Ptr(50000001), nil},
}

func rangeOf(min, max int64) [2]*int64 {
	return [2]*int64{int64Ptr(min), int64Ptr(max)}
}

func int64Ptr(v int64) *int64 { return &v }

var (
	rangePattern = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)\s*[-–]\s*\$\s*([\d,]+(?:\.\d{2})?)`)
	overPattern  = regexp.MustCompile(`(?i)(?:over|above|>)\s*\$\s*([\d,]+(?:\.\d{2})?)`)
	underPattern = regexp.MustCompile(`(?i)(?:under|below|less than|<)\s*\$\s*([\d,]+(?:\.\d{2})?)`)
	singlePattern = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)`)
)

// AmountParser parses a disclosure's free-text amount into a
// (min, max, exact) tuple, at most one of max/exact populated.
type AmountParser struct{}

// Parse implements the parsing order specified in §4.4: exact standard-range
// match, then range regex, then "over", then "under", then a single dollar
// figure. An unparseable string returns all three results nil.
func (AmountParser) Parse(text string) (min, max, exact *int64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, nil
	}

	if r, ok := StandardRanges[text]; ok {
		return r[0], r[1], nil
	}

	if m := rangePattern.FindStringSubmatch(text); m != nil {
		minVal, minErr := parseDollarNumber(m[1])
		maxVal, maxErr := parseDollarNumber(m[2])
		if minErr == nil && maxErr == nil {
			return int64Ptr(minVal), int64Ptr(maxVal), nil
		}
	}

	if m := overPattern.FindStringSubmatch(text); m != nil {
		if v, err := parseDollarNumber(m[1]); err == nil {
			return int64Ptr(v), nil, nil
		}
	}

	if m := underPattern.FindStringSubmatch(text); m != nil {
		if v, err := parseDollarNumber(m[1]); err == nil {
			return nil, int64Ptr(v), nil
		}
	}

	if m := singlePattern.FindStringSubmatch(text); m != nil {
		if v, err := parseDollarNumber(m[1]); err == nil {
			return nil, nil, int64Ptr(v)
		}
	}

	return nil, nil, nil
}

func parseDollarNumber(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
