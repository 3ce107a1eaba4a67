package transform

import "strings"

// InferAssetType classifies an asset by keyword when no asset_type was
// supplied by the source, following §4.3 step 4's keyword table.
func InferAssetType(assetName, assetTicker string) string {
	lower := strings.ToLower(assetName)

	switch {
	case containsAny(lower, "fund", "mutual", "etf", "index"):
		if containsAny(lower, "etf", "exchange traded") {
			return "etf"
		}
		return "mutual_fund"
	case containsAny(lower, "bond", "treasury", "note", "bill"):
		return "bond"
	case containsAny(lower, "option", "call", "put"):
		return "option"
	case containsAny(lower, "crypto", "bitcoin", "ethereum"):
		return "cryptocurrency"
	case assetTicker != "":
		return "stock"
	default:
		return "stock"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// canonicalTransactionTypes is the passthrough set of already-canonical
// transaction types the normalizer recognizes without further mapping.
var canonicalTransactionTypes = map[string]bool{
	"purchase": true, "sale": true, "exchange": true,
	"option_purchase": true, "option_sale": true, "option_exercise": true,
}

// NormalizeTransactionType lowercases and passes through a transaction type
// that is already canonical, falling back to the House single-letter/word
// token table (§4.1) for raw extracted text.
func NormalizeTransactionType(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if canonicalTransactionTypes[lower] {
		return lower
	}
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "P", "PURCHASE", "BOUGHT", "BUY":
		return "purchase"
	case "S", "SALE", "SOLD", "SELL":
		return "sale"
	case "E", "EXCHANGE":
		return "exchange"
	}
	return lower
}
