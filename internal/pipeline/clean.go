package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
)

// dateFormats is the ordered list of layouts CleanStage tries when parsing a
// raw date string; the first that succeeds wins (§4.3.2 step 4).
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05",
}

// transactionSynonyms maps raw transaction-type text to its canonical form
// before validity is checked (§4.3.2 step 5).
var transactionSynonyms = map[string]string{
	"buy": "purchase", "bought": "purchase",
	"sell": "sale", "sold": "sale",
	"swap": "exchange", "trade": "exchange",
	"option buy": "option_purchase", "option sell": "option_sale",
}

var validTransactionTypes = map[string]bool{
	"purchase": true, "sale": true, "exchange": true,
	"option_purchase": true, "option_sale": true, "option_exercise": true,
}

var collapseWhitespace = regexp.MustCompile(`\s+`)

// CleanStage validates and normalizes raw records into CleanedDisclosure
// rows (§4.3.2).
type CleanStage struct {
	Opts Options
}

func (CleanStage) Name() string { return "clean" }

func (c CleanStage) Process(ctx context.Context, data []model.RawDisclosure, pctx *model.PipelineContext) model.PipelineResult[model.CleanedDisclosure] {
	metrics := model.PipelineMetrics{RecordsInput: len(data)}
	started := time.Now()

	seen := map[string]bool{}
	var out []model.CleanedDisclosure
	for _, raw := range data {
		if err := checkCancelled(ctx); err != nil {
			metrics.Errors = append(metrics.Errors, err.Error())
			metrics.DurationSeconds = time.Since(started).Seconds()
			return model.PipelineResult[model.CleanedDisclosure]{Status: model.StatusFailed, StageName: c.Name(), Metrics: metrics, CollectedErrors: []error{err}}
		}

		cleaned, err := c.cleanOne(raw)
		if err != nil {
			metrics.RecordsSkipped++
			metrics.Warnings = append(metrics.Warnings, err.Error())
			continue
		}

		if c.Opts.RemoveDuplicates {
			key := dedupKey(cleaned.PoliticianName, cleaned.TransactionDate, cleaned.AssetName, cleaned.TransactionType, cleaned.AmountText)
			if seen[key] {
				metrics.RecordsSkipped++
				continue
			}
			seen[key] = true
		}

		out = append(out, cleaned)
	}

	metrics.RecordsOutput = len(out)
	metrics.RecordsFailed = metrics.RecordsSkipped
	metrics.DurationSeconds = time.Since(started).Seconds()
	return model.PipelineResult[model.CleanedDisclosure]{
		Status:    statusFor(len(out), metrics.RecordsFailed),
		StageName: c.Name(),
		Data:      out,
		Metrics:   metrics,
	}
}

func (c CleanStage) cleanOne(raw model.RawDisclosure) (model.CleanedDisclosure, error) {
	politicianName := cleanString(stringField(raw.RawData, "politician_name", "full_name", "name"))
	assetName := cleanString(stringField(raw.RawData, "asset_name"))
	transactionTypeRaw := cleanString(stringField(raw.RawData, "transaction_type"))
	transactionDateRaw := stringField(raw.RawData, "transaction_date")
	disclosureDateRaw := stringField(raw.RawData, "disclosure_date")

	if politicianName == "" || assetName == "" || transactionTypeRaw == "" || transactionDateRaw == "" || disclosureDateRaw == "" {
		return model.CleanedDisclosure{}, fmt.Errorf("%w: one of politician_name/asset_name/transaction_type/transaction_date/disclosure_date is empty", ErrMissingRequiredField)
	}

	transactionDate, ok := parseDate(transactionDateRaw)
	if !ok {
		return model.CleanedDisclosure{}, fmt.Errorf("%w: transaction_date %q", ErrUnparseableDate, transactionDateRaw)
	}
	disclosureDate, ok := parseDate(disclosureDateRaw)
	if !ok {
		return model.CleanedDisclosure{}, fmt.Errorf("%w: disclosure_date %q", ErrUnparseableDate, disclosureDateRaw)
	}

	transactionType := strings.ToLower(transactionTypeRaw)
	if mapped, ok := transactionSynonyms[transactionType]; ok {
		transactionType = mapped
	}
	if c.Opts.StrictValidation && !validTransactionTypes[transactionType] {
		return model.CleanedDisclosure{}, fmt.Errorf("%w: %q", ErrInvalidTransactionType, transactionType)
	}

	return model.CleanedDisclosure{
		PoliticianName:   politicianName,
		TransactionDate:  transactionDate,
		DisclosureDate:   disclosureDate,
		AssetName:        assetName,
		TransactionType:  transactionType,
		AssetTicker:      cleanString(stringField(raw.RawData, "asset_ticker", "ticker")),
		AssetType:        cleanString(stringField(raw.RawData, "asset_type")),
		AmountText:       cleanString(stringField(raw.RawData, "amount", "amount_text", "range")),
		Source:           raw.Source,
		SourceURL:        raw.SourceURL,
		SourceDocumentID: raw.SourceDocumentID,
		RawData:          raw.RawData,
	}, nil
}

func stringField(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// cleanString trims surrounding whitespace, strips embedded null bytes, and
// collapses internal whitespace runs to a single space.
func cleanString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	return collapseWhitespace.ReplaceAllString(s, " ")
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dedupKey(politicianName string, date time.Time, assetName, transactionType, amount string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.ToLower(politicianName), date.Format("2006-01-02"),
		strings.ToLower(assetName), transactionType, amount)))
	return hex.EncodeToString(h[:])
}
