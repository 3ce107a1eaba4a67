package transform

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfMagic is the byte sequence every well-formed PDF begins with.
var pdfMagic = []byte("%PDF-")

// LooksLikePDF reports whether data begins with the PDF magic bytes
// (§4.1 "downloads the PDF with a header check for %PDF- magic bytes").
func LooksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// ShouldParsePDF reports whether a raw record is a candidate for PDF
// text/OCR extraction rather than already carrying structured fields:
// asset_type is the placeholder "PDF DISCLOSED FILING", or the ticker is
// the sentinel "N/A", or the asset name mentions a scanned PDF/PTR link —
// and only when the associated URL is a Senate EFD link (§4.1).
func ShouldParsePDF(assetType, assetTicker, assetName, pdfURL string) bool {
	if !strings.Contains(pdfURL, "efdsearch.senate.gov") {
		return false
	}
	lowerName := strings.ToLower(assetName)
	return assetType == "PDF DISCLOSED FILING" ||
		assetTicker == "N/A" ||
		strings.Contains(lowerName, "scanned pdf") ||
		strings.Contains(lowerName, "ptr_link")
}

var (
	pdfDatePattern     = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`)
	pdfTickerPattern   = regexp.MustCompile(`\b([A-Z]{1,5})\b|\(([A-Z]{1,5})\)`)
	pdfAmountPattern   = regexp.MustCompile(`\$[\d,]+(?:\s*-\s*\$[\d,]+)?|Over \$[\d,]+`)
	pdfTextOperator    = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|TJ)`)
	pdfAssetNamePattern = regexp.MustCompile(`([A-Z][A-Za-z0-9.,&'\-]*(?:\s+[A-Z0-9&][A-Za-z0-9.,&'\-]*)*)\s*\(([A-Z]{1,5})\)`)
)

var pdfTransactionKeywords = map[string]*regexp.Regexp{
	"purchase": regexp.MustCompile(`(?i)\b(purchase|bought|buy|acquired)\b`),
	"sale":     regexp.MustCompile(`(?i)\b(sale|sold|sell|disposed)\b`),
	"exchange": regexp.MustCompile(`(?i)\b(exchange|swap)\b`),
}

// ExtractedTransaction is one transaction line recovered from a disclosure
// PDF's text.
type ExtractedTransaction struct {
	TransactionDate string
	Ticker          string
	AssetName       string
	TransactionType string
	AmountText      string
	ExtractionMethod string
}

// SenatePDFParser parses already-downloaded Senate EFD PDF disclosures, mirroring
// the original extractor's text-scan heuristics with a structural-validity
// check via pdfcpu rather than a commercial OCR/text-extraction engine.
type SenatePDFParser struct{}

// Parse validates data as a PDF and attempts to recover transaction rows
// from whatever literal text its content streams expose via simple Tj/TJ
// operators. Most real-world Senate PDFs are scanned images or use
// compressed content streams this lightweight scan cannot see into; in that
// case Parse returns a single placeholder transaction, matching the
// original's documented fallback when no capable text-extraction backend is
// available.
func (SenatePDFParser) Parse(data []byte) ([]ExtractedTransaction, error) {
	if !LooksLikePDF(data) {
		return nil, fmt.Errorf("transform: not a PDF (missing %%PDF- header)")
	}

	if err := validatePDFStructure(data); err != nil {
		return []ExtractedTransaction{placeholderTransaction()}, nil
	}

	text := extractLiteralText(data)
	transactions := extractTransactionsFromText(text)
	if len(transactions) == 0 {
		return []ExtractedTransaction{placeholderTransaction()}, nil
	}
	return transactions, nil
}

func placeholderTransaction() ExtractedTransaction {
	return ExtractedTransaction{ExtractionMethod: "pdf_placeholder"}
}

// validatePDFStructure writes data to a temp file and asks pdfcpu to report
// a page count, purely as a well-formedness check before attempting text
// extraction.
func validatePDFStructure(data []byte) error {
	tmp, err := os.CreateTemp("", "polidisc-efd-*.pdf")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if _, err := api.PageCountFile(path); err != nil {
		return fmt.Errorf("pdfcpu page count: %w", err)
	}
	return nil
}

// ExtractText exposes the literal Tj/TJ-drawn strings pulled from a PDF's
// content streams for callers that layer their own token classification on
// top of Parse's generic heuristics (e.g. the House adapter's P/S/E
// standalone-token scan, §4.1).
func ExtractText(data []byte) string {
	return extractLiteralText(data)
}

// extractLiteralText pulls out the literal strings drawn via Tj/TJ
// operators, which is only meaningful for PDFs whose content streams are
// not Flate-compressed.
func extractLiteralText(data []byte) string {
	matches := pdfTextOperator.FindAllSubmatch(data, -1)
	var b strings.Builder
	for _, m := range matches {
		b.Write(m[1])
		b.WriteByte(' ')
	}
	return b.String()
}

// ExtractTransactionsFromText runs the same heuristics Parse uses on PDF
// text against arbitrary plain text, for callers whose source document isn't
// itself a PDF (e.g. the Senate adapter's HTML PTR pages, §4.1).
func ExtractTransactionsFromText(text string) []ExtractedTransaction {
	return extractTransactionsFromText(text)
}

func extractTransactionsFromText(text string) []ExtractedTransaction {
	dates := pdfDatePattern.FindAllString(text, -1)
	amounts := pdfAmountPattern.FindAllString(text, -1)

	txType := ""
	for kind, re := range pdfTransactionKeywords {
		if re.MatchString(text) {
			txType = kind
			break
		}
	}
	if txType == "" || len(dates) == 0 {
		return nil
	}

	ticker := ""
	assetName := ""
	if nameMatch := pdfAssetNamePattern.FindStringSubmatch(text); nameMatch != nil {
		assetName = strings.TrimSpace(nameMatch[1])
		ticker = nameMatch[2]
	} else if tickerMatch := pdfTickerPattern.FindStringSubmatch(text); tickerMatch != nil {
		if tickerMatch[1] != "" {
			ticker = tickerMatch[1]
		} else {
			ticker = tickerMatch[2]
		}
	}

	amount := ""
	if len(amounts) > 0 {
		amount = amounts[0]
	}

	return []ExtractedTransaction{{
		TransactionDate:  dates[0],
		Ticker:           ticker,
		AssetName:        assetName,
		TransactionType:  txType,
		AmountText:       amount,
		ExtractionMethod: "text_scan",
	}}
}
