package transform

import "testing"

func TestLooksLikePDF(t *testing.T) {
	if !LooksLikePDF([]byte("%PDF-1.4\n...")) {
		t.Fatal("expected %PDF- prefixed bytes to be recognized as a PDF")
	}
	if LooksLikePDF([]byte("not a pdf")) {
		t.Fatal("expected non-PDF bytes to be rejected")
	}
}

func TestShouldParsePDF(t *testing.T) {
	senateURL := "https://efdsearch.senate.gov/search/view/ptr/abc/"
	cases := []struct {
		name                                 string
		assetType, assetTicker, assetName, url string
		want                                 bool
	}{
		{"placeholder asset type on senate link", "PDF DISCLOSED FILING", "", "", senateURL, true},
		{"N/A ticker on senate link", "", "N/A", "", senateURL, true},
		{"scanned pdf mention on senate link", "", "", "see scanned PDF", senateURL, true},
		{"ptr_link mention on senate link", "", "", "ptr_link attached", senateURL, true},
		{"ordinary row on senate link", "shareholding", "AAPL", "Apple Inc", senateURL, false},
		{"placeholder asset type off senate domain", "PDF DISCLOSED FILING", "", "", "https://example.com/x", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ShouldParsePDF(c.assetType, c.assetTicker, c.assetName, c.url); got != c.want {
				t.Fatalf("ShouldParsePDF() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestSenatePDFParserRejectsNonPDF(t *testing.T) {
	_, err := (SenatePDFParser{}).Parse([]byte("plain text, not a pdf"))
	if err == nil {
		t.Fatal("expected an error for data missing the %PDF- header")
	}
}

func TestSenatePDFParserFallsBackToPlaceholder(t *testing.T) {
	// Has the magic header but no valid cross-reference table, so pdfcpu's
	// structural validation fails and Parse must fall back rather than error.
	malformed := []byte("%PDF-1.4\nthis is not a well-formed PDF body\n%%EOF")
	transactions, err := (SenatePDFParser{}).Parse(malformed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(transactions) != 1 || transactions[0].ExtractionMethod != "pdf_placeholder" {
		t.Fatalf("expected a single placeholder transaction, got %+v", transactions)
	}
}

func TestExtractText(t *testing.T) {
	// A bare Tj operator sequence, the only structure extractLiteralText
	// understands; it doesn't require a structurally valid PDF.
	data := []byte(`(Apple Inc) Tj (AAPL) Tj`)
	got := ExtractText(data)
	if got != "Apple Inc AAPL " {
		t.Fatalf("unexpected extracted text: %q", got)
	}
}

func TestExtractTransactionsFromText(t *testing.T) {
	text := "Purchase of Apple Inc (AAPL) on 01/15/2024 for $1,001 - $15,000"
	got := ExtractTransactionsFromText(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got))
	}
	tx := got[0]
	if tx.AssetName != "Apple Inc" {
		t.Fatalf("expected asset name Apple Inc, got %q", tx.AssetName)
	}
	if tx.Ticker != "AAPL" {
		t.Fatalf("expected ticker AAPL, got %q", tx.Ticker)
	}
	if tx.TransactionType != "purchase" {
		t.Fatalf("expected transaction type purchase, got %q", tx.TransactionType)
	}
	if tx.TransactionDate != "01/15/2024" {
		t.Fatalf("expected date 01/15/2024, got %q", tx.TransactionDate)
	}
}

func TestExtractTransactionsFromTextNoMatch(t *testing.T) {
	if got := ExtractTransactionsFromText("nothing relevant here"); got != nil {
		t.Fatalf("expected no transactions, got %+v", got)
	}
}
