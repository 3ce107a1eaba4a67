package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gwicho38/polidisc/internal/httpclient"
	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/transform"
)

func init() {
	Register("eu_parliament", func() Source { return &EUParliamentSource{} })
}

// mepListXML models the `<meps><mep>...</mep></meps>` document the EU
// Parliament's full-list endpoint returns.
type mepListXML struct {
	MEPs []mepXML `xml:"mep"`
}

type mepXML struct {
	ID                     string `xml:"id"`
	FullName               string `xml:"fullName"`
	Country                string `xml:"country"`
	PoliticalGroup         string `xml:"politicalGroup"`
	NationalPoliticalGroup string `xml:"nationalPoliticalGroup"`
}

// dpiPDFPattern matches declaration-of-private-interests anchors: a PDF
// link whose path contains /DPI/ and ends with an 8-digit YYYYMMDD date.
var dpiPDFPattern = regexp.MustCompile(`(?i)href="([^"]*?/DPI/[^"]*?(\d{8})[^"]*?\.pdf)"`)

// EUParliamentSource fetches the MEP roster and each member's declarations
// of private interest (§4.1 "EU Parliament adapter").
type EUParliamentSource struct {
	Base
}

func (s *EUParliamentSource) Name() string { return "eu_parliament" }

func (s *EUParliamentSource) Configure(cfg Config) {
	base := defaultConfig("eu_parliament", "eu", "https://www.europarl.europa.eu")
	if cfg.BaseURL != "" {
		base.BaseURL = cfg.BaseURL
	}
	if cfg.RequestDelay > 0 {
		base.RequestDelay = cfg.RequestDelay
	}
	base.Enabled = cfg.Enabled
	s.Init(base)
}

func (s *EUParliamentSource) Fetch(ctx context.Context, lookbackDays int) ([]model.RawDisclosure, error) {
	meps, err := s.fetchMEPList(ctx, "/meps/en/full-list/xml")
	if err != nil {
		return nil, err
	}
	outgoing, err := s.fetchMEPList(ctx, "/meps/en/full-list/xml?leg=outgoing")
	if err == nil {
		meps = append(meps, outgoing...)
	}

	now := time.Now().UTC()
	var out []model.RawDisclosure
	for _, mep := range meps {
		slug := mepSlug(mep.FullName)
		declURL := fmt.Sprintf("/meps/en/%s/%s/declarations", mep.ID, slug)
		resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: declURL})
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}

		matches := dpiPDFPattern.FindAllStringSubmatch(string(resp.Body), -1)
		for i, m := range matches {
			pdfURL := m[1]
			if !strings.HasPrefix(pdfURL, "http") {
				pdfURL = strings.TrimRight(s.Config.BaseURL, "/") + "/" + strings.TrimLeft(pdfURL, "/")
			}
			rawData := map[string]any{
				"mep_id":                   mep.ID,
				"full_name":                mep.FullName,
				"country":                  mep.Country,
				"political_group":          mep.PoliticalGroup,
				"national_political_group": mep.NationalPoliticalGroup,
				"declaration_date":         m[2], // YYYYMMDD
				"revision_index":           i,
				"pdf_url":                  pdfURL,
				// Mapped unconditionally so Clean's required politician_name
				// and disclosure_date keys are satisfied even when the DPI
				// PDF follow-on below can't recover transaction detail.
				"politician_name": mep.FullName,
				"disclosure_date": formatYYYYMMDD(m[2]),
			}
			s.fetchAndExtractDPI(ctx, mep.ID, pdfURL, rawData)

			out = append(out, model.RawDisclosure{
				Source:           "eu_parliament",
				SourceType:       "eu",
				ScrapedAt:        now,
				SourceURL:        pdfURL,
				SourceDocumentID: fmt.Sprintf("%s-%d", mep.ID, i),
				RawData:          rawData,
			})
		}
	}
	return out, nil
}

// fetchAndExtractDPI downloads the declaration-of-private-interests PDF,
// archives it via C2 if storage is attached, and recovers
// {asset_name, asset_ticker, transaction_type, transaction_date, amount}
// into rawData on success (§4.1 "EU Parliament adapter"). Any failure along
// the way leaves rawData without the transaction keys so Clean skips the
// row rather than fabricating a value.
func (s *EUParliamentSource) fetchAndExtractDPI(ctx context.Context, mepID, pdfURL string, rawData map[string]any) {
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: pdfURL})
	if err != nil || resp.StatusCode != http.StatusOK {
		slog.Debug("eu_parliament: DPI PDF fetch failed", "mep_id", mepID, "error", err)
		return
	}

	if s.Archive != nil {
		path := fmt.Sprintf("eu_parliament/%s.pdf", sanitizePathSegment(pdfURL))
		if stored, err := s.Archive.SavePDF(resp.Body, path, pdfURL, ""); err != nil {
			slog.Warn("eu_parliament: archiving DPI PDF failed", "mep_id", mepID, "error", err)
		} else {
			rawData["has_raw_pdf"] = true
			rawData["source_file_id"] = stored.ID
		}
	}

	transactions, err := (transform.SenatePDFParser{}).Parse(resp.Body)
	if err != nil || len(transactions) == 0 {
		return
	}
	tx := transactions[0]
	if tx.AssetName == "" || tx.TransactionType == "" || tx.TransactionDate == "" {
		return
	}
	rawData["asset_name"] = tx.AssetName
	rawData["transaction_type"] = tx.TransactionType
	rawData["transaction_date"] = tx.TransactionDate
	if tx.Ticker != "" {
		rawData["asset_ticker"] = tx.Ticker
	}
	if tx.AmountText != "" {
		rawData["amount"] = tx.AmountText
	}
}

// formatYYYYMMDD reformats an 8-digit YYYYMMDD string as MM/DD/YYYY to match
// the other adapters' disclosure_date convention. Malformed input is
// returned unchanged.
func formatYYYYMMDD(s string) string {
	if len(s) != 8 {
		return s
	}
	return fmt.Sprintf("%s/%s/%s", s[4:6], s[6:8], s[0:4])
}

func (s *EUParliamentSource) FetchBatch(ctx context.Context, offset, limit, lookbackDays int) ([]model.RawDisclosure, error) {
	if offset > 0 {
		return nil, nil
	}
	return s.Fetch(ctx, lookbackDays)
}

func (s *EUParliamentSource) fetchMEPList(ctx context.Context, path string) ([]mepXML, error) {
	resp, err := s.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: path})
	if err != nil {
		return nil, fmt.Errorf("fetching MEP list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("MEP list returned HTTP %d", resp.StatusCode)
	}
	var list mepListXML
	if err := xml.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("parsing MEP list XML: %w", err)
	}
	return list.MEPs, nil
}

// mepSlug builds the URL slug the declarations page uses: whitespace
// collapsed to "+" and accented characters folded to their ASCII base.
func mepSlug(fullName string) string {
	folded := foldASCII(fullName)
	fields := strings.Fields(folded)
	return strings.Join(fields, "+")
}

func foldASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII:
			b.WriteRune(r)
		default:
			if folded, ok := accentFold[r]; ok {
				b.WriteRune(folded)
			}
			// unmapped non-ASCII runes are dropped, matching the
			// upstream slug generator's ASCII-folding behavior.
		}
	}
	return b.String()
}

var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ý': 'y',
	'Á': 'A', 'À': 'A', 'Â': 'A', 'Ä': 'A', 'Ã': 'A', 'Å': 'A',
	'É': 'E', 'È': 'E', 'Ê': 'E', 'Ë': 'E',
	'Í': 'I', 'Ì': 'I', 'Î': 'I', 'Ï': 'I',
	'Ó': 'O', 'Ò': 'O', 'Ô': 'O', 'Ö': 'O', 'Õ': 'O',
	'Ú': 'U', 'Ù': 'U', 'Û': 'U', 'Ü': 'U',
	'Ñ': 'N', 'Ç': 'C', 'Ý': 'Y',
}
