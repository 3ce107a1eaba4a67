package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gwicho38/polidisc/internal/httpclient"
	"github.com/gwicho38/polidisc/internal/model"
)

// ArchiveStore is the narrow C2 interface an adapter needs to archive a raw
// payload before handing it to Clean (§4.1: "the adapter must archive the
// raw payload... via C2 before returning"). storage.Store satisfies it.
type ArchiveStore interface {
	SaveAPIResponse(data []byte, path, sourceURL, sourceType string) (model.StoredFile, error)
	SavePDF(data []byte, path, sourceURL, disclosureID string) (model.StoredFile, error)
}

// StorageAttacher is implemented by any Source built on Base; IngestStage
// uses it to hand over the storage manager when archival is enabled (§4.3.1
// "attaches storage manager to the source if enabled").
type StorageAttacher interface {
	AttachStorage(ArchiveStore)
}

// Base gives an adapter the shared request/retry machinery (§4.1's "shared
// protocol for any adapter") so each concrete source only has to implement
// its own URL construction and payload parsing.
type Base struct {
	Config  Config
	Client  *httpclient.Client
	Archive ArchiveStore
}

// AttachStorage wires a.Archive so GetJSON (and an adapter's own direct
// downloads) can archive raw payloads via C2. A nil store is a no-op:
// archival is best-effort and never blocks a fetch.
func (b *Base) AttachStorage(store ArchiveStore) {
	b.Archive = store
}

// archiveResponse saves body to the api-responses bucket under a path
// derived from url, swallowing (and logging) any storage error: a failed
// archive write must never fail the fetch it is shadowing.
func (b *Base) archiveResponse(url string, body []byte) {
	if b.Archive == nil {
		return
	}
	path := fmt.Sprintf("%s/%s.json", b.Config.Name, sanitizePathSegment(url))
	if _, err := b.Archive.SaveAPIResponse(body, path, url, b.Config.SourceType); err != nil {
		slog.Warn("source: archiving API response failed", "source", b.Config.Name, "url", url, "error", err)
	}
}

func sanitizePathSegment(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}

// Init builds the adapter's HTTP client from cfg. Adapters call this from
// Configure.
func (b *Base) Init(cfg Config) error {
	b.Config = cfg
	client, err := httpclient.New(httpclient.Options{
		BaseURL:      cfg.BaseURL,
		RequestDelay: cfg.RequestDelay,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		UserAgent:    "polidisc/1.0 (+politician-trading-disclosures)",
	})
	if err != nil {
		return fmt.Errorf("source %s: %w", cfg.Name, err)
	}
	b.Client = client
	return nil
}

// GetJSON issues a GET request and decodes the response body as JSON into
// out.
func (b *Base) GetJSON(ctx context.Context, url string, out any) error {
	resp, err := b.Client.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: url, Headers: b.Config.Headers})
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", url, resp.StatusCode)
	}
	b.archiveResponse(url, resp.Body)
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// defaultConfig fills in the request pacing defaults the original
// dataclass's field defaults supplied, for an adapter's zero-value Config.
func defaultConfig(name, sourceType, baseURL string) Config {
	return Config{
		Name:         name,
		SourceType:   sourceType,
		BaseURL:      baseURL,
		RequestDelay: time.Second,
		MaxRetries:   3,
		Timeout:      30 * time.Second,
		Headers:      map[string]string{},
		Enabled:      true,
	}
}
