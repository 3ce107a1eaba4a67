package transform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gwicho38/polidisc/internal/model"
)

// PoliticianStore is the narrow read interface the matcher needs; storage.Store
// satisfies it.
type PoliticianStore interface {
	AllPoliticians() ([]model.Politician, error)
}

// PoliticianMatcher resolves a (first, last) name pair to an existing
// politician id, loading and caching the full roster on first use rather
// than querying per record (§4.3 step 2).
type PoliticianMatcher struct {
	store PoliticianStore

	mu     sync.Mutex
	loaded bool
	byKey  map[string]model.Politician // "lastname_firstname" -> politician
	all    []model.Politician
}

// NewPoliticianMatcher builds a matcher backed by store.
func NewPoliticianMatcher(store PoliticianStore) *PoliticianMatcher {
	return &PoliticianMatcher{store: store, byKey: map[string]model.Politician{}}
}

func cacheKey(first, last string) string {
	return strings.ToLower(last) + "_" + strings.ToLower(first)
}

// Load populates the in-memory cache from the store. Safe to call more than
// once; subsequent calls are no-ops.
func (m *PoliticianMatcher) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	politicians, err := m.store.AllPoliticians()
	if err != nil {
		return fmt.Errorf("loading politician roster: %w", err)
	}
	m.all = politicians
	for _, p := range politicians {
		m.byKey[cacheKey(p.FirstName, p.LastName)] = p
	}
	m.loaded = true
	return nil
}

// Match resolves (first, last) to a politician id, role, party, and state.
// An exact cache hit wins; otherwise a single fuzzy pass checks whether the
// last name appears as a substring of any cached key. If nothing matches,
// only an inferred role (derived from source) is returned.
func (m *PoliticianMatcher) Match(first, last, source string) (id, role, party, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byKey[cacheKey(first, last)]; ok {
		return p.ID, p.Role, p.Party, p.StateOrCountry
	}

	lastLower := strings.ToLower(last)
	if lastLower != "" {
		for key, p := range m.byKey {
			if strings.Contains(key, lastLower) {
				return p.ID, p.Role, p.Party, p.StateOrCountry
			}
		}
	}

	return "", InferRoleFromSource(source), "", ""
}

// InferRoleFromSource maps a source name to the role a new politician should
// be created with when the matcher finds no existing row (§4.3 step 2).
func InferRoleFromSource(source string) string {
	lower := strings.ToLower(source)
	switch {
	case strings.Contains(lower, "house") || strings.Contains(lower, "representative"):
		return "US_HOUSE_REP"
	case strings.Contains(lower, "senate") || strings.Contains(lower, "senator"):
		return "US_SENATOR"
	case strings.Contains(lower, "uk") || strings.Contains(lower, "parliament"):
		if strings.Contains(lower, "lords") {
			return "UK_LORD"
		}
		return "UK_MP"
	case strings.Contains(lower, "eu") || strings.Contains(lower, "european"):
		return "EU_MEP"
	case strings.Contains(lower, "california"):
		return "CA_STATE_LEGISLATOR"
	case strings.Contains(lower, "new york") || lower == "ny":
		return "NY_STATE_LEGISLATOR"
	case strings.Contains(lower, "texas") || lower == "tx":
		return "TX_STATE_LEGISLATOR"
	default:
		return "UNKNOWN"
	}
}
