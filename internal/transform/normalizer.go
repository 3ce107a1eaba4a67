package transform

import (
	"fmt"

	"github.com/gwicho38/polidisc/internal/model"
)

// NormalizerStore is the narrow store interface the politician normalizer
// batch job needs; storage.Store satisfies it.
type NormalizerStore interface {
	AllPoliticians() ([]model.Politician, error)
	UpsertPolitician(model.Politician) (model.Politician, bool, error)
	RecordCorrection(model.DataQualityCorrection) error
}

// PoliticianNormalizer is the batch-audit job that rewrites non-canonical
// role strings, strips honorific prefixes, and backfills state_or_country
// from a district code — separate from PoliticianMatcher, which only reads
// the roster at ingest time (§4.3 "Politician normalizer").
type PoliticianNormalizer struct {
	Store NormalizerStore
}

// NormalizerReport summarizes one run of RunOnce.
type NormalizerReport struct {
	Scanned    int
	Corrected  int
	Corrections []model.DataQualityCorrection
}

// RunOnce scans every politician row and rewrites any field the normalizer
// has rules for, recording one DataQualityCorrection per field changed.
func (n *PoliticianNormalizer) RunOnce() (NormalizerReport, error) {
	politicians, err := n.Store.AllPoliticians()
	if err != nil {
		return NormalizerReport{}, fmt.Errorf("loading politicians for normalization: %w", err)
	}

	report := NormalizerReport{Scanned: len(politicians)}
	for _, p := range politicians {
		original := p
		changed := false

		if canonical := NormalizeRole(p.Role); canonical != p.Role {
			n.record(&report, "politician", p.ID, "role", p.Role, canonical, 0.9)
			p.Role = canonical
			changed = true
		}

		if stripped := StripHonorific(p.FullName); stripped != p.FullName {
			n.record(&report, "politician", p.ID, "full_name", p.FullName, stripped, 0.85)
			p.FullName = stripped
			changed = true
		}

		if p.StateOrCountry == "" {
			if state := StateFromDistrict(p.District); state != "" {
				n.record(&report, "politician", p.ID, "state_or_country", p.StateOrCountry, state, 0.7)
				p.StateOrCountry = state
				changed = true
			}
		}

		if changed {
			if _, _, err := n.Store.UpsertPolitician(p); err != nil {
				return report, fmt.Errorf("upserting corrected politician %s: %w", original.ID, err)
			}
			report.Corrected++
		}
	}
	return report, nil
}

func (n *PoliticianNormalizer) record(report *NormalizerReport, entityType, entityID, field, oldValue, newValue string, confidence float64) {
	c := model.DataQualityCorrection{
		EntityType:  entityType,
		EntityID:    entityID,
		Field:       field,
		OldValue:    oldValue,
		NewValue:    newValue,
		Confidence:  confidence,
		CorrectedBy: "politician_normalizer",
		Status:      "applied",
	}
	if err := n.Store.RecordCorrection(c); err == nil {
		report.Corrections = append(report.Corrections, c)
	}
}
