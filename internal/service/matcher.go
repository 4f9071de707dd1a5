package service

import (
	"strings"

	"github.com/shopbridge/syncengine/internal/domain"
)

// MatchConfidence grades the quality of one variant match
type MatchConfidence string

const (
	MatchExact   MatchConfidence = "exact"
	MatchPartial MatchConfidence = "partial"
	MatchNone    MatchConfidence = "none"
)

// partialMatchNumerator/-Denominator: a candidate is partial when at
// least half of the supplier's options have equal values. The half
// threshold mirrors long-standing behavior; treat it as tunable, not
// proven.
const (
	partialMatchNumerator   = 1
	partialMatchDenominator = 2
)

// VariantMatch is the result of matching one supplier variant
type VariantMatch struct {
	SupplierVariantID     string          `json:"supplier_variant_id"`
	RetailerVariantID     string          `json:"retailer_variant_id,omitempty"`
	Confidence            MatchConfidence `json:"confidence"`
	RequiresManualMapping bool            `json:"requires_manual_mapping"`
}

// MatchVariants compares every supplier variant against the retailer
// variants. The first exact candidate wins immediately; failing that,
// the first partial candidate is kept as best-effort. Only exact
// matches are safe to auto-persist.
func MatchVariants(supplierVariants, retailerVariants []domain.Variant) []VariantMatch {
	matches := make([]VariantMatch, 0, len(supplierVariants))

	for _, sv := range supplierVariants {
		match := VariantMatch{
			SupplierVariantID:     sv.ID,
			Confidence:            MatchNone,
			RequiresManualMapping: true,
		}

		for _, rv := range retailerVariants {
			confidence := compareOptions(sv.Options, rv.Options)
			if confidence == MatchExact {
				match.RetailerVariantID = rv.ID
				match.Confidence = MatchExact
				match.RequiresManualMapping = false
				break
			}
			if confidence == MatchPartial && match.Confidence == MatchNone {
				match.RetailerVariantID = rv.ID
				match.Confidence = MatchPartial
			}
		}

		matches = append(matches, match)
	}

	return matches
}

// compareOptions grades one candidate pair. Exact requires matching
// option-set cardinality and an equal value for every supplier option;
// partial tolerates renamed or extra options on either side.
func compareOptions(supplier, retailer map[string]string) MatchConfidence {
	if len(supplier) == 0 {
		return MatchNone
	}

	equal := 0
	for name, value := range supplier {
		if other, ok := lookupOption(retailer, name); ok && optionValuesEqual(value, other) {
			equal++
		}
	}

	if equal == len(supplier) && len(supplier) == len(retailer) {
		return MatchExact
	}
	if equal*partialMatchDenominator >= len(supplier)*partialMatchNumerator {
		return MatchPartial
	}
	return MatchNone
}

func lookupOption(options map[string]string, name string) (string, bool) {
	if v, ok := options[name]; ok {
		return v, true
	}
	// Option names may differ in case between stores
	for k, v := range options {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(name)) {
			return v, true
		}
	}
	return "", false
}

func optionValuesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
