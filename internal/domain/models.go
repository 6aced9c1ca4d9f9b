// Package domain provides the canonical paper model, search request and error
// types shared by every paper source adapter and the aggregation layer.
package domain

import "strings"

// SourceType identifies the upstream provider that produced a paper record.
type SourceType string

const (
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeBioRxiv         SourceType = "biorxiv"
	SourceTypeMedRxiv         SourceType = "medrxiv"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeSciHub          SourceType = "scihub"
)

// SelectorAll is the source selector that dispatches to every registered source.
const SelectorAll = "all"

// AllSourceTypes returns every known source type in default registry order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypePubMed,
		SourceTypeBioRxiv,
		SourceTypeMedRxiv,
		SourceTypeArXiv,
		SourceTypeSemanticScholar,
		SourceTypeSciHub,
	}
}

// IsValidSourceType reports whether s names a known source type.
func IsValidSourceType(s string) bool {
	for _, st := range AllSourceTypes() {
		if string(st) == s {
			return true
		}
	}
	return false
}

// ParseSourceType converts a user supplied name into a SourceType.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSourceType(s string) (SourceType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !IsValidSourceType(s) {
		return "", false
	}
	return SourceType(s), true
}

// String implements fmt.Stringer.
func (s SourceType) String() string {
	return string(s)
}
