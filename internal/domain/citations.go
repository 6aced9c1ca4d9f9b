package domain

// PaperRef is a lightweight pointer to a related paper.
type PaperRef struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
}

// CitationMetrics describes the citation neighbourhood of one paper.
type CitationMetrics struct {
	PaperID                  string     `json:"paper_id"`
	Title                    string     `json:"title"`
	Year                     int        `json:"year,omitempty"`
	PublicationDate          string     `json:"publication_date,omitempty"`
	CitationCount            int        `json:"citation_count"`
	ReferenceCount           int        `json:"reference_count"`
	InfluentialCitationCount int        `json:"influential_citation_count"`
	FieldsOfStudy            []string   `json:"fields_of_study,omitempty"`
	Citations                []PaperRef `json:"citations"`
	References               []PaperRef `json:"references"`
}

// InfluenceRate returns the share of influential citations as a percentage
// rounded to two decimals.
func (m *CitationMetrics) InfluenceRate() float64 {
	if m.CitationCount <= 0 {
		return 0
	}
	return Round2(float64(m.InfluentialCitationCount) / float64(m.CitationCount) * 100)
}

// RelatedPaper is a recommendation with a relevance score in [0, 1].
type RelatedPaper struct {
	PaperRef
	CitationCount int     `json:"citation_count,omitempty"`
	Score         float64 `json:"relevance_score"`
	Reason        string  `json:"reason"`
}

// Round2 rounds f to two decimal places.
func Round2(f float64) float64 {
	if f < 0 {
		return -Round2(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}
