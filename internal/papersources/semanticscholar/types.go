// Package semanticscholar provides the Semantic Scholar adapter.
//
// Searches go through the Graph API /paper/search endpoint. The limit is capped
// at 100 server-side, so advanced search over-fetches and filters by author
// client-side. The package also exposes citation metrics and recommendations
// used by the analysis layer.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the Semantic Scholar paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	Next int `json:"next"`

	// Data contains the list of papers returned by the search.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the Semantic Scholar API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	PaperID string `json:"paperId"`

	Title    string `json:"title"`
	Abstract string `json:"abstract"`

	// Year is the publication year, zero when unknown.
	Year int `json:"year"`

	// PublicationDate is the full publication date in YYYY-MM-DD format.
	PublicationDate string `json:"publicationDate"`

	// Venue is the publication venue (conference, journal name, etc.).
	Venue string `json:"venue"`

	// URL is the Semantic Scholar landing page.
	URL string `json:"url"`

	Authors []Author `json:"authors"`

	CitationCount            *int `json:"citationCount"`
	ReferenceCount           *int `json:"referenceCount"`
	InfluentialCitationCount int  `json:"influentialCitationCount"`

	FieldsOfStudy []string `json:"fieldsOfStudy"`

	// OpenAccessPDF contains information about the open access PDF if available.
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf,omitempty"`

	// ExternalIDs contains external identifiers for the paper (DOI, ArXiv, etc.).
	ExternalIDs *ExternalIDs `json:"externalIds,omitempty"`

	// Citations and References are only present when requested as nested fields.
	Citations  []PaperStub `json:"citations,omitempty"`
	References []PaperStub `json:"references,omitempty"`
}

// PaperStub is the nested paper shape used in citations, references and
// recommendations.
type PaperStub struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Year          int    `json:"year"`
	CitationCount int    `json:"citationCount"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI           string `json:"DOI,omitempty"`
	ArXiv         string `json:"ArXiv,omitempty"`
	PubMed        string `json:"PubMed,omitempty"`
	PubMedCentral string `json:"PubMedCentral,omitempty"`
}

// Author represents a paper author in the Semantic Scholar API.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	// URL is the direct URL to the PDF.
	URL string `json:"url,omitempty"`

	// Status indicates the open access status (e.g., "HYBRID", "GOLD", "GREEN").
	Status string `json:"status,omitempty"`
}

// RecommendationsResponse is the body of the recommendations endpoint.
type RecommendationsResponse struct {
	RecommendedPapers []PaperStub `json:"recommendedPapers"`
}

// ErrorResponse represents an error response from the Semantic Scholar API.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
