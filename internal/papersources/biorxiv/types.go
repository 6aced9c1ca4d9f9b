package biorxiv

// DetailsResponse is the body returned by the /details endpoint.
type DetailsResponse struct {
	Messages   []Message `json:"messages"`
	Collection []Item    `json:"collection"`
}

// Message carries the listing status and paging counters.
type Message struct {
	Status string `json:"status"` // "ok" or "no posts found"
	Cursor any    `json:"cursor"`
	Count  int    `json:"count"`
	Total  any    `json:"total"`
}

// Item is one preprint version in a /details listing.
type Item struct {
	DOI                            string `json:"doi"`
	Title                          string `json:"title"`
	Authors                        string `json:"authors"` // "Doe, J.; Roe, R."
	AuthorCorresponding            string `json:"author_corresponding"`
	AuthorCorrespondingInstitution string `json:"author_corresponding_institution"`
	Date                           string `json:"date"` // "2024-01-15"
	Version                        string `json:"version"`
	Type                           string `json:"type"`
	License                        string `json:"license"`
	Category                       string `json:"category"`
	JATSXML                        string `json:"jatsxml"`
	Abstract                       string `json:"abstract"`
	Published                      string `json:"published"` // journal DOI or "NA"
	Server                         string `json:"server"`
}
