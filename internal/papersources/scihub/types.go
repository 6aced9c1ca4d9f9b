// Package scihub provides the Sci-Hub adapter.
//
// Sci-Hub has no search API. Keyword search goes to the CrossRef works index
// and every returned DOI is resolved to a PDF link on a Sci-Hub mirror. Only
// DOIs that resolve become records.
package scihub

// WorksResponse is the envelope of CrossRef GET /works.
type WorksResponse struct {
	Status  string `json:"status"`
	Message struct {
		TotalResults int    `json:"total-results"`
		Items        []Work `json:"items"`
	} `json:"message"`
}

// WorkResponse is the envelope of CrossRef GET /works/{doi}.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is a CrossRef work record. Only the fields the adapter reads are decoded.
type Work struct {
	DOI            string   `json:"DOI"`
	Title          []string `json:"title"`
	Author         []Author `json:"author"`
	Abstract       string   `json:"abstract"`
	ContainerTitle []string `json:"container-title"`
	Publisher      string   `json:"publisher"`
	Type           string   `json:"type"`
	Created        DateInfo `json:"created"`
}

// Author is a CrossRef contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// DateInfo holds CrossRef's nested date-parts, e.g. [[2021, 3, 14]].
type DateInfo struct {
	DateParts [][]int `json:"date-parts"`
}
