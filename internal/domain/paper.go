package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// PDFLink is a direct link to a paper's PDF. The zero value is NoPDF.
type PDFLink string

// NoPDF marks a record whose source exposes no PDF. It is serialized as JSON null.
const NoPDF PDFLink = ""

// MarshalJSON encodes NoPDF as null and any other link as a string.
func (l PDFLink) MarshalJSON() ([]byte, error) {
	if l == NoPDF {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON accepts null, an empty string or a URL string.
func (l *PDFLink) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = NoPDF
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = PDFLink(strings.TrimSpace(s))
	return nil
}

// Paper is the canonical, provider-agnostic paper record exchanged at every
// boundary. Core fields are always present, possibly empty.
type Paper struct {
	// ID is the provider-native identifier (PMID, DOI, arXiv ID, Semantic Scholar ID).
	// It is unique only within its source.
	ID string

	// Title is the paper title.
	Title string

	// Authors holds the comma-joined author names.
	Authors string

	// Abstract is the full or truncated abstract text.
	Abstract string

	// PublicationDate is either a year or a YYYY-MM-DD date, depending on the source.
	PublicationDate string

	// Journal is the venue, journal or preprint-server label.
	Journal string

	// URL is the canonical landing page.
	URL string

	// PDFURL is the direct PDF link or NoPDF.
	PDFURL PDFLink

	// Source identifies the provider that produced this record.
	Source SourceType

	// Extra holds optional provider-specific passthrough fields such as
	// citation_count. Keys never shadow the core fields.
	Extra map[string]any
}

// coreFields lists the JSON names of the canonical record fields.
var coreFields = map[string]struct{}{
	"id": {}, "title": {}, "authors": {}, "abstract": {}, "publication_date": {},
	"journal": {}, "url": {}, "pdf_url": {}, "source": {},
}

// MarshalJSON flattens Extra next to the core fields.
func (p Paper) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(coreFields)+len(p.Extra))
	for k, v := range p.Extra {
		if _, core := coreFields[k]; core {
			continue
		}
		out[k] = v
	}
	out["id"] = p.ID
	out["title"] = p.Title
	out["authors"] = p.Authors
	out["abstract"] = p.Abstract
	out["publication_date"] = p.PublicationDate
	out["journal"] = p.Journal
	out["url"] = p.URL
	out["pdf_url"] = p.PDFURL
	out["source"] = p.Source
	return json.Marshal(out)
}

// UnmarshalJSON reads the core fields and keeps every other key in Extra.
func (p *Paper) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var decoded Paper
	fields := map[string]any{
		"id":               &decoded.ID,
		"title":            &decoded.Title,
		"authors":          &decoded.Authors,
		"abstract":         &decoded.Abstract,
		"publication_date": &decoded.PublicationDate,
		"journal":          &decoded.Journal,
		"url":              &decoded.URL,
		"pdf_url":          &decoded.PDFURL,
		"source":           &decoded.Source,
	}
	for key, value := range raw {
		if target, ok := fields[key]; ok {
			if string(value) == "null" {
				continue
			}
			if err := json.Unmarshal(value, target); err != nil {
				return err
			}
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		if decoded.Extra == nil {
			decoded.Extra = make(map[string]any)
		}
		decoded.Extra[key] = v
	}

	*p = decoded
	return nil
}

// HasPDF reports whether the record carries a direct PDF link.
func (p *Paper) HasPDF() bool {
	return p.PDFURL != NoPDF
}

// SetExtra stores a passthrough field, allocating Extra on first use.
func (p *Paper) SetExtra(key string, value any) {
	if _, core := coreFields[key]; core {
		return
	}
	if p.Extra == nil {
		p.Extra = make(map[string]any)
	}
	p.Extra[key] = value
}

// Validate checks the record shape: a known source and no dangling PDF link.
func (p *Paper) Validate() error {
	if !IsValidSourceType(string(p.Source)) {
		return NewValidationError("source", "unknown source "+string(p.Source))
	}
	if p.HasPDF() && !strings.HasPrefix(string(p.PDFURL), "http") {
		return NewValidationError("pdf_url", "must be an absolute URL or absent")
	}
	return nil
}

// NormalizeTitle lower-cases and trims a title for duplicate detection.
// Inner whitespace is kept as is.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// JoinAuthors joins non-blank author names with ", ".
func JoinAuthors(names []string) string {
	kept := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, ", ")
}

// SplitAuthors is the inverse of JoinAuthors.
func SplitAuthors(authors string) []string {
	if strings.TrimSpace(authors) == "" {
		return nil
	}
	parts := strings.Split(authors, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// ErrNoPDF is returned when a download is requested for a record without a PDF link.
var ErrNoPDF = errors.New("no PDF available")
