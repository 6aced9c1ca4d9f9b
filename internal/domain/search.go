package domain

import (
	"strings"
	"time"
)

// DefaultNumResults is the result cap used when a request does not set one.
const DefaultNumResults = 10

// DateLayout is the layout used for request dates and day-granular publication dates.
const DateLayout = "2006-01-02"

// SearchRequest carries the optional criteria for an advanced search.
// An empty string means "do not filter on this dimension".
type SearchRequest struct {
	Title      string `json:"title,omitempty" validate:"omitempty,max=1000"`
	Author     string `json:"author,omitempty" validate:"omitempty,max=500"`
	Journal    string `json:"journal,omitempty" validate:"omitempty,max=500"`
	StartDate  string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Term       string `json:"term,omitempty" validate:"omitempty,max=1000"`
	NumResults int    `json:"num_results" validate:"gte=0,lte=1000"`
}

// NewSearchRequest returns a request with the default result cap.
func NewSearchRequest() SearchRequest {
	return SearchRequest{NumResults: DefaultNumResults}
}

// Normalize trims every text field and returns the result.
func (r SearchRequest) Normalize() SearchRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.Journal = strings.TrimSpace(r.Journal)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
	r.Term = strings.TrimSpace(r.Term)
	if r.NumResults < 0 {
		r.NumResults = 0
	}
	return r
}

// Field is one set criterion of a SearchRequest.
type Field struct {
	Name  string
	Value string
}

// Fields returns the set criteria in a fixed order. Unset fields are omitted.
func (r SearchRequest) Fields() []Field {
	all := []Field{
		{"title", r.Title},
		{"author", r.Author},
		{"journal", r.Journal},
		{"start_date", r.StartDate},
		{"end_date", r.EndDate},
		{"term", r.Term},
	}
	set := all[:0]
	for _, f := range all {
		if strings.TrimSpace(f.Value) != "" {
			set = append(set, f)
		}
	}
	return set
}

// IsEmpty reports whether no criterion is set.
func (r SearchRequest) IsEmpty() bool {
	return len(r.Fields()) == 0
}

// HasDateRange reports whether either date bound is set.
func (r SearchRequest) HasDateRange() bool {
	return r.StartDate != "" || r.EndDate != ""
}

// InDateRange reports whether date falls inside [start, end] by lexical comparison
// of its first len(bound) characters. Unset bounds do not filter. An empty date
// never matches a set bound.
func InDateRange(date, start, end string) bool {
	if start == "" && end == "" {
		return true
	}
	if date == "" {
		return false
	}
	if start != "" && prefix(date, len(start)) < start {
		return false
	}
	if end != "" && prefix(date, len(end)) > end {
		return false
	}
	return true
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ParseDate parses a YYYY-MM-DD request date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", "expected YYYY-MM-DD, got "+s)
	}
	return t, nil
}

// Truncate returns at most n papers. A negative n is treated as zero.
func Truncate(papers []Paper, n int) []Paper {
	if n <= 0 {
		return nil
	}
	if len(papers) > n {
		return papers[:n]
	}
	return papers
}
