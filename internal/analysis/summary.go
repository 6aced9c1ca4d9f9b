package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// SummaryStyle selects a summary template.
type SummaryStyle string

const (
	StyleBrief         SummaryStyle = "brief"
	StyleComprehensive SummaryStyle = "comprehensive"
	StyleTechnical     SummaryStyle = "technical"
	StyleLayman        SummaryStyle = "layman"
)

// ParseSummaryStyle validates s. The empty string selects StyleComprehensive.
func ParseSummaryStyle(s string) (SummaryStyle, error) {
	switch style := SummaryStyle(strings.ToLower(strings.TrimSpace(s))); style {
	case "":
		return StyleComprehensive, nil
	case StyleBrief, StyleComprehensive, StyleTechnical, StyleLayman:
		return style, nil
	default:
		return "", domain.NewValidationError("style", fmt.Sprintf("unknown summary style %q", s))
	}
}

// Summary is a rendered summary plus the facts it was built from.
type Summary struct {
	PaperID   string       `json:"paper_id"`
	Title     string       `json:"title"`
	Style     SummaryStyle `json:"style"`
	Text      string       `json:"summary"`
	Authors   string       `json:"authors"`
	Year      string       `json:"year"`
	Citations int          `json:"citations"`
}

// Summarize renders p with the chosen template. Unknown styles fall back to
// StyleComprehensive. now is used to compute the paper's age.
func Summarize(p domain.Paper, style SummaryStyle, now time.Time) Summary {
	authors := shortAuthors(p.Authors, 3)
	year := yearOf(p.PublicationDate)
	citations := citationCount(p)
	abstract := p.Abstract

	var text string
	switch style {
	case StyleBrief:
		text = fmt.Sprintf("%q (%s) by %s, published in %s. Cited %d times. %s",
			p.Title, orNA(year), orNA(authors), orNA(p.Journal), citations, excerpt(abstract, 100))
	case StyleTechnical:
		text = strings.Join([]string{
			"Technical summary",
			"",
			"Topic: " + p.Title,
			"",
			"Core contribution:",
			orText(abstract, "No abstract available."),
			"",
			"Venue: " + orNA(p.Journal),
			"Published: " + orNA(year),
			fmt.Sprintf("Citations: %d", citations),
		}, "\n")
	case StyleLayman:
		text = strings.Join([]string{
			"What this paper studies:",
			p.Title,
			"",
			"In short:",
			excerpt(abstract, 200),
			"",
			"Why it matters:",
			fmt.Sprintf("Other researchers have cited this work %d times.", citations),
			"",
			"Published: " + orNA(year),
			"Authors: " + orNA(authors),
		}, "\n")
	default:
		style = StyleComprehensive
		age := 0
		if y, err := strconv.Atoi(year); err == nil && y > 0 {
			age = max(0, now.Year()-y)
		}
		text = strings.Join([]string{
			"Title: " + p.Title,
			"Authors: " + orNA(authors),
			"Published: " + orNA(year),
			"Venue: " + orNA(p.Journal),
			fmt.Sprintf("Citations: %d", citations),
			"",
			"Abstract:",
			orText(abstract, "No abstract available."),
			"",
			"Impact:",
			fmt.Sprintf("- cited %d times", citations),
			fmt.Sprintf("- %d years since publication", age),
		}, "\n")
	}

	return Summary{
		PaperID:   p.ID,
		Title:     p.Title,
		Style:     style,
		Text:      text,
		Authors:   authors,
		Year:      year,
		Citations: citations,
	}
}

// shortAuthors keeps the first n names of a comma-joined list and marks the
// rest with "et al.".
func shortAuthors(authors string, n int) string {
	if authors == "" {
		return ""
	}
	names := strings.Split(authors, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	if len(names) <= n {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:n], ", ") + " et al."
}

// citationCount reads the citation_count passthrough field when present.
func citationCount(p domain.Paper) int {
	switch v := p.Extra["citation_count"].(type) {
	case int:
		return v
	case *int:
		if v != nil {
			return *v
		}
	case float64:
		return int(v)
	}
	return 0
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func excerpt(s string, n int) string {
	if s == "" {
		return "No abstract available."
	}
	if len([]rune(s)) <= n {
		return s
	}
	return truncate(s, n) + "..."
}

func orNA(s string) string {
	return orText(s, "N/A")
}

func orText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
