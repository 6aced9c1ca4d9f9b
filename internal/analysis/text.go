package analysis

import (
	"regexp"
	"strings"
	"unicode"
)

// abbreviations never end a sentence.
var abbreviations = map[string]struct{}{
	"fig": {}, "figs": {}, "al": {}, "e.g": {}, "i.e": {}, "vs": {}, "eq": {}, "ref": {}, "no": {},
}

// sentences splits text into trimmed sentences. Line breaks are treated as
// spaces since extracted PDF text wraps mid-sentence.
func sentences(text string) []string {
	flat := strings.Join(strings.Fields(text), " ")

	var out []string
	start := 0
	for i := 0; i < len(flat); i++ {
		c := flat[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(flat) && flat[i+1] != ' ' {
			continue
		}
		if c == '.' && isAbbreviation(flat[start:i]) {
			continue
		}
		if s := strings.TrimSpace(flat[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(flat[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isAbbreviation(before string) bool {
	idx := strings.LastIndexFunc(before, unicode.IsSpace)
	word := strings.ToLower(before[idx+1:])
	_, ok := abbreviations[word]
	return ok
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Section names reported by DetectSections, in document order.
var sectionNames = []string{"Introduction", "Methods", "Results", "Discussion", "Conclusion"}

// sectionPatterns match a heading at the start of a line, optionally
// numbered, allowing the common singular and plural spellings.
var sectionPatterns = map[string]*regexp.Regexp{
	"Introduction": regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s*)?introduction\b`),
	"Methods":      regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s*)?(?:materials and methods|methods?|methodology)\b`),
	"Results":      regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s*)?(?:results?|findings)\b`),
	"Discussion":   regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s*)?discussion\b`),
	"Conclusion":   regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s*)?conclusions?\b`),
}

// DetectSections reports which of the standard sections have a heading in text.
func DetectSections(text string) []string {
	var found []string
	for _, name := range sectionNames {
		if sectionPatterns[name].MatchString(text) {
			found = append(found, name)
		}
	}
	return found
}

const maxAbstractLen = 500

var abstractPattern = regexp.MustCompile(`(?is)\babstract\b[:.]?\s*(.*?)(?:\n\s*\n|\n\s*(?:\d+\.?\s*)?introduction\b|\n1\.|$)`)

// ExtractAbstract returns the paragraph following an "Abstract" heading,
// capped at 500 characters. ok is false when there is none.
func ExtractAbstract(text string) (abstract string, ok bool) {
	m := abstractPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	abstract = strings.Join(strings.Fields(m[1]), " ")
	if abstract == "" {
		return "", false
	}
	return truncate(abstract, maxAbstractLen), true
}

// PotentialTitle joins the first five non-empty lines of the first page.
func PotentialTitle(firstPage string) string {
	var lines []string
	for _, l := range strings.Split(firstPage, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
			if len(lines) == 5 {
				break
			}
		}
	}
	return strings.Join(lines, " ")
}

// TextReport bundles every text-only analysis.
type TextReport struct {
	WordCount      int            `json:"word_count"`
	Abstract       string         `json:"abstract,omitempty"`
	Sections       []string       `json:"sections_found"`
	Figures        []Figure       `json:"figures"`
	KeyInformation KeyInformation `json:"key_information"`
}

// AnalyzeText runs figure, section, abstract and key information extraction
// over text.
func AnalyzeText(text string) *TextReport {
	abstract, _ := ExtractAbstract(text)
	return &TextReport{
		WordCount:      WordCount(text),
		Abstract:       abstract,
		Sections:       DetectSections(text),
		Figures:        ListFigures(text),
		KeyInformation: ExtractKeyInformation(text),
	}
}
