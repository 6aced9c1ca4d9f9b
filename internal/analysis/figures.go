// Package analysis implements the light text analysis layered on top of the
// paper sources: figure and section detection over extracted PDF text,
// keyword-based information extraction, summaries, impact scoring and the
// multi-step research workflow.
package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// maxCaptionLen caps a reported caption.
const maxCaptionLen = 200

// Figure kinds as reported by ListFigures.
const (
	KindFigure = "Figure"
	KindTable  = "Table"
)

var captionPattern = regexp.MustCompile(`(?i)(Figure|Fig\.|Table)\s*(\d+)[:.]?[ \t]*([^\n]+)`)

// Figure is a captioned figure or table found in the text.
type Figure struct {
	Kind    string `json:"type"`
	Number  int    `json:"number"`
	Caption string `json:"caption"`
}

// ID returns the display identifier, e.g. "Figure 3".
func (f Figure) ID() string {
	return fmt.Sprintf("%s %d", f.Kind, f.Number)
}

// ListFigures returns the first caption of every figure and table, ordered
// by kind and then number.
func ListFigures(text string) []Figure {
	seen := make(map[string]struct{})
	var figures []Figure

	for _, m := range captionPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		f := Figure{Kind: canonicalKind(m[1]), Number: n, Caption: truncate(strings.TrimSpace(m[3]), maxCaptionLen)}
		if _, dup := seen[f.ID()]; dup {
			continue
		}
		seen[f.ID()] = struct{}{}
		figures = append(figures, f)
	}

	sort.SliceStable(figures, func(i, j int) bool {
		if figures[i].Kind != figures[j].Kind {
			return figures[i].Kind < figures[j].Kind
		}
		return figures[i].Number < figures[j].Number
	})
	return figures
}

func canonicalKind(s string) string {
	if strings.EqualFold(s, "table") {
		return KindTable
	}
	return KindFigure
}

// FigureExplanation describes one figure or table.
type FigureExplanation struct {
	Figure
	Category    string   `json:"figure_type"`
	Explanation string   `json:"explanation"`
	Mentions    []string `json:"mentions,omitempty"`
	ReadingTips []string `json:"reading_tips"`
}

// figureCategories classifies a caption by its vocabulary. Order matters:
// the first matching category wins.
var figureCategories = []struct {
	name  string
	words []string
}{
	{"bar chart", []string{"bar chart", "bar graph", "histogram", "bars"}},
	{"line graph", []string{"line graph", "curve", "over time", "trend", "plot"}},
	{"scatter plot", []string{"scatter", "correlation"}},
	{"flowchart", []string{"flowchart", "flow chart", "workflow", "pipeline", "procedure"}},
	{"diagram", []string{"diagram", "schematic", "architecture", "overview", "structure", "model"}},
	{"table", []string{"table", "summary of", "comparison of"}},
	{"image", []string{"image", "photo", "micrograph", "microscopy", "staining", "scan"}},
}

// captionGuides add reading guidance keyed by caption vocabulary.
var captionGuides = []struct {
	words []string
	text  string
}{
	{[]string{"comparison", "compare", "versus", " vs"}, "A comparison across conditions, methods or groups. Look at the differences between groups and any significance markers."},
	{[]string{"workflow", "pipeline", "procedure"}, "A process overview. Follow the arrows and note the inputs and outputs of each step."},
	{[]string{"result", "data", "performance"}, "A presentation of results. Look at the trends, error bars or confidence intervals, and the control group."},
	{[]string{"structure", "model", "architecture"}, "A structural view of a system or model. Identify each component and how the components connect."},
}

// ExplainFigure locates the caption of kind number (kind is "Figure" or
// "Table"), classifies it and collects the sentences that mention it.
func ExplainFigure(text, kind string, number int) (*FigureExplanation, error) {
	kind = canonicalKind(kind)
	if number <= 0 {
		return nil, domain.NewValidationError("number", "must be positive")
	}

	var found *Figure
	for _, f := range ListFigures(text) {
		if f.Kind == kind && f.Number == number {
			found = &f
			break
		}
	}
	if found == nil {
		return nil, domain.NewNotFoundError(strings.ToLower(kind), strconv.Itoa(number))
	}

	lower := strings.ToLower(found.Caption)
	category := "other"
	if kind == KindTable {
		category = "table"
	} else {
		for _, c := range figureCategories {
			if containsAny(lower, c.words) {
				category = c.name
				break
			}
		}
	}

	explanation := "The caption does not indicate a specific figure style. Read it together with the paragraphs that cite it."
	for _, g := range captionGuides {
		if containsAny(lower, g.words) {
			explanation = g.text
			break
		}
	}

	return &FigureExplanation{
		Figure:      *found,
		Category:    category,
		Explanation: explanation,
		Mentions:    mentions(text, kind, number, found.Caption),
		ReadingTips: []string{
			"Read the Methods section for how the data were produced.",
			"Compare with the description in the Results section.",
			"Check the statistical significance markers.",
		},
	}, nil
}

// mentions returns up to three sentences referring to the figure, other than
// its caption.
func mentions(text, kind string, number int, caption string) []string {
	refs := []string{fmt.Sprintf("%s %d", strings.ToLower(kind), number)}
	if kind == KindFigure {
		refs = append(refs, fmt.Sprintf("fig. %d", number), fmt.Sprintf("fig %d", number))
	}

	var out []string
	for _, s := range sentences(text) {
		if strings.Contains(s, caption) {
			continue
		}
		if containsAny(strings.ToLower(s), refs) {
			out = append(out, s)
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
