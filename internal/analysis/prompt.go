package analysis

import (
	"fmt"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// analysisAspects are the points the deep analysis prompt asks about.
var analysisAspects = []string{
	"Research Background and Significance",
	"Main Research Questions or Hypotheses",
	"Methodology Overview",
	"Key Findings and Results",
	"Conclusions and Implications",
	"Limitations of the Study",
	"Future Research Directions",
	"Relationship to Other Studies in the Field",
	"Overall Evaluation of the Research",
}

// DeepAnalysisPrompt builds a prompt asking an expert reader for a
// nine-aspect analysis of p.
func DeepAnalysisPrompt(p domain.Paper) string {
	var b strings.Builder
	b.WriteString("As an expert in scientific paper analysis, please provide a comprehensive analysis of the following paper:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", orNA(p.Title))
	fmt.Fprintf(&b, "Authors: %s\n", orNA(p.Authors))
	fmt.Fprintf(&b, "Journal/Venue: %s\n", orNA(p.Journal))
	fmt.Fprintf(&b, "Publication Date: %s\n", orNA(p.PublicationDate))
	fmt.Fprintf(&b, "Abstract: %s\n\n", orNA(p.Abstract))
	b.WriteString("Please address the following aspects in your analysis:\n\n")
	for i, aspect := range analysisAspects {
		fmt.Fprintf(&b, "%d. %s\n", i+1, aspect)
	}
	b.WriteString("\nEnsure your analysis is thorough, objective, and based on the information provided.")
	return b.String()
}
