package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// Impact levels.
const (
	LevelHigh     = "High"
	LevelMedium   = "Medium"
	LevelEmerging = "Emerging"
)

// ImpactReport scores a paper's citation record.
type ImpactReport struct {
	PaperID               string   `json:"paper_id"`
	Title                 string   `json:"title"`
	TotalCitations        int      `json:"total_citations"`
	InfluentialCitations  int      `json:"influential_citations"`
	InfluenceRate         float64  `json:"influence_rate"`
	CitationVelocity      float64  `json:"citation_velocity"`
	YearsSincePublication int      `json:"years_since_publication"`
	Fields                []string `json:"fields"`
	CrossDisciplinary     bool     `json:"cross_disciplinary"`
	Score                 float64  `json:"recommendation_score"`
	Level                 string   `json:"impact_level"`
	Insights              []string `json:"key_insights"`
}

// EvaluateImpact scores m as of now.
//
//	velocity = citations / max(1, years since publication)
//	score    = min(100, 0.3*citations + 2*influential + 5*velocity)
//
// A score above 70 is High, above 30 Medium, otherwise Emerging. An unknown
// publication year counts as one year old.
func EvaluateImpact(m *domain.CitationMetrics, now time.Time) *ImpactReport {
	year := m.Year
	if year <= 0 {
		year = now.Year()
	}
	years := max(1, now.Year()-year)
	velocity := float64(m.CitationCount) / float64(years)
	score := math.Min(100, float64(m.CitationCount)*0.3+float64(m.InfluentialCitationCount)*2+velocity*5)

	report := &ImpactReport{
		PaperID:               m.PaperID,
		Title:                 m.Title,
		TotalCitations:        m.CitationCount,
		InfluentialCitations:  m.InfluentialCitationCount,
		InfluenceRate:         m.InfluenceRate(),
		CitationVelocity:      domain.Round2(velocity),
		YearsSincePublication: years,
		Fields:                m.FieldsOfStudy,
		CrossDisciplinary:     len(m.FieldsOfStudy) > 2,
		Score:                 domain.Round2(score),
		Level:                 impactLevel(score),
		Insights:              []string{},
	}

	if velocity > 10 {
		report.Insights = append(report.Insights, "High citation velocity: the work keeps attracting attention.")
	}
	if float64(m.InfluentialCitationCount)/float64(max(m.CitationCount, 1)) > 0.3 {
		report.Insights = append(report.Insights, "A large share of citations are influential, a sign of research quality.")
	}
	if years < 2 && m.CitationCount > 50 {
		report.Insights = append(report.Insights, "Recently published yet highly cited: a fast rising work.")
	}
	return report
}

func impactLevel(score float64) string {
	switch {
	case score > 70:
		return LevelHigh
	case score > 30:
		return LevelMedium
	default:
		return LevelEmerging
	}
}

// Comparison contrasts several papers' citation records.
type Comparison struct {
	PapersCompared int                      `json:"papers_compared"`
	Papers         []domain.CitationMetrics `json:"papers"`
	Ranking        []RankedPaper            `json:"impact_ranking"`
	Impact         ImpactSpread             `json:"impact"`
	Timeline       Timeline                 `json:"timeline"`
	Fields         FieldOverlap             `json:"fields"`
}

// RankedPaper is one entry of the impact ranking.
type RankedPaper struct {
	PaperID string  `json:"paper_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Level   string  `json:"impact_level"`
}

// ImpactSpread summarizes citation counts.
type ImpactSpread struct {
	HighestCited   int    `json:"highest_cited"`
	LowestCited    int    `json:"lowest_cited"`
	CitationRange  int    `json:"citation_range"`
	MostCitedPaper string `json:"most_cited_paper"`
}

// Timeline spans the publication years.
type Timeline struct {
	EarliestYear int `json:"earliest_year,omitempty"`
	LatestYear   int `json:"latest_year,omitempty"`
	TimeSpan     int `json:"time_span"`
}

// FieldOverlap lists the union of fields of study.
type FieldOverlap struct {
	AllFields         []string `json:"all_fields"`
	SharedFields      []string `json:"shared_fields"`
	Interdisciplinary bool     `json:"interdisciplinary"`
}

// Comparison bounds.
const (
	MinCompared = 2
	MaxCompared = 5
)

// ComparePapers ranks two to five papers by impact and compares their
// timelines and fields.
func ComparePapers(papers []domain.CitationMetrics, now time.Time) (*Comparison, error) {
	if len(papers) < MinCompared || len(papers) > MaxCompared {
		return nil, domain.NewValidationError("paper_ids", "compare between 2 and 5 papers")
	}

	c := &Comparison{PapersCompared: len(papers), Papers: papers}

	c.Impact.LowestCited = papers[0].CitationCount
	for i := range papers {
		p := &papers[i]
		report := EvaluateImpact(p, now)
		c.Ranking = append(c.Ranking, RankedPaper{PaperID: p.PaperID, Title: p.Title, Score: report.Score, Level: report.Level})

		if p.CitationCount > c.Impact.HighestCited || i == 0 {
			c.Impact.HighestCited = p.CitationCount
			c.Impact.MostCitedPaper = p.Title
		}
		c.Impact.LowestCited = min(c.Impact.LowestCited, p.CitationCount)

		if p.Year > 0 {
			if c.Timeline.EarliestYear == 0 || p.Year < c.Timeline.EarliestYear {
				c.Timeline.EarliestYear = p.Year
			}
			c.Timeline.LatestYear = max(c.Timeline.LatestYear, p.Year)
		}
	}
	c.Impact.CitationRange = c.Impact.HighestCited - c.Impact.LowestCited
	if c.Timeline.EarliestYear > 0 {
		c.Timeline.TimeSpan = c.Timeline.LatestYear - c.Timeline.EarliestYear
	}
	sort.SliceStable(c.Ranking, func(i, j int) bool { return c.Ranking[i].Score > c.Ranking[j].Score })

	counts := make(map[string]int)
	for _, p := range papers {
		seen := make(map[string]struct{})
		for _, f := range p.FieldsOfStudy {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			counts[f]++
		}
	}
	c.Fields.AllFields = []string{}
	c.Fields.SharedFields = []string{}
	for f, n := range counts {
		c.Fields.AllFields = append(c.Fields.AllFields, f)
		if n == len(papers) {
			c.Fields.SharedFields = append(c.Fields.SharedFields, f)
		}
	}
	sort.Strings(c.Fields.AllFields)
	sort.Strings(c.Fields.SharedFields)
	c.Fields.Interdisciplinary = len(c.Fields.AllFields) > 3

	return c, nil
}
