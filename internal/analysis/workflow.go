package analysis

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultWorkflowPapers is the number of papers analyzed when unset.
	DefaultWorkflowPapers = 5

	// MaxWorkflowPapers caps the papers a single run analyzes.
	MaxWorkflowPapers = 20

	// DefaultWorkflowConcurrency bounds concurrent citation lookups.
	DefaultWorkflowConcurrency = 3

	// workflowRecommendations is how many follow-up papers are suggested.
	workflowRecommendations = 5
)

// Searcher runs a keyword search against a source selector. It is satisfied
// by *papersources.Aggregator.
type Searcher interface {
	SearchByKeywords(ctx context.Context, selector, keywords string, numResults int) (*papersources.Outcome, error)
}

// CitationSource provides citation metrics and related papers. It is
// satisfied by the Semantic Scholar client.
type CitationSource interface {
	CitationMetrics(ctx context.Context, id string) (*domain.CitationMetrics, error)
	RelatedPapers(ctx context.Context, id string, n int) ([]domain.RelatedPaper, error)
}

// WorkflowRequest parameterizes a research workflow run.
type WorkflowRequest struct {
	Topic           string `json:"topic" validate:"required,max=500"`
	Source          string `json:"source,omitempty"`
	NumPapers       int    `json:"num_papers,omitempty" validate:"gte=0,lte=20"`
	IncludeAnalysis bool   `json:"include_analysis"`
	IncludeSummary  bool   `json:"include_summary"`
}

// PaperAnalysis is the per-paper impact result.
type PaperAnalysis struct {
	PaperID string        `json:"paper_id"`
	Title   string        `json:"title"`
	Impact  *ImpactReport `json:"impact_analysis,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// OverallInsights aggregates the papers of a run.
type OverallInsights struct {
	TotalPapers      int      `json:"total_papers_analyzed"`
	TotalCitations   int      `json:"total_citations"`
	AverageCitations float64  `json:"average_citations"`
	YearRange        string   `json:"year_range"`
	ResearchTrend    string   `json:"research_trend"`
	Observations     []string `json:"key_observations"`
}

// WorkflowReport is the result of a research workflow run.
type WorkflowReport struct {
	RunID           string                 `json:"run_id"`
	Topic           string                 `json:"topic"`
	GeneratedAt     time.Time              `json:"generated_at"`
	Papers          []domain.Paper         `json:"search_results"`
	Analyses        []PaperAnalysis        `json:"paper_analyses"`
	Summaries       []Summary              `json:"summaries"`
	Insights        OverallInsights        `json:"overall_insights"`
	Recommendations []domain.RelatedPaper  `json:"recommendations"`
	Sources         []WorkflowSourceStatus `json:"sources"`
}

// WorkflowSourceStatus reports one source of the search step.
type WorkflowSourceStatus struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// Workflow chains search, per-paper impact analysis, summaries and
// recommendations.
type Workflow struct {
	searcher    Searcher
	citations   CitationSource
	logger      zerolog.Logger
	concurrency int
	now         func() time.Time
}

// NewWorkflow creates a workflow. citations may be nil, in which case
// impact analysis and recommendations are skipped.
func NewWorkflow(searcher Searcher, citations CitationSource, logger zerolog.Logger) *Workflow {
	return &Workflow{
		searcher:    searcher,
		citations:   citations,
		logger:      logger.With().Str("component", "workflow").Logger(),
		concurrency: DefaultWorkflowConcurrency,
		now:         time.Now,
	}
}

// Run executes the workflow for req.
func (w *Workflow) Run(ctx context.Context, req WorkflowRequest) (*WorkflowReport, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, domain.NewValidationError("topic", "topic is required")
	}
	if req.NumPapers <= 0 {
		req.NumPapers = DefaultWorkflowPapers
	}
	req.NumPapers = min(req.NumPapers, MaxWorkflowPapers)
	if req.Source == "" {
		req.Source = string(domain.SourceTypeSemanticScholar)
	}

	now := w.now().UTC()
	report := &WorkflowReport{
		RunID:           uuid.NewString(),
		Topic:           req.Topic,
		GeneratedAt:     now,
		Analyses:        []PaperAnalysis{},
		Summaries:       []Summary{},
		Recommendations: []domain.RelatedPaper{},
	}
	logger := w.logger.With().Str("run_id", report.RunID).Str("topic", req.Topic).Logger()
	logger.Info().Str("source", req.Source).Int("num_papers", req.NumPapers).Msg("workflow started")

	outcome, err := w.searcher.SearchByKeywords(ctx, req.Source, req.Topic, req.NumPapers)
	if err != nil {
		return nil, err
	}
	report.Papers = domain.Truncate(outcome.Papers, req.NumPapers)
	if report.Papers == nil {
		report.Papers = []domain.Paper{}
	}
	for _, s := range outcome.Sources {
		status := WorkflowSourceStatus{Source: string(s.Source), Count: s.Count}
		if s.Err != nil {
			status.Error = s.Err.Error()
		}
		report.Sources = append(report.Sources, status)
	}

	metrics := w.lookupMetrics(ctx, logger, report.Papers, req.IncludeAnalysis)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, p := range report.Papers {
		if req.IncludeAnalysis {
			analysis := PaperAnalysis{PaperID: p.ID, Title: p.Title}
			switch m := metrics[i]; {
			case w.citations == nil:
				analysis.Error = "citation metrics are not configured"
			case m.err != nil:
				analysis.Error = m.err.Error()
			case m.metrics != nil:
				analysis.Impact = EvaluateImpact(m.metrics, now)
			default:
				analysis.Error = "no citation identifier for this record"
			}
			report.Analyses = append(report.Analyses, analysis)
		}
		if req.IncludeSummary {
			enriched := p
			if m := metrics[i].metrics; m != nil && citationCount(p) == 0 {
				enriched.Extra = maps.Clone(p.Extra)
				enriched.SetExtra("citation_count", m.CitationCount)
			}
			report.Summaries = append(report.Summaries, Summarize(enriched, StyleBrief, now))
		}
	}

	report.Insights = overallInsights(req.Topic, report.Papers, metrics)
	report.Recommendations = w.recommend(ctx, logger, report.Papers)

	logger.Info().
		Int("papers", len(report.Papers)).
		Int("recommendations", len(report.Recommendations)).
		Msg("workflow completed")
	return report, nil
}

type metricsResult struct {
	metrics *domain.CitationMetrics
	err     error
}

// lookupMetrics fetches citation metrics for every paper with a citation
// identifier, with bounded concurrency. Failures are kept per paper.
func (w *Workflow) lookupMetrics(ctx context.Context, logger zerolog.Logger, papers []domain.Paper, enabled bool) []metricsResult {
	results := make([]metricsResult, len(papers))
	if w.citations == nil || !enabled {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i := range papers {
		id := CitationID(papers[i])
		if id == "" {
			continue
		}
		g.Go(func() error {
			m, err := w.citations.CitationMetrics(gctx, id)
			if err != nil {
				logger.Debug().Err(err).Str("paper_id", id).Msg("citation lookup failed")
			}
			results[i] = metricsResult{metrics: m, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// recommend suggests follow-up reading around the first paper that has a
// citation identifier, most cited first.
func (w *Workflow) recommend(ctx context.Context, logger zerolog.Logger, papers []domain.Paper) []domain.RelatedPaper {
	if w.citations == nil {
		return []domain.RelatedPaper{}
	}
	for _, p := range papers {
		id := CitationID(p)
		if id == "" {
			continue
		}
		related, err := w.citations.RelatedPapers(ctx, id, workflowRecommendations)
		if err != nil {
			logger.Warn().Err(err).Str("paper_id", id).Msg("recommendations unavailable")
			return []domain.RelatedPaper{}
		}
		if related == nil {
			related = []domain.RelatedPaper{}
		}
		sort.SliceStable(related, func(i, j int) bool {
			return related[i].CitationCount > related[j].CitationCount
		})
		return related
	}
	return []domain.RelatedPaper{}
}

// CitationID maps a record to an identifier the citation source accepts:
// the native id for Semantic Scholar records, otherwise a DOI, arXiv or
// PubMed prefixed id. It returns "" when there is none.
func CitationID(p domain.Paper) string {
	switch p.Source {
	case domain.SourceTypeSemanticScholar:
		return p.ID
	case domain.SourceTypeArXiv:
		return "ARXIV:" + p.ID
	case domain.SourceTypePubMed:
		return "PMID:" + p.ID
	case domain.SourceTypeSciHub, domain.SourceTypeBioRxiv, domain.SourceTypeMedRxiv:
		if p.ID != "" {
			return "DOI:" + p.ID
		}
	}
	if doi, ok := p.Extra["doi"].(string); ok && doi != "" {
		return "DOI:" + doi
	}
	return ""
}

func overallInsights(topic string, papers []domain.Paper, metrics []metricsResult) OverallInsights {
	insights := OverallInsights{TotalPapers: len(papers)}

	minYear, maxYear := 0, 0
	for i, p := range papers {
		citations := citationCount(p)
		year := 0
		if m := metrics[i].metrics; m != nil {
			citations = m.CitationCount
			year = m.Year
		}
		if year == 0 {
			year, _ = strconv.Atoi(yearOf(p.PublicationDate))
		}
		insights.TotalCitations += citations
		if year > 0 {
			if minYear == 0 || year < minYear {
				minYear = year
			}
			maxYear = max(maxYear, year)
		}
	}

	if len(papers) > 0 {
		insights.AverageCitations = domain.Round2(float64(insights.TotalCitations) / float64(len(papers)))
	}
	insights.YearRange = "N/A"
	if minYear > 0 {
		insights.YearRange = fmt.Sprintf("%d - %d", minYear, maxYear)
	}
	insights.ResearchTrend = "emerging"
	if insights.AverageCitations > 50 {
		insights.ResearchTrend = "active"
	}
	insights.Observations = []string{
		fmt.Sprintf("Found %d papers on %q", len(papers), topic),
		fmt.Sprintf("Average of %.1f citations per paper", insights.AverageCitations),
		"Publication years: " + insights.YearRange,
		"Read the highest impact papers first",
	}
	return insights
}
