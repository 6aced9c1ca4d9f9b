package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

type fakeSearcher struct {
	outcome *papersources.Outcome
	err     error

	selector string
	n        int
	calls    int
}

func (f *fakeSearcher) SearchByKeywords(_ context.Context, selector, _ string, n int) (*papersources.Outcome, error) {
	f.calls++
	f.selector, f.n = selector, n
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeCitations struct {
	mu         sync.Mutex
	metrics    map[string]*domain.CitationMetrics
	related    []domain.RelatedPaper
	relatedErr error
	lookups    []string
	relatedFor string
}

func (f *fakeCitations) CitationMetrics(_ context.Context, id string) (*domain.CitationMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, id)
	m, ok := f.metrics[id]
	if !ok {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return m, nil
}

func (f *fakeCitations) RelatedPapers(_ context.Context, id string, n int) ([]domain.RelatedPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relatedFor = id
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	return append([]domain.RelatedPaper(nil), f.related...), nil
}

func workflowPapers() []domain.Paper {
	return []domain.Paper{
		{ID: "s2a", Title: "Folding", PublicationDate: "2020", Source: domain.SourceTypeSemanticScholar},
		{ID: "2101.00001", Title: "Transformers", PublicationDate: "2021-01-04", Source: domain.SourceTypeArXiv},
		{ID: "123", Title: "Clinical Trial", PublicationDate: "2019-01-01", Source: domain.SourceTypePubMed},
	}
}

func newTestWorkflow(searcher Searcher, citations CitationSource) *Workflow {
	w := NewWorkflow(searcher, citations, zerolog.Nop())
	w.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestWorkflowRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	searcher := &fakeSearcher{outcome: &papersources.Outcome{
		Papers: workflowPapers(),
		Sources: []papersources.SourceOutcome{
			{Source: domain.SourceTypeSemanticScholar, Count: 3},
		},
	}}
	citations := &fakeCitations{
		metrics: map[string]*domain.CitationMetrics{
			"s2a":              {PaperID: "s2a", Title: "Folding", Year: 2020, CitationCount: 100, InfluentialCitationCount: 40},
			"ARXIV:2101.00001": {PaperID: "x1", Title: "Transformers", Year: 2021, CitationCount: 20},
		},
		related: []domain.RelatedPaper{
			{PaperRef: domain.PaperRef{PaperID: "r1"}, CitationCount: 5, Score: 0.9},
			{PaperRef: domain.PaperRef{PaperID: "r2"}, CitationCount: 50, Score: 0.85},
		},
	}

	report, err := newTestWorkflow(searcher, citations).Run(context.Background(), WorkflowRequest{
		Topic:           "  protein folding ",
		IncludeAnalysis: true,
		IncludeSummary:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "semantic_scholar", searcher.selector)
	assert.Equal(t, DefaultWorkflowPapers, searcher.n)
	assert.Equal(t, "protein folding", report.Topic)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2024, report.GeneratedAt.Year())
	assert.Len(t, report.Papers, 3)
	assert.ElementsMatch(t, []string{"s2a", "ARXIV:2101.00001", "PMID:123"}, citations.lookups)

	require.Len(t, report.Analyses, 3)
	require.NotNil(t, report.Analyses[0].Impact)
	assert.Equal(t, LevelHigh, report.Analyses[0].Impact.Level)
	require.NotNil(t, report.Analyses[1].Impact)
	assert.Empty(t, report.Analyses[1].Error)
	assert.Nil(t, report.Analyses[2].Impact)
	assert.Contains(t, report.Analyses[2].Error, "not found")

	require.Len(t, report.Summaries, 3)
	assert.Equal(t, StyleBrief, report.Summaries[0].Style)
	assert.Equal(t, 100, report.Summaries[0].Citations)
	assert.Nil(t, report.Papers[0].Extra)

	assert.Equal(t, 120, report.Insights.TotalCitations)
	assert.InDelta(t, 40.0, report.Insights.AverageCitations, 0.001)
	assert.Equal(t, "2019 - 2021", report.Insights.YearRange)
	assert.Equal(t, "emerging", report.Insights.ResearchTrend)

	assert.Equal(t, "s2a", citations.relatedFor)
	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, "r2", report.Recommendations[0].PaperID)
	assert.Equal(t, "r1", report.Recommendations[1].PaperID)

	require.Len(t, report.Sources, 1)
	assert.Equal(t, WorkflowSourceStatus{Source: "semantic_scholar", Count: 3}, report.Sources[0])
}

func TestWorkflowRunOptions(t *testing.T) {
	outcome := &papersources.Outcome{Papers: workflowPapers()}

	t.Run("empty topic", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcome}
		_, err := newTestWorkflow(searcher, nil).Run(context.Background(), WorkflowRequest{Topic: "  "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, searcher.calls)
	})

	t.Run("search failure", func(t *testing.T) {
		searcher := &fakeSearcher{err: domain.NewUnknownSourceError("nope", []string{"arxiv"})}
		_, err := newTestWorkflow(searcher, nil).Run(context.Background(), WorkflowRequest{Topic: "x", Source: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnknownSource)
	})

	t.Run("paper count is capped", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcome}
		_, err := newTestWorkflow(searcher, nil).Run(context.Background(), WorkflowRequest{Topic: "x", Source: "arxiv", NumPapers: 50})
		require.NoError(t, err)
		assert.Equal(t, MaxWorkflowPapers, searcher.n)
		assert.Equal(t, "arxiv", searcher.selector)
	})

	t.Run("without citation source", func(t *testing.T) {
		searcher := &fakeSearcher{outcome: outcome}
		report, err := newTestWorkflow(searcher, nil).Run(context.Background(), WorkflowRequest{Topic: "x", IncludeAnalysis: true})
		require.NoError(t, err)
		require.Len(t, report.Analyses, 3)
		assert.Equal(t, "citation metrics are not configured", report.Analyses[0].Error)
		assert.Empty(t, report.Recommendations)
		assert.Empty(t, report.Summaries)
	})

	t.Run("analysis disabled skips lookups", func(t *testing.T) {
		citations := &fakeCitations{}
		report, err := newTestWorkflow(&fakeSearcher{outcome: outcome}, citations).Run(context.Background(), WorkflowRequest{Topic: "x"})
		require.NoError(t, err)
		assert.Empty(t, report.Analyses)
		assert.Empty(t, citations.lookups)
	})

	t.Run("recommendation failure", func(t *testing.T) {
		citations := &fakeCitations{relatedErr: errors.New("boom")}
		report, err := newTestWorkflow(&fakeSearcher{outcome: outcome}, citations).Run(context.Background(), WorkflowRequest{Topic: "x"})
		require.NoError(t, err)
		assert.Empty(t, report.Recommendations)
	})
}

func TestCitationID(t *testing.T) {
	tests := []struct {
		name  string
		paper domain.Paper
		want  string
	}{
		{"semantic scholar", domain.Paper{ID: "abc", Source: domain.SourceTypeSemanticScholar}, "abc"},
		{"arxiv", domain.Paper{ID: "2101.00001", Source: domain.SourceTypeArXiv}, "ARXIV:2101.00001"},
		{"pubmed", domain.Paper{ID: "123", Source: domain.SourceTypePubMed}, "PMID:123"},
		{"biorxiv doi", domain.Paper{ID: "10.1101/2020.01.01.1", Source: domain.SourceTypeBioRxiv}, "DOI:10.1101/2020.01.01.1"},
		{"scihub doi", domain.Paper{ID: "10.1/x", Source: domain.SourceTypeSciHub}, "DOI:10.1/x"},
		{"doi passthrough", domain.Paper{Extra: map[string]any{"doi": "10.2/y"}}, "DOI:10.2/y"},
		{"nothing", domain.Paper{ID: "q"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CitationID(tt.paper))
		})
	}
}
