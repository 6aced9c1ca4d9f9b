package papersources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// DefaultSourceTimeout bounds a single adapter invocation.
const DefaultSourceTimeout = 30 * time.Second

// AggregatorConfig configures the fan-out.
type AggregatorConfig struct {
	// SourceTimeout bounds each adapter invocation. Defaults to DefaultSourceTimeout.
	SourceTimeout time.Duration

	// MaxConcurrency limits how many adapters run at once. Zero means no limit.
	MaxConcurrency int
}

// SearchRecorder receives per-source search outcomes. It is implemented by
// the metrics layer.
type SearchRecorder interface {
	RecordSearchStarted(source string)
	RecordSearchCompleted(source string, papers int, duration time.Duration)
	RecordSearchFailed(source string, kind string, duration time.Duration)
	RecordMerge(kept, dropped int)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearchStarted(string) {}
func (nopRecorder) RecordSearchCompleted(string, int, time.Duration) {}
func (nopRecorder) RecordSearchFailed(string, string, time.Duration) {}
func (nopRecorder) RecordMerge(int, int) {}

// SourceOutcome reports what one source contributed to a search.
type SourceOutcome struct {
	Source   domain.SourceType
	Count    int
	Err      error
	Duration time.Duration
}

// Failed reports whether the source returned an error.
func (o SourceOutcome) Failed() bool {
	return o.Err != nil
}

// Outcome is the result of an aggregated search. Papers never contains a
// record from a failed source; failures are visible only in Sources.
type Outcome struct {
	Papers  []domain.Paper
	Sources []SourceOutcome
}

// Failures returns the outcomes of the sources that returned an error.
func (o *Outcome) Failures() []SourceOutcome {
	var failed []SourceOutcome
	for _, s := range o.Sources {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Aggregator dispatches requests to one or all registered adapters.
type Aggregator struct {
	registry *Registry
	config   AggregatorConfig
	logger   zerolog.Logger
	recorder SearchRecorder
}

// NewAggregator creates an aggregator over registry. A nil recorder disables
// search metrics.
func NewAggregator(registry *Registry, cfg AggregatorConfig, logger zerolog.Logger, recorder SearchRecorder) *Aggregator {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}
	if cfg.MaxConcurrency < 0 {
		cfg.MaxConcurrency = 0
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Aggregator{
		registry: registry,
		config:   cfg,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		recorder: recorder,
	}
}

// Registry returns the registry the aggregator dispatches to.
func (a *Aggregator) Registry() *Registry {
	return a.registry
}

// Sources returns the registered source names in registry order.
func (a *Aggregator) Sources() []string {
	return a.registry.Names()
}

type searchFunc func(ctx context.Context, adapter Adapter) ([]domain.Paper, error)

// SearchByKeywords runs a keyword search against the selected source, or
// against every source when selector is domain.SelectorAll.
func (a *Aggregator) SearchByKeywords(ctx context.Context, selector, keywords string, numResults int) (*Outcome, error) {
	keywords = strings.TrimSpace(keywords)
	return a.dispatch(ctx, selector, func(ctx context.Context, adapter Adapter) ([]domain.Paper, error) {
		return adapter.SearchByKeywords(ctx, keywords, numResults)
	})
}

// SearchAdvanced runs a field-based search. The request is normalized before
// dispatch so every adapter sees only the criteria that are actually set.
func (a *Aggregator) SearchAdvanced(ctx context.Context, selector string, req domain.SearchRequest) (*Outcome, error) {
	req = req.Normalize()
	return a.dispatch(ctx, selector, func(ctx context.Context, adapter Adapter) ([]domain.Paper, error) {
		return adapter.SearchAdvanced(ctx, req)
	})
}

// GetMetadata fetches one record from a single named source.
func (a *Aggregator) GetMetadata(ctx context.Context, source, id string) (*domain.Paper, error) {
	adapter, id, err := a.single(source, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.SourceTimeout)
	defer cancel()

	paper, err := adapter.GetMetadata(ctx, id)
	if err != nil {
		a.logger.Debug().Err(err).
			Str("source", string(adapter.SourceName())).
			Str("paper_id", id).
			Msg("metadata lookup failed")
		return nil, err
	}
	return paper, nil
}

// DownloadPDF downloads the PDF of one record from a single named source.
func (a *Aggregator) DownloadPDF(ctx context.Context, source, id string) (*pdf.SavedFile, error) {
	adapter, id, err := a.single(source, id)
	if err != nil {
		return nil, err
	}

	saved, err := adapter.DownloadPDF(ctx, id)
	if err != nil {
		a.logger.Debug().Err(err).
			Str("source", string(adapter.SourceName())).
			Str("paper_id", id).
			Msg("pdf download failed")
		return nil, err
	}
	return saved, nil
}

// single validates a lookup addressed to exactly one source.
func (a *Aggregator) single(source, id string) (Adapter, string, error) {
	if IsAll(source) {
		return nil, "", domain.NewValidationError("source", "a single source is required, not "+domain.SelectorAll)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", domain.NewValidationError("id", "cannot be empty")
	}
	adapter, err := a.registry.Lookup(source)
	if err != nil {
		return nil, "", err
	}
	return adapter, id, nil
}

// dispatch resolves selector and runs fn against the addressed adapters.
// A single source's list is returned unchanged; multiple lists are merged in
// registry order.
func (a *Aggregator) dispatch(ctx context.Context, selector string, fn searchFunc) (*Outcome, error) {
	adapters, err := a.registry.Resolve(selector)
	if err != nil {
		return nil, err
	}

	lists := make([][]domain.Paper, len(adapters))
	outcomes := make([]SourceOutcome, len(adapters))

	if len(adapters) == 1 && !IsAll(selector) {
		lists[0], outcomes[0] = a.invoke(ctx, adapters[0], fn)
		papers := lists[0]
		if papers == nil {
			papers = []domain.Paper{}
		}
		return &Outcome{Papers: papers, Sources: outcomes}, nil
	}

	var g errgroup.Group
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}
	for i, adapter := range adapters {
		g.Go(func() error {
			lists[i], outcomes[i] = a.invoke(ctx, adapter, fn)
			return nil
		})
	}
	// invoke never returns an error to the group.
	_ = g.Wait()

	sourceLists := make([]SourcePapers, 0, len(adapters))
	total := 0
	for i, adapter := range adapters {
		if len(lists[i]) == 0 {
			continue
		}
		total += len(lists[i])
		sourceLists = append(sourceLists, SourcePapers{Source: adapter.SourceName(), Papers: lists[i]})
	}

	merged := Merge(sourceLists)
	a.recorder.RecordMerge(len(merged), total-len(merged))

	return &Outcome{Papers: merged, Sources: outcomes}, nil
}

// invoke runs fn against one adapter under the per-source timeout. Errors and
// panics are recorded in the outcome and never propagate.
func (a *Aggregator) invoke(ctx context.Context, adapter Adapter, fn searchFunc) (papers []domain.Paper, outcome SourceOutcome) {
	source := adapter.SourceName()
	outcome.Source = source
	a.recorder.RecordSearchStarted(string(source))

	ctx, cancel := context.WithTimeout(ctx, a.config.SourceTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			papers = nil
			outcome.Err = fmt.Errorf("%s adapter panic: %v", source, r)
		}
		outcome.Duration = time.Since(start)
		outcome.Count = len(papers)

		if outcome.Err != nil {
			kind := domain.KindOf(outcome.Err)
			a.recorder.RecordSearchFailed(string(source), string(kind), outcome.Duration)
			a.logger.Warn().Err(outcome.Err).
				Str("source", string(source)).
				Str("kind", string(kind)).
				Dur("duration", outcome.Duration).
				Msg("source search failed")
			return
		}
		a.recorder.RecordSearchCompleted(string(source), len(papers), outcome.Duration)
		a.logger.Debug().
			Str("source", string(source)).
			Int("papers", len(papers)).
			Dur("duration", outcome.Duration).
			Msg("source search completed")
	}()

	papers, err := fn(ctx, adapter)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}
	return papers, outcome
}
