// Package app assembles the registry, the aggregator and the analysis
// services from configuration. Both binaries build on it.
package app

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/analysis"
	"github.com/helixir/scholar-aggregator/internal/config"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/papersources/arxiv"
	"github.com/helixir/scholar-aggregator/internal/papersources/biorxiv"
	"github.com/helixir/scholar-aggregator/internal/papersources/pubmed"
	"github.com/helixir/scholar-aggregator/internal/papersources/scihub"
	"github.com/helixir/scholar-aggregator/internal/papersources/semanticscholar"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// DefaultOrder is the registry order used for sources the configuration
// does not order explicitly.
var DefaultOrder = []domain.SourceType{
	domain.SourceTypePubMed,
	domain.SourceTypeBioRxiv,
	domain.SourceTypeMedRxiv,
	domain.SourceTypeArXiv,
	domain.SourceTypeSemanticScholar,
	domain.SourceTypeSciHub,
}

// App holds the assembled services.
type App struct {
	Registry   *papersources.Registry
	Aggregator *papersources.Aggregator
	Fetcher    *pdf.Fetcher
	Extractor  *pdf.Extractor

	// Citations is nil when Semantic Scholar is disabled.
	Citations *semanticscholar.Client

	Workflow *analysis.Workflow
	Local    *analysis.LocalAnalyzer
}

// New builds every enabled adapter and the services on top of them.
// metrics may be nil.
func New(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*App, error) {
	var (
		observer papersources.RequestObserver
		recorder papersources.SearchRecorder
	)

	fetcher := pdf.NewFetcher(
		pdf.NewDownloader(pdf.Config{
			Timeout:   cfg.Downloads.Timeout,
			MaxSize:   cfg.Downloads.MaxSize,
			UserAgent: cfg.Downloads.UserAgent,
		}),
		pdf.NewStore(cfg.Downloads.Dir),
	)
	if metrics != nil {
		observer, recorder = metrics, metrics
		fetcher.WithObserver(metrics)
	}

	a := &App{Fetcher: fetcher, Extractor: pdf.NewExtractor()}

	var adapters []papersources.Adapter
	for _, source := range registryOrder(cfg.Aggregator.Order) {
		adapter, err := a.build(cfg, source, observer, logger)
		if err != nil {
			return nil, fmt.Errorf("build %s adapter: %w", source, err)
		}
		if adapter != nil {
			adapters = append(adapters, adapter)
		}
	}

	registry, err := papersources.NewRegistry(adapters...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	a.Registry = registry
	a.Aggregator = papersources.NewAggregator(registry, papersources.AggregatorConfig{
		SourceTimeout:  cfg.Aggregator.SourceTimeout,
		MaxConcurrency: cfg.Aggregator.MaxConcurrency,
	}, logger, recorder)

	var citations analysis.CitationSource
	if a.Citations != nil {
		citations = a.Citations
	}
	a.Workflow = analysis.NewWorkflow(a.Aggregator, citations, logger)
	a.Local = analysis.NewLocalAnalyzer(a.Extractor, cfg.Analysis.BatchConcurrency, logger)

	logger.Info().Strs("sources", registry.Names()).Msg("paper sources registered")
	return a, nil
}

// build returns the adapter for source, or nil when it is disabled.
func (a *App) build(cfg *config.Config, source domain.SourceType, observer papersources.RequestObserver, logger zerolog.Logger) (papersources.Adapter, error) {
	ps := cfg.PaperSources
	switch source {
	case domain.SourceTypePubMed:
		if !ps.PubMed.Enabled {
			return nil, nil
		}
		return pubmed.New(pubmed.Config{
			EUtils: pubmed.EUtilsConfig{
				BaseURL:    ps.PubMed.BaseURL,
				APIKey:     ps.PubMed.APIKey,
				Tool:       ps.PubMed.Tool,
				Email:      ps.PubMed.Email,
				Timeout:    ps.PubMed.Timeout,
				RateLimit:  ps.PubMed.RateLimit,
				MaxResults: ps.PubMed.MaxResults,
			},
		}, a.Fetcher, observer), nil

	case domain.SourceTypeBioRxiv, domain.SourceTypeMedRxiv:
		sc := ps.BioRxiv
		if source == domain.SourceTypeMedRxiv {
			sc = ps.MedRxiv
		}
		if !sc.Enabled {
			return nil, nil
		}
		return biorxiv.New(biorxiv.Config{
			Server:     source,
			BaseURL:    sc.BaseURL,
			Timeout:    sc.Timeout,
			RateLimit:  sc.RateLimit,
			MaxScan:    sc.MaxScan,
			MaxResults: sc.MaxResults,
		}, a.Fetcher, observer)

	case domain.SourceTypeArXiv:
		if !ps.ArXiv.Enabled {
			return nil, nil
		}
		return arxiv.New(arxiv.Config{
			BaseURL:    ps.ArXiv.BaseURL,
			Timeout:    ps.ArXiv.Timeout,
			RateLimit:  ps.ArXiv.RateLimit,
			MaxResults: ps.ArXiv.MaxResults,
		}, a.Fetcher, observer), nil

	case domain.SourceTypeSemanticScholar:
		if !ps.SemanticScholar.Enabled {
			return nil, nil
		}
		a.Citations = semanticscholar.New(semanticscholar.Config{
			BaseURL:    ps.SemanticScholar.BaseURL,
			APIKey:     ps.SemanticScholar.APIKey,
			Timeout:    ps.SemanticScholar.Timeout,
			RateLimit:  ps.SemanticScholar.RateLimit,
			MaxResults: ps.SemanticScholar.MaxResults,
		}, a.Fetcher, observer)
		return a.Citations, nil

	case domain.SourceTypeSciHub:
		if !ps.SciHub.Enabled {
			return nil, nil
		}
		return scihub.New(scihub.Config{
			CrossRefURL:        ps.SciHub.CrossRefURL,
			Mirror:             ps.SciHub.Mirror,
			Mailto:             ps.SciHub.Mailto,
			Timeout:            ps.SciHub.Timeout,
			RateLimit:          ps.SciHub.RateLimit,
			ResolveConcurrency: ps.SciHub.ResolveConcurrency,
		}, a.Fetcher, observer, logger)
	}
	return nil, fmt.Errorf("unknown source %q", source)
}

// registryOrder puts the configured order first and appends the remaining
// known sources in DefaultOrder.
func registryOrder(configured []string) []domain.SourceType {
	order := make([]domain.SourceType, 0, len(DefaultOrder))
	for _, name := range configured {
		source := domain.SourceType(name)
		if !slices.Contains(order, source) {
			order = append(order, source)
		}
	}
	for _, source := range DefaultOrder {
		if !slices.Contains(order, source) {
			order = append(order, source)
		}
	}
	return order
}
