// Package papersources provides the adapter contract for academic paper
// providers, the registry that holds the configured adapters and the
// aggregator that fans a query out across them.
//
// Each provider (PubMed, arXiv, bioRxiv/medRxiv, Semantic Scholar, Sci-Hub)
// lives in its own sub-package and implements Adapter. Adapters translate the
// provider's native API into domain.Paper records and report every failure as
// a returned error; the Aggregator turns those into "no results from that
// source" for multi-source searches.
//
// Example usage:
//
//	registry, err := papersources.NewRegistry(arxivClient, s2Client)
//	agg := papersources.NewAggregator(registry, papersources.AggregatorConfig{}, logger, nil)
//	outcome, err := agg.SearchByKeywords(ctx, domain.SelectorAll, "CRISPR", 10)
package papersources

import (
	"context"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// Adapter is the contract every paper provider implements.
type Adapter interface {
	// SearchByKeywords runs a free-text search. At most numResults records are
	// returned; numResults <= 0 returns nothing without contacting the provider.
	SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error)

	// SearchAdvanced maps the supported criteria of req into a native query and
	// ignores the rest. A request with no mappable criterion returns nil
	// without contacting the provider.
	SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error)

	// GetMetadata fetches a single record by its provider-native identifier.
	// Returns a *domain.NotFoundError when the provider has no such record.
	GetMetadata(ctx context.Context, id string) (*domain.Paper, error)

	// DownloadPDF fetches the PDF for id and stores it under a deterministic
	// file name derived from the source and identifier.
	DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error)

	// SourceName returns the registry key of this adapter.
	SourceName() domain.SourceType
}
