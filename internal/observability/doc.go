// Package observability provides logging and metrics support for the paper
// aggregator.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithSearchContext(logger, "crispr", "pubmed")
//
// # Metrics
//
// Metrics satisfies the recorder interfaces of the papersources and pdf
// packages, so one instance is passed to the aggregator, every adapter's HTTP
// client and the shared PDF fetcher:
//
//	metrics := observability.NewMetrics("scholar")
//	agg := papersources.NewAggregator(registry, cfg, logger, metrics)
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithSelector(ctx, "all")
//	logger = observability.WithContext(ctx, logger)
//
// # Standard Fields
//
//   - request_id: API request identifier
//   - selector: source selector of the request
//   - source: paper source (pubmed, arxiv, semantic_scholar, ...)
//   - keyword: search keywords
//   - paper_id: source-native paper identifier
//
// All components are safe for concurrent use from multiple goroutines.
package observability
