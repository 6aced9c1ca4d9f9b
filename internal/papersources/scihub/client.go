package scihub

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

const (
	// DefaultCrossRefURL is the CrossRef REST API base.
	DefaultCrossRefURL = "https://api.crossref.org"

	// DefaultMirror is the Sci-Hub mirror used to resolve DOIs.
	DefaultMirror = "https://sci-hub.se"

	// DefaultRateLimit applies to both CrossRef and the mirror.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 4

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultResolveConcurrency bounds concurrent mirror lookups per search.
	DefaultResolveConcurrency = 4

	sourceName = "scihub"
)

// Config holds configuration for the Sci-Hub adapter.
type Config struct {
	// CrossRefURL is the base URL of the CrossRef API.
	CrossRefURL string

	// Mirror is the Sci-Hub mirror base URL.
	Mirror string

	// Mailto is sent to CrossRef to join its polite pool.
	Mailto string

	Timeout   time.Duration
	RateLimit float64
	BurstSize int

	// ResolveConcurrency bounds concurrent DOI resolutions.
	ResolveConcurrency int
}

func (c *Config) applyDefaults() {
	if c.CrossRefURL == "" {
		c.CrossRefURL = DefaultCrossRefURL
	}
	c.CrossRefURL = strings.TrimRight(c.CrossRefURL, "/")
	if c.Mirror == "" {
		c.Mirror = DefaultMirror
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.ResolveConcurrency <= 0 {
		c.ResolveConcurrency = DefaultResolveConcurrency
	}
}

// Client implements papersources.Adapter over CrossRef and a Sci-Hub mirror.
type Client struct {
	config   Config
	index    *crossref
	resolver Resolver
	fetcher  *pdf.Fetcher
	logger   zerolog.Logger
}

// Compile-time check that Client implements papersources.Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a Sci-Hub adapter resolving DOIs on cfg.Mirror.
func New(cfg Config, fetcher *pdf.Fetcher, observer papersources.RequestObserver, logger zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()

	index := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    crossrefSource,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Observer:  observer,
	})
	mirror := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Observer:  observer,
	})

	resolver, err := NewMirrorResolver(cfg.Mirror, mirror)
	if err != nil {
		return nil, err
	}
	return NewWithResolver(cfg, index, resolver, fetcher, logger), nil
}

// NewWithResolver creates an adapter with an explicit CrossRef HTTP client and
// resolver. This is useful for testing.
func NewWithResolver(cfg Config, index *papersources.HTTPClient, resolver Resolver, fetcher *pdf.Fetcher, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		config:   cfg,
		index:    &crossref{http: index, baseURL: cfg.CrossRefURL, mailto: cfg.Mailto},
		resolver: resolver,
		fetcher:  fetcher,
		logger:   logger.With().Str("source", sourceName).Logger(),
	}
}

// SourceName returns the registry key of this adapter.
func (c *Client) SourceName() domain.SourceType {
	return domain.SourceTypeSciHub
}

// SearchByKeywords searches CrossRef and keeps the works whose DOI resolves
// to a PDF.
func (c *Client) SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error) {
	keywords = strings.TrimSpace(keywords)
	if numResults <= 0 || keywords == "" {
		return nil, nil
	}
	return c.search(ctx, keywords, numResults)
}

// SearchAdvanced renders the request as a CrossRef query string,
//
//	title:<t> author:<a> container-title:<j> <term>
//
// Dates are not mapped. A request with none of these fields returns no
// papers and makes no call.
func (c *Client) SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error) {
	req = req.Normalize()
	query := BuildQuery(req)
	if req.NumResults <= 0 || query == "" {
		return nil, nil
	}
	return c.search(ctx, query, req.NumResults)
}

// BuildQuery renders the CrossRef query for an advanced request, or "" when
// no mappable field is set.
func BuildQuery(req domain.SearchRequest) string {
	var parts []string
	if req.Title != "" {
		parts = append(parts, "title:"+req.Title)
	}
	if req.Author != "" {
		parts = append(parts, "author:"+req.Author)
	}
	if req.Journal != "" {
		parts = append(parts, "container-title:"+req.Journal)
	}
	if req.Term != "" {
		parts = append(parts, req.Term)
	}
	return strings.Join(parts, " ")
}

// search resolves every DOI with bounded concurrency and keeps CrossRef
// order. Works that fail to resolve are dropped.
func (c *Client) search(ctx context.Context, query string, numResults int) ([]domain.Paper, error) {
	works, err := c.index.search(ctx, query, numResults)
	if err != nil {
		return nil, err
	}
	if len(works) > numResults {
		works = works[:numResults]
	}

	resolved := make([]*domain.Paper, len(works))
	var g errgroup.Group
	g.SetLimit(c.config.ResolveConcurrency)
	for i := range works {
		w := &works[i]
		if w.DOI == "" {
			continue
		}
		g.Go(func() error {
			link, err := c.resolver.Resolve(ctx, w.DOI)
			if err != nil {
				c.logger.Debug().Err(err).Str("doi", w.DOI).Msg("dropping unresolved DOI")
				return nil
			}
			paper := toPaper(w, link)
			resolved[i] = &paper
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(works))
	for _, p := range resolved {
		if p != nil {
			papers = append(papers, *p)
		}
	}
	return papers, nil
}

// GetMetadata resolves the DOI on the mirror, then loads its CrossRef record.
func (c *Client) GetMetadata(ctx context.Context, id string) (*domain.Paper, error) {
	doi := CleanDOI(id)
	if doi == "" {
		return nil, domain.NewValidationError("id", "DOI cannot be empty")
	}

	link, err := c.resolver.Resolve(ctx, doi)
	if err != nil {
		return nil, err
	}

	work, err := c.index.work(ctx, doi)
	if err != nil {
		return nil, err
	}
	if work.DOI == "" {
		work.DOI = doi
	}

	paper := toPaper(work, link)
	return &paper, nil
}

// DownloadPDF saves the resolved PDF as paper_<doi>.pdf with slashes replaced.
func (c *Client) DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error) {
	if c.fetcher == nil {
		return nil, errors.New("scihub: pdf downloads are not configured")
	}

	doi := CleanDOI(id)
	if doi == "" {
		return nil, domain.NewValidationError("id", "DOI cannot be empty")
	}

	link, err := c.resolver.Resolve(ctx, doi)
	if err != nil {
		return nil, err
	}
	return c.fetcher.Fetch(ctx, link, "paper_"+strings.ReplaceAll(doi, "/", "_")+".pdf")
}

// CleanDOI strips "doi:" and doi.org URL prefixes.
func CleanDOI(id string) string {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		if len(id) >= len(prefix) && strings.EqualFold(id[:len(prefix)], prefix) {
			id = id[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(id)
}

func toPaper(w *Work, link string) domain.Paper {
	paper := domain.Paper{
		ID:              w.DOI,
		Title:           first(w.Title),
		Authors:         formatAuthors(w.Author),
		Abstract:        plainText(w.Abstract),
		PublicationDate: formatDate(w.Created),
		Journal:         first(w.ContainerTitle),
		URL:             "https://doi.org/" + w.DOI,
		PDFURL:          domain.PDFLink(link),
		Source:          domain.SourceTypeSciHub,
	}
	paper.SetExtra("doi", w.DOI)
	if w.Publisher != "" {
		paper.SetExtra("publisher", w.Publisher)
	}
	return paper
}
