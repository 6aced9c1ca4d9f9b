package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultSiteURL is the public site used for landing pages and PDFs.
	DefaultSiteURL = "https://arxiv.org"

	// DefaultRateLimit keeps to arXiv's one request every three seconds.
	DefaultRateLimit = 0.34

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults caps max_results on a single request.
	DefaultMaxResults = 1000

	sourceName = "arxiv"
)

// arxivIDRegex extracts the arXiv ID and optional version from the entry URL.
// Matches "http://arxiv.org/abs/2301.12345v1" and "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// SiteURL is the base of the landing page and PDF links.
	SiteURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults caps max_results on a single request.
	MaxResults int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements papersources.Adapter for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	fetcher    *pdf.Fetcher
}

// Ensure Client implements the Adapter interface.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new arXiv client. observer may be nil.
func New(cfg Config, fetcher *pdf.Fetcher, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Observer:  observer,
	})

	return NewWithHTTPClient(cfg, httpClient, fetcher)
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, fetcher *pdf.Fetcher) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		fetcher:    fetcher,
	}
}

// SourceName returns the registry key of this adapter.
func (c *Client) SourceName() domain.SourceType {
	return domain.SourceTypeArXiv
}

// SearchByKeywords searches every field for keywords, ordered by relevance.
func (c *Client) SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error) {
	keywords = strings.TrimSpace(keywords)
	if numResults <= 0 || keywords == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("search_query", "all:"+keywords)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(c.limit(numResults)))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	return domain.Truncate(c.entriesToPapers(feed.Entries), numResults), nil
}

// SearchAdvanced maps title, author, term and journal onto the ti:, au:,
// abs: and cat: prefixes. With none of title, author or journal set, a term
// becomes an all: search. Results are newest first and the date range is
// applied client-side on the publication date.
func (c *Client) SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error) {
	req = req.Normalize()
	if req.NumResults <= 0 {
		return nil, nil
	}

	searchQuery := BuildSearchQuery(req)
	if searchQuery == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(c.limit(req.NumResults)))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	papers := c.entriesToPapers(feed.Entries)
	if req.HasDateRange() {
		filtered := papers[:0]
		for _, p := range papers {
			if domain.InDateRange(p.PublicationDate, req.StartDate, req.EndDate) {
				filtered = append(filtered, p)
			}
		}
		papers = filtered
	}
	return domain.Truncate(papers, req.NumResults), nil
}

// BuildSearchQuery builds the search_query expression for an advanced request.
// It returns "" when nothing in req can be mapped.
func BuildSearchQuery(req domain.SearchRequest) string {
	var parts []string
	if req.Title != "" {
		parts = append(parts, "ti:"+req.Title)
	}
	if req.Author != "" {
		parts = append(parts, "au:"+req.Author)
	}
	if req.Term != "" && (req.Title != "" || req.Author != "" || req.Journal != "") {
		parts = append(parts, "abs:"+req.Term)
	}
	if req.Journal != "" {
		parts = append(parts, "cat:"+req.Journal)
	}

	if len(parts) == 0 {
		if req.Term == "" {
			return ""
		}
		return "all:" + req.Term
	}
	return strings.Join(parts, " AND ")
}

// GetMetadata retrieves a paper by its arXiv ID. An "arXiv:" prefix is accepted.
func (c *Client) GetMetadata(ctx context.Context, id string) (*domain.Paper, error) {
	arxivID := CleanID(id)
	if arxivID == "" {
		return nil, domain.NewValidationError("id", "arXiv ID cannot be empty")
	}

	params := url.Values{}
	params.Set("id_list", arxivID)
	params.Set("max_results", "1")

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	papers := c.entriesToPapers(feed.Entries)
	if len(papers) == 0 {
		return nil, domain.NewNotFoundError("paper", arxivID)
	}
	return &papers[0], nil
}

// DownloadPDF downloads https://arxiv.org/pdf/<id>.pdf as arxiv_<id>.pdf.
func (c *Client) DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error) {
	if c.fetcher == nil {
		return nil, errors.New("arxiv: pdf downloads are not configured")
	}
	arxivID := CleanID(id)
	if arxivID == "" {
		return nil, domain.NewValidationError("id", "arXiv ID cannot be empty")
	}

	return c.fetcher.Fetch(ctx, c.pdfURL(arxivID), "arxiv_"+strings.ReplaceAll(arxivID, "/", "_")+".pdf")
}

// CleanID strips an "arXiv:" prefix and surrounding whitespace.
func CleanID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 6 && strings.EqualFold(id[:6], "arxiv:") {
		id = id[6:]
	}
	return strings.TrimSpace(id)
}

func (c *Client) limit(n int) int {
	if n > c.config.MaxResults {
		return c.config.MaxResults
	}
	return n
}

// query calls /query with params and decodes the Atom feed.
func (c *Client) query(ctx context.Context, params url.Values) (*Feed, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	baseURL.RawQuery = params.Encode()

	resp, err := c.httpClient.Get(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, papersources.CheckResponse(sourceName, resp)
	}

	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, papersources.MaxResponseBytes)).Decode(&feed); err != nil {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response", err)
	}
	return &feed, nil
}

func (c *Client) entriesToPapers(entries []Entry) []domain.Paper {
	papers := make([]domain.Paper, 0, len(entries))
	for i := range entries {
		if p, ok := c.entryToPaper(&entries[i]); ok {
			papers = append(papers, p)
		}
	}
	return papers
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. Entries
// without a recognizable ID (the API's error entries) are skipped.
func (c *Client) entryToPaper(entry *Entry) (domain.Paper, bool) {
	arxivID, version := extractArXivID(entry.ID)
	if arxivID == "" {
		return domain.Paper{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	category := entry.PrimaryCategory.Term
	if category == "" && len(entry.Categories) > 0 {
		category = entry.Categories[0].Term
	}

	pubDate := strings.TrimSpace(entry.Published)
	if len(pubDate) > len(domain.DateLayout) {
		pubDate = pubDate[:len(domain.DateLayout)]
	}

	paper := domain.Paper{
		ID:              arxivID,
		Title:           normalizeWhitespace(entry.Title),
		Authors:         domain.JoinAuthors(authors),
		Abstract:        normalizeWhitespace(entry.Summary),
		PublicationDate: pubDate,
		Journal:         fmt.Sprintf("arXiv preprint (%s)", category),
		URL:             c.config.SiteURL + "/abs/" + arxivID,
		PDFURL:          domain.PDFLink(c.pdfURL(arxivID)),
		Source:          domain.SourceTypeArXiv,
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}
	if len(categories) > 0 {
		paper.SetExtra("categories", categories)
	}
	if version != "" {
		paper.SetExtra("version", version)
	}
	if doi := strings.TrimSpace(entry.DOI); doi != "" {
		paper.SetExtra("doi", doi)
	}
	if ref := strings.TrimSpace(entry.JournalRef); ref != "" {
		paper.SetExtra("journal_ref", ref)
	}

	return paper, true
}

func (c *Client) pdfURL(arxivID string) string {
	return c.config.SiteURL + "/pdf/" + arxivID + ".pdf"
}

// extractArXivID splits the entry URL into ID and version.
// "http://arxiv.org/abs/2301.12345v1" yields ("2301.12345", "v1").
func extractArXivID(entryURL string) (string, string) {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 3 {
		return "", ""
	}
	return matches[1], matches[2]
}

// normalizeWhitespace trims and collapses runs of whitespace; arXiv titles and
// abstracts carry hard line breaks.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
