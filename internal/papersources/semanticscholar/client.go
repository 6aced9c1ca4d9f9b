package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRecommendationsURL is the base URL of the recommendations API.
	DefaultRecommendationsURL = "https://api.semanticscholar.org/recommendations/v1"

	// DefaultSiteURL is the base of paper landing pages.
	DefaultSiteURL = "https://www.semanticscholar.org"

	// DefaultRateLimit is the default rate limit in requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxLimit is the largest limit the search endpoint accepts.
	MaxLimit = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	searchFields   = "paperId,title,abstract,authors,year,venue,url,openAccessPdf,citationCount,referenceCount,fieldsOfStudy,externalIds"
	metadataFields = "paperId,title,abstract,authors,year,publicationDate,venue,url,openAccessPdf,citationCount,referenceCount,fieldsOfStudy,externalIds"

	sourceName = "semantic_scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the Graph API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// RecommendationsURL is the base URL for the recommendations API.
	RecommendationsURL string

	// SiteURL is the base used for record URLs the API does not supply.
	SiteURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults caps the search limit. Values outside (0, MaxLimit]
	// fall back to MaxLimit.
	MaxResults int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.RecommendationsURL == "" {
		c.RecommendationsURL = DefaultRecommendationsURL
	}
	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.RecommendationsURL = strings.TrimRight(c.RecommendationsURL, "/")
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
	if c.MaxResults <= 0 || c.MaxResults > MaxLimit {
		c.MaxResults = MaxLimit
	}
}

// Client implements papersources.Adapter for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
	fetcher    *pdf.Fetcher
}

// Compile-time check that Client implements papersources.Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new Semantic Scholar client. observer may be nil.
func New(cfg Config, fetcher *pdf.Fetcher, observer papersources.RequestObserver) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:       sourceName,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
		Observer:     observer,
	})

	return NewWithHTTPClient(cfg, httpClient, fetcher)
}

// NewWithHTTPClient creates a client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, fetcher *pdf.Fetcher) *Client {
	cfg.applyDefaults()
	return &Client{httpClient: httpClient, config: cfg, fetcher: fetcher}
}

// SourceName returns the registry key of this adapter.
func (c *Client) SourceName() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// SearchByKeywords queries /paper/search with limit min(n, MaxResults).
func (c *Client) SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error) {
	keywords = strings.TrimSpace(keywords)
	if numResults <= 0 || keywords == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query", keywords)
	q.Set("limit", strconv.Itoa(min(numResults, c.config.MaxResults)))
	q.Set("fields", searchFields)

	results, err := c.search(ctx, q)
	if err != nil {
		return nil, err
	}
	return domain.Truncate(c.convertToPapers(results), numResults), nil
}

// SearchAdvanced joins term, title and author into one query, fetches up to
// min(2n, MaxResults) results with optional year and venue filters, keeps those whose
// authors contain the author criterion, and truncates to n.
func (c *Client) SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error) {
	req = req.Normalize()
	if req.NumResults <= 0 {
		return nil, nil
	}

	var parts []string
	for _, s := range []string{req.Term, req.Title, req.Author} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query", strings.Join(parts, " "))
	q.Set("limit", strconv.Itoa(min(req.NumResults*2, c.config.MaxResults)))
	q.Set("fields", searchFields)
	if years := yearRange(req.StartDate, req.EndDate); years != "" {
		q.Set("year", years)
	}
	if req.Journal != "" {
		q.Set("venue", req.Journal)
	}

	results, err := c.search(ctx, q)
	if err != nil {
		return nil, err
	}

	papers := c.convertToPapers(results)
	if req.Author != "" {
		needle := strings.ToLower(req.Author)
		filtered := papers[:0]
		for _, p := range papers {
			if strings.Contains(strings.ToLower(p.Authors), needle) {
				filtered = append(filtered, p)
			}
		}
		papers = filtered
	}
	return domain.Truncate(papers, req.NumResults), nil
}

// yearRange renders the year filter: "2019-2021", "2019-" or "-2021".
func yearRange(start, end string) string {
	sy, ey := yearOf(start), yearOf(end)
	switch {
	case sy == "" && ey == "":
		return ""
	case sy == ey:
		return sy
	default:
		return sy + "-" + ey
	}
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// GetMetadata retrieves a paper by Semantic Scholar ID or any prefixed
// identifier the Graph API accepts, such as "DOI:10.1000/x" or "arXiv:2101.00001".
func (c *Client) GetMetadata(ctx context.Context, id string) (*domain.Paper, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "paper ID cannot be empty")
	}

	var result PaperResult
	if err := c.getPaper(ctx, id, metadataFields, &result); err != nil {
		return nil, err
	}

	paper := c.convertToPaper(result)
	return &paper, nil
}

// DownloadPDF fetches the open access PDF of a paper as
// semantic_scholar_<paperId>.pdf.
func (c *Client) DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error) {
	if c.fetcher == nil {
		return nil, errors.New("semantic_scholar: pdf downloads are not configured")
	}

	paper, err := c.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !paper.HasPDF() {
		return nil, domain.NewNotFoundError("open access PDF", paper.ID)
	}

	name := "semantic_scholar_" + strings.ReplaceAll(paper.ID, "/", "_") + ".pdf"
	return c.fetcher.Fetch(ctx, string(paper.PDFURL), name)
}

func (c *Client) search(ctx context.Context, q url.Values) ([]PaperResult, error) {
	var resp SearchResponse
	if err := c.getJSON(ctx, c.config.BaseURL+"/paper/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// getPaper loads /paper/<id>, mapping 404 to a NotFoundError.
func (c *Client) getPaper(ctx context.Context, id, fields string, out any) error {
	u := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(id), url.QueryEscape(fields))
	err := c.getJSON(ctx, u, out)

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return domain.NewNotFoundError("paper", id)
	}
	return err
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	resp, err := c.httpClient.Get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, papersources.MaxResponseBytes)).Decode(out); err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "decoding response", err)
	}
	return nil
}

// handleErrorResponse converts non-2xx responses, preferring the API's JSON
// error message over the raw body.
func handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message != "" {
			return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
}

func (c *Client) convertToPapers(results []PaperResult) []domain.Paper {
	papers := make([]domain.Paper, 0, len(results))
	for _, result := range results {
		papers = append(papers, c.convertToPaper(result))
	}
	return papers
}

// convertToPaper converts an API paper to a domain paper. The publication
// date is the year only.
func (c *Client) convertToPaper(result PaperResult) domain.Paper {
	names := make([]string, 0, len(result.Authors))
	for _, a := range result.Authors {
		names = append(names, a.Name)
	}

	pubDate := ""
	if result.Year > 0 {
		pubDate = strconv.Itoa(result.Year)
	}

	pageURL := result.URL
	if pageURL == "" {
		pageURL = c.config.SiteURL + "/paper/" + result.PaperID
	}

	paper := domain.Paper{
		ID:              result.PaperID,
		Title:           result.Title,
		Authors:         domain.JoinAuthors(names),
		Abstract:        result.Abstract,
		PublicationDate: pubDate,
		Journal:         result.Venue,
		URL:             pageURL,
		PDFURL:          domain.NoPDF,
		Source:          domain.SourceTypeSemanticScholar,
	}
	if result.OpenAccessPDF != nil && result.OpenAccessPDF.URL != "" {
		paper.PDFURL = domain.PDFLink(result.OpenAccessPDF.URL)
	}

	paper.SetExtra("citation_count", result.CitationCount)
	paper.SetExtra("reference_count", result.ReferenceCount)
	paper.SetExtra("fields_of_study", result.FieldsOfStudy)
	if result.ExternalIDs != nil && result.ExternalIDs.DOI != "" {
		paper.SetExtra("doi", result.ExternalIDs.DOI)
	}
	return paper
}
