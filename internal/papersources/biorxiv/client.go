// Package biorxiv provides the adapter for the bioRxiv and medRxiv preprint
// servers. Both share the api.biorxiv.org details endpoint, so one Client type
// serves either server.
//
// The API has no keyword search. Searches page through a date-bounded listing
// and match records client-side, scanning at most Config.MaxScan records. The
// worst case is ceil(MaxScan/pageSize) requests per search.
//
// API Documentation: https://api.biorxiv.org
package biorxiv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

const (
	// DefaultBaseURL is the default bioRxiv API base URL.
	DefaultBaseURL = "https://api.biorxiv.org"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxScanLimit is the hard ceiling on records scanned by one search.
	MaxScanLimit = 10000

	// DefaultWindow is the trailing listing window used when no dates are given.
	DefaultWindow = 365 * 24 * time.Hour

	// DOIPrefix is the registrant prefix shared by all bioRxiv and medRxiv DOIs.
	DOIPrefix = "10.1101/"
)

// versionSuffix matches a trailing version marker such as "v2".
var versionSuffix = regexp.MustCompile(`v(\d+)$`)

// Config holds configuration for the bioRxiv/medRxiv client.
type Config struct {
	// Server is the preprint server, SourceTypeBioRxiv or SourceTypeMedRxiv.
	Server domain.SourceType

	// BaseURL is the API base URL.
	BaseURL string

	// SiteURL is the base of landing page and PDF links.
	// Defaults to https://www.<server>.org.
	SiteURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxScan bounds the number of listing records one search may examine.
	// Values outside (0, MaxScanLimit] fall back to MaxScanLimit.
	MaxScan int

	// MaxResults caps the records one search returns, with the same bounds
	// as MaxScan.
	MaxResults int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.Server == "" {
		c.Server = domain.SourceTypeBioRxiv
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SiteURL == "" {
		c.SiteURL = fmt.Sprintf("https://www.%s.org", c.Server)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
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
	if c.MaxScan <= 0 || c.MaxScan > MaxScanLimit {
		c.MaxScan = MaxScanLimit
	}
	if c.MaxResults <= 0 || c.MaxResults > MaxScanLimit {
		c.MaxResults = MaxScanLimit
	}
}

// Client implements papersources.Adapter for one preprint server.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	fetcher    *pdf.Fetcher
	now        func() time.Time
}

// Ensure Client implements the Adapter interface.
var _ papersources.Adapter = (*Client)(nil)

// New creates a new client for cfg.Server. observer may be nil.
func New(cfg Config, fetcher *pdf.Fetcher, observer papersources.RequestObserver) (*Client, error) {
	cfg.applyDefaults()
	if cfg.Server != domain.SourceTypeBioRxiv && cfg.Server != domain.SourceTypeMedRxiv {
		return nil, domain.NewValidationError("server", "must be biorxiv or medrxiv, got "+string(cfg.Server))
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    string(cfg.Server),
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Observer:  observer,
	})

	return NewWithHTTPClient(cfg, httpClient, fetcher), nil
}

// NewWithHTTPClient creates a new client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, fetcher *pdf.Fetcher) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		fetcher:    fetcher,
		now:        time.Now,
	}
}

// SourceName returns the configured server name.
func (c *Client) SourceName() domain.SourceType {
	return c.config.Server
}

// SearchByKeywords scans the trailing 365 days for records whose title or
// abstract contains keywords, case-insensitively.
func (c *Client) SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error) {
	needle := strings.ToLower(strings.TrimSpace(keywords))
	if numResults <= 0 || needle == "" {
		return nil, nil
	}

	end := c.now().UTC()
	start := end.Add(-DefaultWindow)

	return c.scan(ctx, start.Format(domain.DateLayout), end.Format(domain.DateLayout), numResults, func(item *Item) bool {
		return strings.Contains(strings.ToLower(item.Title), needle) ||
			strings.Contains(strings.ToLower(item.Abstract), needle)
	})
}

// SearchAdvanced scans the requested date window, matching title and author
// substrings. A missing end date defaults to today and a missing start date
// to 365 days before the end. Journal and term are not supported.
func (c *Client) SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error) {
	req = req.Normalize()
	if req.NumResults <= 0 {
		return nil, nil
	}
	if req.Title == "" && req.Author == "" && !req.HasDateRange() {
		return nil, nil
	}

	start, end, err := c.window(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	title := strings.ToLower(req.Title)
	author := strings.ToLower(req.Author)

	return c.scan(ctx, start, end, req.NumResults, func(item *Item) bool {
		if title != "" && !strings.Contains(strings.ToLower(item.Title), title) {
			return false
		}
		if author != "" && !strings.Contains(strings.ToLower(item.Authors), author) {
			return false
		}
		return domain.InDateRange(item.Date, req.StartDate, req.EndDate)
	})
}

// window resolves the listing interval for an advanced search.
func (c *Client) window(startDate, endDate string) (string, string, error) {
	end := c.now().UTC()
	if endDate != "" {
		t, err := domain.ParseDate(endDate)
		if err != nil {
			return "", "", err
		}
		end = t
	}

	start := end.Add(-DefaultWindow)
	if startDate != "" {
		t, err := domain.ParseDate(startDate)
		if err != nil {
			return "", "", err
		}
		start = t
	}

	return start.Format(domain.DateLayout), end.Format(domain.DateLayout), nil
}

// scan pages through /details/<server>/<start>/<end>/<cursor>, collecting
// matching records until numResults are found, a page is empty or fails, or
// MaxScan records have been examined. A failure on the first page is returned;
// later failures end the scan with the records collected so far.
func (c *Client) scan(ctx context.Context, start, end string, numResults int, match func(*Item) bool) ([]domain.Paper, error) {
	numResults = min(numResults, c.config.MaxResults)
	papers := make([]domain.Paper, 0, numResults)

	for cursor := 0; len(papers) < numResults && cursor < c.config.MaxScan; {
		page, err := c.details(ctx, start+"/"+end+"/"+strconv.Itoa(cursor))
		if err != nil {
			if cursor == 0 || ctx.Err() != nil {
				return nil, err
			}
			break
		}
		if len(page.Collection) == 0 {
			break
		}

		for i := range page.Collection {
			item := &page.Collection[i]
			if !match(item) {
				continue
			}
			papers = append(papers, c.itemToPaper(item))
			if len(papers) >= numResults {
				break
			}
		}

		cursor += len(page.Collection)
	}

	return papers, nil
}

// GetMetadata retrieves the latest version of a preprint by DOI. The 10.1101/
// prefix is optional.
func (c *Client) GetMetadata(ctx context.Context, id string) (*domain.Paper, error) {
	doi, _ := splitVersion(CleanDOI(id))
	if doi == "" {
		return nil, domain.NewValidationError("id", "DOI cannot be empty")
	}

	resp, err := c.details(ctx, DOIPrefix+doi)
	if err != nil {
		return nil, err
	}
	if len(resp.Collection) == 0 {
		return nil, domain.NewNotFoundError("paper", DOIPrefix+doi)
	}

	// Versions are listed oldest first.
	paper := c.itemToPaper(&resp.Collection[len(resp.Collection)-1])
	return &paper, nil
}

// DownloadPDF downloads the full text PDF as <server>_<doi>.pdf. A trailing
// version such as "v2" selects that version; otherwise v1 is fetched.
func (c *Client) DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error) {
	if c.fetcher == nil {
		return nil, errors.New(string(c.config.Server) + ": pdf downloads are not configured")
	}
	doi, version := splitVersion(CleanDOI(id))
	if doi == "" {
		return nil, domain.NewValidationError("id", "DOI cannot be empty")
	}
	if version == "" {
		version = "1"
	}

	name := string(c.config.Server) + "_" + strings.ReplaceAll(doi, "/", "_") + ".pdf"
	return c.fetcher.Fetch(ctx, c.pdfURL(DOIPrefix+doi, version), name)
}

// CleanDOI trims whitespace, a "doi:" scheme and the 10.1101/ prefix.
func CleanDOI(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "doi:")
	id = strings.TrimPrefix(id, DOIPrefix)
	return strings.TrimSpace(id)
}

// splitVersion separates a trailing version marker from a DOI suffix.
func splitVersion(doi string) (string, string) {
	m := versionSuffix.FindStringSubmatchIndex(doi)
	if m == nil {
		return doi, ""
	}
	return doi[:m[0]], doi[m[2]:m[3]]
}

// details calls /details/<server>/<path> and decodes the listing.
func (c *Client) details(ctx context.Context, path string) (*DetailsResponse, error) {
	endpoint := fmt.Sprintf("%s/details/%s/%s", c.config.BaseURL, c.config.Server, path)

	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, papersources.CheckResponse(string(c.config.Server), resp)
	}

	var body DetailsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, papersources.MaxResponseBytes)).Decode(&body); err != nil {
		return nil, domain.NewExternalAPIError(string(c.config.Server), resp.StatusCode, "decoding response", err)
	}
	return &body, nil
}

// itemToPaper converts a listing item to a domain Paper.
func (c *Client) itemToPaper(item *Item) domain.Paper {
	doi := strings.TrimSpace(item.DOI)
	version := strings.TrimSpace(item.Version)
	if version == "" {
		version = "1"
	}

	paper := domain.Paper{
		ID:              doi,
		Title:           strings.TrimSpace(item.Title),
		Authors:         strings.TrimSpace(item.Authors),
		Abstract:        strings.TrimSpace(item.Abstract),
		PublicationDate: strings.TrimSpace(item.Date),
		Journal:         string(c.config.Server) + " (preprint)",
		URL:             c.config.SiteURL + "/content/" + doi,
		PDFURL:          domain.PDFLink(c.pdfURL(doi, version)),
		Source:          c.config.Server,
	}

	paper.SetExtra("version", version)
	if item.Category != "" {
		paper.SetExtra("category", strings.TrimSpace(item.Category))
	}
	if item.License != "" {
		paper.SetExtra("license", item.License)
	}
	if pub := strings.TrimSpace(item.Published); pub != "" && pub != "NA" {
		paper.SetExtra("published_doi", pub)
	}
	return paper
}

func (c *Client) pdfURL(doi, version string) string {
	return c.config.SiteURL + "/content/" + doi + "v" + version + ".full.pdf"
}
