package pubmed

import (
	"context"
	"errors"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

const (
	// DefaultSiteURL is the base of PubMed landing pages.
	DefaultSiteURL = "https://pubmed.ncbi.nlm.nih.gov"

	// DefaultPMCURL is the base of PubMed Central article pages.
	DefaultPMCURL = "https://www.ncbi.nlm.nih.gov/pmc/articles"
)

// Config holds the adapter configuration.
type Config struct {
	EUtils EUtilsConfig

	// SiteURL is the base of record URLs.
	SiteURL string

	// PMCURL is the base used to download PubMed Central PDFs.
	PMCURL string
}

func (c *Config) applyDefaults() {
	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	if c.PMCURL == "" {
		c.PMCURL = DefaultPMCURL
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
	c.PMCURL = strings.TrimRight(c.PMCURL, "/")
}

// Client implements papersources.Adapter for PubMed on top of a MetadataLookup.
type Client struct {
	config  Config
	lookup  MetadataLookup
	fetcher *pdf.Fetcher
}

// Compile-time check that Client implements Adapter.
var _ papersources.Adapter = (*Client)(nil)

// New creates a PubMed adapter backed by a live EUtils client.
func New(cfg Config, fetcher *pdf.Fetcher, observer papersources.RequestObserver) *Client {
	return NewWithLookup(cfg, NewEUtils(cfg.EUtils, observer), fetcher)
}

// NewWithLookup creates a PubMed adapter over an arbitrary MetadataLookup.
func NewWithLookup(cfg Config, lookup MetadataLookup, fetcher *pdf.Fetcher) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, lookup: lookup, fetcher: fetcher}
}

// SourceName returns the registry key of this adapter.
func (c *Client) SourceName() domain.SourceType {
	return domain.SourceTypePubMed
}

// SearchByKeywords runs keywords as a free-text PubMed query.
func (c *Client) SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error) {
	keywords = strings.TrimSpace(keywords)
	if numResults <= 0 || keywords == "" {
		return nil, nil
	}
	return c.search(ctx, keywords, numResults)
}

// SearchAdvanced runs the field-tagged query built by BuildQuery.
func (c *Client) SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error) {
	req = req.Normalize()
	if req.NumResults <= 0 {
		return nil, nil
	}

	term := BuildQuery(req)
	if term == "" {
		return nil, nil
	}
	return c.search(ctx, term, req.NumResults)
}

func (c *Client) search(ctx context.Context, term string, numResults int) ([]domain.Paper, error) {
	pmids, err := c.lookup.Search(ctx, term, numResults)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	articles, err := c.lookup.Fetch(ctx, pmids)
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(articles))
	for i := range articles {
		papers = append(papers, c.toPaper(&articles[i]))
	}
	return domain.Truncate(papers, numResults), nil
}

// BuildQuery joins the set criteria with AND:
//
//	term AND title[Title] AND author[Author] AND journal[Journal] AND start:end[Date - Publication]
//
// The date clause is added only when both bounds are set; dates are
// rendered YYYY/MM/DD.
func BuildQuery(req domain.SearchRequest) string {
	var parts []string
	if req.Term != "" {
		parts = append(parts, req.Term)
	}
	if req.Title != "" {
		parts = append(parts, req.Title+"[Title]")
	}
	if req.Author != "" {
		parts = append(parts, req.Author+"[Author]")
	}
	if req.Journal != "" {
		parts = append(parts, req.Journal+"[Journal]")
	}
	if req.StartDate != "" && req.EndDate != "" {
		parts = append(parts, pubmedDate(req.StartDate)+":"+pubmedDate(req.EndDate)+"[Date - Publication]")
	}
	return strings.Join(parts, " AND ")
}

func pubmedDate(d string) string {
	return strings.ReplaceAll(d, "-", "/")
}

// GetMetadata returns the record for a PMID.
func (c *Client) GetMetadata(ctx context.Context, id string) (*domain.Paper, error) {
	article, err := c.lookup.Lookup(ctx, cleanPMID(id))
	if err != nil {
		return nil, err
	}
	paper := c.toPaper(article)
	return &paper, nil
}

// DownloadPDF resolves the PubMed Central copy of a PMID and saves it as
// PMID_<pmid>_PMC_<pmcid>.pdf. Articles without a PMC copy are not found.
func (c *Client) DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error) {
	if c.fetcher == nil {
		return nil, errors.New("pubmed: pdf downloads are not configured")
	}

	pmid := cleanPMID(id)
	article, err := c.lookup.Lookup(ctx, pmid)
	if err != nil {
		return nil, err
	}
	if article.PMCID == "" {
		return nil, domain.NewNotFoundError("PMC article", pmid)
	}

	pdfURL := c.config.PMCURL + "/" + article.PMCID + "/pdf"
	return c.fetcher.Fetch(ctx, pdfURL, "PMID_"+pmid+"_PMC_"+article.PMCID+".pdf")
}

func cleanPMID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 5 && strings.EqualFold(id[:5], "pmid:") {
		id = id[5:]
	}
	return strings.TrimSpace(id)
}

// toPaper renames an Article into the canonical record. PubMed records carry
// no direct PDF link.
func (c *Client) toPaper(a *Article) domain.Paper {
	paper := domain.Paper{
		ID:              a.PMID,
		Title:           a.Title,
		Authors:         a.Authors,
		Abstract:        a.Abstract,
		PublicationDate: a.PublicationDate,
		Journal:         a.Journal,
		URL:             c.config.SiteURL + "/" + a.PMID + "/",
		PDFURL:          domain.NoPDF,
		Source:          domain.SourceTypePubMed,
	}

	if a.DOI != "" {
		paper.SetExtra("doi", a.DOI)
	}
	if a.PMCID != "" {
		paper.SetExtra("pmcid", a.PMCID)
	}
	if len(a.MeshTerms) > 0 {
		paper.SetExtra("mesh_terms", a.MeshTerms)
	}
	if len(a.Keywords) > 0 {
		paper.SetExtra("keywords", a.Keywords)
	}
	return paper
}
