package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// APIKeyRateLimit is the rate limit applied when an API key is configured.
	APIKeyRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxResultsLimit is the maximum retmax accepted by esearch.
	MaxResultsLimit = 10000

	sourceName = "pubmed"
)

// MetadataLookup is the E-utilities surface the adapter depends on.
type MetadataLookup interface {
	// Search returns up to retmax PMIDs matching term, in relevance order.
	Search(ctx context.Context, term string, retmax int) ([]string, error)

	// Fetch returns the articles for pmids. Unknown PMIDs are omitted.
	Fetch(ctx context.Context, pmids []string) ([]Article, error)

	// Lookup returns a single article or a *domain.NotFoundError.
	Lookup(ctx context.Context, pmid string) (*Article, error)
}

// EUtilsConfig holds the configuration for the E-utilities client.
type EUtilsConfig struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	APIKey string

	// Tool and Email identify the caller to NCBI.
	Tool  string
	Email string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to
	// DefaultRateLimit, or APIKeyRateLimit when APIKey is set.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults caps retmax on a single esearch call. Values outside
	// (0, MaxResultsLimit] fall back to MaxResultsLimit.
	MaxResults int
}

// applyDefaults applies default values to the config.
func (c *EUtilsConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
		if c.APIKey != "" {
			c.RateLimit = APIKeyRateLimit
		}
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.Tool == "" {
		c.Tool = "scholar-aggregator"
	}
	if c.MaxResults <= 0 || c.MaxResults > MaxResultsLimit {
		c.MaxResults = MaxResultsLimit
	}
}

// EUtils calls the esearch and efetch endpoints.
type EUtils struct {
	config     EUtilsConfig
	httpClient *papersources.HTTPClient
}

var _ MetadataLookup = (*EUtils)(nil)

// NewEUtils creates an E-utilities client. observer may be nil.
func NewEUtils(cfg EUtilsConfig, observer papersources.RequestObserver) *EUtils {
	cfg.applyDefaults()

	return NewEUtilsWithHTTPClient(cfg, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		Observer:  observer,
	}))
}

// NewEUtilsWithHTTPClient creates an E-utilities client with a custom HTTP client.
func NewEUtilsWithHTTPClient(cfg EUtilsConfig, httpClient *papersources.HTTPClient) *EUtils {
	cfg.applyDefaults()
	return &EUtils{config: cfg, httpClient: httpClient}
}

// Search performs esearch and returns matching PMIDs. A phrase PubMed does
// not know yields no IDs rather than an error.
func (e *EUtils) Search(ctx context.Context, term string, retmax int) ([]string, error) {
	if retmax <= 0 || strings.TrimSpace(term) == "" {
		return nil, nil
	}
	retmax = min(retmax, e.config.MaxResults)

	q := e.params()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(retmax))

	var result ESearchResult
	if err := e.get(ctx, "esearch.fcgi", q, &result); err != nil {
		return nil, err
	}

	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 && len(result.IDList.IDs) == 0 {
		return nil, nil
	}
	return result.IDList.IDs, nil
}

// Fetch performs efetch for pmids and returns articles in the order given.
func (e *EUtils) Fetch(ctx context.Context, pmids []string) ([]Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	q := e.params()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	var set PubmedArticleSet
	if err := e.get(ctx, "efetch.fcgi", q, &set); err != nil {
		return nil, err
	}

	byPMID := make(map[string]Article, len(set.Articles))
	for i := range set.Articles {
		a := toArticle(&set.Articles[i])
		byPMID[a.PMID] = a
	}

	articles := make([]Article, 0, len(byPMID))
	for _, id := range pmids {
		if a, ok := byPMID[id]; ok {
			articles = append(articles, a)
			delete(byPMID, id)
		}
	}
	return articles, nil
}

// Lookup fetches a single article by PMID.
func (e *EUtils) Lookup(ctx context.Context, pmid string) (*Article, error) {
	pmid = strings.TrimSpace(pmid)
	if pmid == "" {
		return nil, domain.NewValidationError("id", "PMID cannot be empty")
	}

	articles, err := e.Fetch(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, domain.NewNotFoundError("paper", pmid)
	}
	return &articles[0], nil
}

func (e *EUtils) params() url.Values {
	q := url.Values{}
	q.Set("tool", e.config.Tool)
	if e.config.Email != "" {
		q.Set("email", e.config.Email)
	}
	if e.config.APIKey != "" {
		q.Set("api_key", e.config.APIKey)
	}
	return q
}

// get calls endpoint and decodes the XML body into out.
func (e *EUtils) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	u := e.config.BaseURL + "/" + endpoint + "?" + q.Encode()

	resp, err := e.httpClient.Get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return papersources.CheckResponse(sourceName, resp)
	}

	if err := xml.NewDecoder(io.LimitReader(resp.Body, papersources.MaxResponseBytes)).Decode(out); err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, fmt.Sprintf("parsing %s response", endpoint), err)
	}
	return nil
}

// toArticle flattens an efetch record into an Article.
func toArticle(pa *PubmedArticle) Article {
	citation := pa.MedlineCitation
	info := citation.Article

	journal := strings.TrimSpace(info.Journal.Title)
	if journal == "" {
		journal = strings.TrimSpace(info.Journal.ISOAbbreviation)
	}

	a := Article{
		PMID:            strings.TrimSpace(citation.PMID.Value),
		Title:           strings.TrimSpace(info.ArticleTitle),
		Authors:         domain.JoinAuthors(extractAuthors(info.AuthorList)),
		Journal:         journal,
		PublicationDate: extractPublicationDate(info),
		Abstract:        extractAbstract(info.Abstract),
		DOI:             extractDOI(info, pa.PubmedData),
	}

	for _, aid := range pa.PubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "pmc" {
			a.PMCID = strings.TrimSpace(aid.Value)
			break
		}
	}
	if citation.MeshHeadingList != nil {
		for _, mh := range citation.MeshHeadingList.MeshHeadings {
			a.MeshTerms = append(a.MeshTerms, mh.DescriptorName.Value)
		}
	}
	if citation.KeywordList != nil {
		for _, kw := range citation.KeywordList.Keywords {
			a.Keywords = append(a.Keywords, kw.Value)
		}
	}
	return a
}

// extractDOI extracts the DOI from article metadata.
// It checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(info ArticleInfo, pubmedData PubmedData) string {
	for _, eloc := range info.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return strings.TrimSpace(eloc.Value)
		}
	}

	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return strings.TrimSpace(aid.Value)
		}
	}

	return ""
}

// extractPublicationDate renders the journal issue date, falling back to the
// electronic article date and then to the year of a MedlineDate.
func extractPublicationDate(info ArticleInfo) string {
	pubDate := info.Journal.JournalIssue.PubDate
	if d := formatDate(pubDate.Year, pubDate.Month, pubDate.Day); d != "" {
		return d
	}

	for _, ad := range info.ArticleDate {
		if d := formatDate(ad.Year, ad.Month, ad.Day); d != "" {
			return d
		}
	}

	if year := extractYearFromMedlineDate(pubDate.MedlineDate); year > 0 {
		return strconv.Itoa(year)
	}
	return ""
}

// formatDate renders YYYY, YYYY-MM or YYYY-MM-DD depending on which parts
// parse. It returns "" without a valid year.
func formatDate(year, month, day string) string {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return ""
	}
	m := parseMonth(month)
	if m == 0 {
		return fmt.Sprintf("%04d", y)
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 || d > 31 {
		return fmt.Sprintf("%04d-%02d", y, int(m))
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// parseMonth parses a numeric or named month. It returns 0 when month is
// empty or unrecognized.
func parseMonth(month string) time.Month {
	month = strings.TrimSpace(month)
	if month == "" {
		return 0
	}

	if m, err := strconv.Atoi(month); err == nil {
		if m >= 1 && m <= 12 {
			return time.Month(m)
		}
		return 0
	}

	return monthNames[strings.ToLower(month)]
}

// extractYearFromMedlineDate extracts the year from a MedlineDate string
// such as "2020 Jan-Feb", "2020 Spring" or "2020-2021".
func extractYearFromMedlineDate(medlineDate string) int {
	parts := strings.Fields(medlineDate)
	if len(parts) > 0 {
		yearStr := strings.Split(parts[0], "-")[0]
		if year, err := strconv.Atoi(yearStr); err == nil {
			return year
		}
	}
	return 0
}

// extractAbstract concatenates multiple abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// extractAuthors returns "ForeName LastName" for each valid author, or the
// collective name for group authors.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil {
		return nil
	}

	names := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}
		if a.CollectiveName != "" {
			names = append(names, a.CollectiveName)
			continue
		}
		name := strings.TrimSpace(a.ForeName + " " + a.LastName)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
