package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// Sample E-utilities responses.
const esearchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSearchResult PUBLIC "-//NLM//DTD esearch 20060628//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20060628/esearch.dtd">
<eSearchResult>
	<Count>2</Count>
	<RetMax>2</RetMax>
	<RetStart>0</RetStart>
	<IdList>
		<Id>12345678</Id>
		<Id>87654321</Id>
	</IdList>
</eSearchResult>`

const esearchEmptyResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
</eSearchResult>`

const esearchPhraseNotFoundXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
	<ErrorList>
		<PhraseNotFound>nonexistent_term_xyz</PhraseNotFound>
	</ErrorList>
</eSearchResult>`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2019//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_190101.dtd">
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">12345678</PMID>
			<Article PubModel="Print-Electronic">
				<Journal>
					<ISSN IssnType="Electronic">1234-5678</ISSN>
					<JournalIssue CitedMedium="Internet">
						<Volume>25</Volume>
						<Issue>3</Issue>
						<PubDate>
							<Year>2023</Year>
							<Month>Mar</Month>
							<Day>15</Day>
						</PubDate>
					</JournalIssue>
					<Title>Journal of Testing</Title>
					<ISOAbbreviation>J Test</ISOAbbreviation>
				</Journal>
				<ArticleTitle>CRISPR-Cas9 Gene Editing in Biomedical Research</ArticleTitle>
				<Pagination>
					<MedlinePgn>123-145</MedlinePgn>
				</Pagination>
				<ELocationID EIdType="doi" ValidYN="Y">10.1234/test.2023.001</ELocationID>
				<Abstract>
					<AbstractText Label="BACKGROUND" NlmCategory="BACKGROUND">Gene editing technologies have revolutionized biomedical research.</AbstractText>
					<AbstractText Label="METHODS" NlmCategory="METHODS">We analyzed CRISPR-Cas9 applications across multiple studies.</AbstractText>
					<AbstractText Label="RESULTS" NlmCategory="RESULTS">Our findings demonstrate significant improvements in editing efficiency.</AbstractText>
					<AbstractText Label="CONCLUSION" NlmCategory="CONCLUSIONS">CRISPR technology continues to advance therapeutic development.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Smith</LastName>
						<ForeName>John A</ForeName>
						<Initials>JA</Initials>
						<AffiliationInfo>
							<Affiliation>Department of Genetics, University of Research</Affiliation>
						</AffiliationInfo>
						<Identifier Source="ORCID">0000-0001-2345-6789</Identifier>
					</Author>
					<Author ValidYN="Y">
						<LastName>Johnson</LastName>
						<ForeName>Emily</ForeName>
						<Initials>E</Initials>
						<AffiliationInfo>
							<Affiliation>Institute of Molecular Biology</Affiliation>
						</AffiliationInfo>
					</Author>
					<Author ValidYN="Y">
						<CollectiveName>CRISPR Research Consortium</CollectiveName>
					</Author>
				</AuthorList>
				<ArticleDate DateType="Electronic">
					<Year>2023</Year>
					<Month>02</Month>
					<Day>28</Day>
				</ArticleDate>
			</Article>
			<MeshHeadingList>
				<MeshHeading>
					<DescriptorName UI="D000090386" MajorTopicYN="N">CRISPR-Cas Systems</DescriptorName>
				</MeshHeading>
				<MeshHeading>
					<DescriptorName UI="D000077269" MajorTopicYN="N">Gene Editing</DescriptorName>
				</MeshHeading>
			</MeshHeadingList>
			<KeywordList Owner="NOTNLM">
				<Keyword MajorTopicYN="N">CRISPR</Keyword>
				<Keyword MajorTopicYN="N">Gene editing</Keyword>
				<Keyword MajorTopicYN="N">Therapeutics</Keyword>
			</KeywordList>
		</MedlineCitation>
		<PubmedData>
			<PublicationStatus>ppublish</PublicationStatus>
			<ArticleIdList>
				<ArticleId IdType="pubmed">12345678</ArticleId>
				<ArticleId IdType="doi">10.1234/test.2023.001</ArticleId>
				<ArticleId IdType="pmc">PMC9876543</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">87654321</PMID>
			<Article PubModel="Print">
				<Journal>
					<JournalIssue CitedMedium="Print">
						<Volume>10</Volume>
						<PubDate>
							<MedlineDate>2022 Jan-Feb</MedlineDate>
						</PubDate>
					</JournalIssue>
					<Title>Molecular Therapy Methods</Title>
					<ISOAbbreviation>Mol Ther Methods</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Advances in Gene Therapy Delivery Systems</ArticleTitle>
				<Pagination>
					<StartPage>50</StartPage>
					<EndPage>75</EndPage>
				</Pagination>
				<Abstract>
					<AbstractText>This review covers recent advances in viral and non-viral delivery systems for gene therapy applications.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Brown</LastName>
						<ForeName>Michael</ForeName>
						<Initials>M</Initials>
					</Author>
				</AuthorList>
			</Article>
		</MedlineCitation>
		<PubmedData>
			<PublicationStatus>ppublish</PublicationStatus>
			<ArticleIdList>
				<ArticleId IdType="pubmed">87654321</ArticleId>
				<ArticleId IdType="doi">10.5678/mol.2022.050</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchSingleArticleXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">12345678</PMID>
			<Article PubModel="Print">
				<Journal>
					<JournalIssue CitedMedium="Internet">
						<Volume>25</Volume>
						<Issue>3</Issue>
						<PubDate>
							<Year>2023</Year>
							<Month>Mar</Month>
						</PubDate>
					</JournalIssue>
					<Title>Journal of Testing</Title>
				</Journal>
				<ArticleTitle>Single Article Test</ArticleTitle>
				<Abstract>
					<AbstractText>Test abstract content.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Test</LastName>
						<ForeName>Author</ForeName>
					</Author>
				</AuthorList>
			</Article>
		</MedlineCitation>
		<PubmedData>
			<PublicationStatus>ppublish</PublicationStatus>
			<ArticleIdList>
				<ArticleId IdType="pubmed">12345678</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchEmptyResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
</PubmedArticleSet>`

// newEUtilsServer answers esearch and efetch with the given bodies and
// records the last query string of each.
func newEUtilsServer(t *testing.T, esearch, efetch string) (*httptest.Server, *atomic.Value, *atomic.Value) {
	t.Helper()
	var searchQuery, fetchQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		switch {
		case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
			searchQuery.Store(r.URL.Query())
			_, _ = w.Write([]byte(esearch))
		case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
			fetchQuery.Store(r.URL.Query())
			_, _ = w.Write([]byte(efetch))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &searchQuery, &fetchQuery
}

func createTestEUtils(baseURL string, cfg EUtilsConfig) *EUtils {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:    sourceName,
		RateLimit: 100,
		BurstSize: 10,
	})
	cfg.BaseURL = baseURL
	return NewEUtilsWithHTTPClient(cfg, httpClient)
}

func TestNewEUtils(t *testing.T) {
	t.Run("creates client with default config", func(t *testing.T) {
		e := NewEUtils(EUtilsConfig{}, nil)

		require.NotNil(t, e)
		assert.Equal(t, DefaultBaseURL, e.config.BaseURL)
		assert.Equal(t, DefaultTimeout, e.config.Timeout)
		assert.Equal(t, DefaultRateLimit, e.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, e.config.BurstSize)
		assert.Equal(t, "scholar-aggregator", e.config.Tool)
		assert.Equal(t, MaxResultsLimit, e.config.MaxResults)
	})

	t.Run("max results above the esearch ceiling is clamped", func(t *testing.T) {
		e := NewEUtils(EUtilsConfig{MaxResults: 50000}, nil)
		assert.Equal(t, MaxResultsLimit, e.config.MaxResults)
	})

	t.Run("api key raises the default rate limit", func(t *testing.T) {
		e := NewEUtils(EUtilsConfig{APIKey: "k"}, nil)
		assert.Equal(t, APIKeyRateLimit, e.config.RateLimit)
	})

	t.Run("creates client with custom config", func(t *testing.T) {
		cfg := EUtilsConfig{
			BaseURL:   "https://custom.api.example.com/",
			APIKey:    "test-api-key",
			Timeout:   60 * time.Second,
			RateLimit: 5,
			BurstSize: 5,
		}
		e := NewEUtils(cfg, nil)

		assert.Equal(t, "https://custom.api.example.com", e.config.BaseURL)
		assert.Equal(t, cfg.APIKey, e.config.APIKey)
		assert.Equal(t, cfg.Timeout, e.config.Timeout)
		assert.Equal(t, 5.0, e.config.RateLimit)
	})
}

func TestEUtils_Search(t *testing.T) {
	t.Run("returns PMIDs and sends parameters", func(t *testing.T) {
		server, searchQuery, _ := newEUtilsServer(t, esearchResponseXML, efetchEmptyResponseXML)
		e := createTestEUtils(server.URL, EUtilsConfig{APIKey: "secret", Email: "dev@example.org"})

		ids, err := e.Search(context.Background(), "CRISPR gene editing", 20000)
		require.NoError(t, err)
		assert.Equal(t, []string{"12345678", "87654321"}, ids)

		q := searchQuery.Load().(url.Values)
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "CRISPR gene editing", q.Get("term"))
		assert.Equal(t, "10000", q.Get("retmax"))
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "dev@example.org", q.Get("email"))
	})

	t.Run("retmax capped by configured max results", func(t *testing.T) {
		server, searchQuery, _ := newEUtilsServer(t, esearchResponseXML, efetchEmptyResponseXML)
		e := createTestEUtils(server.URL, EUtilsConfig{MaxResults: 25})

		_, err := e.Search(context.Background(), "CRISPR", 100)
		require.NoError(t, err)
		assert.Equal(t, "25", searchQuery.Load().(url.Values).Get("retmax"))
	})

	t.Run("empty result", func(t *testing.T) {
		server, _, _ := newEUtilsServer(t, esearchEmptyResponseXML, "")
		e := createTestEUtils(server.URL, EUtilsConfig{})

		ids, err := e.Search(context.Background(), "nothing", 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("phrase not found is not an error", func(t *testing.T) {
		server, _, _ := newEUtilsServer(t, esearchPhraseNotFoundXML, "")
		e := createTestEUtils(server.URL, EUtilsConfig{})

		ids, err := e.Search(context.Background(), "nonexistent_term_xyz", 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("no call for blank term", func(t *testing.T) {
		server, searchQuery, _ := newEUtilsServer(t, esearchResponseXML, "")
		e := createTestEUtils(server.URL, EUtilsConfig{})

		ids, err := e.Search(context.Background(), "  ", 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Nil(t, searchQuery.Load())
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		_, err := createTestEUtils(server.URL, EUtilsConfig{}).Search(context.Background(), "test", 10)
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, "pubmed", apiErr.Source)
	})

	t.Run("invalid XML", func(t *testing.T) {
		server, _, _ := newEUtilsServer(t, "<eSearchResult><IdList>", "")
		_, err := createTestEUtils(server.URL, EUtilsConfig{}).Search(context.Background(), "test", 10)
		assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})
}

func TestEUtils_Fetch(t *testing.T) {
	server, _, fetchQuery := newEUtilsServer(t, esearchResponseXML, efetchResponseXML)
	e := createTestEUtils(server.URL, EUtilsConfig{})

	articles, err := e.Fetch(context.Background(), []string{"87654321", "12345678", "11111111"})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "87654321,12345678,11111111", fetchQuery.Load().(url.Values).Get("id"))

	// Order follows the requested PMIDs, not the response.
	assert.Equal(t, "87654321", articles[0].PMID)
	assert.Equal(t, "12345678", articles[1].PMID)

	a := articles[1]
	assert.Equal(t, "CRISPR-Cas9 Gene Editing in Biomedical Research", a.Title)
	assert.Equal(t, "John A Smith, Emily Johnson, CRISPR Research Consortium", a.Authors)
	assert.Equal(t, "Journal of Testing", a.Journal)
	assert.Equal(t, "2023-03-15", a.PublicationDate)
	assert.Equal(t, "10.1234/test.2023.001", a.DOI)
	assert.Equal(t, "PMC9876543", a.PMCID)
	assert.Contains(t, a.Abstract, "BACKGROUND: Gene editing technologies")
	assert.Contains(t, a.Abstract, "CONCLUSION:")
	assert.Equal(t, []string{"CRISPR-Cas Systems", "Gene Editing"}, a.MeshTerms)
	assert.Equal(t, []string{"CRISPR", "Gene editing", "Therapeutics"}, a.Keywords)

	b := articles[0]
	assert.Equal(t, "2022", b.PublicationDate)
	assert.Equal(t, "10.5678/mol.2022.050", b.DOI)
	assert.Empty(t, b.PMCID)
	assert.Equal(t, "This review covers recent advances in viral and non-viral delivery systems for gene therapy applications.", b.Abstract)
}

func TestEUtils_Lookup(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server, _, _ := newEUtilsServer(t, "", efetchSingleArticleXML)
		a, err := createTestEUtils(server.URL, EUtilsConfig{}).Lookup(context.Background(), " 12345678 ")
		require.NoError(t, err)
		assert.Equal(t, "Single Article Test", a.Title)
		assert.Equal(t, "2023-03", a.PublicationDate)
		assert.Equal(t, "Author Test", a.Authors)
	})

	t.Run("not found", func(t *testing.T) {
		server, _, _ := newEUtilsServer(t, "", efetchEmptyResponseXML)
		_, err := createTestEUtils(server.URL, EUtilsConfig{}).Lookup(context.Background(), "99999999")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := createTestEUtils("http://127.0.0.1:1", EUtilsConfig{}).Lookup(context.Background(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		year, month, day string
		want             string
	}{
		{"2023", "Mar", "15", "2023-03-15"},
		{"2023", "03", "5", "2023-03-05"},
		{"2023", "December", "", "2023-12"},
		{"2023", "", "", "2023"},
		{"2023", "Spring", "", "2023"},
		{"", "Jan", "1", ""},
		{"abcd", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.year+"/"+tt.month+"/"+tt.day, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDate(tt.year, tt.month, tt.day))
		})
	}
}

func TestExtractPublicationDate(t *testing.T) {
	t.Run("falls back to article date", func(t *testing.T) {
		info := ArticleInfo{ArticleDate: []ArticleDate{{DateType: "Electronic", Year: "2021", Month: "07", Day: "09"}}}
		assert.Equal(t, "2021-07-09", extractPublicationDate(info))
	})

	t.Run("medline date year", func(t *testing.T) {
		info := ArticleInfo{Journal: Journal{JournalIssue: JournalIssue{PubDate: PubDate{MedlineDate: "2019 Nov-Dec"}}}}
		assert.Equal(t, "2019", extractPublicationDate(info))
	})
}

func TestExtractYearFromMedlineDate(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"2020 Jan-Feb", 2020},
		{"2020 Spring", 2020},
		{"2020-2021", 2020},
		{"", 0},
		{"invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractYearFromMedlineDate(tt.input))
		})
	}
}

func TestExtractAuthors(t *testing.T) {
	list := &AuthorList{Authors: []Author{
		{LastName: "Curie", ForeName: "Marie"},
		{ValidYN: "N", LastName: "Ghost"},
		{CollectiveName: "The Consortium"},
		{LastName: "Solo"},
		{},
	}}
	assert.Equal(t, []string{"Marie Curie", "The Consortium", "Solo"}, extractAuthors(list))
	assert.Nil(t, extractAuthors(nil))
}
