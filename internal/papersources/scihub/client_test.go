package scihub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// fakeResolver maps DOIs to links; unknown DOIs fail.
type fakeResolver struct {
	links    map[string]string
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (f *fakeResolver) Resolve(_ context.Context, doi string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, doi)
	f.mu.Unlock()

	link, ok := f.links[doi]
	if !ok {
		return "", errors.New("mirror has no copy")
	}
	return link, nil
}

func work(doi, title string, authors int) Work {
	w := Work{
		DOI:            doi,
		Title:          []string{title},
		ContainerTitle: []string{"Journal of Tests"},
		Abstract:       "<jats:p>An <jats:italic>abstract</jats:italic>.</jats:p>",
		Created:        DateInfo{DateParts: [][]int{{2021, 3, 7}}},
		Publisher:      "Elsevier",
	}
	for i := 0; i < authors; i++ {
		w.Author = append(w.Author, Author{Given: "A" + string(rune('a'+i)), Family: "Smith"})
	}
	return w
}

type crossrefFake struct {
	server  *httptest.Server
	queries []url.Values
	mu      sync.Mutex
	works   []Work
	byDOI   map[string]Work
}

func newCrossRef(t *testing.T, works ...Work) *crossrefFake {
	t.Helper()
	f := &crossrefFake{works: works, byDOI: map[string]Work{}}
	for _, w := range works {
		f.byDOI[w.DOI] = w
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query())
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/works" {
			var resp WorksResponse
			resp.Status = "ok"
			resp.Message.Items = f.works
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		doi := strings.TrimPrefix(r.URL.Path, "/works/")
		found, ok := f.byDOI[doi]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Resource not found."))
			return
		}
		_ = json.NewEncoder(w).Encode(WorkResponse{Status: "ok", Message: found})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *crossrefFake) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

func newTestClient(f *crossrefFake, resolver Resolver, fetcher *pdf.Fetcher, concurrency int) *Client {
	index := papersources.NewHTTPClient(papersources.HTTPClientConfig{Source: crossrefSource, RateLimit: 100, BurstSize: 100})
	return NewWithResolver(Config{
		CrossRefURL:        f.server.URL,
		Mailto:             "dev@example.org",
		ResolveConcurrency: concurrency,
	}, index, resolver, fetcher, zerolog.Nop())
}

func TestClient_Defaults(t *testing.T) {
	c, err := New(Config{}, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultCrossRefURL, c.config.CrossRefURL)
	assert.Equal(t, DefaultMirror, c.config.Mirror)
	assert.Equal(t, DefaultResolveConcurrency, c.config.ResolveConcurrency)
	assert.Equal(t, domain.SourceTypeSciHub, c.SourceName())

	_, err = New(Config{Mirror: "not a url"}, nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestClient_SearchByKeywords(t *testing.T) {
	t.Run("keeps resolved DOIs in CrossRef order", func(t *testing.T) {
		f := newCrossRef(t,
			work("10.1/a", "First", 7),
			work("10.1/b", "Unresolvable", 1),
			work("", "No DOI", 1),
			work("10.1/c", "Third", 2),
		)
		resolver := &fakeResolver{links: map[string]string{
			"10.1/a": "https://mirror/a.pdf",
			"10.1/c": "https://mirror/c.pdf",
		}}
		client := newTestClient(f, resolver, nil, 2)

		papers, err := client.SearchByKeywords(context.Background(), "graphene", 4)
		require.NoError(t, err)

		q := f.lastQuery()
		assert.Equal(t, "graphene", q.Get("query"))
		assert.Equal(t, "4", q.Get("rows"))
		assert.Equal(t, "dev@example.org", q.Get("mailto"))

		require.Len(t, papers, 2)
		p := papers[0]
		assert.Equal(t, "10.1/a", p.ID)
		assert.Equal(t, "First", p.Title)
		assert.Equal(t, "Aa Smith, Ab Smith, Ac Smith, Ad Smith, Ae Smith et al.", p.Authors)
		assert.Equal(t, "An abstract.", p.Abstract)
		assert.Equal(t, "2021-03-07", p.PublicationDate)
		assert.Equal(t, "Journal of Tests", p.Journal)
		assert.Equal(t, "https://doi.org/10.1/a", p.URL)
		assert.Equal(t, domain.PDFLink("https://mirror/a.pdf"), p.PDFURL)
		assert.Equal(t, domain.SourceTypeSciHub, p.Source)
		assert.Equal(t, "Elsevier", p.Extra["publisher"])
		assert.NoError(t, p.Validate())

		assert.Equal(t, "10.1/c", papers[1].ID)
		assert.Equal(t, "Aa Smith, Ab Smith", papers[1].Authors)
		assert.NotContains(t, resolver.seen, "")
	})

	t.Run("resolution is bounded", func(t *testing.T) {
		var works []Work
		links := map[string]string{}
		for i := 0; i < 12; i++ {
			doi := "10.2/" + string(rune('a'+i))
			works = append(works, work(doi, "T", 1))
			links[doi] = "https://mirror/" + doi
		}
		resolver := &fakeResolver{links: links}
		client := newTestClient(newCrossRef(t, works...), resolver, nil, 3)

		papers, err := client.SearchByKeywords(context.Background(), "x", 12)
		require.NoError(t, err)
		assert.Len(t, papers, 12)
		assert.LessOrEqual(t, resolver.peak.Load(), int32(3))
		for i, p := range papers {
			assert.Equal(t, works[i].DOI, p.ID)
		}
	})

	t.Run("non-positive n makes no call", func(t *testing.T) {
		f := newCrossRef(t)
		papers, err := newTestClient(f, &fakeResolver{}, nil, 1).SearchByKeywords(context.Background(), "x", 0)
		require.NoError(t, err)
		assert.Empty(t, papers)
		assert.Nil(t, f.lastQuery())
	})

	t.Run("index failure is returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		index := papersources.NewHTTPClient(papersources.HTTPClientConfig{Source: crossrefSource, RateLimit: 100})
		client := NewWithResolver(Config{CrossRefURL: server.URL}, index, &fakeResolver{}, nil, zerolog.Nop())

		_, err := client.SearchByKeywords(context.Background(), "x", 3)
		assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	})
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		req  domain.SearchRequest
		want string
	}{
		{name: "empty", req: domain.SearchRequest{}, want: ""},
		{name: "dates only", req: domain.SearchRequest{StartDate: "2020-01-01"}, want: ""},
		{
			name: "all fields",
			req:  domain.SearchRequest{Title: "graphene", Author: "Geim", Journal: "Nature", Term: "electronic"},
			want: "title:graphene author:Geim container-title:Nature electronic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.req))
		})
	}
}

func TestClient_SearchAdvanced(t *testing.T) {
	f := newCrossRef(t, work("10.1/a", "First", 1))
	client := newTestClient(f, &fakeResolver{links: map[string]string{"10.1/a": "https://m/a.pdf"}}, nil, 1)

	papers, err := client.SearchAdvanced(context.Background(), domain.SearchRequest{Author: " Geim ", NumResults: 5})
	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, "author:Geim", f.lastQuery().Get("query"))

	t.Run("dates only makes no request", func(t *testing.T) {
		f := newCrossRef(t, work("10.1/a", "First", 1))
		client := newTestClient(f, &fakeResolver{links: map[string]string{"10.1/a": "https://m/a.pdf"}}, nil, 1)

		papers, err := client.SearchAdvanced(context.Background(), domain.SearchRequest{
			StartDate:  "2024-01-01",
			EndDate:    "2024-06-01",
			NumResults: 5,
		})
		require.NoError(t, err)
		assert.Empty(t, papers)
		assert.Nil(t, f.lastQuery())
	})
}

func TestClient_GetMetadata(t *testing.T) {
	f := newCrossRef(t, work("10.1/a", "First", 1))
	resolver := &fakeResolver{links: map[string]string{"10.1/a": "https://m/a.pdf", "10.1/z": "https://m/z.pdf"}}
	client := newTestClient(f, resolver, nil, 1)

	t.Run("combines index and mirror", func(t *testing.T) {
		p, err := client.GetMetadata(context.Background(), "https://doi.org/10.1/a")
		require.NoError(t, err)
		assert.Equal(t, "First", p.Title)
		assert.Equal(t, domain.PDFLink("https://m/a.pdf"), p.PDFURL)
	})

	t.Run("unresolvable DOI", func(t *testing.T) {
		_, err := client.GetMetadata(context.Background(), "10.1/q")
		assert.Error(t, err)
	})

	t.Run("missing from index", func(t *testing.T) {
		_, err := client.GetMetadata(context.Background(), "doi:10.1/z")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestClient_DownloadPDF(t *testing.T) {
	pdfServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.3 scihub"))
	}))
	defer pdfServer.Close()

	fetcher := pdf.NewFetcher(pdf.NewDownloader(pdf.Config{AllowPrivateNetworks: true}), pdf.NewStore(t.TempDir()))
	resolver := &fakeResolver{links: map[string]string{"10.1000/xyz.1": pdfServer.URL + "/x.pdf"}}
	client := newTestClient(newCrossRef(t), resolver, fetcher, 1)

	saved, err := client.DownloadPDF(context.Background(), "10.1000/xyz.1")
	require.NoError(t, err)
	assert.Equal(t, "paper_10.1000_xyz.1.pdf", saved.Name)
	data, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 scihub", string(data))

	_, err = newTestClient(newCrossRef(t), resolver, nil, 1).DownloadPDF(context.Background(), "10.1000/xyz.1")
	assert.Error(t, err)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "", formatDate(DateInfo{}))
	assert.Equal(t, "2020-01-01", formatDate(DateInfo{DateParts: [][]int{{2020}}}))
	assert.Equal(t, "2020-05-01", formatDate(DateInfo{DateParts: [][]int{{2020, 5}}}))
	assert.Equal(t, "", formatAuthors(nil))
	assert.Equal(t, "Smith", formatAuthors([]Author{{Family: "Smith"}}))
	assert.Equal(t, "plain", plainText(" plain "))
}
