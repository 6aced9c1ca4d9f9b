package scihub

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// Resolver turns a DOI into a direct PDF link.
type Resolver interface {
	Resolve(ctx context.Context, doi string) (string, error)
}

// pdfSelectors are tried in order against a mirror landing page.
var pdfSelectors = []struct {
	query string
	attr  string
}{
	{"embed#pdf", "src"},
	{"iframe#pdf", "src"},
	{"#pdf embed", "src"},
	{"a[href$='.pdf']", "href"},
}

// MirrorResolver scrapes a Sci-Hub mirror landing page for the embedded PDF.
type MirrorResolver struct {
	http   *papersources.HTTPClient
	mirror *url.URL
}

// Compile-time check that MirrorResolver implements Resolver.
var _ Resolver = (*MirrorResolver)(nil)

// NewMirrorResolver creates a resolver for the mirror at base.
func NewMirrorResolver(base string, httpClient *papersources.HTTPClient) (*MirrorResolver, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.NewValidationError("mirror", "must be an absolute URL")
	}
	return &MirrorResolver{http: httpClient, mirror: u}, nil
}

// Resolve fetches <mirror>/<doi> and returns the absolute PDF link it embeds.
// A page without a PDF link is a NotFoundError.
func (r *MirrorResolver) Resolve(ctx context.Context, doi string) (string, error) {
	resp, err := r.http.Get(ctx, r.mirror.String()+"/"+doi)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := papersources.CheckResponse(sourceName, resp); err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, papersources.MaxResponseBytes))
	if err != nil {
		return "", domain.NewExternalAPIError(sourceName, resp.StatusCode, "parsing landing page", err)
	}

	for _, sel := range pdfSelectors {
		if link, ok := doc.Find(sel.query).First().Attr(sel.attr); ok && strings.TrimSpace(link) != "" {
			return r.absolute(link), nil
		}
	}
	return "", domain.NewNotFoundError("PDF", doi)
}

// absolute resolves protocol-relative and relative links against the mirror
// and drops the viewer fragment.
func (r *MirrorResolver) absolute(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return r.mirror.ResolveReference(ref).String()
}
