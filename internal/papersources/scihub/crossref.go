package scihub

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

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
)

// maxRows is the largest page CrossRef serves.
const maxRows = 1000

const crossrefSource = "crossref"

// crossref is the metadata index used for search and lookups.
type crossref struct {
	http    *papersources.HTTPClient
	baseURL string
	mailto  string
}

func (c *crossref) search(ctx context.Context, query string, rows int) ([]Work, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("rows", strconv.Itoa(min(rows, maxRows)))
	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}

	var resp WorksResponse
	if err := c.get(ctx, c.baseURL+"/works?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Message.Items, nil
}

func (c *crossref) work(ctx context.Context, doi string) (*Work, error) {
	u := c.baseURL + "/works/" + url.PathEscape(doi)
	if c.mailto != "" {
		u += "?mailto=" + url.QueryEscape(c.mailto)
	}

	var resp WorkResponse
	err := c.get(ctx, u, &resp)

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("work", doi)
	}
	if err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (c *crossref) get(ctx context.Context, u string, out any) error {
	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := papersources.CheckResponse(crossrefSource, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, papersources.MaxResponseBytes)).Decode(out); err != nil {
		return domain.NewExternalAPIError(crossrefSource, resp.StatusCode, "decoding response", err)
	}
	return nil
}

// formatAuthors joins the first five contributors as "Given Family",
// appending " et al." when there are more.
func formatAuthors(authors []Author) string {
	names := make([]string, 0, min(len(authors), 5))
	for _, a := range authors[:min(len(authors), 5)] {
		if name := strings.TrimSpace(a.Given + " " + a.Family); name != "" {
			names = append(names, name)
		}
	}

	joined := domain.JoinAuthors(names)
	if len(authors) > 5 && joined != "" {
		joined += " et al."
	}
	return joined
}

// formatDate renders date-parts as YYYY-MM-DD, defaulting a missing month or
// day to 01.
func formatDate(d DateInfo) string {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return ""
	}
	parts := d.DateParts[0]
	month, day := 1, 1
	if len(parts) >= 2 {
		month = parts[1]
	}
	if len(parts) >= 3 {
		day = parts[2]
	}
	return fmt.Sprintf("%04d-%02d-%02d", parts[0], month, day)
}

// plainText strips the JATS markup CrossRef wraps abstracts in.
func plainText(markup string) string {
	if !strings.Contains(markup, "<") {
		return strings.TrimSpace(markup)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
