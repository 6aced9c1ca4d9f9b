package semanticscholar

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

const (
	// citationSample is how many citing and referenced papers are listed.
	citationSample = 20

	// relatedPerKind caps how many citations and references feed RelatedPapers.
	relatedPerKind = 5

	citationFields = "paperId,title,year,publicationDate,citationCount,referenceCount," +
		"influentialCitationCount,fieldsOfStudy," +
		"citations.paperId,citations.title,citations.year," +
		"references.paperId,references.title,references.year"

	recommendationFields = "paperId,title,year,citationCount"
)

// Relevance scores assigned by RelatedPapers.
const (
	ScoreRecommendation = 0.90
	ScoreCitation       = 0.85
	ScoreReference      = 0.80
)

// CitationMetrics returns citation counts and a sample of citing and
// referenced papers.
func (c *Client) CitationMetrics(ctx context.Context, id string) (*domain.CitationMetrics, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("id", "paper ID cannot be empty")
	}

	var result PaperResult
	if err := c.getPaper(ctx, id, citationFields, &result); err != nil {
		return nil, err
	}

	metrics := &domain.CitationMetrics{
		PaperID:                  result.PaperID,
		Title:                    result.Title,
		Year:                     result.Year,
		PublicationDate:          result.PublicationDate,
		InfluentialCitationCount: result.InfluentialCitationCount,
		FieldsOfStudy:            result.FieldsOfStudy,
		Citations:                toRefs(result.Citations, citationSample),
		References:               toRefs(result.References, citationSample),
	}
	if result.CitationCount != nil {
		metrics.CitationCount = *result.CitationCount
	}
	if result.ReferenceCount != nil {
		metrics.ReferenceCount = *result.ReferenceCount
	}
	return metrics, nil
}

// Recommendations returns up to n papers the recommendations API suggests
// for id.
func (c *Client) Recommendations(ctx context.Context, id string, n int) ([]domain.RelatedPaper, error) {
	id = strings.TrimSpace(id)
	if n <= 0 || id == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(min(n, MaxLimit)))
	q.Set("fields", recommendationFields)
	u := fmt.Sprintf("%s/papers/forpaper/%s?%s", c.config.RecommendationsURL, url.PathEscape(id), q.Encode())

	var resp RecommendationsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	related := make([]domain.RelatedPaper, 0, len(resp.RecommendedPapers))
	for _, p := range resp.RecommendedPapers {
		related = append(related, domain.RelatedPaper{
			PaperRef:      domain.PaperRef{PaperID: p.PaperID, Title: p.Title, Year: p.Year},
			CitationCount: p.CitationCount,
			Score:         ScoreRecommendation,
			Reason:        "recommended by Semantic Scholar",
		})
	}
	if len(related) > n {
		related = related[:n]
	}
	return related, nil
}

// RelatedPapers mixes recommendations with the first citing and referenced
// papers, ordered by score. A failing recommendations call only drops that
// group.
func (c *Client) RelatedPapers(ctx context.Context, id string, n int) ([]domain.RelatedPaper, error) {
	if n <= 0 {
		return nil, nil
	}

	metrics, err := c.CitationMetrics(ctx, id)
	if err != nil {
		return nil, err
	}

	var related []domain.RelatedPaper
	seen := map[string]struct{}{metrics.PaperID: {}}
	add := func(p domain.RelatedPaper) {
		if p.PaperID == "" {
			return
		}
		if _, dup := seen[p.PaperID]; dup {
			return
		}
		seen[p.PaperID] = struct{}{}
		related = append(related, p)
	}

	if recs, err := c.Recommendations(ctx, id, n); err == nil {
		for _, r := range recs {
			add(r)
		}
	}
	for _, ref := range head(metrics.Citations, relatedPerKind) {
		add(domain.RelatedPaper{PaperRef: ref, Score: ScoreCitation, Reason: "cites this paper"})
	}
	for _, ref := range head(metrics.References, relatedPerKind) {
		add(domain.RelatedPaper{PaperRef: ref, Score: ScoreReference, Reason: "referenced by this paper"})
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Score > related[j].Score
	})
	if len(related) > n {
		related = related[:n]
	}
	return related, nil
}

func toRefs(stubs []PaperStub, limit int) []domain.PaperRef {
	refs := make([]domain.PaperRef, 0, min(len(stubs), limit))
	for _, s := range stubs {
		if len(refs) == limit {
			break
		}
		refs = append(refs, domain.PaperRef{PaperID: s.PaperID, Title: s.Title, Year: s.Year})
	}
	return refs
}

func head(refs []domain.PaperRef, n int) []domain.PaperRef {
	if len(refs) > n {
		return refs[:n]
	}
	return refs
}
