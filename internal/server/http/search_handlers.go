package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/observability"
)

// searchQuery holds the query parameters of GET /search.
type searchQuery struct {
	Query      string `json:"q" validate:"required,max=1000"`
	Source     string `json:"source"`
	NumResults int    `json:"num_results" validate:"gte=0,lte=1000"`
}

// listSources handles GET /sources. The list ends with the "all" selector.
func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	sources := append(s.papers.Sources(), domain.SelectorAll)
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// searchPapers handles GET /search?q=&source=&num_results=.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := searchQuery{
		Query:      strings.TrimSpace(params.Get("q")),
		Source:     selectorParam(r),
		NumResults: domain.DefaultNumResults,
	}
	if raw := params.Get("num_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "num_results must be an integer")
			return
		}
		q.NumResults = n
	}
	if err := s.validate.Struct(q); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return
	}

	ctx := observability.WithSelector(r.Context(), q.Source)
	outcome, err := s.papers.SearchByKeywords(ctx, q.Source, q.Query, q.NumResults)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logFailures(r, outcome.Failures())
	writeJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

// searchAdvanced handles POST /search/advanced?source= with a JSON
// SearchRequest body. An omitted num_results keeps the default.
func (s *Server) searchAdvanced(w http.ResponseWriter, r *http.Request) {
	req := domain.NewSearchRequest()
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return
	}

	selector := selectorParam(r)
	ctx := observability.WithSelector(r.Context(), selector)
	outcome, err := s.papers.SearchAdvanced(ctx, selector, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logFailures(r, outcome.Failures())
	writeJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

// selectorParam returns the source query parameter, "all" when absent.
func selectorParam(r *http.Request) string {
	if source := strings.TrimSpace(r.URL.Query().Get("source")); source != "" {
		return source
	}
	return domain.SelectorAll
}
