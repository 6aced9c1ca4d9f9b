package httpserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/scholar-aggregator/internal/analysis"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// downloadResponse is the body of POST /papers/{source}/{id}/pdf.
type downloadResponse struct {
	Status string         `json:"status"`
	File   *pdf.SavedFile `json:"file"`
}

// promptResponse is the body of GET /papers/{source}/{id}/analysis-prompt.
type promptResponse struct {
	PaperID string `json:"paper_id"`
	Source  string `json:"source"`
	Title   string `json:"title"`
	Prompt  string `json:"prompt"`
}

// getPaperMetadata handles GET /papers/{source}/{id}.
func (s *Server) getPaperMetadata(w http.ResponseWriter, r *http.Request) {
	paper, ok := s.lookupPaper(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

// downloadPaperPDF handles POST /papers/{source}/{id}/pdf.
func (s *Server) downloadPaperPDF(w http.ResponseWriter, r *http.Request) {
	source, id, err := paperParams(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	saved, err := s.papers.DownloadPDF(r.Context(), source, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	observability.WithPaperContext(s.logger, id, source).Info().
		Str("file", saved.Name).
		Int64("size_bytes", saved.SizeBytes).
		Msg("pdf downloaded")
	writeJSON(w, http.StatusOK, downloadResponse{Status: saved.Status(), File: saved})
}

// analysisPrompt handles GET /papers/{source}/{id}/analysis-prompt.
func (s *Server) analysisPrompt(w http.ResponseWriter, r *http.Request) {
	paper, ok := s.lookupPaper(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, promptResponse{
		PaperID: paper.ID,
		Source:  string(paper.Source),
		Title:   paper.Title,
		Prompt:  analysis.DeepAnalysisPrompt(*paper),
	})
}

// summarizePaper handles GET /papers/{source}/{id}/summary?style=.
func (s *Server) summarizePaper(w http.ResponseWriter, r *http.Request) {
	style, err := analysis.ParseSummaryStyle(r.URL.Query().Get("style"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	paper, ok := s.lookupPaper(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.Summarize(*paper, style, s.now()))
}

// lookupPaper fetches the record addressed by the path. It writes the error
// response and returns false on failure.
func (s *Server) lookupPaper(w http.ResponseWriter, r *http.Request) (*domain.Paper, bool) {
	source, id, err := paperParams(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	paper, err := s.papers.GetMetadata(r.Context(), source, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	return paper, true
}

// paperParams reads {source} and {id}. Ids containing slashes, such as
// DOIs, arrive percent-encoded.
func paperParams(r *http.Request) (source, id string, err error) {
	source = chi.URLParam(r, "source")
	id, err = pathParam(r, "id")
	return source, id, err
}

func pathParam(r *http.Request, name string) (string, error) {
	value, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", domain.NewValidationError(name, "invalid path encoding")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.NewValidationError(name, "cannot be empty")
	}
	return value, nil
}

// logFailures reports sources that failed during an otherwise successful
// search.
func (s *Server) logFailures(r *http.Request, failures []papersources.SourceOutcome) {
	if len(failures) == 0 {
		return
	}
	logger := observability.WithContext(r.Context(), s.logger)
	for _, f := range failures {
		logger.Warn().Err(f.Err).
			Str("source", string(f.Source)).
			Str("kind", string(domain.KindOf(f.Err))).
			Msg("source failed during search")
	}
}
