package httpserver

import (
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/analysis"
	"github.com/helixir/scholar-aggregator/internal/domain"
)

const (
	defaultRelatedPapers = 10
	maxRelatedPapers     = 100
)

// citationResponse is the body of GET /citations/{id}.
type citationResponse struct {
	Metrics *domain.CitationMetrics `json:"metrics"`
	Impact  *analysis.ImpactReport  `json:"impact"`
}

// compareRequest is the body of POST /analysis/compare.
type compareRequest struct {
	PaperIDs []string `json:"paper_ids" validate:"min=2,max=5,dive,required"`
}

// textRequest is the body of POST /analysis/text.
type textRequest struct {
	Text string `json:"text" validate:"required"`
}

// figureRequest is the body of POST /analysis/figure.
type figureRequest struct {
	Text   string `json:"text" validate:"required"`
	Kind   string `json:"kind" validate:"max=16"`
	Number int    `json:"number" validate:"required,gt=0"`
}

// citationAnalysis handles GET /citations/{id}: citation metrics plus the
// impact evaluation.
func (s *Server) citationAnalysis(w http.ResponseWriter, r *http.Request) {
	if !s.requireCitations(w) {
		return
	}
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	metrics, err := s.citations.CitationMetrics(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, citationResponse{
		Metrics: metrics,
		Impact:  analysis.EvaluateImpact(metrics, s.now()),
	})
}

// relatedPapers handles GET /citations/{id}/related?n=&kind=. kind is
// "related" (default) or "recommendations".
func (s *Server) relatedPapers(w http.ResponseWriter, r *http.Request) {
	if !s.requireCitations(w) {
		return
	}
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	n := defaultRelatedPapers
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxRelatedPapers {
			writeError(w, http.StatusBadRequest, "n must be an integer between 0 and "+strconv.Itoa(maxRelatedPapers))
			return
		}
	}

	var related []domain.RelatedPaper
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "related":
		related, err = s.citations.RelatedPapers(r.Context(), id, n)
	case "recommendations":
		related, err = s.citations.Recommendations(r.Context(), id, n)
	default:
		writeError(w, http.StatusBadRequest, "kind must be related or recommendations")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if related == nil {
		related = []domain.RelatedPaper{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paper_id": id,
		"papers":   related,
		"total":    len(related),
	})
}

// comparePapers handles POST /analysis/compare. Metrics are fetched
// concurrently; any failed lookup fails the comparison.
func (s *Server) comparePapers(w http.ResponseWriter, r *http.Request) {
	if !s.requireCitations(w) {
		return
	}
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return
	}

	metrics := make([]domain.CitationMetrics, len(req.PaperIDs))
	g, ctx := errgroup.WithContext(r.Context())
	for i, id := range req.PaperIDs {
		g.Go(func() error {
			m, err := s.citations.CitationMetrics(ctx, id)
			if err != nil {
				return err
			}
			metrics[i] = *m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	comparison, err := analysis.ComparePapers(metrics, s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

// runWorkflow handles POST /analysis/workflow.
func (s *Server) runWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.workflow == nil {
		writeError(w, http.StatusServiceUnavailable, "research workflow is not configured")
		return
	}
	var req analysis.WorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return
	}

	report, err := s.workflow.Run(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analyzeText handles POST /analysis/text.
func (s *Server) analyzeText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return
	}
	writeJSON(w, http.StatusOK, analysis.AnalyzeText(req.Text))
}

// explainFigure handles POST /analysis/figure.
func (s *Server) explainFigure(w http.ResponseWriter, r *http.Request) {
	var req figureRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeDomainError(w, r, validationError(err))
		return
	}

	explanation, err := analysis.ExplainFigure(req.Text, req.Kind, req.Number)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

// requireCitations writes 503 when no citation source is configured.
func (s *Server) requireCitations(w http.ResponseWriter) bool {
	if s.citations == nil {
		writeError(w, http.StatusServiceUnavailable, "citation analysis is not configured")
		return false
	}
	return true
}
