// Package httpserver provides the HTTP JSON API of the paper aggregator.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/scholar-aggregator/internal/analysis"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/papersources"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// Papers is the search and lookup surface served by the API. It is
// satisfied by *papersources.Aggregator.
type Papers interface {
	SearchByKeywords(ctx context.Context, selector, keywords string, numResults int) (*papersources.Outcome, error)
	SearchAdvanced(ctx context.Context, selector string, req domain.SearchRequest) (*papersources.Outcome, error)
	GetMetadata(ctx context.Context, source, id string) (*domain.Paper, error)
	DownloadPDF(ctx context.Context, source, id string) (*pdf.SavedFile, error)
	Sources() []string
}

// Citations provides citation metrics and related reading. It is satisfied
// by the Semantic Scholar client.
type Citations interface {
	CitationMetrics(ctx context.Context, id string) (*domain.CitationMetrics, error)
	RelatedPapers(ctx context.Context, id string, n int) ([]domain.RelatedPaper, error)
	Recommendations(ctx context.Context, id string, n int) ([]domain.RelatedPaper, error)
}

// WorkflowRunner runs the research workflow.
type WorkflowRunner interface {
	Run(ctx context.Context, req analysis.WorkflowRequest) (*analysis.WorkflowReport, error)
}

// RequestRecorder records served requests. It is implemented by the
// metrics layer.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Deps are the services behind the API. Only Papers is required.
type Deps struct {
	Papers    Papers
	Citations Citations
	Workflow  WorkflowRunner
	Recorder  RequestRecorder
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	papers     Papers
	citations  Citations
	workflow   WorkflowRunner
	recorder   RequestRecorder
	validate   *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		papers:    deps.Papers,
		citations: deps.Citations,
		workflow:  deps.Workflow,
		recorder:  deps.Recorder,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With().Str("component", "http-server").Logger(),
		now:       time.Now,
	}

	s.validate.RegisterTagNameFunc(jsonFieldName)
	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// jsonFieldName reports fields by their JSON name in validation errors.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)
	r.Use(s.accessLogMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", s.listSources)

		r.Get("/search", s.searchPapers)
		r.Post("/search/advanced", s.searchAdvanced)

		r.Route("/papers/{source}/{id}", func(r chi.Router) {
			r.Use(selectorMiddleware)
			r.Get("/", s.getPaperMetadata)
			r.Post("/pdf", s.downloadPaperPDF)
			r.Get("/analysis-prompt", s.analysisPrompt)
			r.Get("/summary", s.summarizePaper)
		})

		r.Get("/citations/{id}", s.citationAnalysis)
		r.Get("/citations/{id}/related", s.relatedPapers)

		r.Post("/analysis/workflow", s.runWorkflow)
		r.Post("/analysis/compare", s.comparePapers)
		r.Post("/analysis/text", s.analyzeText)
		r.Post("/analysis/figure", s.explainFigure)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once at least one source is registered.
func (s *Server) readinessHandler(w http.ResponseWriter, _ *http.Request) {
	sources := s.papers.Sources()
	if len(sources) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "no paper sources registered",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"sources": len(sources),
	})
}
