package analysis

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

const (
	// DefaultBatchLimit caps how many files a batch analyzes.
	DefaultBatchLimit = 10

	// DefaultBatchConcurrency bounds concurrent PDF extraction.
	DefaultBatchConcurrency = 4
)

// LocalReport is the analysis of one PDF file.
type LocalReport struct {
	Path           string   `json:"file_path"`
	FileName       string   `json:"file_name"`
	Pages          int      `json:"pages"`
	WordCount      int      `json:"word_count"`
	PotentialTitle string   `json:"potential_title"`
	Abstract       string   `json:"abstract,omitempty"`
	Sections       []string `json:"sections_found"`
	Figures        []Figure `json:"figures"`
	Error          string   `json:"error,omitempty"`
}

// BatchReport collects the analyses of several files, in input order.
type BatchReport struct {
	TotalFiles int           `json:"total_files"`
	Failed     int           `json:"failed"`
	Papers     []LocalReport `json:"papers"`
}

// LocalAnalyzer analyzes PDF files on disk.
type LocalAnalyzer struct {
	extractor   *pdf.Extractor
	concurrency int
	logger      zerolog.Logger
}

// NewLocalAnalyzer creates an analyzer. concurrency <= 0 selects
// DefaultBatchConcurrency.
func NewLocalAnalyzer(extractor *pdf.Extractor, concurrency int, logger zerolog.Logger) *LocalAnalyzer {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &LocalAnalyzer{
		extractor:   extractor,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "local_analyzer").Logger(),
	}
}

// AnalyzeLocalPaper extracts the text of path and reports its size, likely
// title, abstract, sections and figures.
func (a *LocalAnalyzer) AnalyzeLocalPaper(ctx context.Context, path string) (*LocalReport, error) {
	doc, err := a.extractor.ExtractFile(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewNotFoundError("file", path)
		}
		return nil, err
	}

	text := doc.Text()
	report := &LocalReport{
		Path:      path,
		FileName:  filepath.Base(path),
		Pages:     doc.PageCount(),
		WordCount: WordCount(text),
		Sections:  DetectSections(text),
		Figures:   ListFigures(text),
	}
	if report.Sections == nil {
		report.Sections = []string{}
	}
	if report.Figures == nil {
		report.Figures = []Figure{}
	}
	if doc.PageCount() > 0 {
		report.PotentialTitle = PotentialTitle(doc.Pages[0])
	}
	report.Abstract, _ = ExtractAbstract(text)

	a.logger.Debug().Str("file", report.FileName).Int("pages", report.Pages).Msg("analyzed pdf")
	return report, nil
}

// BatchAnalyze analyzes paths with bounded concurrency. A file that fails is
// reported in its entry and does not stop the others.
func (a *LocalAnalyzer) BatchAnalyze(ctx context.Context, paths []string) (*BatchReport, error) {
	reports := make([]LocalReport, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			r, err := a.AnalyzeLocalPaper(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				a.logger.Warn().Err(err).Str("file", path).Msg("pdf analysis failed")
				reports[i] = LocalReport{Path: path, FileName: filepath.Base(path), Error: err.Error()}
				return nil
			}
			reports[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchReport{TotalFiles: len(paths), Papers: reports}
	for _, r := range reports {
		if r.Error != "" {
			batch.Failed++
		}
	}
	return batch, nil
}

// FindPDFs lists up to limit *.pdf files directly inside dir, sorted by
// name. limit <= 0 selects DefaultBatchLimit.
func FindPDFs(dir string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewNotFoundError("folder", dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, domain.NewValidationError("folder", dir+" is not a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}
