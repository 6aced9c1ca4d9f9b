package papersources

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/pdf"
)

// mockAdapter is a configurable Adapter for registry and aggregator tests.
type mockAdapter struct {
	source domain.SourceType

	// searchFunc customizes both search operations.
	searchFunc   func(ctx context.Context, numResults int) ([]domain.Paper, error)
	metadataFunc func(ctx context.Context, id string) (*domain.Paper, error)
	downloadFunc func(ctx context.Context, id string) (*pdf.SavedFile, error)

	searchCalls  atomic.Int32
	lastAdvanced atomic.Pointer[domain.SearchRequest]
	lastKeywords atomic.Pointer[string]
}

func newMockAdapter(source domain.SourceType, papers ...domain.Paper) *mockAdapter {
	return &mockAdapter{
		source: source,
		searchFunc: func(context.Context, int) ([]domain.Paper, error) {
			return papers, nil
		},
	}
}

func (m *mockAdapter) SearchByKeywords(ctx context.Context, keywords string, numResults int) ([]domain.Paper, error) {
	m.searchCalls.Add(1)
	m.lastKeywords.Store(&keywords)
	return m.searchFunc(ctx, numResults)
}

func (m *mockAdapter) SearchAdvanced(ctx context.Context, req domain.SearchRequest) ([]domain.Paper, error) {
	m.searchCalls.Add(1)
	m.lastAdvanced.Store(&req)
	return m.searchFunc(ctx, req.NumResults)
}

func (m *mockAdapter) GetMetadata(ctx context.Context, id string) (*domain.Paper, error) {
	if m.metadataFunc != nil {
		return m.metadataFunc(ctx, id)
	}
	return nil, domain.NewNotFoundError("paper", id)
}

func (m *mockAdapter) DownloadPDF(ctx context.Context, id string) (*pdf.SavedFile, error) {
	if m.downloadFunc != nil {
		return m.downloadFunc(ctx, id)
	}
	return nil, domain.ErrNoPDF
}

func (m *mockAdapter) SourceName() domain.SourceType {
	return m.source
}

func (m *mockAdapter) SearchCallCount() int {
	return int(m.searchCalls.Load())
}

func paper(source domain.SourceType, id, title string) domain.Paper {
	return domain.Paper{ID: id, Title: title, Source: source}
}

// recorderSpy captures SearchRecorder calls.
type recorderSpy struct {
	started   atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32
	kept      atomic.Int32
	dropped   atomic.Int32
}

func (r *recorderSpy) RecordSearchStarted(string) { r.started.Add(1) }

func (r *recorderSpy) RecordSearchCompleted(string, int, time.Duration) { r.completed.Add(1) }

func (r *recorderSpy) RecordSearchFailed(string, string, time.Duration) { r.failed.Add(1) }

func (r *recorderSpy) RecordMerge(kept, dropped int) {
	r.kept.Add(int32(kept))
	r.dropped.Add(int32(dropped))
}
