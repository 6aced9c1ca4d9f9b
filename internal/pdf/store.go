package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SavedFile describes a PDF persisted by a Store.
type SavedFile struct {
	// Name is the sanitized file name inside the store directory.
	Name string `json:"name"`
	// Path is the full path of the written file.
	Path string `json:"path"`
	// SourceURL is the URL the bytes were fetched from.
	SourceURL string `json:"source_url"`
	// SizeBytes is the size of the written file.
	SizeBytes int64 `json:"size_bytes"`
	// ContentHash is the SHA-256 hex digest of the content.
	ContentHash string `json:"content_hash"`
}

// Status renders the human-readable download status returned by the façades.
func (f *SavedFile) Status() string {
	return "PDF downloaded successfully as " + f.Name
}

// Store writes PDFs into a single directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. An empty dir means the working directory.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir}
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes content under the sanitized name. The file is written to a
// temporary name first and renamed into place.
func (s *Store) Save(name string, result *DownloadResult) (*SavedFile, error) {
	name = SanitizeFilename(name)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(result.Content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("rename %s: %w", name, err)
	}

	return &SavedFile{
		Name:        name,
		Path:        path,
		SizeBytes:   result.SizeBytes,
		ContentHash: result.ContentHash,
	}, nil
}

// SanitizeFilename maps an identifier-derived name onto a safe single path
// element. Slashes become underscores and anything outside [A-Za-z0-9._-] is
// replaced. A ".pdf" suffix is added when missing.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "paper"
	}
	if !strings.HasSuffix(strings.ToLower(out), ".pdf") {
		out += ".pdf"
	}
	return out
}

// DownloadObserver is notified of every Fetch attempt.
type DownloadObserver interface {
	RecordPDFDownload(status string, bytes int64)
}

// Fetcher downloads a PDF and persists it in one step. Adapters share a
// single Fetcher.
type Fetcher struct {
	downloader *Downloader
	store      *Store
	observer   DownloadObserver
}

// NewFetcher combines a Downloader and a Store.
func NewFetcher(downloader *Downloader, store *Store) *Fetcher {
	return &Fetcher{downloader: downloader, store: store}
}

// WithObserver sets the observer notified of download outcomes.
func (f *Fetcher) WithObserver(o DownloadObserver) *Fetcher {
	f.observer = o
	return f
}

// Fetch downloads rawURL and saves it as name.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, name string) (*SavedFile, error) {
	result, err := f.downloader.Download(ctx, rawURL)
	if err != nil {
		f.record(DownloadStatus(err), 0)
		return nil, err
	}
	saved, err := f.store.Save(name, result)
	if err != nil {
		f.record(DownloadStatus(err), 0)
		return nil, err
	}
	saved.SourceURL = rawURL
	f.record(DownloadStatus(nil), saved.SizeBytes)
	return saved, nil
}

func (f *Fetcher) record(status string, bytes int64) {
	if f.observer != nil {
		f.observer.RecordPDFDownload(status, bytes)
	}
}

// DownloadStatus maps a Fetch error to a short metric label.
func DownloadStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotPDF):
		return "not_pdf"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrSSRF):
		return "denied"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
