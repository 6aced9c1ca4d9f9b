package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// writeConfig writes a config file disabling Sci-Hub and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	for _, env := range os.Environ() {
		key, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(key, "SCHOLAR_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "scholar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  output: discard
downloads:
  dir: `+filepath.Join(dir, "downloads")+`
paper_sources:
  scihub:
    enabled: false
`), 0o600))
	return path
}

func TestSourcesCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "sources")
	require.NoError(t, err)

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"pubmed", "biorxiv", "medrxiv", "arxiv", "semantic_scholar", "all"}, got["sources"])

	t.Run("yaml output", func(t *testing.T) {
		out, err := execute(t, "--config", cfg, "--output", "yaml", "sources")
		require.NoError(t, err)
		assert.Equal(t, "sources:\n  - pubmed\n  - biorxiv\n  - medrxiv\n  - arxiv\n  - semantic_scholar\n  - all\n", out)
	})
}

func TestRootCommand_RejectsUnknownOutput(t *testing.T) {
	_, err := execute(t, "--output", "xml", "sources")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "sources")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestAdvancedCommand_RejectsBadDates(t *testing.T) {
	_, err := execute(t, "advanced", "--title", "x", "--end-date", "2020/01/01")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "end-date")
}

func TestSearchCommand_UnknownSource(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "--config", cfg, "search", "--source", "scihub", "crispr")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestArgumentValidation(t *testing.T) {
	tests := [][]string{
		{"search"},
		{"metadata", "arxiv"},
		{"download"},
		{"prompt", "a", "b", "c"},
		{"analyze"},
		{"workflow"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := execute(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestSummaryCommand_RejectsUnknownStyle(t *testing.T) {
	_, err := execute(t, "summary", "--style", "poetic", "arxiv", "2301.00001")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyzeCommand(t *testing.T) {
	cfg := writeConfig(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "--config", cfg, "analyze", filepath.Join(t.TempDir(), "nope.pdf"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("folder without pdfs", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

		_, err := execute(t, "--config", cfg, "analyze", dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("broken pdf in a folder is reported", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o600))

		out, err := execute(t, "--config", cfg, "analyze", dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 1 file(s) failed")

		var batch struct {
			TotalFiles int `json:"total_files"`
			Failed     int `json:"failed"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &batch))
		assert.Equal(t, 1, batch.TotalFiles)
		assert.Equal(t, 1, batch.Failed)
	})
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	paths, err := expandPaths([]string{"single.pdf", dir}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"single.pdf",
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.pdf"),
	}, paths)

	paths, err = expandPaths([]string{dir}, 1)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}
