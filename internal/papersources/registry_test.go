package papersources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

func TestNewRegistry(t *testing.T) {
	t.Run("keeps registration order", func(t *testing.T) {
		registry, err := NewRegistry(
			newMockAdapter(domain.SourceTypePubMed),
			newMockAdapter(domain.SourceTypeArXiv),
			newMockAdapter(domain.SourceTypeSemanticScholar),
		)
		require.NoError(t, err)

		assert.Equal(t, 3, registry.Len())
		assert.Equal(t, []string{"pubmed", "arxiv", "semantic_scholar"}, registry.Names())
		assert.Equal(t, []string{"pubmed", "arxiv", "semantic_scholar", "all"}, registry.Selectors())
	})

	t.Run("empty registry", func(t *testing.T) {
		registry, err := NewRegistry()
		require.NoError(t, err)
		assert.Zero(t, registry.Len())
		assert.Empty(t, registry.Names())
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewRegistry(newMockAdapter(domain.SourceTypeArXiv), newMockAdapter(domain.SourceTypeArXiv))
		assert.ErrorContains(t, err, `duplicate source "arxiv"`)
	})

	t.Run("rejects nil adapter", func(t *testing.T) {
		_, err := NewRegistry(newMockAdapter(domain.SourceTypeArXiv), nil)
		assert.Error(t, err)
	})

	t.Run("rejects reserved name", func(t *testing.T) {
		_, err := NewRegistry(newMockAdapter(domain.SourceType(domain.SelectorAll)))
		assert.Error(t, err)
	})
}

func TestRegistry_Lookup(t *testing.T) {
	arxiv := newMockAdapter(domain.SourceTypeArXiv)
	registry, err := NewRegistry(newMockAdapter(domain.SourceTypePubMed), arxiv)
	require.NoError(t, err)

	t.Run("known source", func(t *testing.T) {
		adapter, err := registry.Lookup("arxiv")
		require.NoError(t, err)
		assert.Same(t, arxiv, adapter)
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		adapter, err := registry.Lookup("  ArXiv ")
		require.NoError(t, err)
		assert.Same(t, arxiv, adapter)
	})

	t.Run("unknown source lists selectors", func(t *testing.T) {
		_, err := registry.Lookup("nonexistent_source")
		require.Error(t, err)

		var unknown *domain.UnknownSourceError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, []string{"pubmed", "arxiv", "all"}, unknown.Valid)
		assert.Equal(t, "invalid source 'nonexistent_source'. Available sources: pubmed, arxiv, all", err.Error())
	})
}

func TestRegistry_Resolve(t *testing.T) {
	registry, err := NewRegistry(newMockAdapter(domain.SourceTypePubMed), newMockAdapter(domain.SourceTypeArXiv))
	require.NoError(t, err)

	t.Run("all", func(t *testing.T) {
		adapters, err := registry.Resolve("all")
		require.NoError(t, err)
		assert.Len(t, adapters, 2)
	})

	t.Run("empty selector means all", func(t *testing.T) {
		adapters, err := registry.Resolve("")
		require.NoError(t, err)
		assert.Len(t, adapters, 2)
	})

	t.Run("single", func(t *testing.T) {
		adapters, err := registry.Resolve("pubmed")
		require.NoError(t, err)
		require.Len(t, adapters, 1)
		assert.Equal(t, domain.SourceTypePubMed, adapters[0].SourceName())
	})

	t.Run("all on empty registry", func(t *testing.T) {
		empty, err := NewRegistry()
		require.NoError(t, err)
		_, err = empty.Resolve("all")
		assert.Error(t, err)
	})
}

func TestRegistry_AdaptersIsCopy(t *testing.T) {
	registry, err := NewRegistry(newMockAdapter(domain.SourceTypePubMed))
	require.NoError(t, err)

	adapters := registry.Adapters()
	adapters[0] = newMockAdapter(domain.SourceTypeArXiv)

	assert.Equal(t, []string{"pubmed"}, registry.Names())
}
