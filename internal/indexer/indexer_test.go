package indexer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lemmasearch/internal/indexer"
	"github.com/deidaraiorek/lemmasearch/internal/lemmatizer"
	"github.com/deidaraiorek/lemmasearch/internal/morphology"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

func setup(t *testing.T) (*indexer.Indexer, storage.Store, *storage.Site) {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	site := &storage.Site{URL: "https://example.com", Name: "Example", Status: storage.StatusIndexing}
	require.NoError(t, store.UpsertSite(context.Background(), site))

	return indexer.New(store, lemmatizer.New(morphology.Default())), store, site
}

func frequency(t *testing.T, store storage.Store, site *storage.Site, lemma string) int {
	t.Helper()
	rows, err := store.FindLemmas(context.Background(), storage.LemmaFilter{Text: lemma, SiteID: site.ID})
	require.NoError(t, err)
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Frequency
}

func TestIndexDocument(t *testing.T) {
	ctx := context.Background()
	idx, store, site := setup(t)

	html := `<html><head><title>Cars</title></head><body><p>Fast cars and slow cars</p></body></html>`
	page, err := idx.IndexDocument(ctx, site, "/cars", 200, html)
	require.NoError(t, err)

	stored, err := store.FindPageByPath(ctx, site.ID, "/cars")
	require.NoError(t, err)
	assert.Equal(t, page.ID, stored.ID)
	assert.Equal(t, html, stored.Content)

	assert.Equal(t, 1, frequency(t, store, site, "car"))
	assert.Equal(t, 1, frequency(t, store, site, "fast"))
	assert.Equal(t, 0, frequency(t, store, site, "and"))

	rows, err := store.FindLemmas(ctx, storage.LemmaFilter{Text: "car", SiteID: site.ID})
	require.NoError(t, err)
	entries, err := store.FindIndexEntries(ctx, []int64{page.ID}, []int64{rows[0].ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3.0, entries[0].Weight, "title plus two body occurrences")
}

func TestReindexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx, store, site := setup(t)

	html := "<p>indexing pages twice never duplicates pages</p>"
	first, err := idx.IndexDocument(ctx, site, "/", 200, html)
	require.NoError(t, err)
	second, err := idx.IndexDocument(ctx, site, "/", 200, html)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, frequency(t, store, site, "index"))
	assert.Equal(t, 1, frequency(t, store, site, "duplic"))

	pages, err := store.CountPages(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestFrequencyCountsDistinctPages(t *testing.T) {
	ctx := context.Background()
	idx, store, site := setup(t)

	_, err := idx.IndexDocument(ctx, site, "/a", 200, "<p>river river river</p>")
	require.NoError(t, err)
	_, err = idx.IndexDocument(ctx, site, "/b", 200, "<p>river bank</p>")
	require.NoError(t, err)

	assert.Equal(t, 2, frequency(t, store, site, "river"))
	assert.Equal(t, 1, frequency(t, store, site, "bank"))
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()
	idx, store, site := setup(t)

	_, err := idx.IndexDocument(ctx, site, "/gone", 200, "<p>temporary content</p>")
	require.NoError(t, err)
	require.Equal(t, 1, frequency(t, store, site, "temporari"))

	page, err := idx.RecordFailure(ctx, site, "/gone", 404)
	require.NoError(t, err)
	assert.Equal(t, 404, page.Code)

	stored, err := store.FindPageByPath(ctx, site.ID, "/gone")
	require.NoError(t, err)
	assert.Equal(t, 404, stored.Code)
	assert.Equal(t, indexer.FailedPageContent, stored.Content)
	assert.Equal(t, 0, frequency(t, store, site, "temporari"))
}

// brokenStore fails every page write.
type brokenStore struct {
	storage.Store
}

func (brokenStore) ReplacePage(context.Context, *storage.Page, map[string]int) error {
	return errors.New("disk full")
}

func (brokenStore) UpsertPage(context.Context, *storage.Page) error {
	return errors.New("disk full")
}

func TestIndexDocumentFailureKeepsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	idx, store, site := setup(t)

	_, err := idx.IndexDocument(ctx, site, "/news", 200, "<p>volcano report</p>")
	require.NoError(t, err)

	broken := indexer.New(brokenStore{store}, lemmatizer.New(morphology.Default()))
	_, err = broken.IndexDocument(ctx, site, "/news", 200, "<p>glacier report</p>")
	require.Error(t, err)
	_, err = broken.RecordFailure(ctx, site, "/news", 500)
	require.Error(t, err)

	stored, err := store.FindPageByPath(ctx, site.ID, "/news")
	require.NoError(t, err)
	assert.Equal(t, 200, stored.Code)
	assert.Equal(t, "<p>volcano report</p>", stored.Content)
	assert.Equal(t, 1, frequency(t, store, site, "volcano"))
	assert.Equal(t, 0, frequency(t, store, site, "glacier"))
}
