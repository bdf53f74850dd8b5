package search_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lemmasearch/internal/indexer"
	"github.com/deidaraiorek/lemmasearch/internal/lemmatizer"
	"github.com/deidaraiorek/lemmasearch/internal/morphology"
	"github.com/deidaraiorek/lemmasearch/internal/search"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

type fixture struct {
	store   storage.Store
	indexer *indexer.Indexer
	lem     *lemmatizer.Lemmatizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	lem := lemmatizer.New(morphology.Default())
	return &fixture{store: store, indexer: indexer.New(store, lem), lem: lem}
}

func (f *fixture) site(t *testing.T, url, name string) *storage.Site {
	t.Helper()
	site := &storage.Site{URL: url, Name: name, Status: storage.StatusIndexed}
	require.NoError(t, f.store.UpsertSite(context.Background(), site))
	return site
}

func (f *fixture) page(t *testing.T, site *storage.Site, path, html string) {
	t.Helper()
	_, err := f.indexer.IndexDocument(context.Background(), site, path, 200, html)
	require.NoError(t, err)
}

func (f *fixture) engine(opts search.Options) *search.Engine {
	return search.New(f.store, f.lem, opts)
}

func uris(items []search.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.URI
	}
	return out
}

func TestSearchRanksAndNormalizes(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://pets.example", "Pets")
	f.page(t, site, "/a", "<title>Cats</title><p>cat cat dog</p>")
	f.page(t, site, "/b", "<title>Mixed</title><p>cat dog</p>")
	f.page(t, site, "/c", "<title>Only cats</title><p>cat</p>")

	res, err := f.engine(search.DefaultOptions()).Search(context.Background(), search.Query{Text: "cats and dogs"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{"/a", "/b"}, uris(res.Items))
	assert.InDelta(t, 1.0, res.Items[0].Relevance, 1e-9)
	assert.InDelta(t, 0.5, res.Items[1].Relevance, 1e-9)

	top := res.Items[0]
	assert.Equal(t, "https://pets.example", top.Site)
	assert.Equal(t, "Pets", top.SiteName)
	assert.Equal(t, "Cats", top.Title)
	// Only "cats" occurs verbatim, in the title.
	assert.Contains(t, top.Snippet, "<b>cats</b>")
	assert.NotContains(t, top.Snippet, "<b>cat</b>")
	assert.NotContains(t, top.Snippet, "<b>dog")
}

func TestSearchRelevanceBounds(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://example.com", "Example")
	for i := 1; i <= 6; i++ {
		f.page(t, site, fmt.Sprintf("/p%d", i), "<p>"+strings.Repeat("garden ", i)+"</p>")
	}

	res, err := f.engine(search.DefaultOptions()).Search(context.Background(), search.Query{Text: "garden", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)

	assert.Equal(t, 1.0, res.Items[0].Relevance)
	for i, item := range res.Items {
		assert.GreaterOrEqual(t, item.Relevance, 0.0)
		assert.LessOrEqual(t, item.Relevance, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, item.Relevance, res.Items[i-1].Relevance)
		}
	}
}

func TestSearchPagination(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://example.com", "Example")
	for i := 1; i <= 5; i++ {
		f.page(t, site, fmt.Sprintf("/p%d", i), "<p>"+strings.Repeat("word ", i)+"</p>")
	}
	engine := f.engine(search.DefaultOptions())
	ctx := context.Background()

	res, err := engine.Search(ctx, search.Query{Text: "word", Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, []string{"/p4", "/p3"}, uris(res.Items))

	res, err = engine.Search(ctx, search.Query{Text: "word", Offset: 4, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p1"}, uris(res.Items))

	res, err = engine.Search(ctx, search.Query{Text: "word", Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Empty(t, res.Items)

	capped := f.engine(search.Options{MaxResults: 3, DefaultLimit: 20})
	res, err = capped.Search(ctx, search.Query{Text: "word"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"/p5", "/p4", "/p3"}, uris(res.Items))
}

func TestSearchErrors(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://example.com", "Example")
	f.page(t, site, "/apple", "<p>apple orchard</p>")
	f.page(t, site, "/zebra", "<p>zebra stripes</p>")

	engine := f.engine(search.DefaultOptions())

	tests := []struct {
		name  string
		query search.Query
		want  error
	}{
		{"empty query", search.Query{Text: "  "}, search.ErrNoSearchTerms},
		{"function words only", search.Query{Text: "the and or"}, search.ErrNoSearchTerms},
		{"unknown site", search.Query{Text: "apple", Site: "https://unknown.example"}, search.ErrSiteNotIndexed},
		{"unknown lemma", search.Query{Text: "spaceship"}, search.ErrNoMatchingLemmas},
		{"disjoint lemmas", search.Query{Text: "apple zebra"}, search.ErrNoMatchingPages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(context.Background(), tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSearchSkipsUnknownLemmas(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://example.com", "Example")
	f.page(t, site, "/apple", "<p>apple orchard</p>")

	res, err := f.engine(search.DefaultOptions()).Search(context.Background(), search.Query{Text: "apple spaceship"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/apple"}, uris(res.Items))
}

func TestSearchFrequencyCutoff(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://example.com", "Example")
	f.page(t, site, "/1", "<p>common rare</p>")
	f.page(t, site, "/2", "<p>common</p>")
	f.page(t, site, "/3", "<p>common</p>")

	engine := f.engine(search.Options{MaxLemmaFrequency: 2})
	ctx := context.Background()

	_, err := engine.Search(ctx, search.Query{Text: "common"})
	assert.ErrorIs(t, err, search.ErrNoMatchingLemmas)

	res, err := engine.Search(ctx, search.Query{Text: "common rare"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/1"}, uris(res.Items))

	unlimited := f.engine(search.Options{})
	res, err = unlimited.Search(ctx, search.Query{Text: "common"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}

func TestSearchSiteFilter(t *testing.T) {
	f := newFixture(t)
	one := f.site(t, "https://one.example", "One")
	two := f.site(t, "https://two.example", "Two")
	f.page(t, one, "/", "<p>shared topic here</p>")
	f.page(t, two, "/", "<p>shared topic there</p>")

	engine := f.engine(search.DefaultOptions())
	ctx := context.Background()

	all, err := engine.Search(ctx, search.Query{Text: "shared topic"})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	scoped, err := engine.Search(ctx, search.Query{Text: "shared topic", Site: "https://two.example//"})
	require.NoError(t, err)
	require.Len(t, scoped.Items, 1)
	assert.Equal(t, "https://two.example", scoped.Items[0].Site)
	assert.Equal(t, "Two", scoped.Items[0].SiteName)
}

func TestSnippet(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(search.DefaultOptions())

	filler := strings.Repeat("lorem ipsum ", 40)
	content := "<html><body><p>" + filler + "The river bends where another river meets the sea. " + filler + "</p></body></html>"

	snippet := engine.Snippet(content, []string{"river"})
	assert.Equal(t, 2, strings.Count(snippet, "<b>river</b>"))
	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))

	plain := strings.NewReplacer("<b>", "", "</b>", "", "...", "").Replace(snippet)
	assert.LessOrEqual(t, utf8.RuneCountInString(plain), 200)
	assert.NotContains(t, plain, "  ")
}

func TestSnippetPrefersDensestCluster(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(search.DefaultOptions())

	gap := strings.Repeat("filler ", 30)
	content := "<p>alpha lonely " + gap + "dense alpha alpha text alpha " + gap + "</p>"

	snippet := engine.Snippet(content, []string{"alpha"})
	assert.Equal(t, 3, strings.Count(snippet, "<b>alpha</b>"))
	assert.NotContains(t, snippet, "lonely")
}

func TestSnippetFallback(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(search.DefaultOptions())

	body := strings.Repeat("Словарь ", 40)
	snippet := engine.Snippet("<html><head><title>x</title></head><body>"+body+"</body></html>", []string{"absent"})

	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Equal(t, 150, utf8.RuneCountInString(strings.TrimSuffix(snippet, "...")))
	assert.NotContains(t, snippet, "<b>")

	short := engine.Snippet("<p>Tiny page.</p>", []string{"absent"})
	assert.Equal(t, "Tiny page.", short)
}

func TestSnippetMatchesLiteralWords(t *testing.T) {
	f := newFixture(t)
	engine := f.engine(search.DefaultOptions())

	content := "<p>The cat sat on the mat quietly.</p>"
	snippet := engine.Snippet(content, []string{"cats"})
	assert.Equal(t, "The cat sat on the mat quietly.", snippet)

	snippet = engine.Snippet("<p>Food is good. More food later.</p>", []string{"foo"})
	assert.Equal(t, "<b>foo</b>d is good more <b>foo</b>d later", snippet)
}

func TestSearchSnippetUsesQueryWords(t *testing.T) {
	f := newFixture(t)
	site := f.site(t, "https://pets.example", "Pets")
	f.page(t, site, "/", "<p>Cats nap. A cat naps in the sun.</p>")

	res, err := f.engine(search.DefaultOptions()).Search(context.Background(), search.Query{Text: "the cat"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	snippet := res.Items[0].Snippet
	assert.Equal(t, 2, strings.Count(snippet, "<b>cat</b>"))
	assert.NotContains(t, snippet, "<b>the</b>")
}
