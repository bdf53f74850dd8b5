package search

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/deidaraiorek/lemmasearch/internal/lemmatizer"
	"github.com/deidaraiorek/lemmasearch/internal/parser"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

type Options struct {
	// Lemmas found on more pages than this are skipped. Zero disables the
	// cutoff.
	MaxLemmaFrequency int
	MaxResults        int
	DefaultLimit      int
}

func DefaultOptions() Options {
	return Options{
		MaxLemmaFrequency: 250,
		MaxResults:        500,
		DefaultLimit:      20,
	}
}

type Query struct {
	Text string
	// Site restricts the search to one site URL; empty searches all sites.
	Site   string
	Offset int
	Limit  int
}

type Item struct {
	Site      string  `json:"site"`
	SiteName  string  `json:"siteName"`
	URI       string  `json:"uri"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

type Result struct {
	// Total is the number of ranked pages before pagination.
	Total int
	Items []Item
}

type Engine struct {
	store      storage.Store
	lemmatizer *lemmatizer.Lemmatizer
	opts       Options
}

func New(store storage.Store, lem *lemmatizer.Lemmatizer, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaults.MaxResults
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaults.DefaultLimit
	}
	if opts.MaxLemmaFrequency < 0 {
		opts.MaxLemmaFrequency = 0
	}

	return &Engine{
		store:      store,
		lemmatizer: lem,
		opts:       opts,
	}
}

// lemmaGroup is every stored row of one query lemma. A global search
// matches one row per site.
type lemmaGroup struct {
	text      string
	frequency int
	ids       []int64
}

type rankedPage struct {
	id        int64
	relevance float64
}

func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	lemmas := e.lemmatizer.Lemmas(q.Text)
	if len(lemmas) == 0 {
		return nil, ErrNoSearchTerms
	}

	var siteID int64
	if q.Site != "" {
		site, err := e.store.FindSiteByURL(ctx, strings.TrimRight(q.Site, "/"))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSiteNotIndexed
		}
		if err != nil {
			return nil, err
		}
		siteID = site.ID
	}

	groups, err := e.findLemmaGroups(ctx, lemmas, siteID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrNoMatchingLemmas
	}

	pageIDs, err := e.intersectPages(ctx, groups)
	if err != nil {
		return nil, err
	}
	if len(pageIDs) == 0 {
		return nil, ErrNoMatchingPages
	}

	ranked, err := e.rank(ctx, groups, pageIDs)
	if err != nil {
		return nil, err
	}
	if len(ranked) > e.opts.MaxResults {
		ranked = ranked[:e.opts.MaxResults]
	}

	items, err := e.buildItems(ctx, e.queryWords(q.Text), paginate(ranked, q.Offset, e.limit(q.Limit)))
	if err != nil {
		return nil, err
	}

	return &Result{Total: len(ranked), Items: items}, nil
}

// queryWords returns the distinct cleaned words of the query that carry a
// lemma. Function words and short tokens are not highlighted.
func (e *Engine) queryWords(text string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range lemmatizer.Tokenize(text) {
		if seen[w] {
			continue
		}
		seen[w] = true
		if _, ok := e.lemmatizer.Lemma(w); ok {
			words = append(words, w)
		}
	}
	return words
}

func (e *Engine) limit(limit int) int {
	if limit <= 0 {
		return e.opts.DefaultLimit
	}
	return limit
}

// findLemmaGroups returns the stored rows of each query lemma that passes
// the frequency cutoff, rarest first. Lemmas with no rows are dropped.
func (e *Engine) findLemmaGroups(ctx context.Context, lemmas []string, siteID int64) ([]lemmaGroup, error) {
	var groups []lemmaGroup
	for _, text := range lemmas {
		rows, err := e.store.FindLemmas(ctx, storage.LemmaFilter{
			Text:         text,
			SiteID:       siteID,
			MaxFrequency: e.opts.MaxLemmaFrequency,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		g := lemmaGroup{text: text}
		for _, row := range rows {
			g.frequency += row.Frequency
			g.ids = append(g.ids, row.ID)
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].frequency != groups[j].frequency {
			return groups[i].frequency < groups[j].frequency
		}
		return groups[i].text < groups[j].text
	})
	return groups, nil
}

// intersectPages keeps the pages that contain every group, starting from
// the rarest and stopping as soon as the set is empty.
func (e *Engine) intersectPages(ctx context.Context, groups []lemmaGroup) ([]int64, error) {
	var current map[int64]bool

	for _, g := range groups {
		next := make(map[int64]bool)
		for _, lemmaID := range g.ids {
			ids, err := e.store.FindPageIDsByLemma(ctx, lemmaID)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				if current == nil || current[id] {
					next[id] = true
				}
			}
		}

		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}

	ids := make([]int64, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// rank sums the weights of the query lemmas per page and scales by the
// best page, so the top result has relevance 1.
func (e *Engine) rank(ctx context.Context, groups []lemmaGroup, pageIDs []int64) ([]rankedPage, error) {
	var lemmaIDs []int64
	for _, g := range groups {
		lemmaIDs = append(lemmaIDs, g.ids...)
	}

	entries, err := e.store.FindIndexEntries(ctx, pageIDs, lemmaIDs)
	if err != nil {
		return nil, err
	}

	absolute := make(map[int64]float64, len(pageIDs))
	for _, id := range pageIDs {
		absolute[id] = 0
	}
	for _, entry := range entries {
		absolute[entry.PageID] += entry.Weight
	}

	maxRelevance := 0.0
	for _, v := range absolute {
		if v > maxRelevance {
			maxRelevance = v
		}
	}

	ranked := make([]rankedPage, 0, len(absolute))
	for id, v := range absolute {
		relevance := 0.0
		if maxRelevance > 0 {
			relevance = v / maxRelevance
		}
		ranked = append(ranked, rankedPage{id: id, relevance: relevance})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].relevance != ranked[j].relevance {
			return ranked[i].relevance > ranked[j].relevance
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked, nil
}

func paginate(ranked []rankedPage, offset, limit int) []rankedPage {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ranked) {
		return nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

func (e *Engine) buildItems(ctx context.Context, words []string, window []rankedPage) ([]Item, error) {
	if len(window) == 0 {
		return []Item{}, nil
	}

	ids := make([]int64, len(window))
	for i, r := range window {
		ids[i] = r.id
	}

	pages, err := e.store.FindPagesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]storage.Page, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}

	sites, err := e.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	siteByID := make(map[int64]storage.Site, len(sites))
	for _, s := range sites {
		siteByID[s.ID] = s
	}

	items := make([]Item, 0, len(window))
	for _, r := range window {
		page, ok := byID[r.id]
		if !ok {
			// Removed by a concurrent re-crawl.
			continue
		}
		site := siteByID[page.SiteID]

		items = append(items, Item{
			Site:      site.URL,
			SiteName:  site.Name,
			URI:       page.Path,
			Title:     parser.ExtractTitle(page.Content),
			Snippet:   e.Snippet(page.Content, words),
			Relevance: r.relevance,
		})
	}
	return items, nil
}
