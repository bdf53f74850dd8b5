package indexer

import (
	"context"
	"fmt"

	"github.com/deidaraiorek/lemmasearch/internal/lemmatizer"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

// FailedPageContent is stored for pages that answered with a non-2xx code.
const FailedPageContent = ""

type Indexer struct {
	store      storage.Store
	lemmatizer *lemmatizer.Lemmatizer
}

func New(store storage.Store, lem *lemmatizer.Lemmatizer) *Indexer {
	return &Indexer{
		store:      store,
		lemmatizer: lem,
	}
}

// RecordPage stores the page under (site, path), overwriting any earlier
// version.
func (idx *Indexer) RecordPage(ctx context.Context, site *storage.Site, path string, code int, html string) (*storage.Page, error) {
	page := &storage.Page{
		SiteID:  site.ID,
		Path:    path,
		Code:    code,
		Content: html,
	}
	if err := idx.store.UpsertPage(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// ApplyLemmas replaces the index entries of page with counts. Applying the
// same counts twice leaves the index unchanged.
func (idx *Indexer) ApplyLemmas(ctx context.Context, site *storage.Site, page *storage.Page, counts map[string]int) error {
	if err := idx.store.ReplacePageIndex(ctx, site.ID, page.ID, counts); err != nil {
		return fmt.Errorf("failed to index page %s: %w", page.Path, err)
	}
	return nil
}

// IndexDocument stores a successfully fetched page together with its
// lemmas. Either both land or neither does.
func (idx *Indexer) IndexDocument(ctx context.Context, site *storage.Site, path string, code int, html string) (*storage.Page, error) {
	return idx.replace(ctx, site, path, code, html, idx.lemmatizer.Lemmatize(html))
}

// RecordFailure stores a page that could not be fetched with its real code
// and drops whatever the previous version of the page contributed.
func (idx *Indexer) RecordFailure(ctx context.Context, site *storage.Site, path string, code int) (*storage.Page, error) {
	return idx.replace(ctx, site, path, code, FailedPageContent, nil)
}

func (idx *Indexer) replace(ctx context.Context, site *storage.Site, path string, code int, html string, counts map[string]int) (*storage.Page, error) {
	page := &storage.Page{
		SiteID:  site.ID,
		Path:    path,
		Code:    code,
		Content: html,
	}
	if err := idx.store.ReplacePage(ctx, page, counts); err != nil {
		return nil, fmt.Errorf("failed to index page %s: %w", path, err)
	}
	return page, nil
}
