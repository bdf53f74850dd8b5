package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Store is the durable index: sites, pages, lemmas and the postings that
// link them.
type Store interface {
	// UpsertSite inserts or replaces the site with site.URL and sets site.ID.
	UpsertSite(ctx context.Context, site *Site) error
	FindSiteByURL(ctx context.Context, url string) (*Site, error)
	ListSites(ctx context.Context) ([]Site, error)
	UpdateSiteStatus(ctx context.Context, siteID int64, status SiteStatus, lastError string, at time.Time) error
	SetSiteError(ctx context.Context, siteID int64, lastError string, at time.Time) error
	TouchSite(ctx context.Context, siteID int64, at time.Time) error
	// FailIndexingSites moves every site still INDEXING to FAILED.
	FailIndexingSites(ctx context.Context, lastError string, at time.Time) (int64, error)
	// DeleteSiteByURL removes the site and all of its pages, lemmas and
	// postings. Deleting an unknown site is not an error.
	DeleteSiteByURL(ctx context.Context, url string) error

	// UpsertPage inserts or overwrites the page at (SiteID, Path) and sets page.ID.
	UpsertPage(ctx context.Context, page *Page) error
	FindPageByPath(ctx context.Context, siteID int64, path string) (*Page, error)
	FindPagesByIDs(ctx context.Context, ids []int64) ([]Page, error)

	// ReplacePageIndex swaps the page's postings for counts atomically,
	// keeping lemma frequencies equal to their document frequency.
	ReplacePageIndex(ctx context.Context, siteID, pageID int64, counts map[string]int) error
	// ReplacePage upserts the page and swaps its postings for counts in one
	// transaction.
	ReplacePage(ctx context.Context, page *Page, counts map[string]int) error
	FindLemmas(ctx context.Context, filter LemmaFilter) ([]Lemma, error)
	FindPageIDsByLemma(ctx context.Context, lemmaID int64) ([]int64, error)
	FindIndexEntries(ctx context.Context, pageIDs, lemmaIDs []int64) ([]IndexEntry, error)

	CountPages(ctx context.Context, siteID int64) (int, error)
	CountLemmas(ctx context.Context, siteID int64) (int, error)

	Close() error
}
