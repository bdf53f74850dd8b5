package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/deidaraiorek/lemmasearch/internal/fetcher"
	"github.com/deidaraiorek/lemmasearch/internal/indexer"
	"github.com/deidaraiorek/lemmasearch/internal/parser"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

// SiteUnreachable is stored as the site's last error when its root page
// cannot be fetched.
const SiteUnreachable = "site unreachable"

type Config struct {
	// Workers bounds the number of fetches in flight across all sites.
	Workers          int
	RenderJavaScript bool
}

type PageFetcher interface {
	Fetch(ctx context.Context, urlStr string) (*fetcher.Response, error)
}

type Crawler struct {
	config   Config
	fetcher  PageFetcher
	renderer fetcher.Renderer
	parser   *parser.Parser
	indexer  *indexer.Indexer
	store    storage.Store
	logger   zerolog.Logger
	slots    chan struct{}
}

// New builds a crawler. renderer may be nil; it is only used when
// Config.RenderJavaScript is set.
func New(config Config, f PageFetcher, renderer fetcher.Renderer, idx *indexer.Indexer, store storage.Store, logger zerolog.Logger) *Crawler {
	if config.Workers <= 0 {
		config.Workers = 10
	}
	if !config.RenderJavaScript {
		renderer = nil
	}

	return &Crawler{
		config:   config,
		fetcher:  f,
		renderer: renderer,
		parser:   parser.New(),
		indexer:  idx,
		store:    store,
		logger:   logger,
		slots:    make(chan struct{}, config.Workers),
	}
}

// siteRun is the state of one site's crawl tree.
type siteRun struct {
	c       *Crawler
	site    *storage.Site
	seed    *url.URL
	prefix  string
	visited sync.Map
	pages   atomic.Int64

	unreachable atomic.Bool
	errOnce     sync.Once
	storeErr    error
}

// Crawl walks site from its root and persists the terminal status, INDEXED
// or FAILED. If ctx is cancelled the tree is unwound, nothing more is
// written and ctx.Err() is returned with the site left as it was.
func (c *Crawler) Crawl(ctx context.Context, site *storage.Site) (storage.SiteStatus, error) {
	seed, err := url.Parse(site.URL)
	if err != nil {
		return storage.StatusFailed, fmt.Errorf("invalid site url %q: %w", site.URL, err)
	}

	run := &siteRun{
		c:      c,
		site:   site,
		seed:   seed,
		prefix: parser.NormalizeURLString(site.URL),
	}
	run.visited.Store(run.prefix, true)

	start := time.Now()
	c.logger.Info().Str("site", site.URL).Msg("crawl started")

	if doc, ok := run.visit(ctx, site.URL, true); ok {
		run.walk(ctx, doc)
	}

	if err := ctx.Err(); err != nil {
		c.logger.Info().Str("site", site.URL).Int64("pages", run.pages.Load()).Msg("crawl cancelled")
		return storage.StatusIndexing, err
	}

	status, lastError := storage.StatusIndexed, ""
	switch {
	case run.storeErr != nil:
		status, lastError = storage.StatusFailed, run.storeErr.Error()
	case run.unreachable.Load():
		status, lastError = storage.StatusFailed, SiteUnreachable
	}

	if err := c.store.UpdateSiteStatus(ctx, site.ID, status, lastError, time.Now()); err != nil {
		return storage.StatusFailed, err
	}
	site.Status, site.LastError = status, lastError

	c.logger.Info().
		Str("site", site.URL).
		Str("status", string(status)).
		Int64("pages", run.pages.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("crawl finished")

	return status, run.storeErr
}

// walk indexes every new link of doc and recurses into each one
// concurrently. Children are joined in URL order before it returns.
func (r *siteRun) walk(ctx context.Context, doc *parser.Document) {
	if ctx.Err() != nil {
		return
	}

	var children []chan struct{}
	for _, link := range r.claimLinks(doc) {
		if ctx.Err() != nil {
			break
		}

		child, ok := r.visit(ctx, link, false)
		if !ok {
			continue
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			r.walk(ctx, child)
		}()
		children = append(children, done)
	}

	for _, done := range children {
		<-done
	}
}

// claimLinks filters doc's links down to this site and claims each one in
// the visited set. Only links this call claimed are returned, sorted.
func (r *siteRun) claimLinks(doc *parser.Document) []string {
	current := parser.NormalizeURLString(doc.URL)

	var claimed []string
	for _, link := range doc.Links {
		if !r.inScope(link) {
			continue
		}

		key := parser.NormalizeURLString(link)
		if key == current {
			continue
		}
		if _, loaded := r.visited.LoadOrStore(key, true); loaded {
			continue
		}
		claimed = append(claimed, key)
	}

	sort.Strings(claimed)
	return claimed
}

func (r *siteRun) inScope(link string) bool {
	if strings.Contains(link, "#") {
		return false
	}
	if !parser.URLPattern.MatchString(link) {
		return false
	}
	if parser.HasSkippedExtension(link) {
		return false
	}

	u, err := url.Parse(link)
	if err != nil || !parser.SameOrigin(u, r.seed) {
		return false
	}
	return strings.HasPrefix(parser.NormalizeURLString(link), r.prefix)
}

// visit fetches and indexes one page. It reports false when the page
// yielded nothing to descend into.
func (r *siteRun) visit(ctx context.Context, link string, root bool) (*parser.Document, bool) {
	c := r.c
	if ctx.Err() != nil {
		return nil, false
	}

	u, err := url.Parse(link)
	if err != nil {
		return nil, false
	}
	path := parser.PathOf(u)

	resp, err := c.fetch(ctx, link)
	if ctx.Err() != nil {
		return nil, false
	}
	if err != nil {
		r.fetchFailed(ctx, link, path, root, err)
		return nil, false
	}

	body := resp.Body
	doc, err := c.parser.ParseHTML(body, link)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", link).Msg("parse failed")
		return nil, false
	}

	if c.renderer != nil && !doc.HasSufficientContent() {
		if rendered, rdoc, ok := c.render(ctx, link); ok {
			body, doc = rendered, rdoc
		}
		if ctx.Err() != nil {
			return nil, false
		}
	}

	if _, err := c.indexer.IndexDocument(ctx, r.site, path, resp.StatusCode, body); err != nil {
		r.failStore(ctx, link, err)
		return nil, false
	}
	if err := c.store.TouchSite(ctx, r.site.ID, time.Now()); err != nil {
		r.failStore(ctx, link, err)
		return nil, false
	}

	r.pages.Add(1)
	c.logger.Debug().Str("site", r.site.URL).Str("url", link).Int("links", len(doc.Links)).Msg("page indexed")
	return doc, true
}

func (r *siteRun) fetchFailed(ctx context.Context, link, path string, root bool, err error) {
	c := r.c

	var statusErr *fetcher.StatusError
	if errors.As(err, &statusErr) {
		c.logger.Warn().Str("url", link).Int("code", statusErr.Code).Msg("page unavailable")
		if _, err := c.indexer.RecordFailure(ctx, r.site, path, statusErr.Code); err != nil {
			r.failStore(ctx, link, err)
			return
		}
	} else {
		c.logger.Warn().Err(err).Str("url", link).Msg("fetch failed")
	}

	if root {
		r.unreachable.Store(true)
		if err := c.store.SetSiteError(ctx, r.site.ID, SiteUnreachable, time.Now()); err != nil {
			r.failStore(ctx, link, err)
		}
	}
}

func (r *siteRun) failStore(ctx context.Context, link string, err error) {
	if ctx.Err() != nil {
		return
	}
	r.c.logger.Error().Err(err).Str("url", link).Msg("index store failed")
	r.errOnce.Do(func() { r.storeErr = err })
}

// fetch holds a slot only for the duration of the request.
func (c *Crawler) fetch(ctx context.Context, link string) (*fetcher.Response, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	return c.fetcher.Fetch(ctx, link)
}

func (c *Crawler) render(ctx context.Context, link string) (string, *parser.Document, bool) {
	if err := c.acquire(ctx); err != nil {
		return "", nil, false
	}
	defer c.release()

	c.logger.Debug().Str("url", link).Msg("thin page, rendering in browser")

	html, err := c.renderer.FetchHTML(ctx, link)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", link).Msg("browser fetch failed")
		return "", nil, false
	}

	doc, err := c.parser.ParseHTML(html, link)
	if err != nil || !doc.HasSufficientContent() {
		return "", nil, false
	}
	return html, doc, true
}

func (c *Crawler) acquire(ctx context.Context) error {
	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Crawler) release() {
	<-c.slots
}
