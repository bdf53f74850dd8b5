package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deidaraiorek/lemmasearch/internal/config"
	"github.com/deidaraiorek/lemmasearch/internal/crawler"
	"github.com/deidaraiorek/lemmasearch/internal/fetcher"
	"github.com/deidaraiorek/lemmasearch/internal/indexer"
	"github.com/deidaraiorek/lemmasearch/internal/parser"
	"github.com/deidaraiorek/lemmasearch/internal/search"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

type SiteCrawler interface {
	Crawl(ctx context.Context, site *storage.Site) (storage.SiteStatus, error)
}

type Config struct {
	Sites []config.SiteConfig
	// AwaitCeiling is how long a run is waited on before the wait is
	// logged and restarted.
	AwaitCeiling time.Duration
}

// Run is one full crawl of every configured site.
type Run struct {
	ID      string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once every site of the run has finished or unwound.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

type Service struct {
	cfg     Config
	store   storage.Store
	crawler SiteCrawler
	fetcher crawler.PageFetcher
	indexer *indexer.Indexer
	engine  *search.Engine
	logger  zerolog.Logger

	mu     sync.Mutex
	active *Run
}

func New(cfg Config, store storage.Store, c SiteCrawler, f crawler.PageFetcher, idx *indexer.Indexer, engine *search.Engine, logger zerolog.Logger) *Service {
	if cfg.AwaitCeiling <= 0 {
		cfg.AwaitCeiling = 24 * time.Hour
	}

	return &Service{
		cfg:     cfg,
		store:   store,
		crawler: c,
		fetcher: f,
		indexer: idx,
		engine:  engine,
		logger:  logger,
	}
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// StartCrawl wipes every configured site, marks it INDEXING and crawls all
// of them in the background. Only one run may be active at a time.
func (s *Service) StartCrawl(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, ErrAlreadyRunning
	}

	sites := make([]*storage.Site, 0, len(s.cfg.Sites))
	for _, sc := range s.cfg.Sites {
		if err := s.store.DeleteSiteByURL(ctx, sc.URL); err != nil {
			return nil, err
		}

		site := &storage.Site{
			URL:        sc.URL,
			Name:       sc.Name,
			Status:     storage.StatusIndexing,
			StatusTime: time.Now(),
		}
		if err := s.store.UpsertSite(ctx, site); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:      uuid.NewString(),
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.active = run

	go s.runAll(runCtx, run, sites)

	s.logger.Info().Str("run", run.ID).Int("sites", len(sites)).Msg("indexing started")
	return run, nil
}

func (s *Service) runAll(ctx context.Context, run *Run, sites []*storage.Site) {
	defer func() {
		run.cancel()
		s.mu.Lock()
		if s.active == run {
			s.active = nil
		}
		s.mu.Unlock()
		close(run.done)
	}()

	var wg sync.WaitGroup
	for _, site := range sites {
		wg.Add(1)
		go func(site *storage.Site) {
			defer wg.Done()

			status, err := s.crawler.Crawl(ctx, site)
			switch {
			case errors.Is(err, context.Canceled):
				s.logger.Info().Str("run", run.ID).Str("site", site.URL).Msg("site crawl stopped")
			case err != nil:
				s.logger.Error().Err(err).Str("run", run.ID).Str("site", site.URL).Msg("site crawl failed")
			default:
				s.logger.Info().Str("run", run.ID).Str("site", site.URL).Str("status", string(status)).Msg("site crawl done")
			}
		}(site)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	s.awaitDone(run, allDone)

	// Still the active run, so no new run can have created INDEXING sites.
	if ctx.Err() != nil {
		n, err := s.store.FailIndexingSites(context.WithoutCancel(ctx), StoppedByUser, time.Now())
		if err != nil {
			s.logger.Error().Err(err).Str("run", run.ID).Msg("failed to mark stopped sites")
		} else {
			s.logger.Info().Str("run", run.ID).Int64("sites", n).Msg("indexing stopped by user")
		}
	}

	s.logger.Info().Str("run", run.ID).Dur("elapsed", time.Since(run.Started)).Msg("indexing finished")
}

// awaitDone blocks until done is closed. Each time the ceiling passes it
// logs and waits again.
func (s *Service) awaitDone(run *Run, done <-chan struct{}) {
	for {
		timer := time.NewTimer(s.cfg.AwaitCeiling)
		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
			s.logger.Warn().Str("run", run.ID).Dur("ceiling", s.cfg.AwaitCeiling).Msg("indexing still running, waiting again")
		}
	}
}

// StopCrawl cancels the active run and waits for it to unwind. Every site
// the run left INDEXING is marked FAILED by the run itself, so it happens
// even when ctx ends first.
func (s *Service) StopCrawl(ctx context.Context) error {
	s.mu.Lock()
	run := s.active
	s.mu.Unlock()

	if run == nil {
		return ErrNotRunning
	}

	run.cancel()
	select {
	case <-run.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the active run, if any.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.StopCrawl(ctx)
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

// IndexSinglePage fetches one page of a configured site and replaces its
// index entries. A non-2xx answer is recorded on the page, fails the site
// and is returned as a *fetcher.StatusError.
func (s *Service) IndexSinglePage(ctx context.Context, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || !parser.URLPattern.MatchString(rawURL) {
		return ErrMalformedURL
	}

	seed, ok := s.siteFor(u, rawURL)
	if !ok {
		return ErrOutOfScopeURL
	}

	site, err := s.findOrCreateSite(ctx, seed)
	if err != nil {
		return err
	}
	path := parser.PathOf(u)

	resp, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var statusErr *fetcher.StatusError
		if !errors.As(err, &statusErr) {
			return fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
		}

		if _, err := s.indexer.RecordFailure(ctx, site, path, statusErr.Code); err != nil {
			return err
		}
		msg := fmt.Sprintf("page unavailable, code %d", statusErr.Code)
		if err := s.store.UpdateSiteStatus(ctx, site.ID, storage.StatusFailed, msg, time.Now()); err != nil {
			return err
		}

		s.logger.Warn().Str("url", rawURL).Int("code", statusErr.Code).Msg("page unavailable")
		return statusErr
	}

	if _, err := s.indexer.IndexDocument(ctx, site, path, resp.StatusCode, resp.Body); err != nil {
		return err
	}

	// A full crawl in progress owns the site's status.
	if site.Status == storage.StatusIndexing && s.Running() {
		err = s.store.TouchSite(ctx, site.ID, time.Now())
	} else {
		err = s.store.UpdateSiteStatus(ctx, site.ID, storage.StatusIndexed, "", time.Now())
	}
	if err != nil {
		return err
	}

	s.logger.Info().Str("site", site.URL).Str("path", path).Msg("page indexed")
	return nil
}

// siteFor returns the configured site that covers u, preferring the
// longest matching seed.
func (s *Service) siteFor(u *url.URL, rawURL string) (config.SiteConfig, bool) {
	normalized := parser.NormalizeURLString(rawURL)

	var best config.SiteConfig
	found := false
	for _, sc := range s.cfg.Sites {
		seed, err := url.Parse(sc.URL)
		if err != nil || !parser.SameOrigin(seed, u) {
			continue
		}
		prefix := parser.NormalizeURLString(sc.URL)
		if !strings.HasPrefix(normalized, prefix) {
			continue
		}
		if !found || len(sc.URL) > len(best.URL) {
			best, found = sc, true
		}
	}
	return best, found
}

func (s *Service) findOrCreateSite(ctx context.Context, sc config.SiteConfig) (*storage.Site, error) {
	site, err := s.store.FindSiteByURL(ctx, sc.URL)
	if err == nil {
		return site, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	site = &storage.Site{
		URL:        sc.URL,
		Name:       sc.Name,
		Status:     storage.StatusIndexed,
		StatusTime: time.Now(),
	}
	if err := s.store.UpsertSite(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	return s.engine.Search(ctx, q)
}
