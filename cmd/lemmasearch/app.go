package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/deidaraiorek/lemmasearch/internal/config"
	"github.com/deidaraiorek/lemmasearch/internal/crawler"
	"github.com/deidaraiorek/lemmasearch/internal/fetcher"
	"github.com/deidaraiorek/lemmasearch/internal/indexer"
	"github.com/deidaraiorek/lemmasearch/internal/lemmatizer"
	"github.com/deidaraiorek/lemmasearch/internal/morphology"
	"github.com/deidaraiorek/lemmasearch/internal/search"
	"github.com/deidaraiorek/lemmasearch/internal/service"
	"github.com/deidaraiorek/lemmasearch/internal/storage"
)

// app holds everything a command needs, built from one config file.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   *storage.SQLiteStore
	browser *fetcher.BrowserFetcher
	service *service.Service
}

func newApp() (*app, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	excluded, err := cfg.Lemmatizer.ExcludedCategories()
	if err != nil {
		store.Close()
		return nil, err
	}
	lem := lemmatizer.New(morphology.Default(), lemmatizer.WithExcluded(excluded...))
	idx := indexer.New(store, lem)

	cc := cfg.Crawler
	f := fetcher.New(fetcher.Config{
		UserAgent:         cc.UserAgent,
		Referrer:          cc.Referrer,
		Timeout:           cc.RequestTimeout,
		MinDelay:          cc.MinDelay,
		MaxDelay:          cc.MaxDelay,
		MaxBodyBytes:      cc.MaxBodyBytes,
		Retries:           cc.Retries,
		RespectRobots:     cc.RespectRobots,
		RequestsPerSecond: cc.RequestsPerSecond,
	}, logger.With().Str("component", "fetcher").Logger())

	var (
		renderer fetcher.Renderer
		browser  *fetcher.BrowserFetcher
	)
	if cc.RenderJavaScript {
		browser = fetcher.NewBrowserFetcher(cc.UserAgent, cc.RequestTimeout)
		renderer = browser
	}

	c := crawler.New(crawler.Config{
		Workers:          cc.Workers,
		RenderJavaScript: cc.RenderJavaScript,
	}, f, renderer, idx, store, logger.With().Str("component", "crawler").Logger())

	engine := search.New(store, lem, search.Options{
		MaxLemmaFrequency: cfg.Search.MaxLemmaFrequency,
		MaxResults:        cfg.Search.MaxResults,
		DefaultLimit:      cfg.Search.DefaultLimit,
	})

	svc := service.New(service.Config{
		Sites:        cfg.Sites,
		AwaitCeiling: cc.AwaitCeiling,
	}, store, c, f, idx, engine, logger.With().Str("component", "service").Logger())

	logger.Debug().Str("db", cfg.Storage.Path).Int("sites", len(cfg.Sites)).Msg("initialized")

	return &app{cfg: cfg, logger: logger, store: store, browser: browser, service: svc}, nil
}

func (a *app) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close database")
	}
}

func newLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var out io.Writer = os.Stderr
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
