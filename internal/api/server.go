package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/deidaraiorek/lemmasearch/internal/search"
	"github.com/deidaraiorek/lemmasearch/internal/service"
)

// Backend is the part of service.Service the HTTP layer drives.
type Backend interface {
	StartCrawl(ctx context.Context) (*service.Run, error)
	StopCrawl(ctx context.Context) error
	IndexSinglePage(ctx context.Context, rawURL string) error
	Search(ctx context.Context, q search.Query) (*search.Result, error)
	Statistics(ctx context.Context) (*service.Statistics, error)
}

func NewRouter(backend Backend, logger zerolog.Logger) http.Handler {
	h := NewHandlers(backend, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/statistics", h.HandleStatistics)
		r.Get("/startIndexing", h.HandleStartIndexing)
		r.Get("/stopIndexing", h.HandleStopIndexing)
		r.Post("/indexPage", h.HandleIndexPage)
		r.Get("/search", h.HandleSearch)
	})

	return r
}

func NewServer(addr string, backend Backend, logger zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(backend, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("code", ww.Status()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
