package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/deidaraiorek/lemmasearch/internal/fetcher"
	"github.com/deidaraiorek/lemmasearch/internal/search"
	"github.com/deidaraiorek/lemmasearch/internal/service"
)

type Handlers struct {
	backend Backend
	logger  zerolog.Logger
}

func NewHandlers(backend Backend, logger zerolog.Logger) *Handlers {
	return &Handlers{backend: backend, logger: logger}
}

type resultResponse struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

type statisticsResponse struct {
	Result     bool                `json:"result"`
	Statistics *service.Statistics `json:"statistics"`
}

type searchResponse struct {
	Result bool          `json:"result"`
	Count  int           `json:"count"`
	Data   []search.Item `json:"data"`
}

func (h *Handlers) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backend.Statistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{Result: true, Statistics: stats})
}

func (h *Handlers) HandleStartIndexing(w http.ResponseWriter, r *http.Request) {
	run, err := h.backend.StartCrawl(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info().Str("run", run.ID).Msg("indexing requested")
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (h *Handlers) HandleStopIndexing(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.StopCrawl(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (h *Handlers) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "invalid form"})
		return
	}

	if err := h.backend.IndexSinglePage(r.Context(), r.PostForm.Get("url")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	offset, err := intParam(params.Get("offset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "invalid offset"})
		return
	}
	limit, err := intParam(params.Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "invalid limit"})
		return
	}

	result, err := h.backend.Search(r.Context(), search.Query{
		Text:   params.Get("query"),
		Site:   params.Get("site"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Result: true, Count: result.Total, Data: result.Items})
}

// intParam parses an optional non-negative integer; empty means zero.
func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, code, resultResponse{Error: msg})
}

func statusCode(err error) int {
	var statusErr *fetcher.StatusError
	switch {
	case errors.Is(err, service.ErrAlreadyRunning), errors.Is(err, service.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrMalformedURL),
		errors.Is(err, service.ErrOutOfScopeURL),
		errors.Is(err, search.ErrNoSearchTerms):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrSiteNotIndexed),
		errors.Is(err, search.ErrNoMatchingLemmas),
		errors.Is(err, search.ErrNoMatchingPages):
		return http.StatusNotFound
	case errors.As(err, &statusErr), errors.Is(err, service.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
