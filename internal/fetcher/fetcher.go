package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

var (
	ErrDisallowed = errors.New("disallowed by robots.txt")
	ErrNotHTML    = errors.New("content is not html")
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered with status %d", e.URL, e.Code)
}

type Config struct {
	UserAgent string
	Referrer  string
	Timeout   time.Duration
	// Every request waits a random delay in [MinDelay, MaxDelay).
	MinDelay          time.Duration
	MaxDelay          time.Duration
	MaxBodyBytes      int64
	Retries           uint64
	RespectRobots     bool
	RequestsPerSecond float64
}

type Response struct {
	// URL is the final address after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        string
}

type Fetcher struct {
	client      *http.Client
	cfg         Config
	logger      zerolog.Logger
	robotsCache map[string]*robotstxt.RobotsData
	robotsMu    sync.RWMutex
	limiters    map[string]*rate.Limiter
	limitersMu  sync.Mutex
}

func New(cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:         cfg,
		logger:      logger,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Fetch downloads an HTML page. A non-2xx answer is returned as a
// *StatusError; transport failures are retried up to Config.Retries times.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Response, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", urlStr, err)
	}

	if f.cfg.RespectRobots && !f.IsAllowed(ctx, u) {
		return nil, ErrDisallowed
	}

	if err := sleep(ctx, f.jitter()); err != nil {
		return nil, err
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	var result *Response
	operation := func() error {
		resp, err := f.do(ctx, urlStr)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			f.logger.Debug().Err(err).Str("url", urlStr).Msg("fetch failed, retrying")
			return err
		}
		result = resp
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, f.cfg.Retries), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// do performs one request. Errors that retrying cannot fix are wrapped with
// backoff.Permanent.
func (f *Fetcher) do(ctx context.Context, urlStr string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.Referrer != "" {
		req.Header.Set("Referer", f.cfg.Referrer)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	finalURL := urlStr
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, backoff.Permanent(&StatusError{URL: finalURL, Code: resp.StatusCode})
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, backoff.Permanent(fmt.Errorf("%s: %w (%s)", finalURL, ErrNotHTML, contentType))
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Response{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        string(data),
	}, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func (f *Fetcher) jitter() time.Duration {
	lo, hi := f.cfg.MinDelay, f.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.limitersMu.Lock()
	defer f.limitersMu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.cfg.RequestsPerSecond > 0 {
			limit = rate.Limit(f.cfg.RequestsPerSecond)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

// IsAllowed consults the host's robots.txt, fetched once and cached. A
// missing or unreadable robots.txt allows everything.
func (f *Fetcher) IsAllowed(ctx context.Context, u *url.URL) bool {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	f.robotsMu.RLock()
	robots, exists := f.robotsCache[robotsURL]
	f.robotsMu.RUnlock()

	if !exists {
		robots = f.fetchRobotsTxt(ctx, robotsURL)
		f.robotsMu.Lock()
		f.robotsCache[robotsURL] = robots
		f.robotsMu.Unlock()
	}

	if robots == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return robots.FindGroup(f.cfg.UserAgent).Test(path)
}

func (f *Fetcher) fetchRobotsTxt(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", robotsURL).Msg("unreadable robots.txt")
		return nil
	}
	return robots
}
