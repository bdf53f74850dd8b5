package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer produces the DOM of a page after its scripts have run.
type Renderer interface {
	FetchHTML(ctx context.Context, urlStr string) (string, error)
}

// BrowserFetcher renders pages in one headless Chrome, started on first
// use. Every call gets its own tab.
type BrowserFetcher struct {
	userAgent string
	timeout   time.Duration
	settle    time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

var _ Renderer = (*BrowserFetcher)(nil)

func NewBrowserFetcher(userAgent string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		settle:    2 * time.Second,
	}
}

func (bf *BrowserFetcher) browser() (context.Context, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browserCtx != nil {
		return bf.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(bf.userAgent),
		chromedp.Flag("disable-downloads", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// An empty Run launches the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	bf.browserCtx, bf.browserCancel, bf.allocCancel = browserCtx, browserCancel, allocCancel
	return browserCtx, nil
}

func (bf *BrowserFetcher) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	browserCtx, err := bf.browser()
	if err != nil {
		return "", err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()

	tabCtx, cancel := context.WithTimeout(tabCtx, bf.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var htmlContent string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		chromedp.Sleep(bf.settle),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", urlStr, err)
	}

	return htmlContent, nil
}

// Close shuts the browser down. The next FetchHTML starts a new one.
func (bf *BrowserFetcher) Close() {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browserCtx == nil {
		return
	}
	bf.browserCancel()
	bf.allocCancel()
	bf.browserCtx, bf.browserCancel, bf.allocCancel = nil, nil, nil
}
