package fetch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the shortest HTTP extraction accepted without trying a
// browser render; shorter text usually means a client-rendered page.
const MinContentLength = 500

const (
	// DefaultBrowserTimeout bounds one headless render.
	DefaultBrowserTimeout = 30 * time.Second
	// DefaultSettle bounds the wait for a posting container to appear.
	DefaultSettle = 3 * time.Second
)

// cookieButtons dismiss consent overlays that hide the posting.
const cookieButtons = `button[id*="accept"], button[class*="accept"]`

// ShouldUseBrowser reports whether extracted text is too short to be a full
// job description.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Browser is a Fetcher that renders pages in headless Chrome, for job boards
// that build the posting client-side. Chrome or Chromium must be installed.
type Browser struct {
	Timeout time.Duration
	// Settle is the longest wait for a posting container once the body is
	// ready. Pages without one are captured when it runs out.
	Settle  time.Duration
	Verbose bool
}

// NewBrowser returns a Browser with default timings.
func NewBrowser(verbose bool) *Browser {
	return &Browser{Timeout: DefaultBrowserTimeout, Settle: DefaultSettle, Verbose: verbose}
}

// Fetch implements Fetcher.
func (b *Browser) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if b.Verbose {
		log.Printf("[BROWSER] Rendering %s", rawURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(DefaultUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		bestEffort(b.settle(), chromedp.WaitVisible(strings.Join(postingContent, ", "), chromedp.ByQuery)),
		bestEffort(time.Second, chromedp.Click(cookieButtons, chromedp.NodeVisible, chromedp.AtLeast(0))),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &Error{URL: rawURL, Op: "browser render", Err: err}
	}
	if int64(len(html)) > DefaultMaxBodyBytes {
		return nil, &Error{URL: rawURL, Op: "browser render", Err: fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(html))}
	}

	if b.Verbose {
		log.Printf("[BROWSER] Rendered HTML: %d bytes", len(html))
	}
	return &Result{URL: rawURL, HTML: html, ContentType: "text/html", StatusCode: http.StatusOK}, nil
}

func (b *Browser) settle() time.Duration {
	if b.Settle > 0 {
		return b.Settle
	}
	return DefaultSettle
}

// bestEffort runs action for at most d and ignores its failure.
func bestEffort(d time.Duration, action chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		_ = action.Do(ctx)
		return nil
	})
}

var _ Fetcher = (*Browser)(nil)
