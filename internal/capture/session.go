package capture

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Session loads pages and returns their rendered markup. The settle
// delay elapses between the load event and document serialization, so
// late-rendered content lands in the capture. A Session is owned
// exclusively by one Controller and must be closed on all exit paths.
type Session interface {
	Navigate(ctx context.Context, url string, settle time.Duration) (string, error)
	Close() error
}

// SessionOptions configures a browser session.
type SessionOptions struct {
	Headless    bool
	UserAgent   string
	LoadTimeout time.Duration
	ExecPath    string // optional explicit browser binary
}

// ChromeSession implements Session over a headless Chrome instance
// driven through the DevTools protocol.
type ChromeSession struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	loadTimeout time.Duration
}

// NewChromeSession starts a browser process. Failure here is a fatal
// resource-acquisition error and propagates to the caller, unlike
// per-attempt navigation faults which the controller absorbs.
func NewChromeSession(opts SessionOptions) (*ChromeSession, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 60 * time.Second
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	// Start the browser eagerly so a missing or broken binary fails
	// session construction instead of the first attempt.
	startCtx, cancel := context.WithTimeout(browserCtx, opts.LoadTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, eris.Wrap(err, "capture: start browser")
	}

	zap.L().Info("capture: browser session started", zap.Bool("headless", opts.Headless))

	return &ChromeSession{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		loadTimeout: opts.LoadTimeout,
	}, nil
}

// Navigate loads url, waits out the settle delay, and returns the
// serialized document.
func (s *ChromeSession) Navigate(ctx context.Context, url string, settle time.Duration) (string, error) {
	navCtx, cancel := context.WithTimeout(s.ctx, s.loadTimeout+settle)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", eris.Wrapf(err, "capture: navigate %s", url)
	}
	return html, nil
}

// Close shuts down the browser process. Safe to call more than once.
func (s *ChromeSession) Close() error {
	s.cancelCtx()
	s.cancelAlloc()
	return nil
}
