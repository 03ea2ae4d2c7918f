// Package browser drives headless Chrome through chromedp. Every fetch
// launches its own browser and tears it down before returning.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config controls browser launch and page timing.
type Config struct {
	ChromePath string
	Headless   bool
	NavTimeout time.Duration
	Settle     time.Duration
	UserAgent  string
}

// Snapshot is the rendered document and its visible text.
type Snapshot struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
	Text string `json:"text"`
}

// Fetcher renders a page. Chrome implements it; tests substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Snapshot, error)
}

// Chrome is a Fetcher backed by a fresh headless Chrome per call.
type Chrome struct {
	cfg Config
	run func(ctx context.Context, actions ...chromedp.Action) error
}

// New returns a Chrome fetcher, filling zero config values with defaults.
func New(cfg Config) *Chrome {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Chrome{cfg: cfg, run: chromedp.Run}
}

// Config returns the effective configuration.
func (c *Chrome) Config() Config { return c.cfg }

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.UserAgent(c.cfg.UserAgent),
	)
	if c.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromePath))
	}
	return opts
}

const snapshotJS = `({
	url: location.href,
	html: document.documentElement ? document.documentElement.outerHTML : "",
	text: document.body ? document.body.innerText : ""
})`

// Fetch navigates to url, waits for the settle delay, and captures the DOM.
func (c *Chrome) Fetch(ctx context.Context, url string) (*Snapshot, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	// The first Run launches the browser and binds it to its context, so
	// it gets tabCtx and only navigation is bounded by NavTimeout.
	if err := c.run(tabCtx); err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, c.cfg.NavTimeout)
	defer navCancel()
	if err := c.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, eris.Wrapf(err, "browser: navigate %s", url)
	}

	var snap Snapshot
	if err := c.run(tabCtx,
		chromedp.Sleep(c.cfg.Settle),
		chromedp.Evaluate(snapshotJS, &snap),
	); err != nil {
		return nil, eris.Wrapf(err, "browser: snapshot %s", url)
	}
	if snap.URL == "" {
		snap.URL = url
	}

	zap.L().Debug("browser fetched page",
		zap.String("url", url),
		zap.Int("html_bytes", len(snap.HTML)),
	)
	return &snap, nil
}
