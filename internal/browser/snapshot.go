// Package browser drives a headless Chrome against a running dashboard.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jgoulah/energydash/internal/dashboard"
)

const updatePath = "/_dash-update-component"

// pngQuality makes chromedp capture PNG; any other value yields JPEG
const pngQuality = 100

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Widgets are the page regions a snapshot waits on
var Widgets = []string{
	dashboard.TotalDisplayID,
	dashboard.EnergyGraphID,
	dashboard.TrendGraphID,
	dashboard.AppliancePieID,
}

// readyExpression is true once every widget holds its first result, either
// rendered content or a callback error box
func readyExpression(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf(`[%s].every(function (id) {
  var el = document.getElementById(id);
  return el !== null && el.childElementCount > 0 && el.querySelector(".loading") === null;
})`, strings.Join(quoted, ", "))
}

// capture drives the browser and returns the raw screenshot. Tests swap it
// out to run without Chrome.
var capture = captureChrome

// SnapshotOptions controls a dashboard screenshot
type SnapshotOptions struct {
	URL      string
	Wait     time.Duration // extra settle time after the charts appear
	Width    int64
	Height   int64
	Timeout  time.Duration
	Headless bool
}

func (o *SnapshotOptions) applyDefaults() {
	if o.Width == 0 {
		o.Width = 1400
	}
	if o.Height == 0 {
		o.Height = 1000
	}
	if o.Timeout == 0 {
		o.Timeout = time.Minute
	}
}

// ValidateURL accepts absolute http and https URLs only
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q (want http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// callbackFailures collects update responses that came back with an error status
type callbackFailures struct {
	mu     sync.Mutex
	status []int64
}

func (c *callbackFailures) listen(ev interface{}) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Response == nil {
		return
	}
	if strings.Contains(resp.Response.URL, updatePath) && resp.Response.Status >= 400 {
		c.mu.Lock()
		c.status = append(c.status, resp.Response.Status)
		c.mu.Unlock()
	}
}

func (c *callbackFailures) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.status) == 0 {
		return nil
	}
	return fmt.Errorf("%d dashboard callbacks failed (statuses %v)", len(c.status), c.status)
}

// Snapshot loads the dashboard, waits until every widget has rendered or
// failed and returns a full-page PNG. Failed callbacks are reported as an
// error alongside the image.
func Snapshot(ctx context.Context, opts SnapshotOptions) ([]byte, error) {
	if err := ValidateURL(opts.URL); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	failures := &callbackFailures{}
	png, err := capture(ctx, opts, failures)
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", opts.URL, err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		return nil, fmt.Errorf("capturing %s: screenshot is not a PNG image", opts.URL)
	}

	if err := failures.err(); err != nil {
		return png, err
	}
	return png, nil
}

func captureChrome(ctx context.Context, opts SnapshotOptions, failures *callbackFailures) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(int(opts.Width), int(opts.Height)),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	chromedp.ListenTarget(browserCtx, failures.listen)

	var ready bool
	var png []byte
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.EmulateViewport(opts.Width, opts.Height),
		chromedp.Navigate(opts.URL),
		chromedp.Poll(readyExpression(Widgets), &ready, chromedp.WithPollingInterval(100*time.Millisecond)),
		chromedp.Sleep(opts.Wait),
		chromedp.FullScreenshot(&png, pngQuality),
	); err != nil {
		return nil, err
	}
	return png, nil
}
