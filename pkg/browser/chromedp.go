// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/kadirpekel/argus/pkg/config"
)

// ChromeDriver drives a single Chrome instance over the DevTools protocol.
// The browser starts lazily on first use and is owned by exactly one agent;
// operations are serialized.
type ChromeDriver struct {
	cfg config.BrowserConfig

	once    sync.Once
	initErr error
	closed  bool

	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	// opMu serializes driver operations; the agent model is one action at a
	// time per browser.
	opMu sync.Mutex

	refMu sync.RWMutex
	refs  map[string]string
}

// NewChromeDriver creates a chromedp-backed driver. Chrome is not started
// until the first operation.
func NewChromeDriver(cfg *config.BrowserConfig) *ChromeDriver {
	resolved := config.BrowserConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	resolved.SetDefaults()
	return &ChromeDriver{
		cfg:  resolved,
		refs: make(map[string]string),
	}
}

func (d *ChromeDriver) init() error {
	if d.closed {
		return fmt.Errorf("%w: driver closed", ErrDriverUnavailable)
	}
	d.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", d.cfg.IsHeadless()),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.WindowSize(d.cfg.WindowWidth, d.cfg.WindowHeight),
		)
		if d.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(d.cfg.ExecPath))
		} else if path := detectChromePath(); path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		}
		if d.cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(d.cfg.UserAgent))
		}

		// Background() keeps the browser alive across calls; per-call
		// deadlines are applied in run().
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		d.allocCancel = allocCancel

		tabCtx, tabCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
			d.initErr = fmt.Errorf("%w: failed to start browser: %v", ErrDriverUnavailable, err)
			tabCancel()
			allocCancel()
			return
		}

		d.browserCtx = tabCtx
		d.browserStop = tabCancel
		slog.Debug("Chrome started", "headless", d.cfg.IsHeadless())
	})
	return d.initErr
}

// run executes actions against the browser tab, honoring the caller's
// deadline or the configured default.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := d.init(); err != nil {
		return err
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	opCtx := d.browserCtx
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		opCtx, cancel = context.WithDeadline(opCtx, deadline)
	} else {
		opCtx, cancel = context.WithTimeout(opCtx, d.cfg.DefaultTimeout)
	}
	defer cancel()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && d.browserCtx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
	}
	return err
}

func (d *ChromeDriver) Navigate(ctx context.Context, url, waitUntil string) (PageInfo, error) {
	var actions []chromedp.Action
	switch waitUntil {
	case WaitNetworkIdle:
		// Lifecycle events must be enabled before navigation or the
		// networkIdle event is never delivered.
		actions = []chromedp.Action{
			chromedp.ActionFunc(func(ctx context.Context) error {
				return page.SetLifecycleEventsEnabled(true).Do(ctx)
			}),
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, _, _, _, err := page.Navigate(url).Do(ctx)
				return err
			}),
			waitLifecycle("networkIdle"),
		}
	case WaitDOMReady:
		actions = []chromedp.Action{
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	default:
		actions = []chromedp.Action{
			chromedp.Navigate(url),
			chromedp.WaitVisible("body", chromedp.ByQuery),
		}
	}

	var info PageInfo
	actions = append(actions,
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
	)

	if err := d.run(ctx, actions...); err != nil {
		return PageInfo{}, err
	}
	return info, nil
}

// waitLifecycle blocks until the named page lifecycle event fires or the
// context expires.
func waitLifecycle(name string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		fired := make(chan struct{})
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == name {
				cancel()
				select {
				case <-fired:
				default:
					close(fired)
				}
			}
		})
		select {
		case <-fired:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *ChromeDriver) AccessibilityTree(ctx context.Context) ([]AXNode, error) {
	var nodes []AXNode
	if err := d.run(ctx, chromedp.Evaluate(axTreeScript, &nodes)); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (d *ChromeDriver) QueryElements(ctx context.Context, selectors []string) ([]AXNode, error) {
	if len(selectors) == 0 {
		selectors = DefaultFallbackSelectors
	}
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selectors: %w", err)
	}

	var nodes []AXNode
	script := fmt.Sprintf(queryElementsScript, string(encoded))
	if err := d.run(ctx, chromedp.Evaluate(script, &nodes)); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (d *ChromeDriver) BindRefs(refs map[string]string) {
	d.refMu.Lock()
	defer d.refMu.Unlock()

	d.refs = make(map[string]string, len(refs))
	for ref, loc := range refs {
		d.refs[ref] = loc
	}
}

func (d *ChromeDriver) resolveRef(ref string) (string, error) {
	d.refMu.RLock()
	defer d.refMu.RUnlock()

	loc, ok := d.refs[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidRef, ref)
	}
	return fmt.Sprintf(`[data-argus-loc=%q]`, loc), nil
}

// checkElement distinguishes "not found" and "detached" from plain timeouts
// before an interaction is attempted.
func (d *ChromeDriver) checkElement(ctx context.Context, sel string) error {
	var state string
	script := fmt.Sprintf(elementStateScript, sel)
	if err := d.run(ctx, chromedp.Evaluate(script, &state)); err != nil {
		return err
	}
	switch state {
	case "missing":
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	case "detached":
		return fmt.Errorf("%w: %s", ErrElementDetached, sel)
	case "hidden":
		return fmt.Errorf("%w: %s", ErrElementNotVisible, sel)
	}
	return nil
}

func (d *ChromeDriver) Click(ctx context.Context, ref string) error {
	sel, err := d.resolveRef(ref)
	if err != nil {
		return err
	}
	if err := d.checkElement(ctx, sel); err != nil {
		return err
	}
	return d.run(ctx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.Sleep(150*time.Millisecond),
	)
}

func (d *ChromeDriver) Type(ctx context.Context, ref, text string, clear bool) error {
	sel, err := d.resolveRef(ref)
	if err != nil {
		return err
	}
	if err := d.checkElement(ctx, sel); err != nil {
		return err
	}

	actions := []chromedp.Action{
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Focus(sel, chromedp.ByQuery),
	}
	if clear {
		actions = append(actions, chromedp.SetValue(sel, "", chromedp.ByQuery))
	}
	actions = append(actions, chromedp.SendKeys(sel, text, chromedp.ByQuery))
	return d.run(ctx, actions...)
}

func (d *ChromeDriver) Press(ctx context.Context, key string) error {
	return d.run(ctx, chromedp.KeyEvent(mapKey(key)))
}

func (d *ChromeDriver) Select(ctx context.Context, ref, value string) error {
	sel, err := d.resolveRef(ref)
	if err != nil {
		return err
	}
	if err := d.checkElement(ctx, sel); err != nil {
		return err
	}

	// SetValue alone does not fire the change event frameworks listen for.
	script := fmt.Sprintf(selectValueScript, sel, jsString(value))
	var ok bool
	if err := d.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no option with value %q", ErrElementNotFound, value)
	}
	return nil
}

func (d *ChromeDriver) Hover(ctx context.Context, ref string) error {
	sel, err := d.resolveRef(ref)
	if err != nil {
		return err
	}
	if err := d.checkElement(ctx, sel); err != nil {
		return err
	}
	script := fmt.Sprintf(hoverScript, sel)
	var ok bool
	return d.run(ctx, chromedp.Evaluate(script, &ok))
}

func (d *ChromeDriver) Scroll(ctx context.Context, direction string, amount int) error {
	if amount <= 0 {
		amount = 500
	}
	dx, dy := 0, amount
	switch strings.ToLower(direction) {
	case "up":
		dy = -amount
	case "left":
		dx, dy = -amount, 0
	case "right":
		dx, dy = amount, 0
	}
	var ignored bool
	script := fmt.Sprintf(`(() => { window.scrollBy(%d, %d); return true; })()`, dx, dy)
	return d.run(ctx, chromedp.Evaluate(script, &ignored))
}

func (d *ChromeDriver) Wait(ctx context.Context, dur time.Duration) error {
	select {
	case <-time.After(dur):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *ChromeDriver) Back(ctx context.Context) (PageInfo, error) {
	var info PageInfo
	err := d.run(ctx,
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
	)
	if err != nil {
		return PageInfo{}, err
	}
	return info, nil
}

func (d *ChromeDriver) Forward(ctx context.Context) (PageInfo, error) {
	var info PageInfo
	err := d.run(ctx,
		chromedp.NavigateForward(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
	)
	if err != nil {
		return PageInfo{}, err
	}
	return info, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *ChromeDriver) Text(ctx context.Context) (string, error) {
	var text string
	if err := d.run(ctx, chromedp.Evaluate(pageTextScript, &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (d *ChromeDriver) Evaluate(ctx context.Context, code string) (json.RawMessage, error) {
	var result json.RawMessage
	if err := d.run(ctx, chromedp.Evaluate(code, &result)); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *ChromeDriver) Health(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var one int
	if err := d.run(probeCtx, chromedp.Evaluate("1", &one)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	if one != 1 {
		return ErrUnhealthy
	}
	return nil
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (d *ChromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (d *ChromeDriver) Close() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.browserStop != nil {
		d.browserStop()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}

// mapKey translates key names from the action vocabulary to DevTools key
// codes. Unknown names are sent literally.
func mapKey(key string) string {
	switch strings.ToLower(key) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape", "esc":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	case "delete":
		return kb.Delete
	case "arrowup", "up":
		return kb.ArrowUp
	case "arrowdown", "down":
		return kb.ArrowDown
	case "arrowleft", "left":
		return kb.ArrowLeft
	case "arrowright", "right":
		return kb.ArrowRight
	case "pageup":
		return kb.PageUp
	case "pagedown":
		return kb.PageDown
	case "home":
		return kb.Home
	case "end":
		return kb.End
	default:
		return key
	}
}

// jsString encodes a Go string as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// detectChromePath finds a Chrome or Chromium binary on well-known paths.
func detectChromePath() string {
	candidates := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
