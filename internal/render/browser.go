package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

// ChartSelector is the canvas the analysis page draws the chart on.
const ChartSelector = "#bond-scatter-chart"

// Browser pushes chart configs into a live analysis page over the Chrome
// DevTools Protocol. It attaches lazily to the first page tab whose URL
// contains the tab filter and reattaches after a failure.
type Browser struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration
	style       Style

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	targetID    target.ID
}

// NewBrowser returns an unconnected browser sink.
func NewBrowser(cdpURL, tabFilter string, evalTimeout time.Duration, style Style) *Browser {
	if evalTimeout <= 0 {
		evalTimeout = 5 * time.Second
	}
	return &Browser{
		cdpURL:      strings.TrimRight(cdpURL, "/"),
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
		style:       style.WithDefaults(),
	}
}

// Connect attaches to the analysis tab if not attached yet.
func (b *Browser) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked(ctx)
}

func (b *Browser) connectLocked(ctx context.Context) error {
	if b.tabCtx != nil {
		return nil
	}
	if b.cdpURL == "" {
		return apperr.New(apperr.CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("browser sink connect start", "cdp_url", b.cdpURL, "tab_filter", b.tabFilter)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), b.cdpURL)
	lookupCtx, lookupCancel := chromedp.NewContext(allocCtx)
	defer lookupCancel()

	stop := context.AfterFunc(ctx, lookupCancel)
	defer stop()

	if err := chromedp.Run(lookupCtx); err != nil {
		allocCancel()
		return apperr.New(apperr.CodeCDPUnavailable, "connect to browser failed", err)
	}
	targets, err := chromedp.Targets(lookupCtx)
	if err != nil {
		allocCancel()
		return apperr.New(apperr.CodeCDPUnavailable, "enumerate targets failed", err)
	}

	var picked *target.Info
	for _, t := range targets {
		if t.Type == "page" && b.matchesTab(t.URL) {
			picked = t
			break
		}
	}
	if picked == nil {
		allocCancel()
		return apperr.New(apperr.CodeCDPUnavailable, fmt.Sprintf("no page tab matches %q", b.tabFilter), nil)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(picked.TargetID))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return apperr.New(apperr.CodeCDPUnavailable, "attach to tab failed", err)
	}

	b.allocCtx, b.allocCancel = allocCtx, allocCancel
	b.tabCtx, b.tabCancel = tabCtx, tabCancel
	b.targetID = picked.TargetID
	slog.Info("browser sink attached", "target_id", picked.TargetID, "url", picked.URL)
	return nil
}

func (b *Browser) matchesTab(url string) bool {
	return b.tabFilter == "" || strings.Contains(strings.ToLower(url), b.tabFilter)
}

// Close detaches from the tab without closing it.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	return nil
}

func (b *Browser) resetLocked() {
	if b.tabCancel != nil {
		b.tabCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.allocCtx, b.allocCancel = nil, nil
	b.tabCtx, b.tabCancel = nil, nil
	b.targetID = ""
}

// Render applies the chart config of state to the attached page.
func (b *Browser) Render(ctx context.Context, state chartsync.ChartState) error {
	script, err := applyScript(ChartJSConfig(state, b.style))
	if err != nil {
		return apperr.New(apperr.CodeRender, "encode chart config", err)
	}

	var result string
	if err := b.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return err
	}
	if result != "ok" {
		return apperr.New(apperr.CodeRender, "page has no chart hook: "+result, nil)
	}
	slog.Debug("browser sink rendered", "revision", state.Revision)
	return nil
}

// Screenshot captures the chart canvas of the attached page as PNG.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, chromedp.Screenshot(ChartSelector, &buf, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.connectLocked(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(b.tabCtx, b.evalTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		slog.Warn("browser sink action failed; detaching", "target_id", b.targetID, "error", err)
		b.resetLocked()
		return apperr.New(apperr.CodeRender, "browser action failed", err)
	}
	return nil
}

// applyScript wraps a config in a call to the page's chart hook.
func applyScript(cfg ChartConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return `(function(cfg){
  if (!window.yieldview || typeof window.yieldview.apply !== "function") { return "missing window.yieldview.apply"; }
  window.yieldview.apply(cfg);
  return "ok";
})(` + string(raw) + `)`, nil
}
