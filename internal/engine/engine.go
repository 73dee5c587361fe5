// Package engine wires the form discovery and autofill components into the single
// surface a host UI drives.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/autofill"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
	"github.com/xkilldash9x/pagefinder/internal/browser/probe"
	"github.com/xkilldash9x/pagefinder/internal/classifier"
	"github.com/xkilldash9x/pagefinder/internal/config"
	"github.com/xkilldash9x/pagefinder/internal/discovery"
	"github.com/xkilldash9x/pagefinder/internal/export"
	"github.com/xkilldash9x/pagefinder/internal/manual"
	"github.com/xkilldash9x/pagefinder/internal/scan"
)

// ErrRegionOutOfRange is returned by AutofillForm for an index outside the session's regions.
var ErrRegionOutOfRange = errors.New("engine: region index out of range")

// -- Interfaces for Dependency Inversion --

// Store is the persistence the engine reads the profile from and keeps manual
// selections in.
type Store interface {
	LoadProfile(ctx context.Context) (schemas.UserProfile, error)
	manual.SelectionStore
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	page     dom.PagePrimitives
	scanOpts []scan.Option
	onFill   autofill.UpdateFunc
}

// WithPage replaces the script-backed page primitives.
func WithPage(p dom.PagePrimitives) Option {
	return func(o *options) { o.page = p }
}

// WithScanOptions passes options through to the scan controller.
func WithScanOptions(opts ...scan.Option) Option {
	return func(o *options) { o.scanOpts = append(o.scanOpts, opts...) }
}

// WithAutofillObserver receives every autofill status update.
func WithAutofillObserver(fn autofill.UpdateFunc) Option {
	return func(o *options) { o.onFill = fn }
}

// Engine is the host-facing façade over one hosted page.
type Engine struct {
	cfg    *config.Config
	probe  probe.Probe
	page   dom.PagePrimitives
	store  Store
	logger *zap.Logger

	locator  *discovery.Locator
	runner   *autofill.Runner
	scan     *scan.Controller
	overlay  *manual.Overlay
	exporter *export.Exporter
	onFill   autofill.UpdateFunc

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu         sync.Mutex
	cancelFill context.CancelFunc
}

// New wires every component over p and subscribes to its lifecycle events.
// The caller keeps ownership of p.
func New(cfg *config.Config, p probe.Probe, st Store, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.page == nil {
		o.page = dom.NewScriptPage(p, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		probe:  p,
		page:   o.page,
		store:  st,
		logger: logger.With(zap.String("component", "engine")),
		onFill: o.onFill,
		ctx:    ctx,
		cancel: cancel,
	}

	e.locator = discovery.NewLocator(e.page, cfg.Discovery, logger)
	e.runner = autofill.NewRunner(e.page, classifier.New(e.page, logger), cfg.Autofill, logger)
	e.overlay = manual.NewOverlay(p, st, cfg.Manual, logger)
	e.overlay.OnSelect = e.onSelect
	e.exporter = export.New(e.page, cfg.Export.Sanitize, logger)

	scanOpts := append([]scan.Option{scan.WithAugment(e.withSaved)}, o.scanOpts...)
	e.scan = scan.NewController(e.locator, e.page, cfg.Scan.AdvanceInterval, logger, scanOpts...)

	e.unsubscribe = p.Subscribe(e.handleEvent)
	return e
}

// Close unsubscribes from the probe and stops the scan timer.
func (e *Engine) Close() {
	e.unsubscribe()
	e.CancelAutofill()
	e.scan.Close()
	e.cancel()
}

// -- Discovery and scanning --

// Locate discovers form regions on the current page, merged with the selections
// saved for its URL. It does not alter the scan session.
func (e *Engine) Locate(ctx context.Context) ([]schemas.FormRegion, error) {
	regions, err := e.locator.Locate(ctx)
	if err != nil {
		return nil, err
	}
	url, err := e.page.GetCurrentURL(ctx)
	if err != nil {
		e.logger.Debug("Could not read page URL.", zap.Error(err))
		return regions, nil
	}
	return e.withSaved(ctx, url, regions), nil
}

// Start begins a scan, cancelling any scan already running.
func (e *Engine) Start(ctx context.Context) (schemas.ScanSession, error) {
	return e.scan.Start(ctx)
}

// Pause toggles between scanning and paused.
func (e *Engine) Pause() schemas.ScanSession { return e.scan.Pause() }

// Stop halts the scan. An autofill batch in flight is not interrupted.
func (e *Engine) Stop() schemas.ScanSession { return e.scan.Stop() }

// Session returns the current scan session.
func (e *Engine) Session() schemas.ScanSession { return e.scan.Session() }

func (e *Engine) withSaved(ctx context.Context, url string, regions []schemas.FormRegion) []schemas.FormRegion {
	saved := e.overlay.Saved(ctx, url)
	if len(saved) == 0 {
		return regions
	}
	return manual.Merge(regions, saved, e.cfg.Manual.DedupTolerancePx)
}

// -- Autofill --

// AutofillForm fills the session region at regionIndex from the stored profile.
// Only one batch runs at a time; starting another cancels the previous one
// between fields.
func (e *Engine) AutofillForm(ctx context.Context, regionIndex int) (schemas.AutofillStatus, error) {
	session := e.scan.Session()
	if regionIndex < 0 || regionIndex >= len(session.Regions) {
		return schemas.AutofillStatus{}, fmt.Errorf("%w: %d of %d", ErrRegionOutOfRange, regionIndex, len(session.Regions))
	}
	profile, err := e.store.LoadProfile(ctx)
	if err != nil {
		return schemas.AutofillStatus{}, fmt.Errorf("failed to load user profile: %w", err)
	}

	fillCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.cancelFill != nil {
		e.cancelFill()
	}
	e.cancelFill = cancel
	e.mu.Unlock()
	defer cancel()

	return e.runner.AutofillForm(fillCtx, session.Regions[regionIndex], profile, e.onFill), nil
}

// CancelAutofill stops the running batch before its next field.
func (e *Engine) CancelAutofill() {
	e.mu.Lock()
	if e.cancelFill != nil {
		e.cancelFill()
		e.cancelFill = nil
	}
	e.mu.Unlock()
}

// AutofillStatus returns the status of the latest batch.
func (e *Engine) AutofillStatus() schemas.AutofillStatus { return e.runner.Status() }

// -- Manual selection --

// EnableManualSelection turns selection mode on.
func (e *Engine) EnableManualSelection(ctx context.Context) error { return e.overlay.Enable(ctx) }

// DisableManualSelection turns selection mode off.
func (e *Engine) DisableManualSelection(ctx context.Context) error { return e.overlay.Disable(ctx) }

// ToggleManualSelection flips selection mode and reports the new state.
func (e *Engine) ToggleManualSelection(ctx context.Context) (bool, error) {
	return e.overlay.Toggle(ctx)
}

// ManualSelections returns the unsaved selections.
func (e *Engine) ManualSelections() []schemas.FormRegion { return e.overlay.Selections() }

// SaveManualSelections stores the selections for the current URL and returns how
// many were saved.
func (e *Engine) SaveManualSelections(ctx context.Context) (int, error) {
	url, err := e.page.GetCurrentURL(ctx)
	if err != nil {
		e.logger.Warn("Could not read page URL, selections not saved.", zap.Error(err))
		return 0, nil
	}
	return e.overlay.Save(ctx, url)
}

// onSelect adds a fresh selection to the live region list.
func (e *Engine) onSelect(r schemas.FormRegion) {
	e.scan.UpdateRegions(func(regions []schemas.FormRegion) []schemas.FormRegion {
		return manual.Merge(regions, []schemas.FormRegion{r}, e.cfg.Manual.DedupTolerancePx)
	})
}

// -- Export --

// DownloadPageHTML serializes the current document.
func (e *Engine) DownloadPageHTML(ctx context.Context) (export.Document, error) {
	return e.exporter.Export(ctx, export.FormatHTML)
}

// Export serializes the current document in format.
func (e *Engine) Export(ctx context.Context, format export.Format) (export.Document, error) {
	return e.exporter.Export(ctx, format)
}

// SavePage writes the current document into the configured export directory.
func (e *Engine) SavePage(ctx context.Context, format export.Format) (string, error) {
	return e.exporter.Save(ctx, e.cfg.Export.Dir, format)
}

// -- Navigation --

// Navigate loads url in the hosted page.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	if e.cfg.Browser.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Browser.NavigationTimeout)
		defer cancel()
	}
	return e.probe.Navigate(ctx, url)
}

func (e *Engine) GoBack(ctx context.Context) error    { return e.probe.GoBack(ctx) }
func (e *Engine) GoForward(ctx context.Context) error { return e.probe.GoForward(ctx) }
func (e *Engine) Reload(ctx context.Context) error    { return e.probe.Reload(ctx) }

// CanGoBack reports whether there is a previous history entry. Probe failures read as false.
func (e *Engine) CanGoBack(ctx context.Context) bool {
	back, _, err := e.probe.History(ctx)
	if err != nil {
		e.logger.Debug("History lookup failed.", zap.Error(err))
		return false
	}
	return back
}

// CanGoForward reports whether there is a next history entry. Probe failures read as false.
func (e *Engine) CanGoForward(ctx context.Context) bool {
	_, forward, err := e.probe.History(ctx)
	if err != nil {
		e.logger.Debug("History lookup failed.", zap.Error(err))
		return false
	}
	return forward
}

// handleEvent reacts to the hosted page's lifecycle. Navigation hard-resets the
// scan to the saved selections of the new URL.
func (e *Engine) handleEvent(ev probe.Event) {
	ctx := e.ctx
	if t := e.cfg.Browser.ProbeTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	logger := e.logger.With(zap.Stringer("event", ev.Kind), zap.String("url", ev.URL))

	switch ev.Kind {
	case probe.Navigated, probe.NavigatedInPage:
		e.overlay.Reset()
		regions := e.withSaved(ctx, ev.URL, []schemas.FormRegion{})
		e.scan.Reset(ev.URL, regions)
		logger.Info("Page navigated, scan reset.", zap.Int("saved_regions", len(regions)))
	case probe.DOMReady:
		if err := e.overlay.Reinstall(ctx); err != nil {
			logger.Warn("Could not reinstall selection overlay.", zap.Error(err))
		}
	case probe.LoadFailed:
		logger.Warn("Page failed to load.", zap.String("error", ev.Error))
	}
}
