package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/pagefinder/internal/browser/stealth"
	"github.com/xkilldash9x/pagefinder/internal/config"
	"go.uber.org/zap"
)

// CDPProbe drives a Chrome tab through chromedp.
type CDPProbe struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
	events      *hub

	mu        sync.Mutex
	mainFrame cdp.FrameID
	bindings  map[string]BindingHandler
}

var _ Probe = (*CDPProbe)(nil)

// allocatorOptions builds the exec allocator flags for cfg.
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.Stealth {
		opts = append(opts, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// NewCDPProbe launches Chrome and attaches to a fresh tab.
func NewCDPProbe(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*CDPProbe, error) {
	logger = logger.Named("cdp_probe")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	p := &CDPProbe{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     cfg.ProbeTimeout,
		logger:      logger,
		events:      newHub(logger),
		bindings:    make(map[string]BindingHandler),
	}

	setup := chromedp.Tasks{network.Enable(), page.Enable()}
	if cfg.Stealth {
		setup = append(setup, stealth.Apply(stealth.DefaultPersona, logger))
	}
	if err := chromedp.Run(tabCtx, setup); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, p.onEvent)
	logger.Info("Browser tab attached.", zap.Bool("stealth", cfg.Stealth), zap.Bool("headless", cfg.Headless))
	return p, nil
}

// onEvent runs on chromedp's event loop and must not block or issue commands.
func (p *CDPProbe) onEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		p.mu.Lock()
		p.mainFrame = e.Frame.ID
		p.mu.Unlock()
		p.events.publish(Event{Kind: Navigated, URL: e.Frame.URL + e.Frame.URLFragment})
	case *page.EventNavigatedWithinDocument:
		p.mu.Lock()
		main := p.mainFrame
		p.mu.Unlock()
		if main != "" && e.FrameID != main {
			return
		}
		p.events.publish(Event{Kind: NavigatedInPage, URL: e.URL})
	case *page.EventDomContentEventFired:
		p.events.publish(Event{Kind: DOMReady})
	case *network.EventLoadingFailed:
		if e.Type != network.ResourceTypeDocument || e.Canceled {
			return
		}
		p.events.publish(Event{Kind: LoadFailed, Error: e.ErrorText})
	case *runtime.EventBindingCalled:
		p.mu.Lock()
		h, ok := p.bindings[e.Name]
		p.mu.Unlock()
		if ok {
			invoke(p.logger, e.Name, h, e.Payload)
		}
	}
}

// run executes actions on the tab, bounded by the caller's ctx and the probe timeout.
func (p *CDPProbe) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if p.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, p.timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *CDPProbe) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *CDPProbe) Evaluate(ctx context.Context, fn string) ([]byte, error) {
	var raw []byte
	err := p.run(ctx, chromedp.Evaluate(wrapFunction(fn), &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true).WithReturnByValue(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return raw, nil
}

func (p *CDPProbe) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *CDPProbe) Subscribe(fn func(Event)) func() {
	return p.events.Subscribe(fn)
}

func (p *CDPProbe) Bind(ctx context.Context, name string, h BindingHandler) error {
	p.mu.Lock()
	p.bindings[name] = h
	p.mu.Unlock()
	if err := p.run(ctx, runtime.AddBinding(name)); err != nil {
		return fmt.Errorf("failed to add binding '%s': %w", name, err)
	}
	return nil
}

func (p *CDPProbe) GoBack(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateBack())
}

func (p *CDPProbe) GoForward(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateForward())
}

func (p *CDPProbe) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *CDPProbe) History(ctx context.Context) (bool, bool, error) {
	var (
		current int64
		entries []*page.NavigationEntry
	)
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		current, entries, err = page.GetNavigationHistory().Do(c)
		return err
	}))
	if err != nil {
		return false, false, err
	}
	return current > 0, current < int64(len(entries))-1, nil
}

func (p *CDPProbe) Close() error {
	p.events.close()
	p.cancelTab()
	p.cancelAlloc()
	return nil
}
