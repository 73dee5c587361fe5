package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/xkilldash9x/pagefinder/internal/config"
	"go.uber.org/zap"
)

// RodProbe drives a Chrome tab through go-rod.
type RodProbe struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	timeout time.Duration
	logger  *zap.Logger
	events  *hub

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mainFrame proto.PageFrameID
	bindings  map[string]BindingHandler
}

var _ Probe = (*RodProbe)(nil)

// NewRodProbe launches a local Chrome through the rod launcher and opens one tab,
// with stealth evasions applied when cfg.Stealth is set.
func NewRodProbe(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*RodProbe, error) {
	logger = logger.Named("rod_probe")

	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			l = l.Set(flags.Flag(key), value)
		} else {
			l = l.Set(flags.Flag(key))
		}
	}
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	if cfg.IgnoreTLSErrors {
		if err := b.IgnoreCertErrors(true); err != nil {
			logger.Warn("Could not ignore certificate errors.", zap.Error(err))
		}
	}

	var pg *rod.Page
	if cfg.Stealth {
		pg, err = stealth.Page(b)
	} else {
		pg, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &RodProbe{
		browser:  b,
		page:     pg,
		lnch:     l,
		timeout:  cfg.ProbeTimeout,
		logger:   logger,
		events:   newHub(logger),
		ctx:      loopCtx,
		cancel:   cancel,
		bindings: make(map[string]BindingHandler),
	}

	_ = proto.PageEnable{}.Call(pg)
	_ = proto.NetworkEnable{}.Call(pg)
	go p.listen()

	logger.Info("Browser tab attached.", zap.Bool("stealth", cfg.Stealth), zap.Bool("headless", cfg.Headless))
	return p, nil
}

func (p *RodProbe) listen() {
	wait := p.page.Context(p.ctx).EachEvent(
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			p.mu.Lock()
			p.mainFrame = e.Frame.ID
			p.mu.Unlock()
			p.events.publish(Event{Kind: Navigated, URL: e.Frame.URL + e.Frame.URLFragment})
		},
		func(e *proto.PageNavigatedWithinDocument) {
			p.mu.Lock()
			main := p.mainFrame
			p.mu.Unlock()
			if main != "" && e.FrameID != main {
				return
			}
			p.events.publish(Event{Kind: NavigatedInPage, URL: e.URL})
		},
		func(e *proto.PageDomContentEventFired) {
			p.events.publish(Event{Kind: DOMReady})
		},
		func(e *proto.NetworkLoadingFailed) {
			if e.Type != proto.NetworkResourceTypeDocument || e.Canceled {
				return
			}
			p.events.publish(Event{Kind: LoadFailed, Error: e.ErrorText})
		},
		func(e *proto.RuntimeBindingCalled) {
			p.mu.Lock()
			h, ok := p.bindings[e.Name]
			p.mu.Unlock()
			if ok {
				invoke(p.logger, e.Name, h, e.Payload)
			}
		},
	)
	wait()
}

// scoped returns the page bound to ctx and the probe timeout.
func (p *RodProbe) scoped(ctx context.Context) (*rod.Page, context.CancelFunc) {
	if p.timeout > 0 {
		c, cancel := context.WithTimeout(ctx, p.timeout)
		return p.page.Context(c), cancel
	}
	return p.page.Context(ctx), func() {}
}

func (p *RodProbe) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		p.logger.Warn("Timed out waiting for load.", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (p *RodProbe) Evaluate(ctx context.Context, fn string) ([]byte, error) {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	res, err := pg.Evaluate(rod.Eval(fn).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return []byte(res.Value.JSON("", "")), nil
}

func (p *RodProbe) URL(ctx context.Context) (string, error) {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	info, err := pg.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *RodProbe) Subscribe(fn func(Event)) func() {
	return p.events.Subscribe(fn)
}

func (p *RodProbe) Bind(ctx context.Context, name string, h BindingHandler) error {
	p.mu.Lock()
	p.bindings[name] = h
	p.mu.Unlock()
	pg, cancel := p.scoped(ctx)
	defer cancel()
	if err := (proto.RuntimeAddBinding{Name: name}).Call(pg); err != nil {
		return fmt.Errorf("failed to add binding '%s': %w", name, err)
	}
	return nil
}

func (p *RodProbe) GoBack(ctx context.Context) error {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	return pg.NavigateBack()
}

func (p *RodProbe) GoForward(ctx context.Context) error {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	return pg.NavigateForward()
}

func (p *RodProbe) Reload(ctx context.Context) error {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	return pg.Reload()
}

func (p *RodProbe) History(ctx context.Context) (bool, bool, error) {
	pg, cancel := p.scoped(ctx)
	defer cancel()
	res, err := proto.PageGetNavigationHistory{}.Call(pg)
	if err != nil {
		return false, false, err
	}
	return res.CurrentIndex > 0, res.CurrentIndex < len(res.Entries)-1, nil
}

func (p *RodProbe) Close() error {
	p.cancel()
	p.events.close()
	var err error
	if p.page != nil {
		err = p.page.Close()
	}
	if p.browser != nil {
		_ = p.browser.Close()
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
	}
	return err
}
