// Package scan drives discovery and the timed visitation of form regions.
package scan

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
)

// Locator discovers regions on the current page.
type Locator interface {
	Locate(ctx context.Context) ([]schemas.FormRegion, error)
}

// Page is the part of the page the controller drives.
type Page interface {
	GetCurrentURL(ctx context.Context) (string, error)
	ScrollTo(ctx context.Context, x, y float64) error
}

// Ticker is the periodic advance source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker with period d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// AugmentFunc adds regions to a freshly located list, such as saved manual selections.
type AugmentFunc func(ctx context.Context, url string, regions []schemas.FormRegion) []schemas.FormRegion

// Option configures a Controller.
type Option func(*Controller)

// WithTicker replaces the wall clock ticker.
func WithTicker(f TickerFactory) Option {
	return func(c *Controller) { c.newTicker = f }
}

// WithObserver registers a callback invoked after every session change. Calls
// are serialized in transition order and a snapshot superseded before delivery
// is dropped. It must not block for long or call back into the controller.
func WithObserver(fn func(schemas.ScanSession)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithAugment registers a hook applied to located regions before visitation.
func WithAugment(fn AugmentFunc) Option {
	return func(c *Controller) { c.augment = fn }
}

// Controller is the scan state machine. All transitions are serialized by mu;
// page calls are made outside it.
type Controller struct {
	locator   Locator
	page      Page
	interval  time.Duration
	newTicker TickerFactory
	observer  func(schemas.ScanSession)
	augment   AugmentFunc
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session schemas.ScanSession
	// gen invalidates in-flight locates and ticks from earlier arms.
	gen  uint64
	halt chan struct{}
	// locating is set while Start waits on the locator.
	locating bool
	// seq numbers snapshots in transition order.
	seq uint64

	notifyMu  sync.Mutex
	delivered uint64
}

// NewController creates an idle controller advancing every interval.
func NewController(locator Locator, page Page, interval time.Duration, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		locator:   locator,
		page:      page,
		interval:  interval,
		newTicker: newTimeTicker,
		logger:    logger.Named("scan"),
		ctx:       ctx,
		cancel:    cancel,
		session:   schemas.ScanSession{State: schemas.ScanIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a copy of the current session.
func (c *Controller) Session() schemas.ScanSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Start discovers regions and begins visiting them. Any armed timer is cancelled
// first, so Start is safe to call from every state.
func (c *Controller) Start(ctx context.Context) (schemas.ScanSession, error) {
	c.mu.Lock()
	c.disarm()
	c.gen++
	gen := c.gen
	c.session = schemas.ScanSession{ID: uuid.NewString(), State: schemas.ScanScanning}
	c.locating = true
	snap, seq := c.snapshot()
	c.mu.Unlock()
	c.notify(seq, snap)

	url, err := c.page.GetCurrentURL(ctx)
	if err != nil {
		c.logger.Debug("Could not read page URL.", zap.Error(err))
	}
	regions, err := c.locator.Locate(ctx)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.locating = false
			c.session.State = schemas.ScanStopped
		}
		snap, seq := c.snapshot()
		c.mu.Unlock()
		c.notify(seq, snap)
		return snap, err
	}
	if c.augment != nil {
		regions = c.augment(ctx, url, regions)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Stopped, reset or restarted while locating.
		snap := c.session.Clone()
		c.mu.Unlock()
		return snap, nil
	}
	c.locating = false
	c.session.URL = url
	c.session.Regions = regions
	c.session.CurrentIndex = 0
	var target *schemas.FormRegion
	if len(regions) == 0 {
		c.session.State = schemas.ScanComplete
		c.session.ProgressPercent = 100
	} else {
		target = c.visit(0)
		if c.session.State == schemas.ScanScanning {
			c.arm()
		}
	}
	snap, seq = c.snapshot()
	c.mu.Unlock()

	c.logger.Info("Scan started.", zap.String("session_id", snap.ID), zap.Int("regions", len(regions)))
	c.notify(seq, snap)
	c.scrollTo(ctx, target)
	return snap, nil
}

// Pause toggles between scanning and paused. A second call resumes from the
// current index without rediscovering regions. It has no effect while regions
// are still being discovered.
func (c *Controller) Pause() schemas.ScanSession {
	c.mu.Lock()
	switch {
	case c.locating:
		snap := c.session.Clone()
		c.mu.Unlock()
		return snap
	case c.session.State == schemas.ScanScanning:
		c.disarm()
		c.gen++
		c.session.State = schemas.ScanPaused
	case c.session.State == schemas.ScanPaused:
		c.gen++
		if len(c.session.Regions) == 0 {
			c.session.State = schemas.ScanComplete
			c.session.ProgressPercent = 100
		} else {
			c.session.State = schemas.ScanScanning
			c.arm()
		}
	default:
		snap := c.session.Clone()
		c.mu.Unlock()
		return snap
	}
	snap, seq := c.snapshot()
	c.mu.Unlock()
	c.notify(seq, snap)
	return snap
}

// Stop halts visitation from any state. Regions are retained.
func (c *Controller) Stop() schemas.ScanSession {
	c.mu.Lock()
	c.disarm()
	c.gen++
	c.locating = false
	c.session.State = schemas.ScanStopped
	snap, seq := c.snapshot()
	c.mu.Unlock()
	c.notify(seq, snap)
	return snap
}

// Reset forces the stopped state for a new document at url, replacing the region
// list with regions. It is called on navigation.
func (c *Controller) Reset(url string, regions []schemas.FormRegion) schemas.ScanSession {
	c.mu.Lock()
	c.disarm()
	c.gen++
	c.session = schemas.ScanSession{
		ID:      c.session.ID,
		URL:     url,
		State:   schemas.ScanStopped,
		Regions: regions,
	}
	c.locating = false
	snap, seq := c.snapshot()
	c.mu.Unlock()
	c.notify(seq, snap)
	return snap
}

// UpdateRegions replaces the region list with fn applied to it, keeping the
// visitation state.
func (c *Controller) UpdateRegions(fn func([]schemas.FormRegion) []schemas.FormRegion) schemas.ScanSession {
	c.mu.Lock()
	c.session.Regions = fn(c.session.Clone().Regions)
	snap, seq := c.snapshot()
	c.mu.Unlock()
	c.notify(seq, snap)
	return snap
}

// Close stops the controller and waits for the timer goroutine to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.disarm()
	c.gen++
	c.locating = false
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// visit moves to index i and updates progress. Reaching the last region
// completes the session. Caller holds mu.
func (c *Controller) visit(i int) *schemas.FormRegion {
	n := len(c.session.Regions)
	c.session.CurrentIndex = i
	progress := int(math.Round(float64(i+1) / float64(n) * 100))
	if progress > c.session.ProgressPercent {
		c.session.ProgressPercent = progress
	}
	if i >= n-1 {
		c.session.State = schemas.ScanComplete
		c.session.ProgressPercent = 100
		c.disarm()
	}
	region := c.session.Regions[i]
	return &region
}

// arm starts the advance timer for the current generation. Caller holds mu.
func (c *Controller) arm() {
	halt := make(chan struct{})
	c.halt = halt
	gen := c.gen
	ticker := c.newTicker(c.interval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-halt:
				return
			case <-c.ctx.Done():
				return
			case <-ticker.C():
				c.tick(gen)
			}
		}
	}()
}

// disarm signals the timer goroutine to exit without waiting for it, since a tick
// may be blocked on mu. Caller holds mu.
func (c *Controller) disarm() {
	if c.halt != nil {
		close(c.halt)
		c.halt = nil
	}
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.session.State != schemas.ScanScanning {
		c.mu.Unlock()
		return
	}
	next := c.session.CurrentIndex + 1
	var target *schemas.FormRegion
	if next >= len(c.session.Regions) {
		c.session.State = schemas.ScanComplete
		c.session.ProgressPercent = 100
		c.disarm()
	} else {
		target = c.visit(next)
	}
	snap, seq := c.snapshot()
	c.mu.Unlock()

	c.logger.Debug("Advanced scan.", zap.Int("index", snap.CurrentIndex), zap.Int("progress", snap.ProgressPercent))
	c.notify(seq, snap)
	c.scrollTo(c.ctx, target)
}

func (c *Controller) scrollTo(ctx context.Context, r *schemas.FormRegion) {
	if r == nil {
		return
	}
	if err := c.page.ScrollTo(ctx, r.Box.X, r.Box.Y); err != nil {
		c.logger.Debug("Scroll failed.", zap.Int("index", r.Index), zap.Error(err))
	}
}

// snapshot copies the session and stamps it with the next sequence number.
// Caller holds mu.
func (c *Controller) snapshot() (schemas.ScanSession, uint64) {
	c.seq++
	return c.session.Clone(), c.seq
}

// notify delivers s unless a later snapshot has already been delivered.
func (c *Controller) notify(seq uint64, s schemas.ScanSession) {
	if c.observer == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq
	c.observer(s)
}
