// Package manual lets a person click-select form regions the locator missed.
package manual

import (
	"context"
	"fmt"
	"math"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/probe"
	"github.com/xkilldash9x/pagefinder/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Bridge is the page capability the overlay needs.
type Bridge interface {
	Evaluate(ctx context.Context, fn string) ([]byte, error)
	Bind(ctx context.Context, name string, h probe.BindingHandler) error
}

// SelectionStore persists selections per page URL.
type SelectionStore interface {
	SaveSelections(ctx context.Context, url string, regions []schemas.FormRegion) error
	LoadSelections(ctx context.Context, url string) ([]schemas.FormRegion, error)
}

// selection is the payload posted by the page script.
type selection struct {
	Element    string  `json:"element"`
	Classes    string  `json:"classes"`
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	InputCount int     `json:"inputCount"`
	Path       string  `json:"path"`
}

// Overlay owns selection mode and the selections made in it.
type Overlay struct {
	bridge Bridge
	store  SelectionStore
	cfg    config.ManualConfig
	logger *zap.Logger

	// OnSelect, when set, observes every accepted selection.
	OnSelect func(schemas.FormRegion)

	mu       sync.Mutex
	enabled  bool
	bound    bool
	selected []schemas.FormRegion
}

// NewOverlay creates a disabled overlay.
func NewOverlay(bridge Bridge, store SelectionStore, cfg config.ManualConfig, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Overlay{bridge: bridge, store: store, cfg: cfg, logger: logger.Named("manual")}
}

// Enabled reports whether selection mode is on.
func (o *Overlay) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled
}

// Enable turns selection mode on. It is a no-op when already enabled.
func (o *Overlay) Enable(ctx context.Context) error {
	o.mu.Lock()
	if o.enabled {
		o.mu.Unlock()
		return nil
	}
	needBind := !o.bound
	o.mu.Unlock()

	if needBind {
		if err := o.bridge.Bind(ctx, o.cfg.BindingName, o.handle); err != nil {
			return fmt.Errorf("failed to bind selection channel: %w", err)
		}
	}
	if err := o.install(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	o.bound = true
	o.enabled = true
	o.mu.Unlock()
	o.logger.Info("Manual selection enabled.")
	return nil
}

// Disable turns selection mode off. It is a no-op when already disabled.
func (o *Overlay) Disable(ctx context.Context) error {
	o.mu.Lock()
	if !o.enabled {
		o.mu.Unlock()
		return nil
	}
	o.enabled = false
	o.mu.Unlock()

	if _, err := o.bridge.Evaluate(ctx, removeJS); err != nil {
		o.logger.Warn("Could not remove selection overlay.", zap.Error(err))
	}
	o.logger.Info("Manual selection disabled.")
	return nil
}

// Toggle flips selection mode and returns the new state.
func (o *Overlay) Toggle(ctx context.Context) (bool, error) {
	if o.Enabled() {
		return false, o.Disable(ctx)
	}
	if err := o.Enable(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Reinstall puts the page script back after a document load while enabled.
func (o *Overlay) Reinstall(ctx context.Context) error {
	if !o.Enabled() {
		return nil
	}
	return o.install(ctx)
}

func (o *Overlay) install(ctx context.Context) error {
	toast := o.cfg.ToastDuration.Milliseconds()
	script := fmt.Sprintf(installJS, literal(o.cfg.BindingName), toast)
	if _, err := o.bridge.Evaluate(ctx, script); err != nil {
		return fmt.Errorf("failed to install selection overlay: %w", err)
	}
	return nil
}

// Selections returns the regions selected since the last save or reset.
func (o *Overlay) Selections() []schemas.FormRegion {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]schemas.FormRegion(nil), o.selected...)
}

// Reset forgets unsaved selections.
func (o *Overlay) Reset() {
	o.mu.Lock()
	o.selected = nil
	o.mu.Unlock()
}

// Save persists the current selections under url and leaves selection mode.
// Nothing is stored when there are no selections or url is empty.
func (o *Overlay) Save(ctx context.Context, url string) (int, error) {
	regions := o.Selections()
	if len(regions) == 0 || url == "" {
		return 0, o.Disable(ctx)
	}
	if err := o.store.SaveSelections(ctx, url, regions); err != nil {
		return 0, fmt.Errorf("failed to save selections for %s: %w", url, err)
	}
	o.logger.Info("Saved manual selections.", zap.String("url", url), zap.Int("count", len(regions)))
	return len(regions), o.Disable(ctx)
}

// Saved loads the selections previously stored for url.
func (o *Overlay) Saved(ctx context.Context, url string) []schemas.FormRegion {
	if url == "" {
		return nil
	}
	regions, err := o.store.LoadSelections(ctx, url)
	if err != nil {
		o.logger.Warn("Could not load saved selections.", zap.String("url", url), zap.Error(err))
		return nil
	}
	return regions
}

// handle receives a selection payload from the page.
func (o *Overlay) handle(payload string) {
	var s selection
	if err := json.UnmarshalFromString(payload, &s); err != nil {
		o.logger.Warn("Malformed selection payload.", zap.Error(err))
		return
	}

	o.mu.Lock()
	if !o.enabled {
		o.mu.Unlock()
		return
	}
	n := len(o.selected)
	region := schemas.FormRegion{
		Index:             n,
		ID:                s.ID,
		Kind:              schemas.KindContainer,
		ElementTag:        s.Element,
		ClassNames:        s.Classes,
		VisibleInputCount: s.InputCount,
		Box:               schemas.BoundingBox{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height},
		ManuallySelected:  true,
		Path:              s.Path,
	}
	if region.ID == "" {
		region.ID = fmt.Sprintf("selected-form-%d", n)
	}
	if s.Element == "form" {
		region.Kind = schemas.KindTraditional
	}
	o.selected = append(o.selected, region)
	cb := o.OnSelect
	o.mu.Unlock()

	o.logger.Debug("Region selected.", zap.String("id", region.ID), zap.String("element", region.ElementTag))
	if cb != nil {
		cb(region)
	}
}

// Merge appends each saved region to existing unless an existing region lies
// strictly within tolerance of it on x, y and width. Appended regions are
// reindexed and marked as manually selected.
func Merge(existing, saved []schemas.FormRegion, tolerance float64) []schemas.FormRegion {
	out := append([]schemas.FormRegion(nil), existing...)
	for _, s := range saved {
		duplicate := false
		for _, e := range out {
			if math.Abs(e.Box.X-s.Box.X) < tolerance &&
				math.Abs(e.Box.Y-s.Box.Y) < tolerance &&
				math.Abs(e.Box.Width-s.Box.Width) < tolerance {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		s.Index = len(out)
		s.ManuallySelected = true
		out = append(out, s)
	}
	return out
}

func literal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
