package manual

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/probe"
	"github.com/xkilldash9x/pagefinder/internal/config"
)

type fakeBridge struct {
	mu      sync.Mutex
	scripts []string
	binds   []string
	handler probe.BindingHandler
	evalErr error
}

func (b *fakeBridge) Evaluate(_ context.Context, fn string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts = append(b.scripts, fn)
	return []byte("true"), b.evalErr
}

func (b *fakeBridge) Bind(_ context.Context, name string, h probe.BindingHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.binds = append(b.binds, name)
	b.handler = h
	return nil
}

func (b *fakeBridge) post(payload string) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	h(payload)
}

type mapStore struct {
	saved map[string][]schemas.FormRegion
	err   error
}

func (s *mapStore) SaveSelections(_ context.Context, url string, regions []schemas.FormRegion) error {
	if s.err != nil {
		return s.err
	}
	s.saved[url] = regions
	return nil
}

func (s *mapStore) LoadSelections(_ context.Context, url string) ([]schemas.FormRegion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.saved[url], nil
}

var manualConfig = config.ManualConfig{BindingName: "__pagefinderSelect", DedupTolerancePx: 20, ToastDuration: 1500 * time.Millisecond}

func newOverlay() (*Overlay, *fakeBridge, *mapStore) {
	b := &fakeBridge{}
	s := &mapStore{saved: map[string][]schemas.FormRegion{}}
	return NewOverlay(b, s, manualConfig, nil), b, s
}

func TestOverlay_EnableDisableIdempotent(t *testing.T) {
	o, b, _ := newOverlay()
	ctx := context.Background()

	require.NoError(t, o.Enable(ctx))
	require.NoError(t, o.Enable(ctx))
	assert.True(t, o.Enabled())
	assert.Equal(t, []string{"__pagefinderSelect"}, b.binds)
	require.Len(t, b.scripts, 1)
	assert.Contains(t, b.scripts[0], `const binding = "__pagefinderSelect";`)
	assert.Contains(t, b.scripts[0], "const toastMs = 1500;")
	assert.Contains(t, b.scripts[0], "left: '50%'")
	assert.Contains(t, b.scripts[0], "Click on form elements to select them")
	assert.Contains(t, b.scripts[0], "crosshair")

	require.NoError(t, o.Disable(ctx))
	require.NoError(t, o.Disable(ctx))
	assert.False(t, o.Enabled())
	require.Len(t, b.scripts, 2)
	assert.Equal(t, removeJS, b.scripts[1])

	require.NoError(t, o.Enable(ctx))
	assert.Len(t, b.binds, 1, "the binding survives re-enable")
}

func TestOverlay_Toggle(t *testing.T) {
	o, _, _ := newOverlay()
	ctx := context.Background()

	on, err := o.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = o.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestOverlay_InstallFailureLeavesDisabled(t *testing.T) {
	o, b, _ := newOverlay()
	b.evalErr = errors.New("no page")

	assert.Error(t, o.Enable(context.Background()))
	assert.False(t, o.Enabled())
}

func TestOverlay_Reinstall(t *testing.T) {
	o, b, _ := newOverlay()
	ctx := context.Background()

	require.NoError(t, o.Reinstall(ctx))
	assert.Empty(t, b.scripts)

	require.NoError(t, o.Enable(ctx))
	require.NoError(t, o.Reinstall(ctx))
	require.Len(t, b.scripts, 2)
	assert.True(t, strings.HasPrefix(b.scripts[1], "() => {"))
}

func TestOverlay_HandleSelections(t *testing.T) {
	o, b, _ := newOverlay()
	var seen []schemas.FormRegion
	o.OnSelect = func(r schemas.FormRegion) { seen = append(seen, r) }
	require.NoError(t, o.Enable(context.Background()))

	b.post(`{"element":"form","classes":"apply","id":"","x":10,"y":20,"width":300,"height":400,"inputCount":4,"path":"/html[1]/body[1]/form[1]"}`)
	b.post(`{"element":"div","classes":"","id":"billing","x":10,"y":500,"width":300,"height":200,"inputCount":2,"path":"//*[@id='billing']"}`)
	b.post(`not json`)

	want := []schemas.FormRegion{
		{Index: 0, ID: "selected-form-0", Kind: schemas.KindTraditional, ElementTag: "form", ClassNames: "apply",
			VisibleInputCount: 4, Box: schemas.BoundingBox{X: 10, Y: 20, Width: 300, Height: 400},
			ManuallySelected: true, Path: "/html[1]/body[1]/form[1]"},
		{Index: 1, ID: "billing", Kind: schemas.KindContainer, ElementTag: "div",
			VisibleInputCount: 2, Box: schemas.BoundingBox{X: 10, Y: 500, Width: 300, Height: 200},
			ManuallySelected: true, Path: "//*[@id='billing']"},
	}
	assert.Equal(t, want, o.Selections())
	assert.Equal(t, want, seen)

	require.NoError(t, o.Disable(context.Background()))
	b.post(`{"element":"div","x":1,"y":1,"width":1,"height":1}`)
	assert.Len(t, o.Selections(), 2, "clicks after disable are ignored")
}

func TestOverlay_SaveAndRoundTrip(t *testing.T) {
	o, b, store := newOverlay()
	ctx := context.Background()
	const urlA = "https://jobs.example.com/apply"

	n, err := o.Save(ctx, urlA)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing to save")

	require.NoError(t, o.Enable(ctx))
	b.post(`{"element":"div","id":"manual","x":40,"y":900,"width":500,"height":300,"inputCount":3}`)

	n, err = o.Save(ctx, urlA)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, o.Enabled(), "save leaves selection mode")
	require.Len(t, store.saved[urlA], 1)

	detected := []schemas.FormRegion{{Index: 0, ID: "login", Box: schemas.BoundingBox{X: 40, Y: 100, Width: 500, Height: 200}}}
	first := Merge(detected, o.Saved(ctx, urlA), manualConfig.DedupTolerancePx)
	require.Len(t, first, 2)
	assert.Equal(t, 1, first[1].Index)
	assert.True(t, first[1].ManuallySelected)

	// Navigating away and back re-merges against a fresh detection.
	again := Merge(detected, o.Saved(ctx, urlA), manualConfig.DedupTolerancePx)
	assert.Equal(t, first, again)

	// Merging into a list that already holds the saved region adds nothing.
	assert.Equal(t, first, Merge(first, o.Saved(ctx, urlA), manualConfig.DedupTolerancePx))
	assert.Nil(t, o.Saved(ctx, ""))
}

func TestOverlay_SaveWithoutSelectionsLeavesSelectionMode(t *testing.T) {
	o, _, store := newOverlay()
	ctx := context.Background()
	require.NoError(t, o.Enable(ctx))

	n, err := o.Save(ctx, "https://jobs.example.com/apply")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, o.Enabled())
	assert.Empty(t, store.saved)
}

func TestOverlay_SaveError(t *testing.T) {
	o, b, store := newOverlay()
	ctx := context.Background()
	require.NoError(t, o.Enable(ctx))
	b.post(`{"element":"div","x":1,"y":1,"width":100,"height":100}`)

	store.err = errors.New("disk full")
	_, err := o.Save(ctx, "https://a.example")
	assert.Error(t, err)
	assert.True(t, o.Enabled())
	assert.Nil(t, o.Saved(ctx, "https://a.example"))
}

func TestMerge_ProximityIsStrict(t *testing.T) {
	existing := []schemas.FormRegion{{Index: 0, Box: schemas.BoundingBox{X: 100, Y: 100, Width: 400}}}
	tests := []struct {
		name  string
		box   schemas.BoundingBox
		added bool
	}{
		{"Within Tolerance", schemas.BoundingBox{X: 119, Y: 81, Width: 419}, false},
		{"X At Tolerance", schemas.BoundingBox{X: 120, Y: 100, Width: 400}, true},
		{"Y Far", schemas.BoundingBox{X: 100, Y: 300, Width: 400}, true},
		{"Width Differs", schemas.BoundingBox{X: 100, Y: 100, Width: 200}, true},
		{"Height Ignored", schemas.BoundingBox{X: 100, Y: 100, Width: 400, Height: 999}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Merge(existing, []schemas.FormRegion{{Index: 7, Box: tt.box}}, 20)
			if tt.added {
				require.Len(t, out, 2)
				assert.Equal(t, 1, out[1].Index)
				assert.True(t, out[1].ManuallySelected)
			} else {
				assert.Len(t, out, 1)
			}
		})
	}
	assert.Len(t, existing, 1, "input is not modified")
}
