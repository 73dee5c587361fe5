// Package domtest provides an in-memory page for exercising code built on dom.PagePrimitives.
package domtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
)

// FakePage is an in-memory PagePrimitives over fixed markup. Geometry is looked up
// by path and defaults to a not-found element. Writes are applied to the parsed
// tree, so later snapshots observe them.
type FakePage struct {
	mu        sync.Mutex
	doc       *html.Node
	URL       string
	Geometry  map[string]dom.Geometry
	HitPath   string
	SnapErr   error
	ExecErr   error
	Scrolls   [][2]float64
	Calls     []string
	Clicked   bool
	ClickArgs []string
}

var _ dom.PagePrimitives = (*FakePage)(nil)

// NewFakePage parses markup. It panics on malformed input, which only tests construct.
func NewFakePage(markup string) *FakePage {
	doc, err := dom.ParseString(markup)
	if err != nil {
		panic(err)
	}
	return &FakePage{doc: doc, Geometry: map[string]dom.Geometry{}}
}

// Doc returns the parsed tree.
func (f *FakePage) Doc() *html.Node { return f.doc }

// Place registers a rendered box for the element matched by xpath, keyed by its unique path.
func (f *FakePage) Place(xpath string, g dom.Geometry) string {
	n := htmlquery.FindOne(f.doc, xpath)
	if n == nil {
		panic(fmt.Sprintf("fake page: no element for %s", xpath))
	}
	path := dom.GenerateUniqueXPath(n)
	g.Found = true
	if g.Display == "" {
		g.Display = "block"
	}
	if g.Visibility == "" {
		g.Visibility = "visible"
	}
	if g.Opacity == 0 {
		g.Opacity = 1
	}
	f.mu.Lock()
	f.Geometry[path] = g
	f.mu.Unlock()
	return path
}

func (f *FakePage) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakePage) GetDOMSnapshot(context.Context) (*html.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("snapshot")
	if f.SnapErr != nil {
		return nil, f.SnapErr
	}
	return f.doc, nil
}

func (f *FakePage) GetCurrentURL(context.Context) (string, error) {
	return f.URL, nil
}

func (f *FakePage) Measure(_ context.Context, paths []string) ([]dom.Geometry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("measure")
	out := make([]dom.Geometry, len(paths))
	for i, p := range paths {
		out[i] = f.Geometry[p]
	}
	return out, nil
}

func (f *FakePage) FormAtPoint(context.Context, float64, float64) (string, error) {
	return f.HitPath, nil
}

func (f *FakePage) ScrollTo(_ context.Context, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scrolls = append(f.Scrolls, [2]float64{x, y})
	return nil
}

func (f *FakePage) find(path string) *html.Node {
	n, err := htmlquery.Query(f.doc, path)
	if err != nil {
		return nil
	}
	return n
}

func (f *FakePage) setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func (f *FakePage) delAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func (f *FakePage) ExecuteSelect(_ context.Context, path, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("select " + path + "=" + value)
	if f.ExecErr != nil {
		return false, f.ExecErr
	}
	n := f.find(path)
	if n == nil {
		return false, nil
	}
	for _, o := range htmlquery.Find(n, ".//option") {
		v := dom.Attr(o, "value")
		if !dom.HasAttr(o, "value") {
			v = dom.Text(o)
		}
		if v == value {
			f.setAttr(o, "selected", "")
		} else {
			f.delAttr(o, "selected")
		}
	}
	return true, nil
}

func (f *FakePage) ExecuteCheck(_ context.Context, path string, checked bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("check %s=%t", path, checked))
	if f.ExecErr != nil {
		return false, f.ExecErr
	}
	n := f.find(path)
	if n == nil {
		return false, nil
	}
	if checked {
		f.setAttr(n, "checked", "")
	} else {
		f.delAttr(n, "checked")
	}
	return true, nil
}

func (f *FakePage) ExecuteRadio(_ context.Context, path, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("radio " + path + "=" + value)
	if f.ExecErr != nil {
		return false, f.ExecErr
	}
	n := f.find(path)
	if n == nil || dom.Attr(n, "value") != value {
		return false, nil
	}
	f.setAttr(n, "checked", "")
	return true, nil
}

func (f *FakePage) ExecuteFill(_ context.Context, path, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fill " + path + "=" + value)
	if f.ExecErr != nil {
		return false, f.ExecErr
	}
	n := f.find(path)
	if n == nil {
		return false, nil
	}
	f.setAttr(n, "value", value)
	return true, nil
}

func (f *FakePage) ClickNextOrSubmit(_ context.Context, scope string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click-next " + scope)
	f.ClickArgs = append(f.ClickArgs, scope)
	if f.ExecErr != nil {
		return false, f.ExecErr
	}
	f.Clicked = true
	return true, nil
}

// CallLog returns a copy of the recorded calls.
func (f *FakePage) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}
