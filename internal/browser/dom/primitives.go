// browser/dom/primitives.go
package dom

import (
	"context"

	"golang.org/x/net/html"
)

// Geometry is the live layout state of one element, in document coordinates.
type Geometry struct {
	Found      bool    `json:"found"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
	// VisibleInputs counts non-hidden input, select, textarea and submit button
	// descendants whose computed style is displayed and visible.
	VisibleInputs int `json:"visibleInputs"`
}

// Rendered reports whether the element is displayed, visible and not fully transparent.
func (g Geometry) Rendered() bool {
	return g.Found && g.Display != "none" && g.Visibility != "hidden" && g.Opacity != 0
}

// PagePrimitives is the narrow command set the engine needs from a live page.
// Selectors are XPath expressions, usually produced by GenerateUniqueXPath against
// the latest snapshot. Execute* methods report false, not an error, when the target
// element cannot be found.
type PagePrimitives interface {
	// GetDOMSnapshot returns the parsed document with live form values reflected
	// into attributes.
	GetDOMSnapshot(ctx context.Context) (*html.Node, error)
	// GetCurrentURL returns the URL of the top-level document.
	GetCurrentURL(ctx context.Context) (string, error)
	// Measure returns one Geometry per path, in order.
	Measure(ctx context.Context, paths []string) ([]Geometry, error)
	// FormAtPoint hit-tests a document point and returns the path of the first
	// form-like, non-hidden element in the stack, or "" when there is none.
	FormAtPoint(ctx context.Context, x, y float64) (string, error)
	// ScrollTo smoothly scrolls the window to a document point.
	ScrollTo(ctx context.Context, x, y float64) error
	ExecuteSelect(ctx context.Context, path, value string) (bool, error)
	ExecuteCheck(ctx context.Context, path string, checked bool) (bool, error)
	ExecuteRadio(ctx context.Context, path, value string) (bool, error)
	ExecuteFill(ctx context.Context, path, value string) (bool, error)
	// ClickNextOrSubmit clicks the first progression control inside scope
	// (a region path, or the whole document when empty).
	ClickNextOrSubmit(ctx context.Context, scope string) (bool, error)
}
