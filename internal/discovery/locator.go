// internal/discovery/locator.go
package discovery

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
	"github.com/xkilldash9x/pagefinder/internal/config"
)

// Locator discovers form regions on the live page.
type Locator struct {
	page       dom.PagePrimitives
	strategies []Strategy
	minWidth   float64
	minHeight  float64
	logger     *zap.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithStrategies replaces the default strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(l *Locator) { l.strategies = s }
}

// NewLocator creates a Locator over page.
func NewLocator(page dom.PagePrimitives, cfg config.DiscoveryConfig, logger *zap.Logger, opts ...Option) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Locator{
		page:       page,
		strategies: DefaultStrategies(),
		minWidth:   cfg.MinWidth,
		minHeight:  cfg.MinHeight,
		logger:     logger.Named("locator"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// candidate is a discovered element before the significance filter.
type candidate struct {
	node *html.Node
	path string
}

// Locate runs every strategy, unions the candidates in first-discovery order and keeps
// the significant ones. Probe failures yield an empty list. The only error returned is
// the context's.
func (l *Locator) Locate(ctx context.Context) ([]schemas.FormRegion, error) {
	doc, err := l.page.GetDOMSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logger.Warn("Could not snapshot page, treating as no forms.", zap.Error(err))
		return []schemas.FormRegion{}, nil
	}

	candidates := l.collect(ctx, doc)
	if len(candidates) == 0 {
		return []schemas.FormRegion{}, nil
	}

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	geometry, err := l.page.Measure(ctx, paths)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logger.Warn("Could not measure candidates, treating as no forms.", zap.Error(err))
		return []schemas.FormRegion{}, nil
	}

	regions := make([]schemas.FormRegion, 0, len(candidates))
	for i, c := range candidates {
		g := geometry[i]
		if !l.significant(g) {
			continue
		}
		index := len(regions)
		regions = append(regions, schemas.FormRegion{
			Index:             index,
			ID:                regionID(c.node, index),
			Kind:              KindOf(c.node),
			ElementTag:        dom.Tag(c.node),
			ClassNames:        dom.Attr(c.node, "class"),
			VisibleInputCount: g.VisibleInputs,
			Box:               schemas.BoundingBox{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height},
			Path:              c.path,
		})
	}

	l.logger.Debug("Located form regions.",
		zap.Int("candidates", len(candidates)),
		zap.Int("regions", len(regions)))
	return regions, nil
}

// collect runs the strategies concurrently over the immutable snapshot. A failing
// or panicking strategy contributes nothing.
func (l *Locator) collect(ctx context.Context, doc *html.Node) []candidate {
	results := make([][]*html.Node, len(l.strategies))

	g, _ := errgroup.WithContext(ctx)
	for i, s := range l.strategies {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("Form strategy panicked.",
						zap.String("strategy", s.Name()),
						zap.Any("panic", r),
						zap.String("stack", string(debug.Stack())))
				}
			}()
			nodes, err := s.Find(doc)
			if err != nil {
				l.logger.Warn("Form strategy failed.", zap.String("strategy", s.Name()), zap.Error(err))
				return nil
			}
			results[i] = nodes
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[*html.Node]bool)
	var out []candidate
	for _, nodes := range results {
		for _, n := range nodes {
			if n == nil || n.Type != html.ElementNode || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, candidate{node: n, path: dom.GenerateUniqueXPath(n)})
		}
	}
	return out
}

func (l *Locator) significant(g dom.Geometry) bool {
	if !g.Rendered() {
		return false
	}
	if g.Width < l.minWidth || g.Height < l.minHeight {
		return false
	}
	return g.VisibleInputs >= 1
}

// KindOf classifies a region element with traditional > react-schema > fieldset > container precedence.
func KindOf(n *html.Node) schemas.RegionKind {
	switch {
	case dom.Tag(n) == "form":
		return schemas.KindTraditional
	case dom.HasClass(n, "rjsf"):
		return schemas.KindReactSchema
	case dom.Tag(n) == "fieldset":
		return schemas.KindFieldset
	}
	return schemas.KindContainer
}

func regionID(n *html.Node, index int) string {
	for _, attr := range []string{"id", "data-ph-id", "data-form-id"} {
		if v := strings.TrimSpace(dom.Attr(n, attr)); v != "" {
			return v
		}
	}
	return fmt.Sprintf("form-%d", index)
}

// sortDocumentOrder sorts nodes in place by their position in doc.
func sortDocumentOrder(doc *html.Node, nodes []*html.Node) {
	if len(nodes) < 2 {
		return
	}
	order := make(map[*html.Node]int)
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		order[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	sort.SliceStable(nodes, func(a, b int) bool { return order[nodes[a]] < order[nodes[b]] })
}
