// Package classifier expands a form region into typed fields.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/browser/dom"
)

// Classifier enumerates and types the fields inside a region.
type Classifier struct {
	page   dom.PagePrimitives
	logger *zap.Logger
}

// New creates a Classifier over page.
func New(page dom.PagePrimitives, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{page: page, logger: logger.Named("classifier")}
}

// Classify returns the visible fields of region in document order. Probe failures
// and unresolvable regions produce an empty list.
func (c *Classifier) Classify(ctx context.Context, region schemas.FormRegion) ([]schemas.Field, error) {
	doc, err := c.page.GetDOMSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Could not snapshot page for classification.", zap.Error(err))
		return []schemas.Field{}, nil
	}

	root := c.resolveRegion(ctx, doc, region)
	if root == nil {
		c.logger.Debug("Region could not be resolved.", zap.Int("index", region.Index), zap.String("id", region.ID))
		return []schemas.Field{}, nil
	}

	var fields []schemas.Field
	for _, n := range controls(root) {
		if hidden(n) {
			continue
		}
		fields = append(fields, describe(doc, n))
	}
	if len(fields) == 0 {
		return []schemas.Field{}, nil
	}

	c.locate(ctx, fields)
	return fields, nil
}

// resolveRegion finds the region element in the snapshot. Traditional forms are
// resolved by their captured path; other kinds by hit-testing the region center,
// then by id, then by their captured path. The whole body is the last resort.
func (c *Classifier) resolveRegion(ctx context.Context, doc *html.Node, region schemas.FormRegion) *html.Node {
	if region.Kind != schemas.KindTraditional {
		x, y := region.Box.Center()
		path, err := c.page.FormAtPoint(ctx, x, y)
		if err != nil {
			c.logger.Debug("Hit test failed.", zap.Error(err))
		} else if path != "" {
			if n := query(doc, path); n != nil {
				return n
			}
		}
		if region.ID != "" {
			if n := query(doc, fmt.Sprintf("//*[@id=%s]", xpathLiteral(region.ID))); n != nil {
				return n
			}
		}
	}
	if region.Path != "" {
		if n := query(doc, region.Path); n != nil {
			return n
		}
	}
	return htmlquery.FindOne(doc, "//body")
}

// locate fills in field center positions. Failure leaves them at zero.
func (c *Classifier) locate(ctx context.Context, fields []schemas.Field) {
	paths := make([]string, len(fields))
	for i, f := range fields {
		paths[i] = f.Path
	}
	geometry, err := c.page.Measure(ctx, paths)
	if err != nil {
		c.logger.Debug("Could not measure fields.", zap.Error(err))
		return
	}
	for i, g := range geometry {
		if g.Found {
			fields[i].Position = schemas.Position{X: g.X + g.Width/2, Y: g.Y + g.Height/2}
		}
	}
}

func query(doc *html.Node, path string) *html.Node {
	n, err := htmlquery.Query(doc, path)
	if err != nil {
		return nil
	}
	return n
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}

// controls returns input, select and textarea descendants of root in document order.
func controls(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch dom.Tag(c) {
			case "input", "select", "textarea":
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// hidden uses only what the markup states: hidden type, the hidden attribute and
// inline display or visibility.
func hidden(n *html.Node) bool {
	if dom.Tag(n) == "input" && strings.EqualFold(dom.Attr(n, "type"), "hidden") {
		return true
	}
	return dom.HasAttr(n, "hidden") ||
		dom.InlineStyle(n, "display") == "none" ||
		dom.InlineStyle(n, "visibility") == "hidden"
}

func describe(doc *html.Node, n *html.Node) schemas.Field {
	f := schemas.Field{
		ElementTag:   dom.Tag(n),
		InputType:    inputType(n),
		Name:         dom.Attr(n, "name"),
		ID:           dom.Attr(n, "id"),
		Placeholder:  dom.Attr(n, "placeholder"),
		Required:     dom.HasAttr(n, "required") || dom.Attr(n, "aria-required") == "true",
		Autocomplete: dom.Attr(n, "autocomplete"),
		ClassName:    dom.Attr(n, "class"),
		Path:         dom.GenerateUniqueXPath(n),
	}
	if f.ElementTag == "select" {
		f.Options = options(n)
	}
	f.CurrentValue = currentValue(n, f.Options)
	f.Label = label(doc, n, f.CurrentValue)
	f.SemanticType = Infer(f)
	return f
}

// label walks the precedence chain: label[for], wrapping label without the current
// value, adjacent label element, then aria-label, placeholder or name.
func label(doc *html.Node, n *html.Node, value string) string {
	if id := dom.Attr(n, "id"); id != "" {
		if l := query(doc, fmt.Sprintf("//label[@for=%s]", xpathLiteral(id))); l != nil {
			if text := dom.Text(l); text != "" {
				return text
			}
		}
	}

	if l := dom.Closest(n, "label"); l != nil {
		text := dom.Text(l)
		if value != "" {
			text = strings.TrimSpace(strings.Replace(text, value, "", 1))
		}
		if text != "" {
			return text
		}
	}

	if prev := dom.PrevElement(n); prev != nil && dom.Tag(prev) == "label" {
		if text := dom.Text(prev); text != "" {
			return text
		}
	} else if parent := dom.ParentElement(n); parent != nil {
		if pp := dom.PrevElement(parent); pp != nil && dom.Tag(pp) == "label" {
			if text := dom.Text(pp); text != "" {
				return text
			}
		}
	}

	for _, attr := range []string{"aria-label", "placeholder", "name"} {
		if v := dom.Attr(n, attr); v != "" {
			return v
		}
	}
	return ""
}

var inputTypes = map[string]bool{
	"button": true, "checkbox": true, "color": true, "date": true, "datetime-local": true,
	"email": true, "file": true, "hidden": true, "image": true, "month": true, "number": true,
	"password": true, "radio": true, "range": true, "reset": true, "search": true,
	"submit": true, "tel": true, "text": true, "time": true, "url": true, "week": true,
}

// inputType mirrors the DOM's type property.
func inputType(n *html.Node) string {
	switch dom.Tag(n) {
	case "select":
		if dom.HasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "textarea":
		return "textarea"
	}
	t := strings.ToLower(strings.TrimSpace(dom.Attr(n, "type")))
	if inputTypes[t] {
		return t
	}
	return "text"
}

func options(sel *html.Node) []schemas.SelectOption {
	var out []schemas.SelectOption
	for _, o := range htmlquery.Find(sel, ".//option") {
		text := strings.Join(strings.Fields(htmlquery.InnerText(o)), " ")
		value := text
		if dom.HasAttr(o, "value") {
			value = dom.Attr(o, "value")
		}
		out = append(out, schemas.SelectOption{
			Value:    value,
			Text:     text,
			Selected: dom.HasAttr(o, "selected"),
		})
	}
	return out
}

func currentValue(n *html.Node, opts []schemas.SelectOption) string {
	switch dom.Tag(n) {
	case "textarea":
		return htmlquery.InnerText(n)
	case "select":
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if !dom.HasAttr(n, "multiple") && len(opts) > 0 {
			return opts[0].Value
		}
		return ""
	}
	return dom.Attr(n, "value")
}
