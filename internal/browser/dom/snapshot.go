// browser/dom/snapshot.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Parse reads an HTML document into a queryable tree.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOM snapshot: %w", err)
	}
	return doc, nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	return htmlquery.SelectAttr(n, name)
}

// HasAttr reports whether the attribute is present, even when empty.
func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

// Tag returns the lower-cased element name.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Text returns the trimmed text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(n))
}

// HasClass reports whether the class attribute contains the token c.
func HasClass(n *html.Node, c string) bool {
	for _, tok := range strings.Fields(Attr(n, "class")) {
		if tok == c {
			return true
		}
	}
	return false
}

// InlineStyle returns the value of a declaration in the element's style attribute.
func InlineStyle(n *html.Node, prop string) string {
	for _, decl := range strings.Split(Attr(n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), prop) {
			v = strings.TrimSpace(v)
			v = strings.TrimSuffix(v, "!important")
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}

// PrevElement returns the previous element sibling of n.
func PrevElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// ParentElement returns the closest element ancestor of n.
func ParentElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// Closest returns the nearest inclusive ancestor of n with the given tag.
func Closest(n *html.Node, tag string) *html.Node {
	for c := n; c != nil; c = c.Parent {
		if Tag(c) == tag {
			return c
		}
	}
	return nil
}
