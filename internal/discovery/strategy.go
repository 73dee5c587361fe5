// internal/discovery/strategy.go
package discovery

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Strategy names, in the order the default set runs them.
const (
	StrategyTraditionalForm = "traditional-form"
	StrategySchemaForm      = "schema-form"
	StrategyFieldset        = "fieldset"
	StrategyInputGroup      = "input-group"
	StrategyPlatformPattern = "platform-pattern"
	StrategyAddressPattern  = "address-pattern"
)

// Strategy finds candidate region elements in a parsed snapshot. Implementations
// must treat the document as read-only, since strategies run concurrently.
type Strategy interface {
	Name() string
	Find(doc *html.Node) ([]*html.Node, error)
}

// XPathStrategy selects candidates with a single XPath expression.
type XPathStrategy struct {
	Label string
	Expr  string
}

func (s XPathStrategy) Name() string { return s.Label }

func (s XPathStrategy) Find(doc *html.Node) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(doc, s.Expr)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", s.Label, err)
	}
	sortDocumentOrder(doc, nodes)
	return nodes, nil
}

// FuncStrategy adapts a plain function.
type FuncStrategy struct {
	Label string
	Fn    func(doc *html.Node) ([]*html.Node, error)
}

func (s FuncStrategy) Name() string { return s.Label }

func (s FuncStrategy) Find(doc *html.Node) ([]*html.Node, error) { return s.Fn(doc) }

const classRJSF = `contains(concat(' ', normalize-space(@class), ' '), ' rjsf ')`

// DefaultStrategies returns the built-in heuristics.
func DefaultStrategies() []Strategy {
	return []Strategy{
		XPathStrategy{Label: StrategyTraditionalForm, Expr: `//form`},
		XPathStrategy{Label: StrategySchemaForm, Expr: `//*[` + classRJSF + `]`},
		XPathStrategy{Label: StrategyFieldset, Expr: `//fieldset[@id and .//legend] | //div[fieldset[@id]]`},
		FuncStrategy{Label: StrategyInputGroup, Fn: inputGroups},
		XPathStrategy{
			Label: StrategyPlatformPattern,
			Expr: `//*[contains(@id, 'cntryFields')] | //*[contains(concat(' ', normalize-space(@class), ' '), ' form-group ')` +
				` and contains(concat(' ', normalize-space(@class), ' '), ' field-object ')]`,
		},
		XPathStrategy{Label: StrategyAddressPattern, Expr: `//div[.//input[contains(@autocomplete, 'address')]]`},
	}
}

// minGroupInputs is how many interactive descendants make a div an input group.
const minGroupInputs = 3

// inputGroups returns every div holding at least minGroupInputs non-hidden
// input, select or textarea descendants.
func inputGroups(doc *html.Node) ([]*html.Node, error) {
	var out []*html.Node
	var walk func(n *html.Node) int
	walk = func(n *html.Node) int {
		count := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			count += walk(c)
		}
		if n.Type == html.ElementNode && n.Data == "div" && count >= minGroupInputs {
			out = append(out, n)
		}
		if isInteractive(n) {
			count++
		}
		return count
	}
	walk(doc)
	sortDocumentOrder(doc, out)
	return out, nil
}

func isInteractive(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "select", "textarea":
		return true
	case "input":
		for _, a := range n.Attr {
			if a.Key == "type" && strings.EqualFold(a.Val, "hidden") {
				return false
			}
		}
		return true
	}
	return false
}
