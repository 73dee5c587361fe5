// browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// GenerateUniqueXPath builds the XPath that page scripts use to re-resolve node.
// An id is used as the anchor only when it is unique in the document, otherwise
// the path is positional from the root.
func GenerateUniqueXPath(node *html.Node) string {
	if node == nil {
		return ""
	}
	root := node
	for root.Parent != nil {
		root = root.Parent
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if id := Attr(n, "id"); id != "" && countID(root, id) == 1 {
			path = append(path, fmt.Sprintf("//*[@id=%s]", quoteXPath(id)))
			break
		}

		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

func countID(root *html.Node, id string) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if count > 1 {
			return
		}
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return count
}

// quoteXPath wraps s in whichever quote character it does not contain.
func quoteXPath(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}
