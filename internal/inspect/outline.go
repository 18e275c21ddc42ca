// internal/inspect/outline.go
// Offline counterpart of the live inspector: parses captured HTML (from a
// navigation capture or a saved artifact) into the same element summary,
// without a browser round trip.
package inspect

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/webpilot9/webpilot/api/schemas"
)

// OutlineHTML parses an HTML document and returns an element summary
// comparable to a live snapshot. Visibility cannot be judged offline, so
// every element reports Visible true unless it is explicitly hidden.
func OutlineHTML(content string, opts Options) (*schemas.PageSnapshot, error) {
	doc, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	root := doc
	if opts.Selector != "" {
		// The offline analyzer accepts XPath scopes.
		node, err := htmlquery.Query(doc, opts.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid scope expression %q: %w", opts.Selector, err)
		}
		if node == nil {
			return &schemas.PageSnapshot{}, nil
		}
		root = node
	}

	maxElements := opts.MaxElements
	if maxElements <= 0 {
		maxElements = 100
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 25
	}

	tags := map[string]bool{}
	for _, t := range opts.Tags {
		tags[t] = true
	}
	attrs := opts.Attributes
	if len(attrs) == 0 {
		attrs = []string{"id", "class", "name", "type", "href", "placeholder", "role", "data-testid", "aria-label"}
	}

	snap := &schemas.PageSnapshot{}
	if title := htmlquery.FindOne(doc, "//title"); title != nil {
		snap.Title = strings.TrimSpace(htmlquery.InnerText(title))
	}

	type item struct {
		node  *html.Node
		depth int
	}
	queue := []item{{root, 0}}
	for len(queue) > 0 {
		if len(snap.Elements) >= maxElements {
			snap.Truncated = true
			break
		}
		it := queue[0]
		queue = queue[1:]
		if it.depth > maxDepth {
			continue
		}

		if it.node.Type == html.ElementNode {
			tag := it.node.Data
			if len(tags) == 0 || tags[tag] {
				snap.Elements = append(snap.Elements, elementInfo(it.node, tag, attrs, it.depth))
			}
		}
		for child := it.node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode {
				queue = append(queue, item{child, it.depth + 1})
			}
		}
	}
	return snap, nil
}

func elementInfo(node *html.Node, tag string, wantAttrs []string, depth int) schemas.ElementInfo {
	attrs := map[string]string{}
	for _, name := range wantAttrs {
		if v := htmlquery.SelectAttr(node, name); v != "" {
			attrs[name] = v
		}
	}

	var text strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			text.WriteString(child.Data)
		}
	}
	trimmed := strings.TrimSpace(text.String())
	if len(trimmed) > 120 {
		trimmed = trimmed[:120]
	}

	hidden := htmlquery.SelectAttr(node, "hidden") != "" ||
		strings.Contains(htmlquery.SelectAttr(node, "style"), "display:none") ||
		strings.Contains(htmlquery.SelectAttr(node, "style"), "display: none")

	return schemas.ElementInfo{
		Tag:        tag,
		ID:         htmlquery.SelectAttr(node, "id"),
		Class:      htmlquery.SelectAttr(node, "class"),
		Text:       trimmed,
		Attributes: attrs,
		Visible:    !hidden,
		Clickable:  isClickableTag(tag, node),
		Depth:      depth,
	}
}

func isClickableTag(tag string, node *html.Node) bool {
	switch tag {
	case "a", "button", "select", "input":
		return true
	}
	role := htmlquery.SelectAttr(node, "role")
	return role == "button" || role == "link"
}
