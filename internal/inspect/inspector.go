// Package inspect produces structured snapshots of the live page so
// callers (and the tool surface) can see what is actually rendered before
// deciding what to interact with.
package inspect

import (
	"context"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
)

// jsInspectPage walks the DOM breadth-first and summarizes elements up to
// the caller's budget. The whole traversal happens in one script round
// trip.
const jsInspectPage = `function(opts) {
	const interesting = new Set(opts.tags || []);
	const wantAttrs = opts.attributes || ['id', 'class', 'name', 'type', 'href', 'placeholder', 'role', 'data-testid', 'aria-label'];
	const maxElements = opts.maxElements || 100;
	const maxDepth = opts.maxDepth || 25;

	const rootNode = opts.selector ? document.querySelector(opts.selector) : document.body;
	const out = { url: location.href, title: document.title, elements: [], truncated: false };
	if (!rootNode) return out;

	const isVisible = (node) => {
		const rect = node.getBoundingClientRect();
		const style = window.getComputedStyle(node);
		return rect.width > 0 && rect.height > 0 &&
			style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
	};
	const isClickable = (node, style) => {
		const tag = node.tagName.toLowerCase();
		if (['a', 'button', 'select', 'input'].includes(tag)) return true;
		if (node.getAttribute('role') === 'button' || node.getAttribute('role') === 'link') return true;
		if (node.onclick) return true;
		return style.cursor === 'pointer';
	};

	const queue = [{ node: rootNode, depth: 0 }];
	while (queue.length > 0) {
		if (out.elements.length >= maxElements) { out.truncated = true; break; }
		const { node, depth } = queue.shift();
		if (depth > maxDepth) continue;

		const tag = node.tagName.toLowerCase();
		if (interesting.size === 0 || interesting.has(tag)) {
			const style = window.getComputedStyle(node);
			const attrs = {};
			for (const name of wantAttrs) {
				const v = node.getAttribute(name);
				if (v !== null && v !== '') attrs[name] = v;
			}
			let text = '';
			for (const child of node.childNodes) {
				if (child.nodeType === Node.TEXT_NODE) text += child.textContent;
			}
			out.elements.push({
				tag: tag,
				id: node.id || '',
				class: node.className && node.className.baseVal === undefined ? node.className : '',
				text: text.trim().slice(0, 120),
				attributes: attrs,
				visible: isVisible(node),
				clickable: isClickable(node, style),
				depth: depth
			});
		}
		for (const child of node.children) {
			queue.push({ node: child, depth: depth + 1 });
		}
	}
	return out;
}`

// clickableTags are the tags FindClickable narrows the traversal to.
var clickableTags = []string{"a", "button", "input", "select"}

// formTags are the tags FindFormElements narrows the traversal to.
var formTags = []string{"input", "textarea", "select", "button", "form", "label"}

// Options bounds a page inspection.
type Options struct {
	// Selector roots the traversal; empty means document body.
	Selector string `json:"selector,omitempty"`
	// MaxElements caps the snapshot size.
	MaxElements int `json:"maxElements,omitempty"`
	// MaxDepth caps the traversal depth.
	MaxDepth int `json:"maxDepth,omitempty"`
	// Tags narrows the snapshot to specific tag names.
	Tags []string `json:"tags,omitempty"`
	// Attributes selects which attributes to collect.
	Attributes []string `json:"attributes,omitempty"`
}

// PageInspector captures live page snapshots.
type PageInspector struct {
	driver schemas.PageDriver
	logger *zap.Logger
}

// NewPageInspector binds an inspector to one driver.
func NewPageInspector(driver schemas.PageDriver, logger *zap.Logger) *PageInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageInspector{driver: driver, logger: logger.Named("inspector")}
}

// InspectPage captures a structured snapshot of the current page.
func (pi *PageInspector) InspectPage(ctx context.Context, opts Options) (*schemas.PageSnapshot, error) {
	var snap schemas.PageSnapshot
	if err := pi.driver.Evaluate(ctx, jsInspectPage, &snap, opts); err != nil {
		return nil, err
	}
	pi.logger.Debug("Captured page snapshot.",
		zap.String("url", snap.URL),
		zap.Int("elements", len(snap.Elements)),
		zap.Bool("truncated", snap.Truncated))
	return &snap, nil
}

// FindClickable returns the clickable elements of the page.
func (pi *PageInspector) FindClickable(ctx context.Context, opts Options) ([]schemas.ElementInfo, error) {
	opts.Tags = clickableTags
	snap, err := pi.InspectPage(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := snap.Elements[:0:0]
	for _, el := range snap.Elements {
		if el.Clickable && el.Visible {
			out = append(out, el)
		}
	}
	return out, nil
}

// FindFormElements returns the form controls of the page.
func (pi *PageInspector) FindFormElements(ctx context.Context, opts Options) ([]schemas.ElementInfo, error) {
	opts.Tags = formTags
	snap, err := pi.InspectPage(ctx, opts)
	if err != nil {
		return nil, err
	}
	return snap.Elements, nil
}
