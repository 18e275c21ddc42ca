// internal/browser/js.go
// JavaScript function declarations invoked through Session.Evaluate. Each
// declaration receives its inputs as real arguments; no values are ever
// spliced into the source text.
package browser

// jsFindSnippet resolves a selector expression to its first matching node.
// XPath expressions start with "/" or "(".
const jsFindSnippet = `
	const find = (expr) => {
		if (expr[0] === '/' || expr[0] === '(') {
			const r = document.evaluate(expr, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
			return r.singleNodeValue;
		}
		return document.querySelector(expr);
	};`

const jsQueryCount = `function(expr) {` + jsFindSnippet + `
	if (expr[0] === '/' || expr[0] === '(') {
		const r = document.evaluate(expr, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		return r.snapshotLength;
	}
	return document.querySelectorAll(expr).length;
}`

const jsGeometry = `function(expr) {` + jsFindSnippet + `
	const node = find(expr);
	if (!node) return null;
	const rect = node.getBoundingClientRect();
	return { x: rect.x, y: rect.y, width: rect.width, height: rect.height };
}`

const jsIsVisible = `function(expr) {` + jsFindSnippet + `
	const node = find(expr);
	if (!node) return false;
	const rect = node.getBoundingClientRect();
	const style = window.getComputedStyle(node);
	return rect.width > 0 && rect.height > 0 &&
		style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
}`

const jsIsEnabled = `function(expr) {` + jsFindSnippet + `
	const node = find(expr);
	if (!node) return false;
	if (node.disabled === true) return false;
	if (node.getAttribute && node.getAttribute('aria-disabled') === 'true') return false;
	return true;
}`
