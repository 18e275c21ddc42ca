// Package sites carries curated per-site selector knowledge: seed
// selectors for well-known roles, named page regions, loading indicators
// and the custom elements a page is built from. The locator consults the
// active table before generating candidates of its own.
package sites

import "strings"

// Table is the selector knowledge for one site.
type Table struct {
	// Name identifies the site in logs.
	Name string
	// Roles maps a site role (e.g. "search_input") to seed selectors in
	// preference order.
	Roles map[string][]string
	// Regions maps a region name to the container selector candidates
	// are scoped under.
	Regions map[string]string
	// LoadingIndicators are selectors whose presence means the page is
	// still busy.
	LoadingIndicators []string
	// Components lists the custom element tag names the site's critical
	// forms are built from.
	Components []string
}

// Seeds returns the seed selectors for a role, or nil when the role is
// unknown.
func (t *Table) Seeds(role string) []string {
	if t == nil {
		return nil
	}
	return t.Roles[role]
}

// Region returns the container selector for a named region.
func (t *Table) Region(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	sel, ok := t.Regions[name]
	return sel, ok
}

// ForURL picks the table matching a URL's host, or nil when the site is
// unknown.
func ForURL(host string) *Table {
	switch {
	case strings.Contains(host, "google."):
		return Google()
	case strings.Contains(host, "squareup") || strings.Contains(host, "square."):
		return Square()
	default:
		return nil
	}
}
