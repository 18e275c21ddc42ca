// Package schemas defines the shared data contracts exchanged between the
// locator pipeline, the interaction executor, the site flows and the tool
// server. Types here are plain data with JSON tags so they can cross the
// tool boundary unchanged.
package schemas

import (
	"fmt"
	"strings"
)

// IntentContext narrows where a search intent should be satisfied.
type IntentContext string

const (
	// ContextAny matches anywhere in the document.
	ContextAny IntentContext = "any"
	// ContextForm restricts matching to descendants of a form element.
	ContextForm IntentContext = "form"
	// ContextDialog restricts matching to open dialogs and modal overlays.
	ContextDialog IntentContext = "dialog"
)

// SearchIntent describes the element a caller wants, independent of any
// concrete selector. The locator turns an intent into an ordered list of
// candidate selectors and resolves the first one that is actually usable.
//
// All fields are optional but at least one identifying field must be set.
type SearchIntent struct {
	// Text is visible text content the element should carry.
	Text string `json:"text,omitempty"`
	// Role is the ARIA role or implicit role (button, textbox, link...).
	Role string `json:"role,omitempty"`
	// Tag constrains the element's tag name.
	Tag string `json:"tag,omitempty"`
	// TestID matches data-testid exactly.
	TestID string `json:"testId,omitempty"`
	// Placeholder matches the placeholder attribute.
	Placeholder string `json:"placeholder,omitempty"`
	// Label matches an associated label's text or aria-label.
	Label string `json:"label,omitempty"`
	// ClassHint is a single class name known to be on the element.
	ClassHint string `json:"classHint,omitempty"`
	// Attributes are exact attribute name/value pairs.
	Attributes map[string]string `json:"attributes,omitempty"`
	// Position selects the 1-based nth matching element when several
	// elements satisfy the structural constraints. Zero means first.
	Position int `json:"position,omitempty"`
	// ProximityTo names a neighbouring element; the target is searched
	// relative to it when direct strategies fail.
	ProximityTo *SearchIntent `json:"proximityTo,omitempty"`
	// Context narrows the document region considered.
	Context IntentContext `json:"context,omitempty"`
	// Region names a site-specific page region (e.g. "results") from the
	// active site table. Candidates are scoped under that region.
	Region string `json:"region,omitempty"`
	// SiteRole names a curated selector seed set for the active site
	// (e.g. "search_input"). Seeds are tried before generated candidates.
	SiteRole string `json:"siteRole,omitempty"`
}

// Validate reports whether the intent carries enough information to
// generate at least one candidate selector.
func (si *SearchIntent) Validate() error {
	if si == nil {
		return fmt.Errorf("search intent is nil")
	}
	if si.Position < 0 {
		return fmt.Errorf("position must not be negative, got %d", si.Position)
	}
	switch si.Context {
	case "", ContextAny, ContextForm, ContextDialog:
	default:
		return fmt.Errorf("unknown intent context %q", si.Context)
	}
	if si.hasIdentifier() {
		return nil
	}
	return fmt.Errorf("search intent needs at least one identifying field (text, role, tag, testId, placeholder, label, classHint, attributes or siteRole)")
}

func (si *SearchIntent) hasIdentifier() bool {
	return si.Text != "" || si.Role != "" || si.Tag != "" || si.TestID != "" ||
		si.Placeholder != "" || si.Label != "" || si.ClassHint != "" ||
		len(si.Attributes) > 0 || si.SiteRole != ""
}

// String renders a compact human readable description for logs and errors.
func (si *SearchIntent) String() string {
	if si == nil {
		return "<nil intent>"
	}
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("text", si.Text)
	add("role", si.Role)
	add("tag", si.Tag)
	add("testId", si.TestID)
	add("placeholder", si.Placeholder)
	add("label", si.Label)
	add("class", si.ClassHint)
	add("siteRole", si.SiteRole)
	add("region", si.Region)
	for k, v := range si.Attributes {
		parts = append(parts, fmt.Sprintf("attr[%s]=%s", k, v))
	}
	if si.Position > 0 {
		parts = append(parts, fmt.Sprintf("position=%d", si.Position))
	}
	if si.ProximityTo != nil {
		parts = append(parts, "near("+si.ProximityTo.String()+")")
	}
	if len(parts) == 0 {
		return "<empty intent>"
	}
	return strings.Join(parts, " ")
}
