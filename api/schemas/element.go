package schemas

import "time"

// CandidateOrigin records which generation strategy produced a candidate
// selector. Origins are ordered roughly by expected precision.
type CandidateOrigin string

const (
	OriginSeed      CandidateOrigin = "seed"
	OriginID        CandidateOrigin = "id"
	OriginTestID    CandidateOrigin = "testId"
	OriginRoleText  CandidateOrigin = "roleText"
	OriginAttribute CandidateOrigin = "attribute"
	OriginPosition  CandidateOrigin = "position"
	OriginText      CandidateOrigin = "text"
	OriginRole      CandidateOrigin = "role"
	OriginProximity CandidateOrigin = "proximity"
	OriginClass     CandidateOrigin = "class"
)

// Candidate is one selector expression generated for an intent, together
// with its evaluation state once the scorer has seen the live page.
type Candidate struct {
	// Expression is a CSS selector or, when it starts with "/" or "(",
	// an XPath expression.
	Expression string          `json:"expression"`
	Origin     CandidateOrigin `json:"origin"`
	// MatchCount is the number of nodes the expression matched on the
	// live page. Populated during resolution.
	MatchCount int `json:"matchCount"`
	// Score is the computed specificity score. Populated during
	// resolution; higher is better.
	Score int `json:"score"`
}

// IsXPath reports whether the expression must be evaluated as XPath.
func (c Candidate) IsXPath() bool {
	return len(c.Expression) > 0 && (c.Expression[0] == '/' || c.Expression[0] == '(')
}

// CandidateFailure explains why one candidate was rejected during
// resolution. The full list is attached to ElementNotFoundError so a
// caller can see the whole decision trail.
type CandidateFailure struct {
	Candidate Candidate `json:"candidate"`
	Reason    string    `json:"reason"`
}

// ElementGeometry is the border box of an element in CSS pixels.
type ElementGeometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (g ElementGeometry) Center() (float64, float64) {
	return g.X + g.Width/2, g.Y + g.Height/2
}

// Empty reports whether the box has no area.
func (g ElementGeometry) Empty() bool {
	return g.Width <= 0 || g.Height <= 0
}

// ResolvedElement is the outcome of a successful resolution: a selector
// that matched a visible, usable element at ResolvedAt. The selector may
// go stale afterwards; consumers re-resolve on staleness.
type ResolvedElement struct {
	Selector   string          `json:"selector"`
	Origin     CandidateOrigin `json:"origin"`
	Geometry   ElementGeometry `json:"geometry"`
	Visible    bool            `json:"visible"`
	ResolvedAt time.Time       `json:"resolvedAt"`
}

// ReadinessReport is the per-check breakdown produced by the readiness
// checker for one element.
type ReadinessReport struct {
	Visible    bool `json:"visible"`
	Enabled    bool `json:"enabled"`
	Stable     bool `json:"stable"`
	InViewport bool `json:"inViewport"`
	Occluded   bool `json:"occluded"`
}

// Ready reports whether the element can be interacted with. Viewport
// membership is advisory and does not gate readiness on its own; the
// readiness checker scrolls the element into view before deciding.
func (r ReadinessReport) Ready() bool {
	return r.Visible && r.Enabled && r.Stable && !r.Occluded
}

// Mechanism identifies one of the interaction fallback mechanisms, in
// the order the executor tries them.
type Mechanism string

const (
	MechanismNative         Mechanism = "native"
	MechanismScriptProperty Mechanism = "scriptProperty"
	MechanismSyntheticEvent Mechanism = "syntheticEvent"
	MechanismCoordinate     Mechanism = "coordinate"
)

// ActionKind enumerates the interactions the executor can perform.
type ActionKind string

const (
	ActionClick ActionKind = "click"
	ActionFill  ActionKind = "fill"
	ActionPress ActionKind = "press"
)

// Action is one interaction request against a resolved element.
type Action struct {
	Kind ActionKind `json:"kind"`
	// Text is the value to fill or the key to press. Ignored for clicks.
	Text string `json:"text,omitempty"`
}

// InteractionOutcome reports how an interaction ended. The executor never
// panics or returns a Go error for an ordinary failure; exhaustion is a
// terminal outcome with Err set.
type InteractionOutcome struct {
	Succeeded bool `json:"succeeded"`
	// MechanismUsed is the mechanism that finally succeeded.
	MechanismUsed Mechanism `json:"mechanismUsed,omitempty"`
	// AttemptsUsed counts full retry rounds consumed, starting at 1.
	AttemptsUsed int `json:"attemptsUsed"`
	// Err is the terminal *InteractionError when Succeeded is false.
	Err error `json:"-"`
}

// ShadowChild is a summary of one direct child inside a shadow root.
type ShadowChild struct {
	Tag   string `json:"tag"`
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
}

// ShadowComponentDescriptor describes a custom element as observed on the
// live page.
type ShadowComponentDescriptor struct {
	TagName        string        `json:"tagName"`
	Defined        bool          `json:"defined"`
	HasShadowRoot  bool          `json:"hasShadowRoot"`
	ShadowChildren []ShadowChild `json:"shadowChildren,omitempty"`
}

// ElementInfo is one element entry in a page snapshot.
type ElementInfo struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id,omitempty"`
	Class      string            `json:"class,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Visible    bool              `json:"visible"`
	Clickable  bool              `json:"clickable"`
	Depth      int               `json:"depth"`
}

// PageSnapshot is the structured result of a page inspection.
type PageSnapshot struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Elements []ElementInfo `json:"elements"`
	// Truncated indicates the element budget was hit before the
	// traversal finished.
	Truncated bool `json:"truncated"`
}

// SearchResult is one harvested result from a search results page.
type SearchResult struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	// Type classifies the result block (organic, featured, knowledge,
	// advertisement).
	Type string `json:"type"`
}
