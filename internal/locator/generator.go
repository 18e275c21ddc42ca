// internal/locator/generator.go
// The candidate generator turns a search intent into an ordered list of
// selector expressions, most precise first. Strategies that cannot apply
// to the intent are skipped; the scorer later reorders survivors against
// the live page.
package locator

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/sites"
)

// Generator produces candidate selectors for search intents.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator returns a Generator. A nil logger falls back to a no-op.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger.Named("candidate_generator")}
}

// Generate builds the ordered candidate list for an intent. table carries
// the active site's curated selectors and may be nil. neighborSelector is
// the already resolved selector of intent.ProximityTo, empty when the
// intent has no proximity constraint.
func (g *Generator) Generate(intent *schemas.SearchIntent, table *sites.Table, neighborSelector string) []schemas.Candidate {
	b := &candidateBuilder{seen: make(map[string]bool)}

	// Curated seeds outrank anything generated: they encode selectors a
	// human has already verified against the site.
	if intent.SiteRole != "" {
		for _, seed := range table.Seeds(intent.SiteRole) {
			b.add(seed, schemas.OriginSeed)
		}
	}

	if id, ok := intent.Attributes["id"]; ok && id != "" {
		b.add("#"+cssEscapeIdent(id), schemas.OriginID)
	}
	if intent.TestID != "" {
		b.add(fmt.Sprintf(`[data-testid=%s]`, cssString(intent.TestID)), schemas.OriginTestID)
		b.add(fmt.Sprintf(`[data-test-id=%s]`, cssString(intent.TestID)), schemas.OriginTestID)
	}

	g.addRoleText(b, intent)
	g.addAttributes(b, intent)
	g.addPosition(b, intent)
	g.addText(b, intent)
	g.addRole(b, intent)
	g.addProximity(b, intent, neighborSelector)
	g.addClass(b, intent)

	candidates := b.candidates
	if region, ok := regionPrefix(intent, table); ok {
		candidates = scopeToRegion(candidates, region)
	}

	g.logger.Debug("Generated candidates.",
		zap.String("intent", intent.String()),
		zap.Int("count", len(candidates)))
	return candidates
}

// addRoleText emits selectors combining the element's role with its
// visible text, the most reliable generated strategy for buttons and
// links.
func (g *Generator) addRoleText(b *candidateBuilder, intent *schemas.SearchIntent) {
	if intent.Role == "" || intent.Text == "" {
		return
	}
	lit := xpathLiteral(intent.Text)
	for _, tag := range roleTags(intent.Role) {
		b.add(fmt.Sprintf(`//%s[normalize-space(.)=%s]`, tag, lit), schemas.OriginRoleText)
	}
	b.add(fmt.Sprintf(`//*[@role=%s and normalize-space(.)=%s]`, xpathLiteral(intent.Role), lit), schemas.OriginRoleText)
}

// addAttributes emits attribute-based CSS selectors: first one selector
// combining every attribute, then one per attribute.
func (g *Generator) addAttributes(b *candidateBuilder, intent *schemas.SearchIntent) {
	base := intent.Tag

	type attr struct{ name, value string }
	var attrs []attr
	if intent.Placeholder != "" {
		attrs = append(attrs, attr{"placeholder", intent.Placeholder})
	}
	if intent.Label != "" {
		attrs = append(attrs, attr{"aria-label", intent.Label})
	}
	keys := make([]string, 0, len(intent.Attributes))
	for k := range intent.Attributes {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attr{k, intent.Attributes[k]})
	}
	if len(attrs) == 0 {
		return
	}

	var combined strings.Builder
	combined.WriteString(base)
	for _, a := range attrs {
		fmt.Fprintf(&combined, "[%s=%s]", a.name, cssString(a.value))
	}
	b.add(combined.String(), schemas.OriginAttribute)

	if len(attrs) > 1 {
		for _, a := range attrs {
			b.add(fmt.Sprintf("%s[%s=%s]", base, a.name, cssString(a.value)), schemas.OriginAttribute)
		}
	}
}

// addPosition emits nth-of-type selectors for positional intents.
func (g *Generator) addPosition(b *candidateBuilder, intent *schemas.SearchIntent) {
	if intent.Position <= 0 {
		return
	}
	if intent.Tag != "" {
		b.add(fmt.Sprintf("%s:nth-of-type(%d)", intent.Tag, intent.Position), schemas.OriginPosition)
	}
	if intent.ClassHint != "" {
		b.add(fmt.Sprintf(".%s:nth-of-type(%d)", cssEscapeIdent(intent.ClassHint), intent.Position), schemas.OriginPosition)
	}
}

// addText emits text-matching XPath candidates: exact match first, then a
// case-insensitive containment fallback.
func (g *Generator) addText(b *candidateBuilder, intent *schemas.SearchIntent) {
	if intent.Text == "" {
		return
	}
	scope := "*"
	if intent.Tag != "" {
		scope = intent.Tag
	}
	lit := xpathLiteral(intent.Text)
	b.add(fmt.Sprintf(`//%s[normalize-space(text())=%s]`, scope, lit), schemas.OriginText)

	lower := xpathLiteral(strings.ToLower(intent.Text))
	b.add(fmt.Sprintf(
		`//%s[contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %s)]`,
		scope, lower), schemas.OriginText)
}

// addRole emits role-only candidates.
func (g *Generator) addRole(b *candidateBuilder, intent *schemas.SearchIntent) {
	if intent.Role == "" {
		return
	}
	b.add(fmt.Sprintf(`[role=%s]`, cssString(intent.Role)), schemas.OriginRole)
	for _, tag := range roleTags(intent.Role) {
		b.add(tag, schemas.OriginRole)
	}
}

// addProximity emits sibling selectors anchored on the already resolved
// neighbor.
func (g *Generator) addProximity(b *candidateBuilder, intent *schemas.SearchIntent, neighborSelector string) {
	if neighborSelector == "" {
		return
	}
	target := intent.Tag
	if target == "" {
		target = "*"
	}
	if strings.HasPrefix(neighborSelector, "/") || strings.HasPrefix(neighborSelector, "(") {
		b.add(fmt.Sprintf("%s/following-sibling::%s[1]", neighborSelector, target), schemas.OriginProximity)
		b.add(fmt.Sprintf("%s/following-sibling::%s", neighborSelector, target), schemas.OriginProximity)
		return
	}
	if target == "*" {
		target = ""
	}
	b.add(fmt.Sprintf("%s + %s", neighborSelector, orStar(target)), schemas.OriginProximity)
	b.add(fmt.Sprintf("%s ~ %s", neighborSelector, orStar(target)), schemas.OriginProximity)
}

// addClass emits the lowest-precision strategy, one class name.
func (g *Generator) addClass(b *candidateBuilder, intent *schemas.SearchIntent) {
	if intent.ClassHint == "" {
		return
	}
	class := cssEscapeIdent(intent.ClassHint)
	if intent.Tag != "" {
		b.add(fmt.Sprintf("%s.%s", intent.Tag, class), schemas.OriginClass)
	}
	b.add("."+class, schemas.OriginClass)
}

// candidateBuilder accumulates candidates, dropping duplicates and
// expressions that fail the cheap syntax check.
type candidateBuilder struct {
	candidates []schemas.Candidate
	seen       map[string]bool
}

func (b *candidateBuilder) add(expr string, origin schemas.CandidateOrigin) {
	expr = strings.TrimSpace(expr)
	if expr == "" || b.seen[expr] || !plausibleExpression(expr) {
		return
	}
	b.seen[expr] = true
	b.candidates = append(b.candidates, schemas.Candidate{Expression: expr, Origin: origin})
}

// plausibleExpression is a cheap sanity filter: balanced brackets and
// quotes. Anything that fails here would only waste a round trip to the
// page.
func plausibleExpression(expr string) bool {
	var brackets, parens int
	inSingle, inDouble := false, false
	for _, r := range expr {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '[':
			if !inSingle && !inDouble {
				brackets++
			}
		case ']':
			if !inSingle && !inDouble {
				brackets--
			}
		case '(':
			if !inSingle && !inDouble {
				parens++
			}
		case ')':
			if !inSingle && !inDouble {
				parens--
			}
		}
		if brackets < 0 || parens < 0 {
			return false
		}
	}
	return brackets == 0 && parens == 0 && !inSingle && !inDouble
}

// regionPrefix resolves the intent's region (or context) to a container
// selector.
func regionPrefix(intent *schemas.SearchIntent, table *sites.Table) (string, bool) {
	if intent.Region != "" {
		if sel, ok := table.Region(intent.Region); ok {
			return sel, true
		}
	}
	switch intent.Context {
	case schemas.ContextForm:
		return "form", true
	case schemas.ContextDialog:
		return `[role="dialog"]`, true
	}
	return "", false
}

// scopeToRegion prefixes CSS candidates with the region container. XPath
// candidates pass through unscoped; their axes already bind them to
// specific anchors.
func scopeToRegion(candidates []schemas.Candidate, region string) []schemas.Candidate {
	out := make([]schemas.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.IsXPath() {
			c.Expression = region + " " + c.Expression
		}
		out = append(out, c)
	}
	return out
}

// roleTags maps an ARIA role to the HTML tags that carry it implicitly.
func roleTags(role string) []string {
	switch role {
	case "button":
		return []string{"button"}
	case "link":
		return []string{"a"}
	case "textbox", "searchbox":
		return []string{"input", "textarea"}
	case "checkbox", "radio":
		return []string{"input"}
	case "combobox", "listbox":
		return []string{"select"}
	case "heading":
		return []string{"h1", "h2", "h3"}
	default:
		return nil
	}
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// cssString renders a double-quoted CSS string literal.
func cssString(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

// cssEscapeIdent escapes the characters that would terminate a CSS
// identifier.
func cssEscapeIdent(v string) string {
	var sb strings.Builder
	for _, r := range v {
		switch r {
		case ' ', '"', '\'', '#', '.', '[', ']', '(', ')', ':', '>', '~', '+':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// xpathLiteral renders a string as an XPath literal, using concat() when
// the value mixes quote characters.
func xpathLiteral(v string) string {
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	parts := strings.Split(v, "'")
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString("'" + p + "'")
	}
	sb.WriteString(")")
	return sb.String()
}
