package sites

import (
	"fmt"
	"strings"
)

// Result type names used to classify search result links.
const (
	ResultOrganic       = "organic"
	ResultFeatured      = "featured"
	ResultKnowledge     = "knowledge"
	ResultAdvertisement = "advertisement"
)

// googleResultLinks maps a result type to its link selector. The class
// names are Google's generated ones; Ww4FFb marks ads, ruhjFe featured
// snippets and kpgb knowledge panel links.
var googleResultLinks = map[string]string{
	ResultOrganic:       "a.zReHs:not(.Ww4FFb)",
	ResultFeatured:      "a.zReHs.ruhjFe",
	ResultKnowledge:     "a.zReHs.kpgb",
	ResultAdvertisement: "a.zReHs.Ww4FFb",
}

// Google returns the selector table for Google search pages.
func Google() *Table {
	return &Table{
		Name: "google",
		Roles: map[string][]string{
			"search_input":  {`[name="q"]`, `textarea[name="q"]`},
			"search_button": {`[name="btnK"]`},
			"result_link":   {googleResultLinks[ResultOrganic]},
			"next_page":     {"#pnnext"},
		},
		Regions: map[string]string{
			"results":          "#search",
			"featured_snippet": ".c2xzTb",
			"knowledge_panel":  ".kp-wholepage",
			"related_searches": ".gGQDvf",
		},
		LoadingIndicators: []string{
			`[role="progressbar"]`,
			`[aria-busy="true"]`,
		},
	}
}

// GoogleResultLinkSelector returns the link selector for a result type,
// falling back to organic for unknown types.
func GoogleResultLinkSelector(resultType string) string {
	if sel, ok := googleResultLinks[resultType]; ok {
		return sel
	}
	return googleResultLinks[ResultOrganic]
}

// GoogleResultByIndex returns the selector for the nth result link of a
// type (1-based).
func GoogleResultByIndex(index int, resultType string) string {
	return fmt.Sprintf("(%s):nth-of-type(%d)", GoogleResultLinkSelector(resultType), index)
}

// GoogleResultType classifies a result link from its class attribute.
func GoogleResultType(elementClasses string) string {
	switch {
	case containsClass(elementClasses, "Ww4FFb"):
		return ResultAdvertisement
	case containsClass(elementClasses, "ruhjFe"):
		return ResultFeatured
	case containsClass(elementClasses, "kpgb"):
		return ResultKnowledge
	default:
		return ResultOrganic
	}
}

func containsClass(classes, class string) bool {
	for _, c := range strings.Fields(classes) {
		if c == class {
			return true
		}
	}
	return false
}
