// internal/locator/scorer.go
package locator

import (
	"strings"

	"github.com/webpilot9/webpilot/internal/config"
)

// Scorer ranks candidates against the live page. A higher score means a
// more specific, more likely-correct selector.
type Scorer struct {
	cfg config.LocatorConfig
}

// NewScorer builds a Scorer from the locator tunables.
func NewScorer(cfg config.LocatorConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes a candidate's score from its live match count and the
// visibility of its first match. The score reflects four signals:
//
//   - uniqueness: every match beyond the first costs ExtraMatchPenalty
//   - anchoring: an id-anchored selector earns IDBonus
//   - structural depth: each descendant step costs DescendantPenalty and
//     each attribute predicate costs AttributePenalty
//   - usability: an invisible first match costs InvisibleFirstPenalty
//
// Scores never go below zero.
func (s *Scorer) Score(expression string, matchCount int, firstVisible bool) int {
	score := s.cfg.BaseScore

	if matchCount > 1 {
		score -= (matchCount - 1) * s.cfg.ExtraMatchPenalty
	}
	if strings.HasPrefix(expression, "#") {
		score += s.cfg.IDBonus
	}
	score -= countOutsideQuotes(expression, ' ') * s.cfg.DescendantPenalty
	score -= countOutsideQuotes(expression, '[') * s.cfg.AttributePenalty
	if !firstVisible {
		score -= s.cfg.InvisibleFirstPenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}

// countOutsideQuotes counts occurrences of c that are not inside a
// quoted string, so spaces and brackets in attribute values or XPath
// literals do not read as structural complexity.
func countOutsideQuotes(expression string, c rune) int {
	var n int
	inSingle, inDouble := false, false
	for _, r := range expression {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == c && !inSingle && !inDouble:
			n++
		}
	}
	return n
}
