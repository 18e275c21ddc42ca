package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webpilot9/webpilot/internal/config"
)

func defaultScorer() *Scorer {
	return NewScorer(config.NewDefaultConfig().Locator)
}

func TestScoreComponents(t *testing.T) {
	s := defaultScorer()

	testCases := []struct {
		name         string
		expression   string
		matchCount   int
		firstVisible bool
		want         int
	}{
		{"unique visible plain", "button", 1, true, 100},
		{"id anchored", "#login", 1, true, 150},
		{"extra matches cost ten each", "button", 3, true, 80},
		{"descendant steps cost five each", "#search a.link", 1, true, 145},
		{"attribute predicates cost three each", `input[name="q"][type="text"]`, 1, true, 94},
		{"invisible first match", "button", 1, false, 70},
		{"floors at zero", ".x .x .x .x .x .x .x .x .x .x .x .x .x .x .x .x .x .x .x .x .x", 12, false, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Score(tc.expression, tc.matchCount, tc.firstVisible)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScoreIgnoresQuotedSpacesAndBrackets(t *testing.T) {
	s := defaultScorer()

	// The space inside the attribute value is not a descendant step.
	quoted := s.Score(`[aria-label="Sign in"]`, 1, true)
	unquoted := s.Score(`[aria-label=signin]`, 1, true)
	assert.Equal(t, unquoted, quoted)

	// Brackets inside XPath string literals are not attribute predicates.
	assert.Equal(t,
		s.Score(`//button[text()='ok']`, 1, true),
		s.Score(`//button[text()='[ok]']`, 1, true))
}

func TestCountOutsideQuotes(t *testing.T) {
	assert.Equal(t, 1, countOutsideQuotes(`#search a`, ' '))
	assert.Equal(t, 0, countOutsideQuotes(`[aria-label="Sign in now"]`, ' '))
	assert.Equal(t, 1, countOutsideQuotes(`//a[contains(., "x y")]`, '['))
	assert.Equal(t, 2, countOutsideQuotes(`input[name='q'][type='text']`, '['))
}

func TestScoreRanksUniqueVisibleAboveMultiMatch(t *testing.T) {
	s := defaultScorer()

	unique := s.Score(`[data-testid="go"]`, 1, true)
	ambiguous := s.Score("button", 5, true)
	assert.Greater(t, unique, ambiguous)
}

func TestScoreRanksVisibleAboveInvisible(t *testing.T) {
	s := defaultScorer()

	visible := s.Score("button.primary", 1, true)
	invisible := s.Score("button.primary", 1, false)
	assert.Greater(t, visible, invisible)
}
