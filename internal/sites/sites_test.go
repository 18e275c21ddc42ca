package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForURL(t *testing.T) {
	assert.Equal(t, "google", ForURL("www.google.com").Name)
	assert.Equal(t, "square", ForURL("app.squareup.com").Name)
	assert.Equal(t, "square", ForURL("app.squareupstaging.com").Name)
	assert.Nil(t, ForURL("example.org"))
}

func TestGoogleResultType(t *testing.T) {
	testCases := []struct {
		classes string
		want    string
	}{
		{"zReHs", ResultOrganic},
		{"zReHs Ww4FFb", ResultAdvertisement},
		{"zReHs ruhjFe", ResultFeatured},
		{"zReHs kpgb", ResultKnowledge},
		{"", ResultOrganic},
		// Substrings of a marker class must not match.
		{"zReHs Ww4FFbX", ResultOrganic},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, GoogleResultType(tc.classes), "classes %q", tc.classes)
	}
}

func TestGoogleResultByIndex(t *testing.T) {
	assert.Equal(t, "(a.zReHs:not(.Ww4FFb)):nth-of-type(2)", GoogleResultByIndex(2, ResultOrganic))
	assert.Equal(t, "(a.zReHs.Ww4FFb):nth-of-type(1)", GoogleResultByIndex(1, ResultAdvertisement))
	// Unknown types fall back to organic.
	assert.Equal(t, "(a.zReHs:not(.Ww4FFb)):nth-of-type(3)", GoogleResultByIndex(3, "mystery"))
}

func TestSquareTable(t *testing.T) {
	table := Square()
	require.NotNil(t, table)

	assert.NotEmpty(t, table.Seeds("email_input"))
	assert.Contains(t, table.Components, "market-button")
	assert.Contains(t, table.LoadingIndicators, `[role="progressbar"]`)

	sel, ok := table.Region("login_form")
	require.True(t, ok)
	assert.Equal(t, "[data-test-form]", sel)

	_, ok = table.Region("missing")
	assert.False(t, ok)
}

func TestTableNilSafety(t *testing.T) {
	var table *Table
	assert.Nil(t, table.Seeds("anything"))
	_, ok := table.Region("anything")
	assert.False(t, ok)
}
