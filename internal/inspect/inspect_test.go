package inspect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/mocks"
)

func TestInspectPageUsesSingleRoundTrip(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		require.Len(t, args, 1)
		opts, ok := args[0].(Options)
		require.True(t, ok)
		assert.Equal(t, 10, opts.MaxElements)

		*(res.(*schemas.PageSnapshot)) = schemas.PageSnapshot{
			URL:   "https://example.com",
			Title: "Example",
			Elements: []schemas.ElementInfo{
				{Tag: "a", Text: "More", Visible: true, Clickable: true},
				{Tag: "div", Text: "copy", Visible: true},
			},
		}
		return nil
	}

	pi := NewPageInspector(driver, nil)
	snap, err := pi.InspectPage(context.Background(), Options{MaxElements: 10})
	require.NoError(t, err)

	assert.Equal(t, "Example", snap.Title)
	assert.Len(t, snap.Elements, 2)
	assert.Equal(t, 1, driver.CallCount("Evaluate"), "the traversal must be one script round trip")
}

func TestFindClickableFiltersInvisible(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		*(res.(*schemas.PageSnapshot)) = schemas.PageSnapshot{
			Elements: []schemas.ElementInfo{
				{Tag: "button", Text: "Go", Visible: true, Clickable: true},
				{Tag: "button", Text: "Hidden", Visible: false, Clickable: true},
				{Tag: "a", Text: "Decor", Visible: true, Clickable: false},
			},
		}
		return nil
	}

	pi := NewPageInspector(driver, nil)
	els, err := pi.FindClickable(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, els, 1)
	assert.Equal(t, "Go", els[0].Text)
}

const outlineFixture = `<!DOCTYPE html>
<html><head><title>Login Page</title></head>
<body>
  <form id="login">
    <label for="email">Email</label>
    <input id="email" name="email" type="email" placeholder="you@example.com">
    <input id="password" name="password" type="password">
    <button data-testid="submit" class="btn primary">Sign in</button>
  </form>
  <div style="display:none" id="ghost">invisible</div>
  <a href="/help" role="link">Help</a>
</body></html>`

func TestOutlineHTML(t *testing.T) {
	snap, err := OutlineHTML(outlineFixture, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Login Page", snap.Title)
	require.NotEmpty(t, snap.Elements)

	byID := map[string]schemas.ElementInfo{}
	for _, el := range snap.Elements {
		if el.ID != "" {
			byID[el.ID] = el
		}
	}

	email, ok := byID["email"]
	require.True(t, ok)
	assert.Equal(t, "input", email.Tag)
	assert.True(t, email.Clickable)
	assert.Equal(t, "you@example.com", email.Attributes["placeholder"])

	ghost, ok := byID["ghost"]
	require.True(t, ok)
	assert.False(t, ghost.Visible)
}

func TestOutlineHTMLTagFilterAndBudget(t *testing.T) {
	snap, err := OutlineHTML(outlineFixture, Options{Tags: []string{"input"}})
	require.NoError(t, err)

	require.Len(t, snap.Elements, 2)
	for _, el := range snap.Elements {
		assert.Equal(t, "input", el.Tag)
	}

	small, err := OutlineHTML(outlineFixture, Options{MaxElements: 3})
	require.NoError(t, err)
	assert.Len(t, small.Elements, 3)
	assert.True(t, small.Truncated)
}

func TestOutlineHTMLScoped(t *testing.T) {
	snap, err := OutlineHTML(outlineFixture, Options{Selector: `//form[@id="login"]`, Tags: []string{"button"}})
	require.NoError(t, err)

	require.Len(t, snap.Elements, 1)
	assert.Equal(t, "Sign in", snap.Elements[0].Text)
	assert.Equal(t, "submit", snap.Elements[0].Attributes["data-testid"])
}
