package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
	"github.com/webpilot9/webpilot/internal/mocks"
)

// testEvaluate answers page-ready, occlusion, component and shadow-read
// probes so real components work over the fake driver.
func testEvaluate(driver *mocks.FakeDriver, shadowValues map[string]string) {
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		switch {
		case strings.Contains(fnDecl, "readyState"):
			if b, ok := res.(*bool); ok {
				*b = true
			}
		case strings.Contains(fnDecl, "customElements.get"):
			if b, ok := res.(*bool); ok {
				*b = true
			}
		case strings.Contains(fnDecl, "String(target.value)"):
			if s, ok := res.(*string); ok {
				host, _ := args[0].(string)
				*s = shadowValues[host]
			}
		case strings.Contains(fnDecl, "target.value = value"):
			host, _ := args[0].(string)
			value, _ := args[2].(string)
			shadowValues[host] = value
		case strings.Contains(fnDecl, "elementFromPoint"):
			if b, ok := res.(*bool); ok {
				*b = false
			}
		}
		return nil
	}
}

// testServer wires a Server over a fake driver and returns a connected
// client session.
func testServer(t *testing.T) (*Server, *mocks.FakeDriver, *mcp.ClientSession) {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Locator.SettleWindow = time.Millisecond
	cfg.Locator.ResolveTimeout = 2 * time.Second
	cfg.Locator.PageReadyTimeout = time.Second
	cfg.Interaction.Backoff = time.Millisecond
	cfg.Network.PostLoadWait = time.Millisecond
	cfg.Network.NavigationsPerSecond = 100

	driver := mocks.NewFakeDriver()
	testEvaluate(driver, map[string]string{})

	srv := NewServer(cfg, mocks.NewRecordingSink(), nil)
	srv.launch = func(ctx context.Context) (schemas.PageDriver, func(context.Context) error, error) {
		return driver, func(context.Context) error { return nil }, nil
	}

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.mcpServer.Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "webpilot-test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return srv, driver, session
}

// callTool invokes a tool and returns the text payload and the tool
// error, if any. Tool errors only reach the client as IsError plus the
// message in the content, so that is what gets surfaced.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "protocol error calling %s", name)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	if result.IsError {
		return "", errors.New(tc.Text)
	}
	return tc.Text, nil
}

func launch(t *testing.T, session *mcp.ClientSession) {
	t.Helper()
	text, err := callTool(t, session, "launch_browser", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, text, "launched")
}

func TestToolsRequireLaunchedBrowser(t *testing.T) {
	_, _, session := testServer(t)

	_, err := callTool(t, session, "navigate_to", map[string]any{"url": "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch_browser")
	assert.Contains(t, err.Error(), kindInternal)
}

func TestLaunchBrowserTwice(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	_, err := callTool(t, session, "launch_browser", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
}

func TestNavigateTo(t *testing.T) {
	_, driver, session := testServer(t)
	launch(t, session)

	text, err := callTool(t, session, "navigate_to", map[string]any{"url": "https://example.com/login"})
	require.NoError(t, err)

	var res schemas.NavigateResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, 1, driver.CallCount("Navigate"))
}

func TestNavigateToMissingURL(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	_, err := callTool(t, session, "navigate_to", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), kindInvalidParams)
}

func TestClickElement(t *testing.T) {
	_, driver, session := testServer(t)
	launch(t, session)
	driver.AddElement(&mocks.FakeElement{
		Selector: `[data-testid="submit"]`,
		Visible:  true,
		Enabled:  true,
		Geometry: schemas.ElementGeometry{X: 5, Y: 5, Width: 50, Height: 20},
	})

	text, err := callTool(t, session, "click_element", map[string]any{
		"intent": map[string]any{"testId": "submit"},
	})
	require.NoError(t, err)
	assert.Contains(t, text, `"mechanismUsed":"native"`)
	assert.Equal(t, 1, driver.CallCount("Click"))
}

func TestClickElementNotFound(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	_, err := callTool(t, session, "click_element", map[string]any{
		"intent": map[string]any{"testId": "does-not-exist"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), kindElementNotFound)
}

func TestClickElementInvalidIntent(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	_, err := callTool(t, session, "click_element", map[string]any{
		"intent": map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), kindInvalidParams)
}

func TestFillElement(t *testing.T) {
	_, driver, session := testServer(t)
	launch(t, session)
	driver.AddElement(&mocks.FakeElement{
		Selector: `[data-testid="email"]`,
		Visible:  true,
		Enabled:  true,
		Geometry: schemas.ElementGeometry{X: 5, Y: 5, Width: 50, Height: 20},
	})

	_, err := callTool(t, session, "fill_element", map[string]any{
		"intent": map[string]any{"testId": "email"},
		"text":   "user@example.com",
	})
	require.NoError(t, err)

	el, ok := driver.Element(`[data-testid="email"]`)
	require.True(t, ok)
	assert.Equal(t, "user@example.com", el.Value)
}

func TestWaitForComponents(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	text, err := callTool(t, session, "wait_for_components", map[string]any{
		"tags": []string{"market-button", "market-input-text"},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "market-button")
}

func TestWaitForComponentsEmptyTags(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	_, err := callTool(t, session, "wait_for_components", map[string]any{"tags": []string{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), kindInvalidParams)
}

func TestShadowFillAndReadRoundTrip(t *testing.T) {
	_, _, session := testServer(t)
	launch(t, session)

	_, err := callTool(t, session, "fill_in_shadow", map[string]any{
		"host":  "market-input-text",
		"inner": "input",
		"value": `pässwörd"with'quotes`,
	})
	require.NoError(t, err)

	text, err := callTool(t, session, "read_shadow_value", map[string]any{
		"host":  "market-input-text",
		"inner": "input",
	})
	require.NoError(t, err)

	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, `pässwörd"with'quotes`, res["value"])
}

func TestCloseBrowser(t *testing.T) {
	srv, _, session := testServer(t)
	launch(t, session)

	text, err := callTool(t, session, "close_browser", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, text, "closed")

	srv.mu.Lock()
	assert.Nil(t, srv.session)
	srv.mu.Unlock()

	_, err = callTool(t, session, "click_element", map[string]any{
		"intent": map[string]any{"testId": "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch_browser")
}

func TestErrorKindClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid params", invalidParams(assertionError("bad")), kindInvalidParams},
		{"element not found", &schemas.ElementNotFoundError{Intent: &schemas.SearchIntent{Text: "x"}}, kindElementNotFound},
		{"web component", &schemas.WebComponentError{TagName: "market-button", Op: "wait"}, kindWebComponent},
		{"interaction", &schemas.InteractionError{Action: schemas.Action{Kind: schemas.ActionClick}, Selector: "#a"}, kindInteraction},
		{"navigation", &schemas.NavigationError{URL: "https://x", Reason: "bad status"}, kindNavigation},
		{"other", assertionError("boom"), kindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
