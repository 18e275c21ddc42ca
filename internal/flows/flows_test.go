package flows

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
	"github.com/webpilot9/webpilot/internal/interact"
	"github.com/webpilot9/webpilot/internal/locator"
	"github.com/webpilot9/webpilot/internal/mocks"
	"github.com/webpilot9/webpilot/internal/nav"
	"github.com/webpilot9/webpilot/internal/shadow"
)

// testDeps wires real components over a fake driver with timings tuned
// for the test runner.
func testDeps(driver *mocks.FakeDriver) (Deps, *mocks.RecordingSink) {
	locCfg := config.NewDefaultConfig().Locator
	locCfg.SettleWindow = time.Millisecond
	locCfg.ResolveTimeout = 2 * time.Second
	locCfg.PageReadyTimeout = time.Second

	netCfg := config.NetworkConfig{
		NavigationTimeout:    2 * time.Second,
		PostLoadWait:         time.Millisecond,
		NavigationsPerSecond: 100,
		NavigationBurst:      10,
	}
	intCfg := config.InteractionConfig{MaxAttempts: 2, Backoff: time.Millisecond}

	loc := locator.New(driver, nil, locCfg, nil)
	sink := mocks.NewRecordingSink()

	return Deps{
		Driver:   driver,
		Nav:      nav.NewController(driver, netCfg, locCfg, nil),
		Locator:  loc,
		Executor: interact.NewExecutor(driver, loc, intCfg, nil),
		Shadow:   shadow.NewComponentInspector(driver, nil),
		Sink:     sink,
	}, sink
}

// readyElement is a visible, enabled element the locator will accept.
func readyElement(selector string) *mocks.FakeElement {
	return &mocks.FakeElement{
		Selector: selector,
		Visible:  true,
		Enabled:  true,
		Geometry: schemas.ElementGeometry{X: 10, Y: 10, Width: 100, Height: 30},
	}
}

func TestCheckpointSurvivesCanceledContext(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.ScreenshotFunc = func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("png"), nil
	}
	deps, sink := testDeps(driver)
	deps.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An error checkpoint after a step timeout must still capture.
	deps.checkpoint(ctx, "error-verify")
	assert.Contains(t, sink.Screenshots, "error-verify")
}

// googleEvaluate dispatches the scripts the Google flow issues: page
// readiness, occlusion probes, in-viewport probes and the result
// harvest.
func googleEvaluate(links []harvestedLink) func(ctx context.Context, fnDecl string, res any, args ...any) error {
	return func(ctx context.Context, fnDecl string, res any, args ...any) error {
		switch {
		case strings.Contains(fnDecl, "readyState"):
			if b, ok := res.(*bool); ok {
				*b = true
			}
		case strings.Contains(fnDecl, "querySelectorAll(linkSelector)"):
			if out, ok := res.(*[]harvestedLink); ok {
				*out = links
			}
		case strings.Contains(fnDecl, "elementFromPoint"):
			if b, ok := res.(*bool); ok {
				*b = false
			}
		case strings.Contains(fnDecl, "customElements.get"):
			if b, ok := res.(*bool); ok {
				*b = true
			}
		}
		return nil
	}
}

func googleResultFixture() []harvestedLink {
	return []harvestedLink{
		{Title: "Go Programming Language", Href: "https://go.dev", Classes: "zReHs"},
		{Title: "Sponsored Go Course", Href: "https://ads.example", Classes: "zReHs Ww4FFb"},
		{Title: "Go Tutorial for Beginners", Href: "https://tutorial.example", Classes: "zReHs"},
	}
}

func googlePage(driver *mocks.FakeDriver, links []harvestedLink) {
	driver.EvaluateFunc = googleEvaluate(links)
	driver.AddElement(readyElement(`[name="q"]`))
	driver.AddElement(readyElement("#search"))
}

func TestGoogleSearchHarvestsResults(t *testing.T) {
	driver := mocks.NewFakeDriver()
	googlePage(driver, googleResultFixture())
	deps, sink := testDeps(driver)
	flow := NewGoogleFlow(deps)

	report, err := flow.Search(context.Background(), SearchOptions{Query: "golang"})
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "Go Programming Language", report.Results[0].Title)
	assert.Equal(t, "organic", report.Results[0].Type)
	assert.Equal(t, "advertisement", report.Results[1].Type)
	assert.False(t, report.Clicked)

	// The query was typed into the search box and submitted.
	el, ok := driver.Element(`[name="q"]`)
	require.True(t, ok)
	assert.Equal(t, "golang", el.Value)
	assert.Equal(t, 1, driver.CallCount("PressKey"))

	assert.Contains(t, sink.JSONs, "google-search-results")
	assert.Contains(t, sink.Screenshots, "google-search")
}

func TestGoogleSearchEmptyQuery(t *testing.T) {
	deps, _ := testDeps(mocks.NewFakeDriver())
	flow := NewGoogleFlow(deps)

	_, err := flow.Search(context.Background(), SearchOptions{Query: "   "})
	assert.Error(t, err)
}

func TestGoogleSearchClickByText(t *testing.T) {
	driver := mocks.NewFakeDriver()
	googlePage(driver, googleResultFixture())
	// "Tutorial" is the second organic result, so the ordinal selector
	// targets position 2 of the organic link set.
	target := "(a.zReHs:not(.Ww4FFb)):nth-of-type(2)"
	driver.AddElement(readyElement(target))
	deps, _ := testDeps(driver)
	flow := NewGoogleFlow(deps)

	report, err := flow.Search(context.Background(), SearchOptions{Query: "golang", ClickText: "tutorial"})
	require.NoError(t, err)
	assert.True(t, report.Clicked)

	clicks := 0
	for _, c := range driver.Calls() {
		if c.Method == "Click" && c.Args[0] == target {
			clicks++
		}
	}
	assert.Equal(t, 1, clicks)
}

func TestGoogleSearchClickByTextSkipsAds(t *testing.T) {
	driver := mocks.NewFakeDriver()
	googlePage(driver, googleResultFixture())
	deps, _ := testDeps(driver)
	flow := NewGoogleFlow(deps)

	// The only match is an advertisement, which the default allowed
	// types exclude.
	report, err := flow.Search(context.Background(), SearchOptions{Query: "golang", ClickText: "Sponsored"})
	var notFound *schemas.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.False(t, report.Clicked)
}

func TestGoogleSearchClickByIndex(t *testing.T) {
	driver := mocks.NewFakeDriver()
	googlePage(driver, googleResultFixture())
	target := "(a.zReHs:not(.Ww4FFb)):nth-of-type(1)"
	driver.AddElement(readyElement(target))
	deps, _ := testDeps(driver)
	flow := NewGoogleFlow(deps)

	report, err := flow.Search(context.Background(), SearchOptions{Query: "golang", ClickIndex: 1, EnsureVisible: true})
	require.NoError(t, err)
	assert.True(t, report.Clicked)
	assert.GreaterOrEqual(t, driver.CallCount("ScrollIntoView"), 1)
}

func squarePage(driver *mocks.FakeDriver) {
	driver.EvaluateFunc = googleEvaluate(nil)
	driver.AddElement(readyElement("#mpui-combo-field-input"))
	driver.AddElement(readyElement(`[data-testid="login-email-next-button"]`))
	driver.AddElement(readyElement(`input[type="password"]`))
	driver.AddElement(readyElement(`market-button[data-testid="sign-in-button"]`))
	driver.AddElement(readyElement(`[data-testid="dashboard-container"]`))
}

func TestSquareLoginHappyPath(t *testing.T) {
	driver := mocks.NewFakeDriver()
	squarePage(driver)
	deps, sink := testDeps(driver)
	flow := NewSquareFlow(deps)

	report, err := flow.Login(context.Background(), LoginOptions{
		Email:    "merchant@example.com",
		Password: "hunter2!",
		Staging:  true,
	})
	require.NoError(t, err)
	assert.True(t, report.Succeeded)

	email, ok := driver.Element("#mpui-combo-field-input")
	require.True(t, ok)
	assert.Equal(t, "merchant@example.com", email.Value)

	pw, ok := driver.Element(`input[type="password"]`)
	require.True(t, ok)
	assert.Equal(t, "hunter2!", pw.Value)

	for _, name := range []string{"01-initial-page", "02-email-entered", "03-after-continue", "04-password-entered", "05-after-signin"} {
		assert.Contains(t, sink.Screenshots, name, name)
	}
}

func TestSquareLoginNavigatesToStaging(t *testing.T) {
	driver := mocks.NewFakeDriver()
	squarePage(driver)
	deps, _ := testDeps(driver)
	flow := NewSquareFlow(deps)

	_, err := flow.Login(context.Background(), LoginOptions{Email: "a@b.c", Password: "x", Staging: true})
	require.NoError(t, err)

	var navigated string
	for _, c := range driver.Calls() {
		if c.Method == "Navigate" {
			navigated, _ = c.Args[0].(string)
		}
	}
	assert.Equal(t, "https://app.squareupstaging.com/login", navigated)
}

func TestSquareLoginDismissesCookieConsent(t *testing.T) {
	driver := mocks.NewFakeDriver()
	squarePage(driver)
	driver.AddElement(readyElement("#onetrust-accept-btn-handler"))
	deps, _ := testDeps(driver)
	flow := NewSquareFlow(deps)

	_, err := flow.Login(context.Background(), LoginOptions{Email: "a@b.c", Password: "x"})
	require.NoError(t, err)

	consentClicked := false
	for _, c := range driver.Calls() {
		if c.Method == "Click" && c.Args[0] == "#onetrust-accept-btn-handler" {
			consentClicked = true
		}
	}
	assert.True(t, consentClicked)
}

func TestSquareLoginShadowFallbackForEmail(t *testing.T) {
	driver := mocks.NewFakeDriver()
	squarePage(driver)
	// The combo field is only reachable through the component's shadow
	// root on this rendering.
	driver.RemoveElement("#mpui-combo-field-input")

	var shadowFilled string
	base := googleEvaluate(nil)
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		if strings.Contains(fnDecl, "target.value = value") {
			shadowFilled, _ = args[2].(string)
			if b, ok := res.(*bool); ok {
				*b = true
			}
			return nil
		}
		return base(ctx, fnDecl, res, args...)
	}

	deps, _ := testDeps(driver)
	flow := NewSquareFlow(deps)

	report, err := flow.Login(context.Background(), LoginOptions{Email: "shadow@example.com", Password: "x"})
	require.NoError(t, err)
	assert.True(t, report.Succeeded)
	assert.Equal(t, "shadow@example.com", shadowFilled)
}

func TestSquareLoginVerificationFailure(t *testing.T) {
	driver := mocks.NewFakeDriver()
	squarePage(driver)
	driver.RemoveElement(`[data-testid="dashboard-container"]`)
	deps, sink := testDeps(driver)
	flow := NewSquareFlow(deps)

	report, err := flow.Login(context.Background(), LoginOptions{Email: "a@b.c", Password: "x"})
	var navErr *schemas.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.False(t, report.Succeeded)
	assert.Contains(t, sink.Screenshots, "error-verify")
}

func TestSquareLoginRequiresCredentials(t *testing.T) {
	deps, _ := testDeps(mocks.NewFakeDriver())
	flow := NewSquareFlow(deps)

	_, err := flow.Login(context.Background(), LoginOptions{Email: "a@b.c"})
	assert.Error(t, err)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "https://app.squareup.com/login", LoginURL(false))
	assert.Equal(t, "https://app.squareupstaging.com/login", LoginURL(true))
}
