package schemas

import (
	"context"
	"time"
)

// WaitUntil names the document lifecycle event a navigation waits for.
type WaitUntil string

const (
	WaitLoad        WaitUntil = "load"
	WaitDOMContent  WaitUntil = "domcontentloaded"
	WaitNetworkIdle WaitUntil = "networkidle"
)

// NavigateResult carries the observable outcome of a full navigation.
type NavigateResult struct {
	Status   int    `json:"status"`
	FinalURL string `json:"finalUrl"`
}

// PageDriver is the narrow browser surface the locator, executor and
// flows are written against. The production implementation drives a
// Chrome tab over CDP; tests substitute an in-memory fake.
//
// Selector arguments accept CSS selectors, or XPath when the expression
// starts with "/" or "(".
type PageDriver interface {
	// Navigate performs a full page load and reports the final status.
	Navigate(ctx context.Context, url string, waitUntil WaitUntil, timeout time.Duration) (*NavigateResult, error)

	// CurrentURL returns the tab's current location.
	CurrentURL(ctx context.Context) (string, error)

	// Evaluate calls the JavaScript function declaration fnDecl with the
	// given arguments and unmarshals the awaited result into res. Args
	// are JSON-encoded on the Go side; callers never interpolate values
	// into script text. A nil res discards the result.
	Evaluate(ctx context.Context, fnDecl string, res any, args ...any) error

	// QueryCount returns how many nodes the selector matches right now.
	QueryCount(ctx context.Context, selector string) (int, error)

	// WaitForSelector blocks until the selector matches at least one
	// node or the timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// Click dispatches a trusted click on the first match.
	Click(ctx context.Context, selector string) error

	// Fill clears the first match and types value into it.
	Fill(ctx context.Context, selector, value string) error

	// PressKey sends a key (e.g. "Enter") to the first match.
	PressKey(ctx context.Context, selector, key string) error

	// ClickAt dispatches a trusted click at viewport coordinates.
	ClickAt(ctx context.Context, x, y float64) error

	// InsertText types text at the current focus.
	InsertText(ctx context.Context, text string) error

	// Geometry returns the border box of the first match.
	Geometry(ctx context.Context, selector string) (ElementGeometry, error)

	// IsVisible reports whether the first match is rendered with area
	// and not hidden by CSS.
	IsVisible(ctx context.Context, selector string) (bool, error)

	// IsEnabled reports whether the first match accepts input.
	IsEnabled(ctx context.Context, selector string) (bool, error)

	// ScrollIntoView scrolls the first match into the viewport.
	ScrollIntoView(ctx context.Context, selector string) error

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// ArtifactSink persists debug artifacts produced during flows. Sinks
// must be safe to call with a best-effort contract; failures are logged
// by the sink, never surfaced to the flow.
type ArtifactSink interface {
	SaveScreenshot(name string, png []byte)
	SaveJSON(name string, v any)
}
