// Package mocks provides hand-rolled fakes for the narrow interfaces the
// pipeline is written against. The fake driver keeps a tiny in-memory page
// model so tests can describe a page's elements instead of scripting every
// call.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/webpilot9/webpilot/api/schemas"
)

// FakeElement is one element of the fake page model.
type FakeElement struct {
	Selector string
	Visible  bool
	Enabled  bool
	Geometry schemas.ElementGeometry
	// Matches overrides the match count (defaults to 1 when the element
	// exists).
	Matches int
	// Value holds the current input value for fill assertions.
	Value string
}

// Call records one driver invocation for assertions.
type Call struct {
	Method string
	Args   []any
}

// FakeDriver implements schemas.PageDriver against an in-memory page.
// Individual methods can be overridden with the corresponding Func field;
// a nil field falls through to the page-model default.
type FakeDriver struct {
	mu       sync.Mutex
	elements map[string]*FakeElement
	calls    []Call

	URL string

	NavigateFunc       func(ctx context.Context, url string, waitUntil schemas.WaitUntil, timeout time.Duration) (*schemas.NavigateResult, error)
	EvaluateFunc       func(ctx context.Context, fnDecl string, res any, args ...any) error
	QueryCountFunc     func(ctx context.Context, selector string) (int, error)
	ClickFunc          func(ctx context.Context, selector string) error
	FillFunc           func(ctx context.Context, selector, value string) error
	PressKeyFunc       func(ctx context.Context, selector, key string) error
	ClickAtFunc        func(ctx context.Context, x, y float64) error
	InsertTextFunc     func(ctx context.Context, text string) error
	GeometryFunc       func(ctx context.Context, selector string) (schemas.ElementGeometry, error)
	IsVisibleFunc      func(ctx context.Context, selector string) (bool, error)
	IsEnabledFunc      func(ctx context.Context, selector string) (bool, error)
	ScreenshotFunc     func(ctx context.Context) ([]byte, error)
	WaitForSelFunc     func(ctx context.Context, selector string, timeout time.Duration) error
	ScrollIntoViewFunc func(ctx context.Context, selector string) error
}

var _ schemas.PageDriver = (*FakeDriver)(nil)

// NewFakeDriver builds an empty fake page.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{elements: make(map[string]*FakeElement)}
}

// AddElement registers an element in the page model.
func (d *FakeDriver) AddElement(el *FakeElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el.Matches == 0 {
		el.Matches = 1
	}
	d.elements[el.Selector] = el
}

// RemoveElement drops an element, simulating DOM churn.
func (d *FakeDriver) RemoveElement(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, selector)
}

// Element returns the page model entry for a selector.
func (d *FakeDriver) Element(selector string) (*FakeElement, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[selector]
	return el, ok
}

// Calls returns a copy of the recorded invocations.
func (d *FakeDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallCount counts invocations of one method.
func (d *FakeDriver) CallCount(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (d *FakeDriver) record(method string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: method, Args: args})
}

func (d *FakeDriver) get(selector string) (*FakeElement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[selector]
	if !ok {
		return nil, fmt.Errorf("no node found for selector %q", selector)
	}
	return el, nil
}

func (d *FakeDriver) Navigate(ctx context.Context, url string, waitUntil schemas.WaitUntil, timeout time.Duration) (*schemas.NavigateResult, error) {
	d.record("Navigate", url, waitUntil)
	if d.NavigateFunc != nil {
		return d.NavigateFunc(ctx, url, waitUntil, timeout)
	}
	d.mu.Lock()
	d.URL = url
	d.mu.Unlock()
	return &schemas.NavigateResult{Status: 200, FinalURL: url}, nil
}

func (d *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	d.record("CurrentURL")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URL, nil
}

func (d *FakeDriver) Evaluate(ctx context.Context, fnDecl string, res any, args ...any) error {
	d.record("Evaluate", fnDecl, args)
	if d.EvaluateFunc != nil {
		return d.EvaluateFunc(ctx, fnDecl, res, args...)
	}
	return nil
}

func (d *FakeDriver) QueryCount(ctx context.Context, selector string) (int, error) {
	d.record("QueryCount", selector)
	if d.QueryCountFunc != nil {
		return d.QueryCountFunc(ctx, selector)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[selector]; ok {
		return el.Matches, nil
	}
	return 0, nil
}

func (d *FakeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	d.record("WaitForSelector", selector)
	if d.WaitForSelFunc != nil {
		return d.WaitForSelFunc(ctx, selector, timeout)
	}
	if _, ok := d.Element(selector); ok {
		return nil
	}
	return fmt.Errorf("timed out waiting for %q", selector)
}

func (d *FakeDriver) Click(ctx context.Context, selector string) error {
	d.record("Click", selector)
	if d.ClickFunc != nil {
		return d.ClickFunc(ctx, selector)
	}
	_, err := d.get(selector)
	return err
}

func (d *FakeDriver) Fill(ctx context.Context, selector, value string) error {
	d.record("Fill", selector, value)
	if d.FillFunc != nil {
		return d.FillFunc(ctx, selector, value)
	}
	el, err := d.get(selector)
	if err != nil {
		return err
	}
	d.mu.Lock()
	el.Value = value
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) PressKey(ctx context.Context, selector, key string) error {
	d.record("PressKey", selector, key)
	if d.PressKeyFunc != nil {
		return d.PressKeyFunc(ctx, selector, key)
	}
	_, err := d.get(selector)
	return err
}

func (d *FakeDriver) ClickAt(ctx context.Context, x, y float64) error {
	d.record("ClickAt", x, y)
	if d.ClickAtFunc != nil {
		return d.ClickAtFunc(ctx, x, y)
	}
	return nil
}

func (d *FakeDriver) InsertText(ctx context.Context, text string) error {
	d.record("InsertText", text)
	if d.InsertTextFunc != nil {
		return d.InsertTextFunc(ctx, text)
	}
	return nil
}

func (d *FakeDriver) Geometry(ctx context.Context, selector string) (schemas.ElementGeometry, error) {
	d.record("Geometry", selector)
	if d.GeometryFunc != nil {
		return d.GeometryFunc(ctx, selector)
	}
	el, err := d.get(selector)
	if err != nil {
		return schemas.ElementGeometry{}, err
	}
	return el.Geometry, nil
}

func (d *FakeDriver) IsVisible(ctx context.Context, selector string) (bool, error) {
	d.record("IsVisible", selector)
	if d.IsVisibleFunc != nil {
		return d.IsVisibleFunc(ctx, selector)
	}
	el, ok := d.Element(selector)
	if !ok {
		return false, nil
	}
	return el.Visible, nil
}

func (d *FakeDriver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	d.record("IsEnabled", selector)
	if d.IsEnabledFunc != nil {
		return d.IsEnabledFunc(ctx, selector)
	}
	el, ok := d.Element(selector)
	if !ok {
		return false, nil
	}
	return el.Enabled, nil
}

func (d *FakeDriver) ScrollIntoView(ctx context.Context, selector string) error {
	d.record("ScrollIntoView", selector)
	if d.ScrollIntoViewFunc != nil {
		return d.ScrollIntoViewFunc(ctx, selector)
	}
	_, err := d.get(selector)
	return err
}

func (d *FakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	d.record("Screenshot")
	if d.ScreenshotFunc != nil {
		return d.ScreenshotFunc(ctx)
	}
	return []byte("png"), nil
}

// RecordingSink is an ArtifactSink capturing what flows save.
type RecordingSink struct {
	mu          sync.Mutex
	Screenshots map[string][]byte
	JSONs       map[string]any
}

var _ schemas.ArtifactSink = (*RecordingSink)(nil)

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		Screenshots: make(map[string][]byte),
		JSONs:       make(map[string]any),
	}
}

func (s *RecordingSink) SaveScreenshot(name string, png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Screenshots[name] = png
}

func (s *RecordingSink) SaveJSON(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.JSONs[name] = v
}
