// Package flows orchestrates multi-step site automation on top of the
// locator, executor, shadow inspector and navigation controller. A flow
// owns no browser state of its own; everything goes through the shared
// dependency set for one session.
package flows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/browser"
	"github.com/webpilot9/webpilot/internal/interact"
	"github.com/webpilot9/webpilot/internal/locator"
	"github.com/webpilot9/webpilot/internal/nav"
	"github.com/webpilot9/webpilot/internal/shadow"
)

// Deps bundles the per-session components a flow operates through.
type Deps struct {
	Driver   schemas.PageDriver
	Nav      *nav.Controller
	Locator  *locator.ElementLocator
	Executor *interact.Executor
	Shadow   *shadow.ComponentInspector
	Sink     schemas.ArtifactSink
	Logger   *zap.Logger
}

// normalize fills optional fields so flows never nil-check them.
func (d *Deps) normalize() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Sink == nil {
		d.Sink = nopSink{}
	}
}

type nopSink struct{}

func (nopSink) SaveScreenshot(string, []byte) {}
func (nopSink) SaveJSON(string, any)          {}

// checkpointTimeout bounds a checkpoint capture that runs on a context
// of its own.
const checkpointTimeout = 5 * time.Second

// checkpoint captures a named screenshot, best effort. Error
// checkpoints usually fire after the step's context has expired, so the
// capture runs on a detached context with its own deadline.
func (d *Deps) checkpoint(ctx context.Context, name string) {
	snapCtx, cancel := context.WithTimeout(browser.Detach(ctx), checkpointTimeout)
	defer cancel()

	png, err := d.Driver.Screenshot(snapCtx)
	if err != nil {
		d.Logger.Debug("Checkpoint screenshot failed.", zap.String("name", name), zap.Error(err))
		return
	}
	d.Sink.SaveScreenshot(name, png)
}

// elementFor wraps a known-good selector as a resolved element so the
// executor can act on it without a full resolution pass.
func (d *Deps) elementFor(ctx context.Context, selector string) (*schemas.ResolvedElement, error) {
	geom, err := d.Driver.Geometry(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("reading geometry of %q: %w", selector, err)
	}
	return &schemas.ResolvedElement{
		Selector:   selector,
		Geometry:   geom,
		Visible:    true,
		ResolvedAt: time.Now(),
	}, nil
}

// defaultOptions leaves the executor on its configured retry budget.
func defaultOptions() interact.Options { return interact.Options{} }

// resolveAndPerform resolves an intent and runs one action on the result,
// re-resolving on staleness. The returned error is the locator's or the
// executor's terminal error.
func (d *Deps) resolveAndPerform(ctx context.Context, intent *schemas.SearchIntent, action schemas.Action) error {
	el, err := d.Locator.Resolve(ctx, intent, 0)
	if err != nil {
		return err
	}
	outcome := d.Executor.Perform(ctx, el, action, interact.Options{Reresolve: intent})
	if !outcome.Succeeded {
		return outcome.Err
	}
	return nil
}
