// Package shadow operates inside web components. Pages built from custom
// elements (Square's market-* family, for example) keep their form
// controls behind shadow roots where ordinary selectors cannot reach, so
// every operation here crosses the boundary in page script.
package shadow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
)

// definitionPollInterval is how often the registry is polled while
// waiting for a component definition.
const definitionPollInterval = 100 * time.Millisecond

// jsIsDefined checks the custom element registry for a tag.
const jsIsDefined = `function(tag) {
	return typeof customElements !== 'undefined' && customElements.get(tag) !== undefined;
}`

// jsHasShadowRoot checks that the first instance of a tag has attached
// its shadow root.
const jsHasShadowRoot = `function(tag) {
	const node = document.querySelector(tag);
	return !!(node && node.shadowRoot);
}`

// jsDescribe summarizes a component instance: definition state, shadow
// root presence and the root's direct children.
const jsDescribe = `function(tag) {
	const defined = typeof customElements !== 'undefined' && customElements.get(tag) !== undefined;
	const node = document.querySelector(tag);
	if (!node) {
		return { tagName: tag, defined: defined, hasShadowRoot: false, shadowChildren: [] };
	}
	const root = node.shadowRoot;
	const children = [];
	if (root) {
		for (const child of root.children) {
			children.push({
				tag: child.tagName.toLowerCase(),
				id: child.id || '',
				class: child.className || ''
			});
		}
	}
	return { tagName: tag, defined: defined, hasShadowRoot: !!root, shadowChildren: children };
}`

// jsShadowFill sets a value on an input inside a component's shadow root
// and notifies the component through input and change events.
const jsShadowFill = `function(hostSelector, innerSelector, value) {
	const host = document.querySelector(hostSelector);
	if (!host) throw new Error('host not found: ' + hostSelector);
	if (!host.shadowRoot) throw new Error('no shadow root on ' + hostSelector);
	const target = host.shadowRoot.querySelector(innerSelector);
	if (!target) throw new Error('no shadow child matches ' + innerSelector);
	target.focus();
	target.value = value;
	target.dispatchEvent(new Event('input', { bubbles: true, composed: true }));
	target.dispatchEvent(new Event('change', { bubbles: true, composed: true }));
	return true;
}`

// jsShadowClick clicks an element inside a component's shadow root. An
// empty inner selector clicks the host itself.
const jsShadowClick = `function(hostSelector, innerSelector) {
	const host = document.querySelector(hostSelector);
	if (!host) throw new Error('host not found: ' + hostSelector);
	if (!innerSelector) {
		host.click();
		return true;
	}
	if (!host.shadowRoot) throw new Error('no shadow root on ' + hostSelector);
	const target = host.shadowRoot.querySelector(innerSelector);
	if (!target) throw new Error('no shadow child matches ' + innerSelector);
	target.click();
	return true;
}`

// jsShadowRead returns the current value of an input inside a shadow
// root.
const jsShadowRead = `function(hostSelector, innerSelector) {
	const host = document.querySelector(hostSelector);
	if (!host) throw new Error('host not found: ' + hostSelector);
	if (!host.shadowRoot) throw new Error('no shadow root on ' + hostSelector);
	const target = host.shadowRoot.querySelector(innerSelector);
	if (!target) throw new Error('no shadow child matches ' + innerSelector);
	return target.value !== undefined ? String(target.value) : '';
}`

// ComponentInspector waits for and operates inside custom elements.
type ComponentInspector struct {
	driver schemas.PageDriver
	logger *zap.Logger
}

// NewComponentInspector binds an inspector to one driver.
func NewComponentInspector(driver schemas.PageDriver, logger *zap.Logger) *ComponentInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComponentInspector{driver: driver, logger: logger.Named("shadow")}
}

// WaitForDefinition polls the custom element registry until every tag is
// defined or the timeout elapses. The returned error is a
// *WebComponentError naming the first missing tag.
func (ci *ComponentInspector) WaitForDefinition(ctx context.Context, timeout time.Duration, tags ...string) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, tag := range tags {
		if err := ci.waitOne(opCtx, tag, jsIsDefined, "definition"); err != nil {
			return err
		}
	}
	return nil
}

// WaitForShadowRoot waits until the first instance of a tag has attached
// its shadow root. Definition alone is not enough: a defined component
// may not have upgraded its instances yet.
func (ci *ComponentInspector) WaitForShadowRoot(ctx context.Context, timeout time.Duration, tag string) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ci.waitOne(opCtx, tag, jsHasShadowRoot, "shadow root")
}

func (ci *ComponentInspector) waitOne(ctx context.Context, tag, probe, what string) error {
	for {
		var ok bool
		if err := ci.driver.Evaluate(ctx, probe, &ok, tag); err != nil {
			return &schemas.WebComponentError{TagName: tag, Op: "wait for " + what, Err: err}
		}
		if ok {
			ci.logger.Debug("Component ready.", zap.String("tag", tag), zap.String("what", what))
			return nil
		}

		select {
		case <-ctx.Done():
			return &schemas.WebComponentError{
				TagName: tag,
				Op:      "wait for " + what,
				Err:     fmt.Errorf("still missing when the wait expired: %w", ctx.Err()),
			}
		case <-time.After(definitionPollInterval):
		}
	}
}

// Describe reports a component's live state.
func (ci *ComponentInspector) Describe(ctx context.Context, tag string) (*schemas.ShadowComponentDescriptor, error) {
	var desc schemas.ShadowComponentDescriptor
	if err := ci.driver.Evaluate(ctx, jsDescribe, &desc, tag); err != nil {
		return nil, &schemas.WebComponentError{TagName: tag, Op: "describe", Err: err}
	}
	return &desc, nil
}

// FillInShadow sets the value of an input behind a component's shadow
// root.
func (ci *ComponentInspector) FillInShadow(ctx context.Context, hostSelector, innerSelector, value string) error {
	if err := ci.driver.Evaluate(ctx, jsShadowFill, nil, hostSelector, innerSelector, value); err != nil {
		return &schemas.WebComponentError{TagName: hostSelector, Op: "fill in shadow", Err: err}
	}
	ci.logger.Debug("Filled shadow input.", zap.String("host", hostSelector), zap.String("inner", innerSelector))
	return nil
}

// ClickInShadow clicks an element behind a component's shadow root. An
// empty innerSelector clicks the host element itself.
func (ci *ComponentInspector) ClickInShadow(ctx context.Context, hostSelector, innerSelector string) error {
	if err := ci.driver.Evaluate(ctx, jsShadowClick, nil, hostSelector, innerSelector); err != nil {
		return &schemas.WebComponentError{TagName: hostSelector, Op: "click in shadow", Err: err}
	}
	return nil
}

// ReadShadowValue returns the current value of an input behind a shadow
// root, so callers can confirm a fill landed.
func (ci *ComponentInspector) ReadShadowValue(ctx context.Context, hostSelector, innerSelector string) (string, error) {
	var value string
	if err := ci.driver.Evaluate(ctx, jsShadowRead, &value, hostSelector, innerSelector); err != nil {
		return "", &schemas.WebComponentError{TagName: hostSelector, Op: "read shadow value", Err: err}
	}
	return value, nil
}
