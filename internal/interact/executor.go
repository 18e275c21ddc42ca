// Package interact performs actions against resolved elements with a
// layered fallback strategy. Within one attempt the executor walks four
// mechanisms from most to least faithful: the driver's trusted input,
// script-level property manipulation, synthetic event dispatch, and
// finally raw coordinates. Between attempts it backs off linearly and
// re-resolves the element when the failure smells like staleness.
package interact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
)

// jsScriptClick clicks an element through its DOM click() method.
const jsScriptClick = `function(expr) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) throw new Error('no node found for ' + expr);
	node.click();
	return true;
}`

// jsScriptFill sets an input's value property and notifies frameworks
// through input and change events.
const jsScriptFill = `function(expr, value) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) throw new Error('no node found for ' + expr);
	node.focus();
	node.value = value;
	node.dispatchEvent(new Event('input', { bubbles: true }));
	node.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

// jsSyntheticClick dispatches a constructed MouseEvent sequence, for
// handlers that ignore the plain click() path.
const jsSyntheticClick = `function(expr) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) throw new Error('no node found for ' + expr);
	const rect = node.getBoundingClientRect();
	const opts = { bubbles: true, cancelable: true, view: window,
		clientX: rect.x + rect.width / 2, clientY: rect.y + rect.height / 2 };
	for (const type of ['mousedown', 'mouseup', 'click']) {
		node.dispatchEvent(new MouseEvent(type, opts));
	}
	return true;
}`

// jsSyntheticFill replays a fill as keyboard-flavored events for widgets
// that listen on keyup rather than input.
const jsSyntheticFill = `function(expr, value) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) throw new Error('no node found for ' + expr);
	node.focus();
	node.value = '';
	for (const ch of value) {
		node.value += ch;
		node.dispatchEvent(new KeyboardEvent('keydown', { bubbles: true, key: ch }));
		node.dispatchEvent(new InputEvent('input', { bubbles: true, data: ch }));
		node.dispatchEvent(new KeyboardEvent('keyup', { bubbles: true, key: ch }));
	}
	node.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

// jsPressKey dispatches a named key to an element.
const jsPressKey = `function(expr, key) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) throw new Error('no node found for ' + expr);
	node.focus();
	for (const type of ['keydown', 'keypress', 'keyup']) {
		node.dispatchEvent(new KeyboardEvent(type, { bubbles: true, cancelable: true, key: key }));
	}
	return true;
}`

// Resolver re-resolves an intent after a staleness failure. The element
// locator satisfies this.
type Resolver interface {
	Resolve(ctx context.Context, intent *schemas.SearchIntent, timeout time.Duration) (*schemas.ResolvedElement, error)
}

// Executor performs interactions with retry and mechanism fallbacks.
type Executor struct {
	driver   schemas.PageDriver
	resolver Resolver
	cfg      config.InteractionConfig
	logger   *zap.Logger
}

// NewExecutor builds an Executor. resolver may be nil, which disables
// staleness re-resolution.
func NewExecutor(driver schemas.PageDriver, resolver Resolver, cfg config.InteractionConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{driver: driver, resolver: resolver, cfg: cfg, logger: logger.Named("executor")}
}

// Options tunes one Perform call.
type Options struct {
	// MaxAttempts overrides the configured attempt budget when positive.
	MaxAttempts int
	// Backoff overrides the configured base backoff when positive.
	Backoff time.Duration
	// Reresolve, when set, lets the executor re-resolve the element
	// after a staleness failure instead of retrying a dead selector.
	Reresolve *schemas.SearchIntent
}

// Perform executes an action against a resolved element. It never panics
// and does not return a Go error for ordinary failure: exhaustion is a
// terminal outcome whose Err field carries an *InteractionError.
func (e *Executor) Perform(ctx context.Context, el *schemas.ResolvedElement, action schemas.Action, opts Options) schemas.InteractionOutcome {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = e.cfg.MaxAttempts
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = e.cfg.Backoff
	}

	selector := el.Selector
	geometry := el.Geometry
	var lastErr error
	attemptsUsed := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attemptsUsed = attempt

		mechanism, err := e.attempt(ctx, selector, geometry, action)
		if err == nil {
			return schemas.InteractionOutcome{
				Succeeded:     true,
				MechanismUsed: mechanism,
				AttemptsUsed:  attempt,
			}
		}
		lastErr = err

		e.logger.Debug("Interaction attempt failed.",
			zap.String("selector", selector),
			zap.String("action", string(action.Kind)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}

		// Linear backoff between attempts, respecting cancellation.
		if backoff > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(backoff * time.Duration(attempt)):
			}
			if ctx.Err() != nil {
				break
			}
		}

		// A stale selector will not get better by retrying; resolve the
		// intent again when the caller gave us one.
		if opts.Reresolve != nil && e.resolver != nil && looksStale(err) {
			fresh, rerr := e.resolver.Resolve(ctx, opts.Reresolve, 0)
			if rerr != nil {
				e.logger.Debug("Re-resolution after staleness failed.", zap.Error(rerr))
			} else {
				selector = fresh.Selector
				geometry = fresh.Geometry
				e.logger.Debug("Re-resolved stale element.", zap.String("selector", selector))
			}
		}
	}

	outcome := schemas.InteractionOutcome{
		Succeeded:    false,
		AttemptsUsed: attemptsUsed,
		Err: &schemas.InteractionError{
			Action:   action,
			Selector: selector,
			Attempts: attemptsUsed,
			Err:      lastErr,
		},
	}
	return outcome
}

// attempt walks the mechanism chain once, returning the mechanism that
// succeeded or the last mechanism's error.
func (e *Executor) attempt(ctx context.Context, selector string, geometry schemas.ElementGeometry, action schemas.Action) (schemas.Mechanism, error) {
	var errs []error

	for _, m := range []schemas.Mechanism{
		schemas.MechanismNative,
		schemas.MechanismScriptProperty,
		schemas.MechanismSyntheticEvent,
		schemas.MechanismCoordinate,
	} {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := e.runMechanism(ctx, m, selector, geometry, action); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
			continue
		}
		return m, nil
	}
	return "", errors.Join(errs...)
}

func (e *Executor) runMechanism(ctx context.Context, m schemas.Mechanism, selector string, geometry schemas.ElementGeometry, action schemas.Action) error {
	switch action.Kind {
	case schemas.ActionClick:
		return e.click(ctx, m, selector, geometry)
	case schemas.ActionFill:
		return e.fill(ctx, m, selector, geometry, action.Text)
	case schemas.ActionPress:
		return e.press(ctx, m, selector, action.Text)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (e *Executor) click(ctx context.Context, m schemas.Mechanism, selector string, geometry schemas.ElementGeometry) error {
	switch m {
	case schemas.MechanismNative:
		return e.driver.Click(ctx, selector)
	case schemas.MechanismScriptProperty:
		return e.driver.Evaluate(ctx, jsScriptClick, nil, selector)
	case schemas.MechanismSyntheticEvent:
		return e.driver.Evaluate(ctx, jsSyntheticClick, nil, selector)
	case schemas.MechanismCoordinate:
		if geometry.Empty() {
			return fmt.Errorf("no usable geometry for coordinate click")
		}
		x, y := geometry.Center()
		return e.driver.ClickAt(ctx, x, y)
	default:
		return fmt.Errorf("unknown mechanism %q", m)
	}
}

func (e *Executor) fill(ctx context.Context, m schemas.Mechanism, selector string, geometry schemas.ElementGeometry, text string) error {
	switch m {
	case schemas.MechanismNative:
		return e.driver.Fill(ctx, selector, text)
	case schemas.MechanismScriptProperty:
		return e.driver.Evaluate(ctx, jsScriptFill, nil, selector, text)
	case schemas.MechanismSyntheticEvent:
		return e.driver.Evaluate(ctx, jsSyntheticFill, nil, selector, text)
	case schemas.MechanismCoordinate:
		// Focus via a real click at the element's center, then type at
		// the focus.
		if geometry.Empty() {
			return fmt.Errorf("no usable geometry for coordinate fill")
		}
		x, y := geometry.Center()
		if err := e.driver.ClickAt(ctx, x, y); err != nil {
			return err
		}
		return e.driver.InsertText(ctx, text)
	default:
		return fmt.Errorf("unknown mechanism %q", m)
	}
}

func (e *Executor) press(ctx context.Context, m schemas.Mechanism, selector, key string) error {
	switch m {
	case schemas.MechanismNative:
		return e.driver.PressKey(ctx, selector, key)
	case schemas.MechanismScriptProperty, schemas.MechanismSyntheticEvent:
		return e.driver.Evaluate(ctx, jsPressKey, nil, selector, key)
	case schemas.MechanismCoordinate:
		return e.driver.InsertText(ctx, keyText(key))
	default:
		return fmt.Errorf("unknown mechanism %q", m)
	}
}

func keyText(key string) string {
	switch key {
	case "Enter":
		return "\n"
	case "Tab":
		return "\t"
	default:
		return key
	}
}

// looksStale classifies an error as a staleness signal: the selector no
// longer points at a live node.
func looksStale(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"stale",
		"detached",
		"not found",
		"no node",
		"node does not exist",
		"could not find node",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
