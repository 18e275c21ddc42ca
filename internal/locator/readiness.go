// internal/locator/readiness.go
// The readiness checker decides whether a matched element can actually be
// interacted with right now: rendered, enabled, geometrically settled and
// not covered by an overlay.
package locator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
)

// jsOcclusionCheck reports whether the element's center point is covered
// by a node outside its own subtree. An overlay sitting on top of the
// element makes clicks land on the overlay instead.
const jsOcclusionCheck = `function(expr) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) return true;
	const rect = node.getBoundingClientRect();
	const hit = document.elementFromPoint(rect.x + rect.width / 2, rect.y + rect.height / 2);
	if (!hit) return true;
	return !(node === hit || node.contains(hit) || hit.contains(node));
}`

// jsInViewport reports whether the element's box intersects the viewport.
const jsInViewport = `function(expr) {
	const find = (e) => {
		if (e[0] === '/' || e[0] === '(') {
			return document.evaluate(e, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		return document.querySelector(e);
	};
	const node = find(expr);
	if (!node) return false;
	const rect = node.getBoundingClientRect();
	return rect.bottom > 0 && rect.right > 0 &&
		rect.top < (window.innerHeight || document.documentElement.clientHeight) &&
		rect.left < (window.innerWidth || document.documentElement.clientWidth);
}`

// ReadinessChecker verifies elements against the live page.
type ReadinessChecker struct {
	driver schemas.PageDriver
	cfg    config.LocatorConfig
	logger *zap.Logger
}

// NewReadinessChecker builds a checker bound to one driver.
func NewReadinessChecker(driver schemas.PageDriver, cfg config.LocatorConfig, logger *zap.Logger) *ReadinessChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadinessChecker{driver: driver, cfg: cfg, logger: logger.Named("readiness")}
}

// VerifyOptions tunes a single readiness check.
type VerifyOptions struct {
	// RequireViewport makes viewport membership a hard requirement
	// instead of an advisory field.
	RequireViewport bool
}

// Verify runs the full readiness sequence for a selector. Checks are
// ordered cheapest first and the sequence stops at the first failure.
// A driver error makes the element not ready and is returned alongside
// the partial report.
func (r *ReadinessChecker) Verify(ctx context.Context, selector string, opts VerifyOptions) (schemas.ReadinessReport, error) {
	var report schemas.ReadinessReport

	visible, err := r.driver.IsVisible(ctx, selector)
	if err != nil {
		return report, err
	}
	report.Visible = visible
	if !visible {
		return report, nil
	}

	enabled, err := r.driver.IsEnabled(ctx, selector)
	if err != nil {
		return report, err
	}
	report.Enabled = enabled
	if !enabled {
		return report, nil
	}

	if err := r.driver.ScrollIntoView(ctx, selector); err != nil {
		return report, err
	}

	stable, err := r.waitStable(ctx, selector)
	if err != nil {
		return report, err
	}
	report.Stable = stable
	if !stable {
		return report, nil
	}

	inViewport := false
	if err := r.driver.Evaluate(ctx, jsInViewport, &inViewport, selector); err != nil {
		return report, err
	}
	report.InViewport = inViewport
	if opts.RequireViewport && !inViewport {
		return report, nil
	}

	occluded := false
	if err := r.driver.Evaluate(ctx, jsOcclusionCheck, &occluded, selector); err != nil {
		return report, err
	}
	report.Occluded = occluded

	return report, nil
}

// waitStable samples the element's geometry until two consecutive samples
// one settle window apart agree, or the budget runs out. Animated or
// reflowing elements keep moving between samples.
func (r *ReadinessChecker) waitStable(ctx context.Context, selector string) (bool, error) {
	const maxSamples = 5

	prev, err := r.driver.Geometry(ctx, selector)
	if err != nil {
		return false, err
	}

	for i := 0; i < maxSamples; i++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(r.cfg.SettleWindow):
		}

		cur, err := r.driver.Geometry(ctx, selector)
		if err != nil {
			return false, err
		}
		if cur == prev && !cur.Empty() {
			return true, nil
		}
		prev = cur
	}

	r.logger.Debug("Element geometry did not settle.", zap.String("selector", selector))
	return false, nil
}
