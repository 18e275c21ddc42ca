// Package nav performs smart navigation: full page loads are throttled
// and verified, while same-page URL changes (query or fragment tweaks)
// are applied through the history API without reloading.
package nav

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
	"github.com/webpilot9/webpilot/internal/sites"
)

// jsPushState swaps the current URL without a reload.
const jsPushState = `function(url) {
	history.pushState({}, '', url);
	window.dispatchEvent(new PopStateEvent('popstate', { state: {} }));
	return location.href;
}`

// jsPageReady checks the three page-ready conditions in one round trip:
// document complete, no loading indicators, all images settled.
const jsPageReady = `function(indicators) {
	if (document.readyState !== 'complete') return false;
	for (const sel of indicators) {
		try {
			if (document.querySelector(sel)) return false;
		} catch (e) {}
	}
	for (const img of document.images) {
		if (!img.complete) return false;
	}
	return true;
}`

// Controller performs navigations over one driver.
type Controller struct {
	driver  schemas.PageDriver
	cfg     config.NetworkConfig
	locCfg  config.LocatorConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewController builds a navigation controller. The rate limiter only
// gates full page loads; history-API updates are free.
func NewController(driver schemas.PageDriver, netCfg config.NetworkConfig, locCfg config.LocatorConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		driver:  driver,
		cfg:     netCfg,
		locCfg:  locCfg,
		limiter: rate.NewLimiter(rate.Limit(netCfg.NavigationsPerSecond), netCfg.NavigationBurst),
		logger:  logger.Named("nav"),
	}
}

// NavigateTo brings the tab to targetURL. When only the query or fragment
// differs from the current URL, the change is applied through
// history.pushState and the page is left intact. Otherwise the controller
// performs a throttled full load, verifies the response status and waits
// for the page to become ready.
func (c *Controller) NavigateTo(ctx context.Context, targetURL string) (*schemas.NavigateResult, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, &schemas.NavigationError{URL: targetURL, Reason: "invalid url", Err: err}
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, &schemas.NavigationError{URL: targetURL, Reason: fmt.Sprintf("unsupported scheme %q", target.Scheme)}
	}

	current, err := c.driver.CurrentURL(ctx)
	if err == nil && current != "" {
		if cur, perr := url.Parse(current); perr == nil && samePage(cur, target) {
			return c.softNavigate(ctx, targetURL)
		}
	}

	return c.fullNavigate(ctx, targetURL)
}

// samePage reports whether two URLs address the same document: equal
// scheme, host and path, differing only in query or fragment.
func samePage(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host && a.EscapedPath() == b.EscapedPath()
}

// softNavigate applies a same-document URL change through the history
// API.
func (c *Controller) softNavigate(ctx context.Context, targetURL string) (*schemas.NavigateResult, error) {
	c.logger.Debug("Same-page navigation via history API.", zap.String("url", targetURL))

	var finalURL string
	if err := c.driver.Evaluate(ctx, jsPushState, &finalURL, targetURL); err != nil {
		return nil, &schemas.NavigationError{URL: targetURL, Reason: "history update failed", Err: err}
	}

	// Give client-side routers a moment to react to the state change.
	if wait := c.cfg.PostLoadWait; wait > 0 {
		select {
		case <-ctx.Done():
			return nil, &schemas.NavigationError{URL: targetURL, Reason: "canceled during settle", Err: ctx.Err()}
		case <-time.After(wait):
		}
	}

	return &schemas.NavigateResult{Status: 0, FinalURL: finalURL}, nil
}

// fullNavigate performs a throttled, verified full page load.
func (c *Controller) fullNavigate(ctx context.Context, targetURL string) (*schemas.NavigateResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &schemas.NavigationError{URL: targetURL, Reason: "rate limit wait canceled", Err: err}
	}

	c.logger.Info("Navigating.", zap.String("url", targetURL))
	result, err := c.driver.Navigate(ctx, targetURL, schemas.WaitLoad, c.cfg.NavigationTimeout)
	if err != nil {
		return nil, &schemas.NavigationError{URL: targetURL, Reason: "load failed", Err: err}
	}

	// Status 0 happens on same-document transitions and cached loads;
	// anything else outside 2xx/3xx is a failed destination.
	if result.Status != 0 && (result.Status < 200 || result.Status >= 400) {
		return result, &schemas.NavigationError{URL: targetURL, Status: result.Status, Reason: "bad response status"}
	}

	if err := c.waitPageReady(ctx, result.FinalURL); err != nil {
		return result, err
	}
	return result, nil
}

// waitPageReady polls the ready conditions until they hold or the budget
// runs out.
func (c *Controller) waitPageReady(ctx context.Context, pageURL string) error {
	timeout := c.locCfg.PageReadyTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	indicators := loadingIndicators(pageURL)

	for {
		var ready bool
		if err := c.driver.Evaluate(opCtx, jsPageReady, &ready, indicators); err != nil {
			return &schemas.NavigationError{URL: pageURL, Reason: "readiness probe failed", Err: err}
		}
		if ready {
			return nil
		}

		select {
		case <-opCtx.Done():
			return &schemas.NavigationError{URL: pageURL, Reason: "page did not become ready", Err: opCtx.Err()}
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// loadingIndicators returns the site's loading indicator selectors, with
// a generic fallback for unknown sites.
func loadingIndicators(pageURL string) []string {
	if u, err := url.Parse(pageURL); err == nil {
		if table := sites.ForURL(u.Host); table != nil && len(table.LoadingIndicators) > 0 {
			return table.LoadingIndicators
		}
	}
	return []string{`[role="progressbar"]`, `[aria-busy="true"]`, ".loading", ".spinner"}
}
