// internal/browser/session.go
// A Session owns one isolated browser tab and exposes the page driver
// surface over it. Every operation combines the session's master context
// (which carries the CDP target) with the caller's operational context, so
// an operation timeout never tears down the tab.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
)

// Session is one browser tab. It implements schemas.PageDriver.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose func()
	closed  bool
}

var _ schemas.PageDriver = (*Session)(nil)

func newSession(allocCtx context.Context, logger *zap.Logger, cfg *config.Config) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:     uuid.NewString(),
		ctx:    tabCtx,
		cancel: cancel,
		logger: logger.Named("session").With(zap.String("session_id", uuid.NewString())),
		cfg:    cfg,
	}

	// Materialize the tab so later operations have a live target.
	initCtx, initCancel := context.WithTimeout(tabCtx, 30*time.Second)
	defer initCancel()
	if err := chromedp.Run(initCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// RunActions executes chromedp actions against the session's tab, bounded by
// the operational context. The returned error prioritizes the cause: the
// operational deadline first, then session teardown, then the action error.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(combined, actions...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return fmt.Errorf("session closed: %w", s.ctx.Err())
		}
	}
	return err
}

// Close tears down the tab. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("Closing browser session.")
	s.cancel()
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// queryOpts selects the chromedp query strategy for a selector expression.
// XPath expressions (starting with "/" or "(") go through the DOM search
// API; everything else is a CSS query.
func queryOpts(selector string) chromedp.QueryOption {
	if len(selector) > 0 && (selector[0] == '/' || selector[0] == '(') {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// -- schemas.PageDriver implementation --

func (s *Session) Navigate(ctx context.Context, url string, waitUntil schemas.WaitUntil, timeout time.Duration) (*schemas.NavigateResult, error) {
	if timeout <= 0 {
		timeout = s.cfg.Network.NavigationTimeout
	}
	navCtx, navCancel := context.WithTimeout(ctx, timeout)
	defer navCancel()

	combined, cancel := CombineContext(s.ctx, navCtx)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	resp, err := chromedp.RunResponse(combined, chromedp.Navigate(url))
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("navigation to %s timed out after %v: %w", url, timeout, navCtx.Err())
		}
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	result := &schemas.NavigateResult{}
	if resp != nil {
		result.Status = int(resp.Status)
	}

	switch waitUntil {
	case schemas.WaitNetworkIdle:
		// RunResponse already waited for the load event; give in-flight
		// XHRs a quiet period on top of it.
		if wait := s.cfg.Network.PostLoadWait; wait > 0 {
			if err := s.RunActions(navCtx, chromedp.Sleep(wait)); err != nil {
				return nil, err
			}
		}
	case schemas.WaitDOMContent, schemas.WaitLoad, "":
	default:
		return nil, fmt.Errorf("unknown waitUntil %q", waitUntil)
	}

	finalURL, err := s.CurrentURL(navCtx)
	if err != nil {
		return nil, err
	}
	result.FinalURL = finalURL
	return result, nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.RunActions(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (s *Session) QueryCount(ctx context.Context, selector string) (int, error) {
	var count int
	if err := s.Evaluate(ctx, jsQueryCount, &count, selector); err != nil {
		return 0, fmt.Errorf("failed to count matches for %q: %w", selector, err)
	}
	return count, nil
}

func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.RunActions(opCtx, chromedp.WaitReady(selector, queryOpts(selector)))
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("timed out after %v waiting for %q: %w", timeout, selector, opCtx.Err())
		}
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.RunActions(opCtx,
		chromedp.ScrollIntoView(selector, queryOpts(selector)),
		chromedp.Click(selector, queryOpts(selector)),
	)
	if err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.RunActions(opCtx,
		chromedp.ScrollIntoView(selector, queryOpts(selector)),
		chromedp.Clear(selector, queryOpts(selector)),
		chromedp.SendKeys(selector, value, queryOpts(selector)),
	)
	if err != nil {
		return fmt.Errorf("fill of %q failed: %w", selector, err)
	}
	return nil
}

func (s *Session) PressKey(ctx context.Context, selector, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.RunActions(opCtx, chromedp.SendKeys(selector, keySequence(key), queryOpts(selector)))
	if err != nil {
		return fmt.Errorf("key press %q on %q failed: %w", key, selector, err)
	}
	return nil
}

// keySequence maps a friendly key name to the raw key runes chromedp expects.
func keySequence(key string) string {
	switch key {
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Escape":
		return kb.Escape
	case "Backspace":
		return kb.Backspace
	case "ArrowDown":
		return kb.ArrowDown
	case "ArrowUp":
		return kb.ArrowUp
	default:
		return key
	}
}

func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.RunActions(opCtx, chromedp.MouseClickXY(x, y)); err != nil {
		return fmt.Errorf("coordinate click at (%.0f, %.0f) failed: %w", x, y, err)
	}
	return nil
}

func (s *Session) InsertText(ctx context.Context, text string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.RunActions(opCtx, input.InsertText(text)); err != nil {
		return fmt.Errorf("insert text failed: %w", err)
	}
	return nil
}

func (s *Session) Geometry(ctx context.Context, selector string) (schemas.ElementGeometry, error) {
	var geom *schemas.ElementGeometry
	if err := s.Evaluate(ctx, jsGeometry, &geom, selector); err != nil {
		return schemas.ElementGeometry{}, fmt.Errorf("failed to read geometry of %q: %w", selector, err)
	}
	if geom == nil {
		return schemas.ElementGeometry{}, fmt.Errorf("element %q not found", selector)
	}
	return *geom, nil
}

func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := s.Evaluate(ctx, jsIsVisible, &visible, selector); err != nil {
		return false, fmt.Errorf("visibility check of %q failed: %w", selector, err)
	}
	return visible, nil
}

func (s *Session) IsEnabled(ctx context.Context, selector string) (bool, error) {
	var enabled bool
	if err := s.Evaluate(ctx, jsIsEnabled, &enabled, selector); err != nil {
		return false, fmt.Errorf("enabled check of %q failed: %w", selector, err)
	}
	return enabled, nil
}

func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.RunActions(opCtx, chromedp.ScrollIntoView(selector, queryOpts(selector))); err != nil {
		return fmt.Errorf("scroll to %q failed: %w", selector, err)
	}
	return nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var png []byte
	if err := s.RunActions(opCtx, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return png, nil
}
