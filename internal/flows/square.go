package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/sites"
)

const (
	// componentWait bounds the wait for Square's market components to be
	// registered before touching the form.
	componentWait = 10 * time.Second
	// dashboardWait bounds login verification.
	dashboardWait = 5 * time.Second
)

// LoginOptions controls one Square login flow.
type LoginOptions struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Staging targets the staging environment instead of production.
	Staging bool `json:"staging,omitempty"`
}

// LoginReport is the outcome of one login flow.
type LoginReport struct {
	Succeeded bool   `json:"succeeded"`
	FinalURL  string `json:"finalUrl,omitempty"`
}

// SquareFlow drives the Square sign-in sequence: cookie consent, email,
// continue, password, sign in, dashboard verification. Checkpoints are
// captured after each step so a failed run can be reconstructed.
type SquareFlow struct {
	deps   Deps
	logger *zap.Logger
}

// NewSquareFlow builds the flow over one session's components.
func NewSquareFlow(deps Deps) *SquareFlow {
	deps.normalize()
	return &SquareFlow{deps: deps, logger: deps.Logger.Named("square")}
}

// LoginURL returns the environment's login page.
func LoginURL(staging bool) string {
	domain := sites.SquareProductionDomain
	if staging {
		domain = sites.SquareStagingDomain
	}
	return fmt.Sprintf("https://app.%s/login", domain)
}

// Login runs the full sign-in sequence. It returns one of the typed
// errors when a step fails; the report is still populated with what was
// reached.
func (f *SquareFlow) Login(ctx context.Context, opts LoginOptions) (*LoginReport, error) {
	if opts.Email == "" || opts.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	report := &LoginReport{}
	table := sites.Square()
	f.deps.Locator.SetTable(table)

	loginURL := LoginURL(opts.Staging)
	f.logger.Info("Starting login flow.", zap.String("url", loginURL), zap.String("email", opts.Email))

	if _, err := f.deps.Nav.NavigateTo(ctx, loginURL); err != nil {
		return report, err
	}
	f.deps.checkpoint(ctx, "01-initial-page")

	f.acceptCookieConsent(ctx, table)

	if err := f.deps.Shadow.WaitForDefinition(ctx, componentWait, "market-button", "market-input-text"); err != nil {
		f.deps.checkpoint(ctx, "error-components")
		return report, err
	}

	if err := f.fillEmail(ctx, opts.Email); err != nil {
		f.deps.checkpoint(ctx, "error-email")
		return report, err
	}
	f.deps.checkpoint(ctx, "02-email-entered")

	if err := f.clickContinue(ctx); err != nil {
		f.deps.checkpoint(ctx, "error-continue")
		return report, err
	}
	f.deps.checkpoint(ctx, "03-after-continue")

	if err := f.fillPassword(ctx, opts.Password); err != nil {
		f.deps.checkpoint(ctx, "error-password")
		return report, err
	}
	f.deps.checkpoint(ctx, "04-password-entered")

	if err := f.clickSignIn(ctx); err != nil {
		f.deps.checkpoint(ctx, "error-signin")
		return report, err
	}
	f.deps.checkpoint(ctx, "05-after-signin")

	if err := f.verifyLogin(ctx, table, loginURL); err != nil {
		f.deps.checkpoint(ctx, "error-verify")
		return report, err
	}

	report.Succeeded = true
	if url, err := f.deps.Driver.CurrentURL(ctx); err == nil {
		report.FinalURL = url
	}
	f.logger.Info("Login verified.", zap.String("url", report.FinalURL))
	return report, nil
}

// acceptCookieConsent dismisses the consent banner when present. The
// banner is optional, so nothing here is fatal.
func (f *SquareFlow) acceptCookieConsent(ctx context.Context, table *sites.Table) {
	seeds := table.Seeds("cookie_consent")
	if len(seeds) == 0 {
		return
	}
	selector := seeds[0]
	count, err := f.deps.Driver.QueryCount(ctx, selector)
	if err != nil || count == 0 {
		return
	}
	if err := f.deps.Driver.Click(ctx, selector); err != nil {
		f.logger.Warn("Cookie consent dismissal failed.", zap.Error(err))
		return
	}
	f.logger.Debug("Dismissed cookie consent banner.")
}

// fillEmail fills the email field, falling back to a shadow-DOM fill
// when the combo field is not reachable from the light DOM.
func (f *SquareFlow) fillEmail(ctx context.Context, email string) error {
	err := f.deps.resolveAndPerform(ctx,
		&schemas.SearchIntent{SiteRole: "email_input", Role: "textbox"},
		schemas.Action{Kind: schemas.ActionFill, Text: email})
	if err == nil {
		return nil
	}

	var notFound *schemas.ElementNotFoundError
	if errors.As(err, &notFound) {
		f.logger.Debug("Email field not reachable from light DOM; filling through shadow root.")
		if serr := f.deps.Shadow.FillInShadow(ctx, "market-input-text", "input", email); serr == nil {
			return nil
		}
	}
	return err
}

// clickContinue tries the continue button intents in order, matching the
// several renderings the login page has shipped with.
func (f *SquareFlow) clickContinue(ctx context.Context) error {
	intents := []*schemas.SearchIntent{
		{TestID: "login-email-next-button"},
		{Role: "button", Text: "Continue"},
		{Tag: "market-button", TestID: "login-email-next-button"},
		{SiteRole: "continue_button"},
	}

	var lastErr error
	for _, intent := range intents {
		err := f.deps.resolveAndPerform(ctx, intent, schemas.Action{Kind: schemas.ActionClick})
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("continue button not clickable with any known intent: %w", lastErr)
}

func (f *SquareFlow) fillPassword(ctx context.Context, password string) error {
	return f.deps.resolveAndPerform(ctx,
		&schemas.SearchIntent{SiteRole: "password_input", Attributes: map[string]string{"type": "password"}},
		schemas.Action{Kind: schemas.ActionFill, Text: password})
}

func (f *SquareFlow) clickSignIn(ctx context.Context) error {
	return f.deps.resolveAndPerform(ctx,
		&schemas.SearchIntent{SiteRole: "submit_button", TestID: "sign-in-button"},
		schemas.Action{Kind: schemas.ActionClick})
}

// verifyLogin waits for the dashboard container or a dashboard URL.
func (f *SquareFlow) verifyLogin(ctx context.Context, table *sites.Table, loginURL string) error {
	seeds := table.Seeds("dashboard")
	var lastErr error
	for _, selector := range seeds {
		err := f.deps.Driver.WaitForSelector(ctx, selector, dashboardWait)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	// Some accounts land on a redirect page before the container renders;
	// the URL is an acceptable secondary signal.
	if url, err := f.deps.Driver.CurrentURL(ctx); err == nil && strings.Contains(url, "/dashboard") {
		return nil
	}

	return &schemas.NavigationError{
		URL:    loginURL,
		Reason: "login verification failed, dashboard never appeared",
		Err:    lastErr,
	}
}
