package sites

// Square environment domains.
const (
	SquareProductionDomain = "squareup.com"
	SquareStagingDomain    = "squareupstaging.com"
)

// Square returns the selector table for Square's web interface. The login
// form is built from "market-*" custom elements, so several roles carry
// both light-DOM and component selectors.
func Square() *Table {
	return &Table{
		Name: "square",
		Roles: map[string][]string{
			"email_input":     {"#mpui-combo-field-input", "[data-test-form] input", "market-input-text input"},
			"password_input":  {`input[type="password"]`, "market-input-text input[type='password']"},
			"continue_button": {`market-button[data-testid="login-email-next-button"]`, "market-button"},
			"submit_button":   {`market-button[data-testid="sign-in-button"]`, "market-button"},
			"cookie_consent":  {"#onetrust-accept-btn-handler"},
			"dashboard":       {`[data-testid="dashboard-container"]`, ".dashboard-container"},
		},
		Regions: map[string]string{
			"login_form": "[data-test-form]",
		},
		LoadingIndicators: []string{
			`[role="progressbar"]`,
			`[aria-busy="true"]`,
			".loading",
			"#loading",
			`[data-loading="true"]`,
			".spinner",
			`[role="status"]`,
		},
		Components: []string{
			"market-button",
			"market-input-text",
			"market-select",
			"market-dropdown",
			"sq-button",
			"sq-input",
			"sq-form",
			"sq-payment-form",
		},
	}
}
