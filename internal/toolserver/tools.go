package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/flows"
	"github.com/webpilot9/webpilot/internal/inspect"
)

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// intentProperty is the schema fragment shared by every tool taking a
// search intent.
func intentProperty() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "What to look for, independent of any concrete selector",
		"properties": map[string]any{
			"text":        map[string]any{"type": "string", "description": "Visible text content"},
			"role":        map[string]any{"type": "string", "description": "ARIA or implicit role (button, textbox, link...)"},
			"tag":         map[string]any{"type": "string", "description": "Element tag name"},
			"testId":      map[string]any{"type": "string", "description": "data-testid value"},
			"placeholder": map[string]any{"type": "string", "description": "Placeholder attribute"},
			"label":       map[string]any{"type": "string", "description": "Associated label or aria-label text"},
			"classHint":   map[string]any{"type": "string", "description": "One class name known to be on the element"},
			"attributes":  map[string]any{"type": "object", "description": "Exact attribute name/value pairs"},
			"position":    map[string]any{"type": "integer", "description": "1-based nth match"},
			"region":      map[string]any{"type": "string", "description": "Named page region from the active site table"},
			"siteRole":    map[string]any{"type": "string", "description": "Curated selector role for the active site (e.g. search_input)"},
		},
	}
}

func (s *Server) registerTools(srv *mcp.Server) {
	s.registerLaunchBrowser(srv)
	s.registerCloseBrowser(srv)
	s.registerNavigateTo(srv)
	s.registerGoogleSearch(srv)
	s.registerSquareLogin(srv)
	s.registerClickElement(srv)
	s.registerFillElement(srv)
	s.registerInspectPage(srv)
	s.registerFindClickable(srv)
	s.registerWaitForComponents(srv)
	s.registerDescribeComponent(srv)
	s.registerFillInShadow(srv)
	s.registerClickInShadow(srv)
	s.registerReadShadowValue(srv)
}

// --- launch_browser / close_browser ---

func (s *Server) registerLaunchBrowser(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "launch_browser",
		Description: "Launch the browser and open a page session. Must be called before any other tool.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	s.register(srv, tool, func(ctx context.Context, _ json.RawMessage) (any, error) {
		if err := s.openSession(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "launched"}, nil
	})
}

func (s *Server) registerCloseBrowser(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "close_browser",
		Description: "Close the browser session and release its resources.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	s.register(srv, tool, func(ctx context.Context, _ json.RawMessage) (any, error) {
		if err := s.closeSession(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "closed"}, nil
	})
}

// --- navigate_to ---

func (s *Server) registerNavigateTo(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "navigate_to",
		Description: "Navigate to a URL. Same-page query or fragment changes are applied without a reload.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute http(s) URL"},
		}, []string{"url"}),
	}

	type navigateRequest struct {
		URL string `json:"url"`
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r navigateRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if r.URL == "" {
			return nil, invalidParams(fmt.Errorf("url is required"))
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		return sess.nav.NavigateTo(ctx, r.URL)
	})
}

// --- google_search ---

func (s *Server) registerGoogleSearch(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "google_search",
		Description: "Run a Google search: navigate, submit the query, harvest result titles and optionally click a result.",
		InputSchema: inputSchema(map[string]any{
			"query":         map[string]any{"type": "string", "description": "Search term"},
			"clickIndex":    map[string]any{"type": "integer", "description": "1-based organic result to click"},
			"clickText":     map[string]any{"type": "string", "description": "Click the first allowed result whose title contains this text"},
			"ensureVisible": map[string]any{"type": "boolean", "description": "Scroll the result into view before clicking"},
			"allowedTypes":  map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": []any{"organic", "featured", "knowledge", "advertisement"}}, "description": "Result types eligible for text clicking (default organic)"},
		}, []string{"query"}),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var opts flows.SearchOptions
		if err := decode(args, &opts); err != nil {
			return nil, err
		}
		if opts.Query == "" {
			return nil, invalidParams(fmt.Errorf("query is required"))
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		return sess.google.Search(ctx, opts)
	})
}

// --- square_login ---

func (s *Server) registerSquareLogin(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "square_login",
		Description: "Run the Square sign-in flow: cookie consent, email, continue, password, sign in, dashboard verification.",
		InputSchema: inputSchema(map[string]any{
			"email":    map[string]any{"type": "string", "description": "Account email"},
			"password": map[string]any{"type": "string", "description": "Account password"},
			"staging":  map[string]any{"type": "boolean", "description": "Target the staging environment"},
		}, []string{"email", "password"}),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var opts flows.LoginOptions
		if err := decode(args, &opts); err != nil {
			return nil, err
		}
		if opts.Email == "" || opts.Password == "" {
			return nil, invalidParams(fmt.Errorf("email and password are required"))
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		return sess.square.Login(ctx, opts)
	})
}

// --- click_element / fill_element ---

func (s *Server) registerClickElement(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "click_element",
		Description: "Resolve an element from a search intent and click it, with mechanism fallbacks and retries.",
		InputSchema: inputSchema(map[string]any{
			"intent": intentProperty(),
		}, []string{"intent"}),
	}

	type clickRequest struct {
		Intent *schemas.SearchIntent `json:"intent"`
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r clickRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if err := r.Intent.Validate(); err != nil {
			return nil, invalidParams(err)
		}
		return s.performOnIntent(ctx, r.Intent, schemas.Action{Kind: schemas.ActionClick})
	})
}

func (s *Server) registerFillElement(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fill_element",
		Description: "Resolve an element from a search intent and fill it with text.",
		InputSchema: inputSchema(map[string]any{
			"intent": intentProperty(),
			"text":   map[string]any{"type": "string", "description": "Value to fill"},
		}, []string{"intent", "text"}),
	}

	type fillRequest struct {
		Intent *schemas.SearchIntent `json:"intent"`
		Text   string                `json:"text"`
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r fillRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if err := r.Intent.Validate(); err != nil {
			return nil, invalidParams(err)
		}
		return s.performOnIntent(ctx, r.Intent, schemas.Action{Kind: schemas.ActionFill, Text: r.Text})
	})
}

// performOnIntent resolves an intent and executes one action against it.
func (s *Server) performOnIntent(ctx context.Context, intent *schemas.SearchIntent, action schemas.Action) (any, error) {
	sess, err := s.currentSession()
	if err != nil {
		return nil, err
	}
	el, err := sess.locator.Resolve(ctx, intent, 0)
	if err != nil {
		return nil, err
	}
	outcome := sess.executor.Perform(ctx, el, action, executorOptions(intent))
	if !outcome.Succeeded {
		return nil, outcome.Err
	}
	return map[string]any{
		"selector":      el.Selector,
		"mechanismUsed": outcome.MechanismUsed,
		"attemptsUsed":  outcome.AttemptsUsed,
	}, nil
}

// --- inspect_page / find_clickable ---

func inspectSchema() map[string]any {
	return inputSchema(map[string]any{
		"selector":    map[string]any{"type": "string", "description": "Root to inspect (CSS or XPath); default whole document"},
		"maxElements": map[string]any{"type": "integer", "description": "Element budget"},
		"maxDepth":    map[string]any{"type": "integer", "description": "Traversal depth limit"},
		"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Only include these tags"},
		"attributes":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Attributes to capture per element"},
	}, nil)
}

func (s *Server) registerInspectPage(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "inspect_page",
		Description: "Capture a structured snapshot of the page: tags, attributes, visibility and clickability per element.",
		InputSchema: inspectSchema(),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var opts inspect.Options
		if err := decode(args, &opts); err != nil {
			return nil, err
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		return sess.inspector.InspectPage(ctx, opts)
	})
}

func (s *Server) registerFindClickable(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "find_clickable",
		Description: "List the visible, clickable elements on the page.",
		InputSchema: inspectSchema(),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var opts inspect.Options
		if err := decode(args, &opts); err != nil {
			return nil, err
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		return sess.inspector.FindClickable(ctx, opts)
	})
}

// --- component tools ---

func (s *Server) registerWaitForComponents(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "wait_for_components",
		Description: "Wait until the named custom elements are registered with the page's registry.",
		InputSchema: inputSchema(map[string]any{
			"tags":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Custom element tag names (e.g. market-button)"},
			"timeoutMs": map[string]any{"type": "integer", "description": "Wait budget in milliseconds (default 10000)"},
		}, []string{"tags"}),
	}

	type waitRequest struct {
		Tags      []string `json:"tags"`
		TimeoutMs int      `json:"timeoutMs"`
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r waitRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if len(r.Tags) == 0 {
			return nil, invalidParams(fmt.Errorf("tags must not be empty"))
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(r.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if err := sess.shadow.WaitForDefinition(ctx, timeout, r.Tags...); err != nil {
			return nil, err
		}
		return map[string]any{"defined": r.Tags}, nil
	})
}

func (s *Server) registerDescribeComponent(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "describe_component",
		Description: "Report a custom element's live state: definition, shadow root presence and shadow children.",
		InputSchema: inputSchema(map[string]any{
			"tag": map[string]any{"type": "string", "description": "Custom element tag name"},
		}, []string{"tag"}),
	}

	type describeRequest struct {
		Tag string `json:"tag"`
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r describeRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if r.Tag == "" {
			return nil, invalidParams(fmt.Errorf("tag is required"))
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		return sess.shadow.Describe(ctx, r.Tag)
	})
}

type shadowTargetRequest struct {
	Host  string `json:"host"`
	Inner string `json:"inner"`
	Value string `json:"value,omitempty"`
}

func (r *shadowTargetRequest) validate(needInner bool) error {
	if r.Host == "" {
		return invalidParams(fmt.Errorf("host is required"))
	}
	if needInner && r.Inner == "" {
		return invalidParams(fmt.Errorf("inner is required"))
	}
	return nil
}

func shadowSchema(withValue bool, required []string) map[string]any {
	props := map[string]any{
		"host":  map[string]any{"type": "string", "description": "Selector of the shadow host element"},
		"inner": map[string]any{"type": "string", "description": "Selector inside the shadow root"},
	}
	if withValue {
		props["value"] = map[string]any{"type": "string", "description": "Value to write"}
	}
	return inputSchema(props, required)
}

func (s *Server) registerFillInShadow(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fill_in_shadow",
		Description: "Fill an input behind a component's shadow root by script injection.",
		InputSchema: shadowSchema(true, []string{"host", "inner", "value"}),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r shadowTargetRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if err := r.validate(true); err != nil {
			return nil, err
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		if err := sess.shadow.FillInShadow(ctx, r.Host, r.Inner, r.Value); err != nil {
			return nil, err
		}
		return map[string]bool{"filled": true}, nil
	})
}

func (s *Server) registerClickInShadow(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "click_in_shadow",
		Description: "Click an element behind a component's shadow root. Empty inner selector clicks the host.",
		InputSchema: shadowSchema(false, []string{"host"}),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r shadowTargetRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if err := r.validate(false); err != nil {
			return nil, err
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		if err := sess.shadow.ClickInShadow(ctx, r.Host, r.Inner); err != nil {
			return nil, err
		}
		return map[string]bool{"clicked": true}, nil
	})
}

func (s *Server) registerReadShadowValue(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "read_shadow_value",
		Description: "Read the current value of an input behind a component's shadow root.",
		InputSchema: shadowSchema(false, []string{"host", "inner"}),
	}

	s.register(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r shadowTargetRequest
		if err := decode(args, &r); err != nil {
			return nil, err
		}
		if err := r.validate(true); err != nil {
			return nil, err
		}
		sess, err := s.currentSession()
		if err != nil {
			return nil, err
		}
		value, err := sess.shadow.ReadShadowValue(ctx, r.Host, r.Inner)
		if err != nil {
			return nil, err
		}
		return map[string]string{"value": value}, nil
	})
}
