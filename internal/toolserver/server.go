// Package toolserver exposes the automation stack as MCP tools over
// stdio. Each tool call is a structured request; core errors cross the
// boundary as tool errors tagged with their kind, never as protocol
// failures.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/browser"
	"github.com/webpilot9/webpilot/internal/config"
	"github.com/webpilot9/webpilot/internal/flows"
	"github.com/webpilot9/webpilot/internal/inspect"
	"github.com/webpilot9/webpilot/internal/interact"
	"github.com/webpilot9/webpilot/internal/locator"
	"github.com/webpilot9/webpilot/internal/nav"
	"github.com/webpilot9/webpilot/internal/shadow"
)

// Error kinds reported to tool callers.
const (
	kindInvalidParams   = "INVALID_PARAMS"
	kindElementNotFound = "ELEMENT_NOT_FOUND"
	kindWebComponent    = "WEB_COMPONENT_ERROR"
	kindInteraction     = "INTERACTION_ERROR"
	kindNavigation      = "NAVIGATION_ERROR"
	kindInternal        = "INTERNAL_ERROR"
)

// launchFunc starts a browser and hands back its page driver plus a
// shutdown callback. Swappable so tests run against a fake driver.
type launchFunc func(ctx context.Context) (schemas.PageDriver, func(context.Context) error, error)

// session is the per-browser component set behind the tools.
type session struct {
	driver    schemas.PageDriver
	nav       *nav.Controller
	locator   *locator.ElementLocator
	executor  *interact.Executor
	shadow    *shadow.ComponentInspector
	inspector *inspect.PageInspector
	google    *flows.GoogleFlow
	square    *flows.SquareFlow
	close     func(context.Context) error
}

// Server owns the MCP surface and at most one live browser session.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	sink   schemas.ArtifactSink
	launch launchFunc

	mu      sync.Mutex
	session *session

	mcpServer *mcp.Server
}

// NewServer builds the tool server. sink may be nil to disable artifact
// capture.
func NewServer(cfg *config.Config, sink schemas.ArtifactSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger.Named("toolserver"),
		sink:   sink,
	}
	s.launch = s.launchChrome

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)
	s.registerTools(s.mcpServer)
	return s
}

// Run serves MCP over stdio until the context is canceled, then closes
// any live browser.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeSession(context.Background())
	s.logger.Info("Tool server ready on stdio.", zap.String("name", s.cfg.Server.Name))
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// launchChrome is the production launcher: a browser manager plus one
// session.
func (s *Server) launchChrome(ctx context.Context) (schemas.PageDriver, func(context.Context) error, error) {
	manager, err := browser.NewManager(ctx, s.logger, s.cfg)
	if err != nil {
		return nil, nil, err
	}
	sess, err := manager.NewSession(ctx)
	if err != nil {
		_ = manager.Shutdown(ctx)
		return nil, nil, err
	}
	closeAll := func(closeCtx context.Context) error {
		cerr := sess.Close(closeCtx)
		if serr := manager.Shutdown(closeCtx); serr != nil && cerr == nil {
			cerr = serr
		}
		return cerr
	}
	return sess, closeAll, nil
}

// openSession launches a browser and assembles the component set.
func (s *Server) openSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return fmt.Errorf("a browser session is already open")
	}

	driver, closer, err := s.launch(ctx)
	if err != nil {
		return err
	}

	loc := locator.New(driver, nil, s.cfg.Locator, s.logger)
	deps := flows.Deps{
		Driver:   driver,
		Nav:      nav.NewController(driver, s.cfg.Network, s.cfg.Locator, s.logger),
		Locator:  loc,
		Executor: interact.NewExecutor(driver, loc, s.cfg.Interaction, s.logger),
		Shadow:   shadow.NewComponentInspector(driver, s.logger),
		Sink:     s.sink,
		Logger:   s.logger,
	}

	s.session = &session{
		driver:    driver,
		nav:       deps.Nav,
		locator:   loc,
		executor:  deps.Executor,
		shadow:    deps.Shadow,
		inspector: inspect.NewPageInspector(driver, s.logger),
		google:    flows.NewGoogleFlow(deps),
		square:    flows.NewSquareFlow(deps),
		close:     closer,
	}
	s.logger.Info("Browser session opened.")
	return nil
}

// closeSession shuts the live browser down, if any.
func (s *Server) closeSession(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	s.logger.Info("Closing browser session.")
	if sess.close == nil {
		return nil
	}
	return sess.close(ctx)
}

// currentSession returns the live session or an error telling the
// caller to launch first.
func (s *Server) currentSession() (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, fmt.Errorf("browser not launched, call launch_browser first")
	}
	return s.session, nil
}

// executorOptions lets the executor re-resolve the intent on staleness.
func executorOptions(intent *schemas.SearchIntent) interact.Options {
	return interact.Options{Reresolve: intent}
}

// errorKind classifies an error for the tool boundary.
func errorKind(err error) string {
	var (
		badParams   *invalidParamsError
		notFound    *schemas.ElementNotFoundError
		component   *schemas.WebComponentError
		interaction *schemas.InteractionError
		navigation  *schemas.NavigationError
	)
	switch {
	case errors.As(err, &badParams):
		return kindInvalidParams
	case errors.As(err, &notFound):
		return kindElementNotFound
	case errors.As(err, &component):
		return kindWebComponent
	case errors.As(err, &interaction):
		return kindInteraction
	case errors.As(err, &navigation):
		return kindNavigation
	default:
		return kindInternal
	}
}

// toolError wraps an error as a tool-level failure result.
func toolError(kind string, err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(fmt.Errorf("%s: %w", kind, err))
	return &res
}

// toolResult marshals a payload into a text content result.
func toolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(kindInternal, fmt.Errorf("encoding result: %w", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// handler is one decoded tool implementation.
type handler func(ctx context.Context, args json.RawMessage) (any, error)

// register wires a handler with uniform decode and error mapping. A
// handler error surfaces as a tool error tagged with its kind; only
// transport problems become protocol errors.
func (s *Server) register(srv *mcp.Server, tool *mcp.Tool, h handler) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := h(ctx, req.Params.Arguments)
		if err != nil {
			kind := errorKind(err)
			s.logger.Warn("Tool call failed.",
				zap.String("tool", tool.Name),
				zap.String("kind", kind),
				zap.Error(err))
			return toolError(kind, err), nil
		}
		return toolResult(out)
	})
}

// invalidParams tags a decode or validation failure.
type invalidParamsError struct{ err error }

func (e *invalidParamsError) Error() string { return e.err.Error() }
func (e *invalidParamsError) Unwrap() error { return e.err }

func invalidParams(err error) error { return &invalidParamsError{err: err} }

// decode unmarshals tool arguments, tagging failures as INVALID_PARAMS.
func decode(args json.RawMessage, into any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return invalidParams(fmt.Errorf("malformed arguments: %w", err))
	}
	return nil
}
