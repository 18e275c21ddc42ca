// internal/browser/evaluate.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Evaluate calls the JavaScript function declaration fnDecl with the given
// arguments and unmarshals the awaited result into res. Arguments are
// JSON-encoded on the Go side so callers never interpolate raw values into
// script text.
func (s *Session) Evaluate(ctx context.Context, fnDecl string, res any, args ...any) error {
	script, err := buildInvocation(fnDecl, args...)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var raw json.RawMessage
	err = s.RunActions(opCtx,
		chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			// Await promises, return the actual value, keep JS exceptions
			// out of the console.
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("script evaluation timed out: %w", opCtx.Err())
		}
		return fmt.Errorf("script evaluation failed: %w", err)
	}

	if res == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "undefined" {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("failed to unmarshal script result: %w (payload: %s)", err, string(raw))
	}
	return nil
}

// buildInvocation wraps a function declaration into an immediately invoked
// call with JSON-encoded arguments.
func buildInvocation(fnDecl string, args ...any) (string, error) {
	encoded := make([]string, 0, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument %d: %w", i, err)
		}
		encoded = append(encoded, string(b))
	}
	return fmt.Sprintf("(%s)(%s)", fnDecl, strings.Join(encoded, ", ")), nil
}
