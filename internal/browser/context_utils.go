// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from ctx1 (primary/master context)
// that is canceled when *either* ctx1 or ctx2 (secondary/operational context) is
// canceled. It inherits values from ctx1. This is crucial for chromedp operations
// where ctx1 carries the CDP connection info (the session context), and ctx2
// carries the operational deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	// Link ctx2's lifecycle to the combined context. The goroutine stops
	// when either context is done.
	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext wraps a parent context to create a "detached" context.
// It inherits all values (like CDP target information) from its parent,
// but it explicitly ignores the parent's deadline and cancellation signal.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. This is useful for cleanup operations that must outlive the
// parent context, particularly in chromedp where the context carries the
// connection information.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
