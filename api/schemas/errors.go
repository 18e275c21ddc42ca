package schemas

import (
	"fmt"
	"time"
)

// ElementNotFoundError is returned when resolution exhausted every
// candidate for an intent. Attempts preserves the per-candidate failure
// reasons in the order they were tried.
type ElementNotFoundError struct {
	Intent   *SearchIntent
	Timeout  time.Duration
	Attempts []CandidateFailure
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found for intent (%s) after %d candidates in %s",
		e.Intent.String(), len(e.Attempts), e.Timeout)
}

// WebComponentError reports a failure while waiting for or operating
// inside a custom element.
type WebComponentError struct {
	TagName string
	Op      string
	Err     error
}

func (e *WebComponentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("web component %s: %s: %v", e.TagName, e.Op, e.Err)
	}
	return fmt.Sprintf("web component %s: %s", e.TagName, e.Op)
}

func (e *WebComponentError) Unwrap() error { return e.Err }

// InteractionError is the terminal error of an exhausted interaction.
type InteractionError struct {
	Action   Action
	Selector string
	Attempts int
	Err      error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("interaction %s on %q failed after %d attempts: %v",
		e.Action.Kind, e.Selector, e.Attempts, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// NavigationError reports a navigation that did not reach a usable page.
type NavigationError struct {
	URL    string
	Status int
	Reason string
	Err    error
}

func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("navigation to %s failed", e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NavigationError) Unwrap() error { return e.Err }
