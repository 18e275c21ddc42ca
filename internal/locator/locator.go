// internal/locator/locator.go
// The element locator is the pipeline's front door: it takes a search
// intent, generates candidates, scores them against the live page and
// walks the ranked list until one candidate passes the readiness check.
package locator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
	"github.com/webpilot9/webpilot/internal/sites"
)

// ElementLocator resolves search intents to usable selectors.
type ElementLocator struct {
	driver    schemas.PageDriver
	generator *Generator
	scorer    *Scorer
	readiness *ReadinessChecker
	table     *sites.Table
	cfg       config.LocatorConfig
	logger    *zap.Logger
}

// New builds a locator bound to one driver. table may be nil when the
// current site has no curated selectors.
func New(driver schemas.PageDriver, table *sites.Table, cfg config.LocatorConfig, logger *zap.Logger) *ElementLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElementLocator{
		driver:    driver,
		generator: NewGenerator(logger),
		scorer:    NewScorer(cfg),
		readiness: NewReadinessChecker(driver, cfg, logger),
		table:     table,
		cfg:       cfg,
		logger:    logger.Named("locator"),
	}
}

// SetTable swaps the active site table, e.g. after a cross-site
// navigation.
func (l *ElementLocator) SetTable(table *sites.Table) { l.table = table }

// Resolve finds a usable element for the intent. It returns the first
// ranked candidate that matches at least one node and passes readiness,
// or an *ElementNotFoundError carrying every candidate's failure reason.
func (l *ElementLocator) Resolve(ctx context.Context, intent *schemas.SearchIntent, timeout time.Duration) (*schemas.ResolvedElement, error) {
	return l.resolve(ctx, intent, timeout, true)
}

// ResolveUnchecked is Resolve without the readiness gate: the best-scored
// candidate with at least one match wins even if it is not interactable
// yet. Used for anchors and pure reads.
func (l *ElementLocator) ResolveUnchecked(ctx context.Context, intent *schemas.SearchIntent, timeout time.Duration) (*schemas.ResolvedElement, error) {
	return l.resolve(ctx, intent, timeout, false)
}

func (l *ElementLocator) resolve(ctx context.Context, intent *schemas.SearchIntent, timeout time.Duration, checkReadiness bool) (*schemas.ResolvedElement, error) {
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search intent: %w", err)
	}
	if timeout <= 0 {
		timeout = l.cfg.ResolveTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A proximity intent anchors on its neighbor, so the neighbor has to
	// be resolved first. Readiness is not required of an anchor.
	neighborSelector := ""
	if intent.ProximityTo != nil {
		neighbor, err := l.ResolveUnchecked(opCtx, intent.ProximityTo, timeout)
		if err != nil {
			l.logger.Debug("Proximity neighbor did not resolve; proximity candidates skipped.",
				zap.String("neighbor", intent.ProximityTo.String()), zap.Error(err))
		} else {
			neighborSelector = neighbor.Selector
		}
	}

	candidates := l.generator.Generate(intent, l.table, neighborSelector)

	var failures []schemas.CandidateFailure
	scored := make([]schemas.Candidate, 0, len(candidates))

	for _, c := range candidates {
		count, err := l.driver.QueryCount(opCtx, c.Expression)
		if err != nil {
			failures = append(failures, schemas.CandidateFailure{Candidate: c, Reason: fmt.Sprintf("query failed: %v", err)})
			continue
		}
		if count == 0 {
			failures = append(failures, schemas.CandidateFailure{Candidate: c, Reason: "no matches"})
			continue
		}
		c.MatchCount = count

		firstVisible, err := l.driver.IsVisible(opCtx, c.Expression)
		if err != nil {
			failures = append(failures, schemas.CandidateFailure{Candidate: c, Reason: fmt.Sprintf("visibility probe failed: %v", err)})
			continue
		}
		c.Score = l.scorer.Score(c.Expression, count, firstVisible)
		scored = append(scored, c)
	}

	// Stable sort keeps generation order among equal scores, so the more
	// precise strategy still wins a tie.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	for _, c := range scored {
		if opCtx.Err() != nil {
			failures = append(failures, schemas.CandidateFailure{Candidate: c, Reason: "resolution timeout"})
			continue
		}

		el, reason := l.tryCandidate(opCtx, c, checkReadiness)
		if el != nil {
			l.logResolved(intent, c, el)
			return el, nil
		}
		failures = append(failures, schemas.CandidateFailure{Candidate: c, Reason: reason})

		// A multi-match expression that failed on its first match may
		// still hold a usable later match, e.g. three "Continue" buttons
		// where only the second is visible. Walk indexed variants of the
		// expression through the same gate.
		if checkReadiness && c.MatchCount > 1 {
			el, indexedFailures := l.resolveIndexed(opCtx, c)
			failures = append(failures, indexedFailures...)
			if el != nil {
				l.logResolved(intent, c, el)
				return el, nil
			}
		}
	}

	l.logger.Warn("Element resolution exhausted all candidates.",
		zap.String("intent", intent.String()),
		zap.Int("candidates", len(candidates)))

	return nil, &schemas.ElementNotFoundError{
		Intent:   intent,
		Timeout:  timeout,
		Attempts: failures,
	}
}

// tryCandidate runs one expression through the readiness gate and the
// geometry read. A nil element comes back with the failure reason.
func (l *ElementLocator) tryCandidate(ctx context.Context, c schemas.Candidate, checkReadiness bool) (*schemas.ResolvedElement, string) {
	if checkReadiness {
		report, err := l.readiness.Verify(ctx, c.Expression, VerifyOptions{})
		if err != nil {
			return nil, fmt.Sprintf("readiness check failed: %v", err)
		}
		if !report.Ready() {
			return nil, readinessReason(report)
		}
	}

	geom, err := l.driver.Geometry(ctx, c.Expression)
	if err != nil {
		return nil, fmt.Sprintf("geometry read failed: %v", err)
	}

	return &schemas.ResolvedElement{
		Selector:   c.Expression,
		Origin:     c.Origin,
		Geometry:   geom,
		Visible:    true,
		ResolvedAt: time.Now(),
	}, ""
}

// maxIndexedMatches caps how many matches of one expression the indexed
// walk inspects.
const maxIndexedMatches = 10

// resolveIndexed walks the second through last matches of a multi-match
// candidate using index-isolating variants of its expression. The first
// match has already failed by the time this runs.
func (l *ElementLocator) resolveIndexed(ctx context.Context, c schemas.Candidate) (*schemas.ResolvedElement, []schemas.CandidateFailure) {
	var failures []schemas.CandidateFailure

	limit := c.MatchCount
	if limit > maxIndexedMatches {
		limit = maxIndexedMatches
	}
	for i := 2; i <= limit; i++ {
		if ctx.Err() != nil {
			break
		}
		sub := c
		sub.Expression = indexedExpression(c, i)
		sub.MatchCount = 1

		// nth-of-type variants of a CSS expression do not always land on
		// a node; skip the gaps.
		count, err := l.driver.QueryCount(ctx, sub.Expression)
		if err != nil || count == 0 {
			continue
		}

		el, reason := l.tryCandidate(ctx, sub, true)
		if el != nil {
			return el, failures
		}
		failures = append(failures, schemas.CandidateFailure{Candidate: sub, Reason: reason})
	}
	return nil, failures
}

// indexedExpression isolates the i-th match of a candidate's expression.
func indexedExpression(c schemas.Candidate, i int) string {
	if c.IsXPath() {
		return fmt.Sprintf("(%s)[%d]", c.Expression, i)
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", c.Expression, i)
}

func (l *ElementLocator) logResolved(intent *schemas.SearchIntent, c schemas.Candidate, el *schemas.ResolvedElement) {
	l.logger.Debug("Resolved element.",
		zap.String("intent", intent.String()),
		zap.String("selector", el.Selector),
		zap.String("origin", string(c.Origin)),
		zap.Int("score", c.Score))
}

// readinessReason names the first failed check in a report.
func readinessReason(r schemas.ReadinessReport) string {
	switch {
	case !r.Visible:
		return "not visible"
	case !r.Enabled:
		return "disabled"
	case !r.Stable:
		return "geometry not settled"
	case r.Occluded:
		return "occluded by another element"
	default:
		return "not ready"
	}
}
