package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/sites"
)

// googleSearchURL is where a search starts when no results page is open.
const googleSearchURL = "https://www.google.com"

// googleAllResultLinks matches every result link regardless of type; the
// classes on each link decide its classification.
const googleAllResultLinks = "a.zReHs"

// jsHarvestResults collects title, href and class list for every result
// link in document order.
const jsHarvestResults = `function(linkSelector) {
	const out = [];
	for (const a of document.querySelectorAll(linkSelector)) {
		const h3 = a.querySelector('h3');
		const title = (h3 ? h3.textContent : a.textContent) || '';
		out.push({ title: title.trim(), href: a.href || '', classes: a.className || '' });
	}
	return out;
}`

// harvestedLink mirrors one entry from jsHarvestResults.
type harvestedLink struct {
	Title   string `json:"title"`
	Href    string `json:"href"`
	Classes string `json:"classes"`
}

// SearchOptions controls one Google search flow.
type SearchOptions struct {
	Query string `json:"query"`
	// ClickIndex clicks the nth organic result (1-based) after the
	// harvest. Zero disables index clicking.
	ClickIndex int `json:"clickIndex,omitempty"`
	// ClickText clicks the first allowed result whose title contains the
	// text, case-insensitively. Takes precedence over ClickIndex.
	ClickText string `json:"clickText,omitempty"`
	// EnsureVisible scrolls the chosen result into view before clicking.
	EnsureVisible bool `json:"ensureVisible,omitempty"`
	// AllowedTypes restricts text clicking to these result types.
	// Defaults to organic only.
	AllowedTypes []string `json:"allowedTypes,omitempty"`
	// ResultsTimeout bounds the wait for the results region.
	ResultsTimeout time.Duration `json:"-"`
}

// SearchReport is the outcome of one search flow.
type SearchReport struct {
	Results  []schemas.SearchResult `json:"results"`
	Clicked  bool                   `json:"clicked"`
	FinalURL string                 `json:"finalUrl,omitempty"`
}

// GoogleFlow drives a Google search end to end.
type GoogleFlow struct {
	deps   Deps
	logger *zap.Logger
}

// NewGoogleFlow builds the flow over one session's components.
func NewGoogleFlow(deps Deps) *GoogleFlow {
	deps.normalize()
	return &GoogleFlow{deps: deps, logger: deps.Logger.Named("google")}
}

// Search navigates to Google, submits the query, harvests the result
// list and optionally clicks one result.
func (f *GoogleFlow) Search(ctx context.Context, opts SearchOptions) (*SearchReport, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	timeout := opts.ResultsTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	f.logger.Info("Starting search.", zap.String("query", opts.Query))

	if _, err := f.deps.Nav.NavigateTo(ctx, googleSearchURL); err != nil {
		return nil, err
	}
	f.deps.Locator.SetTable(sites.Google())

	input, err := f.deps.Locator.Resolve(ctx, &schemas.SearchIntent{SiteRole: "search_input", Role: "textbox"}, 0)
	if err != nil {
		return nil, err
	}
	if outcome := f.deps.Executor.Perform(ctx, input, schemas.Action{Kind: schemas.ActionFill, Text: opts.Query}, defaultOptions()); !outcome.Succeeded {
		return nil, outcome.Err
	}
	if outcome := f.deps.Executor.Perform(ctx, input, schemas.Action{Kind: schemas.ActionPress, Text: "Enter"}, defaultOptions()); !outcome.Succeeded {
		return nil, outcome.Err
	}

	if err := f.deps.Driver.WaitForSelector(ctx, resultsRegion(), timeout); err != nil {
		return nil, &schemas.NavigationError{URL: googleSearchURL, Reason: "search results did not appear", Err: err}
	}

	results, err := f.harvest(ctx)
	if err != nil {
		return nil, err
	}
	f.deps.Sink.SaveJSON("google-search-results", results)
	f.deps.checkpoint(ctx, "google-search")

	report := &SearchReport{Results: results}

	switch {
	case opts.ClickText != "":
		report.Clicked, err = f.clickByText(ctx, results, opts)
	case opts.ClickIndex > 0:
		report.Clicked, err = f.clickByIndex(ctx, opts.ClickIndex, opts.EnsureVisible)
	}
	if err != nil {
		return report, err
	}
	if report.Clicked {
		if url, uerr := f.deps.Driver.CurrentURL(ctx); uerr == nil {
			report.FinalURL = url
		}
	}
	return report, nil
}

// harvest reads every result link and classifies it.
func (f *GoogleFlow) harvest(ctx context.Context) ([]schemas.SearchResult, error) {
	var links []harvestedLink
	if err := f.deps.Driver.Evaluate(ctx, jsHarvestResults, &links, googleAllResultLinks); err != nil {
		return nil, fmt.Errorf("harvesting search results: %w", err)
	}

	results := make([]schemas.SearchResult, 0, len(links))
	for i, link := range links {
		results = append(results, schemas.SearchResult{
			Index: i + 1,
			Title: link.Title,
			URL:   link.Href,
			Type:  sites.GoogleResultType(link.Classes),
		})
	}
	f.logger.Debug("Harvested results.", zap.Int("count", len(results)))
	return results, nil
}

// clickByText clicks the first result whose title contains the text and
// whose type is allowed.
func (f *GoogleFlow) clickByText(ctx context.Context, results []schemas.SearchResult, opts SearchOptions) (bool, error) {
	allowed := opts.AllowedTypes
	if len(allowed) == 0 {
		allowed = []string{sites.ResultOrganic}
	}

	needle := strings.ToLower(opts.ClickText)
	typeOrdinal := make(map[string]int, len(allowed))
	for _, r := range results {
		typeOrdinal[r.Type]++
		if !typeAllowed(r.Type, allowed) {
			continue
		}
		if !strings.Contains(strings.ToLower(r.Title), needle) {
			continue
		}
		selector := sites.GoogleResultByIndex(typeOrdinal[r.Type], r.Type)
		f.logger.Info("Clicking result by text.",
			zap.String("title", r.Title),
			zap.String("type", r.Type),
			zap.String("selector", selector))
		return f.clickResult(ctx, selector, opts.EnsureVisible)
	}

	return false, &schemas.ElementNotFoundError{
		Intent:  &schemas.SearchIntent{Text: opts.ClickText, Region: "results"},
		Timeout: opts.ResultsTimeout,
	}
}

// clickByIndex clicks the nth organic result.
func (f *GoogleFlow) clickByIndex(ctx context.Context, index int, ensureVisible bool) (bool, error) {
	selector := sites.GoogleResultByIndex(index, sites.ResultOrganic)
	f.logger.Info("Clicking result by index.", zap.Int("index", index), zap.String("selector", selector))
	return f.clickResult(ctx, selector, ensureVisible)
}

func (f *GoogleFlow) clickResult(ctx context.Context, selector string, ensureVisible bool) (bool, error) {
	if ensureVisible {
		if err := f.deps.Driver.ScrollIntoView(ctx, selector); err != nil {
			f.logger.Debug("Scroll before click failed.", zap.String("selector", selector), zap.Error(err))
		}
	}
	el, err := f.deps.elementFor(ctx, selector)
	if err != nil {
		return false, err
	}
	outcome := f.deps.Executor.Perform(ctx, el, schemas.Action{Kind: schemas.ActionClick}, defaultOptions())
	if !outcome.Succeeded {
		return false, outcome.Err
	}
	return true, nil
}

// resultsRegion returns the container selector the harvest waits on.
func resultsRegion() string {
	if sel, ok := sites.Google().Region("results"); ok {
		return sel
	}
	return "#search"
}

func typeAllowed(resultType string, allowed []string) bool {
	for _, t := range allowed {
		if t == resultType {
			return true
		}
	}
	return false
}
