package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
)

// SearchForm describes a site's search controls. Every selector list is
// ordered most specific first.
type SearchForm struct {
	Inputs  []string
	Submits []string
	Results []string
	// Filters maps a filter type to the alternate selectors of its tab. A type
	// mapped to an empty list is the site default and needs no click.
	Filters map[string][]string
}

// FilterTypes lists the accepted filter types.
func (f SearchForm) FilterTypes() []string {
	out := make([]string, 0, len(f.Filters))
	for k := range f.Filters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SearchSteps builds the search sequence: locate the input, insert the query,
// submit, settle, optionally apply a filter, then wait for results and settle.
func SearchSteps(doc dom.Document, form SearchForm, timing Timing, query, filter string) []Step {
	var input dom.Element

	steps := []Step{
		{Name: "validate request", Run: func(ctx context.Context) error {
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("query is empty")
			}
			if filter == "" {
				return nil
			}
			if _, ok := form.Filters[filter]; !ok {
				return fmt.Errorf("unsupported filter type %q (want one of %s)", filter, strings.Join(form.FilterTypes(), ", "))
			}
			return nil
		}},
		{Name: "locate search input", Run: func(ctx context.Context) error {
			el, _, ok := dom.WaitForAny(ctx, doc, form.Inputs, timing.ControlTimeout)
			if !ok {
				return dom.NewElementNotFoundError("locate search input", form.Inputs...)
			}
			input = el
			return nil
		}},
		{Name: "insert query", Run: func(ctx context.Context) error {
			return dom.InsertTextIntoElement(ctx, input, query)
		}},
		{Name: "submit query", Run: func(ctx context.Context) error {
			if btn, _, ok := dom.QueryAny(ctx, doc, form.Submits); ok {
				return dom.ClickElement(ctx, btn)
			}
			return dom.PressEnter(ctx, input)
		}},
		Settle("settle after submit", timing.SubmitSettle),
	}

	if tabs := form.Filters[filter]; len(tabs) > 0 {
		steps = append(steps,
			Step{Name: "apply filter " + filter, Run: func(ctx context.Context) error {
				tab, _, ok := dom.WaitForAny(ctx, doc, tabs, timing.ControlTimeout)
				if !ok {
					return dom.NewElementNotFoundError("apply filter "+filter, tabs...)
				}
				return dom.ClickElement(ctx, tab)
			}},
			Settle("settle after filter", timing.FilterSettle),
		)
	}

	return append(steps,
		Step{Name: "wait for results", Run: func(ctx context.Context) error {
			if _, _, ok := dom.WaitForAny(ctx, doc, form.Results, timing.ResultsTimeout); !ok {
				return dom.NewElementNotFoundError("wait for results", form.Results...)
			}
			return nil
		}},
		Settle("settle results", timing.ResultsSettle),
	)
}
