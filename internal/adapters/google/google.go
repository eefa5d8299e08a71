// Package google automates the search engine: query submission with result
// type tabs, structured result scraping and returning to the home page.
package google

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// BaseURL is where the run command opens the site.
const BaseURL = "https://www.google.com"

// DefaultResultLimit applies when getResults is called without a limit.
const DefaultResultLimit = 10

var searchForm = flow.SearchForm{
	Inputs: []string{
		"textarea[name='q']",
		"input[name='q']",
		"textarea[title='Search']",
		"input[title='Search']",
	},
	Submits: []string{
		"button[type='submit'][aria-label='Google Search']",
		"input[name='btnK']",
		"button[type='submit']",
	},
	Results: []string{"#rso", "#search", "#center_col", "div[role='main']"},
	Filters: map[string][]string{
		"all":      nil,
		"news":     {"a[href*='tbm=nws']", "//a[.//*[normalize-space()='News']]", "//a[normalize-space()='News']"},
		"images":   {"a[href*='udm=2']", "a[href*='tbm=isch']", "//a[.//*[normalize-space()='Images']]", "//a[normalize-space()='Images']"},
		"videos":   {"a[href*='tbm=vid']", "//a[.//*[normalize-space()='Videos']]", "//a[normalize-space()='Videos']"},
		"shopping": {"a[href*='tbm=shop']", "//a[.//*[normalize-space()='Shopping']]", "//a[normalize-space()='Shopping']"},
	},
}

var (
	homeContent   = []string{"form[action='/search']", "textarea[name='q']", "input[name='q']"}
	resultBlocks  = []string{"#rso div.g", "#search div.g", "#rso div.MjjYud"}
	titleSelector = "h3"
	linkSelector  = "a[href]"
	snippetParts  = []string{"div.VwiC3b", "[data-sncf]", "span.aCOpRe", "div[style*='-webkit-line-clamp']"}
)

// Adapter is the googleApi implementation.
type Adapter struct {
	doc    dom.Document
	logger *zap.Logger
	opts   flow.Options
	runner flow.Runner
}

// New creates the adapter. Outcome messages go to rep.
func New(doc dom.Document, rep flow.Reporter, logger *zap.Logger, opts ...flow.Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("google")
	return &Adapter{
		doc:    doc,
		logger: logger,
		opts:   flow.ApplyOptions(opts),
		runner: flow.Runner{Logger: logger, Reporter: rep},
	}
}

// Search submits query and, unless opts.Type is empty or "all", switches to
// the matching result tab.
func (a *Adapter) Search(ctx context.Context, query string, opts schemas.SearchOptions) bool {
	return a.runner.Run(ctx, "google search",
		flow.SearchSteps(a.doc, searchForm, a.opts.Timing, query, opts.Type)...)
}

// NavigateToHome returns to the search home page.
func (a *Adapter) NavigateToHome(ctx context.Context) bool {
	nav := flow.Navigator{Doc: a.doc, MainContent: homeContent, Timing: a.opts.Timing, Runner: a.runner}
	return nav.Go(ctx, "google navigateToHome", flow.Route{Path: "/", ScrollTopIfCurrent: true})
}

// Results scrapes up to limit organic results from the current results page.
// Blocks without a title or link are skipped.
func (a *Adapter) Results(ctx context.Context, limit int) ([]schemas.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	results := []schemas.SearchResult{}
	err := a.runner.RunE(ctx, "google getResults",
		flow.Step{Name: "wait for results", Run: func(ctx context.Context) error {
			if _, _, ok := dom.WaitForAny(ctx, a.doc, searchForm.Results, a.opts.Timing.ResultsTimeout); !ok {
				return dom.NewElementNotFoundError("wait for results", searchForm.Results...)
			}
			return nil
		}},
		flow.Step{Name: "extract results", Run: func(ctx context.Context) error {
			blocks, err := a.blocks(ctx)
			if err != nil {
				return err
			}
			for _, b := range blocks {
				if len(results) >= limit {
					break
				}
				if r, ok := a.extract(ctx, b); ok {
					results = append(results, r)
				}
			}
			return nil
		}},
	)
	return results, err
}

// blocks returns the result blocks of the first selector that matches any.
func (a *Adapter) blocks(ctx context.Context) ([]dom.Element, error) {
	for _, sel := range resultBlocks {
		els, err := a.doc.QueryAll(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

func (a *Adapter) extract(ctx context.Context, block dom.Element) (schemas.SearchResult, bool) {
	title := firstText(ctx, block, titleSelector)
	if title == "" {
		return schemas.SearchResult{}, false
	}
	links, err := block.QueryAll(ctx, linkSelector)
	if err != nil || len(links) == 0 {
		return schemas.SearchResult{}, false
	}
	href, _, err := links[0].Attribute(ctx, "href")
	if err != nil || href == "" {
		return schemas.SearchResult{}, false
	}
	var snippet string
	for _, sel := range snippetParts {
		if snippet = firstText(ctx, block, sel); snippet != "" {
			break
		}
	}
	return schemas.SearchResult{Title: title, URL: href, Snippet: snippet}, true
}

func firstText(ctx context.Context, scope dom.Element, selector string) string {
	els, err := scope.QueryAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return ""
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// Entry builds the googleApi registry entry.
func (a *Adapter) Entry() registry.Entry {
	return registry.Entry{
		Name: schemas.GoogleAPI,
		Ops: map[string]registry.Op{
			"search": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				query, opts, err := flow.SearchArgs(args)
				if err != nil {
					return nil, err
				}
				return a.Search(ctx, query, opts), nil
			}},
			"getResults": {Async: true, Negative: []schemas.SearchResult{}, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				var limit int
				if err := args.Bind(0, &limit); err != nil {
					return nil, err
				}
				return a.Results(ctx, limit)
			}},
			"navigateToHome": {Async: true, Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return a.NavigateToHome(ctx), nil
			}},
		},
	}
}

// Inject mounts the adapter into reg.
func Inject(reg *registry.Registry, a *Adapter) (func(), error) {
	return reg.Mount(a.Entry(), nil)
}
