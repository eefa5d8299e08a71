// Package linkedin automates the professional network: filtered search and
// in-app navigation between its main sections.
package linkedin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// BaseURL is where the run command opens the site.
const BaseURL = "https://www.linkedin.com"

func filterTab(label string) []string {
	return []string{
		fmt.Sprintf("button[aria-label='%s']", label),
		fmt.Sprintf("//button[normalize-space()='%s']", label),
		fmt.Sprintf("//li[contains(@class,'search-reusables__primary-filter')]//button[normalize-space()='%s']", label),
	}
}

var searchForm = flow.SearchForm{
	Inputs: []string{
		"input.search-global-typeahead__input",
		"input[aria-label='Search']",
		"input[placeholder='Search']",
		"//input[contains(@placeholder,'Search')]",
	},
	// The global search box has no submit button; Enter submits it.
	Submits: nil,
	Results: []string{
		".search-results-container",
		"ul.reusable-search__entity-result-list",
		".jobs-search-results-list",
		"main .search-results",
	},
	Filters: map[string][]string{
		"people":    filterTab("People"),
		"jobs":      filterTab("Jobs"),
		"companies": filterTab("Companies"),
		"posts":     filterTab("Posts"),
		"groups":    filterTab("Groups"),
	},
}

var mainContent = []string{"main#main", "main", ".scaffold-layout__main"}

// Routes of the sections the adapter can open.
var (
	HomeRoute = flow.Route{
		Path:               "/feed/",
		Secondary:          []string{".scaffold-finite-scroll__content", "[data-finite-scroll-hotkey-context='FEED']", ".feed-shared-update-v2"},
		ScrollTopIfCurrent: true,
	}
	JobsRoute      = flow.Route{Path: "/jobs/", Secondary: []string{".jobs-home", ".scaffold-layout__list", "section.jobs-feed"}}
	NetworkRoute   = flow.Route{Path: "/mynetwork/", Secondary: []string{".mn-community-summary", "section.mn-invitations-preview", "//section[.//h2[contains(.,'Invitations')]]"}}
	MessagingRoute = flow.Route{Path: "/messaging/", Secondary: []string{".msg-conversations-container", ".msg-overlay-list-bubble", "//div[contains(@class,'msg-conversations-container')]"}}
)

// Adapter is the linkedinApi implementation.
type Adapter struct {
	doc    dom.Document
	opts   flow.Options
	runner flow.Runner
}

// New creates the adapter. Outcome messages go to rep.
func New(doc dom.Document, rep flow.Reporter, logger *zap.Logger, opts ...flow.Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		doc:    doc,
		opts:   flow.ApplyOptions(opts),
		runner: flow.Runner{Logger: logger.Named("linkedin"), Reporter: rep},
	}
}

// Search runs a global search. An empty type leaves the "all" view in place;
// other types click the matching filter pill.
func (a *Adapter) Search(ctx context.Context, query string, opts schemas.SearchOptions) bool {
	return a.runner.Run(ctx, "linkedin search",
		flow.SearchSteps(a.doc, searchForm, a.opts.Timing, query, opts.Type)...)
}

func (a *Adapter) navigator() flow.Navigator {
	return flow.Navigator{Doc: a.doc, MainContent: mainContent, Timing: a.opts.Timing, Runner: a.runner}
}

// NavigateToHome opens the feed.
func (a *Adapter) NavigateToHome(ctx context.Context) bool {
	return a.navigator().Go(ctx, "linkedin navigateToHome", HomeRoute)
}

// NavigateToJobs opens the jobs page.
func (a *Adapter) NavigateToJobs(ctx context.Context) bool {
	return a.navigator().Go(ctx, "linkedin navigateToJobs", JobsRoute)
}

// NavigateToNetwork opens My Network.
func (a *Adapter) NavigateToNetwork(ctx context.Context) bool {
	return a.navigator().Go(ctx, "linkedin navigateToNetwork", NetworkRoute)
}

// NavigateToMessaging opens messaging and waits for the conversation list.
func (a *Adapter) NavigateToMessaging(ctx context.Context) bool {
	return a.navigator().Go(ctx, "linkedin navigateToMessaging", MessagingRoute)
}

// NavigateTo opens an arbitrary in-app path, waiting only for main content.
func (a *Adapter) NavigateTo(ctx context.Context, path string) bool {
	return a.navigator().Go(ctx, "linkedin navigateTo", flow.Route{Path: path})
}

// Entry builds the linkedinApi registry entry.
func (a *Adapter) Entry() registry.Entry {
	nav := func(fn func(context.Context) bool) registry.Op {
		return registry.Op{Async: true, Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
			return fn(ctx), nil
		}}
	}
	return registry.Entry{
		Name: schemas.LinkedInAPI,
		Ops: map[string]registry.Op{
			"search": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				query, opts, err := flow.SearchArgs(args)
				if err != nil {
					return nil, err
				}
				return a.Search(ctx, query, opts), nil
			}},
			"navigateToHome":      nav(a.NavigateToHome),
			"navigateToJobs":      nav(a.NavigateToJobs),
			"navigateToNetwork":   nav(a.NavigateToNetwork),
			"navigateToMessaging": nav(a.NavigateToMessaging),
			"navigateTo": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				var path string
				if err := args.Bind(0, &path); err != nil {
					return nil, err
				}
				if path == "" {
					return nil, fmt.Errorf("navigateTo requires a path")
				}
				return a.NavigateTo(ctx, path), nil
			}},
		},
	}
}

// Inject mounts the adapter into reg.
func Inject(reg *registry.Registry, a *Adapter) (func(), error) {
	return reg.Mount(a.Entry(), nil)
}
