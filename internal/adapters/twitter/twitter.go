// Package twitter automates the social network's timeline navigation and
// search.
package twitter

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
const BaseURL = "https://x.com"

func searchTab(param, label string) []string {
	return []string{
		fmt.Sprintf("a[role='tab'][href*='f=%s']", param),
		fmt.Sprintf("a[href*='f=%s']", param),
		fmt.Sprintf("//a[@role='tab'][.//span[normalize-space()='%s']]", label),
	}
}

var searchForm = flow.SearchForm{
	Inputs: []string{
		"input[data-testid='SearchBox_Search_Input']",
		"input[aria-label='Search query']",
		"input[placeholder='Search']",
	},
	Submits: nil,
	Results: []string{
		"div[aria-label^='Timeline: Search']",
		"[data-testid='primaryColumn'] section[role='region']",
		"[data-testid='emptyState']",
	},
	Filters: map[string][]string{
		"top":    nil,
		"latest": searchTab("live", "Latest"),
		"people": searchTab("user", "People"),
		"media":  searchTab("media", "Media"),
	},
}

var mainContent = []string{"main[role='main']", "[data-testid='primaryColumn']", "main"}

var (
	HomeRoute = flow.Route{
		Path:               "/home",
		Secondary:          []string{"div[aria-label='Timeline: Your Home Timeline']", "[data-testid='primaryColumn'] section[role='region']"},
		ScrollTopIfCurrent: true,
	}
	ExploreRoute       = flow.Route{Path: "/explore", Secondary: []string{"input[data-testid='SearchBox_Search_Input']", "div[aria-label='Timeline: Explore']"}}
	NotificationsRoute = flow.Route{Path: "/notifications", Secondary: []string{"div[aria-label='Timeline: Notifications']", "[data-testid='primaryColumn'] section[role='region']"}}
)

// Adapter is the twitterApi implementation.
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
		runner: flow.Runner{Logger: logger.Named("twitter"), Reporter: rep},
	}
}

func (a *Adapter) navigator() flow.Navigator {
	return flow.Navigator{Doc: a.doc, MainContent: mainContent, Timing: a.opts.Timing, Runner: a.runner}
}

// NavigateToHome opens the home timeline.
func (a *Adapter) NavigateToHome(ctx context.Context) bool {
	return a.navigator().Go(ctx, "twitter navigateToHome", HomeRoute)
}

// NavigateToExplore opens explore, where the search box lives.
func (a *Adapter) NavigateToExplore(ctx context.Context) bool {
	return a.navigator().Go(ctx, "twitter navigateToExplore", ExploreRoute)
}

// NavigateToNotifications opens the notifications timeline.
func (a *Adapter) NavigateToNotifications(ctx context.Context) bool {
	return a.navigator().Go(ctx, "twitter navigateToNotifications", NotificationsRoute)
}

// Search uses the search box that is on screen. The timeline pages without one
// are left to the caller: navigate to explore first.
func (a *Adapter) Search(ctx context.Context, query string, opts schemas.SearchOptions) bool {
	return a.runner.Run(ctx, "twitter search",
		flow.SearchSteps(a.doc, searchForm, a.opts.Timing, query, opts.Type)...)
}

// Entry builds the twitterApi registry entry.
func (a *Adapter) Entry() registry.Entry {
	nav := func(fn func(context.Context) bool) registry.Op {
		return registry.Op{Async: true, Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
			return fn(ctx), nil
		}}
	}
	return registry.Entry{
		Name: schemas.TwitterAPI,
		Ops: map[string]registry.Op{
			"navigateToHome":          nav(a.NavigateToHome),
			"navigateToExplore":       nav(a.NavigateToExplore),
			"navigateToNotifications": nav(a.NavigateToNotifications),
			"search": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				query, opts, err := flow.SearchArgs(args)
				if err != nil {
					return nil, err
				}
				return a.Search(ctx, query, opts), nil
			}},
		},
	}
}

// Inject mounts the adapter into reg.
func Inject(reg *registry.Registry, a *Adapter) (func(), error) {
	return reg.Mount(a.Entry(), nil)
}
