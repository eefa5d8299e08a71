package flow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
)

// Route is a navigation target inside a single-page app.
type Route struct {
	Path string
	// Secondary, if set, is a more specific container that must also appear.
	Secondary []string
	// ScrollTopIfCurrent re-scrolls to the top when already at Path.
	ScrollTopIfCurrent bool
}

// Navigator performs history-based navigation: push a history entry, fire
// popstate so the site's router reacts, then wait for content.
type Navigator struct {
	Doc         dom.Document
	MainContent []string
	Timing      Timing
	Runner      Runner
}

// NormalizePath makes "/feed" and "/feed/" compare equal. The root stays "/".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// Go navigates to route. If the page is already there it succeeds without
// touching history.
func (n Navigator) Go(ctx context.Context, operation string, route Route) bool {
	current, err := n.Doc.Location(ctx)
	if err != nil {
		return n.Runner.Run(ctx, operation, Step{Name: "read location", Run: func(context.Context) error { return err }})
	}
	if NormalizePath(current) == NormalizePath(route.Path) {
		n.Runner.log().Debug("Already at target path.", zap.String("path", route.Path))
		if !route.ScrollTopIfCurrent {
			return true
		}
		return n.Runner.Run(ctx, operation, Step{Name: "scroll to top", Run: func(ctx context.Context) error {
			m, err := n.Doc.Metrics(ctx)
			if err != nil {
				return err
			}
			return n.Doc.ScrollTo(ctx, m.ScrollX, 0)
		}})
	}
	return n.Runner.Run(ctx, operation, n.steps(route)...)
}

func (n Navigator) steps(route Route) []Step {
	steps := []Step{
		{Name: "push history entry", Run: func(ctx context.Context) error {
			if err := n.Doc.PushState(ctx, route.Path); err != nil {
				return fmt.Errorf("pushState %s: %w", route.Path, err)
			}
			return n.Doc.DispatchWindowEvent(ctx, "popstate")
		}},
		{Name: "wait for main content", Run: func(ctx context.Context) error {
			if _, _, ok := dom.WaitForAny(ctx, n.Doc, n.MainContent, n.Timing.PageTimeout); !ok {
				return dom.NewElementNotFoundError("wait for main content", n.MainContent...)
			}
			return nil
		}},
	}
	if len(route.Secondary) > 0 {
		steps = append(steps, Step{Name: "wait for secondary content", Run: func(ctx context.Context) error {
			if _, _, ok := dom.WaitForAny(ctx, n.Doc, route.Secondary, n.Timing.PageTimeout); !ok {
				return dom.NewElementNotFoundError("wait for secondary content", route.Secondary...)
			}
			return nil
		}})
	}
	return append(steps, Settle("settle after navigation", n.Timing.NavigateSettle))
}
