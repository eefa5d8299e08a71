// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against one tab. Implementations
// combine the caller's context with the tab's own so actions carry the CDP
// target and respect both lifetimes.
type ActionExecutor interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}
