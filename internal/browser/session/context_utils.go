// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext derives from primary, which carries the chromedp target,
// and is additionally cancelled when secondary (the caller's deadline) is.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// Detach keeps ctx's values (the chromedp target) but drops its deadline and
// cancellation, for cleanup that must run after the session context ends.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
