package dom

import (
	"context"
	"time"
)

// PollInterval is how often a wait re-checks its condition. Target pages emit no
// trustworthy completion events, so polling is the synchronization primitive.
const PollInterval = 100 * time.Millisecond

// Condition is a predicate over the live page. It must be cheap and must not
// block past the context it is given.
type Condition func(ctx context.Context) bool

// WaitFor polls cond until it holds or timeout elapses. It never returns an
// error: a false result means the condition was not observed in time, and the
// caller decides whether that is fatal.
func WaitFor(ctx context.Context, cond Condition, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if cond(waitCtx) {
			return true
		}
		select {
		case <-waitCtx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Query returns the first attached element matching selector, if any.
func Query(ctx context.Context, doc Document, selector string) (Element, bool) {
	els, err := doc.QueryAll(ctx, selector)
	if err != nil {
		return nil, false
	}
	for _, el := range els {
		if el.Connected(ctx) {
			return el, true
		}
	}
	return nil, false
}

// WaitForElement polls for an attached element matching selector. On timeout it
// returns (nil, false).
func WaitForElement(ctx context.Context, doc Document, selector string, timeout time.Duration) (Element, bool) {
	var found Element
	ok := WaitFor(ctx, func(c context.Context) bool {
		el, hit := Query(c, doc, selector)
		if hit {
			found = el
		}
		return hit
	}, timeout)
	if !ok {
		return nil, false
	}
	return found, true
}

// WaitForAny polls a list of selectors, most specific first, and returns the
// first element found along with the selector that matched it. Within a single
// poll the earlier selectors win.
func WaitForAny(ctx context.Context, doc Document, selectors []string, timeout time.Duration) (Element, string, bool) {
	var (
		found   Element
		matched string
	)
	ok := WaitFor(ctx, func(c context.Context) bool {
		for _, sel := range selectors {
			if el, hit := Query(c, doc, sel); hit {
				found, matched = el, sel
				return true
			}
		}
		return false
	}, timeout)
	if !ok {
		return nil, "", false
	}
	return found, matched, true
}

// QueryAny is the non-waiting form of WaitForAny.
func QueryAny(ctx context.Context, doc Document, selectors []string) (Element, string, bool) {
	for _, sel := range selectors {
		if el, hit := Query(ctx, doc, sel); hit {
			return el, sel, true
		}
	}
	return nil, "", false
}

// Sleep pauses for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
