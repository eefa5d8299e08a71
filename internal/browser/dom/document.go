// browser/dom/document.go
package dom

import (
	"context"
	"strings"

	"github.com/xkilldash9x/sitepilot/api/schemas"
)

// Document is the live page as the adapters see it. Implementations talk to a
// real tab over CDP or to an in-memory tree; either way every call re-reads the
// current state, nothing is cached between calls.
type Document interface {
	// QueryAll returns every attached element matching selector, in document order.
	// Selectors starting with "/" or "(" are XPath, everything else is CSS.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Location returns the current location pathname.
	Location(ctx context.Context) (string, error)
	// PushState adds a history entry for path without reloading.
	PushState(ctx context.Context, path string) error
	// DispatchWindowEvent fires a synthetic event of the given type on window.
	DispatchWindowEvent(ctx context.Context, eventType string) error
	// Metrics reports scroll offsets and document geometry.
	Metrics(ctx context.Context) (schemas.ViewportMetrics, error)
	// ScrollTo moves the window scroll offset.
	ScrollTo(ctx context.Context, x, y float64) error
	// AddSuppression installs a document-level listener that cancels the events
	// described by s and returns a handle for RemoveSuppression.
	AddSuppression(ctx context.Context, s Suppression) (string, error)
	// RemoveSuppression uninstalls a listener added by AddSuppression.
	RemoveSuppression(ctx context.Context, id string) error
}

// Element is a handle to one matched node.
type Element interface {
	// Selector is the selector the element was matched with.
	Selector() string
	// Connected reports whether the node is still attached to the document.
	Connected(ctx context.Context) bool
	// QueryAll matches selector against the element's descendants.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Focus(ctx context.Context) error
	// SetValue assigns the value through the native property setter. It does not
	// fire events; see InsertTextIntoElement.
	SetValue(ctx context.Context, value string) error
	Dispatch(ctx context.Context, ev Event) error
}

// EventKind selects the DOM event constructor used for a synthetic event.
type EventKind string

const (
	KindBasic    EventKind = "Event"
	KindInput    EventKind = "InputEvent"
	KindMouse    EventKind = "MouseEvent"
	KindKeyboard EventKind = "KeyboardEvent"
)

// Event describes a synthetic DOM event.
type Event struct {
	Type       string    `json:"type"`
	Kind       EventKind `json:"kind"`
	Key        string    `json:"key,omitempty"`
	Code       string    `json:"code,omitempty"`
	KeyCode    int       `json:"keyCode,omitempty"`
	Bubbles    bool      `json:"bubbles"`
	Cancelable bool      `json:"cancelable"`
}

// Suppression describes what a document-level blocking listener cancels.
// Events are cancelled unconditionally; Keys only apply to keydown.
type Suppression struct {
	Events []string `json:"events"`
	Keys   []string `json:"keys"`
}

// Cancels reports whether the suppression prevents the default action of an
// event with the given type and key.
func (s Suppression) Cancels(eventType, key string) bool {
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	if eventType != "keydown" {
		return false
	}
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// IsXPath reports whether selector is an XPath expression rather than CSS.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}
