package dom

import "fmt"

// ElementNotFoundError is returned when a required element never appeared.
// Consumers classify it with errors.As instead of matching strings.
type ElementNotFoundError struct {
	Selector string
	Step     string
}

// Error implements the error interface by formatting the message on the fly.
func (e *ElementNotFoundError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: no element matching '%s'", e.Step, e.Selector)
	}
	return fmt.Sprintf("element not found matching selector '%s'", e.Selector)
}

// NewElementNotFoundError creates a new ElementNotFoundError. When several
// fallback selectors were tried they are joined for the message.
func NewElementNotFoundError(step string, selectors ...string) *ElementNotFoundError {
	sel := ""
	for i, s := range selectors {
		if i > 0 {
			sel += " | "
		}
		sel += s
	}
	return &ElementNotFoundError{Selector: sel, Step: step}
}

// DetachedError is returned when an element handle no longer resolves to an
// attached node, typically because the page re-rendered.
type DetachedError struct {
	Selector string
}

func (e *DetachedError) Error() string {
	return fmt.Sprintf("element '%s' is no longer attached", e.Selector)
}
