package memdom

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
)

type element struct {
	doc      *Document
	node     *html.Node
	selector string
}

var _ dom.Element = (*element)(nil)

func (e *element) Selector() string { return e.selector }

func (e *element) Connected(ctx context.Context) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.attachedLocked()
}

func (e *element) attachedLocked() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// QueryAll matches selector against the element's descendants.
func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.attachedLocked() {
		return nil, &dom.DetachedError{Selector: e.selector}
	}
	nodes, err := queryFrom(e.node, selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{doc: e.doc, node: n, selector: e.selector + " >> " + selector})
	}
	return out, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.attachedLocked() {
		return "", &dom.DetachedError{Selector: e.selector}
	}
	return strings.TrimSpace(htmlquery.InnerText(e.node)), nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.attachedLocked() {
		return "", false, &dom.DetachedError{Selector: e.selector}
	}
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *element) Focus(ctx context.Context) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.attachedLocked() {
		return &dom.DetachedError{Selector: e.selector}
	}
	return ctx.Err()
}

func (e *element) SetValue(ctx context.Context, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.attachedLocked() {
		return &dom.DetachedError{Selector: e.selector}
	}
	setAttr(e.node, "value", value)
	e.doc.values = append(e.doc.values, ValueChange{Selector: e.selector, Value: value})
	return nil
}

// Dispatch records the event and then runs the page reactions registered for
// it, outside the document lock so reactions may mutate the tree.
func (e *element) Dispatch(ctx context.Context, ev dom.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	if !e.attachedLocked() {
		e.doc.mu.Unlock()
		return &dom.DetachedError{Selector: e.selector}
	}
	e.doc.events = append(e.doc.events, RecordedEvent{Selector: e.selector, Event: ev})
	var fire []func(*Document)
	for _, r := range e.doc.reactions {
		if r.eventType != ev.Type {
			continue
		}
		nodes, err := e.doc.queryLocked(r.selector)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if n == e.node {
				fire = append(fire, r.fn)
				break
			}
		}
	}
	e.doc.mu.Unlock()

	for _, fn := range fire {
		fn(e.doc)
	}
	return nil
}
