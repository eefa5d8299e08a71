// Package memdom is an in-memory implementation of dom.Document. It parses
// static markup, answers CSS (goquery) and XPath (htmlquery) selectors, and
// records every mutation and synthetic event so callers can assert exactly
// what an automation run did to the page. Scripted reactions stand in for the
// target site's own JavaScript.
package memdom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
)

// RecordedEvent is a synthetic event dispatched on an element.
type RecordedEvent struct {
	Selector string
	Event    dom.Event
}

// ValueChange is a value assignment made through Element.SetValue.
type ValueChange struct {
	Selector string
	Value    string
}

type reaction struct {
	selector  string
	eventType string
	fn        func(*Document)
}

// Document is a mutable HTML tree plus the window state the adapters touch.
type Document struct {
	mu sync.Mutex

	root    *html.Node
	body    *html.Node
	path    string
	metrics schemas.ViewportMetrics

	listeners map[string]dom.Suppression
	nextID    int

	reactions []reaction
	onPop     []func(*Document, string)

	events       []RecordedEvent
	values       []ValueChange
	pushes       []string
	windowEvents []string
	prevented    int
}

var _ dom.Document = (*Document)(nil)

// New parses markup into a document whose location is path.
func New(markup, path string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	d := &Document{
		root:      root,
		path:      path,
		listeners: make(map[string]dom.Suppression),
		metrics:   schemas.ViewportMetrics{ViewportHeight: 800, TotalHeight: 800},
	}
	d.body = findBody(root)
	return d, nil
}

// MustNew is New for fixtures known to parse.
func MustNew(markup, path string) *Document {
	d, err := New(markup, path)
	if err != nil {
		panic(err)
	}
	return d
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// -- dom.Document --

// QueryAll implements dom.Document.
func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	nodes, err := d.queryLocked(selector)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{doc: d, node: n, selector: selector})
	}
	return out, nil
}

func (d *Document) queryLocked(selector string) ([]*html.Node, error) {
	return queryFrom(d.root, selector)
}

func queryFrom(root *html.Node, selector string) ([]*html.Node, error) {
	if dom.IsXPath(selector) {
		nodes, err := htmlquery.QueryAll(root, selector)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", selector, err)
		}
		return nodes, nil
	}
	return goquery.NewDocumentFromNode(root).Find(selector).Nodes, nil
}

// Location implements dom.Document.
func (d *Document) Location(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path, ctx.Err()
}

// PushState implements dom.Document.
func (d *Document) PushState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.pushes = append(d.pushes, path)
	d.path = path
	d.mu.Unlock()
	return nil
}

// DispatchWindowEvent implements dom.Document. A popstate runs the hooks
// registered with OnPopState, which is how tests model a client-side router.
func (d *Document) DispatchWindowEvent(ctx context.Context, eventType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.windowEvents = append(d.windowEvents, eventType)
	path := d.path
	var hooks []func(*Document, string)
	if eventType == "popstate" {
		hooks = append(hooks, d.onPop...)
	}
	d.mu.Unlock()
	for _, h := range hooks {
		h(d, path)
	}
	return nil
}

// Metrics implements dom.Document.
func (d *Document) Metrics(ctx context.Context) (schemas.ViewportMetrics, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics, ctx.Err()
}

// ScrollTo implements dom.Document. Offsets are clamped to the scrollable range.
func (d *Document) ScrollTo(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	maxY := d.metrics.TotalHeight - d.metrics.ViewportHeight
	if maxY < 0 {
		maxY = 0
	}
	d.metrics.ScrollX = clamp(x, 0, x)
	d.metrics.ScrollY = clamp(y, 0, maxY)
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddSuppression implements dom.Document.
func (d *Document) AddSuppression(ctx context.Context, s dom.Suppression) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := fmt.Sprintf("suppression-%d", d.nextID)
	d.listeners[id] = s
	return id, nil
}

// RemoveSuppression implements dom.Document.
func (d *Document) RemoveSuppression(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.listeners[id]; !ok {
		return fmt.Errorf("no suppression listener %q", id)
	}
	delete(d.listeners, id)
	return nil
}

// -- Page scripting --

// On registers fn to run after an event of eventType is dispatched on any
// element matching selector.
func (d *Document) On(selector, eventType string, fn func(*Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reactions = append(d.reactions, reaction{selector: selector, eventType: eventType, fn: fn})
}

// OnPopState registers fn to run when a popstate event reaches window.
func (d *Document) OnPopState(fn func(d *Document, path string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPop = append(d.onPop, fn)
}

// After runs fn once delay has passed, on its own goroutine. The returned timer
// can be stopped.
func (d *Document) After(delay time.Duration, fn func(*Document)) *time.Timer {
	return time.AfterFunc(delay, func() { fn(d) })
}

// Append parses markup as children of the first element matching parent, or of
// <body> when parent is empty.
func (d *Document) Append(parent, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	target := d.body
	if parent != "" {
		nodes, err := d.queryLocked(parent)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return dom.NewElementNotFoundError("append", parent)
		}
		target = nodes[0]
	}
	if target == nil {
		return fmt.Errorf("document has no body")
	}
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	children, err := html.ParseFragment(strings.NewReader(markup), ctxNode)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	for _, c := range children {
		target.AppendChild(c)
	}
	return nil
}

// MustAppend is Append for tests.
func (d *Document) MustAppend(parent, markup string) {
	if err := d.Append(parent, markup); err != nil {
		panic(err)
	}
}

// Remove detaches every element matching selector and reports how many.
func (d *Document) Remove(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, err := d.queryLocked(selector)
	if err != nil {
		return 0
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return len(nodes)
}

// SetAttribute sets an attribute on every element matching selector.
func (d *Document) SetAttribute(selector, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, _ := d.queryLocked(selector)
	for _, n := range nodes {
		setAttr(n, name, value)
	}
}

// SetPath moves the location without recording a history push, as a full
// page load would.
func (d *Document) SetPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
}

// SetMetrics replaces the window geometry.
func (d *Document) SetMetrics(m schemas.ViewportMetrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
}

// PressKey simulates a user keydown reaching the document and returns how many
// installed listeners cancelled it.
func (d *Document) PressKey(key string) int {
	return d.fireDocumentEvent("keydown", key)
}

// Wheel simulates a wheel event reaching the document.
func (d *Document) Wheel() int {
	return d.fireDocumentEvent("wheel", "")
}

func (d *Document) fireDocumentEvent(eventType, key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.listeners {
		if s.Cancels(eventType, key) {
			n++
		}
	}
	d.prevented += n
	return n
}

// -- Recorded state --

// Events returns the synthetic events dispatched so far.
func (d *Document) Events() []RecordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RecordedEvent(nil), d.events...)
}

// EventTypes returns the types of events dispatched on elements matching selector.
func (d *Document) EventTypes(selector string) []string {
	var out []string
	for _, e := range d.Events() {
		if e.Selector == selector {
			out = append(out, e.Event.Type)
		}
	}
	return out
}

// Values returns every value assignment made so far.
func (d *Document) Values() []ValueChange {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ValueChange(nil), d.values...)
}

// PushStates returns the paths passed to PushState.
func (d *Document) PushStates() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.pushes...)
}

// WindowEvents returns the event types dispatched on window.
func (d *Document) WindowEvents() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.windowEvents...)
}

// ListenerCount returns how many suppression listeners are installed.
func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// HTML renders the current tree.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	_ = html.Render(&b, d.root)
	return b.String()
}

func setAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}
