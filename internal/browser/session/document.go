// internal/browser/session/document.go
package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
)

// Document is a dom.Document backed by a live tab. Every call is one
// Runtime.evaluate round trip; nothing is cached between calls.
type Document struct {
	eval   func(ctx context.Context, script string) ([]byte, error)
	logger *zap.Logger
}

var _ dom.Document = (*Document)(nil)

// NewDocument wraps an executor, usually a *Session.
func NewDocument(exec ActionExecutor, logger *zap.Logger) *Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{eval: evaluator(exec), logger: logger.Named("cdp_document")}
}

// evaluator runs a script on the tab and returns the raw JSON value.
func evaluator(exec ActionExecutor) func(context.Context, string) ([]byte, error) {
	return func(ctx context.Context, script string) ([]byte, error) {
		var raw []byte
		err := exec.RunActions(ctx,
			chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
			}),
		)
		return raw, err
	}
}

// run evaluates fn(args...) and returns its outcome.
func (d *Document) run(ctx context.Context, fn string, args ...interface{}) (outcome, error) {
	script, err := snippet(fn, args...)
	if err != nil {
		return outcome{}, err
	}
	raw, err := d.eval(ctx, script)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, fmt.Errorf("context error during page evaluation: %w", err)
		}
		return outcome{}, fmt.Errorf("page evaluation failed: %w", err)
	}
	var out outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return outcome{}, fmt.Errorf("decode page result: %w (payload: %s)", err, string(raw))
	}
	return out, nil
}

// value runs fn and decodes the outcome value into v; a failed resolution
// becomes a DetachedError for sel.
func (d *Document) value(ctx context.Context, sel string, v interface{}, fn string, args ...interface{}) error {
	out, err := d.run(ctx, fn, args...)
	if err != nil {
		return err
	}
	if !out.OK {
		return &dom.DetachedError{Selector: sel}
	}
	if v == nil || len(out.Value) == 0 {
		return nil
	}
	return json.Unmarshal(out.Value, v)
}

func (d *Document) queryAll(ctx context.Context, parent locator, selector string) ([]dom.Element, error) {
	var n int
	if err := d.value(ctx, parent.String(), &n, fnCount, parent, selector); err != nil {
		return nil, err
	}
	out := make([]dom.Element, n)
	for i := range out {
		out[i] = &element{doc: d, loc: parent.child(selector, i)}
	}
	return out, nil
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return d.queryAll(ctx, locator{}, selector)
}

func (d *Document) Location(ctx context.Context) (string, error) {
	var path string
	err := d.value(ctx, "window", &path, fnLocation)
	return path, err
}

func (d *Document) PushState(ctx context.Context, path string) error {
	return d.value(ctx, "window", nil, fnPushState, path)
}

func (d *Document) DispatchWindowEvent(ctx context.Context, eventType string) error {
	return d.value(ctx, "window", nil, fnWindowEvent, eventType)
}

func (d *Document) Metrics(ctx context.Context) (schemas.ViewportMetrics, error) {
	var m schemas.ViewportMetrics
	err := d.value(ctx, "window", &m, fnMetrics)
	return m, err
}

func (d *Document) ScrollTo(ctx context.Context, x, y float64) error {
	return d.value(ctx, "window", nil, fnScrollTo, x, y)
}

// AddSuppression installs a capturing, non-passive listener on document so
// preventDefault is honoured for wheel and touch events.
func (d *Document) AddSuppression(ctx context.Context, s dom.Suppression) (string, error) {
	id := uuid.NewString()
	if err := d.value(ctx, "document", nil, fnAddSuppression, id, s); err != nil {
		return "", err
	}
	d.logger.Debug("Suppression listener installed.", zap.String("id", id))
	return id, nil
}

func (d *Document) RemoveSuppression(ctx context.Context, id string) error {
	out, err := d.run(ctx, fnRemoveSuppression, id)
	if err != nil {
		return err
	}
	if !out.OK {
		// Navigations discard page state, listener included.
		d.logger.Debug("Suppression listener already gone.", zap.String("id", id))
	}
	return nil
}

type element struct {
	doc *Document
	loc locator
}

var _ dom.Element = (*element)(nil)

func (e *element) Selector() string { return e.loc.String() }

func (e *element) Connected(ctx context.Context) bool {
	out, err := e.doc.run(ctx, fnConnected, e.loc)
	return err == nil && out.OK
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return e.doc.queryAll(ctx, e.loc, selector)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.doc.value(ctx, e.Selector(), &text, fnText, e.loc)
	return text, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var attr struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := e.doc.value(ctx, e.Selector(), &attr, fnAttribute, e.loc, name); err != nil {
		return "", false, err
	}
	return attr.Value, attr.Present, nil
}

func (e *element) Focus(ctx context.Context) error {
	return e.doc.value(ctx, e.Selector(), nil, fnFocus, e.loc)
}

func (e *element) SetValue(ctx context.Context, value string) error {
	return e.doc.value(ctx, e.Selector(), nil, fnSetValue, e.loc, value)
}

func (e *element) Dispatch(ctx context.Context, ev dom.Event) error {
	return e.doc.value(ctx, e.Selector(), nil, fnDispatch, e.loc, ev)
}
