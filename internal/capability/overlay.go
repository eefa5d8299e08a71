package capability

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// ScrollSuppression is what a visible overlay cancels at the document level.
var ScrollSuppression = dom.Suppression{
	Events: []string{"wheel", "touchmove"},
	Keys: []string{
		"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
		" ", "Spacebar",
		"PageUp", "PageDown",
		"Home", "End",
	},
}

// Overlay is a full-viewport blocking layer. While it is visible exactly one
// suppression listener is installed on the document.
type Overlay struct {
	mu       sync.Mutex
	doc      dom.Document
	logger   *zap.Logger
	visible  bool
	listener string
}

// NewOverlay creates a hidden overlay over doc.
func NewOverlay(doc dom.Document, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Overlay{doc: doc, logger: logger.Named("overlay")}
}

// Show makes the overlay visible and installs the suppression listener if it
// is not already installed.
func (o *Overlay) Show(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener == "" {
		id, err := o.doc.AddSuppression(ctx, ScrollSuppression)
		if err != nil {
			return fmt.Errorf("install scroll suppression: %w", err)
		}
		o.listener = id
	}
	o.visible = true
	return nil
}

// Hide removes the suppression listener and hides the overlay.
func (o *Overlay) Hide(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = false
	return o.releaseLocked(ctx)
}

// Toggle flips visibility and returns the new state.
func (o *Overlay) Toggle(ctx context.Context) (bool, error) {
	if o.Visible() {
		return false, o.Hide(ctx)
	}
	return true, o.Show(ctx)
}

// Visible reports whether the overlay is shown.
func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

func (o *Overlay) releaseLocked(ctx context.Context) error {
	if o.listener == "" {
		return nil
	}
	id := o.listener
	o.listener = ""
	if err := o.doc.RemoveSuppression(ctx, id); err != nil {
		return fmt.Errorf("remove scroll suppression: %w", err)
	}
	return nil
}

// teardown runs on unmount. It must leave no listener behind whatever state
// the overlay was in.
func (o *Overlay) teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = false
	if err := o.releaseLocked(context.Background()); err != nil {
		o.logger.Warn("Overlay teardown could not remove listener.", zap.Error(err))
	}
}

// Entry builds the overlayApi registry entry.
func (o *Overlay) Entry() registry.Entry {
	return registry.Entry{
		Name: schemas.OverlayAPI,
		Ops: map[string]registry.Op{
			"show": {Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return nil, o.Show(ctx)
			}},
			"hide": {Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return nil, o.Hide(ctx)
			}},
			"toggle": {Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return o.Toggle(ctx)
			}},
			"isVisible": {Fn: func(context.Context, registry.Args) (interface{}, error) {
				return o.Visible(), nil
			}},
		},
	}
}

// InjectOverlay mounts o into reg. Re-injecting tears the previous overlay
// down, listener included, before o is bound.
func InjectOverlay(reg *registry.Registry, o *Overlay) (func(), error) {
	return reg.Mount(o.Entry(), o.teardown)
}
