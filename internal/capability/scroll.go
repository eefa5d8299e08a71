package capability

import (
	"context"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// DefaultBottomThreshold is used when isScrolledToBottom gets no threshold.
const DefaultBottomThreshold = 10

// Scroll drives the window scroll offset.
type Scroll struct {
	doc dom.Document
}

func NewScroll(doc dom.Document) *Scroll {
	return &Scroll{doc: doc}
}

func (s *Scroll) ScrollBy(ctx context.Context, dx, dy float64) error {
	m, err := s.doc.Metrics(ctx)
	if err != nil {
		return err
	}
	return s.doc.ScrollTo(ctx, m.ScrollX+dx, m.ScrollY+dy)
}

func (s *Scroll) ScrollToTop(ctx context.Context) error {
	m, err := s.doc.Metrics(ctx)
	if err != nil {
		return err
	}
	return s.doc.ScrollTo(ctx, m.ScrollX, 0)
}

func (s *Scroll) ScrollToBottom(ctx context.Context) error {
	m, err := s.doc.Metrics(ctx)
	if err != nil {
		return err
	}
	return s.doc.ScrollTo(ctx, m.ScrollX, m.TotalHeight)
}

func (s *Scroll) Position(ctx context.Context) (schemas.ScrollPosition, error) {
	m, err := s.doc.Metrics(ctx)
	if err != nil {
		return schemas.ScrollPosition{}, err
	}
	return schemas.ScrollPosition{X: m.ScrollX, Y: m.ScrollY}, nil
}

// AtBottom reports whether the page is within threshold pixels of its end.
// The boundary is inclusive.
func (s *Scroll) AtBottom(ctx context.Context, threshold float64) (bool, error) {
	m, err := s.doc.Metrics(ctx)
	if err != nil {
		return false, err
	}
	return IsAtBottom(m, threshold), nil
}

// IsAtBottom is the at-bottom predicate over raw metrics.
func IsAtBottom(m schemas.ViewportMetrics, threshold float64) bool {
	return m.ScrollY+m.ViewportHeight >= m.TotalHeight-threshold
}

func (s *Scroll) Entry() registry.Entry {
	return registry.Entry{
		Name: schemas.ScrollAPI,
		Ops: map[string]registry.Op{
			"scrollBy": {Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				var dx, dy float64
				if err := args.Bind(0, &dx); err != nil {
					return nil, err
				}
				if err := args.Bind(1, &dy); err != nil {
					return nil, err
				}
				return nil, s.ScrollBy(ctx, dx, dy)
			}},
			"scrollToTop": {Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return nil, s.ScrollToTop(ctx)
			}},
			"scrollToBottom": {Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return nil, s.ScrollToBottom(ctx)
			}},
			"getScrollPosition": {Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return s.Position(ctx)
			}, Negative: schemas.ScrollPosition{}},
			"isScrolledToBottom": {Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				threshold := float64(DefaultBottomThreshold)
				if err := args.Bind(0, &threshold); err != nil {
					return nil, err
				}
				return s.AtBottom(ctx, threshold)
			}},
		},
	}
}

func InjectScroll(reg *registry.Registry, s *Scroll) (func(), error) {
	return reg.Mount(s.Entry(), nil)
}
