// Package flow holds the machinery the site adapters share: a step runner that
// turns every failure into a reported negative outcome, the search sequence
// and single-page-app navigation.
package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// Reporter receives user-facing outcome messages. The terminal capability
// implements it.
type Reporter interface {
	Report(level schemas.LogLevel, message string)
}

type nopReporter struct{}

func (nopReporter) Report(schemas.LogLevel, string) {}

// NopReporter discards reports.
var NopReporter Reporter = nopReporter{}

// Timing holds every timeout and settle delay an adapter uses. The values are
// empirical: they absorb target-page animation and render latency.
type Timing struct {
	// ControlTimeout bounds waits for inputs, buttons and filter tabs.
	ControlTimeout time.Duration
	// ResultsTimeout bounds the wait for a results container.
	ResultsTimeout time.Duration
	// PageTimeout bounds waits for content after a navigation.
	PageTimeout time.Duration
	// WalletTimeout bounds wallet connection and transaction outcomes.
	WalletTimeout time.Duration

	SubmitSettle   time.Duration
	FilterSettle   time.Duration
	ResultsSettle  time.Duration
	NavigateSettle time.Duration
}

// DefaultTiming returns the production timing.
func DefaultTiming() Timing {
	return Timing{
		ControlTimeout: 10 * time.Second,
		ResultsTimeout: 10 * time.Second,
		PageTimeout:    15 * time.Second,
		WalletTimeout:  30 * time.Second,
		SubmitSettle:   1500 * time.Millisecond,
		FilterSettle:   1000 * time.Millisecond,
		ResultsSettle:  1000 * time.Millisecond,
		NavigateSettle: 500 * time.Millisecond,
	}
}

// Step is one named stage of an operation.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes steps strictly in sequence.
type Runner struct {
	Logger   *zap.Logger
	Reporter Reporter
}

// Run executes steps in order and stops at the first failure. Errors and
// panics are logged, reported with the failing step's name and turned into
// false; Run never panics.
func (r Runner) Run(ctx context.Context, operation string, steps ...Step) bool {
	return r.RunE(ctx, operation, steps...) == nil
}

// RunE is Run for operations that must propagate failure. The returned error
// is the failing step's own error, unwrapped, so its message reaches the
// caller verbatim.
func (r Runner) RunE(ctx context.Context, operation string, steps ...Step) error {
	logger := r.log()
	rep := r.Reporter
	if rep == nil {
		rep = NopReporter
	}
	for _, s := range steps {
		if err := runStep(ctx, logger, s); err != nil {
			level := schemas.LevelError
			var notFound *dom.ElementNotFoundError
			if errors.As(err, &notFound) {
				level = schemas.LevelWarning
			}
			logger.Warn("Operation step failed.",
				zap.String("operation", operation),
				zap.String("step", s.Name),
				zap.Error(err))
			rep.Report(level, fmt.Sprintf("%s failed at step '%s': %v", operation, s.Name, err))
			return err
		}
		logger.Debug("Step complete.", zap.String("operation", operation), zap.String("step", s.Name))
	}
	return nil
}

func (r Runner) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func runStep(ctx context.Context, logger *zap.Logger, s Step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Step panicked.", zap.String("step", s.Name), zap.Any("panic_reason", rec), zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.Run(ctx)
}

// Settle is a step that waits a fixed delay.
func Settle(name string, d time.Duration) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		return dom.Sleep(ctx, d)
	}}
}

// Options configures an adapter.
type Options struct {
	Timing Timing
}

// Option mutates Options.
type Option func(*Options)

// WithTiming overrides the default timing.
func WithTiming(t Timing) Option {
	return func(o *Options) { o.Timing = t }
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts []Option) Options {
	o := Options{Timing: DefaultTiming()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SearchArgs decodes the (query, options) arguments every search operation takes.
func SearchArgs(args registry.Args) (string, schemas.SearchOptions, error) {
	var (
		query string
		opts  schemas.SearchOptions
	)
	if err := args.Bind(0, &query); err != nil {
		return "", opts, err
	}
	if err := args.Bind(1, &opts); err != nil {
		return "", opts, err
	}
	return query, opts, nil
}
