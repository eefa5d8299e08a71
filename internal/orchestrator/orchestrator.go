// File: internal/orchestrator/orchestrator.go
// Description: Owns one page context for its whole life: it injects the
// capability surface and the site adapters, then dispatches bridge commands
// into it.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/adapters/google"
	"github.com/xkilldash9x/sitepilot/internal/adapters/linkedin"
	"github.com/xkilldash9x/sitepilot/internal/adapters/twitter"
	"github.com/xkilldash9x/sitepilot/internal/adapters/uniswap"
	"github.com/xkilldash9x/sitepilot/internal/bridge"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/sitepilot/internal/capability"
	"github.com/xkilldash9x/sitepilot/internal/config"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// ErrUnknownSite is returned by Inject for a site without an adapter.
var ErrUnknownSite = errors.New("unknown site")

// injector mounts one site adapter against the page's document.
type injector func(o *Orchestrator) (func(), error)

var siteInjectors = map[string]injector{
	"google": func(o *Orchestrator) (func(), error) {
		return google.Inject(o.reg, google.New(o.doc, o.terminal, o.logger, o.adapterOpts...))
	},
	"linkedin": func(o *Orchestrator) (func(), error) {
		return linkedin.Inject(o.reg, linkedin.New(o.doc, o.terminal, o.logger, o.adapterOpts...))
	},
	"twitter": func(o *Orchestrator) (func(), error) {
		return twitter.Inject(o.reg, twitter.New(o.doc, o.terminal, o.logger, o.adapterOpts...))
	},
	"uniswap": func(o *Orchestrator) (func(), error) {
		return uniswap.Inject(o.reg, uniswap.New(o.doc, o.terminal, o.logger, o.adapterOpts...))
	},
}

// Sites lists the site names Inject accepts.
func Sites() []string {
	out := make([]string, 0, len(siteInjectors))
	for name := range siteInjectors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTiming overrides adapter waits and settle delays.
func WithTiming(t flow.Timing) Option {
	return func(o *Orchestrator) { o.adapterOpts = append(o.adapterOpts, flow.WithTiming(t)) }
}

// Orchestrator manages the lifecycle of one page context.
type Orchestrator struct {
	id     string
	cfg    config.Interface
	logger *zap.Logger
	doc    dom.Document

	runtime  *jsexec.Runtime
	reg      *registry.Registry
	client   *bridge.Client
	terminal *capability.Terminal
	overlay  *capability.Overlay
	scroll   *capability.Scroll

	adapterOpts []flow.Option

	mu       sync.Mutex
	unmounts map[string]func()
	closed   bool
}

// New starts a page context over doc and mounts the terminal, overlay and
// scroll capabilities. Sites are injected separately.
func New(cfg config.Interface, logger *zap.Logger, doc dom.Document, opts ...Option) (*Orchestrator, error) {
	if cfg == nil || logger == nil || doc == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}

	id := uuid.NewString()
	log := logger.With(zap.String("page_id", id))
	rt := jsexec.NewRuntime(log)
	o := &Orchestrator{
		id:       id,
		cfg:      cfg,
		logger:   log,
		doc:      doc,
		runtime:  rt,
		reg:      registry.New(rt, log),
		terminal: capability.NewTerminal(log),
		overlay:  capability.NewOverlay(doc, log),
		scroll:   capability.NewScroll(doc),
		unmounts: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(o)
	}

	bc := cfg.Bridge()
	o.client = bridge.NewClient(rt, log, bridge.ClientConfig{
		EvalTimeout: bc.EvalTimeout,
		Attempts:    bc.RetryAttempts,
		RetryDelay:  bc.RetryDelay,
	})

	surface := []struct {
		name   string
		inject func() (func(), error)
	}{
		{schemas.TerminalAPI, func() (func(), error) { return capability.InjectTerminal(o.reg, o.terminal) }},
		{schemas.OverlayAPI, func() (func(), error) { return capability.InjectOverlay(o.reg, o.overlay) }},
		{schemas.ScrollAPI, func() (func(), error) { return capability.InjectScroll(o.reg, o.scroll) }},
	}
	for _, s := range surface {
		unmount, err := s.inject()
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("failed to inject %s: %w", s.name, err)
		}
		o.unmounts[s.name] = unmount
	}

	log.Info("Page context ready.", zap.Strings("capabilities", o.reg.Names()))
	return o, nil
}

// ID identifies the page context in logs.
func (o *Orchestrator) ID() string { return o.id }

// Client is the bridge client bound to this page context.
func (o *Orchestrator) Client() *bridge.Client { return o.client }

// Terminal exposes the terminal the adapters report to.
func (o *Orchestrator) Terminal() *capability.Terminal { return o.terminal }

// Inject mounts the adapter for each named site. Injecting a site again
// replaces its previous instance.
func (o *Orchestrator) Inject(sites ...string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return jsexec.ErrClosed
	}
	for _, site := range sites {
		inject, ok := siteInjectors[site]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSite, site)
		}
		unmount, err := inject(o)
		if err != nil {
			return fmt.Errorf("failed to inject %s adapter: %w", site, err)
		}
		o.unmounts[schemas.SiteAPIs[site]] = unmount
		o.logger.Info("Site adapter injected.", zap.String("site", site))
	}
	return nil
}

// Eject unmounts a site adapter. Commands for it then fail as not ready.
func (o *Orchestrator) Eject(site string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	name, ok := schemas.SiteAPIs[site]
	if !ok {
		return false
	}
	unmount, ok := o.unmounts[name]
	if !ok {
		return false
	}
	delete(o.unmounts, name)
	unmount()
	return true
}

// Do evaluates one command in the page context.
func (o *Orchestrator) Do(ctx context.Context, cmd bridge.Command) (jsoniter.RawMessage, error) {
	o.logger.Debug("Dispatching command.", zap.String("command", cmd.Key()))
	return o.client.Do(ctx, cmd)
}

// Batch evaluates cmds, concurrently across capabilities.
func (o *Orchestrator) Batch(ctx context.Context, cmds []bridge.Command) ([]jsoniter.RawMessage, error) {
	return o.client.Batch(ctx, cmds)
}

// Eval evaluates raw executable text, for callers that built it elsewhere.
func (o *Orchestrator) Eval(ctx context.Context, text bridge.ExecutableText) (jsoniter.RawMessage, error) {
	return o.runtime.Evaluate(ctx, text.String())
}

// Close tears down every mounted capability and stops the page context.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.unmounts = nil
	o.mu.Unlock()

	o.reg.Close()
	o.runtime.Close()
	o.logger.Info("Page context closed.")
}
