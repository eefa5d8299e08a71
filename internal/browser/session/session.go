// internal/browser/session/session.go
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/internal/browser/stealth"
	"github.com/xkilldash9x/sitepilot/internal/config"
)

const closeTimeout = 10 * time.Second

// Session is one Chrome tab. It owns the tab's chromedp context and exposes
// the tab's live document to the adapters.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig
	doc    *Document

	onClose   func()
	closeOnce sync.Once
}

var _ ActionExecutor = (*Session)(nil)

// NewSession wraps a tab context created with chromedp.NewContext. cancel
// releases the tab and is called by Close.
func NewSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.NewString()
	log := logger.With(zap.String("session_id", id))
	s := &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		logger: log,
		cfg:    cfg,
	}
	s.doc = NewDocument(s, log)
	return s
}

// Initialize attaches to the tab, mirrors page console output into the log and
// applies viewport and identity overrides.
func (s *Session) Initialize(ctx context.Context) error {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			s.handleConsoleAPICalled(e)
		case *runtime.EventExceptionThrown:
			s.logger.Warn("Uncaught page exception.", zap.String("text", e.ExceptionDetails.Error()))
		}
	})

	actions := []chromedp.Action{runtime.Enable()}
	if w, h := s.cfg.Viewport["width"], s.cfg.Viewport["height"]; w > 0 && h > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(w), int64(h)))
	}
	switch {
	case s.cfg.Stealth:
		actions = append(actions, stealth.Apply(stealth.PersonaFor(s.cfg), s.logger))
	case s.cfg.UserAgent != "":
		actions = append(actions, emulation.SetUserAgentOverride(s.cfg.UserAgent))
	}
	if err := s.RunActions(ctx, actions...); err != nil {
		return fmt.Errorf("failed to initialize tab: %w", err)
	}
	s.logger.Debug("Session initialized.")
	return nil
}

func (s *Session) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var b strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			b.WriteString(" ")
		}
		var val interface{}
		switch {
		case len(arg.Value) > 0 && json.Unmarshal([]byte(arg.Value), &val) == nil:
			fmt.Fprintf(&b, "%v", val)
		case arg.Description != "":
			b.WriteString(arg.Description)
		default:
			fmt.Fprintf(&b, "[%s]", arg.Type)
		}
	}
	fields := []zap.Field{zap.String("type", string(e.Type)), zap.String("text", b.String())}
	switch e.Type {
	case runtime.APITypeError, runtime.APITypeAssert:
		s.logger.Warn("Page console.", fields...)
	default:
		s.logger.Debug("Page console.", fields...)
	}
}

func (s *Session) ID() string { return s.id }

// Context is the tab's lifecycle context.
func (s *Session) Context() context.Context { return s.ctx }

// Document is the tab's live DOM.
func (s *Session) Document() *Document { return s.doc }

// SetOnClose registers a callback run once when the session closes.
func (s *Session) SetOnClose(fn func()) { s.onClose = fn }

// RunActions runs actions on the tab, bounded by both ctx and the tab's life.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads targetURL and waits for the body plus the configured
// post-load quiet period.
func (s *Session) Navigate(ctx context.Context, targetURL string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.logger.Info("Navigating", zap.String("url", targetURL))

	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(s.cfg.PostLoadWait))
	}
	if err := s.RunActions(ctx, actions...); err != nil {
		return fmt.Errorf("failed to navigate to '%s': %w", targetURL, err)
	}
	return nil
}

// Close closes the tab. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		closeCtx, cancel := context.WithTimeout(Detach(s.ctx), closeTimeout)
		defer cancel()
		if cerr := chromedp.Run(closeCtx, page.Close()); cerr != nil && ctx.Err() == nil {
			s.logger.Debug("Tab close reported an error.", zap.Error(cerr))
		}
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
