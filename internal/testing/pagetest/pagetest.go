// Package pagetest wires an in-memory page for adapter tests: a page context,
// its registry, a terminal and a memdom document.
package pagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom/memdom"
	"github.com/xkilldash9x/sitepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/sitepilot/internal/capability"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// EvalTimeout bounds every evaluation made through a Page.
const EvalTimeout = 10 * time.Second

// Page is a fully wired test page.
type Page struct {
	Doc      *memdom.Document
	Runtime  *jsexec.Runtime
	Registry *registry.Registry
	Terminal *capability.Terminal
	Logger   *zap.Logger
}

// New wires a page around doc. Everything is closed with the test.
func New(t testing.TB, doc *memdom.Document) *Page {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rt := jsexec.NewRuntime(logger)
	reg := registry.New(rt, logger)
	term := capability.NewTerminal(logger)
	_, err := capability.InjectTerminal(reg, term)
	require.NoError(t, err)
	t.Cleanup(func() {
		reg.Close()
		rt.Close()
	})
	return &Page{Doc: doc, Runtime: rt, Registry: reg, Terminal: term, Logger: logger}
}

// Eval evaluates script and fails the test on error.
func (p *Page) Eval(t testing.TB, script string) string {
	t.Helper()
	out, err := p.EvalErr(script)
	require.NoError(t, err)
	return out
}

// EvalErr evaluates script and returns its JSON result or error.
func (p *Page) EvalErr(script string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), EvalTimeout)
	defer cancel()
	out, err := p.Runtime.Evaluate(ctx, script)
	return string(out), err
}

// Messages returns the terminal lines reported so far.
func (p *Page) Messages() []string {
	logs := p.Terminal.Logs()
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Message)
	}
	return out
}

// FastTiming shrinks every wait so timeout paths run quickly.
func FastTiming() flow.Timing {
	return flow.Timing{
		ControlTimeout: 300 * time.Millisecond,
		ResultsTimeout: 300 * time.Millisecond,
		PageTimeout:    300 * time.Millisecond,
		WalletTimeout:  400 * time.Millisecond,
		SubmitSettle:   10 * time.Millisecond,
		FilterSettle:   10 * time.Millisecond,
		ResultsSettle:  10 * time.Millisecond,
		NavigateSettle: 10 * time.Millisecond,
	}
}
