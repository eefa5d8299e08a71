// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/bridge"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom/memdom"
	"github.com/xkilldash9x/sitepilot/internal/config"
)

const feedPage = `<html><body>
<main class="scaffold-layout__main"><div class="feed-shared-update-v2"></div></main>
</body></html>`

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.BridgeCfg.RetryAttempts = 2
	cfg.BridgeCfg.RetryDelay = 10 * time.Millisecond
	cfg.BridgeCfg.EvalTimeout = 5 * time.Second
	return cfg
}

func fastTiming() flow.Timing {
	return flow.Timing{
		ControlTimeout: 200 * time.Millisecond,
		ResultsTimeout: 200 * time.Millisecond,
		PageTimeout:    200 * time.Millisecond,
		WalletTimeout:  200 * time.Millisecond,
	}
}

func setup(t *testing.T, markup, path string) (*Orchestrator, *memdom.Document) {
	t.Helper()
	doc := memdom.MustNew(markup, path)
	o, err := New(testConfig(), zaptest.NewLogger(t), doc, WithTiming(fastTiming()))
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o, doc
}

func TestNew_NilDependencies(t *testing.T) {
	_, err := New(nil, zaptest.NewLogger(t), memdom.MustNew("", "/"))
	assert.Error(t, err)
	_, err = New(testConfig(), nil, memdom.MustNew("", "/"))
	assert.Error(t, err)
	_, err = New(testConfig(), zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}

func TestNew_MountsSurfaceOnly(t *testing.T) {
	o, _ := setup(t, feedPage, "/feed/")
	assert.Equal(t, []string{schemas.OverlayAPI, schemas.ScrollAPI, schemas.TerminalAPI}, o.reg.Names())
	assert.NotEmpty(t, o.ID())

	visible, err := bridge.Invoke[bool](context.Background(), o.Client(), bridge.OverlayIsVisible())
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestSites(t *testing.T) {
	assert.Equal(t, []string{"google", "linkedin", "twitter", "uniswap"}, Sites())
}

func TestInject_SiteBecomesReachable(t *testing.T) {
	o, doc := setup(t, feedPage, "/feed/")
	ctx := context.Background()

	_, err := o.Do(ctx, bridge.LinkedInNavigateToHome())
	require.ErrorIs(t, err, bridge.ErrNotReady)

	require.NoError(t, o.Inject("linkedin"))
	ok, err := bridge.Invoke[bool](ctx, o.Client(), bridge.LinkedInNavigateToHome())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, doc.PushStates(), "already on the feed")

	assert.True(t, o.Eject("linkedin"))
	assert.False(t, o.Eject("linkedin"))
	_, err = o.Do(ctx, bridge.LinkedInNavigateToHome())
	assert.ErrorIs(t, err, bridge.ErrNotReady)
}

func TestInject_UnknownSite(t *testing.T) {
	o, _ := setup(t, feedPage, "/")
	err := o.Inject("myspace")
	assert.ErrorIs(t, err, ErrUnknownSite)
	assert.False(t, o.Eject("myspace"))
}

func TestInject_AfterClose(t *testing.T) {
	o, _ := setup(t, feedPage, "/")
	o.Close()
	assert.Error(t, o.Inject("google"))
	o.Close()
}

func TestNegativeOutcomeReportedToTerminal(t *testing.T) {
	o, _ := setup(t, `<html><body></body></html>`, "/")
	require.NoError(t, o.Inject("twitter"))

	ok, err := bridge.Invoke[bool](context.Background(), o.Client(), bridge.TwitterNavigateToExplore())
	require.NoError(t, err)
	assert.False(t, ok)

	logs := o.Terminal().Logs()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, schemas.LevelWarning, last.Level)
	assert.Contains(t, last.Message, "wait for main content")
}

func TestBatch_AcrossCapabilities(t *testing.T) {
	o, doc := setup(t, feedPage, "/feed/")
	doc.SetMetrics(schemas.ViewportMetrics{ScrollY: 2190, ViewportHeight: 800, TotalHeight: 3000})

	out, err := o.Batch(context.Background(), []bridge.Command{
		bridge.GetScrollPosition(),
		bridge.IsScrolledToBottom(10),
		bridge.OverlayIsVisible(),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.JSONEq(t, `{"x":0,"y":2190}`, string(out[0]))
	got := []string{string(out[1]), string(out[2])}
	assert.Empty(t, cmp.Diff([]string{"true", "false"}, got))
}

func TestEval_RawText(t *testing.T) {
	o, _ := setup(t, feedPage, "/")
	text, err := bridge.Build(bridge.OverlayToggle())
	require.NoError(t, err)

	out, err := o.Eval(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "true", string(out))
}

func TestClose_StopsEventLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	doc := memdom.MustNew(feedPage, "/")
	o, err := New(testConfig(), zaptest.NewLogger(t), doc)
	require.NoError(t, err)
	_, err = o.Do(context.Background(), bridge.OverlayShow())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ListenerCount())

	o.Close()
	assert.Equal(t, 0, doc.ListenerCount(), "teardown removes the overlay listener")
}
