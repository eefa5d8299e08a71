package twitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/adapters/twitter"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom/memdom"
	"github.com/xkilldash9x/sitepilot/internal/testing/pagetest"
)

const shell = `<html><body><main role="main"><div data-testid="primaryColumn"></div></main></body></html>`

func setup(t *testing.T, markup, path string) *pagetest.Page {
	t.Helper()
	p := pagetest.New(t, memdom.MustNew(markup, path))
	a := twitter.New(p.Doc, p.Terminal, p.Logger, flow.WithTiming(pagetest.FastTiming()))
	_, err := twitter.Inject(p.Registry, a)
	require.NoError(t, err)
	return p
}

func TestNavigateToHome(t *testing.T) {
	p := setup(t, shell, "/explore")
	p.Doc.OnPopState(func(d *memdom.Document, path string) {
		if path == "/home" {
			d.MustAppend("[data-testid='primaryColumn']", `<div aria-label="Timeline: Your Home Timeline"></div>`)
		}
	})

	assert.Equal(t, "true", p.Eval(t, `twitterApi.navigateToHome()`))
	assert.Equal(t, []string{"/home"}, p.Doc.PushStates())

	assert.Equal(t, "true", p.Eval(t, `twitterApi.navigateToHome()`))
	assert.Equal(t, []string{"/home"}, p.Doc.PushStates(), "second call is a no-op")
}

func TestNavigateToNotifications_TimelineMissing(t *testing.T) {
	p := setup(t, shell, "/home")
	assert.Equal(t, "false", p.Eval(t, `twitterApi.navigateToNotifications()`))
	assert.Equal(t, []string{"/notifications"}, p.Doc.PushStates())
	assert.Contains(t, p.Messages()[len(p.Messages())-1], "wait for secondary content")
}

func TestNavigateToExplore(t *testing.T) {
	p := setup(t, shell, "/home")
	p.Doc.OnPopState(func(d *memdom.Document, path string) {
		d.MustAppend("[data-testid='primaryColumn']", `<input data-testid="SearchBox_Search_Input">`)
	})
	assert.Equal(t, "true", p.Eval(t, `twitterApi.navigateToExplore()`))
}

func TestSearch_LatestTab(t *testing.T) {
	p := setup(t, `<html><body><main role="main"><input data-testid="SearchBox_Search_Input"></main></body></html>`, "/explore")
	p.Doc.On("input[data-testid='SearchBox_Search_Input']", "keydown", func(d *memdom.Document) {
		d.MustAppend("main", `<nav role="tablist"><a role="tab" href="/search?q=go&f=live"><span>Latest</span></a></nav>
			<div aria-label="Timeline: Search timeline"></div>`)
	})

	assert.Equal(t, "true", p.Eval(t, `twitterApi.search("golang", {type: "latest"})`))
	assert.Equal(t, []string{"mousedown", "mouseup", "click"}, p.Doc.EventTypes("a[role='tab'][href*='f=live']"))
}

func TestSearch_UnknownTab(t *testing.T) {
	p := setup(t, shell, "/explore")
	assert.Equal(t, "false", p.Eval(t, `twitterApi.search("golang", {type: "videos"})`))
}
