package linkedin_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/adapters/linkedin"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom/memdom"
	"github.com/xkilldash9x/sitepilot/internal/testing/pagetest"
)

const feedPage = `<html><body>
<header><input class="search-global-typeahead__input" placeholder="Search"></header>
<main id="main"><div class="scaffold-finite-scroll__content"></div></main>
</body></html>`

func setup(t *testing.T, markup, path string) *pagetest.Page {
	t.Helper()
	p := pagetest.New(t, memdom.MustNew(markup, path))
	a := linkedin.New(p.Doc, p.Terminal, p.Logger, flow.WithTiming(pagetest.FastTiming()))
	_, err := linkedin.Inject(p.Registry, a)
	require.NoError(t, err)
	return p
}

func TestSearch_PeopleFilter(t *testing.T) {
	p := setup(t, feedPage, "/feed/")
	p.Doc.On("input.search-global-typeahead__input", "keydown", func(d *memdom.Document) {
		d.SetPath("/search/results/all/")
		d.MustAppend("", `<nav><button aria-label="People">People</button></nav><div class="search-results-container"></div>`)
	})

	assert.Equal(t, "true", p.Eval(t, `linkedinApi.search("machine learning", {type: "people"})`))
	assert.Equal(t, []memdom.ValueChange{{Selector: "input.search-global-typeahead__input", Value: "machine learning"}}, p.Doc.Values())
	assert.Equal(t, []string{"mousedown", "mouseup", "click"}, p.Doc.EventTypes("button[aria-label='People']"))
}

func TestSearch_MissingFilterIsFalse(t *testing.T) {
	p := setup(t, feedPage, "/feed/")
	p.Doc.On("input.search-global-typeahead__input", "keydown", func(d *memdom.Document) {
		d.MustAppend("", `<div class="search-results-container"></div>`)
	})

	assert.Equal(t, "false", p.Eval(t, `linkedinApi.search("ml", {type: "groups"})`))
	msgs := p.Messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "apply filter groups")
}

func TestNavigateToHome_AlreadyThere(t *testing.T) {
	p := setup(t, feedPage, "/feed/")
	assert.Equal(t, "true", p.Eval(t, `linkedinApi.navigateToHome()`))
	assert.Empty(t, p.Doc.PushStates())
	assert.Empty(t, p.Doc.WindowEvents())
}

func TestNavigateTo_NewPath(t *testing.T) {
	p := setup(t, `<html><body></body></html>`, "/feed/")
	p.Doc.OnPopState(func(d *memdom.Document, path string) {
		if path == "/search/" {
			d.After(30*time.Millisecond, func(d *memdom.Document) { d.MustAppend("", `<main id="main"></main>`) })
		}
	})

	assert.Equal(t, "true", p.Eval(t, `linkedinApi.navigateTo("/search/")`))
	assert.Equal(t, []string{"/search/"}, p.Doc.PushStates())
	assert.Equal(t, []string{"popstate"}, p.Doc.WindowEvents())
}

func TestNavigateTo_MainContentNeverAppears(t *testing.T) {
	p := setup(t, `<html><body></body></html>`, "/feed/")

	start := time.Now()
	assert.Equal(t, "false", p.Eval(t, `linkedinApi.navigateTo("/search/")`))
	assert.Less(t, time.Since(start), pagetest.FastTiming().PageTimeout+time.Second)
	assert.Equal(t, []string{"/search/"}, p.Doc.PushStates())
}

func TestNavigateSections(t *testing.T) {
	p := setup(t, `<html><body><main id="main"></main></body></html>`, "/feed/")
	p.Doc.OnPopState(func(d *memdom.Document, path string) {
		switch path {
		case "/jobs/":
			d.MustAppend("main", `<div class="jobs-home"></div>`)
		case "/mynetwork/":
			d.MustAppend("main", `<section><h2>Invitations</h2></section>`)
		case "/messaging/":
			d.MustAppend("main", `<div class="msg-conversations-container"></div>`)
		}
	})

	assert.Equal(t, "true", p.Eval(t, `linkedinApi.navigateToJobs()`))
	assert.Equal(t, "true", p.Eval(t, `linkedinApi.navigateToNetwork()`))
	assert.Equal(t, "true", p.Eval(t, `linkedinApi.navigateToMessaging()`))
	assert.Equal(t, []string{"/jobs/", "/mynetwork/", "/messaging/"}, p.Doc.PushStates())

	// Secondary feed container is required for home.
	assert.Equal(t, "false", p.Eval(t, `linkedinApi.navigateToHome()`))
}

func TestNavigateTo_RequiresPath(t *testing.T) {
	p := setup(t, feedPage, "/feed/")
	assert.Equal(t, "false", p.Eval(t, `linkedinApi.navigateTo("")`))
}
