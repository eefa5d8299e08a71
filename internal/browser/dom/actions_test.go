package dom_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom/memdom"
)

func TestInsertTextIntoElement_DispatchesInputEvents(t *testing.T) {
	ctx := context.Background()
	d := memdom.MustNew(`<html><body><input id="q"><input id="other"></body></html>`, "/")
	el, ok := dom.Query(ctx, d, "#q")
	require.True(t, ok)

	require.NoError(t, dom.InsertTextIntoElement(ctx, el, "machine learning"))

	assert.Equal(t, []memdom.ValueChange{{Selector: "#q", Value: "machine learning"}}, d.Values())
	assert.Equal(t, []string{"input", "change"}, d.EventTypes("#q"))
	for _, e := range d.Events() {
		assert.True(t, e.Event.Bubbles, "%s must bubble so delegated listeners see it", e.Event.Type)
	}
}

func TestPressEnter(t *testing.T) {
	ctx := context.Background()
	d := memdom.MustNew(`<html><body><input id="q"></body></html>`, "/")
	el, _ := dom.Query(ctx, d, "#q")

	require.NoError(t, dom.PressEnter(ctx, el))

	events := d.Events()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, "Enter", e.Event.Key)
		assert.Equal(t, 13, e.Event.KeyCode)
		assert.Equal(t, dom.KindKeyboard, e.Event.Kind)
	}
}

func TestActionsOnDetachedElement(t *testing.T) {
	ctx := context.Background()
	d := memdom.MustNew(`<html><body><button id="b"></button></body></html>`, "/")
	el, _ := dom.Query(ctx, d, "#b")
	d.Remove("#b")

	err := dom.ClickElement(ctx, el)
	var detached *dom.DetachedError
	require.True(t, errors.As(err, &detached))
	assert.Equal(t, "#b", detached.Selector)
}

func TestSuppressionCancels(t *testing.T) {
	s := dom.Suppression{Events: []string{"wheel"}, Keys: []string{"Space", " "}}
	assert.True(t, s.Cancels("wheel", ""))
	assert.True(t, s.Cancels("keydown", " "))
	assert.False(t, s.Cancels("keyup", " "))
	assert.False(t, s.Cancels("keydown", "a"))
}

func TestElementNotFoundError(t *testing.T) {
	err := dom.NewElementNotFoundError("locate input", "#a", ".b")
	assert.Equal(t, "locate input: no element matching '#a | .b'", err.Error())
	assert.Equal(t, "element not found matching selector '#x'", (&dom.ElementNotFoundError{Selector: "#x"}).Error())
}
