package dom

import (
	"context"
	"fmt"
)

// InsertTextIntoElement replaces the element's value with text the way a user
// edit would be observed: focus, native value setter, then bubbling input and
// change events. Frameworks that track inputs through their own listeners ignore
// a bare value assignment, which is why the events are required.
func InsertTextIntoElement(ctx context.Context, el Element, text string) error {
	if err := el.Focus(ctx); err != nil {
		return fmt.Errorf("focus %s: %w", el.Selector(), err)
	}
	if err := el.SetValue(ctx, text); err != nil {
		return fmt.Errorf("set value on %s: %w", el.Selector(), err)
	}
	events := []Event{
		{Type: "input", Kind: KindInput, Bubbles: true},
		{Type: "change", Kind: KindBasic, Bubbles: true},
	}
	for _, ev := range events {
		if err := el.Dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch %s on %s: %w", ev.Type, el.Selector(), err)
		}
	}
	return nil
}

// ClickElement fires the mouse sequence a real click produces.
func ClickElement(ctx context.Context, el Element) error {
	for _, t := range []string{"mousedown", "mouseup", "click"} {
		ev := Event{Type: t, Kind: KindMouse, Bubbles: true, Cancelable: true}
		if err := el.Dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch %s on %s: %w", t, el.Selector(), err)
		}
	}
	return nil
}

// PressEnter synthesizes an Enter keystroke on the element. Used to submit
// forms whose submit button could not be found.
func PressEnter(ctx context.Context, el Element) error {
	for _, t := range []string{"keydown", "keypress", "keyup"} {
		ev := Event{Type: t, Kind: KindKeyboard, Key: "Enter", Code: "Enter", KeyCode: 13, Bubbles: true, Cancelable: true}
		if err := el.Dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch %s on %s: %w", t, el.Selector(), err)
		}
	}
	return nil
}
