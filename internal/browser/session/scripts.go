package session

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// step narrows a locator: the index-th match of selector under the previous node.
type step struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

// locator addresses an element from the document root. Nodes are re-resolved
// on every call, so a handle follows the page as it re-renders and goes
// detached when its position no longer exists.
type locator []step

func (l locator) child(selector string, index int) locator {
	out := make(locator, len(l), len(l)+1)
	copy(out, l)
	return append(out, step{Selector: selector, Index: index})
}

func (l locator) String() string {
	parts := make([]string, len(l))
	for i, s := range l {
		parts[i] = s.Selector
	}
	return strings.Join(parts, " >> ")
}

// prelude is shared by every snippet. XPath is evaluated relative to the
// context node; CSS uses querySelectorAll.
const prelude = `
const __sp = window.__sitepilot || (window.__sitepilot = { suppressions: {} });
const __query = (root, sel) => {
  const s = sel.trim();
  if (s.startsWith("/") || s.startsWith("(")) {
    const doc = root.ownerDocument || root;
    const snap = doc.evaluate(s, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    const out = [];
    for (let i = 0; i < snap.snapshotLength; i++) {
      const n = snap.snapshotItem(i);
      if (n.nodeType === Node.ELEMENT_NODE) out.push(n);
    }
    return out;
  }
  return Array.from(root.querySelectorAll(s));
};
const __resolve = (chain) => {
  let node = document;
  for (const st of chain) {
    node = __query(node, st.selector)[st.index];
    if (!node) return null;
  }
  return node === document ? null : node;
};`

// Snippet bodies. Each returns {ok, value}; ok is false when the element
// could not be resolved. They never return null or undefined, which CDP
// reports as errors under returnByValue.
const (
	fnCount = `(chain, sel) => {
  const root = chain.length ? __resolve(chain) : document;
  if (!root) return { ok: false };
  return { ok: true, value: __query(root, sel).length };
}`

	fnConnected = `(chain) => {
  const n = __resolve(chain);
  return { ok: !!n && n.isConnected };
}`

	fnText = `(chain) => {
  const n = __resolve(chain);
  if (!n) return { ok: false };
  return { ok: true, value: (n.innerText || n.textContent || "").trim() };
}`

	fnAttribute = `(chain, name) => {
  const n = __resolve(chain);
  if (!n) return { ok: false };
  return { ok: true, value: { present: n.hasAttribute(name), value: n.getAttribute(name) || "" } };
}`

	fnFocus = `(chain) => {
  const n = __resolve(chain);
  if (!n) return { ok: false };
  if (typeof n.focus === "function") n.focus();
  return { ok: true };
}`

	// React and friends shadow the value property; the prototype setter is
	// the one their change tracking observes.
	fnSetValue = `(chain, value) => {
  const n = __resolve(chain);
  if (!n) return { ok: false };
  if (n.isContentEditable) {
    n.textContent = value;
    return { ok: true };
  }
  const proto = n instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
    : n instanceof HTMLSelectElement ? HTMLSelectElement.prototype
    : HTMLInputElement.prototype;
  const desc = Object.getOwnPropertyDescriptor(proto, "value");
  if (desc && desc.set) desc.set.call(n, value); else n.value = value;
  return { ok: true };
}`

	fnDispatch = `(chain, ev) => {
  const n = __resolve(chain);
  if (!n) return { ok: false };
  const init = { bubbles: ev.bubbles, cancelable: ev.cancelable };
  let e;
  switch (ev.kind) {
  case "KeyboardEvent":
    e = new KeyboardEvent(ev.type, Object.assign(init, { key: ev.key || "", code: ev.code || "", keyCode: ev.keyCode || 0, which: ev.keyCode || 0 }));
    break;
  case "MouseEvent":
    e = new MouseEvent(ev.type, Object.assign(init, { view: window, button: 0 }));
    break;
  case "InputEvent":
    e = new InputEvent(ev.type, init);
    break;
  default:
    e = new Event(ev.type, init);
  }
  n.dispatchEvent(e);
  return { ok: true };
}`

	fnLocation = `() => ({ ok: true, value: window.location.pathname })`

	fnPushState = `(path) => {
  window.history.pushState(window.history.state, "", path);
  return { ok: true };
}`

	fnWindowEvent = `(type) => {
  const e = type === "popstate"
    ? new PopStateEvent("popstate", { state: window.history.state })
    : new Event(type);
  window.dispatchEvent(e);
  return { ok: true };
}`

	fnMetrics = `() => ({ ok: true, value: {
  scrollX: window.scrollX,
  scrollY: window.scrollY,
  viewportHeight: window.innerHeight,
  totalHeight: Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0)
} })`

	fnScrollTo = `(x, y) => {
  window.scrollTo(x, y);
  return { ok: true };
}`

	fnAddSuppression = `(id, s) => {
  const keys = new Set(s.keys || []);
  const events = new Set(s.events || []);
  const handler = (e) => {
    if (events.has(e.type) || (e.type === "keydown" && keys.has(e.key))) e.preventDefault();
  };
  const types = Array.from(events);
  if (keys.size && !events.has("keydown")) types.push("keydown");
  for (const t of types) document.addEventListener(t, handler, { passive: false, capture: true });
  __sp.suppressions[id] = { handler, types };
  return { ok: true };
}`

	fnRemoveSuppression = `(id) => {
  const entry = __sp.suppressions[id];
  if (!entry) return { ok: false };
  for (const t of entry.types) document.removeEventListener(t, entry.handler, { capture: true });
  delete __sp.suppressions[id];
  return { ok: true };
}`
)

// snippet renders fn applied to JSON-encoded args as a self-contained
// expression.
func snippet(fn string, args ...interface{}) (string, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode snippet argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(() => {%s\nreturn (%s)(%s);\n})()", prelude, fn, strings.Join(encoded, ", ")), nil
}

// outcome is the uniform snippet result.
type outcome struct {
	OK    bool                `json:"ok"`
	Value jsoniter.RawMessage `json:"value"`
}
