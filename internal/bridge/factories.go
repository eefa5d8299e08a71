package bridge

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/sitepilot/api/schemas"
)

// OperationSpec names an operation and its parameters in call order.
type OperationSpec struct {
	Capability string
	Name       string
	Params     []string
}

// Catalog lists every operation the registry publishes.
var Catalog = []OperationSpec{
	{schemas.TerminalAPI, "show", nil},
	{schemas.TerminalAPI, "hide", nil},
	{schemas.TerminalAPI, "isVisible", nil},
	{schemas.TerminalAPI, "addLog", []string{"message", "level", "animated"}},
	{schemas.TerminalAPI, "clearLogs", nil},
	{schemas.TerminalAPI, "getLogs", nil},

	{schemas.OverlayAPI, "show", nil},
	{schemas.OverlayAPI, "hide", nil},
	{schemas.OverlayAPI, "toggle", nil},
	{schemas.OverlayAPI, "isVisible", nil},

	{schemas.ScrollAPI, "scrollBy", []string{"dx", "dy"}},
	{schemas.ScrollAPI, "scrollToTop", nil},
	{schemas.ScrollAPI, "scrollToBottom", nil},
	{schemas.ScrollAPI, "getScrollPosition", nil},
	{schemas.ScrollAPI, "isScrolledToBottom", []string{"threshold"}},

	{schemas.GoogleAPI, "search", []string{"query", "options"}},
	{schemas.GoogleAPI, "getResults", []string{"limit"}},
	{schemas.GoogleAPI, "navigateToHome", nil},

	{schemas.LinkedInAPI, "search", []string{"query", "options"}},
	{schemas.LinkedInAPI, "navigateToHome", nil},
	{schemas.LinkedInAPI, "navigateToJobs", nil},
	{schemas.LinkedInAPI, "navigateToNetwork", nil},
	{schemas.LinkedInAPI, "navigateToMessaging", nil},
	{schemas.LinkedInAPI, "navigateTo", []string{"path"}},

	{schemas.TwitterAPI, "navigateToHome", nil},
	{schemas.TwitterAPI, "navigateToExplore", nil},
	{schemas.TwitterAPI, "navigateToNotifications", nil},
	{schemas.TwitterAPI, "search", []string{"query", "options"}},

	{schemas.UniswapAPI, "isConnected", nil},
	{schemas.UniswapAPI, "connect", nil},
	{schemas.UniswapAPI, "swap", []string{"params"}},
}

// ResolveCapability accepts a slot name ("linkedinApi") or a short site or
// capability name ("linkedin", "terminal").
func ResolveCapability(name string) string {
	if slot, ok := schemas.SiteAPIs[name]; ok {
		return slot
	}
	if !strings.HasSuffix(name, "Api") {
		candidate := name + "Api"
		for _, op := range Catalog {
			if op.Capability == candidate {
				return candidate
			}
		}
	}
	return name
}

// Lookup finds an operation in the catalog.
func Lookup(capability, operation string) (OperationSpec, bool) {
	capability = ResolveCapability(capability)
	for _, op := range Catalog {
		if op.Capability == capability && op.Name == operation {
			return op, true
		}
	}
	return OperationSpec{}, false
}

// Operations lists "capability.operation" for every catalog entry, sorted.
func Operations() []string {
	out := make([]string, 0, len(Catalog))
	for _, op := range Catalog {
		out = append(out, op.Capability+"."+op.Name)
	}
	sort.Strings(out)
	return out
}

// FromPositional builds a catalog command from positional JSON values, as the
// command line supplies them. Missing trailing values are sent as null.
func FromPositional(capability, operation string, values []jsoniter.RawMessage) (Command, error) {
	spec, ok := Lookup(capability, operation)
	if !ok {
		return Command{}, fmt.Errorf("unknown operation %s.%s", ResolveCapability(capability), operation)
	}
	if len(values) > len(spec.Params) {
		return Command{}, fmt.Errorf("%s.%s takes %d arguments, got %d", spec.Capability, spec.Name, len(spec.Params), len(values))
	}
	params := make([]Param, 0, len(spec.Params))
	for i, name := range spec.Params {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		params = append(params, Param{Name: name, Value: v})
	}
	return NewCommand(spec.Capability, spec.Name, params...)
}

// call builds a command from typed values. Factory arguments are always
// JSON-safe, so an error here is a programming mistake.
func call(capability, operation string, params ...Param) Command {
	cmd, err := NewCommand(capability, operation, params...)
	if err != nil {
		panic(fmt.Sprintf("bridge: building %s.%s: %v", capability, operation, err))
	}
	return cmd
}

// -- Terminal --

func TerminalShow() Command      { return call(schemas.TerminalAPI, "show") }
func TerminalHide() Command      { return call(schemas.TerminalAPI, "hide") }
func TerminalIsVisible() Command { return call(schemas.TerminalAPI, "isVisible") }
func TerminalClearLogs() Command { return call(schemas.TerminalAPI, "clearLogs") }
func TerminalGetLogs() Command   { return call(schemas.TerminalAPI, "getLogs") }

func TerminalAddLog(message string, level schemas.LogLevel, animated bool) Command {
	return call(schemas.TerminalAPI, "addLog",
		Param{"message", message}, Param{"level", level}, Param{"animated", animated})
}

// -- Overlay --

func OverlayShow() Command      { return call(schemas.OverlayAPI, "show") }
func OverlayHide() Command      { return call(schemas.OverlayAPI, "hide") }
func OverlayToggle() Command    { return call(schemas.OverlayAPI, "toggle") }
func OverlayIsVisible() Command { return call(schemas.OverlayAPI, "isVisible") }

// -- Scroll --

func ScrollBy(dx, dy float64) Command {
	return call(schemas.ScrollAPI, "scrollBy", Param{"dx", dx}, Param{"dy", dy})
}
func ScrollToTop() Command       { return call(schemas.ScrollAPI, "scrollToTop") }
func ScrollToBottom() Command    { return call(schemas.ScrollAPI, "scrollToBottom") }
func GetScrollPosition() Command { return call(schemas.ScrollAPI, "getScrollPosition") }
func IsScrolledToBottom(threshold float64) Command {
	return call(schemas.ScrollAPI, "isScrolledToBottom", Param{"threshold", threshold})
}

// -- Search engine --

func GoogleSearch(query string, opts schemas.SearchOptions) Command {
	return call(schemas.GoogleAPI, "search", Param{"query", query}, Param{"options", opts})
}
func GoogleGetResults(limit int) Command {
	return call(schemas.GoogleAPI, "getResults", Param{"limit", limit})
}
func GoogleNavigateToHome() Command { return call(schemas.GoogleAPI, "navigateToHome") }

// -- Professional network --

func LinkedInSearch(query string, opts schemas.SearchOptions) Command {
	return call(schemas.LinkedInAPI, "search", Param{"query", query}, Param{"options", opts})
}
func LinkedInNavigateToHome() Command      { return call(schemas.LinkedInAPI, "navigateToHome") }
func LinkedInNavigateToJobs() Command      { return call(schemas.LinkedInAPI, "navigateToJobs") }
func LinkedInNavigateToNetwork() Command   { return call(schemas.LinkedInAPI, "navigateToNetwork") }
func LinkedInNavigateToMessaging() Command { return call(schemas.LinkedInAPI, "navigateToMessaging") }
func LinkedInNavigateTo(path string) Command {
	return call(schemas.LinkedInAPI, "navigateTo", Param{"path", path})
}

// -- Social network --

func TwitterNavigateToHome() Command          { return call(schemas.TwitterAPI, "navigateToHome") }
func TwitterNavigateToExplore() Command       { return call(schemas.TwitterAPI, "navigateToExplore") }
func TwitterNavigateToNotifications() Command { return call(schemas.TwitterAPI, "navigateToNotifications") }
func TwitterSearch(query string, opts schemas.SearchOptions) Command {
	return call(schemas.TwitterAPI, "search", Param{"query", query}, Param{"options", opts})
}

// -- Exchange --

func UniswapIsConnected() Command { return call(schemas.UniswapAPI, "isConnected") }
func UniswapConnect() Command     { return call(schemas.UniswapAPI, "connect") }
func UniswapSwap(p schemas.SwapParams) Command {
	return call(schemas.UniswapAPI, "swap", Param{"params", p})
}
