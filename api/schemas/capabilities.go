package schemas

// -- Capability Registry Names --

// These are the fixed page-global slots the capability registry binds. The
// command bridge addresses operations through them, so they are part of the
// wire contract between the controller and the page context.
const (
	TerminalAPI = "terminalApi"
	OverlayAPI  = "overlayApi"
	ScrollAPI   = "scrollApi"
	GoogleAPI   = "googleApi"
	LinkedInAPI = "linkedinApi"
	TwitterAPI  = "twitterApi"
	UniswapAPI  = "uniswapApi"
)

// SiteAPIs maps a short site name (as used on the command line) to its
// registry slot.
var SiteAPIs = map[string]string{
	"google":   GoogleAPI,
	"linkedin": LinkedInAPI,
	"twitter":  TwitterAPI,
	"uniswap":  UniswapAPI,
}

// -- Terminal Schemas --

// LogLevel classifies a terminal log line.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
	LevelDebug   LogLevel = "debug"
)

// Valid reports whether the level is one the terminal understands.
func (l LogLevel) Valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError, LevelDebug:
		return true
	}
	return false
}

// LogEntry is one line on the terminal surface.
type LogEntry struct {
	ID        int      `json:"id"`
	Message   string   `json:"message"`
	Level     LogLevel `json:"level"`
	Animated  bool     `json:"animated"`
	Timestamp int64    `json:"timestamp"`
}

// -- Scroll Schemas --

// ScrollPosition is the window scroll offset in CSS pixels.
type ScrollPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ViewportMetrics is the raw geometry the scroll capability reasons about.
type ViewportMetrics struct {
	ScrollX        float64 `json:"scrollX"`
	ScrollY        float64 `json:"scrollY"`
	ViewportHeight float64 `json:"viewportHeight"`
	TotalHeight    float64 `json:"totalHeight"`
}
