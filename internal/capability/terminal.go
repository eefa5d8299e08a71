// Package capability implements the generic page capabilities every injected
// application publishes: the terminal log surface, the blocking overlay and
// window scrolling. Each one is mounted into a registry slot with Inject.
package capability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// Terminal is a leveled, append-only log surface. It enforces no retention
// limit. Every line is mirrored to the structured logger.
type Terminal struct {
	mu      sync.Mutex
	logger  *zap.Logger
	visible bool
	entries []schemas.LogEntry
	nextID  int
	now     func() time.Time
}

// NewTerminal creates an empty, hidden terminal.
func NewTerminal(logger *zap.Logger) *Terminal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminal{logger: logger.Named("terminal"), now: time.Now}
}

func (t *Terminal) Show() {
	t.mu.Lock()
	t.visible = true
	t.mu.Unlock()
}

func (t *Terminal) Hide() {
	t.mu.Lock()
	t.visible = false
	t.mu.Unlock()
}

// Visible reports whether the terminal is shown.
func (t *Terminal) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// AddLog appends a line. An empty level means info.
func (t *Terminal) AddLog(message string, level schemas.LogLevel, animated bool) (schemas.LogEntry, error) {
	if level == "" {
		level = schemas.LevelInfo
	}
	if !level.Valid() {
		return schemas.LogEntry{}, fmt.Errorf("unknown log level %q", level)
	}

	t.mu.Lock()
	t.nextID++
	entry := schemas.LogEntry{
		ID:        t.nextID,
		Message:   message,
		Level:     level,
		Animated:  animated,
		Timestamp: t.now().UnixMilli(),
	}
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	t.mirror(entry)
	return entry, nil
}

func (t *Terminal) mirror(e schemas.LogEntry) {
	fields := []zap.Field{zap.String("level", string(e.Level)), zap.Int("id", e.ID)}
	switch e.Level {
	case schemas.LevelError:
		t.logger.Error(e.Message, fields...)
	case schemas.LevelWarning:
		t.logger.Warn(e.Message, fields...)
	case schemas.LevelDebug:
		t.logger.Debug(e.Message, fields...)
	default:
		t.logger.Info(e.Message, fields...)
	}
}

// Report lets adapters publish outcomes; it never fails.
func (t *Terminal) Report(level schemas.LogLevel, message string) {
	if _, err := t.AddLog(message, level, false); err != nil {
		t.logger.Warn("Dropped terminal report.", zap.Error(err))
	}
}

func (t *Terminal) ClearLogs() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}

// Logs returns a copy of every line since the last clear.
func (t *Terminal) Logs() []schemas.LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]schemas.LogEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Entry builds the terminalApi registry entry.
func (t *Terminal) Entry() registry.Entry {
	return registry.Entry{
		Name: schemas.TerminalAPI,
		Ops: map[string]registry.Op{
			"show": {Fn: func(context.Context, registry.Args) (interface{}, error) {
				t.Show()
				return nil, nil
			}},
			"hide": {Fn: func(context.Context, registry.Args) (interface{}, error) {
				t.Hide()
				return nil, nil
			}},
			"isVisible": {Fn: func(context.Context, registry.Args) (interface{}, error) {
				return t.Visible(), nil
			}},
			"addLog": {Fn: func(_ context.Context, args registry.Args) (interface{}, error) {
				var (
					message  string
					level    schemas.LogLevel
					animated bool
				)
				if err := args.Bind(0, &message); err != nil {
					return nil, err
				}
				if err := args.Bind(1, &level); err != nil {
					return nil, err
				}
				if err := args.Bind(2, &animated); err != nil {
					return nil, err
				}
				_, err := t.AddLog(message, level, animated)
				return nil, err
			}},
			"clearLogs": {Fn: func(context.Context, registry.Args) (interface{}, error) {
				t.ClearLogs()
				return nil, nil
			}},
			"getLogs": {Fn: func(context.Context, registry.Args) (interface{}, error) {
				return t.Logs(), nil
			}, Negative: []schemas.LogEntry{}},
		},
	}
}

// InjectTerminal mounts t into reg.
func InjectTerminal(reg *registry.Registry, t *Terminal) (func(), error) {
	return reg.Mount(t.Entry(), nil)
}
