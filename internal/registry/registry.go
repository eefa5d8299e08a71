// Package registry owns the page-global capability slots. Each slot holds a
// flat map of operation name to implementation and is written by exactly one
// mounted instance at a time: mounting over an occupied slot tears the previous
// instance down completely before the new one is bound.
package registry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Policy is the error contract of one operation.
type Policy int

const (
	// Settle operations never reject. Failures are logged and resolve to the
	// operation's negative value (false unless overridden).
	Settle Policy = iota
	// Propagate operations reject with the underlying reason. Used where a
	// negative result and a failed attempt must stay distinguishable.
	Propagate
)

func (p Policy) String() string {
	if p == Propagate {
		return "propagate"
	}
	return "settle"
}

// Args are the JSON-encoded positional arguments of one call.
type Args []jsoniter.RawMessage

// Bind decodes argument i into v. A missing or null argument leaves v untouched
// so optional trailing arguments keep their zero value.
func (a Args) Bind(i int, v interface{}) error {
	if i >= len(a) || len(a[i]) == 0 || string(a[i]) == "null" {
		return nil
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("argument %d: %w", i, err)
	}
	return nil
}

// Func implements one operation.
type Func func(ctx context.Context, args Args) (interface{}, error)

// Op describes one operation on a capability.
type Op struct {
	Fn Func
	// Async operations hand back a promise; sync ones return their value inline.
	Async  bool
	Policy Policy
	// Negative is the Settle result on failure. Nil means false.
	Negative interface{}
}

// Entry is a capability: a slot name and its operations.
type Entry struct {
	Name string
	Ops  map[string]Op
}

// Host is the page context the registry writes into.
type Host interface {
	Bind(name string, ops map[string]Op) error
	Unbind(name string) error
}

type mount struct {
	entry    Entry
	teardown func()
	gen      uint64
}

// Registry is the single writer for a Host's capability slots.
type Registry struct {
	mu      sync.Mutex
	host    Host
	logger  *zap.Logger
	mounted map[string]*mount
	gen     uint64
}

// New creates a registry writing into host.
func New(host Host, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		host:    host,
		logger:  logger.Named("registry"),
		mounted: make(map[string]*mount),
	}
}

// Mount binds entry into its slot. If the slot is occupied, the previous
// instance's teardown runs to completion first. The returned function unmounts
// this instance; calling it after a newer instance took the slot is a no-op.
func (r *Registry) Mount(entry Entry, teardown func()) (func(), error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("capability name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.mounted[entry.Name]; ok {
		r.logger.Debug("Replacing mounted capability.", zap.String("name", entry.Name))
		r.teardownLocked(prev)
	}

	ops := make(map[string]Op, len(entry.Ops))
	for name, op := range entry.Ops {
		ops[name] = r.guard(entry.Name, name, op)
	}
	if err := r.host.Bind(entry.Name, ops); err != nil {
		if teardown != nil {
			teardown()
		}
		return nil, fmt.Errorf("bind %s: %w", entry.Name, err)
	}

	r.gen++
	m := &mount{entry: entry, teardown: teardown, gen: r.gen}
	r.mounted[entry.Name] = m
	r.logger.Debug("Capability mounted.", zap.String("name", entry.Name), zap.Strings("ops", opNames(entry)))

	return func() { r.unmountGen(entry.Name, m.gen) }, nil
}

// Unmount tears down whatever instance currently holds name.
func (r *Registry) Unmount(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounted[name]
	if !ok {
		return false
	}
	r.teardownLocked(m)
	return true
}

func (r *Registry) unmountGen(name string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mounted[name]
	if !ok || m.gen != gen {
		return
	}
	r.teardownLocked(m)
}

func (r *Registry) teardownLocked(m *mount) {
	if m.teardown != nil {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Capability teardown panicked.",
						zap.String("name", m.entry.Name),
						zap.Any("panic_reason", rec),
						zap.String("stack", string(debug.Stack())))
				}
			}()
			m.teardown()
		}()
	}
	if err := r.host.Unbind(m.entry.Name); err != nil {
		r.logger.Warn("Failed to unbind capability.", zap.String("name", m.entry.Name), zap.Error(err))
	}
	delete(r.mounted, m.entry.Name)
}

// Names lists the mounted slots in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.mounted))
	for n := range r.mounted {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Close unmounts everything.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mounted {
		r.teardownLocked(m)
	}
}

// guard enforces an operation's policy: panics become errors, and Settle
// operations convert errors into their negative value.
func (r *Registry) guard(capability, name string, op Op) Op {
	inner := op.Fn
	log := r.logger.With(zap.String("capability", capability), zap.String("op", name))
	op.Fn = func(ctx context.Context, args Args) (res interface{}, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Operation panicked.", zap.Any("panic_reason", rec), zap.String("stack", string(debug.Stack())))
				res, err = nil, fmt.Errorf("%s.%s panicked: %v", capability, name, rec)
			}
			if err != nil && op.Policy == Settle {
				log.Warn("Operation failed; settling negative.", zap.Error(err))
				res, err = op.Negative, nil
				if res == nil {
					res = false
				}
			}
		}()
		return inner(ctx, args)
	}
	return op
}

func opNames(e Entry) []string {
	out := make([]string, 0, len(e.Ops))
	for n := range e.Ops {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
