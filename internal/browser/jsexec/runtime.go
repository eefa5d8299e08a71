// internal/browser/jsexec/runtime.go
package jsexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/internal/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout is the fallback evaluation timeout if the context has no deadline.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("page context closed")

// Runtime is the isolated page context: a goja VM driven by an event loop. The
// only way in is Evaluate with self-contained text; the only things that text
// can reach are the globals the capability registry binds, window, console and
// timers. Arguments and results cross the boundary as JSON.
type Runtime struct {
	loop   *eventloop.EventLoop
	vm     *goja.Runtime
	logger *zap.Logger

	// ctx bounds every asynchronous operation started from inside the VM.
	ctx    context.Context
	cancel context.CancelFunc

	// running is the token of the evaluation whose synchronous part is on the
	// loop right now, zero between evaluations. Interrupts are only raised
	// against the holder.
	runMu   sync.Mutex
	running uint64
	nextID  atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

var _ registry.Host = (*Runtime)(nil)

// NewRuntime starts a page context. Close must be called to stop its event loop.
func NewRuntime(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		loop:   eventloop.NewEventLoop(),
		logger: logger.Named("jsexec"),
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
	r.loop.Start()

	// The VM belongs to the loop; grab it once on the loop goroutine. Only
	// Interrupt is used from other goroutines.
	_ = r.runSync(context.Background(), func(vm *goja.Runtime) error {
		r.vm = vm
		r.installGlobals(vm)
		return nil
	})
	return r
}

// installGlobals exposes window (the global object itself) and a console that
// writes to the structured logger.
func (r *Runtime) installGlobals(vm *goja.Runtime) {
	global := vm.GlobalObject()
	if err := global.Set("window", global); err != nil {
		r.logger.Error("Failed to set 'window' global", zap.Error(err))
	}
	if err := global.Set("self", global); err != nil {
		r.logger.Error("Failed to set 'self' global", zap.Error(err))
	}

	console := vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, reasonText(a))
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "error":
				r.logger.Warn("[console.error]", zap.String("message", msg))
			case "warn":
				r.logger.Info("[console.warn]", zap.String("message", msg))
			default:
				r.logger.Debug("[console."+level+"]", zap.String("message", msg))
			}
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		_ = console.Set(level, logFn(level))
	}
	if err := global.Set("console", console); err != nil {
		r.logger.Error("Failed to set 'console' global", zap.Error(err))
	}
}

// runSync schedules fn on the loop and waits for it.
func (r *Runtime) runSync(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	done := make(chan error, 1)
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		done <- fn(vm)
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closed:
		return ErrClosed
	}
}

// Bind implements registry.Host: it assigns a flat object of operations to the
// named global, overwriting any previous value.
func (r *Runtime) Bind(name string, ops map[string]registry.Op) error {
	return r.runSync(r.ctx, func(vm *goja.Runtime) error {
		obj := vm.NewObject()
		for opName, op := range ops {
			opName, op := opName, op
			fn := func(call goja.FunctionCall) goja.Value {
				return r.invoke(vm, name, opName, op, call)
			}
			if err := obj.Set(opName, fn); err != nil {
				return fmt.Errorf("set %s.%s: %w", name, opName, err)
			}
		}
		return vm.GlobalObject().Set(name, obj)
	})
}

// Unbind implements registry.Host.
func (r *Runtime) Unbind(name string) error {
	return r.runSync(r.ctx, func(vm *goja.Runtime) error {
		return vm.GlobalObject().Delete(name)
	})
}

// invoke runs on the loop. Sync operations execute inline; async ones run on
// their own goroutine and settle a promise back on the loop.
func (r *Runtime) invoke(vm *goja.Runtime, capability, opName string, op registry.Op, call goja.FunctionCall) goja.Value {
	args, err := exportArgs(call.Arguments)
	if err != nil {
		panic(vm.NewTypeError("%s.%s: %v", capability, opName, err))
	}

	if !op.Async {
		res, err := op.Fn(r.ctx, args)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		v, err := toJS(vm, res)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return v
	}

	promise, resolve, reject := vm.NewPromise()
	go func() {
		res, opErr := op.Fn(r.ctx, args)
		r.loop.RunOnLoop(func(vm *goja.Runtime) {
			if opErr != nil {
				reject(vm.NewGoError(opErr))
				return
			}
			v, err := toJS(vm, res)
			if err != nil {
				reject(vm.NewGoError(err))
				return
			}
			resolve(v)
		})
	}()
	return vm.ToValue(promise)
}

type outcome struct {
	val jsoniter.RawMessage
	err error
}

// Evaluate runs script in the page context and returns its JSON-encoded value.
// If the script evaluates to a promise, Evaluate waits for it to settle.
func (r *Runtime) Evaluate(ctx context.Context, script string) (jsoniter.RawMessage, error) {
	select {
	case <-r.closed:
		return nil, ErrClosed
	default:
	}

	// Guard against scripts that never settle.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	send := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	id := r.nextID.Add(1)
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		if ctx.Err() != nil {
			send(outcome{err: ctx.Err()})
			return
		}
		r.setRunning(id)
		defer r.clearRunning(vm)

		v, err := vm.RunString(script)
		if err != nil {
			send(outcome{err: r.scriptError(ctx, err)})
			return
		}
		p, ok := v.Export().(*goja.Promise)
		if !ok {
			send(exportOutcome(v))
			return
		}
		switch p.State() {
		case goja.PromiseStateFulfilled:
			send(exportOutcome(p.Result()))
		case goja.PromiseStateRejected:
			send(outcome{err: &ScriptError{Message: reasonText(p.Result()), Rejected: true}})
		default:
			obj := v.ToObject(vm)
			then, ok := goja.AssertFunction(obj.Get("then"))
			if !ok {
				send(outcome{err: fmt.Errorf("promise has no callable then")})
				return
			}
			onFulfilled := func(call goja.FunctionCall) goja.Value {
				send(exportOutcome(call.Argument(0)))
				return goja.Undefined()
			}
			onRejected := func(call goja.FunctionCall) goja.Value {
				send(outcome{err: &ScriptError{Message: reasonText(call.Argument(0)), Rejected: true}})
				return goja.Undefined()
			}
			if _, err := then(obj, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
				send(outcome{err: r.scriptError(ctx, err)})
			}
		}
	})

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		// Stops a synchronous script that is still spinning; a pending promise
		// simply stops being awaited.
		r.interrupt(id, ctx.Err())
		return nil, fmt.Errorf("javascript evaluation interrupted by context: %w", ctx.Err())
	case <-r.closed:
		return nil, ErrClosed
	}
}

func (r *Runtime) setRunning(id uint64) {
	r.runMu.Lock()
	r.running = id
	r.runMu.Unlock()
}

// clearRunning runs on the loop once an evaluation's synchronous part is over.
// Clearing under runMu means no interrupt aimed at it can outlive it.
func (r *Runtime) clearRunning(vm *goja.Runtime) {
	r.runMu.Lock()
	r.running = 0
	vm.ClearInterrupt()
	r.runMu.Unlock()
}

// interrupt aborts evaluation id only if its script is still on the loop.
// Promise callbacks of other evaluations are never hit.
func (r *Runtime) interrupt(id uint64, reason error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.running == id {
		r.vm.Interrupt(reason)
	}
}

func (r *Runtime) scriptError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("javascript execution interrupted by context: %w", ctx.Err())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ScriptError{Message: reasonText(ex.Value())}
	}
	return fmt.Errorf("javascript error: %w", err)
}

// Close cancels in-flight operations and stops the event loop.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		close(r.closed)
		r.loop.Stop()
		r.logger.Debug("Page context closed.")
	})
}

// Context returns the context that bounds operations started from the page.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

func exportOutcome(v goja.Value) outcome {
	var exported interface{}
	if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		exported = v.Export()
	}
	b, err := json.Marshal(exported)
	if err != nil {
		return outcome{err: fmt.Errorf("result is not JSON-serializable: %w", err)}
	}
	return outcome{val: b}
}

// exportArgs converts call arguments to JSON. Anything that cannot be encoded
// (functions, cycles) is rejected here, before an operation sees it.
func exportArgs(values []goja.Value) (registry.Args, error) {
	args := make(registry.Args, 0, len(values))
	for i, v := range values {
		var exported interface{}
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			if _, isFn := goja.AssertFunction(v); isFn {
				return nil, fmt.Errorf("argument %d is a function", i)
			}
			exported = v.Export()
		}
		b, err := json.Marshal(exported)
		if err != nil {
			return nil, fmt.Errorf("argument %d is not JSON-serializable: %w", i, err)
		}
		args = append(args, b)
	}
	return args, nil
}

// toJS turns a Go result into a plain JS value by way of JSON, so the page only
// ever sees the json-tagged shape, never Go field names or methods.
func toJS(vm *goja.Runtime, res interface{}) (goja.Value, error) {
	if res == nil {
		return goja.Undefined(), nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("result is not JSON-serializable: %w", err)
	}
	var plain interface{}
	if err := json.Unmarshal(b, &plain); err != nil {
		return nil, err
	}
	return vm.ToValue(plain), nil
}

// reasonText extracts a human-readable reason from a thrown or rejected value,
// preferring an Error's message.
func reasonText(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}
