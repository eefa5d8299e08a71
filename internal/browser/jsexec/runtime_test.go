package jsexec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sitepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// newTestRuntime is a helper to set up a page context that is closed with the test.
func newTestRuntime(t *testing.T) *jsexec.Runtime {
	t.Helper()
	rt := jsexec.NewRuntime(zaptest.NewLogger(t))
	t.Cleanup(rt.Close)
	return rt
}

func echoOps() map[string]registry.Op {
	return map[string]registry.Op{
		"echo": {Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
			var s string
			if err := args.Bind(0, &s); err != nil {
				return nil, err
			}
			return map[string]string{"said": s}, nil
		}},
		"later": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
			var n int
			_ = args.Bind(0, &n)
			time.Sleep(20 * time.Millisecond)
			return n * 2, nil
		}},
		"fail": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
			return nil, errors.New("insufficient funds")
		}},
	}
}

func TestEvaluate_Basic(t *testing.T) {
	rt := newTestRuntime(t)

	result, err := rt.Evaluate(context.Background(), `(5 + 5) * 2`)
	require.NoError(t, err)
	assert.JSONEq(t, `20`, string(result))

	result, err = rt.Evaluate(context.Background(), `({a: [1, "two"], b: null})`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":[1,"two"],"b":null}`, string(result))
}

func TestEvaluate_UndefinedIsNull(t *testing.T) {
	rt := newTestRuntime(t)
	result, err := rt.Evaluate(context.Background(), `undefined`)
	require.NoError(t, err)
	assert.Equal(t, "null", string(result))
}

func TestEvaluate_WindowIsGlobal(t *testing.T) {
	rt := newTestRuntime(t)
	result, err := rt.Evaluate(context.Background(), `var x = 7; window.x === 7 && typeof console.log === "function"`)
	require.NoError(t, err)
	assert.Equal(t, "true", string(result))
}

func TestEvaluate_AwaitsPromises(t *testing.T) {
	rt := newTestRuntime(t)
	result, err := rt.Evaluate(context.Background(), `new Promise(r => setTimeout(() => r("done"), 30))`)
	require.NoError(t, err)
	assert.Equal(t, `"done"`, string(result))
}

func TestEvaluate_RejectionReasonVerbatim(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Evaluate(context.Background(), `(async () => { await null; throw new Error("insufficient funds"); })()`)
	require.Error(t, err)

	var scriptErr *jsexec.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, "insufficient funds", err.Error())
	assert.True(t, scriptErr.Rejected)
}

func TestEvaluate_SyncThrow(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Evaluate(context.Background(), `throw new Error("boom")`)
	var scriptErr *jsexec.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, "boom", scriptErr.Message)
	assert.False(t, scriptErr.Rejected)
}

func TestEvaluate_ContextTimeoutInterruptsAndRecovers(t *testing.T) {
	rt := newTestRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := rt.Evaluate(ctx, `while (true) {}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The next evaluation must not inherit the interrupt.
	result, err := rt.Evaluate(context.Background(), `1 + 1`)
	require.NoError(t, err)
	assert.Equal(t, "2", string(result))
}

func slowOp(d time.Duration) map[string]registry.Op {
	return map[string]registry.Op{
		"slow": {Async: true, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
			select {
			case <-time.After(d):
				return true, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}},
	}
}

func TestEvaluate_TimeoutLeavesConcurrentEvaluationsAlone(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.Bind("aApi", slowOp(time.Second)))
	require.NoError(t, rt.Bind("bApi", slowOp(200*time.Millisecond)))

	type result struct {
		val     string
		err     error
		elapsed time.Duration
	}
	bDone := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		start := time.Now()
		v, err := rt.Evaluate(ctx, `bApi.slow()`)
		bDone <- result{val: string(v), err: err, elapsed: time.Since(start)}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := rt.Evaluate(ctx, `aApi.slow()`)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	b := <-bDone
	require.NoError(t, b.err)
	assert.Equal(t, "true", b.val)
	assert.Less(t, b.elapsed, time.Second, "the other evaluation settles on its own schedule")
}

func TestBind_SyncAndAsyncOps(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.Bind("echoApi", echoOps()))

	result, err := rt.Evaluate(context.Background(), `window.echoApi.echo("hi")`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"said":"hi"}`, string(result))

	result, err = rt.Evaluate(context.Background(), `(async () => await window.echoApi.later(21))()`)
	require.NoError(t, err)
	assert.Equal(t, "42", string(result))

	_, err = rt.Evaluate(context.Background(), `window.echoApi.fail()`)
	require.Error(t, err)
	assert.Equal(t, "insufficient funds", err.Error())
}

func TestBind_RejectsFunctionArguments(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.Bind("echoApi", echoOps()))

	result, err := rt.Evaluate(context.Background(),
		`try { window.echoApi.echo(() => 1); "accepted" } catch (e) { e instanceof TypeError ? "rejected" : "other" }`)
	require.NoError(t, err)
	assert.Equal(t, `"rejected"`, string(result))
}

func TestUnbind(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.Bind("echoApi", echoOps()))
	require.NoError(t, rt.Unbind("echoApi"))

	result, err := rt.Evaluate(context.Background(), `typeof window.echoApi`)
	require.NoError(t, err)
	assert.Equal(t, `"undefined"`, string(result))
}

func TestClose_StopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rt := jsexec.NewRuntime(zaptest.NewLogger(t))
	_, err := rt.Evaluate(context.Background(), `1`)
	require.NoError(t, err)
	rt.Close()
	rt.Close()

	_, err = rt.Evaluate(context.Background(), `1`)
	assert.ErrorIs(t, err, jsexec.ErrClosed)
}
