package bridge_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/bridge"
	"github.com/xkilldash9x/sitepilot/internal/browser/jsexec"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

// scriptedEvaluator answers each evaluation with fn, after recording the
// decoded command.
type scriptedEvaluator struct {
	mu       sync.Mutex
	calls    []string
	inFlight map[string]int
	maxSeen  map[string]int
	fn       func(cmd bridge.Command, n int) (jsoniter.RawMessage, error)
	delay    time.Duration
}

func newScripted(fn func(cmd bridge.Command, n int) (jsoniter.RawMessage, error)) *scriptedEvaluator {
	return &scriptedEvaluator{fn: fn, inFlight: map[string]int{}, maxSeen: map[string]int{}}
}

func (s *scriptedEvaluator) Evaluate(ctx context.Context, script string) (jsoniter.RawMessage, error) {
	cmd, err := bridge.ParseCommand(bridge.ExecutableText(script))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, cmd.Key())
	n := len(s.calls)
	s.inFlight[cmd.Capability]++
	if s.inFlight[cmd.Capability] > s.maxSeen[cmd.Capability] {
		s.maxSeen[cmd.Capability] = s.inFlight[cmd.Capability]
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight[cmd.Capability]--
	s.mu.Unlock()
	return s.fn(cmd, n)
}

func (s *scriptedEvaluator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func fastClient(t *testing.T, eval bridge.Evaluator) *bridge.Client {
	return bridge.NewClient(eval, zaptest.NewLogger(t), bridge.ClientConfig{
		EvalTimeout: time.Second,
		Attempts:    3,
		RetryDelay:  20 * time.Millisecond,
	})
}

func TestDo_RetriesNotReadyThenSucceeds(t *testing.T) {
	eval := newScripted(func(cmd bridge.Command, n int) (jsoniter.RawMessage, error) {
		if n < 3 {
			return nil, &jsexec.ScriptError{Message: bridge.NotReadyMarker + ": " + cmd.Key(), Rejected: true}
		}
		return jsoniter.RawMessage(`true`), nil
	})
	c := fastClient(t, eval)

	ok, err := bridge.Invoke[bool](context.Background(), c, bridge.LinkedInNavigateToHome())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, eval.Calls(), 3)
}

func TestDo_NotReadyExhaustsAttempts(t *testing.T) {
	eval := newScripted(func(cmd bridge.Command, n int) (jsoniter.RawMessage, error) {
		return nil, errors.New(bridge.NotReadyMarker + ": " + cmd.Key())
	})
	c := fastClient(t, eval)

	start := time.Now()
	_, err := c.Do(context.Background(), bridge.TwitterNavigateToHome())
	assert.ErrorIs(t, err, bridge.ErrNotReady)
	assert.Len(t, eval.Calls(), 3)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "retries are paced")
}

func TestDo_OtherRejectionsAreNotRetried(t *testing.T) {
	eval := newScripted(func(cmd bridge.Command, n int) (jsoniter.RawMessage, error) {
		return nil, &jsexec.ScriptError{Message: "insufficient funds", Rejected: true}
	})
	c := fastClient(t, eval)

	_, err := c.Do(context.Background(), bridge.UniswapSwap(schemas.SwapParams{FromToken: "ETH", ToToken: "USDC", Amount: "1"}))
	require.Error(t, err)
	assert.Equal(t, "insufficient funds", err.Error())
	assert.NotErrorIs(t, err, bridge.ErrNotReady)
	assert.Len(t, eval.Calls(), 1)
}

func TestDo_AgainstPageContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := zaptest.NewLogger(t)
	rt := jsexec.NewRuntime(logger)
	reg := registry.New(rt, logger)
	c := fastClient(t, rt)

	// Nothing is mounted yet: the dispatcher's own not-ready error.
	_, err := c.Do(context.Background(), bridge.UniswapConnect())
	assert.ErrorIs(t, err, bridge.ErrNotReady)

	_, err = reg.Mount(registry.Entry{Name: schemas.UniswapAPI, Ops: map[string]registry.Op{
		"swap": {Async: true, Policy: registry.Propagate, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
			return nil, errors.New("insufficient funds")
		}},
		"isConnected": {Fn: func(ctx context.Context, args registry.Args) (interface{}, error) { return true, nil }},
	}}, nil)
	require.NoError(t, err)

	connected, err := bridge.Invoke[bool](context.Background(), c, bridge.UniswapIsConnected())
	require.NoError(t, err)
	assert.True(t, connected)

	_, err = c.Do(context.Background(), bridge.UniswapSwap(schemas.SwapParams{FromToken: "ETH", ToToken: "USDC", Amount: "1"}))
	require.Error(t, err)
	assert.Equal(t, "insufficient funds", err.Error())

	reg.Close()
	rt.Close()
}

func TestInvoke_DecodesStructuredResults(t *testing.T) {
	eval := newScripted(func(cmd bridge.Command, n int) (jsoniter.RawMessage, error) {
		return jsoniter.RawMessage(`[{"title":"A","url":"https://a"}]`), nil
	})
	res, err := bridge.Invoke[[]schemas.SearchResult](context.Background(), fastClient(t, eval), bridge.GoogleGetResults(1))
	require.NoError(t, err)
	assert.Equal(t, []schemas.SearchResult{{Title: "A", URL: "https://a"}}, res)

	_, err = bridge.Invoke[int](context.Background(), fastClient(t, eval), bridge.GoogleGetResults(1))
	assert.Error(t, err)
}

func TestBatch_SerializesPerCapabilityKeepsOrder(t *testing.T) {
	var seq atomic.Int32
	eval := newScripted(func(cmd bridge.Command, n int) (jsoniter.RawMessage, error) {
		return jsoniter.RawMessage([]byte{byte('0' + seq.Add(1))}), nil
	})
	eval.delay = 30 * time.Millisecond
	c := fastClient(t, eval)

	cmds := []bridge.Command{
		bridge.LinkedInNavigateToJobs(),
		bridge.TwitterNavigateToHome(),
		bridge.LinkedInNavigateToNetwork(),
		bridge.TwitterNavigateToExplore(),
		bridge.LinkedInNavigateToMessaging(),
	}
	start := time.Now()
	res, err := c.Batch(context.Background(), cmds)
	require.NoError(t, err)
	require.Len(t, res, len(cmds))

	eval.mu.Lock()
	assert.Equal(t, 1, eval.maxSeen[schemas.LinkedInAPI])
	assert.Equal(t, 1, eval.maxSeen[schemas.TwitterAPI])
	eval.mu.Unlock()

	var linkedin []string
	for _, call := range eval.Calls() {
		if call[:len(schemas.LinkedInAPI)] == schemas.LinkedInAPI {
			linkedin = append(linkedin, call)
		}
	}
	assert.Equal(t, []string{"linkedinApi.navigateToJobs", "linkedinApi.navigateToNetwork", "linkedinApi.navigateToMessaging"}, linkedin)
	// Three sequential linkedin calls bound the batch; twitter ran alongside.
	assert.Less(t, time.Since(start), 5*30*time.Millisecond)
}

func TestBatch_FirstErrorFails(t *testing.T) {
	eval := newScripted(func(cmd bridge.Command, n int) (jsoniter.RawMessage, error) {
		if cmd.Capability == schemas.UniswapAPI {
			return nil, errors.New("wallet not connected")
		}
		return jsoniter.RawMessage(`true`), nil
	})
	_, err := fastClient(t, eval).Batch(context.Background(), []bridge.Command{
		bridge.GoogleNavigateToHome(),
		bridge.UniswapConnect(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not connected")
}

func TestDo_InvalidCommand(t *testing.T) {
	eval := newScripted(func(bridge.Command, int) (jsoniter.RawMessage, error) { return nil, nil })
	_, err := fastClient(t, eval).Do(context.Background(), bridge.Command{Capability: "bad name", Operation: "x"})
	assert.Error(t, err)
	assert.Empty(t, eval.Calls())
}

func TestDo_QueuedCallHonoursItsDeadline(t *testing.T) {
	eval := newScripted(func(bridge.Command, int) (jsoniter.RawMessage, error) {
		return jsoniter.RawMessage(`true`), nil
	})
	eval.delay = 800 * time.Millisecond
	client := fastClient(t, eval)

	first := make(chan error, 1)
	go func() {
		_, err := client.Do(context.Background(), bridge.UniswapConnect())
		first <- err
	}()
	require.Eventually(t, func() bool { return len(eval.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.Do(ctx, bridge.UniswapIsConnected())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Len(t, eval.Calls(), 1, "the queued command never reached the page")

	require.NoError(t, <-first)
}
