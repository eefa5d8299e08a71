package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrNotReady means the page context has no registry entry for the command
// yet. It is the retry-later signal, not a user-facing failure.
var ErrNotReady = errors.New("page not ready")

// Evaluator runs executable text in a page context and returns the JSON value
// it settled with. A rejected evaluation comes back as an error whose message
// is the rejection reason.
type Evaluator interface {
	Evaluate(ctx context.Context, script string) (jsoniter.RawMessage, error)
}

// ClientConfig tunes evaluation and not-ready retries.
type ClientConfig struct {
	// EvalTimeout bounds one evaluation; zero means the caller's context only.
	EvalTimeout time.Duration
	// Attempts is the total number of tries for a not-ready command.
	Attempts int
	// RetryDelay paces not-ready retries.
	RetryDelay time.Duration
}

// DefaultClientConfig is used for zero fields.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{EvalTimeout: 60 * time.Second, Attempts: 5, RetryDelay: 500 * time.Millisecond}
}

// Client sends commands to one page context. Calls to the same capability are
// serialized; different capabilities may run concurrently.
type Client struct {
	eval   Evaluator
	logger *zap.Logger
	cfg    ClientConfig

	mu sync.Mutex
	// locks holds one single-slot semaphore per capability.
	locks map[string]chan struct{}
}

func NewClient(eval Evaluator, logger *zap.Logger, cfg ClientConfig) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultClientConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Client{
		eval:   eval,
		logger: logger.Named("bridge"),
		cfg:    cfg,
		locks:  make(map[string]chan struct{}),
	}
}

func (c *Client) lockFor(capability string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[capability]
	if !ok {
		l = make(chan struct{}, 1)
		c.locks[capability] = l
	}
	return l
}

// acquire takes the capability's slot or gives up when ctx ends, so a queued
// call never outlives its own deadline.
func (c *Client) acquire(ctx context.Context, capability string) (release func(), err error) {
	l := c.lockFor(capability)
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do evaluates cmd and returns the raw JSON result. Not-ready rejections are
// retried up to the configured attempts; the last one is returned wrapped in
// ErrNotReady. Any other rejection is returned as is.
func (c *Client) Do(ctx context.Context, cmd Command) (jsoniter.RawMessage, error) {
	text, err := Build(cmd)
	if err != nil {
		return nil, err
	}

	release, err := c.acquire(ctx, cmd.Capability)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", cmd.Capability, err)
	}
	defer release()

	limiter := rate.NewLimiter(rate.Every(c.cfg.RetryDelay), 1)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}
		res, err := c.evaluate(ctx, text)
		if err == nil {
			c.logger.Debug("Command settled.", zap.String("command", cmd.Key()), zap.Int("attempt", attempt))
			return res, nil
		}
		if !isNotReady(err) {
			c.logger.Debug("Command rejected.", zap.String("command", cmd.Key()), zap.Error(err))
			return nil, err
		}
		lastErr = fmt.Errorf("%w: %s", ErrNotReady, err.Error())
		c.logger.Info("Capability not ready, will retry.",
			zap.String("command", cmd.Key()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Attempts))
	}
	return nil, lastErr
}

func (c *Client) evaluate(ctx context.Context, text ExecutableText) (jsoniter.RawMessage, error) {
	if c.cfg.EvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.EvalTimeout)
		defer cancel()
	}
	return c.eval.Evaluate(ctx, string(text))
}

func isNotReady(err error) bool {
	return strings.Contains(err.Error(), NotReadyMarker)
}

// Invoke runs cmd and decodes its result into T.
func Invoke[T any](ctx context.Context, c *Client, cmd Command) (T, error) {
	var out T
	raw, err := c.Do(ctx, cmd)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", cmd.Key(), err)
	}
	return out, nil
}

// Batch runs cmds and returns their results in input order. Commands for
// different capabilities run concurrently; commands for the same capability
// run in the order given. The first error cancels the rest.
func (c *Client) Batch(ctx context.Context, cmds []Command) ([]jsoniter.RawMessage, error) {
	results := make([]jsoniter.RawMessage, len(cmds))

	groups := make(map[string][]int)
	var order []string
	for i, cmd := range cmds {
		if _, seen := groups[cmd.Capability]; !seen {
			order = append(order, cmd.Capability)
		}
		groups[cmd.Capability] = append(groups[cmd.Capability], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, capability := range order {
		idx := groups[capability]
		g.Go(func() error {
			for _, i := range idx {
				res, err := c.Do(gctx, cmds[i])
				if err != nil {
					return fmt.Errorf("%s: %w", cmds[i].Key(), err)
				}
				results[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
