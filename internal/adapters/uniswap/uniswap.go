// Package uniswap automates the decentralized exchange front end: wallet
// connection and token swaps. Unlike the content adapters, its asynchronous
// operations reject on failure so callers can tell a failed attempt from a
// negative answer.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/api/schemas"
	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/registry"
)

const BaseURL = "https://app.uniswap.org"

var (
	connectedIndicators = []string{
		"[data-testid='web3-status-connected']",
		"button[data-testid='navbar-account-button']",
	}
	connectButtons = []string{
		"[data-testid='navbar-connect-wallet']",
		"button[data-testid='web3-status-connect']",
		"//button[normalize-space()='Connect']",
	}
	walletOptions = []string{
		"[data-testid='wallet-option-injected']",
		"[data-testid='wallet-option-INJECTED']",
		"[data-testid^='wallet-option']",
	}
	connectErrors = []string{"[data-testid='wallet-connection-error']", "[data-testid='connection-error']"}

	inputTokenSelect = []string{
		"#swap-currency-input .open-currency-select-button",
		"[data-testid='swap-currency-input'] .open-currency-select-button",
		"[data-testid='choose-input-token']",
	}
	outputTokenSelect = []string{
		"#swap-currency-output .open-currency-select-button",
		"[data-testid='swap-currency-output'] .open-currency-select-button",
		"[data-testid='choose-output-token']",
	}
	tokenSearch = []string{
		"input#token-search-input",
		"[data-testid='token-search-input']",
		"input[placeholder='Search tokens']",
	}
	amountInputs = []string{
		"[data-testid='amount-input-in']",
		"#swap-currency-input input.token-amount-input",
		"input.token-amount-input",
	}
	swapButtons    = []string{"[data-testid='swap-button']", "#swap-button"}
	confirmButtons = []string{"[data-testid='confirm-swap-button']", "#confirm-swap-or-send"}

	txSubmitted = []string{"[data-testid='transaction-submitted']", "[data-testid='pending-modal-content']"}
	txErrors    = []string{"[data-testid='swap-error']", "[data-testid='transaction-error']"}
	txLinks     = []string{"a[href*='/tx/']"}
)

// tokenSymbol bounds what may be spliced into the token selectors below.
var tokenSymbol = regexp.MustCompile(`^[A-Za-z0-9.]+$`)

func tokenOptions(symbol string) []string {
	return []string{
		fmt.Sprintf("[data-testid='token-option-%s']", symbol),
		fmt.Sprintf("[data-testid='common-base-%s']", symbol),
		fmt.Sprintf("//div[@data-testid='currency-list-wrapper']//*[normalize-space()='%s']", symbol),
	}
}

// TransactionError is a failure the exchange itself reported, or a wallet or
// transaction outcome that never arrived. Its message is the page's reason
// verbatim.
type TransactionError struct {
	Step   string
	Reason string
}

func (e *TransactionError) Error() string {
	return e.Reason
}

// ErrNotConnected is returned by swap when no wallet is connected.
var ErrNotConnected = errors.New("wallet not connected")

type Adapter struct {
	doc    dom.Document
	opts   flow.Options
	runner flow.Runner
}

func New(doc dom.Document, rep flow.Reporter, logger *zap.Logger, opts ...flow.Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		doc:    doc,
		opts:   flow.ApplyOptions(opts),
		runner: flow.Runner{Logger: logger.Named("uniswap"), Reporter: rep},
	}
}

// IsConnected checks the navbar for a connected account without waiting.
func (a *Adapter) IsConnected(ctx context.Context) bool {
	_, _, ok := dom.QueryAny(ctx, a.doc, connectedIndicators)
	return ok
}

// Connect opens the wallet modal, picks the injected wallet and waits for the
// account to show. It is a no-op when already connected.
func (a *Adapter) Connect(ctx context.Context) (bool, error) {
	if a.IsConnected(ctx) {
		return true, nil
	}
	err := a.runner.RunE(ctx, "uniswap connect",
		clickStep("open wallet modal", a.doc, connectButtons, a.opts.Timing.ControlTimeout),
		flow.Step{Name: "choose wallet", Run: func(ctx context.Context) error {
			// Some builds connect straight away without a wallet picker.
			opt, matched, ok := dom.WaitForAny(ctx, a.doc, append(append([]string{}, walletOptions...), connectedIndicators...), a.opts.Timing.ControlTimeout)
			if !ok {
				return dom.NewElementNotFoundError("choose wallet", walletOptions...)
			}
			if isOneOf(matched, connectedIndicators) {
				return nil
			}
			return dom.ClickElement(ctx, opt)
		}},
		flow.Step{Name: "await connection", Run: func(ctx context.Context) error {
			return a.awaitOutcome(ctx, "await connection", connectedIndicators, connectErrors,
				fmt.Sprintf("wallet connection not confirmed within %s", a.opts.Timing.WalletTimeout))
		}},
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Swap fills in and submits a swap and waits for the page to report the
// outcome. A page-reported failure comes back as *TransactionError carrying
// the page's text.
func (a *Adapter) Swap(ctx context.Context, p schemas.SwapParams) (schemas.SwapResult, error) {
	result := schemas.SwapResult{FromToken: p.FromToken, ToToken: p.ToToken, AmountIn: p.Amount}
	t := a.opts.Timing

	err := a.runner.RunE(ctx, "uniswap swap",
		flow.Step{Name: "validate swap", Run: func(ctx context.Context) error {
			return validate(p)
		}},
		flow.Step{Name: "check wallet", Run: func(ctx context.Context) error {
			if !a.IsConnected(ctx) {
				return ErrNotConnected
			}
			return nil
		}},
		clickStep("open input token list", a.doc, inputTokenSelect, t.ControlTimeout),
		a.pickToken("select input token", p.FromToken),
		clickStep("open output token list", a.doc, outputTokenSelect, t.ControlTimeout),
		a.pickToken("select output token", p.ToToken),
		flow.Step{Name: "enter amount", Run: func(ctx context.Context) error {
			el, _, ok := dom.WaitForAny(ctx, a.doc, amountInputs, t.ControlTimeout)
			if !ok {
				return dom.NewElementNotFoundError("enter amount", amountInputs...)
			}
			return dom.InsertTextIntoElement(ctx, el, p.Amount)
		}},
		flow.Settle("settle quote", t.FilterSettle),
		clickStep("review swap", a.doc, swapButtons, t.ControlTimeout),
		clickStep("confirm swap", a.doc, confirmButtons, t.ControlTimeout),
		flow.Step{Name: "await transaction", Run: func(ctx context.Context) error {
			if err := a.awaitOutcome(ctx, "await transaction", txSubmitted, txErrors,
				fmt.Sprintf("transaction outcome not observed within %s", t.WalletTimeout)); err != nil {
				return err
			}
			result.Status = schemas.SwapSubmitted
			result.TxHash = a.txHash(ctx)
			return nil
		}},
	)
	if err != nil {
		return schemas.SwapResult{}, err
	}
	return result, nil
}

// awaitOutcome waits for either a success or a failure marker. Failure markers
// become a TransactionError with the marker's text.
func (a *Adapter) awaitOutcome(ctx context.Context, step string, success, failure []string, timeoutReason string) error {
	watch := append(append([]string{}, success...), failure...)
	el, matched, ok := dom.WaitForAny(ctx, a.doc, watch, a.opts.Timing.WalletTimeout)
	if !ok {
		return &TransactionError{Step: step, Reason: timeoutReason}
	}
	if isOneOf(matched, success) {
		return nil
	}
	reason, err := el.Text(ctx)
	if err != nil || strings.TrimSpace(reason) == "" {
		reason = "transaction failed"
	}
	return &TransactionError{Step: step, Reason: strings.TrimSpace(reason)}
}

func (a *Adapter) pickToken(step, symbol string) flow.Step {
	return flow.Step{Name: step, Run: func(ctx context.Context) error {
		search, _, ok := dom.WaitForAny(ctx, a.doc, tokenSearch, a.opts.Timing.ControlTimeout)
		if !ok {
			return dom.NewElementNotFoundError(step, tokenSearch...)
		}
		if err := dom.InsertTextIntoElement(ctx, search, symbol); err != nil {
			return err
		}
		opts := tokenOptions(symbol)
		opt, _, ok := dom.WaitForAny(ctx, a.doc, opts, a.opts.Timing.ControlTimeout)
		if !ok {
			return dom.NewElementNotFoundError(step, opts...)
		}
		return dom.ClickElement(ctx, opt)
	}}
}

// txHash reads the explorer link the confirmation shows, if any.
func (a *Adapter) txHash(ctx context.Context) string {
	link, _, ok := dom.QueryAny(ctx, a.doc, txLinks)
	if !ok {
		return ""
	}
	href, _, err := link.Attribute(ctx, "href")
	if err != nil {
		return ""
	}
	i := strings.LastIndex(href, "/tx/")
	if i < 0 {
		return ""
	}
	hash := href[i+len("/tx/"):]
	if j := strings.IndexAny(hash, "?#/"); j >= 0 {
		hash = hash[:j]
	}
	return hash
}

func validate(p schemas.SwapParams) error {
	if strings.TrimSpace(p.FromToken) == "" || strings.TrimSpace(p.ToToken) == "" {
		return fmt.Errorf("fromToken and toToken are required")
	}
	for _, sym := range []string{p.FromToken, p.ToToken} {
		if !tokenSymbol.MatchString(sym) {
			return fmt.Errorf("invalid token symbol %q", sym)
		}
	}
	if strings.EqualFold(p.FromToken, p.ToToken) {
		return fmt.Errorf("cannot swap %s for itself", p.FromToken)
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(p.Amount), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", p.Amount)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	return nil
}

func clickStep(name string, doc dom.Document, selectors []string, timeout time.Duration) flow.Step {
	return flow.Step{Name: name, Run: func(ctx context.Context) error {
		el, _, ok := dom.WaitForAny(ctx, doc, selectors, timeout)
		if !ok {
			return dom.NewElementNotFoundError(name, selectors...)
		}
		return dom.ClickElement(ctx, el)
	}}
}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (a *Adapter) Entry() registry.Entry {
	return registry.Entry{
		Name: schemas.UniswapAPI,
		Ops: map[string]registry.Op{
			"isConnected": {Policy: registry.Propagate, Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return a.IsConnected(ctx), nil
			}},
			"connect": {Async: true, Policy: registry.Propagate, Fn: func(ctx context.Context, _ registry.Args) (interface{}, error) {
				return a.Connect(ctx)
			}},
			"swap": {Async: true, Policy: registry.Propagate, Fn: func(ctx context.Context, args registry.Args) (interface{}, error) {
				var p schemas.SwapParams
				if err := args.Bind(0, &p); err != nil {
					return nil, err
				}
				return a.Swap(ctx, p)
			}},
		},
	}
}

func Inject(reg *registry.Registry, a *Adapter) (func(), error) {
	return reg.Mount(a.Entry(), nil)
}
