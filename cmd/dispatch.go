package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/internal/bridge"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom"
	"github.com/xkilldash9x/sitepilot/internal/config"
	"github.com/xkilldash9x/sitepilot/internal/orchestrator"
)

// output is where a dispatched command writes. Results go to out; terminal
// lines, when requested, to errOut so stdout stays machine-readable.
type output struct {
	out          io.Writer
	errOut       io.Writer
	showTerminal bool
}

// dispatch injects site into a fresh page context over doc, runs command and
// prints its result.
func dispatch(ctx context.Context, o output, cfg config.Interface, logger *zap.Logger, doc dom.Document, site string, command bridge.Command, opts ...orchestrator.Option) error {
	orch, err := orchestrator.New(cfg, logger, doc, opts...)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Inject(site); err != nil {
		return err
	}
	res, runErr := orch.Do(ctx, command)

	if o.showTerminal {
		for _, entry := range orch.Terminal().Logs() {
			fmt.Fprintf(o.errOut, "[%s] %s\n", entry.Level, entry.Message)
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s failed: %w", command.Key(), runErr)
	}
	return writeResult(o.out, res)
}

// writeResult pretty-prints a JSON result.
func writeResult(w io.Writer, raw []byte) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
