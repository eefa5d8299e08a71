package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sitepilot/internal/adapters/flow"
	"github.com/xkilldash9x/sitepilot/internal/browser/dom/memdom"
	"github.com/xkilldash9x/sitepilot/internal/observability"
	"github.com/xkilldash9x/sitepilot/internal/orchestrator"
)

// simulationTiming keeps waits short: a static fixture never changes, so a
// missing element will not appear later.
func simulationTiming() flow.Timing {
	return flow.Timing{
		ControlTimeout: time.Second,
		ResultsTimeout: time.Second,
		PageTimeout:    time.Second,
		WalletTimeout:  time.Second,
	}
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		fixture      string
		path         string
		realTiming   bool
		showTerminal bool
	)
	cmd := &cobra.Command{
		Use:   "simulate --fixture page.html <site> <operation> [args...]",
		Short: "Run one operation against a saved HTML page instead of a browser",
		Long: `Run one operation against an in-memory copy of a saved page. Nothing is
fetched or executed from the page itself; only the adapter's reads and writes
are applied to the parsed document.`,
		Example: `  sitepilot simulate -f testdata/serp.html google getResults 5`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			site := args[0]
			command, err := commandFromArgs(site, args[1], args[2:])
			if err != nil {
				return err
			}

			file, err := homedir.Expand(fixture)
			if err != nil {
				return err
			}
			markup, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read fixture: %w", err)
			}
			doc, err := memdom.New(string(markup), path)
			if err != nil {
				return err
			}

			var opts []orchestrator.Option
			if !realTiming {
				opts = append(opts, orchestrator.WithTiming(simulationTiming()))
			}
			o := output{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), showTerminal: showTerminal}
			return dispatch(cmd.Context(), o, a.cfg, observability.GetLogger(), doc, site, command, opts...)
		},
	}
	cmd.Flags().StringVarP(&fixture, "fixture", "f", "", "saved HTML page to operate on")
	cmd.Flags().StringVar(&path, "path", "/", "location pathname the page pretends to be at")
	cmd.Flags().BoolVar(&realTiming, "real-timing", false, "use production waits and settle delays")
	cmd.Flags().BoolVar(&showTerminal, "terminal", false, "print the page terminal to stderr after the operation")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}
