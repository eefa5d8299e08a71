package cmd

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sitepilot/internal/bridge"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// parseValues reads each argument as a JSON value. Anything that is not valid
// JSON is sent as a string, so plain queries need no quoting.
func parseValues(raw []string) ([]jsoniter.RawMessage, error) {
	out := make([]jsoniter.RawMessage, len(raw))
	for i, s := range raw {
		if json.Valid([]byte(s)) {
			out[i] = jsoniter.RawMessage(s)
			continue
		}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = b
	}
	return out, nil
}

// commandFromArgs resolves a catalog command from command-line words.
func commandFromArgs(capability, operation string, raw []string) (bridge.Command, error) {
	values, err := parseValues(raw)
	if err != nil {
		return bridge.Command{}, err
	}
	return bridge.FromPositional(capability, operation, values)
}

func newScriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <capability> <operation> [args...]",
		Short: "Print the executable text that invokes one operation in a page context",
		Long: `Print the self-contained text that invokes one operation in a page context.
Arguments are JSON values; anything that does not parse as JSON is sent as a
string. Quote a value as a JSON string ('"true"') to force a string.`,
		Example: `  sitepilot script linkedin search "rust engineer" '{"type":"jobs"}'
  sitepilot script uniswap swap '{"fromToken":"ETH","toToken":"USDC","amount":"0.5"}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := commandFromArgs(args[0], args[1], args[2:])
			if err != nil {
				return err
			}
			text, err := bridge.Build(command)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newOperationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List every operation the page context publishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, op := range bridge.Catalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s(%s)\n", op.Capability, op.Name, strings.Join(op.Params, ", "))
			}
			return nil
		},
	}
}
