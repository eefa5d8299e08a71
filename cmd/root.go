// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/internal/config"
	"github.com/xkilldash9x/sitepilot/internal/observability"
)

// app carries state shared by the subcommands of one root command.
type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
}

// bootstrap loads configuration and starts the logger. It runs before every
// subcommand.
func (a *app) bootstrap(cmd *cobra.Command) error {
	cfg, err := config.Load(viper.New(), a.cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LoggerCfg.Level = a.logLevel
	}
	a.cfg = cfg

	logger := observability.InitializeLogger(cfg.Logger())
	logger.Debug("Starting sitepilot", zap.String("version", Version), zap.String("command", cmd.Name()))
	return nil
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sitepilot",
		Short: "Sitepilot drives third-party web pages through injected page-context capabilities.",
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bootstrap(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.sitepilot/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	root.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	root.AddCommand(
		newScriptCmd(),
		newOperationsCmd(),
		newRunCmd(a),
		newSimulateCmd(a),
		newLogsCmd(a),
	)
	return root
}

// Execute runs the command line against ctx. Errors are logged here; the
// caller only decides the exit code.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	if err != nil {
		return fmt.Errorf("sitepilot: %w", err)
	}
	return nil
}
