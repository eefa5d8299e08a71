package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sitepilot/internal/browser"
	"github.com/xkilldash9x/sitepilot/internal/config"
	"github.com/xkilldash9x/sitepilot/internal/observability"
	"github.com/xkilldash9x/sitepilot/internal/orchestrator"
)

const browserShutdownTimeout = 30 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var (
		headless     bool
		execPath     string
		showTerminal bool
	)
	cmd := &cobra.Command{
		Use:   "run <site> <operation> [args...]",
		Short: "Open the site in Chrome, inject its adapter and run one operation",
		Example: `  sitepilot run google search "machine learning" '{"type":"news"}'
  sitepilot run linkedin navigateToJobs --headless=false`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headless") {
				a.cfg.SetBrowserHeadless(headless)
			}
			if execPath != "" {
				a.cfg.SetBrowserExecPath(execPath)
			}
			o := output{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), showTerminal: showTerminal}
			return runInBrowser(cmd.Context(), o, a.cfg, args[0], args[1], args[2:])
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", true, "run Chrome without a window (overrides browser.headless)")
	cmd.Flags().StringVar(&execPath, "chrome", "", "path to the Chrome executable (overrides browser.exec_path)")
	cmd.Flags().BoolVar(&showTerminal, "terminal", false, "print the page terminal to stderr after the operation")
	return cmd
}

func runInBrowser(ctx context.Context, o output, cfg *config.Config, site, operation string, rawArgs []string) error {
	logger := observability.GetLogger()

	siteURL, ok := cfg.Sites().URL(site)
	if !ok {
		return fmt.Errorf("%w: %q (choose one of %v)", orchestrator.ErrUnknownSite, site, orchestrator.Sites())
	}
	// Reject a bad command before paying for a browser launch.
	command, err := commandFromArgs(site, operation, rawArgs)
	if err != nil {
		return err
	}

	mgr := browser.NewManager(cfg.Browser(), logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), browserShutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown failed.", zap.Error(err))
		}
	}()

	sess, err := mgr.NewSession(ctx)
	if err != nil {
		return err
	}
	if err := sess.Navigate(ctx, siteURL); err != nil {
		return err
	}
	return dispatch(ctx, o, cfg, logger, sess.Document(), site, command)
}
