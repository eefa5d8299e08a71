package cmd

import (
	"errors"
	"fmt"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sitepilot/internal/observability"
)

func newLogsCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the rotating log file, optionally following it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := observability.LogFilePath(a.cfg.Logger())
			if err != nil {
				return err
			}
			if path == "" {
				return errors.New("file logging is disabled (logger.log_file is empty)")
			}

			t, err := tail.TailFile(path, tail.Config{
				Follow:    follow,
				ReOpen:    follow,
				MustExist: !follow,
				Logger:    tail.DiscardingLogger,
			})
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer t.Cleanup()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			for {
				select {
				case line, ok := <-t.Lines:
					if !ok {
						return t.Wait()
					}
					if line.Err != nil {
						return line.Err
					}
					fmt.Fprintln(out, line.Text)
				case <-ctx.Done():
					_ = t.Stop()
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing lines as they are written")
	return cmd
}
