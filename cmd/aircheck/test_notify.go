package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aircheck/internal/notify"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test push notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger()
			if err != nil {
				return err
			}
			pusher := notify.NewPusher(cfg, logger)
			if err := pusher.TestPush(cmd.Context()); err != nil {
				return fmt.Errorf("test push: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
