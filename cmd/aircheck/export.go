package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"aircheck/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <upload-id>",
		Short: "Publish one upload to the distribution platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid upload id %q", args[0])
			}
			return runExport(cmd, ctx, uploadID)
		},
	}
}

func runExport(cmd *cobra.Command, ctx *commandContext, uploadID int64) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := ctx.buildLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	saga, _, err := ctx.buildSaga(logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := false
	for event := range saga.Run(signalCtx, uploadID) {
		printEvent(out, event)
		if event.State == export.StateError {
			failed = true
		}
	}
	if failed {
		return errors.New("export failed")
	}
	return nil
}

func printEvent(out io.Writer, event export.Event) {
	fmt.Fprintf(out, "%s %s\n", stateGlyph(event.State), event.Title)
	if event.Description != "" {
		fmt.Fprintf(out, "  %s\n", event.Description)
	}
	keys := make([]string, 0, len(event.Items))
	for key := range event.Items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s: %s\n", key, event.Items[key])
	}
}

func stateGlyph(state export.EventState) string {
	switch state {
	case export.StateDone:
		return "[ok]"
	case export.StateWarning:
		return "[warn]"
	case export.StateError:
		return "[fail]"
	default:
		return "[..]"
	}
}
