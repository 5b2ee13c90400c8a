package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"aircheck/internal/states"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <upload-id>",
		Short: "Show the processing status of one upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid upload id %q", args[0])
			}
			return runStatus(cmd, ctx, uploadID)
		},
	}
}

func runStatus(cmd *cobra.Command, ctx *commandContext, uploadID int64) error {
	logger, err := ctx.buildLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	store, err := ctx.buildStore(logger)
	if err != nil {
		return err
	}

	upload, err := store.Upload(cmd.Context(), uploadID)
	if err != nil {
		return fmt.Errorf("load upload %d: %w", uploadID, err)
	}
	set, err := upload.States()
	if err != nil {
		return fmt.Errorf("decode upload status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Upload %d: %s\n", upload.ID, upload.Name)
	fmt.Fprintf(out, "Planned broadcast: %s\n", upload.PlannedBroadcastAt.Format("02.01.2006 15:04"))
	if upload.Duration > 0 {
		fmt.Fprintf(out, "Duration: %s\n", upload.Duration.Clock())
	}
	if upload.Exported() {
		fmt.Fprintf(out, "Platform item: %d\n", *upload.PlatformID)
	}

	rows := make([][]string, 0, 4)
	for _, state := range set.States() {
		track := state.Track()
		rows = append(rows, []string{string(track), stateLabel(track, state)})
	}
	fmt.Fprintln(out, renderTable([]string{"Track", "State"}, rows, nil))

	if upload.OptimizationLog != "" {
		fmt.Fprintln(out, "Optimization log:")
		fmt.Fprintln(out, upload.OptimizationLog)
	}
	return nil
}

// stateLabel strips the track prefix from a stored state value.
func stateLabel(track states.Track, state states.State) string {
	prefix := string(track) + ": "
	value := string(state)
	if len(value) > len(prefix) {
		return value[len(prefix):]
	}
	return value
}
