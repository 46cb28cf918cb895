package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/internal/output"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var skipScan bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and keep the index current",
		Long: `Run an initial scan, then watch the vault for changes and apply
them to the index incrementally. Saves, creations, deletions, and
atomic-rename writes are debounced per document.

Stops on Ctrl-C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, skipScan)
		},
	}

	cmd.Flags().BoolVar(&skipScan, "skip-scan", false, "Skip the initial full scan")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, skipScan bool) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !skipScan {
		report, err := keep.Scan(ctx)
		if err != nil {
			return err
		}
		printReport(out, report)
	}

	out.Println("watching " + keep.VaultPath() + " (Ctrl-C to stop)")
	if err := keep.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	out.Println("stopped")
	return nil
}
