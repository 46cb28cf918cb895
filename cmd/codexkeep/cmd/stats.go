package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/internal/output"
)

// newStatsCmd creates the stats command.
func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, format string) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	stats, err := keep.GetStats(ctx)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out.Println(fmt.Sprintf("entities:      %d", stats.NodeCount))
	out.Println(fmt.Sprintf("relationships: %d", stats.RelationshipCount))

	if len(stats.NodesByType) > 0 {
		out.Newline()
		out.Println("by type:")
		types := make([]string, 0, len(stats.NodesByType))
		for t := range stats.NodesByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			out.Indent(fmt.Sprintf("%-12s %d", t, stats.NodesByType[t]))
		}
	}

	if lastScan, err := keep.LastScan(ctx); err == nil && !lastScan.IsZero() {
		out.Newline()
		out.Dim("last scan: " + lastScan.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
