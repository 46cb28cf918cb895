package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
	"github.com/codexkeep/codexkeep/internal/index"
	"github.com/codexkeep/codexkeep/internal/output"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan the vault and build the knowledge graph",
		Long: `Scan the vault and index every document into the graph store.

Documents without a metadata block are skipped; documents that fail
type resolution or field validation are reported per error code.
Re-running on an unchanged vault changes nothing.

Examples:
  codexkeep index
  codexkeep index --rebuild`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, rebuild)
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Clear the graph and re-index from scratch")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, rebuild bool) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	var report *index.Report
	if rebuild {
		report, err = keep.Rebuild(ctx)
	} else {
		report, err = keep.Scan(ctx)
	}
	if err != nil {
		return err
	}

	printReport(out, report)
	return nil
}

// printReport renders a scan report, grouping problems by error code.
func printReport(out *output.Writer, report *index.Report) {
	out.Successf("indexed %d of %d documents in %s",
		report.Indexed, report.Scanned, report.Duration.Round(time.Millisecond))

	if report.Skipped > 0 {
		out.Warningf("%d document(s) skipped (no metadata block)", report.Skipped)
	}
	if report.Failed > 0 {
		out.Errorf("%d document(s) failed", report.Failed)
	}

	for _, group := range report.Groups() {
		out.Newline()
		out.Println(group.Code + ":")
		for _, path := range group.Paths {
			out.Indent(path + ": " + cerr.FormatForCLI(report.Errors[path]))
		}
	}
}
