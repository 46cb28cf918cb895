package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/internal/output"
)

// newGetCmd creates the get command.
func newGetCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one entity with its relationships",
		Long: `Show a single entity by id, with its relationships and the
entities they point at.

Examples:
  codexkeep get aria
  codexkeep get aria --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runGet(ctx context.Context, cmd *cobra.Command, id, format string) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	view, err := keep.GetEntity(ctx, id)
	if err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("no entity with id %q", id)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	out.Println(view.Node.Title)
	out.Dim(fmt.Sprintf("  id: %s  type: %s  status: %s", view.Node.ID, view.Node.Type, view.Node.Status))
	out.Dim("  source: " + view.Node.SourcePath)

	if len(view.Relationships) > 0 {
		out.Newline()
		out.Println("relationships:")
		for _, rel := range view.Relationships {
			out.Indent(fmt.Sprintf("%s -[%s]-> %s", rel.SourceID, rel.Relation, rel.TargetID))
		}
	}
	return nil
}
