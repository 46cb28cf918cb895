package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/internal/output"
	"github.com/codexkeep/codexkeep/pkg/codex"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit         int
	types         []string
	statuses      []string
	relationships bool
	format        string // "text", "json"
}

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge graph",
		Long: `Search indexed entities by full-text match over titles and bodies.

An empty query browses all entities instead of matching. Results can be
restricted by entity type and status.

Examples:
  codexkeep search "dragon hoard"
  codexkeep search quest --type event --status canon
  codexkeep search --type character --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().StringSliceVarP(&opts.types, "type", "t", nil, "Filter by entity type (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVarP(&opts.relationships, "relationships", "r", false, "Include each result's relationships")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	results, err := keep.Search(ctx, query, codex.SearchOptions{
		Types:                opts.types,
		Statuses:             opts.statuses,
		Limit:                opts.limit,
		IncludeRelationships: opts.relationships,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Dim("no results")
		return nil
	}

	for _, r := range results {
		header := fmt.Sprintf("%s  [%s, %s]", r.Node.Title, r.Node.Type, r.Node.Status)
		if r.Score > 0 {
			header += fmt.Sprintf("  (%.2f)", r.Score)
		}
		out.Println(header)
		out.Dim("  " + r.Node.ID + "  " + r.Node.SourcePath)
		for _, rel := range r.Relationships {
			out.Indent(fmt.Sprintf("%s -[%s]-> %s", rel.SourceID, rel.Relation, rel.TargetID))
		}
	}
	return nil
}
