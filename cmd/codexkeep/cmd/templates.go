package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/internal/output"
	"github.com/codexkeep/codexkeep/internal/template"
)

// newTemplatesCmd creates the templates command group.
func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and manage templates",
		Long: `List registered templates and manage which one is active.

The active template decides which entity types documents may declare,
which metadata fields they must carry, and how folders map to types.

Examples:
  codexkeep templates
  codexkeep templates register my-world.yaml
  codexkeep templates activate my-world`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTemplatesList(cmd)
		},
	}

	cmd.AddCommand(newTemplatesRegisterCmd())
	cmd.AddCommand(newTemplatesActivateCmd())
	return cmd
}

func runTemplatesList(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	active := keep.GetActiveTemplate()
	for _, id := range keep.Templates() {
		marker := " "
		if active != nil && id == active.ID {
			marker = "*"
		}
		out.Println(fmt.Sprintf("%s %s", marker, id))
	}
	return nil
}

// newTemplatesRegisterCmd registers a template definition file and
// persists it via activation only; registration itself lives for the
// process, so the file path belongs in .codexkeep.yaml for reuse.
func newTemplatesRegisterCmd() *cobra.Command {
	var activate bool

	cmd := &cobra.Command{
		Use:   "register <file>",
		Short: "Validate and register a template definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesRegister(cmd.Context(), cmd, args[0], activate)
		},
	}

	cmd.Flags().BoolVar(&activate, "activate", false, "Activate the template after registering")
	return cmd
}

func runTemplatesRegister(ctx context.Context, cmd *cobra.Command, path string, activate bool) error {
	out := output.New(cmd.OutOrStdout())

	keep, err := openKeep()
	if err != nil {
		return err
	}
	defer keep.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template file: %w", err)
	}
	def, err := template.Load(data)
	if err != nil {
		return err
	}
	if err := keep.RegisterTemplate(def, path); err != nil {
		return err
	}
	out.Successf("registered template %s version %s (%d entity types)",
		def.ID, def.Version, len(def.EntityTypes))

	if activate {
		if err := keep.ActivateTemplate(ctx, def.ID); err != nil {
			return err
		}
		out.Successf("activated template %s", def.ID)
	}

	out.Dim("add the file to template.path in .codexkeep.yaml so future runs load it")
	return nil
}

func newTemplatesActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a registered template the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, err := openKeep()
			if err != nil {
				return err
			}
			defer keep.Close()

			if err := keep.ActivateTemplate(cmd.Context(), args[0]); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("activated template %s", args[0])
			return nil
		},
	}
}
