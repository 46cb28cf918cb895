package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/configs"
	"github.com/codexkeep/codexkeep/internal/config"
	"github.com/codexkeep/codexkeep/internal/output"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a vault for indexing",
		Long: `Initialize a vault: write an annotated .codexkeep.yaml and create
the .codexkeep data directory. Safe to run in a vault that already has
documents; nothing existing is touched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .codexkeep.yaml")
	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	cfgPath := filepath.Join(vaultPath, ".codexkeep.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		out.Warningf("%s already exists (use --force to overwrite)", cfgPath)
		return nil
	}

	if err := os.WriteFile(cfgPath, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.MkdirAll(config.DataDir(vaultPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	out.Successf("initialized vault at %s", vaultPath)
	out.Dim("next: run 'codexkeep index' to build the graph")
	return nil
}
