// Package cmd provides the CLI commands for codexkeep.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codexkeep/codexkeep/internal/logging"
	"github.com/codexkeep/codexkeep/pkg/codex"
	"github.com/codexkeep/codexkeep/pkg/version"
)

var (
	vaultPath      string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the codexkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codexkeep",
		Short: "Knowledge-graph index for plain-text vaults",
		Long: `codexkeep indexes a vault of structured text documents into a
searchable knowledge graph. Documents declare metadata in a YAML block
and link to each other with [[wikilink]] references; codexkeep turns
them into typed entities and relationships you can search and traverse.

Run 'codexkeep init' in a vault directory to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("codexkeep version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&vaultPath, "vault", ".", "Vault root directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codexkeep/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging configures file logging; --debug raises the level.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// openKeep opens the vault named by the --vault flag.
func openKeep() (*codex.Keep, error) {
	keep, err := codex.Open(codex.Options{VaultPath: vaultPath})
	if err != nil {
		return nil, fmt.Errorf("open vault %s: %w", vaultPath, err)
	}
	return keep, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
