package commands

import (
	"path/filepath"

	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new OiiLike project",
	Long: `Initialize a new OiiLike project with the default configuration.

Creates oiilike.yml next to --config with one worker per agent role and the
default resource categories (textures, scripts, test_results).

Use --force to reinitialize an existing project (WARNING: overwrites existing configuration).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing oiilike.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := scaffold.Initialize(filepath.Dir(configPath), forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}
	if filepath.Base(configPath) != filepath.Base(path) {
		printer.Warning("Wrote %s; pass --config %s to other commands\n", path, path)
	}

	scaffold.PrintSuccess(path)
	return nil
}
