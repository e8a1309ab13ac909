package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
	spaceName  string
	redisURL   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oiilike",
	Short: "OiiLike - blackboard coordination for game-asset agents",
	Long: `OiiLike coordinates a small team of agent roles through a shared,
in-memory blackboard. Agents never call each other: the producer publishes
tasks, each role claims the work routed to it, and results flow back as
resources and events.

Run a request end to end with 'oiilike run'. When REDIS_URL is set the
blackboard's events are mirrored to Redis so 'watch', 'log', 'show' and
'status' can follow a running space from another terminal.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "oiilike.yml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&spaceName, "space", "s", "", "Space name (overrides config and OII_SPACE)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Relay Redis URL (overrides config and REDIS_URL)")
}
