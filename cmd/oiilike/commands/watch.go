package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fangligamedev/OiiLike/internal/filter"
	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchKind         string
	watchAgent        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time blackboard activity",
	Long: `Monitor a running space through the events its relay mirrors to Redis.

Streams task publications, claims, completions, failures and resource
updates as they occur.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default space
  REDIS_URL=redis://localhost:6379 oiilike watch

  # Only failures, as JSON
  oiilike watch --kind task_fail --output=json > failures.jsonl`,
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchKind, "kind", "", "Filter by event kind (glob pattern)")
	watchCmd.Flags().StringVar(&watchAgent, "agent", "", "Filter by event source agent (exact match)")
	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connectRelay(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	filters := &filter.Criteria{KindGlob: watchKind, Agent: watchAgent}
	return watch.StreamActivity(ctx, client, outputFormat, filters, os.Stdout)
}
