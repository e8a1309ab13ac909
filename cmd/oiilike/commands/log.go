package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fangligamedev/OiiLike/internal/filter"
	"github.com/fangligamedev/OiiLike/internal/hoard"
	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	logOutputFormat string
	logSince        string
	logUntil        string
	logKind         string
	logAgent        string
	logTask         string
	logFromSeq      int64
	logTail         int64
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List the mirrored event log with filtering",
	Long: `List the events a space's relay has mirrored to Redis, oldest first.

Output Formats:
  default - Human-readable table with sequence, kind, source and detail
  jsonl   - Line-delimited JSON, one event per line

Filters (ANDed together):
  --since / --until - Time bounds (duration like 10m, or RFC3339)
  --kind            - Event kind glob ("task_*", "resource_update")
  --agent           - Event source role (exact match)
  --task            - Task ID (exact match)
  --from-seq        - Skip events before this sequence number
  --tail            - Only the last N events

Examples:
  oiilike log --since=10m
  oiilike log --kind="task_*" --agent=inquisitor
  oiilike log --output=jsonl | jq 'select(.kind=="task_fail")'`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	logCmd.Flags().StringVar(&logSince, "since", "", "Show events after time (duration or RFC3339)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "Show events before time (duration or RFC3339)")
	logCmd.Flags().StringVar(&logKind, "kind", "", "Filter by event kind (glob pattern)")
	logCmd.Flags().StringVar(&logAgent, "agent", "", "Filter by event source agent (exact match)")
	logCmd.Flags().StringVar(&logTask, "task", "", "Filter by task ID (exact match)")
	logCmd.Flags().Int64Var(&logFromSeq, "from-seq", 0, "First sequence number to list")
	logCmd.Flags().Int64Var(&logTail, "tail", 0, "Only list the last N events")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var outputFormat hoard.OutputFormat
	switch logOutputFormat {
	case "default":
		outputFormat = hoard.OutputFormatDefault
	case "jsonl":
		outputFormat = hoard.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", logOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMs, untilMs, err := timespec.ParseRange(logSince, logUntil)
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), nil)
	}

	client, err := connectRelay(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	fromSeq := logFromSeq
	if logTail > 0 {
		last, err := client.LastSeq(ctx)
		if err != nil {
			return err
		}
		if tailFrom := last - logTail + 1; tailFrom > fromSeq {
			fromSeq = tailFrom
		}
	}

	filters := &filter.Criteria{
		SinceTimestampMs: sinceMs,
		UntilTimestampMs: untilMs,
		KindGlob:         logKind,
		Agent:            logAgent,
		TaskID:           logTask,
	}

	return hoard.ListEvents(ctx, client, fromSeq, outputFormat, filters, os.Stdout)
}
