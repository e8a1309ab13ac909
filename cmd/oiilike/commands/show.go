package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fangligamedev/OiiLike/internal/hoard"
	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/resolver"
	"github.com/fangligamedev/OiiLike/internal/watch"
	"github.com/spf13/cobra"
)

var showWait time.Duration

var showCmd = &cobra.Command{
	Use:   "show TASK_ID",
	Short: "Show a mirrored task as JSON",
	Long: `Show the latest mirrored state of a task as pretty-printed JSON.
Supports short IDs (e.g., "abc123" instead of the full UUID).

With --wait, blocks until the task is completed or failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().DurationVar(&showWait, "wait", 0, "Wait up to this long for the task to finish")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := connectRelay(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	taskID, err := resolver.ResolveTaskID(ctx, client, args[0])
	if err != nil {
		if ambErr, ok := err.(*resolver.AmbiguousError); ok {
			return printer.Error("ambiguous task ID", resolver.FormatAmbiguousError(ambErr), nil)
		}
		if resolver.IsNotFoundError(err) {
			return printer.Error(
				"task not found",
				err.Error(),
				[]string{fmt.Sprintf("List recent tasks:\n  oiilike log --kind task_publish --space %s", client.Space())},
			)
		}
		return err
	}

	if showWait > 0 {
		if _, err := watch.PollForTerminal(ctx, client, taskID, showWait); err != nil {
			return printer.Error("task did not finish", err.Error(), nil)
		}
	}

	if err := hoard.GetTask(ctx, client, taskID, os.Stdout); err != nil {
		if hoard.IsNotFound(err) {
			return printer.Error("task not found", err.Error(), nil)
		}
		return err
	}
	return nil
}
