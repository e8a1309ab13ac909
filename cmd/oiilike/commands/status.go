package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest summary of a running space",
	Long: `Show the latest blackboard summary the relay mirrored to Redis:
task counts per state, resource names per category, and each agent's
idle/busy status.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := connectRelay(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.GetSummary(ctx)
	if err != nil {
		if relay.IsNotFound(err) {
			return printer.Error(
				"no summary yet",
				fmt.Sprintf("Space '%s' has not published a summary.", client.Space()),
				[]string{"Start the space with the relay enabled:\n  oiilike run --serve"},
			)
		}
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	printStatus(client.Space(), summary)
	return nil
}

func printStatus(space string, s *blackboard.Summary) {
	printer.Printf("Space '%s' (%d events)\n\n", space, s.EventCount)
	printer.Printf("Tasks: %d pending, %d running, %d completed, %d failed\n\n",
		s.Tasks.Pending, s.Tasks.Running, s.Tasks.Completed, s.Tasks.Failed)

	printer.Println("Agents:")
	for _, role := range blackboard.AllAgents {
		state, ok := s.AgentStatus[role]
		if !ok {
			continue
		}
		printer.Detail(string(role), state)
	}

	categories := make([]string, 0, len(s.Resources))
	for category := range s.Resources {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	printer.Println("\nResources:")
	for _, category := range categories {
		names := s.Resources[category]
		if len(names) == 0 {
			printer.Detail(category, "-")
			continue
		}
		printer.Detail(category, fmt.Sprintf("%v", names))
	}
}
