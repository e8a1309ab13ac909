package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/runtime"
	"github.com/fangligamedev/OiiLike/internal/watch"
	"github.com/fangligamedev/OiiLike/internal/workflow"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	runRequest string
	runName    string
	runServe   bool
	runWatch   bool
	runVerbose bool
	runTimeout time.Duration
	runNoHTTP  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the blackboard and agents, optionally driving a request",
	Long: `Start an in-memory blackboard with the configured agent workers.

With --request, the producer plans the request into tasks:
  1. voidshaper generates a texture
  2. codeweaver writes a script
  3. inquisitor tests the script
  4. producer reviews the result

The command exits once the request is approved or failed, unless --serve
keeps the space running. Without --request, --serve is implied.

Examples:
  # Drive one request and print the result
  oiilike run --request "a bouncing ball" --name ball

  # Keep serving /healthz, /summary and /metrics, streaming events
  oiilike run --serve --watch`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runRequest, "request", "r", "", "User request to plan into tasks")
	runCmd.Flags().StringVar(&runName, "name", "", "Asset name used for produced resources (default \"asset\")")
	runCmd.Flags().BoolVar(&runServe, "serve", false, "Keep running after the request finishes")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Stream blackboard events to stdout")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log every blackboard transition")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "Maximum time to wait for the request")
	runCmd.Flags().BoolVar(&runNoHTTP, "no-http", false, "Disable the health server")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var opts []runtime.Option
	opts = append(opts, runtime.WithVerbose(runVerbose))
	if runNoHTTP {
		opts = append(opts, runtime.WithoutHTTP())
	}

	svc, err := runtime.New(cfg, opts...)
	if err != nil {
		return printer.Error("failed to build space", err.Error(), nil)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Run(runCtx)
	}()

	if err := waitReady(runCtx, svc, errCh); err != nil {
		return printer.Error("failed to start space", err.Error(), nil)
	}

	printer.Step("Space '%s' running with %d workers\n", cfg.Space, svc.Workers())
	if h := svc.Health(); h != nil {
		printer.Detail("health", fmt.Sprintf("http://%s/healthz", h.Addr()))
	}
	if cfg.Relay.Enabled {
		printer.Detail("relay", cfg.Relay.RedisURL)
	}

	if runWatch {
		go watch.StreamBoard(runCtx, svc.Board(), watch.OutputFormatDefault, nil, os.Stdout)
	}

	if runRequest != "" {
		if err := driveRequest(runCtx, svc); err != nil {
			cancel()
			<-errCh
			return err
		}
		if !runServe {
			cancel()
			return ignoreCanceled(<-errCh)
		}
	}

	printer.Info("Serving until interrupted (Ctrl+C to stop)\n")
	return ignoreCanceled(<-errCh)
}

// waitReady returns once the service is subscribed, or with the error that stopped it.
func waitReady(ctx context.Context, svc *runtime.Service, errCh <-chan error) error {
	readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ready := make(chan error, 1)
	go func() {
		ready <- svc.WaitReady(readyCtx)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return fmt.Errorf("space stopped before becoming ready")
		}
		return err
	case err := <-ready:
		return err
	}
}

func driveRequest(ctx context.Context, svc *runtime.Service) error {
	req, err := svc.Submit(ctx, runRequest, runName)
	if err != nil {
		return printer.Error("request rejected", err.Error(), nil)
	}
	printer.Step("Request %s submitted\n", req.ID)

	waitCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	req, err = svc.Planner().Wait(waitCtx, req.ID)
	if err != nil {
		return printer.ErrorWithContext(
			"request did not finish",
			err.Error(),
			map[string]string{"Request": req.ID, "Tasks": fmt.Sprintf("%d", len(req.Tasks))},
			[]string{"Increase --timeout, or run with --watch to see where it stalls"},
		)
	}

	printSummary(svc.Board())

	if req.Status != workflow.RequestStatusApproved {
		return printer.ErrorWithContext(
			"request failed",
			req.Reason,
			map[string]string{"Request": req.ID},
			nil,
		)
	}

	printer.Success("Request approved\n")
	return nil
}

func printSummary(board *blackboard.Blackboard) {
	s := board.Summary()

	printer.Println()
	printer.Printf("Tasks: %d pending, %d running, %d completed, %d failed\n",
		s.Tasks.Pending, s.Tasks.Running, s.Tasks.Completed, s.Tasks.Failed)

	categories := make([]string, 0, len(s.Resources))
	for category := range s.Resources {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, name := range s.Resources[category] {
			value, _ := board.GetResource(category, name)
			printer.Detail(category+"/"+name, value)
		}
	}
	printer.Println()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
