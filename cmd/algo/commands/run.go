package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trobrock/trading-algo/internal/api"
)

var (
	runStrategy   string
	runDataDir    string
	runAllowShort bool
	runNoAPI      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a strategy on its market schedule",
	Long: `Registers every callback of the strategy with the scheduler, prepares the
current trading day and trades against the paper broker until interrupted.

The status API listens on PORT unless --no-api is given.

Example:
  go run ./cmd/algo run --strategy dividend --data ./data`,
	RunE: runStrategyCmd,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "strategy name (required)")
	runCmd.Flags().StringVar(&runDataDir, "data", "data", "directory of price CSV files")
	runCmd.Flags().BoolVar(&runAllowShort, "allow-short", false, "let the paper broker open short positions")
	runCmd.Flags().BoolVar(&runNoAPI, "no-api", false, "do not start the status API")
	runCmd.MarkFlagRequired("strategy")
}

func runStrategyCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{
		strategy:   runStrategy,
		dataDir:    runDataDir,
		allowShort: runAllowShort,
	})
	if err != nil {
		return err
	}
	defer a.close()

	printHeader(cmd.OutOrStdout(), "Running "+a.strategy.Name())

	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start runner: %w", err)
	}
	defer a.runner.Stop()

	for _, name := range a.scheduler.GetAllJobs() {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
	}

	g, gctx := errgroup.WithContext(ctx)

	if !runNoAPI {
		deps := api.Deps{
			Strategy:  a.strategy.Name(),
			Scheduler: a.scheduler,
			Journal:   a.journal,
		}
		if a.db != nil {
			deps.DB = a.db
		}
		server := api.New(a.cfg, a.logger, api.NewRouter(deps, a.logger))

		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	fmt.Fprintln(cmd.OutOrStdout(), "\nPress Ctrl+C to stop")
	return g.Wait()
}
