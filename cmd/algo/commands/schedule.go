package commands

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/scheduler/jobs"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/internal/strategy/catalog"
	"github.com/trobrock/trading-algo/pkg/config"
)

var scheduleStrategy string

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List the cron schedule of a strategy",
	Long: `Prints every callback of the strategy with its market-relative rule and
the cron specs it is registered under. Without --strategy the registered
strategy names are listed.

Example:
  go run ./cmd/algo schedule --strategy meanrev`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().StringVarP(&scheduleStrategy, "strategy", "s", "", "strategy name")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if scheduleStrategy == "" {
		printHeader(w, "Strategies")
		for _, name := range catalog.Names() {
			fmt.Fprintf(w, "  - %s\n", name)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	scfg, _, err := loadStrategyConfig(cfg)
	if err != nil {
		return err
	}
	s, err := catalog.Build(scheduleStrategy, scfg)
	if err != nil {
		return err
	}

	printSchedule(w, s, cfg.Market.Timezone)
	return nil
}

func printSchedule(w io.Writer, s strategy.Strategy, timezone string) {
	printHeader(w, fmt.Sprintf("%s (%s)", s.Name(), timezone))

	table := newTable(w, "Job", "Rule", "Cron")
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	before := scheduler.BeforeOpen(jobs.DefaultBeforeOpenLead)
	table.Append([]string{s.Name() + ".before_trading_start", before.String(), before.Spec()})

	for _, sched := range s.Schedules() {
		rule := sched.Rule.String()
		if sched.SessionOnly {
			rule += " (session only)"
		}
		table.Append([]string{s.Name() + "." + sched.Name, rule, sched.Rule.Spec()})
	}
	table.Render()
}
