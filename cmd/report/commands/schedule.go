package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/scheduler"
	"github.com/wonny/covid-report/internal/scheduler/jobs"
)

var (
	scheduleCron  string
	schedulePages []string
)

// scheduleCmd regenerates the report on a cron schedule
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Regenerate the report on a schedule until interrupted",
	Long: `Runs generate on a cron schedule (seconds field first) until Ctrl+C
or SIGTERM. Each run is independent: sources are fetched again and
nothing is carried over. A run still in progress when the next tick
fires is not started twice. Reference and correction schema errors are
not retried.

Example:
  go run ./cmd/report schedule
  go run ./cmd/report schedule --cron "0 30 16 * * *"`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression with seconds (default SCHEDULE_CRON)")
	scheduleCmd.Flags().StringSliceVar(&schedulePages, "page", nil, "pages to render (default all)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		PrintError(err.Error())
		return err
	}

	orch, err := a.orchestrator(a.cfg.OutputDir)
	if err != nil {
		return err
	}

	spec := a.cfg.ScheduleCron
	if scheduleCron != "" {
		spec = scheduleCron
	}

	sched := scheduler.New(a.clock, scheduler.Options{
		MaxRetries: a.cfg.HTTP.MaxRetries,
		RetryDelay: a.cfg.HTTP.RetryDelay,
		Retryable:  func(err error) bool { return !contracts.IsFatal(err) },
	}, a.log)

	if err := sched.AddJob(jobs.NewReportJob(orch, spec, schedulePages, a.log)); err != nil {
		PrintError(err.Error())
		return err
	}

	sched.Start()

	PrintSuccess("Scheduler started")
	for _, name := range sched.JobNames() {
		PrintKeyValue(name, spec, 8)
	}
	PrintInfo("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println()
	PrintInfo("Shutting down scheduler...")
	sched.Stop()

	for name, st := range sched.Stats() {
		PrintKeyValue(name, fmt.Sprintf("%d run(s), %.0f%% successful", st.TotalRuns, st.SuccessRate*100), 8)
	}
	return nil
}
