package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/covid-report/internal/brain"
	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/pkg/logger"
)

// Runner runs the report pipeline once
type Runner interface {
	Run(ctx context.Context, rc brain.RunConfig) (*contracts.RunResult, error)
}

// ReportJob regenerates every page on a schedule. Each run starts from
// nothing: sources are fetched again and no state carries over.
// ⭐ SSOT: 리포트 생성 스케줄은 이 Job에서만
type ReportJob struct {
	runner   Runner
	schedule string
	pages    []string
	logger   *logger.Logger
}

// NewReportJob creates a new report job. pages may be empty for all pages.
func NewReportJob(runner Runner, schedule string, pages []string, log *logger.Logger) *ReportJob {
	return &ReportJob{
		runner:   runner,
		schedule: schedule,
		pages:    pages,
		logger:   log,
	}
}

// Name returns the job name
func (j *ReportJob) Name() string {
	return "report"
}

// Schedule returns the cron schedule (with seconds)
func (j *ReportJob) Schedule() string {
	return j.schedule
}

// Run executes one pipeline run
func (j *ReportJob) Run(ctx context.Context) error {
	result, err := j.runner.Run(ctx, brain.RunConfig{Pages: j.pages})
	if err != nil {
		return fmt.Errorf("report run: %w", err)
	}

	if failed := result.FailedSections(); len(failed) > 0 {
		j.logger.WithFields(map[string]interface{}{
			"run_id": result.RunID,
			"failed": len(failed),
		}).Warn("Report generated with omitted sections")
	}
	return nil
}
