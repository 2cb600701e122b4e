package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/wonny/covid-report/pkg/logger"
)

// Options controls retries
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	// Retryable reports whether a failed run is worth repeating.
	// nil retries every error.
	Retryable func(err error) bool
}

// Scheduler runs jobs on cron schedules
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	clock   clockwork.Clock
	logger  *logger.Logger
	opts    Options
	jobs    map[string]Job
	history map[string]*JobHistory
	mu      sync.RWMutex

	// 진행 중인 작업 취소용
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler. Schedules take a leading seconds field.
func New(clock clockwork.Clock, opts Options, log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		clock:   clock,
		logger:  log.WithField("module", "scheduler"),
		opts:    opts,
		jobs:    make(map[string]Job),
		history: make(map[string]*JobHistory),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	// 겹치는 실행은 건너뜀: 이전 실행이 끝나지 않았으면 이번 틱은 생략
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.runJob(s.ctx, job)
	}))
	if _, err := s.cron.AddJob(job.Schedule(), wrapped); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs a job immediately and waits for it
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", jobName)
	}

	return s.runJob(ctx, job), nil
}

// runJob executes a job with retry logic
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	jobName := job.Name()
	startTime := s.clock.Now()

	s.logger.WithField("job", jobName).Info("Job started")

	result := JobResult{JobName: jobName, StartTime: startTime}

	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := job.Run(ctx)
		if err == nil {
			result.Success = true
			break
		}
		lastErr = err

		if ctx.Err() != nil || (s.opts.Retryable != nil && !s.opts.Retryable(err)) {
			break
		}
		if attempt == s.opts.MaxRetries {
			break
		}

		s.logger.WithFields(map[string]interface{}{
			"job":     jobName,
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Job execution failed, retrying")

		select {
		case <-ctx.Done():
		case <-s.clock.After(s.opts.RetryDelay):
		}
	}

	result.EndTime = s.clock.Now()
	result.Duration = result.EndTime.Sub(startTime)
	if !result.Success && lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	if result.Success {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": result.Duration.String(),
			"attempts": result.Attempts,
		}).Info("Job completed successfully")
	} else {
		s.logger.WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": result.Duration.String(),
			"attempts": result.Attempts,
			"error":    result.Error,
		}).Error("Job failed")
	}

	return result
}

// JobNames returns all registered jobs, sorted
func (s *Scheduler) JobNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// Stats returns statistics for all jobs
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.history))
	for jobName, history := range s.history {
		st := JobStats{
			JobName:     jobName,
			Schedule:    s.jobs[jobName].Schedule(),
			TotalRuns:   len(history.Results),
			SuccessRate: history.SuccessRate(),
		}
		for _, r := range history.Results {
			if !r.Success {
				st.FailureCount++
			}
		}
		if last, ok := history.Last(); ok {
			st.LastRun = &last.StartTime
			st.LastSuccess = last.Success
		}
		stats[jobName] = st
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  bool       `json:"last_success"`
}
