package brain

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/observability"
	"github.com/wonny/covid-report/internal/policyconfig"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/s0_data/collector"
	"github.com/wonny/covid-report/internal/s0_data/quality"
	"github.com/wonny/covid-report/internal/s1_correction"
	"github.com/wonny/covid-report/internal/s6_report"
	"github.com/wonny/covid-report/pkg/logger"
)

// ReferenceLoader returns the static lookup tables for one run
type ReferenceLoader func(ctx context.Context) (*s0_data.Reference, error)

// Settings holds the run options that come from the environment
type Settings struct {
	AssetsHost      string // go-echarts assets host, "" for the library default
	MetricsTextfile string // "" disables the textfile
}

// Orchestrator coordinates the 7-stage report pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	collector   *collector.Collector
	qualityGate *quality.QualityGate
	reference   ReferenceLoader
	corrector   *s1_correction.Corrector
	policy      *policyconfig.Config
	renderer    *s6_report.Renderer
	metrics     *observability.Metrics
	clock       clockwork.Clock
	settings    Settings

	logger *logger.Logger
}

// RunConfig holds options for one run
type RunConfig struct {
	RunID string   // generated when empty
	Pages []string // subset of s6_report.AllPages(); empty renders all
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	collector *collector.Collector,
	qualityGate *quality.QualityGate,
	reference ReferenceLoader,
	policy *policyconfig.Config,
	renderer *s6_report.Renderer,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	settings Settings,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		collector:   collector,
		qualityGate: qualityGate,
		reference:   reference,
		corrector:   s1_correction.NewCorrector(log),
		policy:      policy,
		renderer:    renderer,
		metrics:     metrics,
		clock:       clock,
		settings:    settings,
		logger:      log,
	}
}

// Run executes the complete pipeline once
// S0 → S1 → S2 → S3 → S4 → S5 → S6
//
// Only fatal errors are returned: reference data that cannot be loaded or
// no longer matches its schema, a correction that does not fit its table,
// or a page that cannot be written. A source that fails or returns
// malformed data only removes the sections that depend on it.
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*contracts.RunResult, error) {
	pages, err := selectPages(rc.Pages)
	if err != nil {
		return nil, err
	}

	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}

	r := &run{
		id:  rc.RunID,
		log: o.logger.WithRunID(rc.RunID),
		result: &contracts.RunResult{
			RunID:           rc.RunID,
			StartTime:       o.clock.Now(),
			CompletedStages: make([]contracts.Stage, 0, len(contracts.AllStages())),
			Pages:           make([]string, 0, len(pages)),
			Sections:        make([]contracts.SectionOutcome, 0),
		},
	}

	hash, err := policyconfig.Hash(o.policy)
	if err != nil {
		return o.finish(r, fmt.Errorf("hash policy: %w", err))
	}
	r.result.PolicyHash = hash

	r.log.WithFields(map[string]interface{}{
		"policy_hash": hash,
		"policy_id":   o.policy.Meta.PolicyID,
		"pages":       pages,
	}).Info("Starting report run")

	steps := []struct {
		stage contracts.Stage
		fn    func(ctx context.Context, r *run) error
	}{
		{contracts.StageDataAccess, o.runS0},
		{contracts.StageCorrection, o.runS1},
		{contracts.StageAggregation, o.runS2},
		{contracts.StageSmoothing, o.runS3},
		{contracts.StageNormalisation, o.runS4},
		{contracts.StageScoring, o.runS5},
		{contracts.StagePresentation, func(ctx context.Context, r *run) error { return o.runS6(ctx, r, pages) }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return o.finish(r, fmt.Errorf("run cancelled before %s: %w", step.stage.ShortName(), err))
		}
		start := o.clock.Now()
		if err := step.fn(ctx, r); err != nil {
			return o.finish(r, fmt.Errorf("%s failed: %w", step.stage.ShortName(), err))
		}
		o.metrics.ObserveStage(step.stage, o.clock.Since(start))
		r.result.CompletedStages = append(r.result.CompletedStages, step.stage)
	}

	return o.finish(r, nil)
}

// finish stamps the result, records the outcome and flushes metrics
func (o *Orchestrator) finish(r *run, runErr error) (*contracts.RunResult, error) {
	r.result.EndTime = o.clock.Now()
	o.metrics.RunFinished(r.result.EndTime, runErr)
	if err := o.metrics.WriteTextfile(o.settings.MetricsTextfile); err != nil {
		r.log.WithError(err).Warn("Failed to write metrics textfile")
	}

	if runErr != nil {
		r.log.WithError(runErr).WithField("duration", r.result.Duration().String()).Error("Report run failed")
		return r.result, runErr
	}

	r.log.WithFields(map[string]interface{}{
		"duration":        r.result.Duration().String(),
		"pages":           len(r.result.Pages),
		"failed_sections": len(r.result.FailedSections()),
		"quality_score":   r.result.Quality.QualityScore,
	}).Info("Report run completed")

	return r.result, nil
}

// runS0 loads reference data and fetches every source
func (o *Orchestrator) runS0(ctx context.Context, r *run) error {
	ref, err := o.reference(ctx)
	if err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}
	r.ref = ref

	ds, _, err := o.collector.FetchAll(ctx)
	if err != nil {
		return err
	}
	r.ds = ds

	q, passed := o.qualityGate.Check(ds)
	r.result.Quality = q
	if !passed {
		r.log.WithFields(map[string]interface{}{
			"quality_score":  q.QualityScore,
			"failed_sources": q.FailedSources(),
		}).Warn("Source coverage below threshold, report will be partial")
	}

	r.log.WithFields(map[string]interface{}{
		"la_codes":      ref.LARegion.Len(),
		"ccg_codes":     ref.CCGRegion.Len(),
		"populations":   ref.Populations.Len(),
		"quality_score": q.QualityScore,
	}).Info("S0 completed")

	return nil
}

// runS1 applies the policy's corrections to every fetched source they name
func (o *Orchestrator) runS1(_ context.Context, r *run) error {
	for _, name := range r.ds.Names() {
		fixes := o.policy.FixesFor(name)
		if len(fixes) == 0 {
			continue
		}
		raw, err := r.ds.Get(name)
		if err != nil {
			// 소스 실패: 보정할 대상 없음
			continue
		}
		fixed, report, err := o.corrector.Correct(raw, fixes)
		if err != nil {
			return fmt.Errorf("correct %s: %w", name, err)
		}
		r.ds.Put(name, fixed)

		r.log.WithFields(map[string]interface{}{
			"source":  string(name),
			"applied": report.Applied,
			"ignored": len(report.Ignored),
		}).Debug("Applied corrections")
	}
	return nil
}

func selectPages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return s6_report.AllPages(), nil
	}

	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[p] = true
	}

	pages := make([]string, 0, len(requested))
	for _, p := range s6_report.AllPages() {
		if want[p] {
			pages = append(pages, p)
			delete(want, p)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for p := range want {
			unknown = append(unknown, p)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown pages %v (have %v)", unknown, s6_report.AllPages())
	}
	return pages, nil
}

// run is the state of one pipeline execution. Nothing outlives it.
type run struct {
	id     string
	log    *logger.Logger
	ref    *s0_data.Reference
	ds     *s0_data.Dataset
	a      analysis
	result *contracts.RunResult
}
