package brain

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/s2_aggregation"
	"github.com/wonny/covid-report/internal/s3_smoothing"
	"github.com/wonny/covid-report/internal/s4_normalise"
	"github.com/wonny/covid-report/internal/s5_scoring"
	"github.com/wonny/covid-report/internal/s6_report"
	"github.com/wonny/covid-report/internal/table"
)

// derived is a table built from one or more sources, or the reason it
// could not be built
type derived struct {
	table *table.Table
	err   error
}

func (d derived) get() (*table.Table, error) { return d.table, d.err }

// then applies f unless d already failed
func (d derived) then(f func(t *table.Table) (*table.Table, error)) derived {
	if d.err != nil {
		return d
	}
	t, err := f(d.table)
	return derived{table: t, err: err}
}

// smoothed is a smoothed series in both its final and provisional forms
type smoothed struct {
	res s3_smoothing.Result
	err error
}

// analysis holds every intermediate product of one run, filled stage by stage
type analysis struct {
	// S2: aggregated, unsmoothed
	ukTotal        derived // cumulative, nation = United Kingdom
	scotlandTotal  derived // cumulative, nation = Scotland
	casesByRegion  derived // cumulative, region
	triageOnline   derived // daily, region
	triagePathways derived // daily, region, England CCGs only
	appKeysRegion  derived // daily, region
	appKeysRisk    derived // daily, interval
	riskyVenues    derived // daily, venue_type
	testCapacity   derived // daily, pillar

	// S3
	ukCases       smoothed
	scotlandCases smoothed
	regionCounts  smoothed
	deaths        smoothed
	admissions    smoothed
	onlineSmooth  smoothed
	pathwaySmooth smoothed
	ltlaCounts    smoothed

	// S4
	regionalRates smoothed // per 100k
	ltlaRates     derived  // per 100k, final only
	positivity    derived  // percent

	// S5
	scores    *contracts.ScoreSet
	scoresErr error
	mapData   *contracts.MapData
	mapErr    error
}

func (r *run) source(name contracts.SourceName) derived {
	t, err := r.ds.Get(name)
	return derived{table: t, err: err}
}

// firstFatal returns the first schema mismatch among errs
func firstFatal(errs ...error) error {
	for _, err := range errs {
		if err != nil && contracts.IsFatal(err) {
			return err
		}
	}
	return nil
}

// recordGap tallies rows a stage had to exclude on the run's quality summary
func (r *run) recordGap(g contracts.AlignmentGap) {
	r.result.Quality.RecordGap(g)
}

func constantLabel(label string) func(string) (string, bool) {
	return func(string) (string, bool) { return label, true }
}

func englandOnly(code string) bool {
	return strings.HasPrefix(code, "E")
}

// runS2 maps fine geographies onto NHS regions and sums away the dimensions
// no chart needs
func (o *Orchestrator) runS2(_ context.Context, r *run) error {
	a := &r.a
	la := s2_aggregation.NewAggregator(r.ref.LARegion, o.metrics, r.log)
	ccg := s2_aggregation.NewAggregator(r.ref.CCGRegion, o.metrics, r.log)

	a.ukTotal = r.source(contracts.SourceUKCases).then(func(t *table.Table) (*table.Table, error) {
		out, _, err := t.Regroup("nation", "nation", constantLabel("United Kingdom"))
		return out, err
	})
	a.scotlandTotal = r.source(contracts.SourceScotlandCases).then(func(t *table.Table) (*table.Table, error) {
		out, _, err := t.Regroup("gss_code", "nation", constantLabel("Scotland"))
		return out, err
	})
	a.casesByRegion = r.source(contracts.SourceLTLACases).then(func(t *table.Table) (*table.Table, error) {
		// NHS 지역은 잉글랜드만 있음
		england, err := t.Select("gss_code", englandOnly)
		if err != nil {
			return nil, err
		}
		out, report, err := la.AggregateByRegion(england, "gss_code")
		r.recordGap(report.Gap(t.Name(), r.ref.LARegion.Name()))
		return out, err
	})
	a.triageOnline = r.source(contracts.SourceTriageOnline).then(func(t *table.Table) (*table.Table, error) {
		byCCG, err := t.Collapse("age_band", "sex")
		if err != nil {
			return nil, err
		}
		out, report, err := ccg.AggregateByRegion(byCCG, "ccg")
		r.recordGap(report.Gap(t.Name(), r.ref.CCGRegion.Name()))
		return out, err
	})
	a.triagePathways = r.source(contracts.SourceTriagePathways).then(func(t *table.Table) (*table.Table, error) {
		england, err := t.Select("ccg", englandOnly)
		if err != nil {
			return nil, err
		}
		byCCG, err := england.Collapse("age_band", "sex", "site_type")
		if err != nil {
			return nil, err
		}
		out, report, err := ccg.AggregateByRegion(byCCG, "ccg")
		r.recordGap(report.Gap(t.Name(), r.ref.CCGRegion.Name()))
		return out, err
	})
	a.appKeysRegion = r.source(contracts.SourceAppExposures).then(func(t *table.Table) (*table.Table, error) {
		return t.Collapse("interval")
	})
	a.appKeysRisk = r.source(contracts.SourceAppExposures).then(func(t *table.Table) (*table.Table, error) {
		return t.Collapse("region")
	})
	a.riskyVenues = r.source(contracts.SourceRiskyVenues)
	a.testCapacity = r.source(contracts.SourceTesting).then(func(t *table.Table) (*table.Table, error) {
		return t.Collapse("area")
	})

	return firstFatal(
		a.ukTotal.err, a.scotlandTotal.err, a.casesByRegion.err,
		a.triageOnline.err, a.triagePathways.err,
		a.appKeysRegion.err, a.appKeysRisk.err, a.testCapacity.err,
	)
}

// runS3 takes centred rolling means of every count series
func (o *Orchestrator) runS3(_ context.Context, r *run) error {
	a := &r.a
	counts := s3_smoothing.Options{
		Window:          o.policy.Smoothing.Window,
		ProvisionalDays: o.policy.Smoothing.ProvisionalDays,
		FillZero:        true,
	}
	cumulative := counts
	cumulative.Cumulative = true

	a.ukCases = o.smooth(r, a.ukTotal, cumulative)
	a.scotlandCases = o.smooth(r, a.scotlandTotal, cumulative)
	a.regionCounts = o.smooth(r, a.casesByRegion, cumulative)
	a.deaths = o.smooth(r, r.source(contracts.SourceNHSDeaths), counts)
	a.admissions = o.smooth(r, r.source(contracts.SourceHospitalAdmissions), cumulative)
	a.onlineSmooth = o.smooth(r, a.triageOnline, counts)
	a.pathwaySmooth = o.smooth(r, a.triagePathways, counts)
	a.ltlaCounts = o.smooth(r, r.source(contracts.SourceLTLACases), cumulative)

	return firstFatal(
		a.ukCases.err, a.scotlandCases.err, a.regionCounts.err, a.deaths.err,
		a.admissions.err, a.onlineSmooth.err, a.pathwaySmooth.err, a.ltlaCounts.err,
	)
}

// smooth runs the smoother on d. Too little data is logged and leaves the
// affected output empty; any other error is carried.
func (o *Orchestrator) smooth(r *run, d derived, opts s3_smoothing.Options) smoothed {
	t, err := d.get()
	if err != nil {
		return smoothed{err: err}
	}

	res, err := s3_smoothing.NewSmoother().Smooth(t, opts)
	var insufficient *contracts.InsufficientDataError
	if errors.As(err, &insufficient) {
		r.log.WithStage(contracts.StageSmoothing.String()).WithFields(map[string]interface{}{
			"series": insufficient.Series,
			"have":   insufficient.Have,
			"need":   insufficient.Need,
		}).Warn("Not enough dates to smooth, trace omitted")
		return smoothed{res: res}
	}
	return smoothed{res: res, err: err}
}

// runS4 turns counts into rates
func (o *Orchestrator) runS4(_ context.Context, r *run) error {
	a := &r.a
	per := o.policy.Map.PerPopulation

	regional := s4_normalise.NewNormaliser(regionPopulation{lookup: r.ref.LARegion, pop: r.ref.Populations}, per, o.metrics, r.log)
	if a.regionCounts.err != nil {
		a.regionalRates = smoothed{err: a.regionCounts.err}
	} else {
		final, report, errF := regional.Normalise(a.regionCounts.res.Final, s2_aggregation.RegionDim)
		if errF == nil {
			r.recordGap(report.Gap(a.regionCounts.res.Final.Name()))
		}
		prov, _, errP := regional.Normalise(a.regionCounts.res.Provisional, s2_aggregation.RegionDim)
		err := errF
		if err == nil {
			err = errP
		}
		a.regionalRates = smoothed{res: s3_smoothing.Result{Final: final, Provisional: prov}, err: err}
	}

	local := s4_normalise.NewNormaliser(r.ref.Populations, per, o.metrics, r.log)
	if a.ltlaCounts.err != nil {
		a.ltlaRates = derived{err: a.ltlaCounts.err}
	} else {
		rates, report, err := local.Normalise(a.ltlaCounts.res.Final, "gss_code")
		if err == nil {
			r.recordGap(report.Gap(a.ltlaCounts.res.Final.Name()))
		}
		a.ltlaRates = derived{table: rates, err: err}
	}

	a.positivity = o.positivity(r)

	return firstFatal(a.regionalRates.err, a.ltlaRates.err, a.positivity.err)
}

// positivity is new cases by publish date over pillar 1 + 2 tests, in percent.
// Days without a positive case increase are left out.
func (o *Orchestrator) positivity(r *run) derived {
	cases, err := r.ds.Get(contracts.SourcePublishedCases)
	if err != nil {
		return derived{err: err}
	}
	testing, err := r.ds.Get(contracts.SourceTesting)
	if err != nil {
		return derived{err: err}
	}

	daily := cases.Diff().Mask(func(v float64) bool { return v > 0 })
	tests, err := testing.Collapse("pillar")
	if err != nil {
		return derived{err: err}
	}

	ratio, rem, err := daily.Combine(tests, func(c, t float64) float64 {
		if math.IsNaN(c) || math.IsNaN(t) || t <= 0 {
			return math.NaN()
		}
		return 100 * c / t
	})
	if err != nil {
		return derived{err: err}
	}
	if !rem.Empty() {
		r.log.WithFields(map[string]interface{}{
			"dates": len(rem.Dates),
			"keys":  len(rem.Keys),
		}).Debug("Positivity: unmatched cases or tests")
	}

	return derived{table: ratio.WithName("positivity")}
}

// runS5 scores every NHS region and builds the map payload
func (o *Orchestrator) runS5(_ context.Context, r *run) error {
	a := &r.a

	in := s5_scoring.Inputs{
		Deaths:         finalOrNil(a.deaths),
		Cases:          finalOrNil(a.regionalRates),
		TriageOnline:   finalOrNil(a.onlineSmooth),
		TriagePathways: finalOrNil(a.pathwaySmooth),
		Admissions:     finalOrNil(a.admissions),
	}
	scorer := s5_scoring.NewScorer(
		s5_scoring.ConfigFromPolicy(o.policy.Scoring),
		s5_scoring.NewWeightedCombiner(o.policy.Scoring.Weights.AsMap()),
		r.log,
	)
	a.scores, a.scoresErr = scorer.Score(in)

	ltla, err := r.ds.Get(contracts.SourceLTLACases)
	if err != nil {
		a.mapErr = err
	} else {
		var missing []string
		a.mapData, missing, a.mapErr = s6_report.BuildMapData(ltla, "gss_code", r.ref.Populations, s6_report.MapOptions{
			Window:          o.policy.Smoothing.Window,
			ProvisionalDays: o.policy.Smoothing.ProvisionalDays,
			PerPopulation:   o.policy.Map.PerPopulation,
			Since:           o.policy.Map.Since,
		})
		if len(missing) > 0 {
			gap := contracts.AlignmentGap{
				Stage:  contracts.StagePresentation,
				Table:  ltla.Name(),
				Lookup: "populations",
				Codes:  missing,
				Rows:   len(missing),
			}
			r.log.WithFields(map[string]interface{}{
				"table": gap.Table,
				"codes": gap.Codes,
			}).Warn("Alignment gap: areas left off the map")
			o.metrics.AlignmentGap(gap)
			r.recordGap(gap)
		}
	}

	return firstFatal(a.scoresErr, a.mapErr)
}

func finalOrNil(s smoothed) *table.Table {
	if s.err != nil || s.res.Final == nil {
		return nil
	}
	return s.res.Final
}

// regionPopulation sums local authority populations up to NHS regions
type regionPopulation struct {
	lookup *s0_data.RegionLookup
	pop    *s0_data.PopulationTable
}

// Population returns the summed population of region's local authorities.
// A region is missing when any of its codes has no population, since a
// partial sum would overstate the rate.
func (p regionPopulation) Population(region string) (float64, bool) {
	codes := p.lookup.CodesIn(region)
	if len(codes) == 0 {
		return 0, false
	}
	total := 0.0
	for _, code := range codes {
		v, ok := p.pop.Population(code)
		if !ok {
			return 0, false
		}
		total += v
	}
	return total, true
}
