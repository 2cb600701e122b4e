package s5_scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/policyconfig"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

// RegionDim is the dimension every scoring input is keyed by
const RegionDim = "region"

// Inputs are the smoothed, region-keyed series to score. Any may be nil.
type Inputs struct {
	Deaths         *table.Table
	Cases          *table.Table
	TriageOnline   *table.Table
	TriagePathways *table.Table
	Admissions     *table.Table
}

// byComponent maps component names to the non-nil inputs
func (in Inputs) byComponent() map[string]*table.Table {
	all := map[string]*table.Table{
		contracts.ComponentDeaths:         in.Deaths,
		contracts.ComponentCases:          in.Cases,
		contracts.ComponentTriageOnline:   in.TriageOnline,
		contracts.ComponentTriagePathways: in.TriagePathways,
		contracts.ComponentAdmissions:     in.Admissions,
	}
	out := make(map[string]*table.Table, len(all))
	for k, t := range all {
		if t != nil {
			out[k] = t
		}
	}
	return out
}

// Config holds the trend parameters
type Config struct {
	RecentDays  int     // 최근 구간 길이 (기준 구간도 같은 길이)
	Sensitivity float64 // tanh 기울기
	StableBand  float64 // |score| ≤ band → stable
}

// ConfigFromPolicy reads the scoring section of the policy
func ConfigFromPolicy(p policyconfig.Scoring) Config {
	return Config{
		RecentDays:  p.RecentDays,
		Sensitivity: p.Sensitivity,
		StableBand:  p.StableBand,
	}
}

// Scorer implements S5: per-region composite trend score
// ⭐ SSOT: S5 점수 계산은 여기서만
type Scorer struct {
	config   Config
	combiner Combiner
	logger   *logger.Logger
}

// NewScorer creates a new scorer
func NewScorer(config Config, combiner Combiner, log *logger.Logger) *Scorer {
	return &Scorer{
		config:   config,
		combiner: combiner,
		logger:   log.WithStage(contracts.StageScoring.String()),
	}
}

// Score computes a composite score for every region present in at least
// one input. Regions lacking some inputs are scored on the rest and marked
// partial.
//
// Each component compares the recent window with the window before it, so
// the score is non-decreasing in recent-window values only. Raising the
// baseline window lowers it, and adding a constant to a rising series
// moves it towards zero. It is invariant to scaling a series.
func (s *Scorer) Score(in Inputs) (*contracts.ScoreSet, error) {
	if s.config.RecentDays < 1 {
		return nil, fmt.Errorf("recent days must be >= 1, got %d", s.config.RecentDays)
	}

	inputs := in.byComponent()
	for name, t := range inputs {
		if !t.HasDims([]string{RegionDim}) {
			return nil, &contracts.SchemaMismatchError{
				Table:  t.Name(),
				Detail: fmt.Sprintf("score input %s must be keyed by %q only, has %v", name, RegionDim, t.Dims()),
			}
		}
	}

	set := &contracts.ScoreSet{
		Regions: make([]contracts.RegionScore, 0),
	}
	if w, ok := s.combiner.(interface{ Weights() map[string]float64 }); ok {
		set.Weights = w.Weights()
	}

	regions := make(map[string]bool)
	for _, t := range inputs {
		for _, r := range t.Labels(RegionDim) {
			regions[r] = true
		}
		if last, ok := t.LastDate(); ok && last.After(set.AsOf) {
			set.AsOf = last
		}
	}

	names := make([]string, 0, len(regions))
	for r := range regions {
		names = append(names, r)
	}
	sort.Strings(names)

	components := s.combiner.Components()
	for _, region := range names {
		rs := contracts.RegionScore{
			Region:     region,
			Components: make(map[string]contracts.ComponentTrend),
		}
		values := make(map[string]float64)

		for _, comp := range components {
			t, ok := inputs[comp]
			if !ok {
				rs.Missing = append(rs.Missing, comp)
				continue
			}
			row, ok := t.Row(region)
			if !ok {
				rs.Missing = append(rs.Missing, comp)
				continue
			}
			trend, ok := s.trend(row)
			if !ok {
				rs.Missing = append(rs.Missing, comp)
				continue
			}
			rs.Components[comp] = trend
			values[comp] = trend.Value
		}

		score, ok := s.combiner.Combine(values)
		if !ok {
			continue
		}
		rs.Score = score
		rs.Partial = len(rs.Missing) > 0
		rs.Direction = s.direction(score)
		set.Regions = append(set.Regions, rs)
	}

	set.SortByScore()

	partial := 0
	for _, r := range set.Regions {
		if r.Partial {
			partial++
		}
	}
	s.logger.WithFields(map[string]interface{}{
		"regions": set.Len(),
		"partial": partial,
		"inputs":  len(inputs),
		"as_of":   set.AsOf.Format(time.DateOnly),
	}).Info("Scoring completed")

	return set, nil
}

// trend compares the mean of the last RecentDays reported values with the
// mean of the RecentDays before them
func (s *Scorer) trend(row []float64) (contracts.ComponentTrend, bool) {
	n := s.config.RecentDays
	reported := make([]float64, 0, len(row))
	for _, v := range row {
		if !math.IsNaN(v) {
			reported = append(reported, v)
		}
	}
	if len(reported) < 2*n {
		return contracts.ComponentTrend{}, false
	}

	current := stat.Mean(reported[len(reported)-n:], nil)
	baseline := stat.Mean(reported[len(reported)-2*n:len(reported)-n], nil)

	return contracts.ComponentTrend{
		Current:  current,
		Baseline: baseline,
		Value:    componentValue(current, baseline, s.config.Sensitivity),
	}, true
}

// componentValue maps the current/baseline ratio to [-1, 1]
func componentValue(current, baseline, sensitivity float64) float64 {
	current = math.Max(current, 0)
	baseline = math.Max(baseline, 0)

	switch {
	case current == 0 && baseline == 0:
		return 0
	case baseline == 0:
		return 1
	case current == 0:
		return -1
	}
	return math.Tanh(sensitivity * math.Log(current/baseline))
}

func (s *Scorer) direction(score float64) contracts.Direction {
	switch {
	case score > s.config.StableBand:
		return contracts.DirectionRising
	case score < -s.config.StableBand:
		return contracts.DirectionFalling
	default:
		return contracts.DirectionStable
	}
}
