package s5_scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/policyconfig"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

var d0 = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)

// regionSeries builds a region-keyed table; every row has the same length
func regionSeries(t *testing.T, name string, rows map[string][]float64) *table.Table {
	t.Helper()
	b := table.NewBuilder(name, "region")
	for region, vals := range rows {
		for i, v := range vals {
			require.NoError(t, b.Set(d0.AddDate(0, 0, i), v, region))
		}
	}
	return b.Build()
}

// flatThen returns n baseline values followed by n current values
func flatThen(base, cur float64, n int) []float64 {
	out := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, base)
	}
	for i := 0; i < n; i++ {
		out = append(out, cur)
	}
	return out
}

func newScorer() *Scorer {
	p := policyconfig.Default()
	return NewScorer(ConfigFromPolicy(p.Scoring), NewWeightedCombiner(p.Scoring.Weights.AsMap()), logger.Nop())
}

func fullInputs(t *testing.T, cases []float64) Inputs {
	flat := flatThen(10, 10, 7)
	return Inputs{
		Deaths:         regionSeries(t, "deaths", map[string][]float64{"London": flat}),
		Cases:          regionSeries(t, "cases", map[string][]float64{"London": cases}),
		TriageOnline:   regionSeries(t, "triage_online", map[string][]float64{"London": flat}),
		TriagePathways: regionSeries(t, "triage_pathways", map[string][]float64{"London": flat}),
		Admissions:     regionSeries(t, "admissions", map[string][]float64{"London": flat}),
	}
}

func TestComponentValue(t *testing.T) {
	tests := []struct {
		name              string
		current, baseline float64
		want              float64
	}{
		{"flat", 10, 10, 0},
		{"both zero", 0, 0, 0},
		{"from zero", 5, 0, 1},
		{"to zero", 0, 5, -1},
		{"doubling", 20, 10, math.Tanh(math.Log(2))},
		{"halving", 5, 10, -math.Tanh(math.Log(2))},
		{"negative clamps to zero", -3, 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, componentValue(tt.current, tt.baseline, 1), 1e-12)
		})
	}
}

func TestScore_Flat(t *testing.T) {
	set, err := newScorer().Score(fullInputs(t, flatThen(10, 10, 7)))
	require.NoError(t, err)

	require.Equal(t, 1, set.Len())
	london, ok := set.Get("London")
	require.True(t, ok)
	assert.InDelta(t, 0, london.Score, 1e-12)
	assert.Equal(t, contracts.DirectionStable, london.Direction)
	assert.False(t, london.Partial)
	assert.Len(t, london.Components, 5)
	assert.Equal(t, d0.AddDate(0, 0, 13), set.AsOf)
}

func TestScore_Monotonic(t *testing.T) {
	s := newScorer()
	prev := math.Inf(-1)
	for _, cur := range []float64{0, 5, 10, 15, 30, 100} {
		set, err := s.Score(fullInputs(t, flatThen(10, cur, 7)))
		require.NoError(t, err)
		london, _ := set.Get("London")
		assert.GreaterOrEqual(t, london.Score, prev, "current=%v", cur)
		assert.LessOrEqual(t, math.Abs(london.Score), 1.0)
		prev = london.Score
	}

	set, _ := s.Score(fullInputs(t, flatThen(10, 100, 7)))
	london, _ := set.Get("London")
	assert.Equal(t, contracts.DirectionRising, london.Direction)
}

func TestScore_BaselineDirection(t *testing.T) {
	s := newScorer()
	prev := math.Inf(1)
	for _, base := range []float64{5, 10, 20, 40} {
		set, err := s.Score(fullInputs(t, flatThen(base, 20, 7)))
		require.NoError(t, err)
		london, _ := set.Get("London")
		assert.LessOrEqual(t, london.Score, prev, "baseline=%v", base)
		prev = london.Score
	}

	// same absolute rise on a larger level reads as a smaller trend
	low, err := s.Score(fullInputs(t, flatThen(10, 20, 7)))
	require.NoError(t, err)
	high, err := s.Score(fullInputs(t, flatThen(110, 120, 7)))
	require.NoError(t, err)
	a, _ := low.Get("London")
	b, _ := high.Get("London")
	assert.Less(t, b.Score, a.Score)
	assert.Greater(t, b.Score, 0.0)
}

func TestScore_ScaleInvariant(t *testing.T) {
	s := newScorer()
	small, err := s.Score(fullInputs(t, flatThen(10, 15, 7)))
	require.NoError(t, err)
	large, err := s.Score(fullInputs(t, flatThen(1000, 1500, 7)))
	require.NoError(t, err)

	a, _ := small.Get("London")
	b, _ := large.Get("London")
	assert.InDelta(t, a.Score, b.Score, 1e-12)
}

func TestScore_PartialInputs(t *testing.T) {
	in := fullInputs(t, flatThen(10, 20, 7))
	in.Admissions = nil
	in.TriagePathways = regionSeries(t, "triage_pathways", map[string][]float64{"London": {1, 2}})

	set, err := newScorer().Score(in)
	require.NoError(t, err)

	london, ok := set.Get("London")
	require.True(t, ok)
	assert.True(t, london.Partial)
	assert.Equal(t, []string{contracts.ComponentAdmissions, contracts.ComponentTriagePathways}, london.Missing)

	// cases doubled, deaths and online triage flat: renormalised over three
	assert.InDelta(t, math.Tanh(math.Log(2))/3, london.Score, 1e-12)
}

func TestScore_RegionOnlyInOneInput(t *testing.T) {
	in := fullInputs(t, flatThen(10, 10, 7))
	in.Deaths = regionSeries(t, "deaths", map[string][]float64{
		"London":     flatThen(10, 10, 7),
		"South West": flatThen(10, 5, 7),
	})

	set, err := newScorer().Score(in)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	sw, ok := set.Get("South West")
	require.True(t, ok)
	assert.True(t, sw.Partial)
	assert.Len(t, sw.Missing, 4)
	assert.Equal(t, contracts.DirectionFalling, sw.Direction)
	assert.Equal(t, "London", set.Regions[0].Region, "sorted by descending score")
}

func TestScore_NoInputs(t *testing.T) {
	set, err := newScorer().Score(Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestScore_ZeroWeightIsNotMissing(t *testing.T) {
	w := policyconfig.Default().Scoring.Weights
	w.Admissions = 0
	s := NewScorer(ConfigFromPolicy(policyconfig.Default().Scoring), NewWeightedCombiner(w.AsMap()), logger.Nop())

	in := fullInputs(t, flatThen(10, 10, 7))
	in.Admissions = nil
	set, err := s.Score(in)
	require.NoError(t, err)

	london, _ := set.Get("London")
	assert.False(t, london.Partial)
	assert.NotContains(t, set.Weights, contracts.ComponentAdmissions)
}

func TestScore_WrongDims(t *testing.T) {
	b := table.NewBuilder("cases", "region", "sex")
	require.NoError(t, b.Set(d0, 1, "London", "Male"))

	_, err := newScorer().Score(Inputs{Cases: b.Build()})
	require.Error(t, err)
	assert.True(t, contracts.IsFatal(err))
}

func TestWeightedCombiner(t *testing.T) {
	c := NewWeightedCombiner(map[string]float64{"a": 3, "b": 1, "c": 0})
	assert.Equal(t, []string{"a", "b"}, c.Components())

	score, ok := c.Combine(map[string]float64{"a": 1, "b": -1})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, score, 1e-12)

	_, ok = c.Combine(map[string]float64{"c": 1})
	assert.False(t, ok)
}
