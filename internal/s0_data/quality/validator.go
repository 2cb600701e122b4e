package quality

import (
	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
)

// QualityGate scores how much of the upstream data a run managed to fetch
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinScore float64                          // 경고 임계값 (0.0 ~ 1.0)
	Weights  map[contracts.SourceName]float64 // 소스별 가중치, 없으면 1
}

// DefaultConfig weights the scoring inputs above the context-only sources
func DefaultConfig() Config {
	return Config{
		MinScore: 0.7,
		Weights: map[contracts.SourceName]float64{
			contracts.SourceLTLACases:          3,
			contracts.SourceNHSDeaths:          3,
			contracts.SourceHospitalAdmissions: 2,
			contracts.SourceTriageOnline:       2,
			contracts.SourceTriagePathways:     2,
		},
	}
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check summarises the dataset. Passed is false when the weighted score
// falls below MinScore; the run still continues with the sources it has.
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(ds *s0_data.Dataset) (contracts.DataQuality, bool) {
	q := ds.Quality()
	q.QualityScore = g.calculateScore(q.Sources)
	return q, q.QualityScore >= g.config.MinScore
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(sources map[contracts.SourceName]bool) float64 {
	total := 0.0
	score := 0.0
	for name, fetched := range sources {
		w := 1.0
		if cw, ok := g.config.Weights[name]; ok {
			w = cw
		}
		total += w
		if fetched {
			score += w
		}
	}

	if total == 0 {
		return 0.0
	}
	return score / total
}
