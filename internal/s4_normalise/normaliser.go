package s4_normalise

import (
	"fmt"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/observability"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

// Population looks up the resident population of a code
type Population interface {
	Population(code string) (float64, bool)
}

// Normaliser converts counts to rates per head of population
type Normaliser struct {
	population Population
	per        float64
	metrics    *observability.Metrics
	logger     *logger.Logger
}

// Report lists the labels that had no usable population
type Report struct {
	Missing []string
}

// Gap converts the report to an alignment gap for table
func (r Report) Gap(tableName string) contracts.AlignmentGap {
	return contracts.AlignmentGap{
		Stage:  contracts.StageNormalisation,
		Table:  tableName,
		Lookup: "populations",
		Codes:  r.Missing,
		Rows:   len(r.Missing),
	}
}

// NewNormaliser creates a normaliser. per multiplies the rate (1 gives a
// plain fraction, 100000 gives a rate per 100k). metrics may be nil.
func NewNormaliser(population Population, per float64, metrics *observability.Metrics, log *logger.Logger) *Normaliser {
	if per <= 0 {
		per = 1
	}
	return &Normaliser{
		population: population,
		per:        per,
		metrics:    metrics,
		logger:     log.WithStage(contracts.StageNormalisation.String()),
	}
}

// Normalise divides each row by the population of its dim label. A label
// with no population, or a non-positive one, yields an all-missing row and
// is listed in the report.
// ⭐ SSOT: S3 → S4 인구 정규화
func (n *Normaliser) Normalise(counts *table.Table, dim string) (*table.Table, Report, error) {
	rates, missing, err := counts.Divide(dim, n.population.Population)
	if err != nil {
		return nil, Report{}, fmt.Errorf("normalise %s: %w", counts.Name(), err)
	}
	if n.per != 1 {
		rates = rates.Scale(n.per)
	}

	report := Report{Missing: missing}
	if len(missing) > 0 {
		gap := report.Gap(counts.Name())
		n.logger.WithFields(map[string]interface{}{
			"table": counts.Name(),
			"codes": missing,
		}).Warn("Alignment gap: no population for some areas")
		if n.metrics != nil {
			n.metrics.AlignmentGap(gap)
		}
	}

	return rates, report, nil
}
