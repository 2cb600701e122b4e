package s2_aggregation

import (
	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/observability"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

// RegionDim is the dimension name produced by aggregation
const RegionDim = "region"

// Lookup maps a fine geography code to its coarse region
type Lookup interface {
	Name() string
	Region(code string) (string, bool)
}

// Aggregator sums fine-grained tables up to coarse regions
type Aggregator struct {
	lookup  Lookup
	metrics *observability.Metrics
	logger  *logger.Logger
}

// Report lists what aggregation had to drop
type Report struct {
	DroppedRows  int
	DroppedCodes []string
}

// Gap converts the report to an alignment gap for table
func (r Report) Gap(tableName, lookup string) contracts.AlignmentGap {
	return contracts.AlignmentGap{
		Stage:  contracts.StageAggregation,
		Table:  tableName,
		Lookup: lookup,
		Codes:  r.DroppedCodes,
		Rows:   r.DroppedRows,
	}
}

// NewAggregator creates an aggregator over lookup. metrics may be nil.
func NewAggregator(lookup Lookup, metrics *observability.Metrics, log *logger.Logger) *Aggregator {
	return &Aggregator{
		lookup:  lookup,
		metrics: metrics,
		logger:  log.WithStage(contracts.StageAggregation.String()),
	}
}

// AggregateByRegion replaces dim with region, summing per date and per any
// remaining dimension. The total of the output equals the total of the
// input rows whose code is mapped; unmapped rows are dropped, logged and
// counted.
// ⭐ SSOT: S1 → S2 지역 집계
func (a *Aggregator) AggregateByRegion(fine *table.Table, dim string) (*table.Table, Report, error) {
	out, dropped, err := fine.Regroup(dim, RegionDim, a.lookup.Region)
	if err != nil {
		return nil, Report{}, err
	}

	report := Report{DroppedRows: dropped.Rows, DroppedCodes: dropped.Codes}
	if report.DroppedRows > 0 {
		gap := report.Gap(fine.Name(), a.lookup.Name())
		a.logger.WithFields(map[string]interface{}{
			"table":  fine.Name(),
			"lookup": a.lookup.Name(),
			"rows":   report.DroppedRows,
			"codes":  report.DroppedCodes,
		}).Warn("Alignment gap: rows excluded from regional totals")
		if a.metrics != nil {
			a.metrics.AlignmentGap(gap)
		}
	}

	return out, report, nil
}
