package contracts

import "sort"

// DataQuality summarises source coverage for one run
// ⭐ SSOT: S0 → 리포트 데이터 품질 정보 전달
type DataQuality struct {
	Sources      map[SourceName]bool `json:"sources"` // true = fetched
	DroppedRows  map[string]int      `json:"dropped_rows"`
	QualityScore float64             `json:"quality_score"` // 0.0 ~ 1.0
}

// NewDataQuality returns an empty snapshot
func NewDataQuality() DataQuality {
	return DataQuality{
		Sources:     make(map[SourceName]bool),
		DroppedRows: make(map[string]int),
	}
}

// RecordGap adds an alignment gap to the dropped-row tally, keyed
// "<stage>/<table>"
func (d *DataQuality) RecordGap(g AlignmentGap) {
	if g.Rows == 0 {
		return
	}
	if d.DroppedRows == nil {
		d.DroppedRows = make(map[string]int)
	}
	d.DroppedRows[g.Stage.ShortName()+"/"+g.Table] += g.Rows
}

// CoverageRate returns the fraction of sources that were fetched
func (d *DataQuality) CoverageRate() float64 {
	if len(d.Sources) == 0 {
		return 0.0
	}

	ok := 0
	for _, fetched := range d.Sources {
		if fetched {
			ok++
		}
	}

	return float64(ok) / float64(len(d.Sources))
}

// FailedSources returns the sources that could not be fetched
func (d *DataQuality) FailedSources() []SourceName {
	failed := make([]SourceName, 0)
	for name, fetched := range d.Sources {
		if !fetched {
			failed = append(failed, name)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}
