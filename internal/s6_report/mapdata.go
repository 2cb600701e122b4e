package s6_report

import (
	"fmt"
	"math"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/table"
)

// AreaInfo provides population and display names for map areas
type AreaInfo interface {
	Population(code string) (float64, bool)
	Name(code string) (string, bool)
}

// MapOptions controls BuildMapData
type MapOptions struct {
	Window          int
	ProvisionalDays int
	PerPopulation   float64
	Since           string // YYYY-MM-DD, "" keeps everything
}

// BuildMapData turns cumulative cases by dim into the choropleth payload:
// the centred rolling mean of daily new cases per PerPopulation residents.
// The trailing ProvisionalDays of the input stay in the output but are
// flagged. Areas with no population are left out and returned.
// ⭐ SSOT: S6 지도 데이터 생성
func BuildMapData(cumulative *table.Table, dim string, areas AreaInfo, opts MapOptions) (*contracts.MapData, []string, error) {
	if len(cumulative.Dims()) != 1 || !cumulative.HasDims([]string{dim}) {
		return nil, nil, &contracts.SchemaMismatchError{
			Table:  cumulative.Name(),
			Detail: fmt.Sprintf("map input must be keyed by %q only, has %v", dim, cumulative.Dims()),
		}
	}
	if opts.PerPopulation <= 0 {
		opts.PerPopulation = 1
	}

	lastInput, ok := cumulative.LastDate()
	if !ok {
		return nil, nil, &contracts.InsufficientDataError{Series: cumulative.Name(), Have: 0, Need: opts.Window}
	}

	rolled, err := cumulative.Diff().FillInterior(0).Rolling(opts.Window)
	if err != nil {
		return nil, nil, err
	}
	rates, missing, err := rolled.Divide(dim, areas.Population)
	if err != nil {
		return nil, nil, err
	}
	rates = rates.Scale(opts.PerPopulation)

	if opts.Since != "" {
		since, err := table.ParseDay(opts.Since)
		if err != nil {
			return nil, nil, fmt.Errorf("map since %q: %w", opts.Since, err)
		}
		rates = rates.Since(since)
	}

	provisionalFrom := lastInput.AddDate(0, 0, -opts.ProvisionalDays)
	dates := rates.Dates()
	data := &contracts.MapData{
		Dates:           make([]string, len(dates)),
		Provisional:     make([]bool, len(dates)),
		ProvisionalDays: opts.ProvisionalDays,
		PerPopulation:   opts.PerPopulation,
		Areas:           make(map[string]contracts.AreaSeries, rates.NumRows()),
	}
	for j, d := range dates {
		data.Dates[j] = d.Format(table.DateLayout)
		data.Provisional[j] = d.After(provisionalFrom)
	}

	skip := make(map[string]bool, len(missing))
	for _, code := range missing {
		skip[code] = true
	}

	for i, k := range rates.Keys() {
		code := k[0]
		if skip[code] {
			continue
		}
		pop, _ := areas.Population(code)
		name, ok := areas.Name(code)
		if !ok {
			name = code
		}

		rate := make([]*float64, len(dates))
		for j := range dates {
			v := rates.Value(i, j)
			if math.IsNaN(v) {
				continue
			}
			r := round(v, 2)
			rate[j] = &r
		}
		data.Areas[code] = contracts.AreaSeries{Name: name, Population: pop, Rate: rate}
	}

	return data, missing, nil
}
