package s6_report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/table"
)

func cumulativeCases(t *testing.T, rows map[string][]float64) *table.Table {
	t.Helper()
	b := table.NewBuilder("ltla_cases", "gss_code")
	for code, vals := range rows {
		for j, v := range vals {
			require.NoError(t, b.Set(d0.AddDate(0, 0, j), v, code))
		}
	}
	return b.Build()
}

func TestBuildMapData(t *testing.T) {
	cum := cumulativeCases(t, map[string][]float64{
		"E06000001": {0, 10, 20, 30, 40, 50},
		"E06000002": {0, 5, 10, 15, 20, 25},
		"E99999999": {0, 1, 2, 3, 4, 5},
	})
	areas := s0_data.NewPopulationTable(
		map[string]float64{"E06000001": 1000, "E06000002": 500},
		map[string]string{"E06000001": "Hartlepool"},
	)

	data, missing, err := BuildMapData(cum, "gss_code", areas, MapOptions{
		Window:          3,
		ProvisionalDays: 2,
		PerPopulation:   100000,
	})
	require.NoError(t, err)

	// diff drops day 0, the centred window drops one day at each end
	assert.Equal(t, []string{"2020-10-03", "2020-10-04", "2020-10-05"}, data.Dates)
	assert.Equal(t, []bool{false, false, true}, data.Provisional)
	assert.Equal(t, []string{"E99999999"}, missing)

	require.Len(t, data.Areas, 2)
	hartlepool := data.Areas["E06000001"]
	assert.Equal(t, "Hartlepool", hartlepool.Name)
	assert.Equal(t, 1000.0, hartlepool.Population)
	for _, r := range hartlepool.Rate {
		require.NotNil(t, r)
		assert.InDelta(t, 1000.0, *r, 1e-9)
	}

	assert.Equal(t, "E06000002", data.Areas["E06000002"].Name, "unknown name falls back to the code")
}

func TestBuildMapData_GapsAreNull(t *testing.T) {
	cum := cumulativeCases(t, map[string][]float64{
		"E06000001": {0, 10, 20, nan, 40, 50, 60},
	})
	areas := s0_data.NewPopulationTable(map[string]float64{"E06000001": 100}, nil)

	data, _, err := BuildMapData(cum, "gss_code", areas, MapOptions{Window: 3, PerPopulation: 1})
	require.NoError(t, err)

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var decoded struct {
		Areas map[string]struct {
			Rate []interface{} `json:"rate"`
		} `json:"areas"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	rate := decoded.Areas["E06000001"].Rate
	require.NotEmpty(t, rate)
	for _, r := range rate {
		if r == nil {
			continue
		}
		_, ok := r.(float64)
		assert.True(t, ok, "rates are plain numbers or null")
	}
	assert.NotContains(t, string(raw), "NaN")
}

func TestBuildMapData_LaggingAreaIsNotZeroFilled(t *testing.T) {
	cum := cumulativeCases(t, map[string][]float64{
		"E06000001": {0, 10, 20, 30, 40, 50},
		"E06000002": {0, 5, 10, 15, 20},
	})
	areas := s0_data.NewPopulationTable(map[string]float64{"E06000001": 100, "E06000002": 100}, nil)

	data, _, err := BuildMapData(cum, "gss_code", areas, MapOptions{Window: 3, PerPopulation: 1})
	require.NoError(t, err)
	require.Len(t, data.Dates, 3)

	lagging := data.Areas["E06000002"].Rate
	require.Len(t, lagging, 3)
	require.NotNil(t, lagging[1])
	assert.InDelta(t, 0.05, *lagging[1], 1e-9)
	assert.Nil(t, lagging[2], "the unreported last day is a gap, not a fall")
}

func TestBuildMapData_Since(t *testing.T) {
	cum := cumulativeCases(t, map[string][]float64{
		"E06000001": {0, 10, 20, 30, 40, 50, 60, 70},
	})
	areas := s0_data.NewPopulationTable(map[string]float64{"E06000001": 100}, nil)

	data, _, err := BuildMapData(cum, "gss_code", areas, MapOptions{Window: 3, PerPopulation: 1, Since: "2020-10-06"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-10-06", "2020-10-07"}, data.Dates)
}

func TestBuildMapData_WrongDims(t *testing.T) {
	b := table.NewBuilder("ltla_cases", "gss_code", "age_band")
	require.NoError(t, b.Set(d0, 1, "E06000001", "0_4"))

	_, _, err := BuildMapData(b.Build(), "gss_code", s0_data.NewPopulationTable(nil, nil), MapOptions{Window: 3})
	require.Error(t, err)
	assert.True(t, contracts.IsFatal(err))
}
