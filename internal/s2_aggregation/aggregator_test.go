package s2_aggregation

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/contracts"
	"github.com/wonny/covid-report/internal/observability"
	"github.com/wonny/covid-report/internal/s0_data"
	"github.com/wonny/covid-report/internal/table"
	"github.com/wonny/covid-report/pkg/logger"
)

var d0 = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)

func lookup() *s0_data.RegionLookup {
	return s0_data.NewRegionLookup("la_region", map[string]string{
		"E06000001": "North East and Yorkshire",
		"E06000002": "North East and Yorkshire",
		"E09000001": "London",
	}, nil)
}

func ltla(t *testing.T) *table.Table {
	t.Helper()
	b := table.NewBuilder("ltla_cases", "gss_code")
	rows := map[string][]float64{
		"E06000001": {1, 2, 3},
		"E06000002": {10, 20, 30},
		"E09000001": {5, 5, 5},
		"E99999999": {7, 7, 7},
	}
	for code, vals := range rows {
		for i, v := range vals {
			require.NoError(t, b.Set(d0.AddDate(0, 0, i), v, code))
		}
	}
	return b.Build()
}

func TestAggregateByRegion_Conservation(t *testing.T) {
	m := observability.NewMetricsForTesting()
	var buf bytes.Buffer
	agg := NewAggregator(lookup(), m, logger.NewWithWriter(&buf, "test", "debug"))

	fine := ltla(t)
	out, report, err := agg.AggregateByRegion(fine, "gss_code")
	require.NoError(t, err)

	assert.Equal(t, []string{"region"}, out.Dims())
	assert.Equal(t, []string{"London", "North East and Yorkshire"}, out.Labels("region"))
	assert.Equal(t, 33.0, out.At(d0.AddDate(0, 0, 2), "North East and Yorkshire"))

	mapped := fine.Sum() - 21
	assert.Equal(t, mapped, out.Sum())

	assert.Equal(t, 1, report.DroppedRows)
	assert.Equal(t, []string{"E99999999"}, report.DroppedCodes)
	assert.Contains(t, buf.String(), "Alignment gap")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlignmentGaps.WithLabelValues("S2_AGGREGATION", "ltla_cases")))
}

func TestAggregateByRegion_KeepsOtherDims(t *testing.T) {
	ccg := s0_data.NewRegionLookup("ccg_region", map[string]string{
		"E38000001": "North East and Yorkshire",
		"E38000255": "London",
	}, nil)
	b := table.NewBuilder("triage_online", "ccg", "sex")
	require.NoError(t, b.Set(d0, 3, "E38000001", "Male"))
	require.NoError(t, b.Set(d0, 4, "E38000255", "Male"))
	require.NoError(t, b.Set(d0, 5, "E38000255", "Female"))

	out, report, err := NewAggregator(ccg, nil, logger.Nop()).AggregateByRegion(b.Build(), "ccg")
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "sex"}, out.Dims())
	assert.Equal(t, 5.0, out.At(d0, "London", "Female"))
	assert.Zero(t, report.DroppedRows)
}

func TestAggregateByRegion_UnknownDim(t *testing.T) {
	_, _, err := NewAggregator(lookup(), nil, logger.Nop()).AggregateByRegion(ltla(t), "ccg")
	require.Error(t, err)
	assert.True(t, contracts.IsFatal(err))
}

func TestReport_Gap(t *testing.T) {
	gap := Report{DroppedRows: 2, DroppedCodes: []string{"X"}}.Gap("ltla_cases", "la_region")
	assert.Equal(t, contracts.StageAggregation, gap.Stage)
	assert.False(t, gap.Empty())
}
