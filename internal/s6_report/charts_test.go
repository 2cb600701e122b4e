package s6_report

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/covid-report/internal/table"
)

var (
	d0  = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)
	nan = math.NaN()
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d0.AddDate(0, 0, i)
	}
	return out
}

func TestSeriesFromTable(t *testing.T) {
	b := table.NewBuilder("nhs_deaths", "region")
	require.NoError(t, b.Set(d0, 3, "London"))
	require.NoError(t, b.Set(d0, 5, "North West"))

	series, err := SeriesFromTable(b.Build())
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "London", series[0].Name)
	assert.Equal(t, []float64{3}, series[0].Values)

	b2 := table.NewBuilder("triage", "ccg", "sex")
	require.NoError(t, b2.Set(d0, 1, "E38000001", "female"))
	_, err = SeriesFromTable(b2.Build())
	assert.Error(t, err)
}

func TestLine(t *testing.T) {
	cb := NewChartBuilder("", time.Time{})

	line, err := cb.Line("Confirmed cases", "cases", []Series{
		{Name: "England", Dates: dates(3), Values: []float64{1, nan, 3}},
		{Name: "England (provisional)", Dates: dates(5)[2:], Values: []float64{3, 4, 5}, Dashed: true},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, line.Render(&buf))
	html := buf.String()
	assert.Contains(t, html, "Confirmed cases")
	assert.Contains(t, html, "2020-10-05")
	assert.Contains(t, html, `"dashed"`)
	assert.NotContains(t, html, "NaN")
}

func TestLine_Since(t *testing.T) {
	cb := NewChartBuilder("", d0.AddDate(0, 0, 10))

	_, err := cb.Line("Cases", "cases", []Series{{Name: "x", Dates: dates(3), Values: []float64{1, 2, 3}}})
	assert.Error(t, err, "nothing after the start date")

	_, err = cb.Line("Cases", "cases", nil)
	assert.Error(t, err)
}

func TestDateAxisUnion(t *testing.T) {
	cb := NewChartBuilder("", d0.AddDate(0, 0, 1))
	axis := cb.dateAxis([]Series{
		{Dates: dates(3)},
		{Dates: dates(5)[3:]},
	})
	assert.Equal(t, dates(5)[1:], axis)
}

func TestStackedBar(t *testing.T) {
	cb := NewChartBuilder("", time.Time{})
	bar, err := cb.StackedBar("Risky venue alerts", "venues", []Series{
		{Name: "restaurant", Dates: dates(2), Values: []float64{4, 2}},
		{Name: "pub", Dates: dates(2), Values: []float64{1, 7}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, bar.Render(&buf))
	assert.Contains(t, buf.String(), "restaurant")
	assert.Contains(t, buf.String(), `"total"`)
}

func TestHeatMap(t *testing.T) {
	b := table.NewBuilder("age_rates", "age_band")
	for j, v := range []float64{10, 20, nan} {
		require.NoError(t, b.Set(d0.AddDate(0, 0, j), v, "60_64"))
	}
	require.NoError(t, b.Set(d0, 5, "00_04"))

	cb := NewChartBuilder("", time.Time{})
	hm, err := cb.HeatMap("Cases by age", b.Build(), "age_band", func(s string) string { return "age " + s })
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, hm.Render(&buf))
	assert.Contains(t, buf.String(), "age 60_64")

	_, err = cb.HeatMap("Cases by age", b.Build(), "region", nil)
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, round(1.234, 2))
	assert.Equal(t, 2.0, round(1.5, 0))
}
